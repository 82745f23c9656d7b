package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	app "github.com/bayanihan-circle/coop_ledger/internal/app"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/contribution"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/loan"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/withdrawal"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// NewHandler returns a router exposing the ledger REST API. Mutating calls
// are recorded in an in-memory audit trail; set AUDIT_LOG_PATH to also
// persist them as JSONL.
func NewHandler(application *app.Application) http.Handler {
	sink, _ := newFileAuditSink(os.Getenv("AUDIT_LOG_PATH"))
	var auditSink auditSink
	if sink != nil {
		auditSink = sink
	}
	h := &handler{app: application, audit: newAuditLog(0, auditSink)}

	r := chi.NewRouter()
	r.Use(h.audit.middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/audit", h.audit.handleList)

	r.Route("/members", func(r chi.Router) {
		r.Post("/", h.createMember)
		r.Get("/", h.listMembers)
		r.Get("/{id}", h.getMember)
		r.Get("/{id}/capital-entries", h.listCapitalEntries)
		r.Get("/{id}/withdrawal-eligibility", h.withdrawalEligibility)
		r.Post("/{id}/promote", h.promoteMember)
		r.Post("/{id}/demote", h.demoteMember)
		r.Post("/{id}/membership-fee", h.collectMembershipFee)
		r.Get("/{id}/earnings", h.adminEarnings)
	})

	r.Route("/contributions", func(r chi.Router) {
		r.Post("/", h.recordContribution)
		r.Get("/", h.listContributions)
		r.Get("/{id}", h.getContribution)
		r.Post("/{id}/approve", h.approveContribution)
		r.Post("/{id}/reject", h.rejectContribution)
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.applyLoan)
		r.Get("/", h.listLoans)
		r.Post("/activate-scheduled", h.activateScheduledLoans)
		r.Get("/{id}", h.getLoan)
		r.Post("/{id}/approve", h.approveLoan)
		r.Post("/{id}/reject", h.rejectLoan)
		r.Post("/{id}/default", h.defaultLoan)
		r.Get("/{id}/payments", h.listLoanPayments)
		r.Post("/{id}/payments", h.recordLoanPayment)
	})

	r.Route("/withdrawals", func(r chi.Router) {
		r.Post("/", h.requestWithdrawal)
		r.Get("/", h.listWithdrawals)
		r.Get("/{id}", h.getWithdrawal)
		r.Post("/{id}/approve", h.approveWithdrawal)
		r.Post("/{id}/reject", h.rejectWithdrawal)
		r.Post("/{id}/complete", h.completeWithdrawal)
	})

	r.Route("/distributions", func(r chi.Router) {
		r.Post("/calculate", h.calculateDistribution)
		r.Get("/", h.listDistributions)
		r.Get("/{id}", h.getDistribution)
		r.Post("/{id}/distribute", h.distributeDistribution)
	})

	r.Route("/wallets", func(r chi.Router) {
		r.Get("/", h.listWallets)
		r.Get("/{id}", h.getWallet)
		r.Get("/{id}/entries", h.listWalletEntries)
		r.Get("/{id}/reconcile", h.reconcileWallet)
	})

	r.Post("/service-fees", h.processServiceFee)
	r.Get("/service-fees", h.listServiceFees)
	r.Get("/membership-fees", h.listMembershipFees)
	r.Get("/funds", h.activeFunds)

	return r
}

// Members ---------------------------------------------------------------------

func (h *handler) createMember(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		GroupID  string `json:"group_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := h.app.Members.Create(r.Context(), payload.FullName, payload.Email, payload.GroupID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.app.Members.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *handler) getMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.app.Members.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) listCapitalEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Members.CapitalEntries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) promoteMember(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := h.app.Members.PromoteToAdmin(r.Context(), chi.URLParam(r, "id"), member.AdminRole(payload.Role))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) demoteMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.app.Members.DemoteFromAdmin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) collectMembershipFee(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount      decimal.Decimal `json:"amount"`
		Method      string          `json:"method"`
		CollectedBy string          `json:"collected_by"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fee, err := h.app.Contributions.CollectMembershipFee(r.Context(), chi.URLParam(r, "id"), payload.Amount, contribution.Method(payload.Method), payload.CollectedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fee)
}

func (h *handler) adminEarnings(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.Revenue.Earnings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Contributions ---------------------------------------------------------------

func (h *handler) recordContribution(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID   string          `json:"member_id"`
		Amount     decimal.Decimal `json:"amount"`
		Method     string          `json:"method"`
		Date       time.Time       `json:"date"`
		RecordedBy string          `json:"recorded_by"`
		Notes      string          `json:"notes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.app.Contributions.Record(r.Context(), payload.MemberID, payload.Amount, contribution.Method(payload.Method), payload.Date, payload.RecordedBy, payload.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listContributions(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Contributions.List(r.Context(), r.URL.Query().Get("member_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getContribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Contributions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) approveContribution(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ApprovedBy string `json:"approved_by"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.app.Contributions.Approve(r.Context(), chi.URLParam(r, "id"), payload.ApprovedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) rejectContribution(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RejectedBy string `json:"rejected_by"`
		Reason     string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.app.Contributions.Reject(r.Context(), chi.URLParam(r, "id"), payload.RejectedBy, payload.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Loans -----------------------------------------------------------------------

func (h *handler) applyLoan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID      string          `json:"member_id"`
		Amount        decimal.Decimal `json:"amount"`
		TermMonths    int             `json:"term_months"`
		Purpose       string          `json:"purpose"`
		ScheduledDate time.Time       `json:"scheduled_date"`
		ScheduledBy   string          `json:"scheduled_by"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		ln  loan.Loan
		err error
	)
	if payload.ScheduledDate.IsZero() {
		ln, err = h.app.Loans.Apply(r.Context(), payload.MemberID, payload.Amount, payload.Purpose, payload.TermMonths)
	} else {
		ln, err = h.app.Loans.Schedule(r.Context(), payload.MemberID, payload.Amount, payload.Purpose, payload.TermMonths, payload.ScheduledDate, payload.ScheduledBy)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ln)
}

func (h *handler) listLoans(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		list, err := h.app.Loans.ListByStatus(r.Context(), loan.Status(status))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	list, err := h.app.Loans.List(r.Context(), r.URL.Query().Get("member_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getLoan(w http.ResponseWriter, r *http.Request) {
	ln, err := h.app.Loans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (h *handler) approveLoan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ApprovedBy string `json:"approved_by"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ln, err := h.app.Loans.Approve(r.Context(), chi.URLParam(r, "id"), payload.ApprovedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (h *handler) rejectLoan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RejectedBy string `json:"rejected_by"`
		Reason     string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ln, err := h.app.Loans.Reject(r.Context(), chi.URLParam(r, "id"), payload.RejectedBy, payload.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (h *handler) defaultLoan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MarkedBy string `json:"marked_by"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ln, err := h.app.Loans.MarkDefaulted(r.Context(), chi.URLParam(r, "id"), payload.MarkedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (h *handler) listLoanPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.app.Loans.Payments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *handler) recordLoanPayment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount decimal.Decimal `json:"amount"`
		Method string          `json:"method"`
		Date   time.Time       `json:"date"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ln, pay, err := h.app.Loans.RecordPayment(r.Context(), chi.URLParam(r, "id"), payload.Amount, payload.Method, payload.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"loan": ln, "payment": pay})
}

func (h *handler) activateScheduledLoans(w http.ResponseWriter, r *http.Request) {
	activated, err := h.app.Loans.ActivateScheduled(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"activated": activated})
}

// Withdrawals -----------------------------------------------------------------

func (h *handler) withdrawalEligibility(w http.ResponseWriter, r *http.Request) {
	elig, err := h.app.Withdrawals.CheckEligibility(r.Context(), chi.URLParam(r, "id"), time.Now().UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elig)
}

func (h *handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID string          `json:"member_id"`
		Amount   decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := h.app.Withdrawals.Request(r.Context(), payload.MemberID, payload.Amount, time.Now().UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *handler) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		list, err := h.app.Withdrawals.ListByStatus(r.Context(), withdrawal.Status(status))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	list, err := h.app.Withdrawals.List(r.Context(), r.URL.Query().Get("member_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getWithdrawal(w http.ResponseWriter, r *http.Request) {
	req, err := h.app.Withdrawals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReviewedBy string `json:"reviewed_by"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := h.app.Withdrawals.Approve(r.Context(), chi.URLParam(r, "id"), payload.ReviewedBy, time.Now().UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReviewedBy string `json:"reviewed_by"`
		Reason     string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := h.app.Withdrawals.Reject(r.Context(), chi.URLParam(r, "id"), payload.ReviewedBy, payload.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) completeWithdrawal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CompletedBy string `json:"completed_by"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := h.app.Withdrawals.Complete(r.Context(), chi.URLParam(r, "id"), payload.CompletedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Dividends -------------------------------------------------------------------

func (h *handler) calculateDistribution(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Year int `json:"year"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := h.app.Dividends.Calculate(r.Context(), payload.Year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) listDistributions(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid year %q", raw))
			return
		}
		d, err := h.app.Dividends.DistributionForYear(r.Context(), year)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}
	list, err := h.app.Dividends.ListDistributions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getDistribution(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Dividends.Distribution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) distributeDistribution(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Dividends.Distribute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Wallets and revenue ---------------------------------------------------------

func (h *handler) listWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.app.Revenue.ListWallets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (h *handler) getWallet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "platform" {
		wlt, err := h.app.Revenue.PlatformWallet(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, wlt)
		return
	}
	wlt, err := h.app.Revenue.Wallet(r.Context(), id, revenue.OwnerAdmin)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, wlt)
}

func (h *handler) listWalletEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Revenue.Entries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) reconcileWallet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Revenue.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) processServiceFee(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID     string          `json:"member_id"`
		Type         string          `json:"type"`
		BaseAmount   decimal.Decimal `json:"base_amount"`
		ServiceFee   decimal.Decimal `json:"service_fee"`
		AdminOwnerID string          `json:"admin_owner_id"`
		Description  string          `json:"description"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := h.app.Revenue.ProcessServiceFee(r.Context(), payload.MemberID, payload.Type, payload.BaseAmount, payload.ServiceFee, payload.AdminOwnerID, payload.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) listServiceFees(w http.ResponseWriter, r *http.Request) {
	txs, err := h.app.Revenue.ServiceFeeTransactions(r.Context(), r.URL.Query().Get("admin_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) listMembershipFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.app.Revenue.MembershipFees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, fees)
}

// Funds -----------------------------------------------------------------------

func (h *handler) activeFunds(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.Funds.ActiveFunds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Helpers ---------------------------------------------------------------------

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch errs.KindOf(err) {
	case errs.KindValidation:
		status = http.StatusBadRequest
	case errs.KindInvalidState, errs.KindConcurrencyConflict, errs.KindAlreadyDistributed:
		status = http.StatusConflict
	case errs.KindInsufficientFunds:
		status = http.StatusUnprocessableEntity
	default:
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
	}
	writeError(w, status, err)
}
