package loans

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/loan"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/metrics"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Service drives the loan lifecycle: application, scheduling, activation,
// approval, repayment and default.
type Service struct {
	members storage.MemberStore
	store   storage.LoanStore
	ledger  storage.LedgerStore
	policy  policy.Policy
	log     *logger.Logger
}

// New constructs a loan service.
func New(members storage.MemberStore, store storage.LoanStore, ledger storage.LedgerStore, pol policy.Policy, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("loans")
	}
	return &Service{
		members: members,
		store:   store,
		ledger:  ledger,
		policy:  pol,
		log:     log,
	}
}

// Apply files a member-initiated loan application in pending.
func (s *Service) Apply(ctx context.Context, memberID string, amount decimal.Decimal, purpose string, termMonths int) (loan.Loan, error) {
	m, err := s.validateRequest(ctx, memberID, amount, purpose, termMonths)
	if err != nil {
		return loan.Loan{}, err
	}

	ln := loan.Loan{
		MemberID:     m.ID,
		Principal:    amount,
		Purpose:      strings.TrimSpace(purpose),
		InterestRate: s.policy.InterestRatePerMonth,
		TermMonths:   termMonths,
		Status:       loan.StatusPending,
	}
	created, err := s.store.CreateLoan(ctx, ln)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("create loan: %w", err)
	}
	s.log.Infof("loan %s applied by member %s for %s", created.ID, m.ID, amount)
	return created, nil
}

// Schedule files an admin pre-authorized loan for future activation.
func (s *Service) Schedule(ctx context.Context, memberID string, amount decimal.Decimal, purpose string, termMonths int, scheduledDate time.Time, adminID string) (loan.Loan, error) {
	if scheduledDate.IsZero() {
		return loan.Loan{}, errs.Validation("loan", "", "scheduled date is required")
	}
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return loan.Loan{}, err
	}
	m, err := s.validateRequest(ctx, memberID, amount, purpose, termMonths)
	if err != nil {
		return loan.Loan{}, err
	}

	ln := loan.Loan{
		MemberID:      m.ID,
		Principal:     amount,
		Purpose:       strings.TrimSpace(purpose),
		InterestRate:  s.policy.InterestRatePerMonth,
		TermMonths:    termMonths,
		Status:        loan.StatusScheduled,
		ScheduledDate: scheduledDate.UTC(),
	}
	created, err := s.store.CreateLoan(ctx, ln)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("create scheduled loan: %w", err)
	}
	s.log.Infof("loan %s scheduled for member %s on %s", created.ID, m.ID, scheduledDate.Format("2006-01-02"))
	return created, nil
}

// ActivateScheduled moves every scheduled loan whose date has arrived into
// pending, ready for approval. The transition is guarded by the scheduled
// status, so re-running the sweep is a no-op; a concurrent duplicate
// activation loses the version race and is skipped.
func (s *Service) ActivateScheduled(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	scheduled, err := s.store.ListLoansByStatus(ctx, loan.StatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("list scheduled loans: %w", err)
	}

	activated := 0
	for _, ln := range scheduled {
		if ln.ScheduledDate.After(now) {
			continue
		}
		ln.Status = loan.StatusPending
		if _, err := s.store.UpdateLoan(ctx, ln); err != nil {
			if errs.IsConflict(err) {
				continue
			}
			return activated, fmt.Errorf("activate loan %s: %w", ln.ID, err)
		}
		activated++
	}
	if activated > 0 {
		s.log.Infof("%d scheduled loan(s) activated", activated)
		metrics.RecordSweepActivations(activated)
	}
	return activated, nil
}

// Approve disburses a pending or scheduled loan. The balance is set to the
// full simple-interest obligation.
func (s *Service) Approve(ctx context.Context, loanID, approverID string) (loan.Loan, error) {
	admin, err := s.requireAdmin(ctx, approverID)
	if err != nil {
		return loan.Loan{}, err
	}
	ln, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	if !loan.CanApprove(ln.Status) {
		return loan.Loan{}, errs.InvalidState("loan", ln.ID, "cannot approve from status %q", ln.Status)
	}

	now := time.Now().UTC()
	ln.Status = loan.StatusActive
	ln.ApprovedBy = admin.ID
	ln.ApprovedAt = now
	ln.DisbursedAt = now
	ln.Balance = loan.TotalOwed(ln.Principal, ln.InterestRate, ln.TermMonths)

	updated, err := s.store.UpdateLoan(ctx, ln)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("approve loan %s: %w", ln.ID, err)
	}
	s.log.Infof("loan %s approved by %s, balance %s", updated.ID, admin.ID, updated.Balance)
	return updated, nil
}

// Reject declines a pending or scheduled loan. Terminal.
func (s *Service) Reject(ctx context.Context, loanID, approverID, reason string) (loan.Loan, error) {
	admin, err := s.requireAdmin(ctx, approverID)
	if err != nil {
		return loan.Loan{}, err
	}
	ln, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	if !loan.CanReject(ln.Status) {
		return loan.Loan{}, errs.InvalidState("loan", ln.ID, "cannot reject from status %q", ln.Status)
	}

	ln.Status = loan.StatusRejected
	ln.RejectedBy = admin.ID
	ln.RejectReason = strings.TrimSpace(reason)
	updated, err := s.store.UpdateLoan(ctx, ln)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("reject loan %s: %w", ln.ID, err)
	}
	s.log.Infof("loan %s rejected by %s", updated.ID, admin.ID)
	return updated, nil
}

// RecordPayment applies a repayment to an active loan. The interest portion
// is attributed pro-rata and accrued onto the member's tracking row for the
// payment's year, atomically with the balance update.
func (s *Service) RecordPayment(ctx context.Context, loanID string, amount decimal.Decimal, method string, date time.Time) (loan.Loan, loan.Payment, error) {
	ln, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return loan.Loan{}, loan.Payment{}, fmt.Errorf("get loan: %w", err)
	}
	if ln.Status != loan.StatusActive {
		return loan.Loan{}, loan.Payment{}, errs.InvalidState("loan", ln.ID, "cannot record payment from status %q", ln.Status)
	}
	if !amount.IsPositive() {
		return loan.Loan{}, loan.Payment{}, errs.Validation("loan", ln.ID, "payment amount must be positive")
	}
	if amount.LessThan(s.policy.MinLoanPayment) && !amount.Equal(ln.Balance) {
		return loan.Loan{}, loan.Payment{}, errs.Validation("loan", ln.ID, "payment amount %s is below the minimum payment %s", amount, s.policy.MinLoanPayment)
	}
	if amount.GreaterThan(ln.Balance.Add(loan.Tolerance)) {
		return loan.Loan{}, loan.Payment{}, errs.Validation("loan", ln.ID, "payment amount %s exceeds outstanding balance %s", amount, ln.Balance)
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	newBalance := ln.Balance.Sub(amount)
	if newBalance.Abs().LessThanOrEqual(loan.Tolerance) {
		newBalance = decimal.Zero
	}
	ln.Balance = newBalance
	if newBalance.IsZero() {
		ln.Status = loan.StatusPaid
	}

	pay := loan.Payment{
		LoanID: ln.ID,
		Amount: amount,
		Method: method,
		Date:   date.UTC(),
		Late:   s.isLate(date),
	}
	interest := loan.InterestPortion(ln.Principal, ln.InterestRate, ln.TermMonths, amount)

	updated, recorded, err := s.ledger.ApplyLoanPayment(ctx, ln, pay, interest)
	if err != nil {
		return loan.Loan{}, loan.Payment{}, fmt.Errorf("record payment on loan %s: %w", ln.ID, err)
	}
	s.log.Infof("payment %s of %s recorded on loan %s (balance %s)", recorded.ID, amount, updated.ID, updated.Balance)
	metrics.RecordLoanPayment(string(updated.Status))
	return updated, recorded, nil
}

// MarkDefaulted flags an active loan the member can no longer service.
func (s *Service) MarkDefaulted(ctx context.Context, loanID, adminID string) (loan.Loan, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return loan.Loan{}, err
	}
	ln, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("get loan: %w", err)
	}
	if ln.Status != loan.StatusActive {
		return loan.Loan{}, errs.InvalidState("loan", ln.ID, "cannot default from status %q", ln.Status)
	}

	ln.Status = loan.StatusDefaulted
	updated, err := s.store.UpdateLoan(ctx, ln)
	if err != nil {
		return loan.Loan{}, fmt.Errorf("default loan %s: %w", ln.ID, err)
	}
	s.log.Warnf("loan %s marked defaulted with balance %s", updated.ID, updated.Balance)
	return updated, nil
}

// Get retrieves a loan.
func (s *Service) Get(ctx context.Context, id string) (loan.Loan, error) {
	return s.store.GetLoan(ctx, id)
}

// List returns loans, optionally filtered by member.
func (s *Service) List(ctx context.Context, memberID string) ([]loan.Loan, error) {
	return s.store.ListLoans(ctx, memberID)
}

// ListByStatus returns loans in a given lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status loan.Status) ([]loan.Loan, error) {
	return s.store.ListLoansByStatus(ctx, status)
}

// Payments returns the repayment trail of a loan.
func (s *Service) Payments(ctx context.Context, loanID string) ([]loan.Payment, error) {
	return s.store.ListPayments(ctx, loanID)
}

func (s *Service) validateRequest(ctx context.Context, memberID string, amount decimal.Decimal, purpose string, termMonths int) (member.Member, error) {
	if !amount.IsPositive() {
		return member.Member{}, errs.Validation("loan", "", "amount must be positive")
	}
	if amount.LessThan(s.policy.MinLoanAmount) || amount.GreaterThan(s.policy.MaxLoanAmount) {
		return member.Member{}, errs.Validation("loan", "", "amount %s is outside the allowed range %s-%s", amount, s.policy.MinLoanAmount, s.policy.MaxLoanAmount)
	}
	if !s.policy.AllowsTerm(termMonths) {
		return member.Member{}, errs.Validation("loan", "", "term of %d months is not offered", termMonths)
	}
	if strings.TrimSpace(purpose) == "" {
		return member.Member{}, errs.Validation("loan", "", "purpose is required")
	}

	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return member.Member{}, errs.Validation("loan", "", "unknown member %s", memberID)
	}

	ceiling := m.ShareCapital.Mul(s.policy.MaxLoanMultiplier)
	if amount.GreaterThan(ceiling) {
		return member.Member{}, errs.Validation("loan", "", "amount %s exceeds %sx share capital (%s)", amount, s.policy.MaxLoanMultiplier, ceiling)
	}
	return m, nil
}

func (s *Service) requireAdmin(ctx context.Context, id string) (member.Member, error) {
	m, err := s.members.GetMember(ctx, id)
	if err != nil {
		return member.Member{}, errs.Validation("loan", "", "unknown admin %s", id)
	}
	if !m.IsAdmin() {
		return member.Member{}, errs.Validation("loan", "", "member %s is not an admin", id)
	}
	return m, nil
}

// isLate flags payments made past the monthly loan due day plus the grace
// window.
func (s *Service) isLate(date time.Time) bool {
	return date.Day() > s.policy.LoanDueDay+s.policy.LateGraceDays
}
