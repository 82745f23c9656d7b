package withdrawals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/withdrawal"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Service handles capital withdrawal requests: the waiting-period
// eligibility check, admin review and the final capital debit.
type Service struct {
	members     storage.MemberStore
	withdrawals storage.WithdrawalStore
	ledger      storage.LedgerStore
	policy      policy.Policy
	log         *logger.Logger
}

// New constructs a withdrawal service.
func New(members storage.MemberStore, withdrawals storage.WithdrawalStore, ledger storage.LedgerStore, pol policy.Policy, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("withdrawals")
	}
	return &Service{
		members:     members,
		withdrawals: withdrawals,
		ledger:      ledger,
		policy:      pol,
		log:         log,
	}
}

// CheckEligibility reports when a member may withdraw. The waiting period
// counts from the member's last capital activity, or from joining if the
// journal is still empty.
func (s *Service) CheckEligibility(ctx context.Context, memberID string, now time.Time) (withdrawal.Eligibility, error) {
	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return withdrawal.Eligibility{}, errs.Validation("withdrawal", "", "unknown member %s", memberID)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	last, err := s.members.LastCapitalActivity(ctx, memberID)
	if err != nil || last.IsZero() {
		last = m.CreatedAt
	}
	eligibleAt := last.AddDate(0, 0, s.policy.WithdrawalWaitingDays)

	return withdrawal.Eligibility{
		MemberID:         memberID,
		Eligible:         !now.Before(eligibleAt),
		EligibleAt:       eligibleAt,
		LastActivityAt:   last,
		AvailableCapital: m.ShareCapital,
	}, nil
}

// Request files a withdrawal request. The request is accepted at any time
// but carries the eligibility date; approval is gated on it.
func (s *Service) Request(ctx context.Context, memberID string, amount decimal.Decimal, now time.Time) (withdrawal.Request, error) {
	if !amount.IsPositive() {
		return withdrawal.Request{}, errs.Validation("withdrawal", "", "amount must be positive, got %s", amount)
	}
	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return withdrawal.Request{}, errs.Validation("withdrawal", "", "unknown member %s", memberID)
	}
	if amount.GreaterThan(m.ShareCapital) {
		return withdrawal.Request{}, errs.InsufficientFunds("withdrawal", "", "requested %s exceeds share capital %s", amount, m.ShareCapital)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	elig, err := s.CheckEligibility(ctx, memberID, now)
	if err != nil {
		return withdrawal.Request{}, err
	}

	req, err := s.withdrawals.CreateWithdrawal(ctx, withdrawal.Request{
		MemberID:    memberID,
		Amount:      amount,
		RequestedAt: now,
		EligibleAt:  elig.EligibleAt,
		Status:      withdrawal.StatusPending,
	})
	if err != nil {
		return withdrawal.Request{}, fmt.Errorf("create withdrawal: %w", err)
	}
	s.log.Infof("withdrawal %s requested by member %s for %s, eligible %s",
		req.ID, memberID, amount, req.EligibleAt.Format(time.DateOnly))
	return req, nil
}

// Approve marks a pending request as approved. The waiting period must have
// elapsed and the member must still hold enough capital.
func (s *Service) Approve(ctx context.Context, requestID, adminID string, now time.Time) (withdrawal.Request, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return withdrawal.Request{}, err
	}
	req, err := s.withdrawals.GetWithdrawal(ctx, requestID)
	if err != nil {
		return withdrawal.Request{}, errs.Validation("withdrawal", requestID, "unknown withdrawal %s", requestID)
	}
	if req.Status != withdrawal.StatusPending {
		return withdrawal.Request{}, errs.InvalidState("withdrawal", req.ID, "only pending requests can be approved, status is %s", req.Status)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if now.Before(req.EligibleAt) {
		return withdrawal.Request{}, errs.InvalidState("withdrawal", req.ID, "waiting period runs until %s", req.EligibleAt.Format(time.DateOnly))
	}
	m, err := s.members.GetMember(ctx, req.MemberID)
	if err != nil {
		return withdrawal.Request{}, fmt.Errorf("get member: %w", err)
	}
	if req.Amount.GreaterThan(m.ShareCapital) {
		return withdrawal.Request{}, errs.InsufficientFunds("withdrawal", req.ID, "requested %s exceeds share capital %s", req.Amount, m.ShareCapital)
	}

	req.Status = withdrawal.StatusApproved
	req.ReviewedBy = adminID
	req, err = s.withdrawals.UpdateWithdrawal(ctx, req)
	if err != nil {
		return withdrawal.Request{}, fmt.Errorf("update withdrawal: %w", err)
	}
	s.log.Infof("withdrawal %s approved by %s", req.ID, adminID)
	return req, nil
}

// Reject closes a pending request with a reason.
func (s *Service) Reject(ctx context.Context, requestID, adminID, reason string) (withdrawal.Request, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return withdrawal.Request{}, err
	}
	req, err := s.withdrawals.GetWithdrawal(ctx, requestID)
	if err != nil {
		return withdrawal.Request{}, errs.Validation("withdrawal", requestID, "unknown withdrawal %s", requestID)
	}
	if req.Status != withdrawal.StatusPending {
		return withdrawal.Request{}, errs.InvalidState("withdrawal", req.ID, "only pending requests can be rejected, status is %s", req.Status)
	}

	req.Status = withdrawal.StatusRejected
	req.ReviewedBy = adminID
	req.AdminNotes = strings.TrimSpace(reason)
	req, err = s.withdrawals.UpdateWithdrawal(ctx, req)
	if err != nil {
		return withdrawal.Request{}, fmt.Errorf("update withdrawal: %w", err)
	}
	s.log.Infof("withdrawal %s rejected by %s", req.ID, adminID)
	return req, nil
}

// Complete pays out an approved request: the status flip and the capital
// debit post in one atomic posting.
func (s *Service) Complete(ctx context.Context, requestID, adminID string) (withdrawal.Request, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return withdrawal.Request{}, err
	}
	req, err := s.withdrawals.GetWithdrawal(ctx, requestID)
	if err != nil {
		return withdrawal.Request{}, errs.Validation("withdrawal", requestID, "unknown withdrawal %s", requestID)
	}
	if req.Status != withdrawal.StatusApproved {
		return withdrawal.Request{}, errs.InvalidState("withdrawal", req.ID, "only approved requests can be completed, status is %s", req.Status)
	}
	m, err := s.members.GetMember(ctx, req.MemberID)
	if err != nil {
		return withdrawal.Request{}, fmt.Errorf("get member: %w", err)
	}
	if req.Amount.GreaterThan(m.ShareCapital) {
		return withdrawal.Request{}, errs.InsufficientFunds("withdrawal", req.ID, "requested %s exceeds share capital %s", req.Amount, m.ShareCapital)
	}

	req.Status = withdrawal.StatusCompleted
	req.CompletedAt = time.Now().UTC()

	posting := storage.Posting{
		UpdateWithdrawal: &req,
		CapitalEntries: []member.CapitalEntry{{
			MemberID:      req.MemberID,
			Amount:        req.Amount.Neg(),
			Type:          member.EntryWithdrawal,
			ReferenceType: "withdrawal",
			ReferenceID:   req.ID,
			Description:   "capital withdrawal payout",
		}},
	}
	if err := s.ledger.ApplyPosting(ctx, posting); err != nil {
		return withdrawal.Request{}, fmt.Errorf("complete withdrawal: %w", err)
	}
	s.log.Infof("withdrawal %s completed, %s debited from member %s", req.ID, req.Amount, req.MemberID)
	return req, nil
}

// Get retrieves a request by id.
func (s *Service) Get(ctx context.Context, id string) (withdrawal.Request, error) {
	return s.withdrawals.GetWithdrawal(ctx, id)
}

// List returns a member's requests, or every request when memberID is empty.
func (s *Service) List(ctx context.Context, memberID string) ([]withdrawal.Request, error) {
	return s.withdrawals.ListWithdrawals(ctx, memberID)
}

// ListByStatus returns requests in a given status.
func (s *Service) ListByStatus(ctx context.Context, status withdrawal.Status) ([]withdrawal.Request, error) {
	return s.withdrawals.ListWithdrawalsByStatus(ctx, status)
}

func (s *Service) requireAdmin(ctx context.Context, adminID string) error {
	m, err := s.members.GetMember(ctx, adminID)
	if err != nil {
		return errs.Validation("member", adminID, "unknown admin %s", adminID)
	}
	if !m.IsAdmin() {
		return errs.Validation("member", adminID, "member %s is not an admin", adminID)
	}
	return nil
}
