package contributions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/contribution"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/metrics"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Service records contributions and splits them into member capital, admin
// commission and platform share. All money movement goes through atomic
// ledger postings.
type Service struct {
	members storage.MemberStore
	store   storage.ContributionStore
	wallets storage.WalletStore
	ledger  storage.LedgerStore
	policy  policy.Policy
	log     *logger.Logger
}

// New constructs a contribution service.
func New(members storage.MemberStore, store storage.ContributionStore, wallets storage.WalletStore, ledger storage.LedgerStore, pol policy.Policy, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("contributions")
	}
	return &Service{
		members: members,
		store:   store,
		wallets: wallets,
		ledger:  ledger,
		policy:  pol,
		log:     log,
	}
}

// Record registers a contribution. Recorded by an admin it is approved and
// posted immediately; self-reported it waits in pending until an admin
// approves it. The contribution row, the member's capital credit and both
// wallet credits land in one atomic posting.
func (s *Service) Record(ctx context.Context, memberID string, gross decimal.Decimal, method contribution.Method, date time.Time, recordedBy, notes string) (contribution.Contribution, error) {
	if !gross.IsPositive() {
		return contribution.Contribution{}, errs.Validation("contribution", "", "gross amount must be positive")
	}
	if gross.LessThan(s.policy.MinimumContribution) {
		return contribution.Contribution{}, errs.Validation("contribution", "", "gross amount %s is below the minimum contribution %s", gross, s.policy.MinimumContribution)
	}
	if !contribution.ValidMethod(method) {
		return contribution.Contribution{}, errs.Validation("contribution", "", "unknown payment method %q", method)
	}
	if _, err := s.members.GetMember(ctx, memberID); err != nil {
		return contribution.Contribution{}, errs.Validation("contribution", "", "unknown member %s", memberID)
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	split := s.policy.SplitContribution(gross)
	c := contribution.Contribution{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Gross:    gross,
		Net:      split.NetCapital,
		Method:   method,
		Status:   contribution.StatusPending,
		Date:     date,
		Notes:    notes,
	}

	if recordedBy == "" || recordedBy == memberID {
		created, err := s.store.CreateContribution(ctx, c)
		if err != nil {
			return contribution.Contribution{}, fmt.Errorf("create contribution: %w", err)
		}
		s.log.Infof("contribution %s recorded pending approval", created.ID)
		return created, nil
	}

	admin, err := s.requireAdmin(ctx, recordedBy)
	if err != nil {
		return contribution.Contribution{}, err
	}

	c.Status = contribution.StatusApproved
	c.ApprovedBy = admin.ID
	c.ApprovedAt = time.Now().UTC()

	if err := s.post(ctx, storage.Posting{InsertContribution: &c}, c, split, admin.ID); err != nil {
		return contribution.Contribution{}, err
	}
	s.log.Infof("contribution %s recorded and posted by admin %s", c.ID, admin.ID)
	metrics.RecordContribution(string(c.Status))
	return c, nil
}

// Approve posts a pending contribution. Only pending contributions can be
// approved; approved rows are immutable thereafter.
func (s *Service) Approve(ctx context.Context, contributionID, approverID string) (contribution.Contribution, error) {
	c, err := s.store.GetContribution(ctx, contributionID)
	if err != nil {
		return contribution.Contribution{}, fmt.Errorf("get contribution: %w", err)
	}
	if c.Status != contribution.StatusPending {
		return contribution.Contribution{}, errs.InvalidState("contribution", c.ID, "cannot approve from status %q", c.Status)
	}

	admin, err := s.requireAdmin(ctx, approverID)
	if err != nil {
		return contribution.Contribution{}, err
	}

	split := s.policy.SplitContribution(c.Gross)
	c.Status = contribution.StatusApproved
	c.Net = split.NetCapital
	c.ApprovedBy = admin.ID
	c.ApprovedAt = time.Now().UTC()

	if err := s.post(ctx, storage.Posting{UpdateContribution: &c}, c, split, admin.ID); err != nil {
		return contribution.Contribution{}, err
	}
	s.log.Infof("contribution %s approved by admin %s", c.ID, admin.ID)
	metrics.RecordContribution(string(c.Status))
	return c, nil
}

// Reject declines a pending contribution. No money moves.
func (s *Service) Reject(ctx context.Context, contributionID, approverID, reason string) (contribution.Contribution, error) {
	c, err := s.store.GetContribution(ctx, contributionID)
	if err != nil {
		return contribution.Contribution{}, fmt.Errorf("get contribution: %w", err)
	}
	if c.Status != contribution.StatusPending {
		return contribution.Contribution{}, errs.InvalidState("contribution", c.ID, "cannot reject from status %q", c.Status)
	}
	admin, err := s.requireAdmin(ctx, approverID)
	if err != nil {
		return contribution.Contribution{}, err
	}

	c.Status = contribution.StatusRejected
	c.ApprovedBy = admin.ID
	c.ApprovedAt = time.Now().UTC()
	if reason != "" {
		c.Notes = reason
	}
	if err := s.ledger.ApplyPosting(ctx, storage.Posting{UpdateContribution: &c}); err != nil {
		return contribution.Contribution{}, fmt.Errorf("reject contribution %s: %w", c.ID, err)
	}
	return c, nil
}

// CollectMembershipFee collects the one-time joining fee. The full amount
// goes to the collecting admin's wallet; nothing lands in capital.
func (s *Service) CollectMembershipFee(ctx context.Context, memberID string, amount decimal.Decimal, method contribution.Method, collectedBy string) (revenue.MembershipFee, error) {
	if amount.IsZero() {
		amount = s.policy.MembershipFeeAmount
	}
	if !amount.IsPositive() {
		return revenue.MembershipFee{}, errs.Validation("membership_fee", "", "amount must be positive")
	}
	if !contribution.ValidMethod(method) {
		return revenue.MembershipFee{}, errs.Validation("membership_fee", "", "unknown payment method %q", method)
	}

	m, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return revenue.MembershipFee{}, errs.Validation("membership_fee", "", "unknown member %s", memberID)
	}
	if m.MembershipFeePaid {
		return revenue.MembershipFee{}, errs.InvalidState("membership_fee", memberID, "membership fee already collected")
	}

	admin, err := s.requireAdmin(ctx, collectedBy)
	if err != nil {
		return revenue.MembershipFee{}, err
	}
	adminWallet, err := s.wallets.GetWalletByOwner(ctx, admin.ID, revenue.OwnerAdmin)
	if err != nil {
		return revenue.MembershipFee{}, fmt.Errorf("admin wallet: %w", err)
	}

	fee := revenue.MembershipFee{
		ID:          uuid.NewString(),
		MemberID:    memberID,
		Amount:      amount,
		Method:      string(method),
		CollectedBy: admin.ID,
		CollectedAt: time.Now().UTC(),
	}
	posting := storage.Posting{
		MembershipFee: &fee,
		WalletEntries: []revenue.Entry{{
			WalletID:      adminWallet.ID,
			Amount:        amount,
			Type:          revenue.EarningMembershipFee,
			ReferenceType: "membership_fee",
			ReferenceID:   fee.ID,
			Description:   fmt.Sprintf("membership fee from member %s", memberID),
		}},
	}
	if err := s.ledger.ApplyPosting(ctx, posting); err != nil {
		return revenue.MembershipFee{}, fmt.Errorf("collect membership fee: %w", err)
	}
	s.log.Infof("membership fee %s collected from member %s", fee.ID, memberID)
	return fee, nil
}

// Get retrieves a contribution.
func (s *Service) Get(ctx context.Context, id string) (contribution.Contribution, error) {
	return s.store.GetContribution(ctx, id)
}

// List returns contributions, optionally filtered by member.
func (s *Service) List(ctx context.Context, memberID string) ([]contribution.Contribution, error) {
	return s.store.ListContributions(ctx, memberID)
}

func (s *Service) requireAdmin(ctx context.Context, id string) (member.Member, error) {
	m, err := s.members.GetMember(ctx, id)
	if err != nil {
		return member.Member{}, errs.Validation("contribution", "", "unknown admin %s", id)
	}
	if !m.IsAdmin() {
		return member.Member{}, errs.Validation("contribution", "", "member %s is not an admin", id)
	}
	return m, nil
}

// post assembles and applies the money-moving side of an approved
// contribution: capital to the member, commission to the admin, remainder to
// the platform.
func (s *Service) post(ctx context.Context, posting storage.Posting, c contribution.Contribution, split policy.FeeSplit, adminID string) error {
	adminWallet, err := s.wallets.GetWalletByOwner(ctx, adminID, revenue.OwnerAdmin)
	if err != nil {
		return fmt.Errorf("admin wallet: %w", err)
	}
	platformWallet, err := s.ensurePlatformWallet(ctx)
	if err != nil {
		return err
	}

	posting.CapitalEntries = []member.CapitalEntry{{
		MemberID:      c.MemberID,
		Amount:        split.NetCapital,
		Type:          member.EntryContribution,
		ReferenceType: "contribution",
		ReferenceID:   c.ID,
		Description:   fmt.Sprintf("contribution of %s via %s", c.Gross, c.Method),
	}}
	if split.AdminCommission.IsPositive() {
		posting.WalletEntries = append(posting.WalletEntries, revenue.Entry{
			WalletID:      adminWallet.ID,
			Amount:        split.AdminCommission,
			Type:          revenue.EarningCommission,
			ReferenceType: "contribution",
			ReferenceID:   c.ID,
			Description:   "admin commission on management fee",
		})
	}
	if split.PlatformShare.IsPositive() {
		posting.WalletEntries = append(posting.WalletEntries, revenue.Entry{
			WalletID:      platformWallet.ID,
			Amount:        split.PlatformShare,
			Type:          revenue.EarningPlatformShare,
			ReferenceType: "contribution",
			ReferenceID:   c.ID,
			Description:   "platform share of management fee",
		})
	}

	if err := s.ledger.ApplyPosting(ctx, posting); err != nil {
		return fmt.Errorf("post contribution %s: %w", c.ID, err)
	}
	return nil
}

func (s *Service) ensurePlatformWallet(ctx context.Context) (revenue.Wallet, error) {
	w, err := s.wallets.GetWalletByOwner(ctx, "", revenue.OwnerPlatform)
	if err == nil {
		return w, nil
	}
	w, err = s.wallets.CreateWallet(ctx, revenue.Wallet{OwnerType: revenue.OwnerPlatform})
	if err != nil {
		return revenue.Wallet{}, fmt.Errorf("create platform wallet: %w", err)
	}
	return w, nil
}
