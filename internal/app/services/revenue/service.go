package revenue

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Service owns the earnings wallets: service-fee transactions, earning
// summaries and reconciliation of balances against the entry trail.
type Service struct {
	members storage.MemberStore
	wallets storage.WalletStore
	ledger  storage.LedgerStore
	policy  policy.Policy
	log     *logger.Logger
}

// New constructs a revenue service.
func New(members storage.MemberStore, wallets storage.WalletStore, ledger storage.LedgerStore, pol policy.Policy, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("revenue")
	}
	return &Service{
		members: members,
		wallets: wallets,
		ledger:  ledger,
		policy:  pol,
		log:     log,
	}
}

// ProcessServiceFee records a fee-bearing service transaction rendered
// through an admin's facilities. The fee is split like the management fee:
// the admin commission percentage goes to the facility owner, the remainder
// to the platform. Both credits and the transaction record post atomically.
func (s *Service) ProcessServiceFee(ctx context.Context, memberID, txType string, baseAmount, serviceFee decimal.Decimal, adminOwnerID, description string) (revenue.ServiceFeeTransaction, error) {
	txType = strings.TrimSpace(txType)
	if txType == "" {
		return revenue.ServiceFeeTransaction{}, errs.Validation("service_fee", "", "transaction type is required")
	}
	if baseAmount.IsNegative() {
		return revenue.ServiceFeeTransaction{}, errs.Validation("service_fee", "", "base amount cannot be negative")
	}
	if !serviceFee.IsPositive() {
		return revenue.ServiceFeeTransaction{}, errs.Validation("service_fee", "", "service fee must be positive")
	}
	if _, err := s.members.GetMember(ctx, memberID); err != nil {
		return revenue.ServiceFeeTransaction{}, errs.Validation("service_fee", "", "unknown member %s", memberID)
	}
	adminWallet, err := s.wallets.GetWalletByOwner(ctx, adminOwnerID, revenue.OwnerAdmin)
	if err != nil {
		return revenue.ServiceFeeTransaction{}, errs.Validation("service_fee", "", "no admin wallet for %s", adminOwnerID)
	}
	platformWallet, err := s.ensurePlatformWallet(ctx)
	if err != nil {
		return revenue.ServiceFeeTransaction{}, err
	}

	adminShare := serviceFee.Mul(s.policy.AdminCommissionPct).Div(decimal.NewFromInt(100)).Round(2)
	platformShare := serviceFee.Sub(adminShare)

	tx := revenue.ServiceFeeTransaction{
		ID:           uuid.NewString(),
		MemberID:     memberID,
		Type:         txType,
		BaseAmount:   baseAmount,
		ServiceFee:   serviceFee,
		AdminOwnerID: adminOwnerID,
		Description:  strings.TrimSpace(description),
	}

	posting := storage.Posting{ServiceFee: &tx}
	if adminShare.IsPositive() {
		posting.WalletEntries = append(posting.WalletEntries, revenue.Entry{
			WalletID:      adminWallet.ID,
			Amount:        adminShare,
			Type:          revenue.EarningServiceFeeShare,
			ReferenceType: "service_fee_transaction",
			ReferenceID:   tx.ID,
			Description:   fmt.Sprintf("%s service fee share", txType),
		})
	}
	if platformShare.IsPositive() {
		posting.WalletEntries = append(posting.WalletEntries, revenue.Entry{
			WalletID:      platformWallet.ID,
			Amount:        platformShare,
			Type:          revenue.EarningPlatformShare,
			ReferenceType: "service_fee_transaction",
			ReferenceID:   tx.ID,
			Description:   fmt.Sprintf("%s platform share", txType),
		})
	}

	if err := s.ledger.ApplyPosting(ctx, posting); err != nil {
		return revenue.ServiceFeeTransaction{}, fmt.Errorf("process service fee: %w", err)
	}
	s.log.Infof("service fee transaction %s (%s) processed for member %s", tx.ID, txType, memberID)
	return tx, nil
}

// EarningsSummary totals an admin's wallet entries by earning type.
type EarningsSummary struct {
	WalletID string
	Total    decimal.Decimal
	ByType   map[revenue.EarningType]decimal.Decimal
}

// Earnings summarises an admin's earnings from their wallet entry trail.
func (s *Service) Earnings(ctx context.Context, adminID string) (EarningsSummary, error) {
	wallet, err := s.wallets.GetWalletByOwner(ctx, adminID, revenue.OwnerAdmin)
	if err != nil {
		return EarningsSummary{}, fmt.Errorf("admin wallet: %w", err)
	}
	entries, err := s.wallets.ListWalletEntries(ctx, wallet.ID)
	if err != nil {
		return EarningsSummary{}, fmt.Errorf("list wallet entries: %w", err)
	}

	summary := EarningsSummary{
		WalletID: wallet.ID,
		ByType:   make(map[revenue.EarningType]decimal.Decimal),
	}
	for _, entry := range entries {
		summary.Total = summary.Total.Add(entry.Amount)
		summary.ByType[entry.Type] = summary.ByType[entry.Type].Add(entry.Amount)
	}
	return summary, nil
}

// Reconciliation is the result of checking a wallet against its entries.
type Reconciliation struct {
	WalletID   string
	Balance    decimal.Decimal
	EntryTotal decimal.Decimal
	Drift      decimal.Decimal
}

// Reconcile recomputes a wallet's balance from its entry trail. Any drift
// means a write bypassed the ledger and must be investigated.
func (s *Service) Reconcile(ctx context.Context, walletID string) (Reconciliation, error) {
	wallet, err := s.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("get wallet: %w", err)
	}
	entries, err := s.wallets.ListWalletEntries(ctx, walletID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("list wallet entries: %w", err)
	}

	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount)
	}
	rec := Reconciliation{
		WalletID:   walletID,
		Balance:    wallet.Balance,
		EntryTotal: total,
		Drift:      wallet.Balance.Sub(total),
	}
	if !rec.Drift.IsZero() {
		s.log.Warnf("wallet %s out of reconciliation: balance %s, entries %s", walletID, rec.Balance, rec.EntryTotal)
	}
	return rec, nil
}

// Wallet retrieves a wallet by owner.
func (s *Service) Wallet(ctx context.Context, ownerID string, ownerType revenue.OwnerType) (revenue.Wallet, error) {
	return s.wallets.GetWalletByOwner(ctx, ownerID, ownerType)
}

// PlatformWallet retrieves the platform wallet, creating it on first use.
func (s *Service) PlatformWallet(ctx context.Context) (revenue.Wallet, error) {
	return s.ensurePlatformWallet(ctx)
}

// ListWallets returns every wallet.
func (s *Service) ListWallets(ctx context.Context) ([]revenue.Wallet, error) {
	return s.wallets.ListWallets(ctx)
}

// Entries returns a wallet's entry trail.
func (s *Service) Entries(ctx context.Context, walletID string) ([]revenue.Entry, error) {
	return s.wallets.ListWalletEntries(ctx, walletID)
}

// ServiceFeeTransactions lists service-fee transactions, optionally filtered
// by the admin facility owner.
func (s *Service) ServiceFeeTransactions(ctx context.Context, adminOwnerID string) ([]revenue.ServiceFeeTransaction, error) {
	return s.wallets.ListServiceFeeTransactions(ctx, adminOwnerID)
}

// MembershipFees lists collected membership fees.
func (s *Service) MembershipFees(ctx context.Context) ([]revenue.MembershipFee, error) {
	return s.wallets.ListMembershipFees(ctx)
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
