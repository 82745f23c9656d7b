package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/contribution"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/dividend"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/loan"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/withdrawal"
)

// MemberStore persists members and their capital journal.
type MemberStore interface {
	CreateMember(ctx context.Context, m member.Member) (member.Member, error)
	UpdateMember(ctx context.Context, m member.Member) (member.Member, error)
	GetMember(ctx context.Context, id string) (member.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (member.Member, error)
	ListMembers(ctx context.Context) ([]member.Member, error)

	ListCapitalEntries(ctx context.Context, memberID string) ([]member.CapitalEntry, error)
	HasCapitalEntry(ctx context.Context, memberID, referenceType, referenceID string) (bool, error)
	LastCapitalActivity(ctx context.Context, memberID string) (time.Time, error)
}

// ContributionStore persists contribution records.
type ContributionStore interface {
	CreateContribution(ctx context.Context, c contribution.Contribution) (contribution.Contribution, error)
	GetContribution(ctx context.Context, id string) (contribution.Contribution, error)
	ListContributions(ctx context.Context, memberID string) ([]contribution.Contribution, error)
}

// LoanStore persists loans and their payments. UpdateLoan enforces the
// loan's optimistic version: a stale write fails with a conflict.
type LoanStore interface {
	CreateLoan(ctx context.Context, ln loan.Loan) (loan.Loan, error)
	UpdateLoan(ctx context.Context, ln loan.Loan) (loan.Loan, error)
	GetLoan(ctx context.Context, id string) (loan.Loan, error)
	ListLoans(ctx context.Context, memberID string) ([]loan.Loan, error)
	ListLoansByStatus(ctx context.Context, status loan.Status) ([]loan.Loan, error)

	ListPayments(ctx context.Context, loanID string) ([]loan.Payment, error)
}

// WalletStore persists earnings wallets and their entry trail. Balances are
// only moved through postings; there is no direct balance setter.
type WalletStore interface {
	CreateWallet(ctx context.Context, w revenue.Wallet) (revenue.Wallet, error)
	GetWallet(ctx context.Context, id string) (revenue.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID string, ownerType revenue.OwnerType) (revenue.Wallet, error)
	ListWallets(ctx context.Context) ([]revenue.Wallet, error)
	ListWalletEntries(ctx context.Context, walletID string) ([]revenue.Entry, error)

	ListMembershipFees(ctx context.Context) ([]revenue.MembershipFee, error)
	ListServiceFeeTransactions(ctx context.Context, adminOwnerID string) ([]revenue.ServiceFeeTransaction, error)
}

// DividendStore persists interest tracking and year-end distributions.
type DividendStore interface {
	UpsertInterestTracking(ctx context.Context, t dividend.InterestTracking) (dividend.InterestTracking, error)
	GetInterestTracking(ctx context.Context, memberID string, year int) (dividend.InterestTracking, error)
	ListInterestTracking(ctx context.Context, year int) ([]dividend.InterestTracking, error)

	CreateDistribution(ctx context.Context, d dividend.Distribution) (dividend.Distribution, error)
	UpdateDistribution(ctx context.Context, d dividend.Distribution) (dividend.Distribution, error)
	GetDistribution(ctx context.Context, id string) (dividend.Distribution, error)
	GetDistributionByYear(ctx context.Context, year int) (dividend.Distribution, error)
	ListDistributions(ctx context.Context) ([]dividend.Distribution, error)
}

// WithdrawalStore persists withdrawal requests.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, req withdrawal.Request) (withdrawal.Request, error)
	UpdateWithdrawal(ctx context.Context, req withdrawal.Request) (withdrawal.Request, error)
	GetWithdrawal(ctx context.Context, id string) (withdrawal.Request, error)
	ListWithdrawals(ctx context.Context, memberID string) ([]withdrawal.Request, error)
	ListWithdrawalsByStatus(ctx context.Context, status withdrawal.Status) ([]withdrawal.Request, error)
}

// Posting is one atomic multi-record mutation. Every capital entry adjusts
// its member's share capital and every wallet entry adjusts its wallet's
// balance; the optional record fields ride in the same transaction. A
// posting either applies completely or not at all.
type Posting struct {
	InsertContribution *contribution.Contribution
	UpdateContribution *contribution.Contribution
	CapitalEntries     []member.CapitalEntry
	WalletEntries      []revenue.Entry
	MembershipFee      *revenue.MembershipFee
	ServiceFee         *revenue.ServiceFeeTransaction
	UpdateWithdrawal   *withdrawal.Request
	UpdateDistribution *dividend.Distribution
}

// LedgerStore applies atomic postings spanning multiple records.
type LedgerStore interface {
	ApplyPosting(ctx context.Context, p Posting) error

	// ApplyLoanPayment atomically updates the loan (version-checked),
	// appends the payment and accrues the interest portion onto the
	// member's tracking row for the payment's year.
	ApplyLoanPayment(ctx context.Context, ln loan.Loan, pay loan.Payment, interest decimal.Decimal) (loan.Loan, loan.Payment, error)
}
