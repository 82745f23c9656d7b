package revenue

import (
	"time"

	"github.com/shopspring/decimal"
)

// OwnerType distinguishes individual admin wallets from the single platform
// wallet.
type OwnerType string

const (
	OwnerAdmin    OwnerType = "admin"
	OwnerPlatform OwnerType = "platform"
)

// Wallet accumulates an owner's earnings. Its balance is the running sum of
// the entries addressed to it; any divergence is a reconciliation defect.
type Wallet struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id,omitempty"`
	OwnerType OwnerType       `json:"owner_type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EarningType tags a wallet entry with the fee event that produced it.
type EarningType string

const (
	EarningCommission      EarningType = "commission"
	EarningPlatformShare   EarningType = "platform_share"
	EarningMembershipFee   EarningType = "membership_fee"
	EarningServiceFeeShare EarningType = "service_fee_share"
	EarningManagementFee   EarningType = "management_fee"
)

// Entry is one signed movement on a wallet.
type Entry struct {
	ID            string          `json:"id"`
	WalletID      string          `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Type          EarningType     `json:"type"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MembershipFee records the one-time joining fee collected from a member.
type MembershipFee struct {
	ID          string          `json:"id"`
	MemberID    string          `json:"member_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	CollectedBy string          `json:"collected_by,omitempty"`
	CollectedAt time.Time       `json:"collected_at"`
}

// ServiceFeeTransaction records a fee-bearing service rendered through an
// admin's facilities (e-load, bills payment and the like).
type ServiceFeeTransaction struct {
	ID           string          `json:"id"`
	MemberID     string          `json:"member_id"`
	Type         string          `json:"type"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	ServiceFee   decimal.Decimal `json:"service_fee"`
	AdminOwnerID string          `json:"admin_owner_id"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
