package contribution

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks a contribution through admin review.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Method is the payment channel a contribution arrived through.
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodGCash        Method = "gcash"
	MethodPayMaya      Method = "paymaya"
)

// ValidMethod reports whether m is a recognised payment method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodGCash, MethodPayMaya:
		return true
	}
	return false
}

// SourceStatus returns the only status a contribution may hold before moving
// to the given one. Stores use it to predicate status flips so a review
// decision applies at most once.
func SourceStatus(to Status) (Status, bool) {
	switch to {
	case StatusApproved, StatusRejected:
		return StatusPending, true
	}
	return "", false
}

// Contribution is a member's capital deposit. Gross is what the member paid;
// Net is what lands in share capital after the management fee. Approved
// contributions are immutable; corrections are new negative entries.
type Contribution struct {
	ID         string          `json:"id"`
	MemberID   string          `json:"member_id"`
	Gross      decimal.Decimal `json:"gross"`
	Net        decimal.Decimal `json:"net"`
	Method     Method          `json:"method"`
	Status     Status          `json:"status"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes,omitempty"`
	ApprovedBy string          `json:"approved_by,omitempty"`
	ApprovedAt time.Time       `json:"approved_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
