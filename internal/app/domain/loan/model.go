package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the loan lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaid      Status = "paid"
	StatusDefaulted Status = "defaulted"
	StatusRejected  Status = "rejected"
)

// Tolerance is the accepted rounding slack when comparing payments against
// an outstanding balance (one centavo).
var Tolerance = decimal.New(1, -2)

// Loan is a member borrowing against the circle's pooled capital. Balance is
// the outstanding amount including interest; it is always reconstructible as
// TotalOwed minus the sum of recorded payments. Version guards concurrent
// balance updates.
type Loan struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"member_id"`
	Principal     decimal.Decimal `json:"principal"`
	Purpose       string          `json:"purpose"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	TermMonths    int             `json:"term_months"`
	Status        Status          `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
	ScheduledDate time.Time       `json:"scheduled_date,omitempty"`
	ApprovedBy    string          `json:"approved_by,omitempty"`
	ApprovedAt    time.Time       `json:"approved_at,omitempty"`
	DisbursedAt   time.Time       `json:"disbursed_at,omitempty"`
	RejectedBy    string          `json:"rejected_by,omitempty"`
	RejectReason  string          `json:"reject_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
}

// Payment is one repayment against a loan. Append-only.
type Payment struct {
	ID        string          `json:"id"`
	LoanID    string          `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Date      time.Time       `json:"date"`
	Late      bool            `json:"late"`
	CreatedAt time.Time       `json:"created_at"`
}

// TotalOwed is the simple-interest repayment obligation:
// principal × (1 + rate/100 × termMonths), rounded to centavos.
func TotalOwed(principal, ratePerMonth decimal.Decimal, termMonths int) decimal.Decimal {
	rate := ratePerMonth.Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(int64(termMonths)))
	return principal.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
}

// TotalInterest is the interest component of the repayment obligation.
func TotalInterest(principal, ratePerMonth decimal.Decimal, termMonths int) decimal.Decimal {
	return TotalOwed(principal, ratePerMonth, termMonths).Sub(principal)
}

// InterestPortion attributes the interest component of a payment, pro-rata
// against the loan's total obligation.
func InterestPortion(principal, ratePerMonth decimal.Decimal, termMonths int, payment decimal.Decimal) decimal.Decimal {
	owed := TotalOwed(principal, ratePerMonth, termMonths)
	if !owed.IsPositive() {
		return decimal.Zero
	}
	interest := owed.Sub(principal)
	return payment.Mul(interest).Div(owed).Round(2)
}

// CanApprove reports whether a loan in status s may be approved.
func CanApprove(s Status) bool { return s == StatusPending || s == StatusScheduled }

// CanReject reports whether a loan in status s may be rejected.
func CanReject(s Status) bool { return s == StatusPending || s == StatusScheduled }
