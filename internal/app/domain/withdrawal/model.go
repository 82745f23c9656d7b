package withdrawal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks a withdrawal request through admin review and payout.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// SourceStatus returns the only status a request may hold before moving to
// the given one. Stores use it to predicate status flips so a review decision
// or payout applies at most once.
func SourceStatus(to Status) (Status, bool) {
	switch to {
	case StatusApproved, StatusRejected:
		return StatusPending, true
	case StatusCompleted:
		return StatusApproved, true
	}
	return "", false
}

// Request is a member's application to take capital out of the circle.
// EligibleAt gates the request behind the waiting period since the member's
// last capital activity.
type Request struct {
	ID          string          `json:"id"`
	MemberID    string          `json:"member_id"`
	Amount      decimal.Decimal `json:"amount"`
	RequestedAt time.Time       `json:"requested_at"`
	EligibleAt  time.Time       `json:"eligible_at"`
	Status      Status          `json:"status"`
	AdminNotes  string          `json:"admin_notes,omitempty"`
	ReviewedBy  string          `json:"reviewed_by,omitempty"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Eligibility is the result of a withdrawal eligibility check.
type Eligibility struct {
	MemberID         string          `json:"member_id"`
	Eligible         bool            `json:"eligible"`
	EligibleAt       time.Time       `json:"eligible_at"`
	LastActivityAt   time.Time       `json:"last_activity_at"`
	AvailableCapital decimal.Decimal `json:"available_capital"`
}
