package dividend

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestTracking accumulates one member's loan interest paid within a
// calendar year, and the dividend computed for them at year end.
type InterestTracking struct {
	ID                string          `json:"id"`
	MemberID          string          `json:"member_id"`
	Year              int             `json:"year"`
	TotalInterestPaid decimal.Decimal `json:"total_interest_paid"`
	QuotaMet          bool            `json:"quota_met"`
	DividendAmount    decimal.Decimal `json:"dividend_amount"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Status is the distribution lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusCalculated  Status = "calculated"
	StatusDistributed Status = "distributed"
)

// Distribution is the year-end dividend run for one year.
type Distribution struct {
	ID               string          `json:"id"`
	Year             int             `json:"year"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	QuotaMembers     int             `json:"quota_members"`
	FullDividend     decimal.Decimal `json:"full_dividend"`
	ProjectedPayout  decimal.Decimal `json:"projected_payout"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	Status           Status          `json:"status"`
	CalculatedAt     time.Time       `json:"calculated_at,omitempty"`
	DistributedAt    time.Time       `json:"distributed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Share computes one member's dividend. Quota-meeting members receive the
// full dividend; members below quota with some interest receive a pro-rated
// share; members with no interest receive nothing. The result never exceeds
// the full dividend.
func Share(interestPaid, quota, fullDividend decimal.Decimal) decimal.Decimal {
	if !interestPaid.IsPositive() || !fullDividend.IsPositive() {
		return decimal.Zero
	}
	if interestPaid.GreaterThanOrEqual(quota) {
		return fullDividend
	}
	return interestPaid.Div(quota).Mul(fullDividend).Round(2)
}
