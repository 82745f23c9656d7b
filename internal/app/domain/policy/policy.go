package policy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Policy holds the cooperative's configurable business constants. A single
// policy applies to the whole circle; per-group overrides are loaded at
// startup, not mutated at runtime.
type Policy struct {
	ManagementFeePct      decimal.Decimal `yaml:"management_fee_pct"`
	AdminCommissionPct    decimal.Decimal `yaml:"admin_commission_pct"`
	MembershipFeeAmount   decimal.Decimal `yaml:"membership_fee_amount"`
	MinimumContribution   decimal.Decimal `yaml:"minimum_contribution"`
	InterestRatePerMonth  decimal.Decimal `yaml:"interest_rate_per_month"`
	LoanTermOptions       []int           `yaml:"loan_term_options"`
	MinLoanAmount         decimal.Decimal `yaml:"min_loan_amount"`
	MaxLoanAmount         decimal.Decimal `yaml:"max_loan_amount"`
	MaxLoanMultiplier     decimal.Decimal `yaml:"max_loan_multiplier"`
	MinLoanPayment        decimal.Decimal `yaml:"min_loan_payment"`
	RequiredInterestQuota decimal.Decimal `yaml:"required_interest_quota"`
	WithdrawalWaitingDays int             `yaml:"withdrawal_waiting_days"`
	ReserveRatio          decimal.Decimal `yaml:"reserve_ratio"`
	LoanDueDay            int             `yaml:"loan_due_day"`
	LateGraceDays         int             `yaml:"late_grace_days"`
	YearEndPayoutDate     string          `yaml:"year_end_payout_date"`
}

// Default returns the standing policy of the circle.
func Default() Policy {
	return Policy{
		ManagementFeePct:      decimal.NewFromInt(10),
		AdminCommissionPct:    decimal.NewFromInt(5),
		MembershipFeeAmount:   decimal.NewFromInt(500),
		MinimumContribution:   decimal.NewFromInt(100),
		InterestRatePerMonth:  decimal.NewFromInt(2),
		LoanTermOptions:       []int{3, 6, 12},
		MinLoanAmount:         decimal.NewFromInt(1000),
		MaxLoanAmount:         decimal.NewFromInt(50000),
		MaxLoanMultiplier:     decimal.NewFromInt(3),
		MinLoanPayment:        decimal.NewFromInt(100),
		RequiredInterestQuota: decimal.NewFromInt(5000),
		WithdrawalWaitingDays: 30,
		ReserveRatio:          decimal.NewFromFloat(0.2),
		LoanDueDay:            5,
		LateGraceDays:         5,
		YearEndPayoutDate:     "12-20",
	}
}

// Validate rejects policies that would make the ledger arithmetic meaningless.
func (p Policy) Validate() error {
	hundred := decimal.NewFromInt(100)
	if p.ManagementFeePct.IsNegative() || p.ManagementFeePct.GreaterThan(hundred) {
		return fmt.Errorf("management fee percentage must be within [0, 100]")
	}
	if p.AdminCommissionPct.IsNegative() || p.AdminCommissionPct.GreaterThan(hundred) {
		return fmt.Errorf("admin commission percentage must be within [0, 100]")
	}
	if !p.MembershipFeeAmount.IsPositive() {
		return fmt.Errorf("membership fee amount must be positive")
	}
	if !p.InterestRatePerMonth.IsPositive() {
		return fmt.Errorf("interest rate per month must be positive")
	}
	if len(p.LoanTermOptions) == 0 {
		return fmt.Errorf("at least one loan term option is required")
	}
	for _, term := range p.LoanTermOptions {
		if term <= 0 {
			return fmt.Errorf("loan term options must be positive months")
		}
	}
	if !p.MinLoanAmount.IsPositive() || p.MaxLoanAmount.LessThan(p.MinLoanAmount) {
		return fmt.Errorf("loan amount bounds are inconsistent")
	}
	if !p.MaxLoanMultiplier.IsPositive() {
		return fmt.Errorf("max loan multiplier must be positive")
	}
	if !p.RequiredInterestQuota.IsPositive() {
		return fmt.Errorf("required loan interest quota must be positive")
	}
	if p.WithdrawalWaitingDays < 0 {
		return fmt.Errorf("withdrawal waiting period cannot be negative")
	}
	if p.ReserveRatio.IsNegative() || p.ReserveRatio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("reserve ratio must be within [0, 1)")
	}
	return nil
}

// AllowsTerm reports whether the given term length is one of the configured
// options.
func (p Policy) AllowsTerm(months int) bool {
	for _, term := range p.LoanTermOptions {
		if term == months {
			return true
		}
	}
	return false
}

// FeeSplit is the breakdown of a gross contribution. The components always
// sum back to the gross amount.
type FeeSplit struct {
	ManagementFee   decimal.Decimal
	AdminCommission decimal.Decimal
	PlatformShare   decimal.Decimal
	NetCapital      decimal.Decimal
}

// SplitContribution computes the fee breakdown for a gross contribution.
// Components are rounded to centavos; remainders stay with the counterpart
// leg so the split is exact.
func (p Policy) SplitContribution(gross decimal.Decimal) FeeSplit {
	hundred := decimal.NewFromInt(100)
	managementFee := gross.Mul(p.ManagementFeePct).Div(hundred).Round(2)
	adminCommission := managementFee.Mul(p.AdminCommissionPct).Div(hundred).Round(2)
	return FeeSplit{
		ManagementFee:   managementFee,
		AdminCommission: adminCommission,
		PlatformShare:   managementFee.Sub(adminCommission),
		NetCapital:      gross.Sub(managementFee),
	}
}
