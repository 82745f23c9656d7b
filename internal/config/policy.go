package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
)

// policyFile mirrors policy.Policy with scalar YAML types. Amounts are read
// as strings so "0.2" survives without float rounding.
type policyFile struct {
	ManagementFeePct      string `yaml:"management_fee_pct"`
	AdminCommissionPct    string `yaml:"admin_commission_pct"`
	MembershipFeeAmount   string `yaml:"membership_fee_amount"`
	MinimumContribution   string `yaml:"minimum_contribution"`
	InterestRatePerMonth  string `yaml:"interest_rate_per_month"`
	LoanTermOptions       []int  `yaml:"loan_term_options"`
	MinLoanAmount         string `yaml:"min_loan_amount"`
	MaxLoanAmount         string `yaml:"max_loan_amount"`
	MaxLoanMultiplier     string `yaml:"max_loan_multiplier"`
	MinLoanPayment        string `yaml:"min_loan_payment"`
	RequiredInterestQuota string `yaml:"required_interest_quota"`
	WithdrawalWaitingDays *int   `yaml:"withdrawal_waiting_days"`
	ReserveRatio          string `yaml:"reserve_ratio"`
	LoanDueDay            *int   `yaml:"loan_due_day"`
	LateGraceDays         *int   `yaml:"late_grace_days"`
	YearEndPayoutDate     string `yaml:"year_end_payout_date"`
}

// LoadPolicy reads the policy YAML at path and overlays it onto the standing
// defaults. An empty path returns the defaults unchanged.
func LoadPolicy(path string) (policy.Policy, error) {
	pol := policy.Default()
	if path == "" {
		return pol, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return policy.Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	assign := func(dst *decimal.Decimal, raw, field string) error {
		if raw == "" {
			return nil
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("policy %s: %w", field, err)
		}
		*dst = value
		return nil
	}

	for _, step := range []error{
		assign(&pol.ManagementFeePct, file.ManagementFeePct, "management_fee_pct"),
		assign(&pol.AdminCommissionPct, file.AdminCommissionPct, "admin_commission_pct"),
		assign(&pol.MembershipFeeAmount, file.MembershipFeeAmount, "membership_fee_amount"),
		assign(&pol.MinimumContribution, file.MinimumContribution, "minimum_contribution"),
		assign(&pol.InterestRatePerMonth, file.InterestRatePerMonth, "interest_rate_per_month"),
		assign(&pol.MinLoanAmount, file.MinLoanAmount, "min_loan_amount"),
		assign(&pol.MaxLoanAmount, file.MaxLoanAmount, "max_loan_amount"),
		assign(&pol.MaxLoanMultiplier, file.MaxLoanMultiplier, "max_loan_multiplier"),
		assign(&pol.MinLoanPayment, file.MinLoanPayment, "min_loan_payment"),
		assign(&pol.RequiredInterestQuota, file.RequiredInterestQuota, "required_interest_quota"),
		assign(&pol.ReserveRatio, file.ReserveRatio, "reserve_ratio"),
	} {
		if step != nil {
			return policy.Policy{}, step
		}
	}

	if len(file.LoanTermOptions) > 0 {
		pol.LoanTermOptions = file.LoanTermOptions
	}
	if file.WithdrawalWaitingDays != nil {
		pol.WithdrawalWaitingDays = *file.WithdrawalWaitingDays
	}
	if file.LoanDueDay != nil {
		pol.LoanDueDay = *file.LoanDueDay
	}
	if file.LateGraceDays != nil {
		pol.LateGraceDays = *file.LateGraceDays
	}
	if file.YearEndPayoutDate != "" {
		pol.YearEndPayoutDate = file.YearEndPayoutDate
	}

	if err := pol.Validate(); err != nil {
		return policy.Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return pol, nil
}
