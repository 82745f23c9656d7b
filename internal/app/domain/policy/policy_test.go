package policy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitContribution(t *testing.T) {
	p := Default()
	split := p.SplitContribution(decimal.NewFromInt(1000))

	if !split.ManagementFee.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("management fee: %s", split.ManagementFee)
	}
	if !split.AdminCommission.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("admin commission: %s", split.AdminCommission)
	}
	if !split.PlatformShare.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("platform share: %s", split.PlatformShare)
	}
	if !split.NetCapital.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("net capital: %s", split.NetCapital)
	}
}

func TestSplitContributionIsExact(t *testing.T) {
	p := Default()
	for _, raw := range []string{"1000", "123.45", "999.99", "100.01", "33333.33"} {
		gross := decimal.RequireFromString(raw)
		split := p.SplitContribution(gross)

		if !split.ManagementFee.Add(split.NetCapital).Equal(gross) {
			t.Fatalf("gross %s: fee %s + net %s does not reconstruct gross",
				gross, split.ManagementFee, split.NetCapital)
		}
		if !split.AdminCommission.Add(split.PlatformShare).Equal(split.ManagementFee) {
			t.Fatalf("gross %s: commission %s + platform %s does not reconstruct fee %s",
				gross, split.AdminCommission, split.PlatformShare, split.ManagementFee)
		}
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default policy should validate: %v", err)
	}
}

func TestValidateRejectsBadBounds(t *testing.T) {
	p := Default()
	p.MaxLoanAmount = decimal.NewFromInt(10)
	if err := p.Validate(); err == nil {
		t.Fatal("expected inconsistent loan bounds to be rejected")
	}

	p = Default()
	p.ReserveRatio = decimal.NewFromInt(1)
	if err := p.Validate(); err == nil {
		t.Fatal("expected reserve ratio of 1 to be rejected")
	}

	p = Default()
	p.LoanTermOptions = nil
	if err := p.Validate(); err == nil {
		t.Fatal("expected empty term options to be rejected")
	}
}

func TestAllowsTerm(t *testing.T) {
	p := Default()
	if !p.AllowsTerm(6) {
		t.Fatal("6 months should be allowed")
	}
	if p.AllowsTerm(9) {
		t.Fatal("9 months should not be allowed")
	}
}
