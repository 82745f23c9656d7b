package loan

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTotalOwed(t *testing.T) {
	owed := TotalOwed(decimal.NewFromInt(10000), decimal.NewFromInt(2), 12)
	if !owed.Equal(decimal.NewFromInt(12400)) {
		t.Fatalf("10000 at 2%%/month over 12 months should owe 12400, got %s", owed)
	}

	owed = TotalOwed(decimal.NewFromInt(5000), decimal.NewFromInt(2), 3)
	if !owed.Equal(decimal.NewFromInt(5300)) {
		t.Fatalf("5000 at 2%%/month over 3 months should owe 5300, got %s", owed)
	}
}

func TestTotalInterest(t *testing.T) {
	interest := TotalInterest(decimal.NewFromInt(10000), decimal.NewFromInt(2), 12)
	if !interest.Equal(decimal.NewFromInt(2400)) {
		t.Fatalf("unexpected interest: %s", interest)
	}
}

func TestInterestPortionProRata(t *testing.T) {
	// 2000 against a 12400 obligation carries 2000 × 2400/12400 of interest.
	portion := InterestPortion(decimal.NewFromInt(10000), decimal.NewFromInt(2), 12, decimal.NewFromInt(2000))
	want := decimal.RequireFromString("387.10")
	if !portion.Equal(want) {
		t.Fatalf("interest portion: want %s, got %s", want, portion)
	}

	// A full payoff attributes the full interest, within rounding.
	full := InterestPortion(decimal.NewFromInt(10000), decimal.NewFromInt(2), 12, decimal.NewFromInt(12400))
	if full.Sub(decimal.NewFromInt(2400)).Abs().GreaterThan(Tolerance) {
		t.Fatalf("full payoff should attribute ~2400 interest, got %s", full)
	}
}

func TestApprovalAndRejectionGuards(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusScheduled} {
		if !CanApprove(s) || !CanReject(s) {
			t.Fatalf("status %s should allow approval and rejection", s)
		}
	}
	for _, s := range []Status{StatusActive, StatusPaid, StatusDefaulted, StatusRejected} {
		if CanApprove(s) || CanReject(s) {
			t.Fatalf("status %s should not allow approval or rejection", s)
		}
	}
}
