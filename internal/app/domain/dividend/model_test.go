package dividend

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestShare(t *testing.T) {
	quota := decimal.NewFromInt(5000)
	full := decimal.RequireFromString("5714.29")

	if got := Share(decimal.Zero, quota, full); !got.IsZero() {
		t.Fatalf("no interest should yield zero dividend, got %s", got)
	}
	if got := Share(decimal.NewFromInt(5000), quota, full); !got.Equal(full) {
		t.Fatalf("quota met should yield the full dividend, got %s", got)
	}
	if got := Share(decimal.NewFromInt(8000), quota, full); !got.Equal(full) {
		t.Fatalf("dividend must never exceed the full dividend, got %s", got)
	}

	half := Share(decimal.NewFromInt(2500), quota, full)
	want := decimal.RequireFromString("2857.15")
	if !half.Equal(want) {
		t.Fatalf("half quota should yield half the full dividend (%s), got %s", want, half)
	}
}
