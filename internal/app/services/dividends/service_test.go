package dividends

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/dividend"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage/memory"
)

func newService(store *memory.Store) *Service {
	return New(store, store, store, policy.Default(), nil)
}

func seedTracking(t *testing.T, store *memory.Store, year int, interest string) member.Member {
	t.Helper()
	ctx := context.Background()
	m, err := store.CreateMember(ctx, member.Member{
		FullName: "Member " + interest,
		Email:    fmt.Sprintf("m%s-%d@example.ph", interest, len(mustList(t, store))),
		Role:     member.RoleMember,
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	_, err = store.UpsertInterestTracking(ctx, dividend.InterestTracking{
		MemberID:          m.ID,
		Year:              year,
		TotalInterestPaid: decimal.RequireFromString(interest),
	})
	if err != nil {
		t.Fatalf("seed tracking: %v", err)
	}
	return m
}

func mustList(t *testing.T, store *memory.Store) []member.Member {
	t.Helper()
	members, err := store.ListMembers(context.Background())
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	return members
}

func TestCalculateQuotaDividends(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	year := 2025

	// 70 quota members contributing 400,000 interest plus one member below
	// quota at 2,500 gives a 402,500 pool and a clean 5,750 full dividend.
	for i := 0; i < 69; i++ {
		seedTracking(t, store, year, "5715")
	}
	seedTracking(t, store, year, "5665")
	below := seedTracking(t, store, year, "2500")

	d, err := svc.Calculate(ctx, year)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if d.QuotaMembers != 70 {
		t.Fatalf("expected 70 quota members, got %d", d.QuotaMembers)
	}
	if !d.TotalInterest.Equal(decimal.RequireFromString("402500")) {
		t.Fatalf("pool should be 402500, got %s", d.TotalInterest)
	}
	if !d.FullDividend.Equal(decimal.RequireFromString("5750")) {
		t.Fatalf("full dividend should be 5750, got %s", d.FullDividend)
	}
	if d.Status != dividend.StatusCalculated {
		t.Fatalf("unexpected status: %s", d.Status)
	}

	row, err := store.GetInterestTracking(ctx, below.ID, year)
	if err != nil {
		t.Fatalf("tracking: %v", err)
	}
	if row.QuotaMet {
		t.Fatal("2,500 interest must not meet a 5,000 quota")
	}
	// 2500/5000 of the 5750 full dividend.
	if !row.DividendAmount.Equal(decimal.RequireFromString("2875")) {
		t.Fatalf("below-quota share should be 2875, got %s", row.DividendAmount)
	}

	// 70 full shares plus the pro-rated one exceed the pool; the projection
	// makes that visible instead of hiding it.
	want := decimal.RequireFromString("405375")
	if !d.ProjectedPayout.Equal(want) {
		t.Fatalf("projected payout should be %s, got %s", want, d.ProjectedPayout)
	}
}

func TestCalculateWithNoQuotaMembers(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	year := 2025

	seedTracking(t, store, year, "1200")
	seedTracking(t, store, year, "800")

	d, err := svc.Calculate(context.Background(), year)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if d.QuotaMembers != 0 {
		t.Fatalf("expected no quota members, got %d", d.QuotaMembers)
	}
	if !d.FullDividend.IsZero() || !d.ProjectedPayout.IsZero() {
		t.Fatalf("nothing to distribute without quota members: full %s, projected %s", d.FullDividend, d.ProjectedPayout)
	}
}

func TestRecalculateOverwritesSnapshot(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	year := 2025

	m := seedTracking(t, store, year, "5000")
	first, err := svc.Calculate(ctx, year)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	// More interest lands before year end, then a recalculation.
	if _, err := store.UpsertInterestTracking(ctx, dividend.InterestTracking{
		MemberID:          m.ID,
		Year:              year,
		TotalInterestPaid: decimal.RequireFromString("8000"),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second, err := svc.Calculate(ctx, year)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("recalculation must overwrite the same distribution, got %s and %s", first.ID, second.ID)
	}
	if !second.TotalInterest.Equal(decimal.RequireFromString("8000")) {
		t.Fatalf("pool should reflect the new interest, got %s", second.TotalInterest)
	}
}

func TestDistributeCreditsEachMemberOnce(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	year := 2025

	quotaMember := seedTracking(t, store, year, "6000")
	belowMember := seedTracking(t, store, year, "2500")

	d, err := svc.Calculate(ctx, year)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// Pool 8,500 over one quota member: full dividend 8,500, below-quota
	// share 2500/5000 x 8500 = 4,250.
	d, err = svc.Distribute(ctx, d.ID)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if d.Status != dividend.StatusDistributed {
		t.Fatalf("unexpected status: %s", d.Status)
	}
	if !d.TotalDistributed.Equal(decimal.RequireFromString("12750")) {
		t.Fatalf("total distributed should be 12750, got %s", d.TotalDistributed)
	}

	got, _ := store.GetMember(ctx, quotaMember.ID)
	if !got.ShareCapital.Equal(decimal.RequireFromString("8500")) {
		t.Fatalf("quota member capital should gain 8500, got %s", got.ShareCapital)
	}
	got, _ = store.GetMember(ctx, belowMember.ID)
	if !got.ShareCapital.Equal(decimal.RequireFromString("4250")) {
		t.Fatalf("below-quota capital should gain 4250, got %s", got.ShareCapital)
	}

	if _, err := svc.Distribute(ctx, d.ID); !errs.IsAlreadyDistributed(err) {
		t.Fatalf("expected already distributed on re-run, got %v", err)
	}
	if _, err := svc.Calculate(ctx, year); !errs.IsAlreadyDistributed(err) {
		t.Fatalf("expected already distributed on recalculation, got %v", err)
	}
}

func TestDistributeResumesAfterPartialRun(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	year := 2025

	credited := seedTracking(t, store, year, "5000")
	pending := seedTracking(t, store, year, "5000")

	d, err := svc.Calculate(ctx, year)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	// Simulate a run that crashed after crediting the first member.
	row, _ := store.GetInterestTracking(ctx, credited.ID, year)
	err = store.ApplyPosting(ctx, storage.Posting{
		CapitalEntries: []member.CapitalEntry{{
			MemberID:      credited.ID,
			Amount:        row.DividendAmount,
			Type:          member.EntryDividend,
			ReferenceType: "distribution",
			ReferenceID:   d.ID,
		}},
	})
	if err != nil {
		t.Fatalf("pre-credit: %v", err)
	}

	d, err = svc.Distribute(ctx, d.ID)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}

	// The pre-credited member keeps a single credit, the other is caught up.
	got, _ := store.GetMember(ctx, credited.ID)
	if !got.ShareCapital.Equal(row.DividendAmount) {
		t.Fatalf("member must not be double credited, got %s", got.ShareCapital)
	}
	got, _ = store.GetMember(ctx, pending.ID)
	if !got.ShareCapital.Equal(row.DividendAmount) {
		t.Fatalf("remaining member not credited, got %s", got.ShareCapital)
	}
	if !d.TotalDistributed.Equal(row.DividendAmount.Mul(decimal.NewFromInt(2))) {
		t.Fatalf("total distributed should cover both members, got %s", d.TotalDistributed)
	}
}

// Concurrent payouts of the same distribution must credit each member exactly
// once; losers back off with a conflict instead of posting a second time.
func TestConcurrentDistributeCreditsOnce(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	year := 2025

	m := seedTracking(t, store, year, "6000")
	d, err := svc.Calculate(ctx, year)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Distribute(ctx, d.ID)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	succeeded := 0
	for err := range errCh {
		switch {
		case err == nil:
			succeeded++
		case errs.IsConflict(err), errs.IsAlreadyDistributed(err):
		default:
			t.Fatalf("unexpected race outcome: %v", err)
		}
	}
	if succeeded == 0 {
		t.Fatal("no distribute call succeeded")
	}

	got, _ := store.GetMember(ctx, m.ID)
	if !got.ShareCapital.Equal(decimal.RequireFromString("6000")) {
		t.Fatalf("member credited more than once: capital %s, dividend was 6000", got.ShareCapital)
	}
	entries, _ := store.ListCapitalEntries(ctx, m.ID)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one dividend entry, got %d", len(entries))
	}
}

func TestDistributeRequiresCalculatedSnapshot(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	d, err := store.CreateDistribution(ctx, dividend.Distribution{Year: 2025, Status: dividend.StatusPending})
	if err != nil {
		t.Fatalf("create distribution: %v", err)
	}
	if _, err := svc.Distribute(ctx, d.ID); !errs.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := svc.Distribute(ctx, "ghost"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for unknown id, got %v", err)
	}
}
