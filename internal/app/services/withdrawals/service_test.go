package withdrawals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/withdrawal"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage/memory"
)

func newService(store *memory.Store) *Service {
	return New(store, store, store, policy.Default(), nil)
}

func seedMemberWithCapital(t *testing.T, store *memory.Store, name, email, capital string) member.Member {
	t.Helper()
	ctx := context.Background()
	m, err := store.CreateMember(ctx, member.Member{FullName: name, Email: email, Role: member.RoleMember})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if capital != "" {
		err := store.ApplyPosting(ctx, storage.Posting{
			CapitalEntries: []member.CapitalEntry{{
				MemberID: m.ID,
				Amount:   decimal.RequireFromString(capital),
				Type:     member.EntryContribution,
			}},
		})
		if err != nil {
			t.Fatalf("seed capital: %v", err)
		}
		m, _ = store.GetMember(ctx, m.ID)
	}
	return m
}

func seedAdmin(t *testing.T, store *memory.Store, name, email string) member.Member {
	t.Helper()
	m, err := store.CreateMember(context.Background(), member.Member{
		FullName:  name,
		Email:     email,
		Role:      member.RoleAdmin,
		AdminRole: member.AdminRoleOperations,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return m
}

func TestEligibilityFollowsLastActivity(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	m := seedMemberWithCapital(t, store, "Ana Reyes", "ana@example.ph", "5000")

	now := time.Now().UTC()
	elig, err := svc.CheckEligibility(ctx, m.ID, now)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if elig.Eligible {
		t.Fatal("fresh capital activity must start the waiting period")
	}
	want := elig.LastActivityAt.AddDate(0, 0, 30)
	if !elig.EligibleAt.Equal(want) {
		t.Fatalf("eligible at %s, want %s", elig.EligibleAt, want)
	}
	if !elig.AvailableCapital.Equal(decimal.RequireFromString("5000")) {
		t.Fatalf("available capital should be 5000, got %s", elig.AvailableCapital)
	}

	elig, err = svc.CheckEligibility(ctx, m.ID, now.AddDate(0, 0, 31))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !elig.Eligible {
		t.Fatal("waiting period elapsed, member should be eligible")
	}
}

func TestEligibilityFallsBackToJoinDate(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	m := seedMemberWithCapital(t, store, "Bea Cruz", "bea@example.ph", "")

	elig, err := svc.CheckEligibility(context.Background(), m.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !elig.LastActivityAt.Equal(m.CreatedAt) {
		t.Fatalf("empty journal should fall back to join date, got %s", elig.LastActivityAt)
	}
}

func TestRequestValidation(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	m := seedMemberWithCapital(t, store, "Cora Santos", "cora@example.ph", "2000")

	if _, err := svc.Request(ctx, m.ID, decimal.NewFromInt(-10), time.Time{}); !errs.IsValidation(err) {
		t.Fatalf("negative amount: expected validation error, got %v", err)
	}
	if _, err := svc.Request(ctx, "ghost", decimal.NewFromInt(100), time.Time{}); !errs.IsValidation(err) {
		t.Fatalf("unknown member: expected validation error, got %v", err)
	}
	if _, err := svc.Request(ctx, m.ID, decimal.NewFromInt(2001), time.Time{}); !errs.IsInsufficientFunds(err) {
		t.Fatalf("over capital: expected insufficient funds, got %v", err)
	}
}

func TestApproveGatedOnWaitingPeriod(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	m := seedMemberWithCapital(t, store, "Dina Flores", "dina@example.ph", "3000")
	admin := seedAdmin(t, store, "Elena Uy", "elena@example.ph")

	now := time.Now().UTC()
	req, err := svc.Request(ctx, m.ID, decimal.NewFromInt(1000), now)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != withdrawal.StatusPending {
		t.Fatalf("unexpected status: %s", req.Status)
	}

	if _, err := svc.Approve(ctx, req.ID, admin.ID, now); !errs.IsInvalidState(err) {
		t.Fatalf("approval inside the waiting period must fail, got %v", err)
	}

	approved, err := svc.Approve(ctx, req.ID, admin.ID, now.AddDate(0, 0, 31))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != withdrawal.StatusApproved || approved.ReviewedBy != admin.ID {
		t.Fatalf("reviewer not stamped: %+v", approved)
	}
	if _, err := svc.Approve(ctx, req.ID, admin.ID, now.AddDate(0, 0, 31)); !errs.IsInvalidState(err) {
		t.Fatalf("double approval must fail, got %v", err)
	}
}

func TestCompleteDebitsCapital(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	m := seedMemberWithCapital(t, store, "Fely Go", "fely@example.ph", "3000")
	admin := seedAdmin(t, store, "Gina Lim", "gina@example.ph")

	now := time.Now().UTC()
	req, _ := svc.Request(ctx, m.ID, decimal.NewFromInt(1200), now)
	if _, err := svc.Complete(ctx, req.ID, admin.ID); !errs.IsInvalidState(err) {
		t.Fatalf("completing a pending request must fail, got %v", err)
	}
	if _, err := svc.Approve(ctx, req.ID, admin.ID, now.AddDate(0, 0, 31)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	done, err := svc.Complete(ctx, req.ID, admin.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != withdrawal.StatusCompleted || done.CompletedAt.IsZero() {
		t.Fatalf("completion not stamped: %+v", done)
	}

	got, _ := store.GetMember(ctx, m.ID)
	if !got.ShareCapital.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("capital should drop to 1800, got %s", got.ShareCapital)
	}

	entries, _ := store.ListCapitalEntries(ctx, m.ID)
	var debit *member.CapitalEntry
	for i := range entries {
		if entries[i].Type == member.EntryWithdrawal {
			debit = &entries[i]
		}
	}
	if debit == nil {
		t.Fatal("withdrawal capital entry not written")
	}
	if debit.ReferenceID != req.ID || !debit.Amount.Equal(decimal.NewFromInt(-1200)) {
		t.Fatalf("unexpected debit entry: %+v", debit)
	}

	if _, err := svc.Complete(ctx, req.ID, admin.ID); !errs.IsInvalidState(err) {
		t.Fatalf("double completion must fail, got %v", err)
	}
}

// Concurrent completions of the same approved request must debit capital
// exactly once; losing racers get a conflict from the store.
func TestConcurrentCompleteDebitsOnce(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	m := seedMemberWithCapital(t, store, "Jena Uy", "jena@example.ph", "3000")
	admin := seedAdmin(t, store, "Kit Ong", "kit@example.ph")

	now := time.Now().UTC()
	req, _ := svc.Request(ctx, m.ID, decimal.NewFromInt(1200), now)
	if _, err := svc.Approve(ctx, req.ID, admin.ID, now.AddDate(0, 0, 31)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Complete(ctx, req.ID, admin.ID)
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
		case errs.IsConflict(err), errs.IsInvalidState(err):
		default:
			t.Fatalf("unexpected race outcome: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one completion may post, got %d", succeeded)
	}

	got, _ := store.GetMember(ctx, m.ID)
	if !got.ShareCapital.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("capital debited more than once: %s", got.ShareCapital)
	}
}

func TestRejectClosesRequest(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()
	m := seedMemberWithCapital(t, store, "Hana Sy", "hana@example.ph", "3000")
	admin := seedAdmin(t, store, "Ines Tan", "ines@example.ph")

	req, _ := svc.Request(ctx, m.ID, decimal.NewFromInt(500), time.Now().UTC())
	rejected, err := svc.Reject(ctx, req.ID, admin.ID, "capital pledged against an active loan")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != withdrawal.StatusRejected || rejected.AdminNotes == "" {
		t.Fatalf("reason not recorded: %+v", rejected)
	}
	if _, err := svc.Approve(ctx, req.ID, admin.ID, time.Now().AddDate(0, 0, 60)); !errs.IsInvalidState(err) {
		t.Fatalf("rejected request must not be approvable, got %v", err)
	}

	got, _ := store.GetMember(ctx, m.ID)
	if !got.ShareCapital.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("rejection must not touch capital, got %s", got.ShareCapital)
	}
}
