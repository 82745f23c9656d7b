package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/contribution"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/loan"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
)

func TestApplyPostingAdjustsBalances(t *testing.T) {
	store := New()
	m, err := store.CreateMember(context.Background(), member.Member{FullName: "Ana", Role: member.RoleMember})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	w, err := store.CreateWallet(context.Background(), revenue.Wallet{OwnerType: revenue.OwnerPlatform})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	err = store.ApplyPosting(context.Background(), storage.Posting{
		CapitalEntries: []member.CapitalEntry{
			{MemberID: m.ID, Amount: decimal.NewFromInt(900), Type: member.EntryContribution},
		},
		WalletEntries: []revenue.Entry{
			{WalletID: w.ID, Amount: decimal.NewFromInt(95), Type: revenue.EarningPlatformShare},
		},
	})
	if err != nil {
		t.Fatalf("apply posting: %v", err)
	}

	got, _ := store.GetMember(context.Background(), m.ID)
	if !got.ShareCapital.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("share capital: %s", got.ShareCapital)
	}
	wallet, _ := store.GetWallet(context.Background(), w.ID)
	if !wallet.Balance.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("wallet balance: %s", wallet.Balance)
	}
	entries, _ := store.ListCapitalEntries(context.Background(), m.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one capital entry, got %d", len(entries))
	}
}

func TestApplyPostingRejectsUnknownTargets(t *testing.T) {
	store := New()
	m, err := store.CreateMember(context.Background(), member.Member{FullName: "Ben"})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	err = store.ApplyPosting(context.Background(), storage.Posting{
		CapitalEntries: []member.CapitalEntry{
			{MemberID: m.ID, Amount: decimal.NewFromInt(100)},
		},
		WalletEntries: []revenue.Entry{
			{WalletID: "missing", Amount: decimal.NewFromInt(5)},
		},
	})
	if err == nil {
		t.Fatal("expected posting with unknown wallet to fail")
	}

	// Nothing may have applied.
	got, _ := store.GetMember(context.Background(), m.ID)
	if !got.ShareCapital.IsZero() {
		t.Fatalf("partial posting applied: capital %s", got.ShareCapital)
	}
}

func TestApplyPostingRejectsReplayedStatusChange(t *testing.T) {
	store := New()
	ctx := context.Background()
	m, _ := store.CreateMember(ctx, member.Member{FullName: "Dina"})
	c, err := store.CreateContribution(ctx, contribution.Contribution{
		MemberID: m.ID,
		Gross:    decimal.NewFromInt(1000),
		Net:      decimal.NewFromInt(900),
		Status:   contribution.StatusPending,
	})
	if err != nil {
		t.Fatalf("create contribution: %v", err)
	}

	c.Status = contribution.StatusApproved
	if err := store.ApplyPosting(ctx, storage.Posting{UpdateContribution: &c}); err != nil {
		t.Fatalf("first approval: %v", err)
	}

	// Replaying the same pending-to-approved flip must conflict, not re-post.
	if err := store.ApplyPosting(ctx, storage.Posting{UpdateContribution: &c}); !errs.IsConflict(err) {
		t.Fatalf("expected conflict on replayed approval, got %v", err)
	}
}

func TestApplyPostingRejectsDuplicateReferencedCredit(t *testing.T) {
	store := New()
	ctx := context.Background()
	m, _ := store.CreateMember(ctx, member.Member{FullName: "Ely"})

	entry := member.CapitalEntry{
		MemberID:      m.ID,
		Amount:        decimal.NewFromInt(6000),
		Type:          member.EntryDividend,
		ReferenceType: "distribution",
		ReferenceID:   "dist-1",
	}
	if err := store.ApplyPosting(ctx, storage.Posting{CapitalEntries: []member.CapitalEntry{entry}}); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if err := store.ApplyPosting(ctx, storage.Posting{CapitalEntries: []member.CapitalEntry{entry}}); !errs.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate credit, got %v", err)
	}

	got, _ := store.GetMember(ctx, m.ID)
	if !got.ShareCapital.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("credit applied twice: %s", got.ShareCapital)
	}
}

func TestUpdateLoanVersionConflict(t *testing.T) {
	store := New()
	ln, err := store.CreateLoan(context.Background(), loan.Loan{MemberID: "1", Status: loan.StatusPending})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	first := ln
	first.Status = loan.StatusActive
	if _, err := store.UpdateLoan(context.Background(), first); err != nil {
		t.Fatalf("first update: %v", err)
	}

	stale := ln
	stale.Status = loan.StatusRejected
	if _, err := store.UpdateLoan(context.Background(), stale); !errs.IsConflict(err) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}
}

func TestApplyLoanPaymentAccruesInterest(t *testing.T) {
	store := New()
	m, _ := store.CreateMember(context.Background(), member.Member{FullName: "Cora"})
	ln, err := store.CreateLoan(context.Background(), loan.Loan{
		MemberID:  m.ID,
		Principal: decimal.NewFromInt(10000),
		Status:    loan.StatusActive,
		Balance:   decimal.NewFromInt(12400),
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	ln.Balance = decimal.NewFromInt(10400)
	date := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	_, _, err = store.ApplyLoanPayment(context.Background(), ln,
		loan.Payment{Amount: decimal.NewFromInt(2000), Date: date},
		decimal.RequireFromString("387.10"))
	if err != nil {
		t.Fatalf("apply payment: %v", err)
	}

	tracking, err := store.GetInterestTracking(context.Background(), m.ID, 2025)
	if err != nil {
		t.Fatalf("get tracking: %v", err)
	}
	if !tracking.TotalInterestPaid.Equal(decimal.RequireFromString("387.10")) {
		t.Fatalf("interest accrued: %s", tracking.TotalInterestPaid)
	}

	payments, _ := store.ListPayments(context.Background(), ln.ID)
	if len(payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(payments))
	}
}
