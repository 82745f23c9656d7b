package members

import (
	"context"
	"testing"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage/memory"
)

func TestCreateValidates(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	if _, err := svc.Create(context.Background(), "", "ana@example.ph", ""); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "Ana Reyes", "", ""); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for empty email, got %v", err)
	}

	m, err := svc.Create(context.Background(), " Ana Reyes ", " ANA@example.ph ", "g1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.FullName != "Ana Reyes" || m.Email != "ana@example.ph" {
		t.Fatalf("inputs not normalised: %+v", m)
	}
	if m.Role != member.RoleMember {
		t.Fatalf("new members must start as plain members, got %s", m.Role)
	}
	if !m.ShareCapital.IsZero() {
		t.Fatalf("new members must start with zero capital, got %s", m.ShareCapital)
	}
}

func TestPromoteCreatesWallet(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	m, err := svc.Create(context.Background(), "Ben Cruz", "ben@example.ph", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	promoted, err := svc.PromoteToAdmin(context.Background(), m.ID, member.AdminRoleOperations)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Role != member.RoleAdmin || promoted.AdminRole != member.AdminRoleOperations {
		t.Fatalf("role not applied: %+v", promoted)
	}

	wallet, err := store.GetWalletByOwner(context.Background(), m.ID, revenue.OwnerAdmin)
	if err != nil {
		t.Fatalf("admin wallet missing after promotion: %v", err)
	}
	if !wallet.Balance.IsZero() {
		t.Fatalf("fresh wallet should be empty: %s", wallet.Balance)
	}

	// A second promotion reuses the wallet.
	if _, err := svc.PromoteToAdmin(context.Background(), m.ID, member.AdminRoleSuper); err != nil {
		t.Fatalf("re-promote: %v", err)
	}
}

func TestPromoteRejectsUnknownRole(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	m, _ := svc.Create(context.Background(), "Cora Santos", "cora@example.ph", "")
	if _, err := svc.PromoteToAdmin(context.Background(), m.ID, "janitor"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDemoteRequiresAdmin(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	m, _ := svc.Create(context.Background(), "Dan Ocampo", "dan@example.ph", "")
	if _, err := svc.DemoteFromAdmin(context.Background(), m.ID); !errs.IsInvalidState(err) {
		t.Fatalf("expected invalid state error, got %v", err)
	}

	if _, err := svc.PromoteToAdmin(context.Background(), m.ID, member.AdminRoleSuper); err != nil {
		t.Fatalf("promote: %v", err)
	}
	demoted, err := svc.DemoteFromAdmin(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	if demoted.IsAdmin() || demoted.AdminRole != "" {
		t.Fatalf("role not cleared: %+v", demoted)
	}
}
