package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/contribution"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/loan"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
)

func TestUpdateLoanStaleVersionConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE coop_loans").WillReturnResult(sqlmock.NewResult(0, 0))

	store := New(db)
	_, err = store.UpdateLoan(context.Background(), loan.Loan{
		ID:      "loan-1",
		Status:  loan.StatusActive,
		Balance: decimal.NewFromInt(500),
		Version: 3,
	})
	if errs.KindOf(err) != errs.KindConcurrencyConflict {
		t.Fatalf("zero rows affected should surface as a conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateLoanBumpsVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE coop_loans").WillReturnResult(sqlmock.NewResult(0, 1))

	store := New(db)
	updated, err := store.UpdateLoan(context.Background(), loan.Loan{ID: "loan-1", Version: 3})
	if err != nil {
		t.Fatalf("update loan: %v", err)
	}
	if updated.Version != 4 {
		t.Fatalf("version should advance to 4, got %d", updated.Version)
	}
}

func TestPostingContributionStatusGuard(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	// The approval update carries a status predicate; a contribution that is
	// no longer pending matches zero rows.
	mock.ExpectExec("UPDATE coop_contributions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	store := New(db)
	c := contribution.Contribution{
		ID:     "contrib-1",
		Net:    decimal.NewFromInt(900),
		Status: contribution.StatusApproved,
	}
	err = store.ApplyPosting(context.Background(), storage.Posting{UpdateContribution: &c})
	if !errs.IsConflict(err) {
		t.Fatalf("expected conflict when approval matches no pending row, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyPostingRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO coop_capital_entries").WillReturnResult(sqlmock.NewResult(0, 1))
	// Member row missing: the capital update hits nothing.
	mock.ExpectExec("UPDATE coop_members").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	store := New(db)
	err = store.ApplyPosting(context.Background(), storage.Posting{
		CapitalEntries: []member.CapitalEntry{{
			MemberID: "ghost",
			Amount:   decimal.NewFromInt(100),
			Type:     member.EntryContribution,
		}},
	})
	if err == nil {
		t.Fatal("posting against a missing member should fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
