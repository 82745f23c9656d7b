package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/contribution"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/dividend"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/loan"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/revenue"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/withdrawal"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Postings run
// inside a single transaction so multi-record mutations are all-or-nothing.
type Store struct {
	db *sql.DB
}

var _ storage.MemberStore = (*Store)(nil)
var _ storage.ContributionStore = (*Store)(nil)
var _ storage.LoanStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)
var _ storage.DividendStore = (*Store)(nil)
var _ storage.WithdrawalStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func timeOf(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// --- MemberStore -------------------------------------------------------------

const memberColumns = `id, full_name, email, role, admin_role, group_id, share_capital, membership_fee_paid, created_at, updated_at`

func (s *Store) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Role == "" {
		m.Role = member.RoleMember
	}
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coop_members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.FullName, m.Email, m.Role, m.AdminRole, m.GroupID, m.ShareCapital, m.MembershipFeePaid, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return member.Member{}, err
	}
	return m, nil
}

func (s *Store) UpdateMember(ctx context.Context, m member.Member) (member.Member, error) {
	existing, err := s.GetMember(ctx, m.ID)
	if err != nil {
		return member.Member{}, err
	}
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE coop_members
		SET full_name = $2, email = $3, role = $4, admin_role = $5, group_id = $6,
		    share_capital = $7, membership_fee_paid = $8, updated_at = $9
		WHERE id = $1
	`, m.ID, m.FullName, m.Email, m.Role, m.AdminRole, m.GroupID, m.ShareCapital, m.MembershipFeePaid, m.UpdatedAt)
	if err != nil {
		return member.Member{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return member.Member{}, sql.ErrNoRows
	}
	return m, nil
}

func scanMember(row scanner) (member.Member, error) {
	var m member.Member
	err := row.Scan(&m.ID, &m.FullName, &m.Email, &m.Role, &m.AdminRole, &m.GroupID,
		&m.ShareCapital, &m.MembershipFeePaid, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *Store) GetMember(ctx context.Context, id string) (member.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM coop_members WHERE id = $1`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return member.Member{}, fmt.Errorf("member %s not found", id)
	}
	return m, err
}

func (s *Store) GetMemberByEmail(ctx context.Context, email string) (member.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM coop_members WHERE email = $1`, email)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return member.Member{}, fmt.Errorf("member with email %s not found", email)
	}
	return m, err
}

func (s *Store) ListMembers(ctx context.Context) ([]member.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM coop_members ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]member.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) ListCapitalEntries(ctx context.Context, memberID string) ([]member.CapitalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, amount, type, reference_type, reference_id, description, created_at
		FROM coop_capital_entries
		WHERE member_id = $1
		ORDER BY created_at
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]member.CapitalEntry, 0)
	for rows.Next() {
		var e member.CapitalEntry
		if err := rows.Scan(&e.ID, &e.MemberID, &e.Amount, &e.Type, &e.ReferenceType, &e.ReferenceID, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) HasCapitalEntry(ctx context.Context, memberID, referenceType, referenceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM coop_capital_entries
			WHERE member_id = $1 AND reference_type = $2 AND reference_id = $3
		)
	`, memberID, referenceType, referenceID).Scan(&exists)
	return exists, err
}

func (s *Store) LastCapitalActivity(ctx context.Context, memberID string) (time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM coop_capital_entries WHERE member_id = $1
	`, memberID).Scan(&last)
	if err != nil {
		return time.Time{}, err
	}
	if !last.Valid {
		return time.Time{}, fmt.Errorf("no capital activity for member %s", memberID)
	}
	return last.Time, nil
}

// --- ContributionStore -------------------------------------------------------

const contributionColumns = `id, member_id, gross, net, method, status, date, notes, approved_by, approved_at, created_at, updated_at`

func scanContribution(row scanner) (contribution.Contribution, error) {
	var (
		c          contribution.Contribution
		approvedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.MemberID, &c.Gross, &c.Net, &c.Method, &c.Status, &c.Date,
		&c.Notes, &c.ApprovedBy, &approvedAt, &c.CreatedAt, &c.UpdatedAt)
	c.ApprovedAt = timeOf(approvedAt)
	return c, err
}

func insertContribution(ctx context.Context, db execer, c contribution.Contribution) (contribution.Contribution, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO coop_contributions (`+contributionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, c.ID, c.MemberID, c.Gross, c.Net, c.Method, c.Status, c.Date, c.Notes,
		c.ApprovedBy, nullTime(c.ApprovedAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return contribution.Contribution{}, err
	}
	return c, nil
}

// updateContribution predicates review decisions on the stored status, so a
// concurrent duplicate approve or reject affects zero rows instead of posting
// twice.
func updateContribution(ctx context.Context, db execer, c contribution.Contribution) (contribution.Contribution, error) {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE coop_contributions
		SET net = $2, method = $3, status = $4, date = $5, notes = $6,
		    approved_by = $7, approved_at = $8, updated_at = $9
		WHERE id = $1`
	args := []any{c.ID, c.Net, c.Method, c.Status, c.Date, c.Notes, c.ApprovedBy, nullTime(c.ApprovedAt), c.UpdatedAt}
	from, guarded := contribution.SourceStatus(c.Status)
	if guarded {
		query += ` AND status = $10`
		args = append(args, from)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return contribution.Contribution{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		if guarded {
			return contribution.Contribution{}, errs.Conflict("contribution", c.ID, "contribution is no longer %s", from)
		}
		return contribution.Contribution{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *Store) CreateContribution(ctx context.Context, c contribution.Contribution) (contribution.Contribution, error) {
	return insertContribution(ctx, s.db, c)
}

func (s *Store) GetContribution(ctx context.Context, id string) (contribution.Contribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM coop_contributions WHERE id = $1`, id)
	c, err := scanContribution(row)
	if err == sql.ErrNoRows {
		return contribution.Contribution{}, fmt.Errorf("contribution %s not found", id)
	}
	return c, err
}

func (s *Store) ListContributions(ctx context.Context, memberID string) ([]contribution.Contribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contributionColumns+` FROM coop_contributions
		WHERE $1 = '' OR member_id = $1
		ORDER BY created_at
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]contribution.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- LoanStore ---------------------------------------------------------------

const loanColumns = `id, member_id, principal, purpose, interest_rate, term_months, status, balance,
	scheduled_date, approved_by, approved_at, disbursed_at, rejected_by, reject_reason,
	created_at, updated_at, version`

func scanLoan(row scanner) (loan.Loan, error) {
	var (
		ln                                   loan.Loan
		scheduledAt, approvedAt, disbursedAt sql.NullTime
	)
	err := row.Scan(&ln.ID, &ln.MemberID, &ln.Principal, &ln.Purpose, &ln.InterestRate,
		&ln.TermMonths, &ln.Status, &ln.Balance, &scheduledAt, &ln.ApprovedBy, &approvedAt,
		&disbursedAt, &ln.RejectedBy, &ln.RejectReason, &ln.CreatedAt, &ln.UpdatedAt, &ln.Version)
	ln.ScheduledDate = timeOf(scheduledAt)
	ln.ApprovedAt = timeOf(approvedAt)
	ln.DisbursedAt = timeOf(disbursedAt)
	return ln, err
}

func (s *Store) CreateLoan(ctx context.Context, ln loan.Loan) (loan.Loan, error) {
	if ln.ID == "" {
		ln.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ln.CreatedAt = now
	ln.UpdatedAt = now
	ln.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coop_loans (`+loanColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, ln.ID, ln.MemberID, ln.Principal, ln.Purpose, ln.InterestRate, ln.TermMonths,
		ln.Status, ln.Balance, nullTime(ln.ScheduledDate), ln.ApprovedBy, nullTime(ln.ApprovedAt),
		nullTime(ln.DisbursedAt), ln.RejectedBy, ln.RejectReason, ln.CreatedAt, ln.UpdatedAt, ln.Version)
	if err != nil {
		return loan.Loan{}, err
	}
	return ln, nil
}

func (s *Store) UpdateLoan(ctx context.Context, ln loan.Loan) (loan.Loan, error) {
	return updateLoan(ctx, s.db, ln)
}

// updateLoan only writes when the caller holds the current version.
func updateLoan(ctx context.Context, db execer, ln loan.Loan) (loan.Loan, error) {
	seen := ln.Version
	ln.UpdatedAt = time.Now().UTC()

	result, err := db.ExecContext(ctx, `
		UPDATE coop_loans
		SET status = $2, balance = $3, scheduled_date = $4, approved_by = $5, approved_at = $6,
		    disbursed_at = $7, rejected_by = $8, reject_reason = $9, updated_at = $10,
		    version = version + 1
		WHERE id = $1 AND version = $11
	`, ln.ID, ln.Status, ln.Balance, nullTime(ln.ScheduledDate), ln.ApprovedBy, nullTime(ln.ApprovedAt),
		nullTime(ln.DisbursedAt), ln.RejectedBy, ln.RejectReason, ln.UpdatedAt, seen)
	if err != nil {
		return loan.Loan{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return loan.Loan{}, errs.Conflict("loan", ln.ID, "loan %s was modified concurrently", ln.ID)
	}
	ln.Version = seen + 1
	return ln, nil
}

func (s *Store) GetLoan(ctx context.Context, id string) (loan.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM coop_loans WHERE id = $1`, id)
	ln, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return loan.Loan{}, fmt.Errorf("loan %s not found", id)
	}
	return ln, err
}

func (s *Store) ListLoans(ctx context.Context, memberID string) ([]loan.Loan, error) {
	return s.queryLoans(ctx, `
		SELECT `+loanColumns+` FROM coop_loans
		WHERE $1 = '' OR member_id = $1
		ORDER BY created_at
	`, memberID)
}

func (s *Store) ListLoansByStatus(ctx context.Context, status loan.Status) ([]loan.Loan, error) {
	return s.queryLoans(ctx, `
		SELECT `+loanColumns+` FROM coop_loans
		WHERE status = $1
		ORDER BY created_at
	`, status)
}

func (s *Store) queryLoans(ctx context.Context, query string, arg any) ([]loan.Loan, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]loan.Loan, 0)
	for rows.Next() {
		ln, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ln)
	}
	return result, rows.Err()
}

func (s *Store) ListPayments(ctx context.Context, loanID string) ([]loan.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, amount, method, date, late, created_at
		FROM coop_loan_payments
		WHERE loan_id = $1
		ORDER BY created_at
	`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]loan.Payment, 0)
	for rows.Next() {
		var p loan.Payment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &p.Method, &p.Date, &p.Late, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- WalletStore -------------------------------------------------------------

const walletColumns = `id, owner_id, owner_type, balance, created_at, updated_at`

func scanWallet(row scanner) (revenue.Wallet, error) {
	var w revenue.Wallet
	err := row.Scan(&w.ID, &w.OwnerID, &w.OwnerType, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (s *Store) CreateWallet(ctx context.Context, w revenue.Wallet) (revenue.Wallet, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coop_wallets (`+walletColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.OwnerID, w.OwnerType, w.Balance, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return revenue.Wallet{}, err
	}
	return w, nil
}

func (s *Store) GetWallet(ctx context.Context, id string) (revenue.Wallet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM coop_wallets WHERE id = $1`, id)
	w, err := scanWallet(row)
	if err == sql.ErrNoRows {
		return revenue.Wallet{}, fmt.Errorf("wallet %s not found", id)
	}
	return w, err
}

func (s *Store) GetWalletByOwner(ctx context.Context, ownerID string, ownerType revenue.OwnerType) (revenue.Wallet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+walletColumns+` FROM coop_wallets WHERE owner_id = $1 AND owner_type = $2
	`, ownerID, ownerType)
	w, err := scanWallet(row)
	if err == sql.ErrNoRows {
		return revenue.Wallet{}, fmt.Errorf("wallet for %s %q not found", ownerType, ownerID)
	}
	return w, err
}

func (s *Store) ListWallets(ctx context.Context) ([]revenue.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+walletColumns+` FROM coop_wallets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]revenue.Wallet, 0)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (s *Store) ListWalletEntries(ctx context.Context, walletID string) ([]revenue.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_id, amount, type, reference_type, reference_id, description, created_at
		FROM coop_wallet_entries
		WHERE wallet_id = $1
		ORDER BY created_at
	`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]revenue.Entry, 0)
	for rows.Next() {
		var e revenue.Entry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Amount, &e.Type, &e.ReferenceType, &e.ReferenceID, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) ListMembershipFees(ctx context.Context) ([]revenue.MembershipFee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, amount, method, collected_by, collected_at
		FROM coop_membership_fees
		ORDER BY collected_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]revenue.MembershipFee, 0)
	for rows.Next() {
		var fee revenue.MembershipFee
		if err := rows.Scan(&fee.ID, &fee.MemberID, &fee.Amount, &fee.Method, &fee.CollectedBy, &fee.CollectedAt); err != nil {
			return nil, err
		}
		result = append(result, fee)
	}
	return result, rows.Err()
}

func (s *Store) ListServiceFeeTransactions(ctx context.Context, adminOwnerID string) ([]revenue.ServiceFeeTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, type, base_amount, service_fee, admin_owner_id, description, created_at
		FROM coop_service_fees
		WHERE $1 = '' OR admin_owner_id = $1
		ORDER BY created_at
	`, adminOwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]revenue.ServiceFeeTransaction, 0)
	for rows.Next() {
		var tx revenue.ServiceFeeTransaction
		if err := rows.Scan(&tx.ID, &tx.MemberID, &tx.Type, &tx.BaseAmount, &tx.ServiceFee, &tx.AdminOwnerID, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// --- DividendStore -----------------------------------------------------------

const trackingColumns = `id, member_id, year, total_interest_paid, quota_met, dividend_amount, updated_at`

func (s *Store) UpsertInterestTracking(ctx context.Context, t dividend.InterestTracking) (dividend.InterestTracking, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coop_interest_tracking (`+trackingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (member_id, year) DO UPDATE
		SET total_interest_paid = EXCLUDED.total_interest_paid,
		    quota_met = EXCLUDED.quota_met,
		    dividend_amount = EXCLUDED.dividend_amount,
		    updated_at = EXCLUDED.updated_at
	`, t.ID, t.MemberID, t.Year, t.TotalInterestPaid, t.QuotaMet, t.DividendAmount, t.UpdatedAt)
	if err != nil {
		return dividend.InterestTracking{}, err
	}
	return t, nil
}

func scanTracking(row scanner) (dividend.InterestTracking, error) {
	var t dividend.InterestTracking
	err := row.Scan(&t.ID, &t.MemberID, &t.Year, &t.TotalInterestPaid, &t.QuotaMet, &t.DividendAmount, &t.UpdatedAt)
	return t, err
}

func (s *Store) GetInterestTracking(ctx context.Context, memberID string, year int) (dividend.InterestTracking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+trackingColumns+` FROM coop_interest_tracking WHERE member_id = $1 AND year = $2
	`, memberID, year)
	t, err := scanTracking(row)
	if err == sql.ErrNoRows {
		return dividend.InterestTracking{}, fmt.Errorf("interest tracking for member %s in %d not found", memberID, year)
	}
	return t, err
}

func (s *Store) ListInterestTracking(ctx context.Context, year int) ([]dividend.InterestTracking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+trackingColumns+` FROM coop_interest_tracking WHERE year = $1 ORDER BY member_id
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]dividend.InterestTracking, 0)
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

const distributionColumns = `id, year, total_interest, quota_members, full_dividend, projected_payout,
	total_distributed, status, calculated_at, distributed_at, created_at, updated_at`

func scanDistribution(row scanner) (dividend.Distribution, error) {
	var (
		d                           dividend.Distribution
		calculatedAt, distributedAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.Year, &d.TotalInterest, &d.QuotaMembers, &d.FullDividend,
		&d.ProjectedPayout, &d.TotalDistributed, &d.Status, &calculatedAt, &distributedAt,
		&d.CreatedAt, &d.UpdatedAt)
	d.CalculatedAt = timeOf(calculatedAt)
	d.DistributedAt = timeOf(distributedAt)
	return d, err
}

func (s *Store) CreateDistribution(ctx context.Context, d dividend.Distribution) (dividend.Distribution, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coop_distributions (`+distributionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, d.ID, d.Year, d.TotalInterest, d.QuotaMembers, d.FullDividend, d.ProjectedPayout,
		d.TotalDistributed, d.Status, nullTime(d.CalculatedAt), nullTime(d.DistributedAt),
		d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return dividend.Distribution{}, err
	}
	return d, nil
}

func (s *Store) UpdateDistribution(ctx context.Context, d dividend.Distribution) (dividend.Distribution, error) {
	return updateDistribution(ctx, s.db, d)
}

func updateDistribution(ctx context.Context, db execer, d dividend.Distribution) (dividend.Distribution, error) {
	d.UpdatedAt = time.Now().UTC()
	result, err := db.ExecContext(ctx, `
		UPDATE coop_distributions
		SET total_interest = $2, quota_members = $3, full_dividend = $4, projected_payout = $5,
		    total_distributed = $6, status = $7, calculated_at = $8, distributed_at = $9, updated_at = $10
		WHERE id = $1
	`, d.ID, d.TotalInterest, d.QuotaMembers, d.FullDividend, d.ProjectedPayout,
		d.TotalDistributed, d.Status, nullTime(d.CalculatedAt), nullTime(d.DistributedAt), d.UpdatedAt)
	if err != nil {
		return dividend.Distribution{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return dividend.Distribution{}, sql.ErrNoRows
	}
	return d, nil
}

func (s *Store) GetDistribution(ctx context.Context, id string) (dividend.Distribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+distributionColumns+` FROM coop_distributions WHERE id = $1`, id)
	d, err := scanDistribution(row)
	if err == sql.ErrNoRows {
		return dividend.Distribution{}, fmt.Errorf("distribution %s not found", id)
	}
	return d, err
}

func (s *Store) GetDistributionByYear(ctx context.Context, year int) (dividend.Distribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+distributionColumns+` FROM coop_distributions WHERE year = $1`, year)
	d, err := scanDistribution(row)
	if err == sql.ErrNoRows {
		return dividend.Distribution{}, fmt.Errorf("distribution for year %d not found", year)
	}
	return d, err
}

func (s *Store) ListDistributions(ctx context.Context) ([]dividend.Distribution, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+distributionColumns+` FROM coop_distributions ORDER BY year`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]dividend.Distribution, 0)
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// --- WithdrawalStore ---------------------------------------------------------

const withdrawalColumns = `id, member_id, amount, requested_at, eligible_at, status, admin_notes,
	reviewed_by, completed_at, created_at, updated_at`

func scanWithdrawal(row scanner) (withdrawal.Request, error) {
	var (
		req         withdrawal.Request
		completedAt sql.NullTime
	)
	err := row.Scan(&req.ID, &req.MemberID, &req.Amount, &req.RequestedAt, &req.EligibleAt,
		&req.Status, &req.AdminNotes, &req.ReviewedBy, &completedAt, &req.CreatedAt, &req.UpdatedAt)
	req.CompletedAt = timeOf(completedAt)
	return req, err
}

func (s *Store) CreateWithdrawal(ctx context.Context, req withdrawal.Request) (withdrawal.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coop_withdrawals (`+withdrawalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, req.ID, req.MemberID, req.Amount, req.RequestedAt, req.EligibleAt, req.Status,
		req.AdminNotes, req.ReviewedBy, nullTime(req.CompletedAt), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return withdrawal.Request{}, err
	}
	return req, nil
}

func (s *Store) UpdateWithdrawal(ctx context.Context, req withdrawal.Request) (withdrawal.Request, error) {
	return updateWithdrawal(ctx, s.db, req)
}

// updateWithdrawal predicates status flips on the stored status, so a
// concurrent duplicate approve or complete affects zero rows instead of
// debiting twice.
func updateWithdrawal(ctx context.Context, db execer, req withdrawal.Request) (withdrawal.Request, error) {
	req.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE coop_withdrawals
		SET status = $2, admin_notes = $3, reviewed_by = $4, completed_at = $5, updated_at = $6
		WHERE id = $1`
	args := []any{req.ID, req.Status, req.AdminNotes, req.ReviewedBy, nullTime(req.CompletedAt), req.UpdatedAt}
	from, guarded := withdrawal.SourceStatus(req.Status)
	if guarded {
		query += ` AND status = $7`
		args = append(args, from)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return withdrawal.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		if guarded {
			return withdrawal.Request{}, errs.Conflict("withdrawal", req.ID, "withdrawal is no longer %s", from)
		}
		return withdrawal.Request{}, sql.ErrNoRows
	}
	return req, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id string) (withdrawal.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+withdrawalColumns+` FROM coop_withdrawals WHERE id = $1`, id)
	req, err := scanWithdrawal(row)
	if err == sql.ErrNoRows {
		return withdrawal.Request{}, fmt.Errorf("withdrawal %s not found", id)
	}
	return req, err
}

func (s *Store) ListWithdrawals(ctx context.Context, memberID string) ([]withdrawal.Request, error) {
	return s.queryWithdrawals(ctx, `
		SELECT `+withdrawalColumns+` FROM coop_withdrawals
		WHERE $1 = '' OR member_id = $1
		ORDER BY created_at
	`, memberID)
}

func (s *Store) ListWithdrawalsByStatus(ctx context.Context, status withdrawal.Status) ([]withdrawal.Request, error) {
	return s.queryWithdrawals(ctx, `
		SELECT `+withdrawalColumns+` FROM coop_withdrawals
		WHERE status = $1
		ORDER BY created_at
	`, status)
}

func (s *Store) queryWithdrawals(ctx context.Context, query string, arg any) ([]withdrawal.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]withdrawal.Request, 0)
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// --- LedgerStore -------------------------------------------------------------

// ApplyPosting runs every leg of the posting inside one transaction.
func (s *Store) ApplyPosting(ctx context.Context, p storage.Posting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if p.InsertContribution != nil {
		if _, err := insertContribution(ctx, tx, *p.InsertContribution); err != nil {
			return err
		}
	}
	if p.UpdateContribution != nil {
		if _, err := updateContribution(ctx, tx, *p.UpdateContribution); err != nil {
			return err
		}
	}
	for _, entry := range p.CapitalEntries {
		if err := applyCapitalEntry(ctx, tx, entry, now); err != nil {
			return err
		}
	}
	for _, entry := range p.WalletEntries {
		if err := applyWalletEntry(ctx, tx, entry, now); err != nil {
			return err
		}
	}
	if p.MembershipFee != nil {
		if err := applyMembershipFee(ctx, tx, *p.MembershipFee, now); err != nil {
			return err
		}
	}
	if p.ServiceFee != nil {
		fee := *p.ServiceFee
		if fee.ID == "" {
			fee.ID = uuid.NewString()
		}
		fee.CreatedAt = now
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO coop_service_fees (id, member_id, type, base_amount, service_fee, admin_owner_id, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, fee.ID, fee.MemberID, fee.Type, fee.BaseAmount, fee.ServiceFee, fee.AdminOwnerID, fee.Description, fee.CreatedAt); err != nil {
			return err
		}
	}
	if p.UpdateWithdrawal != nil {
		if _, err := updateWithdrawal(ctx, tx, *p.UpdateWithdrawal); err != nil {
			return err
		}
	}
	if p.UpdateDistribution != nil {
		if _, err := updateDistribution(ctx, tx, *p.UpdateDistribution); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func applyCapitalEntry(ctx context.Context, tx *sql.Tx, entry member.CapitalEntry, now time.Time) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coop_capital_entries (id, member_id, amount, type, reference_type, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.MemberID, entry.Amount, entry.Type, entry.ReferenceType, entry.ReferenceID, entry.Description, entry.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return errs.Conflict("capital_entry", entry.ReferenceID, "member %s already credited for %s %s", entry.MemberID, entry.ReferenceType, entry.ReferenceID)
		}
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE coop_members SET share_capital = share_capital + $2, updated_at = $3 WHERE id = $1
	`, entry.MemberID, entry.Amount, now)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("member %s not found", entry.MemberID)
	}
	return nil
}

func applyWalletEntry(ctx context.Context, tx *sql.Tx, entry revenue.Entry, now time.Time) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = now

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coop_wallet_entries (id, wallet_id, amount, type, reference_type, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.WalletID, entry.Amount, entry.Type, entry.ReferenceType, entry.ReferenceID, entry.Description, entry.CreatedAt); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE coop_wallets SET balance = balance + $2, updated_at = $3 WHERE id = $1
	`, entry.WalletID, entry.Amount, now)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("wallet %s not found", entry.WalletID)
	}
	return nil
}

func applyMembershipFee(ctx context.Context, tx *sql.Tx, fee revenue.MembershipFee, now time.Time) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	if fee.CollectedAt.IsZero() {
		fee.CollectedAt = now
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coop_membership_fees (id, member_id, amount, method, collected_by, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fee.ID, fee.MemberID, fee.Amount, fee.Method, fee.CollectedBy, fee.CollectedAt); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE coop_members SET membership_fee_paid = TRUE, updated_at = $2 WHERE id = $1
	`, fee.MemberID, now)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("member %s not found", fee.MemberID)
	}
	return nil
}

// ApplyLoanPayment updates the loan (version-checked), appends the payment
// and accrues the interest portion onto the member's tracking row for the
// payment's year, all in one transaction.
func (s *Store) ApplyLoanPayment(ctx context.Context, ln loan.Loan, pay loan.Payment, interest decimal.Decimal) (loan.Loan, loan.Payment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return loan.Loan{}, loan.Payment{}, err
	}
	defer tx.Rollback()

	updated, err := updateLoan(ctx, tx, ln)
	if err != nil {
		return loan.Loan{}, loan.Payment{}, err
	}

	if pay.ID == "" {
		pay.ID = uuid.NewString()
	}
	pay.LoanID = updated.ID
	pay.CreatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO coop_loan_payments (id, loan_id, amount, method, date, late, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, pay.ID, pay.LoanID, pay.Amount, pay.Method, pay.Date, pay.Late, pay.CreatedAt); err != nil {
		return loan.Loan{}, loan.Payment{}, err
	}

	if interest.IsPositive() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO coop_interest_tracking (id, member_id, year, total_interest_paid, quota_met, dividend_amount, updated_at)
			VALUES ($1, $2, $3, $4, FALSE, 0, $5)
			ON CONFLICT (member_id, year) DO UPDATE
			SET total_interest_paid = coop_interest_tracking.total_interest_paid + EXCLUDED.total_interest_paid,
			    updated_at = EXCLUDED.updated_at
		`, uuid.NewString(), updated.MemberID, pay.Date.Year(), interest, pay.CreatedAt); err != nil {
			return loan.Loan{}, loan.Payment{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return loan.Loan{}, loan.Payment{}, err
	}
	return updated, pay, nil
}
