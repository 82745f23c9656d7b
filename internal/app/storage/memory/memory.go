package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

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

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. Postings apply under a single lock scope, so multi-record
// mutations are atomic by construction.
type Store struct {
	mu             sync.RWMutex
	nextID         int64
	members        map[string]member.Member
	membersByEmail map[string]string
	capitalEntries map[string][]member.CapitalEntry
	contributions  map[string]contribution.Contribution
	loans          map[string]loan.Loan
	payments       map[string][]loan.Payment
	wallets        map[string]revenue.Wallet
	walletsByOwner map[string]string
	walletEntries  map[string][]revenue.Entry
	membershipFees []revenue.MembershipFee
	serviceFees    []revenue.ServiceFeeTransaction
	tracking       map[string]dividend.InterestTracking
	distributions  map[string]dividend.Distribution
	withdrawals    map[string]withdrawal.Request
}

var _ storage.MemberStore = (*Store)(nil)
var _ storage.ContributionStore = (*Store)(nil)
var _ storage.LoanStore = (*Store)(nil)
var _ storage.WalletStore = (*Store)(nil)
var _ storage.DividendStore = (*Store)(nil)
var _ storage.WithdrawalStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:         1,
		members:        make(map[string]member.Member),
		membersByEmail: make(map[string]string),
		capitalEntries: make(map[string][]member.CapitalEntry),
		contributions:  make(map[string]contribution.Contribution),
		loans:          make(map[string]loan.Loan),
		payments:       make(map[string][]loan.Payment),
		wallets:        make(map[string]revenue.Wallet),
		walletsByOwner: make(map[string]string),
		walletEntries:  make(map[string][]revenue.Entry),
		tracking:       make(map[string]dividend.InterestTracking),
		distributions:  make(map[string]dividend.Distribution),
		withdrawals:    make(map[string]withdrawal.Request),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func ownerKey(ownerID string, ownerType revenue.OwnerType) string {
	return string(ownerType) + "|" + ownerID
}

func trackingKey(memberID string, year int) string {
	return fmt.Sprintf("%s|%d", memberID, year)
}

// MemberStore implementation --------------------------------------------------

func (s *Store) CreateMember(_ context.Context, m member.Member) (member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = s.nextIDLocked()
	} else if _, exists := s.members[m.ID]; exists {
		return member.Member{}, fmt.Errorf("member %s already exists", m.ID)
	}

	emailKey := strings.ToLower(strings.TrimSpace(m.Email))
	if emailKey != "" {
		if existing, exists := s.membersByEmail[emailKey]; exists {
			return member.Member{}, fmt.Errorf("email %s already registered to member %s", m.Email, existing)
		}
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	s.members[m.ID] = m
	if emailKey != "" {
		s.membersByEmail[emailKey] = m.ID
	}
	return m, nil
}

func (s *Store) UpdateMember(_ context.Context, m member.Member) (member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.members[m.ID]
	if !ok {
		return member.Member{}, fmt.Errorf("member %s not found", m.ID)
	}

	oldKey := strings.ToLower(strings.TrimSpace(original.Email))
	newKey := strings.ToLower(strings.TrimSpace(m.Email))
	if newKey != "" {
		if existing, exists := s.membersByEmail[newKey]; exists && existing != m.ID {
			return member.Member{}, fmt.Errorf("email %s already registered to member %s", m.Email, existing)
		}
	}

	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	s.members[m.ID] = m
	if oldKey != "" && oldKey != newKey {
		delete(s.membersByEmail, oldKey)
	}
	if newKey != "" {
		s.membersByEmail[newKey] = m.ID
	}
	return m, nil
}

func (s *Store) GetMember(_ context.Context, id string) (member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return member.Member{}, fmt.Errorf("member %s not found", id)
	}
	return m, nil
}

func (s *Store) GetMemberByEmail(_ context.Context, email string) (member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.membersByEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return s.members[id], nil
	}
	return member.Member{}, fmt.Errorf("member with email %s not found", email)
}

func (s *Store) ListMembers(_ context.Context) ([]member.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]member.Member, 0, len(s.members))
	for _, m := range s.members {
		result = append(result, m)
	}
	return result, nil
}

func (s *Store) ListCapitalEntries(_ context.Context, memberID string) ([]member.CapitalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]member.CapitalEntry(nil), s.capitalEntries[memberID]...), nil
}

func (s *Store) HasCapitalEntry(_ context.Context, memberID, referenceType, referenceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hasCapitalEntryLocked(memberID, referenceType, referenceID), nil
}

func (s *Store) hasCapitalEntryLocked(memberID, referenceType, referenceID string) bool {
	for _, entry := range s.capitalEntries[memberID] {
		if entry.ReferenceType == referenceType && entry.ReferenceID == referenceID {
			return true
		}
	}
	return false
}

func (s *Store) LastCapitalActivity(_ context.Context, memberID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	for _, entry := range s.capitalEntries[memberID] {
		if entry.CreatedAt.After(last) {
			last = entry.CreatedAt
		}
	}
	return last, nil
}

// ContributionStore implementation --------------------------------------------

func (s *Store) CreateContribution(_ context.Context, c contribution.Contribution) (contribution.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createContributionLocked(c)
}

func (s *Store) createContributionLocked(c contribution.Contribution) (contribution.Contribution, error) {
	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.contributions[c.ID]; exists {
		return contribution.Contribution{}, fmt.Errorf("contribution %s already exists", c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.contributions[c.ID] = c
	return c, nil
}

func (s *Store) GetContribution(_ context.Context, id string) (contribution.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contributions[id]
	if !ok {
		return contribution.Contribution{}, fmt.Errorf("contribution %s not found", id)
	}
	return c, nil
}

func (s *Store) ListContributions(_ context.Context, memberID string) ([]contribution.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]contribution.Contribution, 0)
	for _, c := range s.contributions {
		if memberID == "" || c.MemberID == memberID {
			result = append(result, c)
		}
	}
	return result, nil
}

// LoanStore implementation ----------------------------------------------------

func (s *Store) CreateLoan(_ context.Context, ln loan.Loan) (loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ln.ID == "" {
		ln.ID = s.nextIDLocked()
	} else if _, exists := s.loans[ln.ID]; exists {
		return loan.Loan{}, fmt.Errorf("loan %s already exists", ln.ID)
	}

	now := time.Now().UTC()
	ln.CreatedAt = now
	ln.UpdatedAt = now
	ln.Version = 1

	s.loans[ln.ID] = ln
	return ln, nil
}

func (s *Store) UpdateLoan(_ context.Context, ln loan.Loan) (loan.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLoanLocked(ln)
}

func (s *Store) updateLoanLocked(ln loan.Loan) (loan.Loan, error) {
	original, ok := s.loans[ln.ID]
	if !ok {
		return loan.Loan{}, fmt.Errorf("loan %s not found", ln.ID)
	}
	if ln.Version != original.Version {
		return loan.Loan{}, errs.Conflict("loan", ln.ID, "stale version %d (current %d)", ln.Version, original.Version)
	}

	ln.CreatedAt = original.CreatedAt
	ln.UpdatedAt = time.Now().UTC()
	ln.Version = original.Version + 1

	s.loans[ln.ID] = ln
	return ln, nil
}

func (s *Store) GetLoan(_ context.Context, id string) (loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ln, ok := s.loans[id]
	if !ok {
		return loan.Loan{}, fmt.Errorf("loan %s not found", id)
	}
	return ln, nil
}

func (s *Store) ListLoans(_ context.Context, memberID string) ([]loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]loan.Loan, 0)
	for _, ln := range s.loans {
		if memberID == "" || ln.MemberID == memberID {
			result = append(result, ln)
		}
	}
	return result, nil
}

func (s *Store) ListLoansByStatus(_ context.Context, status loan.Status) ([]loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]loan.Loan, 0)
	for _, ln := range s.loans {
		if ln.Status == status {
			result = append(result, ln)
		}
	}
	return result, nil
}

func (s *Store) ListPayments(_ context.Context, loanID string) ([]loan.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]loan.Payment(nil), s.payments[loanID]...), nil
}

// WalletStore implementation --------------------------------------------------

func (s *Store) CreateWallet(_ context.Context, w revenue.Wallet) (revenue.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = s.nextIDLocked()
	} else if _, exists := s.wallets[w.ID]; exists {
		return revenue.Wallet{}, fmt.Errorf("wallet %s already exists", w.ID)
	}

	key := ownerKey(w.OwnerID, w.OwnerType)
	if existing, exists := s.walletsByOwner[key]; exists {
		return revenue.Wallet{}, fmt.Errorf("wallet for %s %s already exists (%s)", w.OwnerType, w.OwnerID, existing)
	}

	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	s.wallets[w.ID] = w
	s.walletsByOwner[key] = w.ID
	return w, nil
}

func (s *Store) GetWallet(_ context.Context, id string) (revenue.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return revenue.Wallet{}, fmt.Errorf("wallet %s not found", id)
	}
	return w, nil
}

func (s *Store) GetWalletByOwner(_ context.Context, ownerID string, ownerType revenue.OwnerType) (revenue.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.walletsByOwner[ownerKey(ownerID, ownerType)]; ok {
		return s.wallets[id], nil
	}
	return revenue.Wallet{}, fmt.Errorf("wallet for %s %s not found", ownerType, ownerID)
}

func (s *Store) ListWallets(_ context.Context) ([]revenue.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]revenue.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		result = append(result, w)
	}
	return result, nil
}

func (s *Store) ListWalletEntries(_ context.Context, walletID string) ([]revenue.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]revenue.Entry(nil), s.walletEntries[walletID]...), nil
}

func (s *Store) ListMembershipFees(_ context.Context) ([]revenue.MembershipFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]revenue.MembershipFee(nil), s.membershipFees...), nil
}

func (s *Store) ListServiceFeeTransactions(_ context.Context, adminOwnerID string) ([]revenue.ServiceFeeTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]revenue.ServiceFeeTransaction, 0)
	for _, tx := range s.serviceFees {
		if adminOwnerID == "" || tx.AdminOwnerID == adminOwnerID {
			result = append(result, tx)
		}
	}
	return result, nil
}

// DividendStore implementation ------------------------------------------------

func (s *Store) UpsertInterestTracking(_ context.Context, t dividend.InterestTracking) (dividend.InterestTracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertTrackingLocked(t), nil
}

func (s *Store) upsertTrackingLocked(t dividend.InterestTracking) dividend.InterestTracking {
	key := trackingKey(t.MemberID, t.Year)
	if existing, ok := s.tracking[key]; ok {
		t.ID = existing.ID
	} else if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	t.UpdatedAt = time.Now().UTC()
	s.tracking[key] = t
	return t
}

func (s *Store) GetInterestTracking(_ context.Context, memberID string, year int) (dividend.InterestTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracking[trackingKey(memberID, year)]
	if !ok {
		return dividend.InterestTracking{}, fmt.Errorf("interest tracking for member %s in %d not found", memberID, year)
	}
	return t, nil
}

func (s *Store) ListInterestTracking(_ context.Context, year int) ([]dividend.InterestTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]dividend.InterestTracking, 0)
	for _, t := range s.tracking {
		if t.Year == year {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *Store) CreateDistribution(_ context.Context, d dividend.Distribution) (dividend.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = s.nextIDLocked()
	} else if _, exists := s.distributions[d.ID]; exists {
		return dividend.Distribution{}, fmt.Errorf("distribution %s already exists", d.ID)
	}
	for _, existing := range s.distributions {
		if existing.Year == d.Year {
			return dividend.Distribution{}, fmt.Errorf("distribution for year %d already exists", d.Year)
		}
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	s.distributions[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDistribution(_ context.Context, d dividend.Distribution) (dividend.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateDistributionLocked(d)
}

func (s *Store) updateDistributionLocked(d dividend.Distribution) (dividend.Distribution, error) {
	original, ok := s.distributions[d.ID]
	if !ok {
		return dividend.Distribution{}, fmt.Errorf("distribution %s not found", d.ID)
	}

	d.CreatedAt = original.CreatedAt
	d.UpdatedAt = time.Now().UTC()

	s.distributions[d.ID] = d
	return d, nil
}

func (s *Store) GetDistribution(_ context.Context, id string) (dividend.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.distributions[id]
	if !ok {
		return dividend.Distribution{}, fmt.Errorf("distribution %s not found", id)
	}
	return d, nil
}

func (s *Store) GetDistributionByYear(_ context.Context, year int) (dividend.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.distributions {
		if d.Year == year {
			return d, nil
		}
	}
	return dividend.Distribution{}, fmt.Errorf("distribution for year %d not found", year)
}

func (s *Store) ListDistributions(_ context.Context) ([]dividend.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]dividend.Distribution, 0, len(s.distributions))
	for _, d := range s.distributions {
		result = append(result, d)
	}
	return result, nil
}

// WithdrawalStore implementation ----------------------------------------------

func (s *Store) CreateWithdrawal(_ context.Context, req withdrawal.Request) (withdrawal.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = s.nextIDLocked()
	} else if _, exists := s.withdrawals[req.ID]; exists {
		return withdrawal.Request{}, fmt.Errorf("withdrawal %s already exists", req.ID)
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	s.withdrawals[req.ID] = req
	return req, nil
}

func (s *Store) UpdateWithdrawal(_ context.Context, req withdrawal.Request) (withdrawal.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateWithdrawalLocked(req)
}

func (s *Store) updateWithdrawalLocked(req withdrawal.Request) (withdrawal.Request, error) {
	original, ok := s.withdrawals[req.ID]
	if !ok {
		return withdrawal.Request{}, fmt.Errorf("withdrawal %s not found", req.ID)
	}
	if from, guarded := withdrawal.SourceStatus(req.Status); guarded && original.Status != from {
		return withdrawal.Request{}, errs.Conflict("withdrawal", req.ID, "withdrawal is %s, not %s", original.Status, from)
	}

	req.CreatedAt = original.CreatedAt
	req.UpdatedAt = time.Now().UTC()

	s.withdrawals[req.ID] = req
	return req, nil
}

func (s *Store) GetWithdrawal(_ context.Context, id string) (withdrawal.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.withdrawals[id]
	if !ok {
		return withdrawal.Request{}, fmt.Errorf("withdrawal %s not found", id)
	}
	return req, nil
}

func (s *Store) ListWithdrawals(_ context.Context, memberID string) ([]withdrawal.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]withdrawal.Request, 0)
	for _, req := range s.withdrawals {
		if memberID == "" || req.MemberID == memberID {
			result = append(result, req)
		}
	}
	return result, nil
}

func (s *Store) ListWithdrawalsByStatus(_ context.Context, status withdrawal.Status) ([]withdrawal.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]withdrawal.Request, 0)
	for _, req := range s.withdrawals {
		if req.Status == status {
			result = append(result, req)
		}
	}
	return result, nil
}

// LedgerStore implementation --------------------------------------------------

// ApplyPosting validates every target record first, then mutates under the
// store lock, so a posting never applies partially.
func (s *Store) ApplyPosting(_ context.Context, p storage.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UpdateContribution != nil {
		current, ok := s.contributions[p.UpdateContribution.ID]
		if !ok {
			return fmt.Errorf("contribution %s not found", p.UpdateContribution.ID)
		}
		if from, guarded := contribution.SourceStatus(p.UpdateContribution.Status); guarded && current.Status != from {
			return errs.Conflict("contribution", current.ID, "contribution is %s, not %s", current.Status, from)
		}
	}
	for _, entry := range p.CapitalEntries {
		if _, ok := s.members[entry.MemberID]; !ok {
			return fmt.Errorf("member %s not found", entry.MemberID)
		}
		if entry.ReferenceType != "" && s.hasCapitalEntryLocked(entry.MemberID, entry.ReferenceType, entry.ReferenceID) {
			return errs.Conflict("capital_entry", entry.ReferenceID, "member %s already credited for %s %s", entry.MemberID, entry.ReferenceType, entry.ReferenceID)
		}
	}
	for _, entry := range p.WalletEntries {
		if _, ok := s.wallets[entry.WalletID]; !ok {
			return fmt.Errorf("wallet %s not found", entry.WalletID)
		}
	}
	if p.MembershipFee != nil {
		if _, ok := s.members[p.MembershipFee.MemberID]; !ok {
			return fmt.Errorf("member %s not found", p.MembershipFee.MemberID)
		}
	}
	if p.UpdateWithdrawal != nil {
		current, ok := s.withdrawals[p.UpdateWithdrawal.ID]
		if !ok {
			return fmt.Errorf("withdrawal %s not found", p.UpdateWithdrawal.ID)
		}
		if from, guarded := withdrawal.SourceStatus(p.UpdateWithdrawal.Status); guarded && current.Status != from {
			return errs.Conflict("withdrawal", current.ID, "withdrawal is %s, not %s", current.Status, from)
		}
	}
	if p.UpdateDistribution != nil {
		if _, ok := s.distributions[p.UpdateDistribution.ID]; !ok {
			return fmt.Errorf("distribution %s not found", p.UpdateDistribution.ID)
		}
	}

	now := time.Now().UTC()

	if p.InsertContribution != nil {
		if _, err := s.createContributionLocked(*p.InsertContribution); err != nil {
			return err
		}
	}
	if p.UpdateContribution != nil {
		c := *p.UpdateContribution
		original := s.contributions[c.ID]
		c.CreatedAt = original.CreatedAt
		c.UpdatedAt = now
		s.contributions[c.ID] = c
	}
	for _, entry := range p.CapitalEntries {
		if entry.ID == "" {
			entry.ID = s.nextIDLocked()
		}
		entry.CreatedAt = now
		s.capitalEntries[entry.MemberID] = append(s.capitalEntries[entry.MemberID], entry)

		m := s.members[entry.MemberID]
		m.ShareCapital = m.ShareCapital.Add(entry.Amount)
		m.UpdatedAt = now
		s.members[entry.MemberID] = m
	}
	for _, entry := range p.WalletEntries {
		if entry.ID == "" {
			entry.ID = s.nextIDLocked()
		}
		entry.CreatedAt = now
		s.walletEntries[entry.WalletID] = append(s.walletEntries[entry.WalletID], entry)

		w := s.wallets[entry.WalletID]
		w.Balance = w.Balance.Add(entry.Amount)
		w.UpdatedAt = now
		s.wallets[entry.WalletID] = w
	}
	if p.MembershipFee != nil {
		fee := *p.MembershipFee
		if fee.ID == "" {
			fee.ID = s.nextIDLocked()
		}
		if fee.CollectedAt.IsZero() {
			fee.CollectedAt = now
		}
		s.membershipFees = append(s.membershipFees, fee)

		m := s.members[fee.MemberID]
		m.MembershipFeePaid = true
		m.UpdatedAt = now
		s.members[fee.MemberID] = m
	}
	if p.ServiceFee != nil {
		tx := *p.ServiceFee
		if tx.ID == "" {
			tx.ID = s.nextIDLocked()
		}
		tx.CreatedAt = now
		s.serviceFees = append(s.serviceFees, tx)
	}
	if p.UpdateWithdrawal != nil {
		if _, err := s.updateWithdrawalLocked(*p.UpdateWithdrawal); err != nil {
			return err
		}
	}
	if p.UpdateDistribution != nil {
		if _, err := s.updateDistributionLocked(*p.UpdateDistribution); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) ApplyLoanPayment(_ context.Context, ln loan.Loan, pay loan.Payment, interest decimal.Decimal) (loan.Loan, loan.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.updateLoanLocked(ln)
	if err != nil {
		return loan.Loan{}, loan.Payment{}, err
	}

	if pay.ID == "" {
		pay.ID = s.nextIDLocked()
	}
	pay.LoanID = updated.ID
	pay.CreatedAt = time.Now().UTC()
	s.payments[updated.ID] = append(s.payments[updated.ID], pay)

	if interest.IsPositive() {
		year := pay.Date.Year()
		key := trackingKey(updated.MemberID, year)
		t, ok := s.tracking[key]
		if !ok {
			t = dividend.InterestTracking{MemberID: updated.MemberID, Year: year}
		}
		t.TotalInterestPaid = t.TotalInterestPaid.Add(interest)
		s.upsertTrackingLocked(t)
	}

	return updated, pay, nil
}
