package funds

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/loan"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Snapshot is the circle's lendable position at a point in time.
type Snapshot struct {
	TotalCapital        decimal.Decimal `json:"total_capital"`
	OutstandingLoans    decimal.Decimal `json:"outstanding_loans"`
	ActiveFunds         decimal.Decimal `json:"active_funds"`
	Reserve             decimal.Decimal `json:"reserve"`
	AvailableForLending decimal.Decimal `json:"available_for_lending"`
	ComputedAt          time.Time       `json:"computed_at"`
}

// Cache holds recent snapshots so the full-table sweep is not repeated on
// every dashboard hit. A miss is never an error.
type Cache interface {
	Get(ctx context.Context, key string) (Snapshot, bool)
	Set(ctx context.Context, key string, snap Snapshot, ttl time.Duration)
}

const cacheKey = "funds:snapshot"

// Service computes the active funds position from member capital and the
// outstanding loan book.
type Service struct {
	members storage.MemberStore
	loans   storage.LoanStore
	policy  policy.Policy
	cache   Cache
	ttl     time.Duration
	log     *logger.Logger
}

// New constructs a funds service. Cache may be nil, in which case every
// call recomputes.
func New(members storage.MemberStore, loans storage.LoanStore, pol policy.Policy, cache Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("funds")
	}
	return &Service{
		members: members,
		loans:   loans,
		policy:  pol,
		cache:   cache,
		ttl:     time.Minute,
		log:     log,
	}
}

// WithCacheTTL overrides the snapshot cache lifetime.
func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// ActiveFunds returns the current snapshot: collected capital minus the
// outstanding loan book, with the reserve ratio held back from lending.
func (s *Service) ActiveFunds(ctx context.Context) (Snapshot, error) {
	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, cacheKey); ok {
			return snap, nil
		}
	}

	snap, err := s.compute(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, snap, s.ttl)
	}
	return snap, nil
}

// Refresh recomputes the snapshot and replaces the cached copy.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	snap, err := s.compute(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, snap, s.ttl)
	}
	return snap, nil
}

func (s *Service) compute(ctx context.Context) (Snapshot, error) {
	members, err := s.members.ListMembers(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list members: %w", err)
	}
	totalCapital := decimal.Zero
	for _, m := range members {
		totalCapital = totalCapital.Add(m.ShareCapital)
	}

	active, err := s.loans.ListLoansByStatus(ctx, loan.StatusActive)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list active loans: %w", err)
	}
	outstanding := decimal.Zero
	for _, ln := range active {
		outstanding = outstanding.Add(ln.Balance)
	}

	activeFunds := totalCapital.Sub(outstanding)
	reserve := activeFunds.Mul(s.policy.ReserveRatio).Round(2)
	available := activeFunds.Sub(reserve)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return Snapshot{
		TotalCapital:        totalCapital,
		OutstandingLoans:    outstanding,
		ActiveFunds:         activeFunds,
		Reserve:             reserve,
		AvailableForLending: available,
		ComputedAt:          time.Now().UTC(),
	}, nil
}
