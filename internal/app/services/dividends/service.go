package dividends

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/dividend"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/errs"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/member"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	"github.com/bayanihan-circle/coop_ledger/internal/app/metrics"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Service runs the year-end dividend cycle: interest accrues onto tracking
// rows as loan payments post, Calculate snapshots the year, and Distribute
// credits each member's capital exactly once.
type Service struct {
	members   storage.MemberStore
	dividends storage.DividendStore
	ledger    storage.LedgerStore
	policy    policy.Policy
	log       *logger.Logger
}

// New constructs a dividend service.
func New(members storage.MemberStore, dividends storage.DividendStore, ledger storage.LedgerStore, pol policy.Policy, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("dividends")
	}
	return &Service{
		members:   members,
		dividends: dividends,
		ledger:    ledger,
		policy:    pol,
		log:       log,
	}
}

// Calculate snapshots the dividend run for a year: the interest pool, the
// quota-meeting head count, the full dividend and each member's share. It
// can be re-run any number of times before distribution, overwriting the
// previous snapshot; after distribution the year is closed.
func (s *Service) Calculate(ctx context.Context, year int) (dividend.Distribution, error) {
	if year <= 0 {
		return dividend.Distribution{}, errs.Validation("distribution", "", "year %d is not valid", year)
	}

	existing, err := s.dividends.GetDistributionByYear(ctx, year)
	haveExisting := err == nil
	if haveExisting && existing.Status == dividend.StatusDistributed {
		return dividend.Distribution{}, errs.AlreadyDistributed("distribution", existing.ID, "dividends for %d are already distributed", year)
	}

	rows, err := s.dividends.ListInterestTracking(ctx, year)
	if err != nil {
		return dividend.Distribution{}, fmt.Errorf("list interest tracking: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MemberID < rows[j].MemberID })

	quota := s.policy.RequiredInterestQuota
	pool := decimal.Zero
	quotaCount := 0
	for _, row := range rows {
		pool = pool.Add(row.TotalInterestPaid)
		if row.TotalInterestPaid.GreaterThanOrEqual(quota) {
			quotaCount++
		}
	}

	fullDividend := decimal.Zero
	if quotaCount > 0 {
		fullDividend = pool.Div(decimal.NewFromInt(int64(quotaCount))).Round(2)
	}

	projected := decimal.Zero
	for _, row := range rows {
		row.QuotaMet = row.TotalInterestPaid.GreaterThanOrEqual(quota)
		row.DividendAmount = dividend.Share(row.TotalInterestPaid, quota, fullDividend)
		projected = projected.Add(row.DividendAmount)
		if _, err := s.dividends.UpsertInterestTracking(ctx, row); err != nil {
			return dividend.Distribution{}, fmt.Errorf("upsert tracking for %s: %w", row.MemberID, err)
		}
	}

	now := time.Now().UTC()
	d := dividend.Distribution{
		Year:            year,
		TotalInterest:   pool,
		QuotaMembers:    quotaCount,
		FullDividend:    fullDividend,
		ProjectedPayout: projected,
		Status:          dividend.StatusCalculated,
		CalculatedAt:    now,
	}
	if haveExisting {
		d.ID = existing.ID
		d, err = s.dividends.UpdateDistribution(ctx, d)
	} else {
		d, err = s.dividends.CreateDistribution(ctx, d)
	}
	if err != nil {
		return dividend.Distribution{}, fmt.Errorf("save distribution: %w", err)
	}

	metrics.RecordDistribution(string(dividend.StatusCalculated))
	s.log.Infof("distribution %s for %d calculated: pool %s, %d quota members, full dividend %s",
		d.ID, year, pool, quotaCount, fullDividend)
	return d, nil
}

// Distribute credits each member's calculated dividend to their share
// capital and closes the distribution. Members are credited one posting at
// a time keyed by the distribution id, so an interrupted run can simply be
// re-invoked: already-credited members are skipped.
func (s *Service) Distribute(ctx context.Context, distributionID string) (dividend.Distribution, error) {
	d, err := s.dividends.GetDistribution(ctx, distributionID)
	if err != nil {
		return dividend.Distribution{}, errs.Validation("distribution", distributionID, "unknown distribution %s", distributionID)
	}
	if d.Status == dividend.StatusDistributed {
		return dividend.Distribution{}, errs.AlreadyDistributed("distribution", d.ID, "dividends for %d are already distributed", d.Year)
	}
	if d.Status != dividend.StatusCalculated {
		return dividend.Distribution{}, errs.InvalidState("distribution", d.ID, "distribution must be calculated before payout, status is %s", d.Status)
	}

	rows, err := s.dividends.ListInterestTracking(ctx, d.Year)
	if err != nil {
		return dividend.Distribution{}, fmt.Errorf("list interest tracking: %w", err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MemberID < rows[j].MemberID })

	total := decimal.Zero
	credited := 0
	for _, row := range rows {
		if !row.DividendAmount.IsPositive() {
			continue
		}
		done, err := s.members.HasCapitalEntry(ctx, row.MemberID, "distribution", d.ID)
		if err != nil {
			return dividend.Distribution{}, fmt.Errorf("check credit for %s: %w", row.MemberID, err)
		}
		if done {
			total = total.Add(row.DividendAmount)
			continue
		}

		posting := storage.Posting{
			CapitalEntries: []member.CapitalEntry{{
				MemberID:      row.MemberID,
				Amount:        row.DividendAmount,
				Type:          member.EntryDividend,
				ReferenceType: "distribution",
				ReferenceID:   d.ID,
				Description:   fmt.Sprintf("%d dividend payout", d.Year),
			}},
		}
		if err := s.ledger.ApplyPosting(ctx, posting); err != nil {
			return dividend.Distribution{}, fmt.Errorf("credit member %s: %w", row.MemberID, err)
		}
		total = total.Add(row.DividendAmount)
		credited++
	}

	d.Status = dividend.StatusDistributed
	d.TotalDistributed = total
	d.DistributedAt = time.Now().UTC()
	d, err = s.dividends.UpdateDistribution(ctx, d)
	if err != nil {
		return dividend.Distribution{}, fmt.Errorf("close distribution: %w", err)
	}

	metrics.RecordDistribution(string(dividend.StatusDistributed))
	s.log.Infof("distribution %s for %d paid out: %s to %d members (%d newly credited)",
		d.ID, d.Year, total, len(rows), credited)
	return d, nil
}

// Distribution retrieves a distribution by id.
func (s *Service) Distribution(ctx context.Context, id string) (dividend.Distribution, error) {
	return s.dividends.GetDistribution(ctx, id)
}

// DistributionForYear retrieves a year's distribution.
func (s *Service) DistributionForYear(ctx context.Context, year int) (dividend.Distribution, error) {
	return s.dividends.GetDistributionByYear(ctx, year)
}

// ListDistributions returns all distributions.
func (s *Service) ListDistributions(ctx context.Context) ([]dividend.Distribution, error) {
	return s.dividends.ListDistributions(ctx)
}

// Tracking retrieves one member's interest tracking row for a year.
func (s *Service) Tracking(ctx context.Context, memberID string, year int) (dividend.InterestTracking, error) {
	return s.dividends.GetInterestTracking(ctx, memberID, year)
}

// ListTracking returns every tracking row for a year.
func (s *Service) ListTracking(ctx context.Context, year int) ([]dividend.InterestTracking, error) {
	return s.dividends.ListInterestTracking(ctx, year)
}
