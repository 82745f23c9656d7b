package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
	contributionsvc "github.com/bayanihan-circle/coop_ledger/internal/app/services/contributions"
	dividendsvc "github.com/bayanihan-circle/coop_ledger/internal/app/services/dividends"
	fundsvc "github.com/bayanihan-circle/coop_ledger/internal/app/services/funds"
	loansvc "github.com/bayanihan-circle/coop_ledger/internal/app/services/loans"
	membersvc "github.com/bayanihan-circle/coop_ledger/internal/app/services/members"
	revenuesvc "github.com/bayanihan-circle/coop_ledger/internal/app/services/revenue"
	withdrawalsvc "github.com/bayanihan-circle/coop_ledger/internal/app/services/withdrawals"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage"
	"github.com/bayanihan-circle/coop_ledger/internal/app/storage/memory"
	"github.com/bayanihan-circle/coop_ledger/internal/app/system"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Members       storage.MemberStore
	Contributions storage.ContributionStore
	Loans         storage.LoanStore
	Wallets       storage.WalletStore
	Dividends     storage.DividendStore
	Withdrawals   storage.WithdrawalStore
	Ledger        storage.LedgerStore
}

// Application ties the ledger services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	stores  Stores

	Policy policy.Policy

	Members       *membersvc.Service
	Contributions *contributionsvc.Service
	Loans         *loansvc.Service
	Dividends     *dividendsvc.Service
	Withdrawals   *withdrawalsvc.Service
	Revenue       *revenuesvc.Service
	Funds         *fundsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, pol policy.Policy, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if pol.MembershipFeeAmount.IsZero() && pol.ManagementFeePct.IsZero() {
		pol = policy.Default()
	}
	if err := pol.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	mem := memory.New()
	if stores.Members == nil {
		stores.Members = mem
	}
	if stores.Contributions == nil {
		stores.Contributions = mem
	}
	if stores.Loans == nil {
		stores.Loans = mem
	}
	if stores.Wallets == nil {
		stores.Wallets = mem
	}
	if stores.Dividends == nil {
		stores.Dividends = mem
	}
	if stores.Withdrawals == nil {
		stores.Withdrawals = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}

	manager := system.NewManager()

	memberService := membersvc.New(stores.Members, stores.Wallets, log)
	contributionService := contributionsvc.New(stores.Members, stores.Contributions, stores.Wallets, stores.Ledger, pol, log)
	loanService := loansvc.New(stores.Members, stores.Loans, stores.Ledger, pol, log)
	dividendService := dividendsvc.New(stores.Members, stores.Dividends, stores.Ledger, pol, log)
	withdrawalService := withdrawalsvc.New(stores.Members, stores.Withdrawals, stores.Ledger, pol, log)
	revenueService := revenuesvc.New(stores.Members, stores.Wallets, stores.Ledger, pol, log)
	fundService := fundsvc.New(stores.Members, stores.Loans, pol, nil, log)

	for _, name := range []string{"members", "contributions", "dividends", "withdrawals", "revenue", "funds"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	poller := loansvc.NewActivationPoller(loanService, log)
	if raw := strings.TrimSpace(os.Getenv("LOAN_SWEEP_INTERVAL")); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			log.WithError(err).Warn("invalid LOAN_SWEEP_INTERVAL; using default")
		} else {
			poller.WithInterval(interval)
		}
	}
	if err := manager.Register(poller); err != nil {
		return nil, fmt.Errorf("register %s: %w", poller.Name(), err)
	}

	return &Application{
		manager:       manager,
		log:           log,
		stores:        stores,
		Policy:        pol,
		Members:       memberService,
		Contributions: contributionService,
		Loans:         loanService,
		Dividends:     dividendService,
		Withdrawals:   withdrawalService,
		Revenue:       revenueService,
		Funds:         fundService,
	}, nil
}

// AttachFundsCache wires a snapshot cache into the funds service. Call
// before Start.
func (a *Application) AttachFundsCache(cache fundsvc.Cache) {
	a.Funds = fundsvc.New(a.stores.Members, a.stores.Loans, a.Policy, cache, a.log)
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
