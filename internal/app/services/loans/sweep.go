package loans

import (
	"context"
	"sync"
	"time"

	"github.com/bayanihan-circle/coop_ledger/internal/app/system"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// ActivationPoller periodically sweeps scheduled loans whose date has
// arrived into pending. The sweep itself is idempotent, so overlapping runs
// (poller, cron schedule, manual trigger) are safe.
type ActivationPoller struct {
	service  *Service
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*ActivationPoller)(nil)

// NewActivationPoller builds a poller with a 15 minute default interval.
func NewActivationPoller(service *Service, log *logger.Logger) *ActivationPoller {
	if log == nil {
		log = logger.NewDefault("loan-activation")
	}
	return &ActivationPoller{
		service:  service,
		interval: 15 * time.Minute,
		log:      log,
	}
}

// WithInterval overrides the sweep interval. Call before Start.
func (p *ActivationPoller) WithInterval(interval time.Duration) *ActivationPoller {
	if interval > 0 {
		p.interval = interval
	}
	return p
}

func (p *ActivationPoller) Name() string { return "loan-activation" }

func (p *ActivationPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.Info("loan activation poller started")
	return nil
}

func (p *ActivationPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (p *ActivationPoller) tick(ctx context.Context) {
	if _, err := p.service.ActivateScheduled(ctx, time.Now().UTC()); err != nil {
		p.log.WithError(err).Warn("scheduled loan sweep failed")
	}
}
