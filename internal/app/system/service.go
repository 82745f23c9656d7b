// Package system manages startup and shutdown ordering for the ledger's
// long-running components.
package system

import "context"

// Service is a component with a managed lifecycle, such as the loan
// activation poller or the cron scheduler. Start must return once the
// component is running; Stop must not return until its work is done or ctx
// expires.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
