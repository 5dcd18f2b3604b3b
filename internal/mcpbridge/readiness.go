package mcpbridge

import (
	"context"
	"errors"
	"sync"
	"time"
)

const readinessTimeout = 20 * time.Second

// Readiness gates graph-backed tools until background graph-client
// initialization has completed. Vault tools never consult it.
type Readiness struct {
	once sync.Once
	ch   chan struct{}
}

// NewReadiness builds a Readiness not yet signalled.
func NewReadiness() *Readiness {
	return &Readiness{ch: make(chan struct{})}
}

// SignalReady marks initialization complete. Safe to call more than
// once or from any goroutine; only the first call has effect.
func (r *Readiness) SignalReady() {
	r.once.Do(func() { close(r.ch) })
}

// Await blocks until ready, ctx is done, or 20s elapse, whichever comes
// first.
func (r *Readiness) Await(ctx context.Context) error {
	select {
	case <-r.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(readinessTimeout):
		return errors.New("initialization in progress")
	}
}
