package weave

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/telemetry"
)

// Options configures the weaver. The zero value is usable: it weaves
// with a fresh circuit store, a disabled logger, real time, and
// math/rand jitter.
type Options struct {
	// Logger receives the per-attempt debug/error entries and circuit
	// warnings emitted by the woven wrappers.
	Logger zerolog.Logger

	// Metrics optionally records port call, retry, circuit, and lease
	// activity.
	Metrics *telemetry.Metrics

	// Circuits is the circuit breaker state provider shared across
	// executions. Nil selects a store private to this Options value.
	Circuits StateStore

	// Rand yields uniform values in [0,1) for retry jitter. Nil
	// selects math/rand. Tests pin it for deterministic delays.
	Rand func() float64

	// Sleep waits between retry attempts. Nil selects a timer honoring
	// context cancellation. Tests inject it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now is the time source for circuit bookkeeping. Nil selects
	// time.Now.
	Now func() time.Time
}

// normalized fills in defaults, leaving the receiver untouched.
func (o Options) normalized() Options {
	if o.Circuits == nil {
		o.Circuits = NewCircuitStore()
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	if o.Sleep == nil {
		o.Sleep = sleepWithContext
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
