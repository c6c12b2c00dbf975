package hostenv

import (
	"context"
	"time"

	"github.com/loomworks/loom/pkg/ports"
)

// realClock is the wall-clock binding.
type realClock struct{}

func newClock() ports.Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
