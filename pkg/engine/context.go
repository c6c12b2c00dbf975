package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
	"github.com/loomworks/loom/pkg/telemetry"
)

// Ctx is the per-execution context handed to step bodies and macro
// hooks. It embeds the caller's context.Context for cancellation and
// deadlines, and adds the assembled capabilities, the step metadata,
// and execution-scoped helpers.
type Ctx struct {
	context.Context

	// ExecID uniquely identifies this execution in logs and traces.
	ExecID string

	// Step is the name of the executing step.
	Step string

	// Base is the caller-supplied payload, opaque to the engine.
	Base any

	// Caps is the woven capability set assembled for this step. Ports
	// the step did not declare are nil.
	Caps *ports.Caps

	// Meta is the step's metadata, read-only.
	Meta meta.Meta

	eng    *Engine
	logger zerolog.Logger

	memoMu sync.Mutex
	memo   map[string]any
}

// Log returns the execution-scoped logger, annotated with the exec id
// and step name.
func (c *Ctx) Log() zerolog.Logger {
	return c.logger
}

// Span runs fn inside a named child span of the execution's trace.
// Without a tracer configured it simply invokes fn.
func (c *Ctx) Span(name string, fn func(ctx context.Context) error) error {
	if c.eng == nil || c.eng.opts.Tracer == nil {
		return fn(c.Context)
	}
	sctx, span := c.eng.opts.Tracer.Start(c.Context, name)
	defer span.End()
	err := fn(sctx)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	return err
}

// Memo computes the value for key at most once per execution and
// returns the cached value on subsequent calls. Compute errors are not
// cached; a failed computation is retried on the next call.
func (c *Ctx) Memo(key string, compute func() (any, error)) (any, error) {
	c.memoMu.Lock()
	if v, ok := c.memo[key]; ok {
		c.memoMu.Unlock()
		return v, nil
	}
	c.memoMu.Unlock()

	v, err := compute()
	if err != nil {
		return nil, err
	}

	c.memoMu.Lock()
	if c.memo == nil {
		c.memo = make(map[string]any)
	}
	// A concurrent compute may have won; keep the first stored value so
	// every caller observes the same one.
	if prev, ok := c.memo[key]; ok {
		v = prev
	} else {
		c.memo[key] = v
	}
	c.memoMu.Unlock()
	return v, nil
}

// Child runs a nested step through the same engine. The child's
// metadata extends the parent's: the child's present fields win, the
// rest are inherited, so a child restating nothing runs with the
// parent's declarations. The parent's base payload is passed through.
func (c *Ctx) Child(step Step) (any, error) {
	return c.ChildWith(c.Context, step, c.Base)
}

// ChildWith runs a nested step with an explicit context and base
// payload. Composition helpers use it to thread values between steps
// and to cancel losing race branches.
func (c *Ctx) ChildWith(ctx context.Context, step Step, base any) (any, error) {
	if c.eng == nil {
		return nil, errNoEngine
	}
	child := step
	child.Meta = meta.Inherit(c.Meta, step.Meta)
	return c.eng.Execute(ctx, child, base)
}
