package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/macro"
	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/telemetry"
	"github.com/loomworks/loom/pkg/weave"
)

var errNoEngine = fault.Structural("execution context is not bound to an engine", nil)

// Options configures an Engine.
type Options struct {
	// StrictValidate rejects steps declaring a capability key no
	// registered macro can satisfy, with a typo suggestion when one is
	// plausible.
	StrictValidate bool

	// Logger is the engine's base logger. Executions derive a logger
	// annotated with the exec id and step name from it.
	Logger zerolog.Logger

	// Tracer optionally records a span per execution plus any child
	// spans opened through Ctx.Span.
	Tracer *telemetry.Tracer

	// Metrics optionally records step outcomes and durations. It is
	// also handed to the weaver unless Weave.Metrics is already set.
	Metrics *telemetry.Metrics

	// Weave configures the policy weaver. Its Circuits store is shared
	// across every execution of this engine, so circuit state survives
	// between steps.
	Weave weave.Options
}

// Engine executes steps through the six phases. It is safe for
// concurrent use; each execution assembles its own capability set.
type Engine struct {
	registry *macro.Registry
	env      macro.Env
	opts     Options
}

// New creates an engine backed by the given macro registry and host
// environment.
func New(registry *macro.Registry, env macro.Env, opts Options) *Engine {
	if opts.Weave.Circuits == nil {
		opts.Weave.Circuits = weave.NewCircuitStore()
	}
	if opts.Weave.Metrics == nil {
		opts.Weave.Metrics = opts.Metrics
	}
	return &Engine{registry: registry, env: env, opts: opts}
}

// Registry returns the engine's macro registry.
func (e *Engine) Registry() *macro.Registry {
	return e.registry
}

// Execute runs one step through validate, resolve, weave, before, run,
// and after/onError. The returned value is the step body's result,
// possibly replaced by a before-phase short circuit, the after chain,
// or an onError recovery.
func (e *Engine) Execute(ctx context.Context, step Step, base any) (any, error) {
	execID := uuid.NewString()
	logger := e.opts.Logger.With().
		Str("exec_id", execID).
		Str("step", step.Name).
		Logger()

	start := time.Now()

	var span trace.Span
	if e.opts.Tracer != nil {
		ctx, span = e.opts.Tracer.StartStepSpan(ctx, execID, step.Name)
		defer span.End()
	}

	value, err := e.execute(ctx, step, base, execID, logger)

	elapsed := time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordStep(step.Name, status, elapsed)
	}
	if span != nil {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
	}
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("step failed")
	} else {
		logger.Debug().Dur("elapsed", elapsed).Msg("step completed")
	}
	return value, err
}

func (e *Engine) execute(ctx context.Context, step Step, base any, execID string, logger zerolog.Logger) (any, error) {
	// Phase 1: validate. A missing body, policy config errors, and
	// unknown capability keys fail here, before any resolution I/O.
	if step.Run == nil {
		return nil, fault.Structural("step has no body", nil)
	}
	if err := meta.Validate(step.Meta); err != nil {
		return nil, err
	}
	if e.opts.StrictValidate {
		known := e.registry.Keys()
		for _, key := range step.Meta.DeclaredKeys() {
			if !e.registry.Has(key) {
				return nil, meta.UnknownKeyError(key, known)
			}
		}
	}

	matched := e.registry.Matched(step.Meta)

	// Phase 2: resolve. Matched macros contribute concurrently; the
	// merge is deterministic in registration order.
	caps, err := macro.ResolveAll(ctx, step.Meta, e.env, matched)
	if err != nil {
		return nil, err
	}

	// Phase 3: weave the declared policy stack around the resolved
	// ports and lease openers.
	wopts := e.opts.Weave
	wopts.Logger = logger
	weave.Weave(step.Meta, caps, wopts)

	ectx := &Ctx{
		Context: ctx,
		ExecID:  execID,
		Step:    step.Name,
		Base:    base,
		Caps:    caps,
		Meta:    step.Meta,
		eng:     e,
		logger:  logger,
	}
	ctl := &Control{}

	// Phase 4: before hooks, sequentially in registration order. A
	// hook setting a result gates the execution: the step body and the
	// after chain are skipped and the gated value is final.
	for _, mac := range matched {
		h, ok := mac.(BeforeHook)
		if !ok {
			continue
		}
		if err := h.Before(ectx, ctl); err != nil {
			return e.recover(ectx, matched, err)
		}
		if v, set := ctl.take(); set {
			logger.Debug().Str("macro", mac.Key()).Msg("before hook short-circuited execution")
			return v, nil
		}
	}

	// Phase 5: run the step body.
	value, err := step.Run(ectx)
	if err != nil {
		return e.recover(ectx, matched, err)
	}

	// Phase 6 (success): after hooks, sequentially in registration
	// order. Each hook sees the running value and may replace it either
	// by returning a new one or by setting a result on the control.
	for _, mac := range matched {
		h, ok := mac.(AfterHook)
		if !ok {
			continue
		}
		value, err = h.After(ectx, ctl, value)
		if err != nil {
			return e.recover(ectx, matched, err)
		}
		if v, set := ctl.take(); set {
			value = v
		}
	}
	return value, nil
}

// recover runs the onError chain. The first hook reporting recovery
// wins; its value becomes the execution result and later hooks never
// see the error. Without a recovery the original error propagates
// unchanged.
func (e *Engine) recover(ectx *Ctx, matched []macro.Macro, err error) (any, error) {
	for _, mac := range matched {
		h, ok := mac.(ErrorHook)
		if !ok {
			continue
		}
		if v, recovered := h.OnError(ectx, err); recovered {
			ectx.logger.Debug().Str("macro", mac.Key()).Err(err).Msg("onError hook recovered")
			return v, nil
		}
	}
	return nil, err
}
