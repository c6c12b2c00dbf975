// Package compose provides step composition sugar: sequential pipes,
// fan-out parallel execution, races, and predicate branches. Every
// combinator re-enters the engine through the execution context, so
// each composed step gets its own validate/resolve/weave cycle and the
// parent's metadata is inherited per the usual child rules.
package compose

import (
	"context"
	"sync"

	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/result"
)

// Pipe runs the steps sequentially, feeding each step's output in as
// the next step's base payload. The first failure aborts the pipe; the
// final step's output is the pipe's value.
func Pipe(ctx *engine.Ctx, steps ...engine.Step) (any, error) {
	value := ctx.Base
	for _, step := range steps {
		v, err := ctx.ChildWith(ctx, step, value)
		if err != nil {
			return nil, err
		}
		value = v
	}
	return value, nil
}

// Parallel runs the steps concurrently with the parent's base payload
// and collects their outputs in step order. The first failure (by step
// order, not completion order) is returned; outputs of the others are
// discarded on failure.
func Parallel(ctx *engine.Ctx, steps ...engine.Step) ([]any, error) {
	outcomes := make([]result.Result[any], len(steps))

	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step engine.Step) {
			defer wg.Done()
			outcomes[i] = result.Of(ctx.ChildWith(ctx, step, ctx.Base))
		}(i, step)
	}
	wg.Wait()

	values := make([]any, len(steps))
	for i, out := range outcomes {
		v, err := out.Get()
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Race runs the steps concurrently and returns the first settled
// outcome, success or failure. The remaining branches are cancelled;
// their results are discarded.
func Race(ctx *engine.Ctx, steps ...engine.Step) (any, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settled := make(chan result.Result[any], len(steps))
	for _, step := range steps {
		go func(step engine.Step) {
			settled <- result.Of(ctx.ChildWith(rctx, step, ctx.Base))
		}(step)
	}

	first := <-settled
	cancel()
	return first.Get()
}

// Branch selects a step by predicate over the base payload and runs
// it. A nil alternative makes the false branch a no-op returning the
// base unchanged.
func Branch(ctx *engine.Ctx, pred func(base any) bool, ifTrue engine.Step, ifFalse *engine.Step) (any, error) {
	if pred(ctx.Base) {
		return ctx.Child(ifTrue)
	}
	if ifFalse == nil {
		return ctx.Base, nil
	}
	return ctx.Child(*ifFalse)
}
