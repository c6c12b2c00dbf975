package compose

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/macro"
)

func testEngine() *engine.Engine {
	return engine.New(macro.NewRegistry(), macro.Env{}, engine.Options{
		Logger: zerolog.New(nil).Level(zerolog.Disabled),
	})
}

// runComposed executes a wrapper step whose body invokes the
// combinator under test.
func runComposed(t *testing.T, base any, body func(ctx *engine.Ctx) (any, error)) (any, error) {
	t.Helper()
	return testEngine().Execute(context.Background(), engine.Step{
		Name: "compose-root",
		Run:  body,
	}, base)
}

func appendStep(name, suffix string) engine.Step {
	return engine.Step{
		Name: name,
		Run: func(ctx *engine.Ctx) (any, error) {
			s, _ := ctx.Base.(string)
			return s + suffix, nil
		},
	}
}

func TestPipeThreadsValues(t *testing.T) {
	v, err := runComposed(t, "x", func(ctx *engine.Ctx) (any, error) {
		return Pipe(ctx, appendStep("a", "+a"), appendStep("b", "+b"), appendStep("c", "+c"))
	})
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	if v != "x+a+b+c" {
		t.Errorf("value = %v, want x+a+b+c", v)
	}
}

func TestPipeAbortsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	ran := false

	_, err := runComposed(t, "x", func(ctx *engine.Ctx) (any, error) {
		failing := engine.Step{Name: "fail", Run: func(*engine.Ctx) (any, error) { return nil, boom }}
		after := engine.Step{Name: "after", Run: func(*engine.Ctx) (any, error) {
			ran = true
			return nil, nil
		}}
		return Pipe(ctx, failing, after)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if ran {
		t.Error("step after the failure still ran")
	}
}

func TestParallelCollectsInStepOrder(t *testing.T) {
	v, err := runComposed(t, "base", func(ctx *engine.Ctx) (any, error) {
		slow := engine.Step{Name: "slow", Run: func(*engine.Ctx) (any, error) {
			time.Sleep(30 * time.Millisecond)
			return "slow", nil
		}}
		fast := engine.Step{Name: "fast", Run: func(*engine.Ctx) (any, error) {
			return "fast", nil
		}}
		return Parallel(ctx, slow, fast)
	})
	if err != nil {
		t.Fatalf("Parallel failed: %v", err)
	}
	values, ok := v.([]any)
	if !ok {
		t.Fatalf("value is %T, want []any", v)
	}
	if len(values) != 2 || values[0] != "slow" || values[1] != "fast" {
		t.Errorf("values = %v, want [slow fast] in step order", values)
	}
}

func TestParallelFailsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := runComposed(t, nil, func(ctx *engine.Ctx) (any, error) {
		okStep := engine.Step{Name: "ok", Run: func(*engine.Ctx) (any, error) { return 1, nil }}
		badStep := engine.Step{Name: "bad", Run: func(*engine.Ctx) (any, error) { return nil, boom }}
		return Parallel(ctx, okStep, badStep)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestRaceReturnsFirstSettled(t *testing.T) {
	var losers atomic.Int32
	v, err := runComposed(t, nil, func(ctx *engine.Ctx) (any, error) {
		quick := engine.Step{Name: "quick", Run: func(*engine.Ctx) (any, error) {
			return "quick", nil
		}}
		slow := engine.Step{Name: "slow", Run: func(c *engine.Ctx) (any, error) {
			select {
			case <-time.After(2 * time.Second):
				return "slow", nil
			case <-c.Done():
				losers.Add(1)
				return nil, c.Err()
			}
		}}
		return Race(ctx, quick, slow)
	})
	if err != nil {
		t.Fatalf("Race failed: %v", err)
	}
	if v != "quick" {
		t.Errorf("value = %v, want quick", v)
	}
}

func TestBranch(t *testing.T) {
	big := engine.Step{Name: "big", Run: func(*engine.Ctx) (any, error) { return "big", nil }}
	small := engine.Step{Name: "small", Run: func(*engine.Ctx) (any, error) { return "small", nil }}

	isBig := func(base any) bool {
		n, _ := base.(int)
		return n > 10
	}

	v, err := runComposed(t, 50, func(ctx *engine.Ctx) (any, error) {
		return Branch(ctx, isBig, big, &small)
	})
	if err != nil {
		t.Fatalf("Branch failed: %v", err)
	}
	if v != "big" {
		t.Errorf("value = %v, want big", v)
	}

	v, err = runComposed(t, 3, func(ctx *engine.Ctx) (any, error) {
		return Branch(ctx, isBig, big, &small)
	})
	if err != nil {
		t.Fatalf("Branch failed: %v", err)
	}
	if v != "small" {
		t.Errorf("value = %v, want small", v)
	}

	v, err = runComposed(t, 3, func(ctx *engine.Ctx) (any, error) {
		return Branch(ctx, isBig, big, nil)
	})
	if err != nil {
		t.Fatalf("Branch failed: %v", err)
	}
	if v != 3 {
		t.Errorf("value = %v, want the base passed through", v)
	}
}
