package engine

// The hook interfaces below are optional extensions of macro.Macro.
// The executor type-asserts each matched macro against them per phase;
// a macro implements only the phases it participates in.

// BeforeHook runs before the step body, sequentially in registration
// order. A hook may gate execution by calling ctl.SetResult, which
// returns the value immediately without invoking the step body or the
// after chain.
type BeforeHook interface {
	Before(ctx *Ctx, ctl *Control) error
}

// AfterHook runs after a successful step body, sequentially in
// registration order. Each hook receives the running value and may
// replace it; calling ctl.SetResult overrides the value seen by
// downstream hooks.
type AfterHook interface {
	After(ctx *Ctx, ctl *Control, value any) (any, error)
}

// ErrorHook runs when the step body (or a before hook) fails. The
// first hook returning a non-nil recovered value short-circuits the
// remaining hooks and the executor returns normally; otherwise the
// original error propagates unchanged.
type ErrorHook interface {
	OnError(ctx *Ctx, err error) (any, bool)
}
