// Package engine implements the six-phase step executor:
// validate → resolve → weave → before → run → (after | onError).
//
// Each execution assembles a fresh capability set from the registered
// macros (resolve), decorates it with the declared policy stack
// (weave), runs the matched macros' before hooks sequentially in
// registration order, invokes the step body, and finishes with either
// the after-hook chain (success) or the onError-hook chain (failure,
// with first-recovery-wins semantics).
//
// A before hook may short-circuit the execution by setting a result on
// the control struct: the executor then returns that value without
// invoking the step body or the after chain. The short-circuiting
// macro is responsible for having produced the final value.
//
// The execution context carries the assembled capabilities, the step
// metadata, a telemetry span helper, a request-scoped memoizer, and a
// back-reference to the owning engine so nested steps run through the
// same configuration rather than ambient globals.
package engine
