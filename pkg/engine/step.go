package engine

import (
	"github.com/loomworks/loom/pkg/meta"
)

// Step is a named unit of work with declarative metadata. The body
// must only observe capabilities implied by the step's own metadata;
// capability sets are assembled fresh per step rather than shared, so
// an undeclared port is simply nil.
type Step struct {
	// Name identifies the step in logs, traces, and metrics.
	Name string

	// Meta declares the step's capability needs and policies. It is
	// read-only once the step is constructed.
	Meta meta.Meta

	// Run is the step body.
	Run func(ctx *Ctx) (any, error)
}

// Control is the explicit short-circuit side channel threaded through
// the hook phases. A hidden sentinel would work too; an explicit
// struct keeps the behavior visible and testable.
type Control struct {
	set   bool
	value any
}

// SetResult declares a final result. During the before phase this
// skips the step body; during the after phase it overrides downstream
// hooks' view of the value.
func (c *Control) SetResult(v any) {
	c.set = true
	c.value = v
}

// Result returns the declared result, if any.
func (c *Control) Result() (any, bool) {
	return c.value, c.set
}

// take returns and clears the declared result.
func (c *Control) take() (any, bool) {
	v, ok := c.value, c.set
	c.set = false
	c.value = nil
	return v, ok
}
