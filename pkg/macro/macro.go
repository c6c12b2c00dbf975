// Package macro defines the pluggable capability descriptors that turn
// declared metadata into an assembled capability set. A macro matches
// on metadata, resolves its capability contribution against the host
// environment, and may additionally participate in the executor's
// before/after/onError hook phases (declared as optional interfaces in
// pkg/engine).
package macro

import (
	"context"

	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
)

// Macro is a stateless capability descriptor.
type Macro interface {
	// Key is the capability or policy key this macro serves.
	Key() string

	// Match reports whether the macro applies to the metadata. It must
	// be a pure, side-effect-free predicate; the executor may call it
	// more than once.
	Match(m meta.Meta) bool

	// Resolve builds the macro's capability contribution. Contributions
	// from all matched macros are merged in registration order after
	// every resolve completes.
	Resolve(ctx context.Context, m meta.Meta, env Env) (ports.Partial, error)
}
