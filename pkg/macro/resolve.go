package macro

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
)

// ResolveAll invokes Resolve on every matched macro concurrently and
// merges the contributions into a fresh capability set.
//
// Resolves race freely, but the merge is deterministic: contributions
// are folded in macro-list order after every resolve has completed, so
// the order of concurrent completion never affects the final set. Any
// resolve failure aborts the whole resolution; no partial capability
// set is ever exposed.
func ResolveAll(ctx context.Context, m meta.Meta, env Env, matched []Macro) (*ports.Caps, error) {
	contributions := make([]ports.Partial, len(matched))
	errs := make([]error, len(matched))

	var wg sync.WaitGroup
	for i, mac := range matched {
		wg.Add(1)
		go func(i int, mac Macro) {
			defer wg.Done()
			contributions[i], errs[i] = mac.Resolve(ctx, m, env)
		}(i, mac)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fault.Resolution(
				fmt.Sprintf("macro %q failed to resolve", matched[i].Key()), err,
			).WithCode(fault.CodeResolveFailed)
		}
	}

	caps := &ports.Caps{}
	for _, c := range contributions {
		caps.Apply(c)
	}
	return caps, nil
}
