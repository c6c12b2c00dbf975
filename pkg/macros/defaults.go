package macros

import (
	"github.com/loomworks/loom/pkg/macro"
	"github.com/loomworks/loom/pkg/telemetry"
)

// Defaults returns the builtin macros in canonical registration order.
// Order is semantic: it fixes both merge priority on capability
// collisions and the sequencing of the hook phases.
func Defaults(metrics *telemetry.Metrics) []macro.Macro {
	return []macro.Macro{
		HTTPMacro{},
		KVMacro{},
		DBMacro{},
		QueueMacro{},
		TimeMacro{},
		CryptoMacro{},
		LogMacro{},
		FSMacro{},
		LockMacro{},
		SocketMacro{},
		&Idempotency{Metrics: metrics},
	}
}

// DefaultRegistry returns a registry pre-populated with the builtin
// macros.
func DefaultRegistry(metrics *telemetry.Metrics) *macro.Registry {
	return macro.NewRegistry(Defaults(metrics)...)
}
