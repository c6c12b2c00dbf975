package macro

import (
	"database/sql"
	"net"

	"github.com/loomworks/loom/pkg/ports"
)

// Env is the record of factory functions macros call to manufacture
// ports and lease openers. The shape is exactly the set of factories
// the builtin macros reference; hosts populate it (pkg/hostenv
// provides the standard bindings) and may substitute any factory with
// their own. Nil factories fail the macro that needs them at resolve
// time, not at registration time.
type Env struct {
	// NewHTTP returns an HTTP port bound to a base URL.
	NewHTTP func(baseURL string) ports.HTTP

	// NewKV returns a namespaced KV port.
	NewKV func(namespace string) ports.KV

	// NewDB returns the database port plus its paired lease and tx
	// openers for the given connection role.
	NewDB func(role string) (ports.DB, ports.Opener[*sql.Conn], ports.TxRunner)

	// NewQueue returns a queue port.
	NewQueue func(topic string) ports.Queue

	// NewClock returns the time port.
	NewClock func() ports.Clock

	// NewCrypto returns the randomness/hashing port.
	NewCrypto func() ports.Crypto

	// NewLog returns a logger port at the given level.
	NewLog func(level string) ports.Log

	// NewTempDir returns a temp directory lease opener.
	NewTempDir func() ports.Opener[string]

	// NewLock returns a named lock lease opener.
	NewLock func(name string) ports.Opener[ports.LockHandle]

	// NewSocket returns a dialed connection lease opener.
	NewSocket func(network, address string) ports.Opener[net.Conn]
}
