package macros

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/macro"
	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
)

// The capability macros below follow one shape: Match tests the
// presence of the corresponding metadata field, Resolve calls the host
// factory and contributes the manufactured port or lease opener.
// Resolve fails when the host environment carries no factory for the
// capability, which surfaces as a resolution fault naming the macro.

func missingFactory(key string) error {
	return fault.Resolution(fmt.Sprintf("host environment provides no %q factory", key), nil)
}

// HTTPMacro contributes the outbound HTTP port.
type HTTPMacro struct{}

func (HTTPMacro) Key() string            { return meta.KeyHTTP }
func (HTTPMacro) Match(m meta.Meta) bool { return m.HTTP != nil }

func (HTTPMacro) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewHTTP == nil {
		return ports.Partial{}, missingFactory(meta.KeyHTTP)
	}
	return ports.Partial{HTTP: env.NewHTTP(m.HTTP.BaseURL)}, nil
}

// KVMacro contributes the namespaced key-value port.
type KVMacro struct{}

func (KVMacro) Key() string            { return meta.KeyKV }
func (KVMacro) Match(m meta.Meta) bool { return m.KV != nil }

func (KVMacro) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewKV == nil {
		return ports.Partial{}, missingFactory(meta.KeyKV)
	}
	return ports.Partial{KV: env.NewKV(m.KV.Namespace)}, nil
}

// DBMacro contributes the database port together with its connection
// lease opener and transaction runner.
type DBMacro struct{}

func (DBMacro) Key() string            { return meta.KeyDB }
func (DBMacro) Match(m meta.Meta) bool { return m.DB != nil }

func (DBMacro) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewDB == nil {
		return ports.Partial{}, missingFactory(meta.KeyDB)
	}
	db, open, tx := env.NewDB(m.DB.Role)
	return ports.Partial{
		DB:    db,
		Lease: &ports.LeaseSet{DB: open, Tx: tx},
	}, nil
}

// QueueMacro contributes the message queue port.
type QueueMacro struct{}

func (QueueMacro) Key() string            { return meta.KeyQueue }
func (QueueMacro) Match(m meta.Meta) bool { return m.Queue != nil }

func (QueueMacro) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewQueue == nil {
		return ports.Partial{}, missingFactory(meta.KeyQueue)
	}
	return ports.Partial{Queue: env.NewQueue(m.Queue.Topic)}, nil
}

// TimeMacro contributes the clock port.
type TimeMacro struct{}

func (TimeMacro) Key() string            { return meta.KeyTime }
func (TimeMacro) Match(m meta.Meta) bool { return m.Time != nil }

func (TimeMacro) Resolve(_ context.Context, _ meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewClock == nil {
		return ports.Partial{}, missingFactory(meta.KeyTime)
	}
	return ports.Partial{Clock: env.NewClock()}, nil
}

// CryptoMacro contributes the randomness/hashing port.
type CryptoMacro struct{}

func (CryptoMacro) Key() string            { return meta.KeyCrypto }
func (CryptoMacro) Match(m meta.Meta) bool { return m.Crypto != nil }

func (CryptoMacro) Resolve(_ context.Context, _ meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewCrypto == nil {
		return ports.Partial{}, missingFactory(meta.KeyCrypto)
	}
	return ports.Partial{Crypto: env.NewCrypto()}, nil
}

// LogMacro contributes the structured logging port at the declared
// level.
type LogMacro struct{}

func (LogMacro) Key() string            { return meta.KeyLog }
func (LogMacro) Match(m meta.Meta) bool { return m.Log != nil }

func (LogMacro) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewLog == nil {
		return ports.Partial{}, missingFactory(meta.KeyLog)
	}
	return ports.Partial{Log: env.NewLog(m.Log.Level)}, nil
}

// FSMacro contributes the temporary directory lease opener.
type FSMacro struct{}

func (FSMacro) Key() string            { return meta.KeyFS }
func (FSMacro) Match(m meta.Meta) bool { return m.FS != nil && m.FS.TempDir }

func (FSMacro) Resolve(_ context.Context, _ meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewTempDir == nil {
		return ports.Partial{}, missingFactory(meta.KeyFS)
	}
	return ports.Partial{Lease: &ports.LeaseSet{TempDir: env.NewTempDir()}}, nil
}

// LockMacro contributes the named lock lease opener.
type LockMacro struct{}

func (LockMacro) Key() string            { return meta.KeyLock }
func (LockMacro) Match(m meta.Meta) bool { return m.Lock != nil }

func (LockMacro) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewLock == nil {
		return ports.Partial{}, missingFactory(meta.KeyLock)
	}
	return ports.Partial{Lease: &ports.LeaseSet{Lock: env.NewLock(m.Lock.Name)}}, nil
}

// SocketMacro contributes the dialed connection lease opener.
type SocketMacro struct{}

func (SocketMacro) Key() string            { return meta.KeySocket }
func (SocketMacro) Match(m meta.Meta) bool { return m.Socket != nil }

func (SocketMacro) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if env.NewSocket == nil {
		return ports.Partial{}, missingFactory(meta.KeySocket)
	}
	return ports.Partial{Lease: &ports.LeaseSet{Socket: env.NewSocket(m.Socket.Network, m.Socket.Address)}}, nil
}
