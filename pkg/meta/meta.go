// Package meta defines the declarative metadata attached to every
// step. Metadata is the single source of truth for which capabilities
// a step receives and which cross-cutting policies decorate them: a
// present (non-nil) capability field declares a need, and the policy
// fields configure retry, timeout, idempotency, and circuit-breaking
// independently of which capabilities are present.
//
// Metadata is read-only once attached to a step. It is passed by value
// throughout the pipeline and never mutated after construction.
package meta

import "time"

// Capability keys, in the order macros register them.
const (
	KeyHTTP   = "http"
	KeyKV     = "kv"
	KeyDB     = "db"
	KeyQueue  = "queue"
	KeyTime   = "time"
	KeyCrypto = "crypto"
	KeyLog    = "log"
	KeyFS     = "fs"
	KeyLock   = "lock"
	KeySocket = "socket"
)

// Policy keys.
const (
	KeyRetry       = "retry"
	KeyTimeout     = "timeout"
	KeyIdempotency = "idempotency"
	KeyCircuit     = "circuit"
)

// HTTPNeed declares the HTTP capability.
type HTTPNeed struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// KVNeed declares the key-value capability.
type KVNeed struct {
	Namespace string `yaml:"namespace,omitempty"`
}

// DBNeed declares the database capability.
type DBNeed struct {
	// Role selects the connection role (e.g. "reader", "writer").
	Role string `yaml:"role,omitempty"`
}

// QueueNeed declares the message queue capability.
type QueueNeed struct {
	Topic string `yaml:"topic,omitempty"`
}

// TimeNeed declares the clock capability.
type TimeNeed struct{}

// CryptoNeed declares the randomness/hashing capability.
type CryptoNeed struct{}

// LogNeed declares the logging capability.
type LogNeed struct {
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
}

// FSNeed declares the filesystem capability.
type FSNeed struct {
	// TempDir requests a leased temporary directory.
	TempDir bool `yaml:"tempDir,omitempty"`
}

// LockNeed declares the named-lock capability.
type LockNeed struct {
	Name string `yaml:"name,omitempty"`
}

// SocketNeed declares the socket capability.
type SocketNeed struct {
	Network string `yaml:"network,omitempty"`
	Address string `yaml:"address,omitempty"`
}

// RetrySpec configures the retry policy: Times+1 total attempts with
// DelayMS between them, optionally jittered uniformly in
// [0.5*delay, 1.5*delay].
type RetrySpec struct {
	Times   int  `yaml:"times" validate:"gte=0"`
	DelayMS int  `yaml:"delayMs" validate:"gte=0"`
	Jitter  bool `yaml:"jitter"`
}

// TimeoutSpec configures timeout budgets. MS bounds one full logical
// port operation including its retries; AcquireMS is the separate
// budget for lease acquisition.
type TimeoutSpec struct {
	MS        int `yaml:"ms" validate:"gte=0"`
	AcquireMS int `yaml:"acquireMs" validate:"gte=0"`
}

// IdempotencySpec configures the idempotency macro.
type IdempotencySpec struct {
	// Key is the cache key. A caller-supplied dynamic override in the
	// base context takes precedence when present.
	Key string `yaml:"key,omitempty"`

	// TTLSeconds bounds the cached result's lifetime. Zero selects the
	// default of five minutes.
	TTLSeconds int `yaml:"ttlSeconds,omitempty" validate:"gte=0"`
}

// TTL returns the configured TTL, defaulting to five minutes.
func (s IdempotencySpec) TTL() time.Duration {
	if s.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.TTLSeconds) * time.Second
}

// CircuitSpec configures circuit breaking.
type CircuitSpec struct {
	// Name identifies the shared circuit state; defaults to the port
	// name when empty.
	Name string `yaml:"name,omitempty"`

	// HalfOpenAfterMS is the cooldown after a failure. Zero selects
	// the default of 30 seconds.
	HalfOpenAfterMS int `yaml:"halfOpenAfterMs,omitempty" validate:"gte=0"`
}

// HalfOpenAfter returns the configured cooldown, defaulting to 30s.
func (s CircuitSpec) HalfOpenAfter() time.Duration {
	if s.HalfOpenAfterMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.HalfOpenAfterMS) * time.Millisecond
}

// Meta is the declarative metadata record attached to a step. A
// non-nil capability field declares that the step needs that
// capability; the struct carries capability-specific configuration.
type Meta struct {
	HTTP   *HTTPNeed   `yaml:"http,omitempty"`
	KV     *KVNeed     `yaml:"kv,omitempty"`
	DB     *DBNeed     `yaml:"db,omitempty"`
	Queue  *QueueNeed  `yaml:"queue,omitempty"`
	Time   *TimeNeed   `yaml:"time,omitempty"`
	Crypto *CryptoNeed `yaml:"crypto,omitempty"`
	Log    *LogNeed    `yaml:"log,omitempty"`
	FS     *FSNeed     `yaml:"fs,omitempty"`
	Lock   *LockNeed   `yaml:"lock,omitempty"`
	Socket *SocketNeed `yaml:"socket,omitempty"`

	Retry       *RetrySpec       `yaml:"retry,omitempty"`
	Timeout     *TimeoutSpec     `yaml:"timeout,omitempty"`
	Idempotency *IdempotencySpec `yaml:"idempotency,omitempty"`
	Circuit     *CircuitSpec     `yaml:"circuit,omitempty"`
}

// DeclaredKeys returns the capability keys present in the metadata, in
// canonical order.
func (m Meta) DeclaredKeys() []string {
	var keys []string
	if m.HTTP != nil {
		keys = append(keys, KeyHTTP)
	}
	if m.KV != nil {
		keys = append(keys, KeyKV)
	}
	if m.DB != nil {
		keys = append(keys, KeyDB)
	}
	if m.Queue != nil {
		keys = append(keys, KeyQueue)
	}
	if m.Time != nil {
		keys = append(keys, KeyTime)
	}
	if m.Crypto != nil {
		keys = append(keys, KeyCrypto)
	}
	if m.Log != nil {
		keys = append(keys, KeyLog)
	}
	if m.FS != nil {
		keys = append(keys, KeyFS)
	}
	if m.Lock != nil {
		keys = append(keys, KeyLock)
	}
	if m.Socket != nil {
		keys = append(keys, KeySocket)
	}
	return keys
}

// CapabilityKeys lists every known capability key.
func CapabilityKeys() []string {
	return []string{KeyHTTP, KeyKV, KeyDB, KeyQueue, KeyTime, KeyCrypto, KeyLog, KeyFS, KeyLock, KeySocket}
}

// PolicyKeys lists every known policy key.
func PolicyKeys() []string {
	return []string{KeyRetry, KeyTimeout, KeyIdempotency, KeyCircuit}
}
