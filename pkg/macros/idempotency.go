package macros

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/macro"
	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
	"github.com/loomworks/loom/pkg/telemetry"
)

// idemNamespace is the KV namespace the macro resolves for itself when
// the step declares no KV capability of its own.
const idemNamespace = "idempotency"

// idemPrefix keeps cached results apart from ordinary step data when
// the macro shares the step's declared KV namespace.
const idemPrefix = "idem:"

// maxRawKey bounds the stored key length; longer keys are replaced by
// their blake2b-256 digest so arbitrary caller-supplied keys stay
// storable.
const maxRawKey = 64

type idemKeyCtx struct{}

// WithIdempotencyKey returns a context carrying a dynamic idempotency
// key. It overrides the key configured in the step metadata, letting
// callers scope caching per request rather than per step.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idemKeyCtx{}, key)
}

// IdempotencyKeyFrom extracts the dynamic idempotency key, if any.
func IdempotencyKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idemKeyCtx{}).(string)
	return key, ok && key != ""
}

// Idempotency caches step results in KV keyed by the configured (or
// caller-overridden) idempotency key. A cache hit short-circuits the
// execution in the before phase; a fresh result is written back in the
// after phase with the configured TTL.
//
// Cache write failures never fail the step: the result was already
// produced, so the write is logged at warn and dropped.
type Idempotency struct {
	// Metrics optionally counts cache hits.
	Metrics *telemetry.Metrics
}

func (*Idempotency) Key() string            { return meta.KeyIdempotency }
func (*Idempotency) Match(m meta.Meta) bool { return m.Idempotency != nil }

// Resolve contributes a private KV binding only when the step declared
// none, so a step's own namespaced KV is never displaced.
func (*Idempotency) Resolve(_ context.Context, m meta.Meta, env macro.Env) (ports.Partial, error) {
	if m.KV != nil {
		return ports.Partial{}, nil
	}
	if env.NewKV == nil {
		return ports.Partial{}, missingFactory(meta.KeyIdempotency)
	}
	return ports.Partial{KV: env.NewKV(idemNamespace)}, nil
}

// Before checks the cache and gates the execution on a hit.
func (i *Idempotency) Before(ctx *engine.Ctx, ctl *engine.Control) error {
	key, err := i.cacheKey(ctx)
	if err != nil {
		return err
	}
	if ctx.Caps.KV == nil {
		return fault.Structural("idempotency requires a KV binding", nil)
	}
	log := ctx.Log()
	raw, ok, err := ctx.Caps.KV.Get(ctx, key)
	if err != nil {
		// A cache read failure degrades to a miss; the step still runs.
		log.Warn().Err(err).Str("key", key).Msg("idempotency cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("idempotency cache entry unreadable")
		return nil
	}
	if i.Metrics != nil {
		i.Metrics.RecordIdempotencyHit()
	}
	log.Info().Str("key", key).Msg("idempotency cache hit")
	ctl.SetResult(value)
	return nil
}

// After writes the fresh result back with the configured TTL.
func (i *Idempotency) After(ctx *engine.Ctx, _ *engine.Control, value any) (any, error) {
	key, err := i.cacheKey(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.Caps.KV == nil {
		return nil, fault.Structural("idempotency requires a KV binding", nil)
	}
	log := ctx.Log()
	raw, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("idempotency result not serializable")
		return value, nil
	}
	if err := ctx.Caps.KV.Set(ctx, key, raw, ctx.Meta.Idempotency.TTL()); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("idempotency cache write failed")
	}
	return value, nil
}

// cacheKey resolves the effective key: the caller's dynamic override
// when present, otherwise the configured one. Oversized keys collapse
// to their digest.
func (*Idempotency) cacheKey(ctx *engine.Ctx) (string, error) {
	key := ctx.Meta.Idempotency.Key
	if dyn, ok := IdempotencyKeyFrom(ctx); ok {
		key = dyn
	}
	if key == "" {
		return "", fault.Structural("idempotency declared without a key", nil).WithCode(fault.CodeValidation)
	}
	if len(key) > maxRawKey {
		sum := blake2b.Sum256([]byte(key))
		key = hex.EncodeToString(sum[:])
	}
	return idemPrefix + key, nil
}
