package macro

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
)

// stubMacro is a macro with injectable behavior.
type stubMacro struct {
	key     string
	match   bool
	partial ports.Partial
	err     error
	delay   time.Duration
}

func (s *stubMacro) Key() string           { return s.key }
func (s *stubMacro) Match(meta.Meta) bool  { return s.match }
func (s *stubMacro) Resolve(context.Context, meta.Meta, Env) (ports.Partial, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.partial, s.err
}

// namedKV is a distinguishable KV port.
type namedKV struct{ name string }

func (namedKV) Get(context.Context, string) ([]byte, bool, error)              { return nil, false, nil }
func (namedKV) Set(context.Context, string, []byte, time.Duration) error      { return nil }
func (namedKV) Delete(context.Context, string) error                          { return nil }

func TestResolveAllMergeIsDeterministic(t *testing.T) {
	// The first macro is slow and the second fast, so completion order
	// is the reverse of registration order. The merge must still let
	// the later-registered macro win.
	first := &stubMacro{
		key: "a", match: true, delay: 30 * time.Millisecond,
		partial: ports.Partial{KV: namedKV{name: "from-a"}},
	}
	second := &stubMacro{
		key: "b", match: true,
		partial: ports.Partial{KV: namedKV{name: "from-b"}},
	}

	for i := 0; i < 5; i++ {
		caps, err := ResolveAll(context.Background(), meta.Meta{}, Env{}, []Macro{first, second})
		if err != nil {
			t.Fatalf("ResolveAll failed: %v", err)
		}
		kv, ok := caps.KV.(namedKV)
		if !ok {
			t.Fatalf("KV port is %T, want namedKV", caps.KV)
		}
		if kv.name != "from-b" {
			t.Fatalf("iteration %d: winning contribution = %q, want %q", i, kv.name, "from-b")
		}
	}
}

func TestResolveAllLeaseContributionsDeepMerge(t *testing.T) {
	dbOpener := func(context.Context) (*lease.Releasable[*sql.Conn], error) { return nil, nil }
	tmpOpener := func(context.Context) (*lease.Releasable[string], error) { return nil, nil }

	a := &stubMacro{key: "db", match: true, partial: ports.Partial{
		Lease: &ports.LeaseSet{DB: dbOpener},
	}}
	b := &stubMacro{key: "fs", match: true, partial: ports.Partial{
		Lease: &ports.LeaseSet{TempDir: tmpOpener},
	}}

	caps, err := ResolveAll(context.Background(), meta.Meta{}, Env{}, []Macro{a, b})
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if caps.Lease.DB == nil {
		t.Error("earlier lease contribution was lost by a later merge")
	}
	if caps.Lease.TempDir == nil {
		t.Error("later lease contribution missing")
	}
}

func TestResolveAllAbortsOnFailure(t *testing.T) {
	boom := errors.New("backend unreachable")
	ok := &stubMacro{key: "a", match: true, partial: ports.Partial{KV: namedKV{}}}
	bad := &stubMacro{key: "b", match: true, err: boom}

	caps, err := ResolveAll(context.Background(), meta.Meta{}, Env{}, []Macro{ok, bad})
	if caps != nil {
		t.Error("partial capability set exposed after resolution failure")
	}
	if !fault.IsResolution(err) {
		t.Fatalf("error = %v, want resolution fault", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v does not wrap the macro failure", err)
	}
}

func TestRegistryRejectsDuplicateKeys(t *testing.T) {
	r := NewRegistry(&stubMacro{key: "dup"})
	if err := r.Register(&stubMacro{key: "dup"}); err == nil {
		t.Fatal("duplicate registration succeeded")
	}
	if !r.Has("dup") {
		t.Error("original registration lost")
	}
}

func TestRegistryMatchedPreservesOrder(t *testing.T) {
	a := &stubMacro{key: "a", match: true}
	b := &stubMacro{key: "b", match: false}
	c := &stubMacro{key: "c", match: true}
	r := NewRegistry(a, b, c)

	matched := r.Matched(meta.Meta{})
	if len(matched) != 2 {
		t.Fatalf("matched %d macros, want 2", len(matched))
	}
	if matched[0].Key() != "a" || matched[1].Key() != "c" {
		t.Errorf("matched order = [%s %s], want [a c]", matched[0].Key(), matched[1].Key())
	}
}
