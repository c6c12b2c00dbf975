package weave

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/meta"
	"github.com/loomworks/loom/pkg/ports"
)

// fakeKV is a KV port whose behavior is injected per test.
type fakeKV struct {
	get func() ([]byte, bool, error)
	set func() error
	del func() error
}

func (f *fakeKV) Get(context.Context, string) ([]byte, bool, error) {
	if f.get == nil {
		return nil, false, nil
	}
	return f.get()
}

func (f *fakeKV) Set(context.Context, string, []byte, time.Duration) error {
	if f.set == nil {
		return nil
	}
	return f.set()
}

func (f *fakeKV) Delete(context.Context, string) error {
	if f.del == nil {
		return nil
	}
	return f.del()
}

// wovenKVCaps weaves a capability set holding only the given KV port
// and returns the woven port.
func wovenKVCaps(m meta.Meta, opts Options, kv ports.KV) ports.KV {
	caps := &ports.Caps{KV: kv}
	Weave(m, caps, opts)
	return caps.KV
}

func TestWeaveWrapsOnlyPresentPorts(t *testing.T) {
	caps := &ports.Caps{KV: &fakeKV{}}
	Weave(meta.Meta{}, caps, testOptions(nil))

	if caps.KV == nil {
		t.Fatal("present KV port was dropped by weaving")
	}
	if _, ok := caps.KV.(*wovenKV); !ok {
		t.Errorf("KV port is %T, want *wovenKV", caps.KV)
	}
	if caps.HTTP != nil || caps.DB != nil || caps.Queue != nil {
		t.Error("absent ports were materialized by weaving")
	}
}

func TestWeaveLeavesTxUnwrapped(t *testing.T) {
	called := false
	tx := func(context.Context, ports.TxFunc) error {
		called = true
		return nil
	}
	caps := &ports.Caps{Lease: ports.LeaseSet{Tx: tx}}

	m := meta.Meta{
		Retry:   &meta.RetrySpec{Times: 3},
		Timeout: &meta.TimeoutSpec{MS: 5, AcquireMS: 5},
	}
	Weave(m, caps, testOptions(nil))

	if err := caps.Lease.Tx(context.Background(), nil); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	if !called {
		t.Error("Tx did not reach the original runner")
	}
}

func TestTimeoutBudgetCoversRetries(t *testing.T) {
	// One logical operation: retries burn the shared budget, so a
	// persistently failing call surfaces as a timeout, not as retry
	// exhaustion.
	m := meta.Meta{
		Retry:   &meta.RetrySpec{Times: 50, DelayMS: 20},
		Timeout: &meta.TimeoutSpec{MS: 60},
	}
	opts := Options{
		Logger: testOptions(nil).Logger,
	}

	fn := WeaveCall(m, opts, "http", "do", func(context.Context) (string, error) {
		return "", errors.New("always failing")
	})

	start := time.Now()
	_, err := fn(context.Background())
	if !fault.IsTimeout(err) {
		t.Fatalf("error = %v, want effect-timeout fault", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout took %s, want roughly the 60ms budget", elapsed)
	}
}

func TestWeaveAcquireRecordsKindCircuit(t *testing.T) {
	// An acquire failure trips a circuit named after the lease port, so
	// a second acquire is rejected without reaching the opener.
	now := time.Unix(1000, 0)
	opts := testOptions(nil)
	opts.Circuits = NewCircuitStore()
	opts.Now = func() time.Time { return now }

	m := meta.Meta{Circuit: &meta.CircuitSpec{HalfOpenAfterMS: 60000}}

	attempts := 0
	caps := &ports.Caps{Lease: ports.LeaseSet{
		Lock: func(context.Context) (*lease.Releasable[ports.LockHandle], error) {
			attempts++
			return nil, errors.New("lock backend down")
		},
	}}
	Weave(m, caps, opts)

	if _, err := caps.Lease.Lock(context.Background()); err == nil {
		t.Fatal("first acquire succeeded, want failure")
	}
	_, err := caps.Lease.Lock(context.Background())
	if !fault.IsCircuitOpen(err) {
		t.Fatalf("second acquire error = %v, want circuit-open fault", err)
	}
	if attempts != 1 {
		t.Errorf("opener attempts = %d, want 1", attempts)
	}
}
