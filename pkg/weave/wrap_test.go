package weave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
	"github.com/loomworks/loom/pkg/meta"
)

// testOptions returns options with a disabled logger, pinned jitter,
// and a sleep that records delays instead of waiting.
func testOptions(delays *[]time.Duration) Options {
	return Options{
		Logger: zerolog.New(nil).Level(zerolog.Disabled),
		Rand:   func() float64 { return 0 },
		Sleep: func(_ context.Context, d time.Duration) error {
			if delays != nil {
				*delays = append(*delays, d)
			}
			return nil
		},
	}
}

func TestWeaveCallRetriesThenSucceeds(t *testing.T) {
	var delays []time.Duration
	calls := 0
	m := meta.Meta{
		Retry: &meta.RetrySpec{Times: 3, DelayMS: 100},
	}

	fn := WeaveCall(m, testOptions(&delays), "http", "do", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	v, err := fn(context.Background())
	if err != nil {
		t.Fatalf("woven call failed: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %q, want %q", v, "ok")
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(delays))
	}
	for _, d := range delays {
		if d != 100*time.Millisecond {
			t.Errorf("delay = %s, want 100ms", d)
		}
	}
}

func TestWeaveCallLogsEachAttempt(t *testing.T) {
	// The log wrapper sits inside the retry loop, so a
	// fail-once-then-succeed call produces exactly one error entry for
	// the failed attempt and one debug entry for the success.
	var buf bytes.Buffer
	var delays []time.Duration
	opts := testOptions(&delays)
	opts.Logger = zerolog.New(&buf)

	m := meta.Meta{Retry: &meta.RetrySpec{Times: 1, DelayMS: 10}}
	calls := 0
	fn := WeaveCall(m, opts, "http", "do", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	if _, err := fn(context.Background()); err != nil {
		t.Fatalf("woven call failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("attempts = %d, want 2", calls)
	}
	if len(delays) != 1 {
		t.Errorf("sleeps = %d, want 1", len(delays))
	}

	failed, succeeded := 0, 0
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry struct {
			Level   string `json:"level"`
			Port    string `json:"port"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("unparseable log line %q: %v", line, err)
		}
		if entry.Port != "http" {
			continue
		}
		switch entry.Message {
		case "port call failed":
			if entry.Level != "error" {
				t.Errorf("failure logged at %q, want error", entry.Level)
			}
			failed++
		case "port call succeeded":
			if entry.Level != "debug" {
				t.Errorf("success logged at %q, want debug", entry.Level)
			}
			succeeded++
		}
	}
	if failed != 1 {
		t.Errorf("failure entries = %d, want 1", failed)
	}
	if succeeded != 1 {
		t.Errorf("success entries = %d, want 1", succeeded)
	}
}

func TestWeaveCallJitterPinned(t *testing.T) {
	// With the random source pinned at 0, a jittered delay is exactly
	// half the configured delay.
	var delays []time.Duration
	calls := 0
	m := meta.Meta{
		Retry: &meta.RetrySpec{Times: 1, DelayMS: 100, Jitter: true},
	}

	fn := WeaveCall(m, testOptions(&delays), "http", "do", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	if _, err := fn(context.Background()); err != nil {
		t.Fatalf("woven call failed: %v", err)
	}
	if len(delays) != 1 {
		t.Fatalf("sleeps = %d, want 1", len(delays))
	}
	if delays[0] != 50*time.Millisecond {
		t.Errorf("jittered delay = %s, want 50ms", delays[0])
	}
}

func TestWeaveCallExhaustsRetries(t *testing.T) {
	wantErr := errors.New("still failing")
	calls := 0
	m := meta.Meta{Retry: &meta.RetrySpec{Times: 2}}

	fn := WeaveCall(m, testOptions(nil), "kv", "get", func(context.Context) (int, error) {
		calls++
		return 0, wantErr
	})

	if _, err := fn(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestWeaveCallTimeoutBoundsWholeOperation(t *testing.T) {
	m := meta.Meta{
		Timeout: &meta.TimeoutSpec{MS: 30},
	}
	opts := testOptions(nil)
	opts.Sleep = nil // real sleeps so the budget is actually consumed

	fn := WeaveCall(m, opts, "http", "do", func(ctx context.Context) (string, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	_, err := fn(context.Background())
	if !fault.IsTimeout(err) {
		t.Fatalf("error = %v, want effect-timeout fault", err)
	}
}

func TestCircuitOpensAndRecloses(t *testing.T) {
	now := time.Unix(1000, 0)
	opts := testOptions(nil)
	opts.Circuits = NewCircuitStore()
	opts.Now = func() time.Time { return now }

	m := meta.Meta{
		Circuit: &meta.CircuitSpec{Name: "upstream", HalfOpenAfterMS: 1000},
	}

	failing := true
	fn := WeaveCall(m, opts, "http", "do", func(context.Context) (string, error) {
		if failing {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	// First call fails and trips the circuit.
	if _, err := fn(context.Background()); err == nil {
		t.Fatal("first call succeeded, want failure")
	}

	// Second call is rejected without reaching the port.
	_, err := fn(context.Background())
	if !fault.IsCircuitOpen(err) {
		t.Fatalf("error = %v, want circuit-open fault", err)
	}

	// After the cooldown the half-open probe goes through and closes
	// the circuit again.
	now = now.Add(1500 * time.Millisecond)
	failing = false
	if _, err := fn(context.Background()); err != nil {
		t.Fatalf("post-cooldown call failed: %v", err)
	}
	if _, err := fn(context.Background()); err != nil {
		t.Fatalf("closed-circuit call failed: %v", err)
	}
}

func TestCircuitOpenIsNotRetried(t *testing.T) {
	now := time.Unix(1000, 0)
	var delays []time.Duration
	opts := testOptions(&delays)
	opts.Circuits = NewCircuitStore()
	opts.Now = func() time.Time { return now }

	m := meta.Meta{
		Retry:   &meta.RetrySpec{Times: 5, DelayMS: 10},
		Circuit: &meta.CircuitSpec{Name: "upstream", HalfOpenAfterMS: 60000},
	}

	calls := 0
	fn := WeaveCall(m, opts, "http", "do", func(context.Context) (string, error) {
		calls++
		return "", errors.New("boom")
	})

	// The first attempt fails and trips the circuit; every subsequent
	// retry is rejected by the breaker, which the retry wrapper treats
	// as non-retryable and returns immediately.
	_, err := fn(context.Background())
	if !fault.IsCircuitOpen(err) {
		t.Fatalf("error = %v, want circuit-open fault", err)
	}
	if calls != 1 {
		t.Errorf("port attempts = %d, want 1", calls)
	}
	if len(delays) != 1 {
		t.Errorf("sleeps = %d, want 1 (the single retry before rejection)", len(delays))
	}
}

func TestWeaveAcquireTimeoutReleasesLateResource(t *testing.T) {
	released := make(chan struct{})
	m := meta.Meta{
		Timeout: &meta.TimeoutSpec{AcquireMS: 1},
	}

	// The acquire resolves well after the 1ms budget; the wrapper must
	// release the late-arriving resource itself.
	acquire := func(context.Context) (*lease.Releasable[string], error) {
		time.Sleep(10 * time.Millisecond)
		return &lease.Releasable[string]{
			Value: "conn",
			Release: func(context.Context) error {
				close(released)
				return nil
			},
		}, nil
	}

	opts := testOptions(nil)
	woven := WeaveAcquire(m, opts, "socket", acquire)

	_, err := woven(context.Background())
	if !fault.IsAcquireTimeout(err) {
		t.Fatalf("error = %v, want acquire-timeout fault", err)
	}

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("late-arriving resource was never released")
	}
}

func TestWeaveAcquirePassesThroughInBudget(t *testing.T) {
	m := meta.Meta{
		Timeout: &meta.TimeoutSpec{AcquireMS: 1000},
	}
	acquire := func(context.Context) (*lease.Releasable[string], error) {
		return &lease.Releasable[string]{
			Value:   "conn",
			Release: func(context.Context) error { return nil },
		}, nil
	}

	r, err := WeaveAcquire(m, testOptions(nil), "db", acquire)(context.Background())
	if err != nil {
		t.Fatalf("woven acquire failed: %v", err)
	}
	if r.Value != "conn" {
		t.Errorf("value = %q, want %q", r.Value, "conn")
	}
}

func TestWovenPortSharesCircuitStateAcrossMethods(t *testing.T) {
	now := time.Unix(1000, 0)
	opts := testOptions(nil)
	opts.Circuits = NewCircuitStore()
	opts.Now = func() time.Time { return now }

	m := meta.Meta{Circuit: &meta.CircuitSpec{Name: "kv", HalfOpenAfterMS: 60000}}

	var mu sync.Mutex
	setCalls := 0
	kv := &fakeKV{
		set: func() error {
			mu.Lock()
			setCalls++
			mu.Unlock()
			return errors.New("down")
		},
	}

	caps := wovenKVCaps(m, opts, kv)

	if err := caps.Set(context.Background(), "k", []byte("v"), 0); err == nil {
		t.Fatal("Set succeeded, want failure")
	}
	// The trip must also reject Get: both methods share the named
	// circuit.
	_, _, err := caps.Get(context.Background(), "k")
	if !fault.IsCircuitOpen(err) {
		t.Fatalf("Get error = %v, want circuit-open fault", err)
	}
}
