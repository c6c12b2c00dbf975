package hostenv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testHost(t *testing.T, cfg Config) *Host {
	t.Helper()
	h, err := New(context.Background(), cfg, zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestMemKVNamespaceIsolation(t *testing.T) {
	h := testHost(t, Config{})
	ctx := context.Background()

	a := h.newKV("a")
	b := h.newKV("b")

	if err := a.Set(ctx, "k", []byte("va"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := b.Set(ctx, "k", []byte("vb"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := a.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want hit", ok, err)
	}
	if string(got) != "va" {
		t.Errorf("namespace a value = %q, want va", got)
	}

	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := a.Get(ctx, "k"); ok {
		t.Error("deleted key still present")
	}
	if _, ok, _ := b.Get(ctx, "k"); !ok {
		t.Error("delete leaked across namespaces")
	}
}

func TestMemKVTTLExpiry(t *testing.T) {
	store := newMemKV()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	kv := store.namespace("t")
	ctx := context.Background()

	if err := kv.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); !ok {
		t.Fatal("entry missing before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Error("expired entry still readable")
	}
}

func TestQueuePublishConsume(t *testing.T) {
	h := testHost(t, Config{})
	ctx := context.Background()

	q := h.newQueue("orders")
	if err := q.Publish(ctx, "", []byte("m1")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	msg, err := q.Consume(ctx, "")
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if string(msg) != "m1" {
		t.Errorf("message = %q, want m1", msg)
	}
}

func TestQueueConsumeHonorsCancellation(t *testing.T) {
	h := testHost(t, Config{})
	q := h.newQueue("empty")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Consume(ctx, ""); err == nil {
		t.Fatal("Consume returned without a message on an empty topic")
	}
}

func TestQueueRequiresTopic(t *testing.T) {
	h := testHost(t, Config{})
	q := h.newQueue("")
	if err := q.Publish(context.Background(), "", []byte("m")); err == nil {
		t.Fatal("Publish succeeded without any topic")
	}
}

func TestCryptoPort(t *testing.T) {
	c := newCrypto()

	u1, u2 := c.UUID(), c.UUID()
	if u1 == "" || u1 == u2 {
		t.Errorf("UUIDs not unique: %q %q", u1, u2)
	}

	h1 := c.Hash([]byte("data"))
	h2 := c.Hash([]byte("data"))
	if len(h1) != 32 {
		t.Errorf("hash length = %d, want 32", len(h1))
	}
	if string(h1) != string(h2) {
		t.Error("hash is not deterministic")
	}

	hex, err := c.RandHex(8)
	if err != nil {
		t.Fatalf("RandHex failed: %v", err)
	}
	if len(hex) != 16 {
		t.Errorf("RandHex length = %d, want 16", len(hex))
	}
	if _, err := c.RandHex(0); err == nil {
		t.Error("RandHex accepted a non-positive length")
	}
}

func TestTempDirLeaseRemovesOnRelease(t *testing.T) {
	open := newTempDir()
	r, err := open(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	dir := r.Value
	if dir == "" {
		t.Fatal("empty temp dir")
	}
	if err := os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write into leased dir failed: %v", err)
	}
	if err := r.Release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir still exists after release: %v", err)
	}
}

func TestLockOpenerSerializesHolders(t *testing.T) {
	h := testHost(t, Config{})
	open := h.newLock("migrate")

	r1, err := open(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if r1.Value.Name != "migrate" {
		t.Errorf("handle name = %q, want migrate", r1.Value.Name)
	}

	// A second acquire must block until the first holder releases.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := open(ctx); err == nil {
		t.Fatal("second acquire succeeded while the lock was held")
	}

	if err := r1.Release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	r2, err := open(context.Background())
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	_ = r2.Release(context.Background())
}

func TestHostRejectsBadConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{KVBackend: "redis"}, zerolog.Nop()); err == nil {
		t.Error("unsupported backend accepted")
	}
	if _, err := New(context.Background(), Config{KVBackend: KVSQLite}, zerolog.Nop()); err == nil {
		t.Error("sqlite backend accepted without a store path")
	}
}
