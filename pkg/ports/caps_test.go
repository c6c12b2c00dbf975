package ports

import (
	"context"
	"database/sql"
	"net"
	"testing"

	"github.com/loomworks/loom/pkg/fault"
	"github.com/loomworks/loom/pkg/lease"
)

func TestBracketHelpersRejectUndeclaredLeases(t *testing.T) {
	caps := &Caps{}
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"db", func() error {
			return caps.WithDB(ctx, func(context.Context, *sql.Conn) error { return nil })
		}},
		{"lock", func() error {
			return caps.WithLock(ctx, func(context.Context, LockHandle) error { return nil })
		}},
		{"tempDir", func() error {
			return caps.WithTempDir(ctx, func(context.Context, string) error { return nil })
		}},
		{"socket", func() error {
			return caps.WithSocket(ctx, func(context.Context, net.Conn) error { return nil })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("helper succeeded without a contributed lease")
			}
			if !fault.IsStructural(err) {
				t.Errorf("error = %v, want structural fault", err)
			}
		})
	}
}

func TestBracketHelperUsesContributedLease(t *testing.T) {
	released := false
	caps := &Caps{}
	caps.Lease.merge(&LeaseSet{
		TempDir: func(context.Context) (*lease.Releasable[string], error) {
			return &lease.Releasable[string]{
				Value:   "/tmp/leased",
				Release: func(context.Context) error { released = true; return nil },
			}, nil
		},
	})

	var got string
	err := caps.WithTempDir(context.Background(), func(_ context.Context, dir string) error {
		got = dir
		return nil
	})
	if err != nil {
		t.Fatalf("WithTempDir failed: %v", err)
	}
	if got != "/tmp/leased" {
		t.Errorf("dir = %q, want the leased value", got)
	}
	if !released {
		t.Error("lease was not released")
	}
}
