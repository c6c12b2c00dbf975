package meta

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loomworks/loom/pkg/fault"
)

func TestValidateRejectsBadPolicyValues(t *testing.T) {
	tests := []struct {
		name    string
		meta    Meta
		wantErr bool
	}{
		{
			name: "valid full meta",
			meta: Meta{
				HTTP:    &HTTPNeed{BaseURL: "https://example.com"},
				Log:     &LogNeed{Level: "debug"},
				Retry:   &RetrySpec{Times: 3, DelayMS: 100, Jitter: true},
				Timeout: &TimeoutSpec{MS: 500, AcquireMS: 100},
			},
		},
		{
			name:    "negative retry count",
			meta:    Meta{Retry: &RetrySpec{Times: -1}},
			wantErr: true,
		},
		{
			name:    "negative retry delay",
			meta:    Meta{Retry: &RetrySpec{DelayMS: -5}},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			meta:    Meta{Timeout: &TimeoutSpec{MS: -1}},
			wantErr: true,
		},
		{
			name:    "negative acquire timeout",
			meta:    Meta{Timeout: &TimeoutSpec{AcquireMS: -1}},
			wantErr: true,
		},
		{
			name:    "bogus log level",
			meta:    Meta{Log: &LogNeed{Level: "loud"}},
			wantErr: true,
		},
		{
			name: "empty log level is fine",
			meta: Meta{Log: &LogNeed{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.meta)
			if tt.wantErr {
				if !fault.IsStructural(err) {
					t.Fatalf("Validate error = %v, want structural fault", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	known := CapabilityKeys()
	tests := []struct {
		unknown string
		want    string
	}{
		{"htpp", "http"},
		{"quue", "queue"},
		{"lokc", "lock"},
		{"completely-different", ""},
	}
	for _, tt := range tests {
		if got := Suggest(tt.unknown, known); got != tt.want {
			t.Errorf("Suggest(%q) = %q, want %q", tt.unknown, got, tt.want)
		}
	}
}

func TestFromMap(t *testing.T) {
	t.Run("decodes nested needs and policies", func(t *testing.T) {
		m, err := FromMap(map[string]any{
			"http":  map[string]any{"baseUrl": "https://api.example.com"},
			"kv":    map[string]any{"namespace": "orders"},
			"retry": map[string]any{"times": 2, "delayMs": 50, "jitter": true},
		})
		if err != nil {
			t.Fatalf("FromMap failed: %v", err)
		}
		if m.HTTP == nil || m.HTTP.BaseURL != "https://api.example.com" {
			t.Errorf("HTTP need = %+v, want baseUrl decoded", m.HTTP)
		}
		if m.KV == nil || m.KV.Namespace != "orders" {
			t.Errorf("KV need = %+v, want namespace decoded", m.KV)
		}
		if m.Retry == nil || m.Retry.Times != 2 || m.Retry.DelayMS != 50 || !m.Retry.Jitter {
			t.Errorf("Retry spec = %+v, want {2 50 true}", m.Retry)
		}
	})

	t.Run("rejects unknown key with suggestion", func(t *testing.T) {
		_, err := FromMap(map[string]any{"htpp": map[string]any{}})
		if err == nil {
			t.Fatal("FromMap accepted an unknown key")
		}
		var fe *fault.Error
		if !errors.As(err, &fe) || fe.Code != fault.CodeUnknownCap {
			t.Fatalf("error = %v, want unknown-capability fault", err)
		}
		if want := `did you mean "http"?`; !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err.Error(), want)
		}
	})

	t.Run("rejects invalid policy values", func(t *testing.T) {
		_, err := FromMap(map[string]any{"retry": map[string]any{"times": -1}})
		if !fault.IsStructural(err) {
			t.Fatalf("error = %v, want structural fault", err)
		}
	})
}

func TestSpecDefaults(t *testing.T) {
	if got := (IdempotencySpec{}).TTL(); got != 5*time.Minute {
		t.Errorf("default idempotency TTL = %s, want 5m", got)
	}
	if got := (IdempotencySpec{TTLSeconds: 30}).TTL(); got != 30*time.Second {
		t.Errorf("configured idempotency TTL = %s, want 30s", got)
	}
	if got := (CircuitSpec{}).HalfOpenAfter(); got != 30*time.Second {
		t.Errorf("default circuit cooldown = %s, want 30s", got)
	}
	if got := (CircuitSpec{HalfOpenAfterMS: 1500}).HalfOpenAfter(); got != 1500*time.Millisecond {
		t.Errorf("configured circuit cooldown = %s, want 1.5s", got)
	}
}

func TestInherit(t *testing.T) {
	parent := Meta{
		HTTP:  &HTTPNeed{BaseURL: "https://parent"},
		Retry: &RetrySpec{Times: 1},
		Log:   &LogNeed{Level: "info"},
	}
	child := Meta{
		HTTP:    &HTTPNeed{BaseURL: "https://child"},
		Timeout: &TimeoutSpec{MS: 100},
	}

	merged := Inherit(parent, child)
	if merged.HTTP.BaseURL != "https://child" {
		t.Errorf("child HTTP need did not win: %+v", merged.HTTP)
	}
	if merged.Retry == nil || merged.Retry.Times != 1 {
		t.Errorf("parent retry not inherited: %+v", merged.Retry)
	}
	if merged.Log == nil || merged.Log.Level != "info" {
		t.Errorf("parent log need not inherited: %+v", merged.Log)
	}
	if merged.Timeout == nil || merged.Timeout.MS != 100 {
		t.Errorf("child timeout missing: %+v", merged.Timeout)
	}
}

func TestDeclaredKeys(t *testing.T) {
	m := Meta{
		KV:   &KVNeed{},
		Lock: &LockNeed{Name: "n"},
	}
	keys := m.DeclaredKeys()
	if len(keys) != 2 || keys[0] != KeyKV || keys[1] != KeyLock {
		t.Errorf("DeclaredKeys = %v, want [kv lock]", keys)
	}
}
