package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lpr.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
signing:
  active: v1
  keys:
    v1: super-secret-signing-key
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.Issuance.MaxTTL != 24*time.Hour {
		t.Errorf("MaxTTL = %v, want 24h", cfg.Issuance.MaxTTL)
	}
	if cfg.Issuance.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.Issuance.SessionTTL)
	}
	if cfg.RateLimit.Type != "memory" || cfg.Revocation.Type != "memory" || cfg.Ledger.Type != "memory" {
		t.Errorf("backend defaults = %q/%q/%q, want memory", cfg.RateLimit.Type, cfg.Revocation.Type, cfg.Ledger.Type)
	}
	if cfg.Sessions.Driver != "static" {
		t.Errorf("sessions driver = %q, want static", cfg.Sessions.Driver)
	}
	if cfg.Tasks.ExpireSweepInterval != 5*time.Minute {
		t.Errorf("expire sweep interval = %v, want 5m", cfg.Tasks.ExpireSweepInterval)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen_addr: ":9090"
admin_signing_key: admin-secret
signing:
  active: v2
  keys:
    v1: old-key
    v2: new-key
issuance:
  max_ttl: 1h
  session_ttl: 10m
ratelimit:
  type: redis
  addr: localhost:6379
  db: 2
revocation:
  type: redis
  addr: localhost:6379
ledger:
  type: file
  path: /var/lib/lpr/audit.log
sessions:
  driver: static
  subjects:
    shopify: alice
api_rate_limit:
  rps: 2
  burst: 5
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Signing.Active != "v2" || len(cfg.Signing.Keys) != 2 {
		t.Errorf("signing = %+v", cfg.Signing)
	}
	if cfg.Issuance.MaxTTL != time.Hour {
		t.Errorf("MaxTTL = %v, want 1h", cfg.Issuance.MaxTTL)
	}

	rc, err := cfg.RateLimit.Redis()
	if err != nil {
		t.Fatalf("Redis() failed: %v", err)
	}
	if rc.Addr != "localhost:6379" || rc.DB != 2 {
		t.Errorf("redis config = %+v", rc)
	}

	if cfg.Ledger.Path != "/var/lib/lpr/audit.log" {
		t.Errorf("ledger path = %q", cfg.Ledger.Path)
	}
	if cfg.Sessions.Subjects["shopify"] != "alice" {
		t.Errorf("subjects = %+v", cfg.Sessions.Subjects)
	}
	if cfg.APILimit.RPS != 2 || cfg.APILimit.Burst != 5 {
		t.Errorf("api limit = %+v", cfg.APILimit)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no signing keys",
			yaml:    "listen_addr: ':8080'",
			wantErr: "signing.keys",
		},
		{
			name: "missing active",
			yaml: `
signing:
  keys:
    v1: secret
`,
			wantErr: "signing.active",
		},
		{
			name: "active not in keys",
			yaml: `
signing:
  active: v9
  keys:
    v1: secret
`,
			wantErr: "signing.active",
		},
		{
			name: "empty key",
			yaml: `
signing:
  active: v1
  keys:
    v1: ""
`,
			wantErr: "signing.keys[v1]",
		},
		{
			name: "unsupported ratelimit backend",
			yaml: minimalConfig + `
ratelimit:
  type: dynamo
`,
			wantErr: "ratelimit.type",
		},
		{
			name: "redis without addr",
			yaml: minimalConfig + `
revocation:
  type: redis
`,
			wantErr: "requires addr",
		},
		{
			name: "file ledger without path",
			yaml: minimalConfig + `
ledger:
  type: file
`,
			wantErr: "ledger.path",
		},
		{
			name: "unsupported sessions driver",
			yaml: minimalConfig + `
sessions:
  driver: oauth
`,
			wantErr: "sessions.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("Load succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of a missing file returned no error")
	}
}
