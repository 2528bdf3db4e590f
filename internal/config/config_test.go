package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omochice/relay-chat/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay-chat.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RELAYCHAT_CONFIG", "")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := config.Default()
	if cfg.Client != want.Client {
		t.Errorf("Client = %+v, want %+v", cfg.Client, want.Client)
	}
	if cfg.Relay != want.Relay {
		t.Errorf("Relay = %+v, want %+v", cfg.Relay, want.Relay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
client:
  host: chat.example.com
  port: 9000
  transport: WS
  name: alice
  budget: 20ms
relay:
  addr: ":9000"
log:
  level: debug
  outputs: [stderr]
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Client.Host != "chat.example.com" || cfg.Client.Port != 9000 {
		t.Errorf("Client = %+v", cfg.Client)
	}
	if cfg.Client.Transport != config.TransportWS {
		t.Errorf("Transport = %q, want normalized %q", cfg.Client.Transport, config.TransportWS)
	}
	if cfg.Client.Budget != 20*time.Millisecond {
		t.Errorf("Budget = %s, want 20ms", cfg.Client.Budget)
	}
	if cfg.Client.SenderTag() != "[alice] " {
		t.Errorf("SenderTag() = %q", cfg.Client.SenderTag())
	}
	if cfg.Relay.Addr != ":9000" {
		t.Errorf("Relay.Addr = %q", cfg.Relay.Addr)
	}
	if cfg.Log.Level != "debug" || len(cfg.Log.Outputs) != 1 || cfg.Log.Outputs[0] != "stderr" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Client.DialTimeout != config.Default().Client.DialTimeout {
		t.Errorf("unset fields should keep defaults, DialTimeout = %s", cfg.Client.DialTimeout)
	}
}

func TestLoad_Env(t *testing.T) {
	path := writeFile(t, "client:\n  port: 9000\n")
	t.Setenv("RELAYCHAT_CLIENT_PORT", "9100")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Client.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", cfg.Client.Port)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeFile(t, "client: [unterminated\n")
	_, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("Load() error = %v, want read config error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"port zero", func(c *config.Config) { c.Client.Port = 0 }, "client.port"},
		{"port too large", func(c *config.Config) { c.Client.Port = 65536 }, "client.port"},
		{"port max", func(c *config.Config) { c.Client.Port = 65535 }, ""},
		{"unknown transport", func(c *config.Config) { c.Client.Transport = "udp" }, "client.transport"},
		{"empty host", func(c *config.Config) { c.Client.Host = " " }, "client.host"},
		{"negative budget", func(c *config.Config) { c.Client.Budget = -time.Second }, "client.budget"},
		{"zero budget", func(c *config.Config) { c.Client.Budget = 0 }, "client.budget"},
		{"small budget", func(c *config.Config) { c.Client.Budget = time.Millisecond }, ""},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"level case", func(c *config.Config) { c.Log.Level = "WARN" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSenderTag_Empty(t *testing.T) {
	if tag := config.Default().Client.SenderTag(); tag != "" {
		t.Errorf("SenderTag() = %q, want empty", tag)
	}
}
