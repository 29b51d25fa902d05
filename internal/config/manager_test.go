package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  admin_id: 42
  poll_timeout: "10s"
logging:
  level: info
storage:
  data_dir: ./data
retention:
  days: 10
broadcast:
  batch_size: 20
  batch_pause: "1s"
status:
  enabled: true
  address: "127.0.0.1:8080"
audit:
  driver: file
  path: ./data/audit.jsonl
`

func TestLoadValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.AdminID != 42 {
		t.Fatalf("admin_id = %d, want 42", cfg.Telegram.AdminID)
	}
	if cfg.Broadcast.BatchSize != 20 {
		t.Fatalf("batch_size = %d, want 20", cfg.Broadcast.BatchSize)
	}
	if got := m.Current(); got != cfg {
		t.Fatal("Load must commit the parsed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t","admin_id":1},"logging":{"level":"info"},"storage":{"data_dir":"."},"shceduler":{}}`)
	m := NewManager(path)
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("err = %v, want unknown-field rejection", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"t","admin_id":1},"logging":{},"storage":{}}{"extra":true}`)
	m := NewManager(path)
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing tokens must be rejected")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mangle  func(c *Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, "telegram.token"},
		{"missing admin", func(c *Config) { c.Telegram.AdminID = 0 }, "telegram.admin_id"},
		{"bad pause", func(c *Config) { c.Broadcast.BatchPause = "soon" }, "batch_pause"},
		{"negative pause", func(c *Config) { c.Broadcast.BatchPause = "-1s" }, "batch_pause"},
		{"negative days", func(c *Config) { c.Retention.Days = -1 }, "retention.days"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Telegram: TelegramConfig{Token: "t", AdminID: 1}}
			tt.mangle(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("ADMIN_ID", "99")

	path := writeConfig(t, "config.json",
		`{"telegram":{"token":"file-token","admin_id":1},"logging":{},"storage":{}}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminID != 99 {
		t.Fatalf("admin_id = %d, want env override 99", cfg.Telegram.AdminID)
	}
}

func TestStoragePathDefaults(t *testing.T) {
	t.Parallel()
	s := StorageConfig{DataDir: "/var/lib/classbot"}
	if got := s.SubscribersPath(); got != "/var/lib/classbot/subscribers.json" {
		t.Fatalf("SubscribersPath = %q", got)
	}
	if got := s.AnnouncementsPath(); got != "/var/lib/classbot/announcements.json" {
		t.Fatalf("AnnouncementsPath = %q", got)
	}
	s.ReceiptsFile = "/elsewhere/receipts.json"
	if got := s.ReceiptsPath(); got != "/elsewhere/receipts.json" {
		t.Fatalf("absolute override ignored: %q", got)
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("subscriber got a different config")
		}
	default:
		t.Fatal("publish did not deliver")
	}

	// A slow subscriber keeps only the newest config.
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatal("slow subscriber should see the newest config")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("unsubscribed channel must be closed")
	}
}
