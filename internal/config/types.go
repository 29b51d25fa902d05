package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config is the full bot configuration. All durations are Go duration
// strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Retention RetentionConfig `json:"retention,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Status    StatusConfig    `json:"status,omitempty"`
	Audit     AuditConfig     `json:"audit,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminID is the only user allowed to run admin commands and
	// publish announcements. Overridable via the ADMIN_ID env var.
	AdminID int64 `json:"admin_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console *bool  `json:"console,omitempty"` // nil means enabled
	File    string `json:"file,omitempty"`
}

// StorageConfig locates the JSON documents. Per-document overrides are
// optional; they default to well-known names under DataDir.
type StorageConfig struct {
	DataDir           string `json:"data_dir"`
	SubscribersFile   string `json:"subscribers_file,omitempty"`
	AnnouncementsFile string `json:"announcements_file,omitempty"`
	ReceiptsFile      string `json:"receipts_file,omitempty"`
}

func (s StorageConfig) dir() string {
	if strings.TrimSpace(s.DataDir) == "" {
		return "."
	}
	return s.DataDir
}

func (s StorageConfig) resolve(override, def string) string {
	name := strings.TrimSpace(override)
	if name == "" {
		name = def
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir(), name)
}

func (s StorageConfig) SubscribersPath() string {
	return s.resolve(s.SubscribersFile, "subscribers.json")
}

func (s StorageConfig) AnnouncementsPath() string {
	return s.resolve(s.AnnouncementsFile, "announcements.json")
}

func (s StorageConfig) ReceiptsPath() string {
	return s.resolve(s.ReceiptsFile, "read_receipts.json")
}

type RetentionConfig struct {
	// Days an announcement survives before the sweeper removes it.
	// 0 means the default window.
	Days int `json:"days,omitempty"`
	// Schedule is a cron expression for the periodic sweep.
	// Empty means the default hourly sweep.
	Schedule string `json:"schedule,omitempty"`
}

func (r RetentionConfig) CronSchedule() string {
	if strings.TrimSpace(r.Schedule) == "" {
		return "@hourly"
	}
	return r.Schedule
}

type BroadcastConfig struct {
	BatchSize  int     `json:"batch_size,omitempty"`
	BatchPause string  `json:"batch_pause,omitempty"` // Go duration string
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address,omitempty"`
}

type AuditConfig struct {
	Driver      string `json:"driver,omitempty"` // "", "none", "file", "sqlite"
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Validate rejects configurations the bot cannot start with. Duration
// fields are parsed here so a bad reload never reaches the services.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (or set BOT_TOKEN)")
	}
	if c.Telegram.AdminID <= 0 {
		return errors.New("telegram.admin_id must be a positive user id (or set ADMIN_ID)")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("broadcast.batch_pause", c.Broadcast.BatchPause); err != nil {
		return err
	}
	if _, err := ParseDurationField("audit.busy_timeout", c.Audit.BusyTimeout); err != nil {
		return err
	}
	if c.Broadcast.BatchSize < 0 {
		return errors.New("broadcast.batch_size must be >= 0")
	}
	if c.Retention.Days < 0 {
		return errors.New("retention.days must be >= 0")
	}
	return nil
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
