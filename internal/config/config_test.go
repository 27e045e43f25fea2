package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: presale
  password: hunter2
  name: presale_prod

approval:
  quorum: 7
  plan_pending_window: 48h

sweep:
  schedule: "30 1 * * *"
  lease_timeout: 5m
  holder: sweeper-a

api:
  port: 9090

notify:
  slack:
    bot_token: xoxb-123
    channel_id: C01
  discord:
    bot_token: discord-token
    channel_id: "998877"
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != DriverMySQL {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverMySQL)
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Database.Name != "presale_prod" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "presale_prod")
	}
	if cfg.Approval.Quorum != 7 {
		t.Errorf("Approval.Quorum = %d, want 7", cfg.Approval.Quorum)
	}
	if cfg.Approval.PlanPendingWindow != 48*time.Hour {
		t.Errorf("Approval.PlanPendingWindow = %s, want 48h", cfg.Approval.PlanPendingWindow)
	}
	if cfg.Sweep.Schedule != "30 1 * * *" {
		t.Errorf("Sweep.Schedule = %q", cfg.Sweep.Schedule)
	}
	if cfg.Sweep.LeaseTimeout != 5*time.Minute {
		t.Errorf("Sweep.LeaseTimeout = %s, want 5m", cfg.Sweep.LeaseTimeout)
	}
	if cfg.Sweep.Holder != "sweeper-a" {
		t.Errorf("Sweep.Holder = %q, want %q", cfg.Sweep.Holder, "sweeper-a")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if !cfg.Notify.Slack.Enabled() || cfg.Notify.Slack.ChannelID != "C01" {
		t.Errorf("Notify.Slack = %+v", cfg.Notify.Slack)
	}
	if !cfg.Notify.Discord.Enabled() || cfg.Notify.Discord.ChannelID != "998877" {
		t.Errorf("Notify.Discord = %+v", cfg.Notify.Discord)
	}
}

func TestParse_EmptyConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q (default)", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Database.Path != "presale.db" {
		t.Errorf("Database.Path = %q, want %q (default)", cfg.Database.Path, "presale.db")
	}
	if cfg.Approval.Quorum != DefaultQuorum {
		t.Errorf("Approval.Quorum = %d, want %d (default)", cfg.Approval.Quorum, DefaultQuorum)
	}
	if cfg.Approval.PlanPendingWindow != 72*time.Hour {
		t.Errorf("Approval.PlanPendingWindow = %s, want 72h (default)", cfg.Approval.PlanPendingWindow)
	}
	if cfg.Sweep.Schedule != DefaultSweepSchedule {
		t.Errorf("Sweep.Schedule = %q, want %q (default)", cfg.Sweep.Schedule, DefaultSweepSchedule)
	}
	if cfg.Sweep.Holder == "" {
		t.Error("Sweep.Holder should default to hostname-pid")
	}
	if cfg.API.Port != DefaultAPIPort {
		t.Errorf("API.Port = %d, want %d (default)", cfg.API.Port, DefaultAPIPort)
	}
	if cfg.Notify.Slack.Enabled() || cfg.Notify.Discord.Enabled() {
		t.Error("notifiers should be disabled by default")
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n  host: db\n  name: presale\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Database.Port = %d, want 3306 (default)", cfg.Database.Port)
	}
	if cfg.Database.User != "root" {
		t.Errorf("Database.User = %q, want root (default)", cfg.Database.User)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("PRESALE_QUORUM", "3")
	t.Setenv("PRESALE_DB_PATH", "/tmp/override.db")
	t.Setenv("PRESALE_SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("PRESALE_SLACK_CHANNEL_ID", "C99")

	cfg, err := Parse([]byte("approval:\n  quorum: 12\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Approval.Quorum != 3 {
		t.Errorf("Approval.Quorum = %d, want 3 (env override)", cfg.Approval.Quorum)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Notify.Slack.BotToken != "xoxb-env" || cfg.Notify.Slack.ChannelID != "C99" {
		t.Errorf("Notify.Slack = %+v, want env override", cfg.Notify.Slack)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "database:\n  driver: postgres\n", "not supported"},
		{"mysql without host", "database:\n  driver: mysql\n  name: x\n", "database.host is required"},
		{"mysql without name", "database:\n  driver: mysql\n  host: x\n", "database.name is required"},
		{"negative quorum", "approval:\n  quorum: -1\n", "quorum must be at least 1"},
		{"bad schedule", "sweep:\n  schedule: \"every day\"\n", "sweep.schedule"},
		{"slack without channel", "notify:\n  slack:\n    bot_token: x\n", "notify.slack.channel_id"},
		{"discord without channel", "notify:\n  discord:\n    bot_token: x\n", "notify.discord.channel_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presale.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Approval.Quorum != 7 {
		t.Errorf("Approval.Quorum = %d, want 7", cfg.Approval.Quorum)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}
