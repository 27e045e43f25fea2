// Package config provides YAML-based configuration loading for the presale
// approval service, with PRESALE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Defaults applied when a field is left empty.
const (
	DefaultQuorum            = 10
	DefaultPlanPendingWindow = 72 * time.Hour
	DefaultSweepSchedule     = "0 2 * * *"
	DefaultLeaseTimeout      = 10 * time.Minute
	DefaultAPIPort           = 8080
)

// Config is the top-level configuration, loaded from presale.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Approval ApprovalConfig `yaml:"approval"`
	Sweep    SweepConfig    `yaml:"sweep"`
	API      APIConfig      `yaml:"api"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// DatabaseConfig holds connection settings for the entity store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"PRESALE_DB_DRIVER"`
	Path     string `yaml:"path" env:"PRESALE_DB_PATH"`
	Host     string `yaml:"host" env:"PRESALE_DB_HOST"`
	Port     int    `yaml:"port" env:"PRESALE_DB_PORT"`
	User     string `yaml:"user" env:"PRESALE_DB_USER"`
	Password string `yaml:"password" env:"PRESALE_DB_PASSWORD"`
	Name     string `yaml:"name" env:"PRESALE_DB_NAME"`
}

// ApprovalConfig tunes the quorum workflow.
type ApprovalConfig struct {
	Quorum            int           `yaml:"quorum" env:"PRESALE_QUORUM"`
	PlanPendingWindow time.Duration `yaml:"plan_pending_window" env:"PRESALE_PLAN_PENDING_WINDOW"`
}

// SweepConfig controls the timeout sweeper.
type SweepConfig struct {
	Schedule     string        `yaml:"schedule" env:"PRESALE_SWEEP_SCHEDULE"`
	LeaseTimeout time.Duration `yaml:"lease_timeout" env:"PRESALE_SWEEP_LEASE_TIMEOUT"`
	Holder       string        `yaml:"holder" env:"PRESALE_SWEEP_HOLDER"`
}

// APIConfig holds HTTP adapter settings.
type APIConfig struct {
	Port int `yaml:"port" env:"PRESALE_API_PORT"`
}

// NotifyConfig selects chat platforms for resolution notifications.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack" envPrefix:"PRESALE_SLACK_"`
	Discord ChatConfig `yaml:"discord" envPrefix:"PRESALE_DISCORD_"`
}

// ChatConfig is a bot token and target channel. Empty token disables it.
type ChatConfig struct {
	BotToken  string `yaml:"bot_token" env:"BOT_TOKEN"`
	ChannelID string `yaml:"channel_id" env:"CHANNEL_ID"`
}

// Enabled reports whether the platform is configured.
func (c ChatConfig) Enabled() bool {
	return c.BotToken != ""
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes, applies environment overrides and defaults,
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == DriverSQLite && c.Database.Path == "" {
		c.Database.Path = "presale.db"
	}
	if c.Database.Driver == DriverMySQL {
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Approval.Quorum == 0 {
		c.Approval.Quorum = DefaultQuorum
	}
	if c.Approval.PlanPendingWindow == 0 {
		c.Approval.PlanPendingWindow = DefaultPlanPendingWindow
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = DefaultSweepSchedule
	}
	if c.Sweep.LeaseTimeout == 0 {
		c.Sweep.LeaseTimeout = DefaultLeaseTimeout
	}
	if c.Sweep.Holder == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "presale"
		}
		c.Sweep.Holder = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if c.API.Port == 0 {
		c.API.Port = DefaultAPIPort
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case DriverMySQL:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for mysql")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (use sqlite or mysql)", c.Database.Driver))
	}
	if c.Approval.Quorum < 1 {
		errs = append(errs, "approval.quorum must be at least 1")
	}
	if c.Approval.PlanPendingWindow < 0 {
		errs = append(errs, "approval.plan_pending_window must be positive")
	}
	if _, err := scheduleParser.Parse(c.Sweep.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("sweep.schedule %q: %v", c.Sweep.Schedule, err))
	}
	if c.Sweep.LeaseTimeout < 0 {
		errs = append(errs, "sweep.lease_timeout must be positive")
	}
	if c.Notify.Slack.Enabled() && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when a bot token is set")
	}
	if c.Notify.Discord.Enabled() && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when a bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
