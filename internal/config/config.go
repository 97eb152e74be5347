package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultBaseURL = "https://web4s.eku.edu/prod/bwckschd.p_disp_detail_sched?term_in={term}&crn_in={crn}"

type Config struct {
	PollInterval      time.Duration  `yaml:"-"`
	RawInterval       string         `yaml:"poll_interval"`
	ReconcileInterval time.Duration  `yaml:"-"`
	RawReconcile      string         `yaml:"reconcile_interval"`
	ShutdownTimeout   time.Duration  `yaml:"-"`
	RawShutdown       string         `yaml:"shutdown_timeout"`
	Workdir           string         `yaml:"workdir"`
	LogFile           string         `yaml:"log_file"`
	Log               LogConfig      `yaml:"log"`
	TUI               TUIConfig      `yaml:"tui"`
	Database          DatabaseConfig `yaml:"database"`
	HTTP              HTTPConfig     `yaml:"http"`
	Fetch             FetchConfig    `yaml:"fetch"`
	SMTP              SMTPConfig     `yaml:"smtp"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

// DatabaseConfig selects the desired-state store. An empty URL keeps
// everything in memory, which is only useful for local trials.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// SiteURL is quoted in welcome notices so recipients know where to deactivate.
	SiteURL string `yaml:"site_url"`
}

type FetchConfig struct {
	Timeout    time.Duration `yaml:"-"`
	RawTimeout string        `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	BaseURL    string        `yaml:"base_url"`
}

// SMTPConfig configures outgoing mail. Without a host, notifications are
// only written to the log.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	SSL      *bool  `yaml:"ssl,omitempty"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies environment overrides and defaults,
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SEATWATCH_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("SEATWATCH_SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
}

func (c *Config) setDefaults() error {
	var err error
	if c.PollInterval, err = parseDuration("poll_interval", &c.RawInterval, "500s"); err != nil {
		return err
	}
	if c.ReconcileInterval, err = parseDuration("reconcile_interval", &c.RawReconcile, "10s"); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = parseDuration("shutdown_timeout", &c.RawShutdown, "30s"); err != nil {
		return err
	}
	if c.TUI.RefreshInterval, err = parseDuration("tui.refresh_interval", &c.TUI.RawInterval, "3s"); err != nil {
		return err
	}
	if c.Fetch.Timeout, err = parseDuration("fetch.timeout", &c.Fetch.RawTimeout, "15s"); err != nil {
		return err
	}

	if c.Workdir == "" {
		c.Workdir = "/tmp/seatwatch"
	}
	if c.LogFile == "" {
		c.LogFile = c.Workdir + "/logs/seatwatch.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}

	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.HTTP.SiteURL == "" {
		c.HTTP.SiteURL = "http://localhost" + c.HTTP.ListenAddr
	}

	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (compatible; seatwatch/1.0)"
	}
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = DefaultBaseURL
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 465
	}
	if c.SMTP.SSL == nil {
		defaultTrue := true
		c.SMTP.SSL = &defaultTrue
	}
	if c.SMTP.FromName == "" {
		c.SMTP.FromName = "Course Monitor"
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}

	return nil
}

func (c *Config) validate() error {
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s, got %s", c.RawInterval)
	}
	if c.ReconcileInterval < time.Second {
		return fmt.Errorf("reconcile_interval must be at least 1s, got %s", c.RawReconcile)
	}
	if c.Fetch.Timeout > c.PollInterval {
		return fmt.Errorf("fetch.timeout (%s) must not exceed poll_interval (%s)", c.Fetch.RawTimeout, c.RawInterval)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	if !strings.Contains(c.Fetch.BaseURL, "{term}") || !strings.Contains(c.Fetch.BaseURL, "{crn}") {
		return fmt.Errorf("fetch.base_url must contain {term} and {crn} placeholders")
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		return fmt.Errorf("smtp.from or smtp.username required when smtp.host is set")
	}
	return nil
}

func parseDuration(key string, raw *string, def string) (time.Duration, error) {
	if *raw == "" {
		*raw = def
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, *raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, *raw)
	}
	return d, nil
}
