// Package config loads the configuration of the immotax service.
//
// The configuration is a YAML file where ${VAR} references are expanded from
// the environment. A .env file, when present, is loaded into the environment
// first. IMMOTAX_* variables override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/etnz/immotax/mail"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Files     FilesConfig     `yaml:"files"`
	LLM       LLMConfig       `yaml:"llm"`
	SMTP      mail.SMTPConfig `yaml:"smtp"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	NATS      NATSConfig      `yaml:"nats"`
	FX        FXConfig        `yaml:"fx"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Mode         string        `yaml:"mode"` // Mode is the gin mode: release, debug or test.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxUpload    int64         `yaml:"max_upload"` // MaxUpload is the maximum size of an uploaded document, in bytes.
}

// StoreConfig configures the entity store.
type StoreConfig struct {
	Path string `yaml:"path"` // Path is the SQLite database file, ":memory:" for a transient store.
}

// FilesConfig configures the document storage. A GCS bucket takes
// precedence over the local directory.
type FilesConfig struct {
	Dir            string `yaml:"dir"`
	GCSBucket      string `yaml:"gcs_bucket"`
	GCSCredentials string `yaml:"gcs_credentials"`
}

// LLMConfig configures the plausibility review of submissions. Without API
// key, the review is disabled.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// WebhooksConfig configures the webhook deliveries.
type WebhooksConfig struct {
	Parallel  int           `yaml:"parallel"`
	RateLimit float64       `yaml:"rate_limit"`
	Retries   int           `yaml:"retries"`
	Backoff   time.Duration `yaml:"backoff"`
	Timeout   time.Duration `yaml:"timeout"`
}

// NATSConfig configures the publication of events. Without URL, nothing is published.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// FXConfig configures the exchange rates source.
type FXConfig struct {
	URL      string `yaml:"url"`
	CacheDir string `yaml:"cache_dir"`
}

// SchedulerConfig configures the reminders.
type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	At           string `yaml:"at"`            // At is the time of day of the reminders, "15:04" formatted.
	FilingWindow int    `yaml:"filing_window"` // FilingWindow is the number of days before a deadline reminders are sent.
	Landlord     string `yaml:"landlord"`      // Landlord signs the rent reminders.
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Mode:         "release",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			MaxUpload:    20 << 20,
		},
		Store: StoreConfig{Path: "immotax.db"},
		Files: FilesConfig{Dir: "files"},
		SMTP:  mail.SMTPConfig{Port: 587},
		Webhooks: WebhooksConfig{
			Parallel:  4,
			RateLimit: 10,
			Retries:   3,
			Backoff:   500 * time.Millisecond,
			Timeout:   10 * time.Second,
		},
		Scheduler: SchedulerConfig{Enabled: true, At: "07:00", FilingWindow: 14},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads the configuration file at path over the defaults. An empty path
// uses the defaults and the environment only.
func Load(path string) (*Config, error) {
	// a missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data into cfg, after expanding environment variables.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// applyEnv applies the IMMOTAX_* overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"IMMOTAX_ADDR":            &c.Server.Addr,
		"IMMOTAX_MODE":            &c.Server.Mode,
		"IMMOTAX_DB":              &c.Store.Path,
		"IMMOTAX_FILES_DIR":       &c.Files.Dir,
		"IMMOTAX_GCS_BUCKET":      &c.Files.GCSBucket,
		"IMMOTAX_GCS_CREDENTIALS": &c.Files.GCSCredentials,
		"IMMOTAX_GEMINI_API_KEY":  &c.LLM.APIKey,
		"IMMOTAX_GEMINI_MODEL":    &c.LLM.Model,
		"IMMOTAX_SMTP_HOST":       &c.SMTP.Host,
		"IMMOTAX_SMTP_USERNAME":   &c.SMTP.Username,
		"IMMOTAX_SMTP_PASSWORD":   &c.SMTP.Password,
		"IMMOTAX_SMTP_FROM":       &c.SMTP.From,
		"IMMOTAX_NATS_URL":        &c.NATS.URL,
		"IMMOTAX_FX_URL":          &c.FX.URL,
		"IMMOTAX_LOG_LEVEL":       &c.Log.Level,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	if c.LLM.APIKey == "" {
		if v, ok := lookup("GEMINI_API_KEY"); ok {
			c.LLM.APIKey = v
		}
	}
	if v, ok := lookup("IMMOTAX_SMTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid IMMOTAX_SMTP_PORT %q: %w", v, err)
		}
		c.SMTP.Port = port
	}
	if v, ok := lookup("IMMOTAX_SCHEDULER"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid IMMOTAX_SCHEDULER %q: %w", v, err)
		}
		c.Scheduler.Enabled = enabled
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs error
	if c.Server.Addr == "" {
		errs = errors.Join(errs, errors.New("server.addr is required"))
	}
	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		errs = errors.Join(errs, fmt.Errorf("server.mode %q must be release, debug or test", c.Server.Mode))
	}
	if c.Store.Path == "" {
		errs = errors.Join(errs, errors.New("store.path is required"))
	}
	if c.Files.Dir == "" && c.Files.GCSBucket == "" {
		errs = errors.Join(errs, errors.New("files.dir or files.gcs_bucket is required"))
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = errors.Join(errs, errors.New("smtp.from is required with smtp.host"))
	}
	if c.Webhooks.Retries < 0 || c.Webhooks.Parallel < 0 || c.Webhooks.RateLimit < 0 {
		errs = errors.Join(errs, errors.New("webhooks settings cannot be negative"))
	}
	if _, err := time.Parse("15:04", c.Scheduler.At); c.Scheduler.Enabled && err != nil {
		errs = errors.Join(errs, fmt.Errorf("scheduler.at %q is not a time of day", c.Scheduler.At))
	}
	if c.Scheduler.FilingWindow < 0 {
		errs = errors.Join(errs, errors.New("scheduler.filing_window cannot be negative"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = errors.Join(errs, fmt.Errorf("log.level: %w", err))
	}
	if errs != nil {
		return fmt.Errorf("invalid configuration: %w", errs)
	}
	return nil
}

// Logger builds the logger of the configuration.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
