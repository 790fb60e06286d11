// Package config loads and validates the bridge configuration from a YAML
// file. Values may reference environment variables with ${VAR} and
// ${VAR:-default}; secrets normally arrive that way rather than in the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root of the bridge configuration. It is immutable after Load;
// components receive the sub-structs they need at construction time.
type Config struct {
	General  GeneralConfig  `yaml:"general"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Storage  StorageConfig  `yaml:"storage"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	BotID    string `yaml:"botId"` // identifies this bridge instance downstream
	LogLevel string `yaml:"logLevel"`
}

// GatewayConfig configures the chat puppet gateway connection.
type GatewayConfig struct {
	URL   string `yaml:"url"` // ws:// or wss:// endpoint
	Token string `yaml:"token"`
}

// StorageConfig configures the S3-compatible blob store for attachments.
type StorageConfig struct {
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"accessKey"`
	SecretKey      string `yaml:"secretKey"`
	Bucket         string `yaml:"bucket"`
	Attempts       int    `yaml:"attempts"`
	BackoffSeconds int    `yaml:"backoffSeconds"`
}

// WebhookConfig configures delivery to the downstream collector. An empty URL
// disables delivery; the bridge then runs in log-only mode.
type WebhookConfig struct {
	URL            string `yaml:"url"`
	Attempts       int    `yaml:"attempts"`
	BackoffSeconds int    `yaml:"backoffSeconds"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// PipelineConfig tunes event processing.
type PipelineConfig struct {
	Concurrency   int  `yaml:"concurrency"` // max events in flight
	BusBuffer     int  `yaml:"busBuffer"`
	TextFileQuirk bool `yaml:"textFileQuirk"` // probe text messages for stray file handles
}

// JournalConfig configures the local outcome journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"dbPath"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfigDir returns the default config directory (~/.wechatbridge).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wechatbridge"
	}
	return filepath.Join(home, ".wechatbridge")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Journal.DBPath = ExpandPath(cfg.Journal.DBPath)

	// An unset ${WEBHOOK_URL} with no default means log-only mode, not a
	// literal placeholder endpoint.
	if unresolved(cfg.Webhook.URL) {
		cfg.Webhook.URL = ""
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// unresolved reports whether a value still contains a ${VAR} placeholder,
// meaning the referenced environment variable was never set.
func unresolved(v string) bool {
	return envVarPattern.MatchString(v)
}

// ExpandPath resolves a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Validate checks the loaded configuration. Storage and gateway settings are
// required; a missing webhook URL is legal and handled at startup.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Gateway.URL == "" {
		errs = append(errs, "gateway.url is required")
	} else if !strings.HasPrefix(cfg.Gateway.URL, "ws://") && !strings.HasPrefix(cfg.Gateway.URL, "wss://") {
		errs = append(errs, fmt.Sprintf("gateway.url must be a ws:// or wss:// URL, got %q", cfg.Gateway.URL))
	}
	if cfg.Gateway.Token == "" {
		errs = append(errs, "gateway.token is required")
	}

	if cfg.Storage.Endpoint == "" {
		errs = append(errs, "storage.endpoint is required")
	}
	if cfg.Storage.AccessKey == "" {
		errs = append(errs, "storage.accessKey is required")
	}
	if cfg.Storage.SecretKey == "" {
		errs = append(errs, "storage.secretKey is required")
	}
	if cfg.Storage.Bucket == "" {
		errs = append(errs, "storage.bucket is required")
	}

	// Required secrets that survived expansion as ${VAR} placeholders would
	// otherwise pass the emptiness checks above.
	for _, f := range []struct{ name, value string }{
		{"gateway.url", cfg.Gateway.URL},
		{"gateway.token", cfg.Gateway.Token},
		{"storage.endpoint", cfg.Storage.Endpoint},
		{"storage.accessKey", cfg.Storage.AccessKey},
		{"storage.secretKey", cfg.Storage.SecretKey},
		{"storage.bucket", cfg.Storage.Bucket},
		{"webhook.url", cfg.Webhook.URL},
	} {
		if unresolved(f.value) {
			errs = append(errs, fmt.Sprintf("%s references an unset environment variable: %s", f.name, f.value))
		}
	}

	if cfg.Storage.Attempts < 1 || cfg.Storage.Attempts > 10 {
		errs = append(errs, fmt.Sprintf("storage.attempts must be between 1 and 10, got %d", cfg.Storage.Attempts))
	}
	if cfg.Webhook.Attempts < 1 || cfg.Webhook.Attempts > 10 {
		errs = append(errs, fmt.Sprintf("webhook.attempts must be between 1 and 10, got %d", cfg.Webhook.Attempts))
	}
	if cfg.Pipeline.Concurrency < 1 || cfg.Pipeline.Concurrency > 100 {
		errs = append(errs, fmt.Sprintf("pipeline.concurrency must be between 1 and 100, got %d", cfg.Pipeline.Concurrency))
	}
	if cfg.Pipeline.BusBuffer < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.busBuffer must be positive, got %d", cfg.Pipeline.BusBuffer))
	}
	if cfg.Journal.Enabled && cfg.Journal.DBPath == "" {
		errs = append(errs, "journal.dbPath is required when the journal is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("general.logLevel must be one of debug/info/warn/error, got %q", cfg.General.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Sanitized returns a copy with secrets masked, for display.
func Sanitized(cfg *Config) *Config {
	out := *cfg
	out.Gateway.Token = mask(cfg.Gateway.Token)
	out.Storage.AccessKey = mask(cfg.Storage.AccessKey)
	out.Storage.SecretKey = mask(cfg.Storage.SecretKey)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
