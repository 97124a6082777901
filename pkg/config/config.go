// pkg/config/config.go

// Package config loads the exporter settings from flags, environment
// (BORGMATIC_EXPORTER_*) and an optional YAML file, in that order of
// precedence.
package config

import (
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/borgmatic"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the exporter reads.
const EnvPrefix = "BORGMATIC_EXPORTER"

// Config keys.
const (
	KeyBorgmaticConfig   = "borgmatic_config"
	KeyBorgmaticBinary   = "borgmatic_binary"
	KeyInfoArgs          = "info_args"
	KeyListArgs          = "list_args"
	KeyListenAddress     = "listen_address"
	KeyMetricsPath       = "metrics_path"
	KeyMinScrapeInterval = "min_scrape_interval"
	KeyCommandTimeout    = "command_timeout"
	KeyEnvFile           = "env_file"
	KeyWatchConfigs      = "watch_configs"
	KeyLogLevel          = "log_level"
	KeyTelemetryEnabled  = "telemetry.enabled"
	KeyTelemetryPath     = "telemetry.path"
	KeyBreakerFailures   = "breaker.failures"
	KeyBreakerCooldown   = "breaker.cooldown"
)

// DefaultBorgmaticConfigs are the locations borgmatic itself reads by default.
var DefaultBorgmaticConfigs = []string{"/etc/borgmatic/config.yaml", "/etc/borgmatic.d/*.yaml"}

// Config is the complete exporter configuration.
type Config struct {
	// BorgmaticConfig holds borgmatic config paths or glob patterns.
	BorgmaticConfig []string `mapstructure:"borgmatic_config" validate:"min=1,dive,required"`
	BorgmaticBinary string   `mapstructure:"borgmatic_binary" validate:"required"`
	InfoArgs        []string `mapstructure:"info_args"`
	ListArgs        []string `mapstructure:"list_args"`

	ListenAddress     string        `mapstructure:"listen_address" validate:"required"`
	MetricsPath       string        `mapstructure:"metrics_path" validate:"required,startswith=/"`
	MinScrapeInterval time.Duration `mapstructure:"min_scrape_interval" validate:"gte=0"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout" validate:"gte=0"`

	EnvFile      string `mapstructure:"env_file" validate:"omitempty,file"`
	WatchConfigs bool   `mapstructure:"watch_configs"`
	LogLevel     string `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`

	Telemetry telemetry.Config `mapstructure:"telemetry"`
	Breaker   BreakerConfig    `mapstructure:"breaker"`
}

// BreakerConfig controls when scrape-triggered collections stop calling
// borgmatic after repeated failures.
type BreakerConfig struct {
	Failures uint32        `mapstructure:"failures" validate:"gte=1"`
	Cooldown time.Duration `mapstructure:"cooldown" validate:"gt=0"`
}

// SetDefaults registers every key with its default so that environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBorgmaticConfig, DefaultBorgmaticConfigs)
	v.SetDefault(KeyBorgmaticBinary, borgmatic.DefaultBinary)
	v.SetDefault(KeyInfoArgs, borgmatic.DefaultInfoArgs)
	v.SetDefault(KeyListArgs, borgmatic.DefaultListArgs)
	v.SetDefault(KeyListenAddress, ":9996")
	v.SetDefault(KeyMetricsPath, "/metrics")
	v.SetDefault(KeyMinScrapeInterval, time.Duration(0))
	v.SetDefault(KeyCommandTimeout, time.Duration(0))
	v.SetDefault(KeyEnvFile, "")
	v.SetDefault(KeyWatchConfigs, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTelemetryEnabled, false)
	v.SetDefault(KeyTelemetryPath, "")
	v.SetDefault(KeyBreakerFailures, 5)
	v.SetDefault(KeyBreakerCooldown, time.Minute)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	cli.SetViperEnvPrefix(v, EnvPrefix)
	return v
}

// Load reads the optional config file into v and decodes the result. Flags
// must already be bound to v.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, exporter_err.NewValidationError("cannot read config file "+file, err,
				"check the --config-file path and YAML syntax")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, exporter_err.NewValidationError("cannot decode configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and required settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return exporter_err.NewValidationError("invalid configuration", cerr.WithStack(err))
	}
	if _, err := execute.SplitCommandLine(c.BorgmaticBinary); err != nil {
		return exporter_err.NewValidationError("invalid borgmatic_binary", err,
			"quote paths with spaces, e.g. --borgmatic-binary '\"/opt/my tools/borgmatic\"'")
	}
	return nil
}

// CommandSet builds the borgmatic invocations the config describes.
func (c *Config) CommandSet() borgmatic.CommandSet {
	return borgmatic.CommandSet{
		Binary:   c.BorgmaticBinary,
		InfoArgs: c.InfoArgs,
		ListArgs: c.ListArgs,
	}
}
