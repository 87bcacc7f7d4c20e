// Package config loads the scmsvn configuration from a YAML file and
// SCMSVN_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/scmsvn/pkg/observability"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers    = errors.New("blame workers must not be negative")
	ErrInvalidLogFormat  = errors.New("unknown log format")
	ErrInvalidLogLevel   = errors.New("unknown log level")
	ErrUnreadablePrivKey = errors.New("unable to read private key")
)

const envPrefix = "SCMSVN"

// Config holds all configuration of scmsvn.
type Config struct {
	SVN       SVNConfig       `mapstructure:"svn"`
	Blame     BlameConfig     `mapstructure:"blame"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SVNConfig holds the svn binary and credentials.
type SVNConfig struct {
	Binary         string `mapstructure:"binary"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	Passphrase     string `mapstructure:"passphrase"`
}

// BlameConfig holds blame orchestration settings.
type BlameConfig struct {
	Workers int `mapstructure:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	// MetricsAddr is the listen address of the Prometheus endpoint. Empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".scmsvn")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can bind it.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("svn.binary", DefaultSVNBinary)
	viperCfg.SetDefault("svn.username", "")
	viperCfg.SetDefault("svn.password", "")
	viperCfg.SetDefault("svn.private_key_path", "")
	viperCfg.SetDefault("svn.passphrase", "")

	viperCfg.SetDefault("blame.workers", DefaultBlameWorkers)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.metrics_addr", DefaultMetricsAddr)
}

func validateConfig(config *Config) error {
	if config.Blame.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Blame.Workers)
	}

	switch config.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	_, err := parseLevel(config.Logging.Level)
	if err != nil {
		return err
	}

	if config.SVN.PrivateKeyPath != "" {
		f, openErr := os.Open(config.SVN.PrivateKeyPath)
		if openErr != nil {
			return fmt.Errorf("%w: %w", ErrUnreadablePrivKey, openErr)
		}

		_ = f.Close()
	}

	return nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level

	err := l.UnmarshalText([]byte(level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}

	return l, nil
}

// Auth returns the configured svn credentials.
func (c *Config) Auth() svnlib.Auth {
	return svnlib.Auth{
		Username:       c.SVN.Username,
		Password:       c.SVN.Password,
		PrivateKeyPath: c.SVN.PrivateKeyPath,
		Passphrase:     c.SVN.Passphrase,
	}
}

// Observability builds the telemetry configuration. Credentials are
// registered as log secrets.
func (c *Config) Observability(version string) observability.Config {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.Prometheus = c.Telemetry.MetricsAddr != ""
	cfg.LogJSON = c.Logging.Format == LogFormatJSON
	cfg.Secrets = c.Auth().Secrets()
	// Validated by LoadConfig.
	cfg.LogLevel, _ = parseLevel(c.Logging.Level)

	return cfg
}
