// Package config loads the static runtime configuration read once at
// startup: default symbols, catalog paths, provider selection and the
// retry policy.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/stockpile/pkg/errors"
)

// Duration is a time.Duration that unmarshals from yaml strings like
// "5s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the static configuration object.
type Config struct {
	// Symbols is the default symbol list used when a command is invoked
	// without an explicit one.
	Symbols []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	// DataDir is the base directory of the Parquet catalog.
	DataDir string `yaml:"data_dir" validate:"required"`
	// ExportDir receives CSV exports.
	ExportDir string `yaml:"export_dir" validate:"required"`
	// DefaultStartDate is the beginning of history for initial daily
	// fetches, in YYYY-MM-DD.
	DefaultStartDate string `yaml:"default_start_date" validate:"required,datetime=2006-01-02"`
	// Provider selects the upstream market data API.
	Provider string `yaml:"provider" validate:"required,oneof=yahoo polygon binance"`
	// PolygonAPIKeyEnv names the environment variable holding the
	// Polygon.io API key.
	PolygonAPIKeyEnv string `yaml:"polygon_api_key_env"`
	// MaxRetries is the number of additional attempts after a failed
	// upstream request.
	MaxRetries int `yaml:"max_retries" validate:"min=0"`
	// RetryDelay is the fixed delay between attempts.
	RetryDelay Duration `yaml:"retry_delay" validate:"min=0"`
	// RequestTimeout bounds each upstream HTTP request.
	RequestTimeout Duration `yaml:"request_timeout" validate:"min=0"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Symbols:          []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"},
		DataDir:          "data",
		ExportDir:        "data/exports",
		DefaultStartDate: "2000-01-01",
		Provider:         "yahoo",
		PolygonAPIKeyEnv: "POLYGON_API_KEY",
		MaxRetries:       3,
		RetryDelay:       Duration(5 * time.Second),
		RequestTimeout:   Duration(30 * time.Second),
	}
}

// LoadConfig reads a yaml config file, filling unset fields from the
// defaults. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}

		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the configuration fields.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

// StartDate parses DefaultStartDate as a UTC time.
func (c Config) StartDate() (time.Time, error) {
	start, err := time.Parse("2006-01-02", c.DefaultStartDate)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid default_start_date %q", c.DefaultStartDate)
	}

	return start.UTC(), nil
}

// PolygonAPIKey resolves the Polygon API key from the configured
// environment variable.
func (c Config) PolygonAPIKey() string {
	if c.PolygonAPIKeyEnv == "" {
		return ""
	}

	return os.Getenv(c.PolygonAPIKeyEnv)
}
