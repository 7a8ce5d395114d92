// Package config loads client settings from defaults, an optional YAML file,
// an optional .env file, MPD_* environment variables and bound CLI flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fpang/missing-person-client/internal/aggregate"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. MPD_API_URL.
const EnvPrefix = "MPD"

// DefaultEnvFile is read when present.
const DefaultEnvFile = ".env"

// Config is the complete client configuration.
type Config struct {
	API struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
		Token   string        `mapstructure:"token"`
	} `mapstructure:"api"`

	Notify struct {
		Delay time.Duration `mapstructure:"delay"`
	} `mapstructure:"notify"`

	Progress struct {
		Interval    time.Duration `mapstructure:"interval"`
		Step        int           `mapstructure:"step"`
		Ceiling     int           `mapstructure:"ceiling"`
		RevealDelay time.Duration `mapstructure:"reveal_delay"`
	} `mapstructure:"progress"`

	Aggregate struct {
		Concurrency int     `mapstructure:"concurrency"`
		Rate        float64 `mapstructure:"rate"`
		OnError     string  `mapstructure:"on_error"`
	} `mapstructure:"aggregate"`

	Preview struct {
		MaxDimension int `mapstructure:"max_dimension"`
	} `mapstructure:"preview"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to v for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "http://localhost:8000")
	v.SetDefault("api.timeout", 10*time.Minute)
	v.SetDefault("api.token", "")
	v.SetDefault("notify.delay", 4*time.Second)
	v.SetDefault("progress.interval", 500*time.Millisecond)
	v.SetDefault("progress.step", 5)
	v.SetDefault("progress.ceiling", 90)
	v.SetDefault("progress.reveal_delay", 500*time.Millisecond)
	v.SetDefault("aggregate.concurrency", 1)
	v.SetDefault("aggregate.rate", 0.0)
	v.SetDefault("aggregate.on_error", string(aggregate.PolicyAbort))
	v.SetDefault("preview.max_dimension", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", false)
}

// Load reads the configuration into a Config. configFile and envFile are
// optional; a missing envFile is not an error, a missing configFile is.
// Flags bound to v before Load take precedence over everything else.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	SetDefaults(v)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Aggregate.OnError = strings.ToLower(strings.TrimSpace(cfg.Aggregate.OnError))
	cfg.API.URL = strings.TrimRight(strings.TrimSpace(cfg.API.URL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.url must be an http or https URL, got %q", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.Notify.Delay <= 0 {
		errs = append(errs, errors.New("notify.delay must be positive"))
	}
	if c.Progress.Interval <= 0 {
		errs = append(errs, errors.New("progress.interval must be positive"))
	}
	if c.Progress.Step <= 0 {
		errs = append(errs, errors.New("progress.step must be positive"))
	}
	if c.Progress.Ceiling <= 0 || c.Progress.Ceiling >= 100 {
		errs = append(errs, fmt.Errorf("progress.ceiling must be in (0,100), got %d", c.Progress.Ceiling))
	}
	if c.Progress.RevealDelay < 0 {
		errs = append(errs, errors.New("progress.reveal_delay must not be negative"))
	}
	if c.Aggregate.Concurrency < 1 {
		errs = append(errs, errors.New("aggregate.concurrency must be at least 1"))
	}
	if c.Aggregate.Rate < 0 {
		errs = append(errs, errors.New("aggregate.rate must not be negative"))
	}
	if !aggregate.Policy(c.Aggregate.OnError).Valid() {
		errs = append(errs, fmt.Errorf("aggregate.on_error must be %q or %q, got %q",
			aggregate.PolicyAbort, aggregate.PolicySkip, c.Aggregate.OnError))
	}
	if c.Preview.MaxDimension <= 0 {
		errs = append(errs, errors.New("preview.max_dimension must be positive"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}
