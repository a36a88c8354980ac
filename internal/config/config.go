// Package config loads run configuration from defaults, an optional config
// file, environment variables and command-line flags, in that precedence
// order (later wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"agentflow/internal/model"
)

const envPrefix = "AGENTFLOW"

// RunConfig is the resolved configuration for one run.
type RunConfig struct {
	// Model settings forwarded to the gateway.
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	Seed        *int64  `mapstructure:"-"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// Gateway settings. APIKey is never persisted or logged.
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	RequestTimeout int    `mapstructure:"request_timeout"`

	// Pipeline settings.
	Quorum       int           `mapstructure:"quorum"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PhaseTimeout time.Duration `mapstructure:"phase_timeout"`

	// Output.
	OutDir  string `mapstructure:"out_dir"`
	Verbose bool   `mapstructure:"verbose"`
}

// Default returns the built-in configuration baseline.
func Default() RunConfig {
	return RunConfig{
		Model:          "gpt-4o-mini",
		Temperature:    0.7,
		MaxTokens:      0,
		BaseURL:        "",
		RequestTimeout: 120,
		Quorum:         2,
		MaxRetries:     2,
		PhaseTimeout:   5 * time.Minute,
		OutDir:         "runs",
		Verbose:        false,
	}
}

// Load resolves the configuration: defaults, then agentflow.yaml (current
// directory or $HOME), then AGENTFLOW_* environment variables, then flags.
// A missing config file is not an error.
func Load(flags *pflag.FlagSet) (RunConfig, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("model", def.Model)
	v.SetDefault("temperature", def.Temperature)
	v.SetDefault("max_tokens", def.MaxTokens)
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("quorum", def.Quorum)
	v.SetDefault("max_retries", def.MaxRetries)
	v.SetDefault("phase_timeout", def.PhaseTimeout)
	v.SetDefault("out_dir", def.OutDir)
	v.SetDefault("verbose", def.Verbose)

	v.SetConfigName("agentflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flag names use hyphens, config keys use underscores; bind explicitly.
	if flags != nil {
		bindings := map[string]string{
			"model":           "model",
			"temperature":     "temperature",
			"seed":            "seed",
			"max_tokens":      "max-tokens",
			"base_url":        "base-url",
			"request_timeout": "request-timeout",
			"quorum":          "quorum",
			"max_retries":     "max-retries",
			"phase_timeout":   "phase-timeout",
			"out_dir":         "out-dir",
			"verbose":         "verbose",
		}
		for key, name := range bindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return RunConfig{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return RunConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("decode config: %w", err)
	}

	// Seed is tri-state (unset vs explicit value), which mapstructure cannot
	// express with a plain int, so it is resolved by hand.
	if v.IsSet("seed") {
		seed := v.GetInt64("seed")
		cfg.Seed = &seed
	}

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c RunConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config: temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.Quorum < 1 || c.Quorum > len(model.WorkerRoles()) {
		return fmt.Errorf("config: quorum %d out of range [1, %d]", c.Quorum, len(model.WorkerRoles()))
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative")
	}
	if c.PhaseTimeout <= 0 {
		return fmt.Errorf("config: phase_timeout must be positive")
	}
	if c.OutDir == "" {
		return fmt.Errorf("config: out_dir must not be empty")
	}
	return nil
}

// Settings returns the credential-free snapshot persisted in the run log.
func (c RunConfig) Settings() model.RunSettings {
	return model.RunSettings{
		Model:       c.Model,
		Temperature: c.Temperature,
		Seed:        c.Seed,
		MaxTokens:   c.MaxTokens,
		Quorum:      c.Quorum,
	}
}
