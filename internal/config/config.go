// Package config reads the broker configuration from TOML.
//
//	[broker]
//	name = "broker"
//	strategy = "expertise"
//	federation = "federation.cue"
//	suggestions = true
//
//	[store]
//	path = "gafed.db"
//
//	[log]
//	level = "debug"
//
//	[metrics]
//	namespace = "gafed"
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/goldenagents/gafed/internal/decompose"
)

// Config is the broker configuration.
type Config struct {
	Broker  Broker  `toml:"broker"`
	Store   Store   `toml:"store"`
	Log     Log     `toml:"log"`
	Metrics Metrics `toml:"metrics"`
}

// Broker configures decomposition and dispatch.
type Broker struct {
	// Name identifies the broker in logs.
	Name string `toml:"name"`
	// Strategy is one of capabilities, expertise, graph, linkset.
	Strategy string `toml:"strategy"`
	// Federation is the path of the CUE federation description.
	Federation string `toml:"federation"`
	// Linkset merges the owl:sameAs links of the federation into every
	// session.
	Linkset bool `toml:"linkset"`
	// Suggestions asks for a suggestions round after each result.
	Suggestions bool `toml:"suggestions"`
	// Parallelism bounds concurrent sub-query dispatches.
	Parallelism int `toml:"parallelism"`
}

// Store configures the progress log. An empty path disables it.
type Store struct {
	Path string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Metrics configures the Prometheus collectors.
type Metrics struct {
	Namespace string `toml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Broker: Broker{
			Name:        "broker",
			Strategy:    string(decompose.StrategyCapabilities),
			Linkset:     true,
			Parallelism: 8,
		},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Namespace: "gafed"},
	}
}

// Load reads path over the defaults. Unknown keys are an error, so a
// misspelled option never goes unnoticed.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(text string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the option values.
func (c Config) Validate() error {
	var errs []error
	if _, err := decompose.ParseStrategy(c.Broker.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("broker.strategy: %w", err))
	}
	if c.Broker.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("broker.parallelism: must be at least 1, got %d", c.Broker.Parallelism))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Metrics.Namespace == "" {
		errs = append(errs, errors.New("metrics.namespace: must not be empty"))
	}
	return errors.Join(errs...)
}

// Strategy returns the configured decomposition strategy.
func (c Config) Strategy() decompose.Strategy {
	return decompose.Strategy(c.Broker.Strategy)
}

// LogLevel returns the configured slog level.
func (c Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return l, nil
}
