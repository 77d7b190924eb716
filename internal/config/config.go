package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/mise/pkg/model"
)

// SolverConfig bounds and parameterizes one scheduling run.
type SolverConfig struct {
	TimeLimit      time.Duration      `yaml:"time_limit"`      // Wall-clock budget per solve (0 = unlimited)
	NodeLimit      int64              `yaml:"node_limit"`      // Search node budget per solve (0 = unlimited)
	AcceptFeasible bool               `yaml:"accept_feasible"` // Return the incumbent instead of failing when a budget runs out
	Actions        []model.ActionType `yaml:"actions"`         // Recognized action types
	Exclusive      []model.ActionType `yaml:"exclusive"`       // Action types that hold the exclusive resource
	Horizon        int                `yaml:"horizon"`         // Horizon override (0 = sum of durations)
	MaxHorizon     int                `yaml:"max_horizon"`     // Largest horizon a task list may need (0 = unlimited)
	Backend        string             `yaml:"backend"`         // Search engine: search, pb
}

// ServerConfig holds configuration for the mise server.
type ServerConfig struct {
	Addr                string       `yaml:"addr"`                  // Listen address (default ":8080")
	LogLevel            string       `yaml:"log_level"`             // Log level: debug, info, warn, error
	LogFormat           string       `yaml:"log_format"`            // Log format: text, json
	MaxConcurrentSolves int64        `yaml:"max_concurrent_solves"` // Solves allowed to run at once
	MaxBodyBytes        int64        `yaml:"max_body_bytes"`        // Request body limit
	Solver              SolverConfig `yaml:"solver"`
}

// DefaultSolverConfig returns sensible defaults.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		TimeLimit:  30 * time.Second,
		MaxHorizon: 1440,
		Backend:    "search",
		Actions:    []model.ActionType{model.ActionChop, model.ActionFry, model.ActionWash, model.ActionSteam},
		Exclusive:  []model.ActionType{model.ActionChop, model.ActionFry, model.ActionWash},
	}
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                ":8080",
		LogLevel:            "info",
		LogFormat:           "text",
		MaxConcurrentSolves: 4,
		MaxBodyBytes:        1 << 20,
		Solver:              DefaultSolverConfig(),
	}
}

// LoadServerConfig reads a YAML file over the defaults. An empty path
// returns the defaults. Environment overrides are applied last.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Solver.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from MISE_* variables.
func (c *ServerConfig) applyEnv(getenv func(string) string) error {
	if v := getenv("MISE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("MISE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("MISE_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := getenv("MISE_TIME_LIMIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MISE_TIME_LIMIT: %w", err)
		}
		c.Solver.TimeLimit = d
	}
	if v := getenv("MISE_NODE_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MISE_NODE_LIMIT: %w", err)
		}
		c.Solver.NodeLimit = n
	}
	if v := getenv("MISE_MAX_CONCURRENT_SOLVES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MISE_MAX_CONCURRENT_SOLVES: %w", err)
		}
		c.MaxConcurrentSolves = n
	}
	if v := getenv("MISE_MAX_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MISE_MAX_HORIZON: %w", err)
		}
		c.Solver.MaxHorizon = n
	}
	if v := getenv("MISE_BACKEND"); v != "" {
		c.Solver.Backend = v
	}
	return nil
}

// Validate checks that the exclusive set is a subset of the recognized
// actions and that budgets are non-negative. Action names may not contain
// "_", which separates dish and action in task keys.
func (c SolverConfig) Validate() error {
	if len(c.Actions) == 0 {
		return fmt.Errorf("solver config: no recognized actions")
	}
	known := make(map[model.ActionType]bool, len(c.Actions))
	for _, a := range c.Actions {
		if a == "" || strings.Contains(string(a), "_") {
			return fmt.Errorf("solver config: action %q must be non-empty and must not contain '_'", a)
		}
		known[a] = true
	}
	for _, a := range c.Exclusive {
		if !known[a] {
			return fmt.Errorf("solver config: exclusive action %q is not a recognized action", a)
		}
	}
	if c.TimeLimit < 0 || c.NodeLimit < 0 || c.Horizon < 0 || c.MaxHorizon < 0 {
		return fmt.Errorf("solver config: budgets and horizons must not be negative")
	}
	if c.MaxHorizon > 0 && c.Horizon > c.MaxHorizon {
		return fmt.Errorf("solver config: horizon %d exceeds max_horizon %d", c.Horizon, c.MaxHorizon)
	}
	switch c.Backend {
	case "", "search", "pb":
	default:
		return fmt.Errorf("solver config: unknown backend %q (expected search or pb)", c.Backend)
	}
	return nil
}

// WithExclusive returns a copy using the given exclusive set. Actions named
// in the set are added to the recognized actions.
func (c SolverConfig) WithExclusive(exclusive []model.ActionType) SolverConfig {
	out := c
	out.Exclusive = append([]model.ActionType(nil), exclusive...)
	out.Actions = append([]model.ActionType(nil), c.Actions...)
	for _, a := range exclusive {
		found := false
		for _, b := range out.Actions {
			if a == b {
				found = true
				break
			}
		}
		if !found {
			out.Actions = append(out.Actions, a)
		}
	}
	return out
}
