package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/mise/pkg/model"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if err := cfg.Solver.Validate(); err != nil {
		t.Errorf("default solver config invalid: %v", err)
	}
	if len(cfg.Solver.Exclusive) != 3 {
		t.Errorf("Exclusive = %v, want chop, fry, wash", cfg.Solver.Exclusive)
	}
}

func TestLoadServerConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mise.yaml")
	content := `
addr: ":9090"
log_format: json
solver:
  time_limit: 5s
  node_limit: 1000
  actions: [chop, fry, wash, steam, bake]
  exclusive: [chop, bake]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.LogFormat != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
	if cfg.Solver.TimeLimit != 5*time.Second || cfg.Solver.NodeLimit != 1000 {
		t.Errorf("solver budgets = %v / %d", cfg.Solver.TimeLimit, cfg.Solver.NodeLimit)
	}
	if len(cfg.Solver.Exclusive) != 2 || cfg.Solver.Exclusive[1] != "bake" {
		t.Errorf("Exclusive = %v", cfg.Solver.Exclusive)
	}
}

func TestLoadServerConfig_Env(t *testing.T) {
	t.Setenv("MISE_TIME_LIMIT", "250ms")
	t.Setenv("MISE_MAX_CONCURRENT_SOLVES", "9")

	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Solver.TimeLimit != 250*time.Millisecond {
		t.Errorf("TimeLimit = %v, want 250ms", cfg.Solver.TimeLimit)
	}
	if cfg.MaxConcurrentSolves != 9 {
		t.Errorf("MaxConcurrentSolves = %d, want 9", cfg.MaxConcurrentSolves)
	}
}

func TestLoadServerConfig_BadEnv(t *testing.T) {
	t.Setenv("MISE_NODE_LIMIT", "lots")
	if _, err := LoadServerConfig(""); err == nil {
		t.Error("expected error for non-numeric MISE_NODE_LIMIT")
	}
}

func TestSolverConfig_Validate(t *testing.T) {
	cfg := DefaultSolverConfig()
	cfg.Exclusive = append(cfg.Exclusive, "bake")
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unrecognized exclusive action")
	}

	cfg = DefaultSolverConfig()
	cfg.NodeLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative node limit")
	}
}

func TestSolverConfig_WithExclusive(t *testing.T) {
	base := DefaultSolverConfig()
	cfg := base.WithExclusive([]model.ActionType{model.ActionFry, "bake"})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Exclusive) != 2 {
		t.Errorf("Exclusive = %v", cfg.Exclusive)
	}
	if len(cfg.Actions) != len(base.Actions)+1 {
		t.Errorf("Actions = %v, want bake appended", cfg.Actions)
	}
	if len(base.Exclusive) != 3 {
		t.Error("WithExclusive mutated the receiver")
	}
}

func TestSolverConfig_RejectsUnderscoreActions(t *testing.T) {
	cfg := DefaultSolverConfig()
	cfg.Actions = append(cfg.Actions, "deep_fry")
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for an action containing '_'")
	}
}

func TestSolverConfig_HorizonAndBackend(t *testing.T) {
	cfg := DefaultSolverConfig()
	cfg.Horizon = cfg.MaxHorizon + 1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for a horizon override above max_horizon")
	}

	cfg = DefaultSolverConfig()
	cfg.Backend = "simplex"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for an unknown backend")
	}

	cfg.Backend = "pb"
	if err := cfg.Validate(); err != nil {
		t.Errorf("pb backend rejected: %v", err)
	}
}

func TestLoadServerConfig_MaxHorizonEnv(t *testing.T) {
	t.Setenv("MISE_MAX_HORIZON", "0")
	t.Setenv("MISE_BACKEND", "pb")

	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Solver.MaxHorizon != 0 || cfg.Solver.Backend != "pb" {
		t.Errorf("MaxHorizon/Backend = %d/%q, want 0/pb", cfg.Solver.MaxHorizon, cfg.Solver.Backend)
	}
}
