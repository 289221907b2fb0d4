// Package config defines the configuration structure for the extension
// handler orchestrator.
//
// Configuration is organized into logical sections (Server, Agent) and
// uses code generation via optgen to create functional option helpers,
// the same approach as the teacher's internal/config.
//
//go:generate go run github.com/ecordell/optgen -output zz_generated.configuration.go . Configuration Server Agent
package config

import (
	"time"

	"github.com/creasty/defaults"
)

// Configuration is the orchestrator's full runtime configuration, built
// from defaults, a config file, environment variables, and flags (in that
// precedence order, lowest to highest) via internal/config's viper/cobra
// wiring in cmd/agent.
type Configuration struct {
	Server    Server `debugmap:"visible"`
	Agent     Agent  `debugmap:"visible"`
	LogFormat string `debugmap:"visible" default:"console"`
	LogLevel  string `debugmap:"visible" default:"info"`
}

// Server holds the debug HTTP API's listen settings (§4.7 observability
// surface).
type Server struct {
	ServerMode string `debugmap:"visible" default:"dev"`
	HTTPPort   int    `debugmap:"visible" default:"8000"`
}

// Agent holds the reconciliation loop's behavior knobs.
type Agent struct {
	// LibraryRoot is the base directory handler state lives under (§3,
	// glossary "library"). Required; no sensible default.
	LibraryRoot string `debugmap:"visible"`

	// PollInterval is the delay between reconciliation passes (§5).
	PollInterval time.Duration `debugmap:"visible" default:"5s"`

	// PassDeadline bounds how long one reconciliation pass waits, measured
	// from pass start, for lower dependency levels to reach terminal
	// success before it abandons the remaining handlers.
	PassDeadline time.Duration `debugmap:"visible" default:"90m"`

	// NumWorkers sizes the scheduler pool used for telemetry flushes and
	// debug API reads; handlers themselves are always processed serially.
	NumWorkers int `debugmap:"visible" default:"3"`

	// DataFolder is where the pass-history DuckDB file lives. Empty means
	// an in-memory, non-durable store (tests, single-shot runs).
	DataFolder string `debugmap:"visible"`

	// StatusSnapshotPath is where the flattened aggregate status (§4.7,
	// waagent_status.json) is written on every pass.
	StatusSnapshotPath string `debugmap:"visible" default:"/var/lib/waagent/waagent_status.json"`
}

// LoadDefaults returns a Configuration populated with struct-tag defaults
// via creasty/defaults, the same mechanism the teacher used before
// layering viper-sourced overrides on top.
func LoadDefaults() (*Configuration, error) {
	cfg := &Configuration{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
