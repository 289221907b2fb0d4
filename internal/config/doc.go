// Package config defines the configuration structure for the extension
// handler orchestrator.
//
// Configuration is organized into logical sections (Server, Agent) and
// uses code generation via optgen to create functional option helpers.
//
// # Configuration Structure
//
//	Configuration
//	├── Server         - debug HTTP API settings
//	├── Agent          - reconciliation loop behavior
//	├── LogFormat      - logging format
//	└── LogLevel       - logging verbosity
//
// # Server Configuration
//
//	┌──────────────────┬─────────┬────────────────────────────────────────┐
//	│ Field            │ Default │ Description                            │
//	├──────────────────┼─────────┼────────────────────────────────────────┤
//	│ ServerMode       │ "dev"   │ Server mode: "prod" or "dev"           │
//	│ HTTPPort         │ 8000    │ HTTP server listen port                │
//	└──────────────────┴─────────┴────────────────────────────────────────┘
//
// # Agent Configuration
//
//	┌─────────────────────┬──────────┬──────────────────────────────────────┐
//	│ Field               │ Default  │ Description                          │
//	├─────────────────────┼──────────┼──────────────────────────────────────┤
//	│ LibraryRoot         │ ""       │ Handler state root (required)        │
//	│ PollInterval        │ 5s       │ Delay between reconciliation passes  │
//	│ PassDeadline        │ 90m      │ Per-pass cross-level wait budget     │
//	│ NumWorkers          │ 3        │ Scheduler worker pool size           │
//	│ DataFolder          │ ""       │ Pass-history DuckDB file location    │
//	│ StatusSnapshotPath  │ waagent_status.json path                        │
//	└─────────────────────┴──────────┴──────────────────────────────────────┘
//
// # Code Generation
//
// The package uses optgen to generate functional option helpers:
//
//	//go:generate go run github.com/ecordell/optgen -output zz_generated.configuration.go . Configuration Server Agent
//
// Generated helpers include:
//
//   - NewConfigurationWithOptions(...ConfigurationOption) - Create with options
//   - NewConfigurationWithOptionsAndDefaults(...ConfigurationOption) - Create with defaults + options
//   - WithServer(Server), WithAgent(Agent) - Set nested structs
//   - DebugMap() - Returns map for debug logging (respects debugmap tags)
//
// # Usage Example
//
// Create configuration with defaults and overrides:
//
//	cfg := config.NewConfigurationWithOptionsAndDefaults(
//	    config.WithAgent(config.Agent{
//	        LibraryRoot:  "/var/lib/waagent",
//	        PollInterval: 5 * time.Second,
//	    }),
//	    config.WithServer(config.Server{
//	        ServerMode: "prod",
//	        HTTPPort:   8080,
//	    }),
//	)
//
// Or create with individual options:
//
//	server := config.NewServerWithOptionsAndDefaults(
//	    config.WithHTTPPort(9000),
//	)
//
// # Debug Logging
//
// All fields are tagged with `debugmap:"visible"` allowing safe logging
// of configuration values via DebugMap():
//
//	log.Info("configuration loaded", zap.Any("config", cfg.DebugMap()))
package config
