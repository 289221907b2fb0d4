package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubev2v/guest-extension-agent/internal/cgroups"
	"github.com/kubev2v/guest-extension-agent/internal/config"
	"github.com/kubev2v/guest-extension-agent/internal/handlers"
	"github.com/kubev2v/guest-extension-agent/internal/orchestrator"
	"github.com/kubev2v/guest-extension-agent/internal/protocol"
	"github.com/kubev2v/guest-extension-agent/internal/server"
	"github.com/kubev2v/guest-extension-agent/internal/services"
	"github.com/kubev2v/guest-extension-agent/internal/state"
	"github.com/kubev2v/guest-extension-agent/internal/store"
	"github.com/kubev2v/guest-extension-agent/internal/store/migrations"
	"github.com/kubev2v/guest-extension-agent/internal/telemetry"
	"github.com/kubev2v/guest-extension-agent/pkg/scheduler"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation loop and the debug API",
		RunE:  runServe,
	}

	flags := cmd.Flags()
	flags.String("library-root", "", "base directory extension handler state lives under (required)")
	flags.String("ext-log-root", "/var/log/azure/Microsoft.Extension", "base directory extension handler logs are written under")
	flags.String("protocol-endpoint", "http://168.63.129.16", "base URL of the host protocol endpoint")
	flags.Duration("poll-interval", orchestrator.PollInterval, "delay between reconciliation passes")
	flags.Duration("pass-deadline", orchestrator.PassDeadline, "per-pass cross-dependency-level wait budget")
	flags.Int("num-workers", 3, "scheduler worker pool size for telemetry and debug API dispatch")
	flags.String("data-folder", "", "path to the pass-history DuckDB file (empty: in-memory, non-durable)")
	flags.Bool("extensions-enabled", true, "master switch for extension handler processing")
	flags.Bool("overprovisioning-enabled", true, "honor GetArtifactsProfile OnHold during overprovisioned boots")
	flags.Int("http-port", 8000, "debug API listen port")
	flags.String("server-mode", "dev", "debug API server mode: dev or prod")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	_ = viper.BindPFlags(flags)

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	log := logger.Sugar().Named("agent")

	libRoot := viper.GetString("library-root")
	if libRoot == "" {
		return fmt.Errorf("--library-root is required")
	}

	defaultCfg, err := config.LoadDefaults()
	if err != nil {
		return fmt.Errorf("load default configuration: %w", err)
	}
	cfg := config.NewConfigurationWithOptionsAndDefaults(
		defaultCfg.ToOption(),
		config.WithAgent(config.Agent{
			LibraryRoot:        libRoot,
			PollInterval:       viper.GetDuration("poll-interval"),
			PassDeadline:       viper.GetDuration("pass-deadline"),
			NumWorkers:         viper.GetInt("num-workers"),
			DataFolder:         viper.GetString("data-folder"),
			StatusSnapshotPath: defaultCfg.Agent.StatusSnapshotPath,
		}),
		config.WithServer(config.Server{
			ServerMode: viper.GetString("server-mode"),
			HTTPPort:   viper.GetInt("http-port"),
		}),
	)
	log.Infow("starting", "config", cfg.DebugMap())

	dbPath := cfg.Agent.DataFolder
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := store.NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	st := store.NewStore(db)

	// Legacy handler_state/ layout migration (§4.8) runs once, before the
	// first reconciliation pass touches any handler directory.
	state.MigrateLegacy(cfg.Agent.LibraryRoot)

	sched := scheduler.NewScheduler(cfg.Agent.NumWorkers)
	defer sched.Close()

	sink := telemetry.NewZapSink(sched)
	executor := cgroups.New()
	client := protocol.NewHTTPClient(viper.GetString("protocol-endpoint"), "", http.DefaultClient, true)

	orch := orchestrator.New(orchestrator.Config{
		LibRoot:                 cfg.Agent.LibraryRoot,
		ExtLogRoot:              viper.GetString("ext-log-root"),
		ExtensionsEnabled:       viper.GetBool("extensions-enabled"),
		OverprovisioningEnabled: viper.GetBool("overprovisioning-enabled"),
		AgentName:               "guest-extension-agent",
		RunningVersion:          version,
		GoalStateAgentVersion:   version,
		PassDeadline:            cfg.Agent.PassDeadline,
		StatusSnapshotPath:      cfg.Agent.StatusSnapshotPath,
	}, client, executor, sink, st.PassHistory())

	statusSrv := services.NewStatusService(cfg.Agent.StatusSnapshotPath, st.PassHistory(), sched)
	h := handlers.NewHandler(statusSrv)
	srv := server.NewServer(server.Config{HTTPPort: cfg.Server.HTTPPort, Mode: cfg.Server.ServerMode}, func(router *gin.RouterGroup) {
		handlers.Register(router, h)
	})

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(sigCtx) }()

	pollInterval := cfg.Agent.PollInterval
	if pollInterval <= 0 {
		pollInterval = orchestrator.PollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCtx.Done():
			log.Info("shutting down")
			return <-errCh
		case err := <-errCh:
			return err
		case <-ticker.C:
			if err := orch.Run(sigCtx); err != nil {
				log.Warnw("reconciliation pass failed", "error", err)
			}
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

const version = "0.1.0"
