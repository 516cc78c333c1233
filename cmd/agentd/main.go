// Agentd is the task agent daemon. It runs plan/execute/reflect task
// executions, persists the resulting experiences, and serves the HTTP API
// used by agentctl.
//
// Configuration is loaded from ~/.config/agentd/config.yaml with AGENTD_*
// environment overrides. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	agentd
//
//	# Configure via environment
//	AGENTD_SERVER_PORT=9999 AGENTD_AGENT_MODE=cloud agentd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/assets"
	"github.com/fyrsmithlabs/agentd/internal/config"
	"github.com/fyrsmithlabs/agentd/internal/experience"
	"github.com/fyrsmithlabs/agentd/internal/http"
	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/internal/orchestrator"
	"github.com/fyrsmithlabs/agentd/internal/telemetry"
	"github.com/fyrsmithlabs/agentd/internal/vault"
	"github.com/fyrsmithlabs/agentd/pkg/providers"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/agentd/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  agentd           Start the agentd daemon\n")
			fmt.Fprintf(os.Stderr, "  agentd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("agentd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the daemon together and blocks until ctx is cancelled:
// configuration, logging, telemetry, the experience store, the credential
// vault, the asset manager, the orchestrator, and finally the HTTP server.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	zlog := logger.Underlying()
	zlog.Info("starting agentd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Agent.Mode))

	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Observability.EnableTelemetry
	if cfg.Observability.ServiceName != "" {
		telCfg.ServiceName = cfg.Observability.ServiceName
	}
	if cfg.Observability.OTLPEndpoint != "" {
		telCfg.Endpoint = cfg.Observability.OTLPEndpoint
	}
	telCfg.ServiceVersion = version

	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			zlog.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()
	if tel.Degraded() {
		zlog.Warn("telemetry running degraded; spans and metrics may be dropped")
	}

	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return fmt.Errorf("preparing config directory: %w", err)
	}

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = filepath.Join(configDir, "agentd.db")
	}
	store, err := experience.NewSQLiteStore(storePath, cfg.Store.MaxExperiences, zlog.Named("store"))
	if err != nil {
		return fmt.Errorf("opening experience store: %w", err)
	}
	defer func() { _ = store.Close() }()
	store.Initialize(ctx)

	v, err := vault.New(filepath.Join(configDir, "credentials.json"), zlog.Named("vault"))
	if err != nil {
		return fmt.Errorf("opening credential vault: %w", err)
	}

	assetsDir := cfg.Assets.Dir
	if assetsDir == "" {
		assetsDir = filepath.Join(configDir, "models")
	}
	am, err := assets.NewManager(store.DB(), assetsDir, cfg.Assets.MinSizeBytes, zlog.Named("assets"))
	if err != nil {
		return fmt.Errorf("initializing asset manager: %w", err)
	}

	exec := orchestrator.NewExecutor(store, v, orchestratorConfig(cfg), zlog.Named("orchestrator"))

	srv, err := http.NewServer(exec, store, v, am, zlog.Named("http"), &http.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	zlog.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"),
		zap.String("store_path", storePath))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	opts := make(map[string]providers.Options, len(cfg.Agent.Providers))
	for name, pc := range cfg.Agent.Providers {
		opts[name] = providers.Options{
			BaseURL:   pc.BaseURL,
			MaxTokens: pc.MaxTokens,
		}
	}
	return orchestrator.Config{
		Mode:           experience.Mode(cfg.Agent.Mode),
		Provider:       cfg.Agent.Provider,
		Model:          cfg.Agent.Model,
		RequestTimeout: cfg.Agent.RequestTimeout.Duration(),
		Providers:      opts,
	}
}
