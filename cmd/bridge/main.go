// Package main is the MCP bridge entrypoint: it elects whether this
// process hosts the vault registry or attaches to one already running,
// then serves the memory and vault tool set over stdio or HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vaultbridge/internal/config"
	"github.com/vaultbridge/internal/elector"
	"github.com/vaultbridge/internal/graphclient"
	"github.com/vaultbridge/internal/hub"
	"github.com/vaultbridge/internal/mcpbridge"
	"github.com/vaultbridge/internal/redislock"
	"github.com/vaultbridge/internal/rpcbridge"
	"github.com/vaultbridge/internal/vaultbackend"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"

	mode        = flag.String("mode", "stdio", "Transport mode: stdio or http")
	addr        = flag.String("addr", ":8081", "HTTP address (for http mode)")
	dgraphAddr  = flag.String("dgraph", "localhost:9080", "dgraph alpha gRPC address")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vaultbridge MCP server v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("vaultbridge MCP server starting",
		zap.String("version", version),
		zap.String("mode", *mode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	role, backend, status, cleanup, err := wireVault(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire vault backend", zap.Error(err))
	}
	defer cleanup()

	ready := mcpbridge.NewReadiness()
	graph, err := wireGraph(ctx, cfg, logger, ready, status)
	if err != nil {
		logger.Fatal("failed to wire graph client", zap.Error(err))
	}
	if graph != nil {
		defer graph.Close()
	}

	server := mcpbridge.BuildServer(mcpbridge.ServerConfig{
		Logger:  logger,
		Name:    "vaultbridge",
		Version: version,
	}, mcpbridge.ServerDeps{
		Config:  cfg,
		Graph:   graph,
		Querier: graph,
		Backend: backend,
		Ready:   ready,
		Status:  status,
	})

	logger.Info("role elected", zap.String("role", role.String()))

	var transport mcpbridge.Transport
	switch *mode {
	case "stdio":
		transport = mcpbridge.NewStdioTransport(os.Stdin, os.Stdout, logger)
	case "http":
		transport = mcpbridge.NewHTTPTransport(*addr, logger)
	default:
		logger.Fatal("unknown transport mode", zap.String("mode", *mode))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Serve(ctx, server)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.Error("transport error", zap.Error(err))
		}
	}

	logger.Info("vaultbridge MCP server stopped")
}

// loadConfig reads the JSON config blob from MCP_CONFIG_PATH, the
// convention every bridge component is seeded through.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("MCP_CONFIG_PATH")
	if path == "" {
		return nil, fmt.Errorf("MCP_CONFIG_PATH not set")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config at %s: %w", path, err)
	}
	cfg, err := config.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	if violations := cfg.Validate(); len(violations) > 0 {
		return nil, fmt.Errorf("invalid config: %v", violations)
	}
	return cfg, nil
}

// vaultStatus implements mcpbridge.StatusSource, tracking the elected
// role and whether the graph client has completed its initial connect.
type vaultStatus struct {
	role         elector.Role
	databaseKind string
	graphOK      atomic.Bool
}

func (s *vaultStatus) GraphitiStatus() string {
	if s.role == elector.RoleRPCClient {
		return "rpc-mode"
	}
	if s.graphOK.Load() {
		return "ok"
	}
	return "disconnected"
}

func (s *vaultStatus) ObsidianStatus() string {
	return "ok"
}

func (s *vaultStatus) DatabaseKind() string { return s.databaseKind }

// wireVault runs process election and builds the vault backend
// appropriate to the elected role: a Hub-backed registry when this
// process hosts it, or a loopback RPC client when another process
// already won the election.
func wireVault(ctx context.Context, cfg *config.Config, logger *zap.Logger) (elector.Role, vaultbackend.Backend, *vaultStatus, func(), error) {
	result, err := elector.Elect(ctx, cfg.WSPort, cfg.WSAuthToken, logger)
	if err != nil {
		return 0, nil, nil, func() {}, err
	}
	if result.Warning != "" {
		logger.Warn("election warning", zap.String("warning", result.Warning))
	}

	status := &vaultStatus{role: result.Role, databaseKind: cfg.DatabaseKind}

	acquireElectionCompanionLock(ctx, cfg, logger, result.Role)

	switch result.Role {
	case elector.RoleHost:
		h := hub.New(cfg.WSAuthToken, logger)
		rpcbridge.RegisterRoutes(h.Router(), h)

		srv := &http.Server{Handler: h.Handler()}
		go func() {
			if err := srv.Serve(result.Listener); err != nil && err != http.ErrServerClosed {
				logger.Error("hub listener stopped", zap.Error(err))
			}
		}()

		backend := vaultbackend.NewHubBackend(h, func() string { return h.Health().ActiveVault })
		cleanup := func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
		return result.Role, backend, status, cleanup, nil

	case elector.RoleRPCClient:
		baseURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.WSPort)
		remote, err := rpcbridge.Dial(ctx, baseURL, cfg.WSAuthToken)
		if err != nil {
			return 0, nil, nil, func() {}, err
		}
		backend := vaultbackend.NewRemoteBackend(remote, func() string { return remote.GetActiveVault(context.Background()) })
		return result.Role, backend, status, func() {}, nil

	default:
		return 0, nil, nil, func() {}, fmt.Errorf("unknown elected role %v", result.Role)
	}
}

// acquireElectionCompanionLock best-effort-acquires an optional
// Redis-backed side lock mirroring the elected role, purely additive
// hygiene for multi-host deployments sharing a Redis instance. Never
// consulted by, and never able to override, the primary loopback-bind
// election above.
func acquireElectionCompanionLock(ctx context.Context, cfg *config.Config, logger *zap.Logger, role elector.Role) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return
	}
	mgr := redislock.NewManager(addr, logger)
	key := fmt.Sprintf("election:%s:%d", role, cfg.WSPort)
	if _, err := mgr.AcquireElectionLock(ctx, key); err != nil {
		logger.Debug("redis election companion lock not acquired", zap.Error(err))
	}
}

// wireGraph connects to the graph store before the server starts
// accepting tool calls. ready is signalled immediately on success; it
// exists so memory tool handlers can fail fast with a clear message if
// invoked before this completes, rather than racing New's internal
// retry/backoff loop.
func wireGraph(ctx context.Context, cfg *config.Config, logger *zap.Logger, ready *mcpbridge.Readiness, status *vaultStatus) (*graphclient.Client, error) {
	addr := *dgraphAddr
	if cfg.DatabaseURL != "" {
		addr = cfg.DatabaseURL
	}

	client, err := graphclient.New(ctx, graphclient.Config{Address: addr, MaxRetries: 3}, logger)
	if err != nil {
		return nil, err
	}
	status.graphOK.Store(true)
	ready.SignalReady()
	return client, nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if *mode == "stdio" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
