// Package main is the long-lived ingestion daemon entrypoint: a
// subprocess spoken to over stdin/stdout line-framed JSON, with every
// diagnostic routed to stderr so stdout stays reserved for the protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vaultbridge/internal/config"
	"github.com/vaultbridge/internal/daemon"
	"github.com/vaultbridge/internal/eventpub"
	"github.com/vaultbridge/internal/fsnotes"
	"github.com/vaultbridge/internal/graphclient"
	"github.com/vaultbridge/internal/ingest"
	"github.com/vaultbridge/internal/schema"
)

var (
	dgraphAddr  = flag.String("dgraph", "localhost:9080", "dgraph alpha gRPC address")
	logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "show version and exit")
)

const version = "0.1.0"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vaultbridge ingestd v%s\n", version)
		os.Exit(0)
	}

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schemaReg := schema.NewRegistry(0)
	d := daemon.New(&dgraphClientFactory{addr: *dgraphAddr, logger: logger}, &fsNoteReaderFactory{}, schemaReg, logger)

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		pub, err := eventpub.Connect(natsURL, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, episode.completed events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			d.SetPublisher(pub)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.Error("daemon loop error", zap.Error(err))
		}
	}

	logger.Info("ingestd stopped")
}

type dgraphClientFactory struct {
	addr   string
	logger *zap.Logger
}

func (f *dgraphClientFactory) NewClient(ctx context.Context, cfg *config.Config) (ingest.GraphClient, func(context.Context) error, error) {
	addr := f.addr
	if cfg.DatabaseURL != "" {
		if stripped := stripScheme(cfg.DatabaseURL); stripped != "" {
			addr = stripped
		}
	}

	client, err := graphclient.New(ctx, graphclient.Config{Address: addr, MaxRetries: 3}, f.logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func(context.Context) error { return client.Close() }, nil
}

func stripScheme(url string) string {
	if idx := strings.Index(url, "://"); idx >= 0 {
		return url[idx+3:]
	}
	return url
}

type fsNoteReaderFactory struct{}

func (fsNoteReaderFactory) NewReader(cfg *config.Config) ingest.NoteReader {
	return fsnotes.NewReader(cfg.VaultPath)
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

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
