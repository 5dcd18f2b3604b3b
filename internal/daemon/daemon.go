// Package daemon implements the long-lived ingestion child process: a
// line-framed JSON protocol over stdin/stdout, with sync/status/shutdown
// commands and stderr-only diagnostics.
package daemon

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vaultbridge/internal/bridgeerr"
	"github.com/vaultbridge/internal/config"
	"github.com/vaultbridge/internal/eventpub"
	"github.com/vaultbridge/internal/ingest"
	"github.com/vaultbridge/internal/jsonx"
	"github.com/vaultbridge/internal/schema"
)

// maxCommandLineBytes caps a single stdin line; a full BridgeConfig
// blob (API keys, folder mappings, notes list) can comfortably exceed
// bufio.Scanner's default 64 KiB token size.
const maxCommandLineBytes = 8 << 20

// GraphClientFactory builds a fresh GraphClient per sync command (the
// daemon never keeps a connection open between commands) and returns a
// close function run once the command finishes.
type GraphClientFactory interface {
	NewClient(ctx context.Context, cfg *config.Config) (ingest.GraphClient, func(context.Context) error, error)
}

// NoteReaderFactory builds the NoteReader a sync command's ingest.Service
// should read notes through, scoped to that command's config.
type NoteReaderFactory interface {
	NewReader(cfg *config.Config) ingest.NoteReader
}

// Daemon runs the command loop. One Daemon instance lives for the
// process's whole lifetime; graph clients and note readers are rebuilt
// per command since each sync command carries its own full config blob.
type Daemon struct {
	graphFactory GraphClientFactory
	noteFactory  NoteReaderFactory
	schemaReg    *schema.Registry
	logger       *zap.Logger
	publisher    eventpub.Publisher

	mu      sync.Mutex
	running bool
	ready   bool
}

// SetPublisher attaches an optional event publisher. Called only when
// NATS_URL was configured at startup; nil (the default) disables
// publishing entirely.
func (d *Daemon) SetPublisher(p eventpub.Publisher) {
	d.publisher = p
}

// New builds a Daemon. logger must write to stderr only; nothing this
// package logs may reach stdout, which is reserved strictly for the
// protocol's JSON lines.
func New(graphFactory GraphClientFactory, noteFactory NoteReaderFactory, schemaReg *schema.Registry, logger *zap.Logger) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{
		graphFactory: graphFactory,
		noteFactory:  noteFactory,
		schemaReg:    schemaReg,
		logger:       logger,
		running:      true,
	}
}

// Run emits the ready handshake on w, then processes one JSON command per
// line read from r until EOF, a "shutdown" command, or ctx is canceled.
// It never returns an error for a malformed command line; that becomes
// an error response line instead, per the JSON-only-on-stdout contract.
func (d *Daemon) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	if err := d.writeReady(w); err != nil {
		return err
	}

	decoder := jsonx.NewLineDecoder(r, maxCommandLineBytes)
	for {
		d.mu.Lock()
		running := d.running
		d.mu.Unlock()
		if !running {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var cmd map[string]any
		err := decoder.Next(&cmd)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if writeErr := writeLine(w, map[string]any{"status": "error", "message": fmt.Sprintf("invalid JSON: %v", err)}); writeErr != nil {
				return writeErr
			}
			continue
		}

		response := d.handleCommand(ctx, cmd)
		if err := writeLine(w, response); err != nil {
			return err
		}
	}
}

func (d *Daemon) writeReady(w io.Writer) error {
	d.mu.Lock()
	d.ready = true
	d.mu.Unlock()
	return writeLine(w, map[string]any{
		"status":     "ready",
		"bge_loaded": false,
		"timestamp":  float64(time.Now().Unix()),
	})
}

func writeLine(w io.Writer, v any) error {
	s, err := jsonx.MarshalToString(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

// handleCommand dispatches one decoded command and waits for every
// background task the command spawned to finish before returning, via
// a per-command context and an errgroup drain.
func (d *Daemon) handleCommand(ctx context.Context, cmd map[string]any) map[string]any {
	command, _ := cmd["command"].(string)

	cmdCtx, cancel := context.WithCancel(ctx)
	g, _ := errgroup.WithContext(cmdCtx)
	defer func() {
		cancel()
		if err := g.Wait(); err != nil {
			d.logger.Warn("background task cleanup failed", zap.Error(err))
		}
	}()

	switch command {
	case "sync":
		return d.handleSync(cmdCtx, g, cmd)
	case "status":
		return d.handleStatus()
	case "shutdown":
		return d.handleShutdown()
	default:
		return map[string]any{"status": "error", "message": fmt.Sprintf("unknown command: %s", command)}
	}
}

func (d *Daemon) handleStatus() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"status":     "success",
		"bge_loaded": false,
		"running":    d.running,
	}
}

func (d *Daemon) handleShutdown() map[string]any {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return map[string]any{"status": "success", "message": "daemon shutting down"}
}

func (d *Daemon) handleSync(ctx context.Context, g *errgroup.Group, cmd map[string]any) map[string]any {
	rawConfig, _ := cmd["config"].(map[string]any)
	configJSON, err := jsonx.MarshalToString(rawConfig)
	if err != nil {
		return map[string]any{"status": "error", "message": fmt.Sprintf("invalid configuration: %v", err)}
	}

	cfg, err := config.FromJSON([]byte(configJSON))
	if err != nil {
		return map[string]any{"status": "error", "message": fmt.Sprintf("invalid configuration: %v", err)}
	}
	if len(cfg.Notes) != 1 {
		return map[string]any{"status": "error", "message": fmt.Sprintf("expected exactly 1 note, got %d", len(cfg.Notes))}
	}

	graphClient, closeClient, err := d.graphFactory.NewClient(ctx, cfg)
	if err != nil {
		return map[string]any{"status": "error", "message": fmt.Sprintf("failed to initialize graph client: %v", err)}
	}
	defer func() {
		g.Go(func() error {
			if closeClient == nil {
				return nil
			}
			return closeClient(context.Background())
		})
	}()

	reader := d.noteFactory.NewReader(cfg)
	svc := ingest.New(cfg, reader, graphClient, d.schemaReg, d.logger)

	_, resultCh, err := svc.Submit(ctx, cfg.Notes[0])
	if err != nil {
		if be, ok := bridgeerr.As(err); ok {
			return map[string]any{"status": "error", "message": be.Message}
		}
		return map[string]any{"status": "error", "message": err.Error()}
	}

	select {
	case result := <-resultCh:
		d.publishCompleted(result)
		return result.Envelope()
	case <-ctx.Done():
		return map[string]any{"status": "error", "message": "sync canceled"}
	}
}

func (d *Daemon) publishCompleted(result ingest.Result) {
	if d.publisher == nil {
		return
	}
	event := eventpub.EpisodeCompletedEvent{
		Status:      result.Status,
		NotePath:    result.NotePath,
		Namespace:   result.Namespace,
		EpisodeUUID: result.EpisodeUUID,
		DurationMs:  int64(result.ProcessingDurationSeconds * 1000),
	}
	if err := d.publisher.PublishEpisodeCompleted(event); err != nil {
		d.logger.Warn("episode.completed publish failed", zap.Error(err))
	}
}
