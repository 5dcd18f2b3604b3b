package mcpbridge

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vaultbridge/internal/jsonx"
)

// Transport serves a RequestHandler over some wire.
type Transport interface {
	Serve(ctx context.Context, handler RequestHandler) error
}

// RequestHandler handles one decoded JSON-RPC request.
type RequestHandler interface {
	HandleRequest(ctx context.Context, req Request) Response
}

// StdioTransport line-frames JSON-RPC requests/responses over the
// process's standard streams, the transport every MCP desktop client
// speaks.
type StdioTransport struct {
	reader *bufio.Reader
	writer io.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStdioTransport builds a StdioTransport reading r and writing w.
func NewStdioTransport(r io.Reader, w io.Writer, logger *zap.Logger) *StdioTransport {
	return &StdioTransport{reader: bufio.NewReader(r), writer: w, logger: logger}
}

// Serve decodes one JSON-RPC request per line until EOF or ctx is done.
func (t *StdioTransport) Serve(ctx context.Context, handler RequestHandler) error {
	// 16 MiB per line: one tool call can carry a whole note's content.
	decoder := jsonx.NewLineDecoder(t.reader, 16<<20)

	t.logger.Info("mcp stdio transport starting")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("mcp stdio transport shutting down")
			return ctx.Err()
		default:
		}

		var req Request
		if err := decoder.Next(&req); err != nil {
			if err == io.EOF {
				t.logger.Info("eof received, shutting down")
				return nil
			}
			t.logger.Debug("failed to decode request, skipping", zap.Error(err))
			continue
		}

		resp := handler.HandleRequest(ctx, req)

		t.mu.Lock()
		encoded, err := jsonx.Marshal(resp)
		if err == nil {
			_, err = t.writer.Write(append(encoded, '\n'))
		}
		t.mu.Unlock()
		if err != nil {
			t.logger.Error("failed to write response", zap.Error(err))
			return err
		}
	}
}

// HTTPTransport exposes the same request handler over a single
// POST /mcp endpoint, for clients that speak MCP over HTTP rather than
// stdio.
type HTTPTransport struct {
	addr   string
	server *http.Server
	logger *zap.Logger
}

// NewHTTPTransport builds an HTTPTransport bound to addr.
func NewHTTPTransport(addr string, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{addr: addr, logger: logger}
}

// Serve starts the HTTP listener and blocks until ctx is done.
func (t *HTTPTransport) Serve(ctx context.Context, handler RequestHandler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req Request
		if err := jsonx.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		resp := handler.HandleRequest(r.Context(), req)
		encoded, err := jsonx.Marshal(resp)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(encoded)
	})

	t.server = &http.Server{Addr: t.addr, Handler: mux}

	t.logger.Info("mcp http transport starting", zap.String("addr", t.addr))

	errCh := make(chan error, 1)
	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("mcp http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
