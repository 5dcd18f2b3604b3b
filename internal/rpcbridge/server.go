// Package rpcbridge exposes the vault registry's request/response cycle
// over plain HTTP so non-host processes (a second MCP instance that
// lost process election) can still reach a connected editor without a
// WebSocket connection of their own.
package rpcbridge

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaultbridge/internal/hub"
	"github.com/vaultbridge/internal/jsonx"
)

const (
	maxRPCBodyBytes   = 2 << 20 // 2 MiB
	defaultRPCTimeout = 20 * time.Second
	maxRPCTimeout     = 30 * time.Second
)

type rpcRequest struct {
	Operation string `json:"operation"`
	VaultID   string `json:"vaultId"`
	Params    any    `json:"params"`
	TimeoutMs int64  `json:"timeoutMs"`
}

// RegisterRoutes adds POST /rpc to router, dispatching through h's
// request/response correlation. It is registered on the same router the
// hub itself serves /health and /ws from, so auth and loopback-only
// middleware installed there apply here too.
func RegisterRoutes(router *mux.Router, h *hub.Hub) {
	router.HandleFunc("/rpc", handler(h)).Methods(http.MethodPost)
}

func handler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "Payload too large"})
			return
		}

		var req rpcRequest
		if err := jsonx.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
			return
		}
		if req.Operation == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing operation"})
			return
		}

		timeout := defaultRPCTimeout
		if req.TimeoutMs > 0 {
			timeout = time.Duration(req.TimeoutMs) * time.Millisecond
		}
		if timeout > maxRPCTimeout {
			timeout = maxRPCTimeout
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout+time.Second)
		defer cancel()

		env, ok := h.RequestFileOperation(ctx, req.VaultID, req.Operation, req.Params, timeout)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error":   "No connected vault found: " + req.VaultID,
			})
			return
		}
		if !env.Success && isTimeoutError(env.Error) {
			writeJSON(w, http.StatusGatewayTimeout, map[string]any{
				"success": false,
				"error":   "Request timeout",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":   env.Success,
			"result":    env.Payload,
			"error":     nullableString(env.Error),
			"timestamp": env.Timestamp,
		})
	}
}

func isTimeoutError(errMsg string) bool {
	return strings.Contains(errMsg, "timeout")
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	encoded, err := jsonx.Marshal(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(encoded)
}
