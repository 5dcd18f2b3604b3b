// Package elector decides, once per process lifetime, whether this
// process becomes the host that owns the vault registry and graph
// client or a lightweight RPC client attached to an already-running
// host. The decision is made once at startup and never revisited.
package elector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vaultbridge/internal/jsonx"
)

// Role is the outcome of Elect: either this process owns the registry
// (RoleHost) or it defers to one that already does (RoleRPCClient).
type Role int

const (
	RoleHost Role = iota
	RoleRPCClient
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "rpc_client"
}

const probeTimeout = 200 * time.Millisecond

// Result reports the elected role plus, for RoleHost, the listener
// already bound on the target port (reused rather than reopened so
// there is no gap between the bind-probe and the hub actually serving
// on it).
type Result struct {
	Role     Role
	Listener net.Listener // non-nil only when Role == RoleHost
	Warning  string        // e.g. "token mismatch" when a 401 was observed
}

// Elect runs the probe/bind/re-probe sequence against 127.0.0.1:port.
func Elect(ctx context.Context, port int, authToken string, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if reachable, warning := probeHealth(ctx, port, authToken); reachable {
		logger.Info("existing MCP host detected, attaching as RPC client", zap.Int("port", port))
		return Result{Role: RoleRPCClient, Warning: warning}, nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err == nil {
		logger.Info("no existing host detected, becoming host", zap.Int("port", port))
		return Result{Role: RoleHost, Listener: listener}, nil
	}

	if !isAddrInUse(err) {
		return Result{}, fmt.Errorf("bind 127.0.0.1:%d: %w", port, err)
	}

	// Lost the race: something started listening between our probe and
	// our bind attempt. Re-probe once before giving up.
	if reachable, warning := probeHealth(ctx, port, authToken); reachable {
		logger.Info("port taken by a racing host, attaching as RPC client", zap.Int("port", port))
		return Result{Role: RoleRPCClient, Warning: warning}, nil
	}

	return Result{}, fmt.Errorf("port conflict, no accessible server on 127.0.0.1:%d", port)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// probeHealth reports whether a host is already listening and healthy.
// A 401 is still treated as "reachable": attach as an RPC client even
// on token mismatch, just with a warning surfaced.
func probeHealth(ctx context.Context, port int, authToken string) (reachable bool, warning string) {
	reqCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false, ""
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return false, ""
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body map[string]any
		_ = jsonx.NewDecoder(resp.Body).Decode(&body)
		return true, ""
	case http.StatusUnauthorized:
		return true, "token mismatch"
	default:
		return false, ""
	}
}
