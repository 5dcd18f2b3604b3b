package rpcbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vaultbridge/internal/hub"
	"github.com/vaultbridge/internal/jsonx"
)

// RemoteRPC is an HTTP client adapter that mirrors Hub's
// RequestFileOperation/Health surface, letting a process that lost
// elector priority reach the elected process's vault registry over
// loopback HTTP instead of owning a WebSocket hub itself.
type RemoteRPC struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewRemoteRPC builds a RemoteRPC bound to baseURL (e.g. "http://127.0.0.1:8765").
func NewRemoteRPC(baseURL, authToken string) *RemoteRPC {
	return &RemoteRPC{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		authToken: authToken,
		client:    &http.Client{Timeout: 35 * time.Second},
	}
}

// Dial validates the remote process is reachable by probing /health,
// matching the original bridge's connect-and-verify constructor.
func Dial(ctx context.Context, baseURL, authToken string) (*RemoteRPC, error) {
	r := NewRemoteRPC(baseURL, authToken)
	if _, ok := r.health(ctx); !ok {
		return nil, fmt.Errorf("cannot connect to MCP server at %s", r.baseURL)
	}
	return r, nil
}

// RequestFileOperation forwards operation/params to the remote
// process's POST /rpc, translating transport and status-code failures
// into the same Envelope shape a local Hub would have returned.
func (r *RemoteRPC) RequestFileOperation(ctx context.Context, vaultID, operation string, params any, timeout time.Duration) (hub.Envelope, bool) {
	body, err := jsonx.Marshal(map[string]any{
		"operation": operation,
		"vaultId":   vaultID,
		"params":    params,
		"timeoutMs": timeout.Milliseconds(),
	})
	if err != nil {
		return hub.Envelope{Success: false, Error: err.Error()}, true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return hub.Envelope{Success: false, Error: err.Error()}, true
	}
	req.Header.Set("Content-Type", "application/json")
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if isConnectionRefused(err) {
			return hub.Envelope{Success: false, Error: "Connection refused - no MCP server running"}, true
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return hub.Envelope{Success: false, Error: fmt.Sprintf("HTTP timeout after %gs", timeout.Seconds())}, true
		}
		return hub.Envelope{Success: false, Error: err.Error()}, true
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return hub.Envelope{Success: false, Error: "Authentication failed - token mismatch"}, true
	case http.StatusNotFound:
		return hub.Envelope{}, false
	case http.StatusGatewayTimeout:
		return hub.Envelope{Success: false, Error: fmt.Sprintf("Request timeout after %gs", timeout.Seconds())}, true
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return hub.Envelope{Success: false, Error: err.Error()}, true
	}

	if resp.StatusCode != http.StatusOK {
		return hub.Envelope{Success: false, Error: fmt.Sprintf("RPC failed with status %d", resp.StatusCode)}, true
	}

	var decoded struct {
		Success   bool   `json:"success"`
		Result    any    `json:"result"`
		Error     string `json:"error"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := jsonx.Unmarshal(payload, &decoded); err != nil {
		return hub.Envelope{Success: false, Error: err.Error()}, true
	}

	return hub.Envelope{
		Success:   decoded.Success,
		Payload:   decoded.Result,
		Error:     decoded.Error,
		Timestamp: decoded.Timestamp,
	}, true
}

// GetConnectedVaults lists every vault id currently registered with the
// remote process.
func (r *RemoteRPC) GetConnectedVaults(ctx context.Context) []string {
	info, ok := r.health(ctx)
	if !ok {
		return nil
	}
	return info.ConnectedVaults
}

// GetActiveVault returns the remote process's currently promoted vault,
// if any.
func (r *RemoteRPC) GetActiveVault(ctx context.Context) string {
	info, ok := r.health(ctx)
	if !ok {
		return ""
	}
	return info.ActiveVault
}

// GetAllVaultInfo reports isActive per connected vault. /health does
// not expose any richer per-vault detail, so this is intentionally
// the same simplified shape the HTTP-only bridge it is grounded on
// produces.
func (r *RemoteRPC) GetAllVaultInfo(ctx context.Context) map[string]map[string]any {
	info, ok := r.health(ctx)
	if !ok {
		return map[string]map[string]any{}
	}
	result := make(map[string]map[string]any, len(info.ConnectedVaults))
	for _, vaultID := range info.ConnectedVaults {
		result[vaultID] = map[string]any{
			"vaultId":  vaultID,
			"isActive": vaultID == info.ActiveVault,
		}
	}
	return result
}

func (r *RemoteRPC) health(ctx context.Context) (hub.HealthInfo, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return hub.HealthInfo{}, false
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return hub.HealthInfo{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return hub.HealthInfo{}, false
	}

	var info hub.HealthInfo
	if err := jsonx.NewDecoder(resp.Body).Decode(&info); err != nil {
		return hub.HealthInfo{}, false
	}
	return info, true
}

func isConnectionRefused(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "connection refused")
	}
	return strings.Contains(err.Error(), "connection refused")
}
