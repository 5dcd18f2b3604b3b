package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHealthRequiresLoopbackAndAuth(t *testing.T) {
	h := New("secret", nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/health?token=secret")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestHealthNoAuthWhenTokenEmpty(t *testing.T) {
	h := New("", nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAcceptsJWTBearerWhenJWTModeEnabled(t *testing.T) {
	h := New("static-secret", nil).WithJWTVerifier(NewJWTVerifier("jwt-signing-key"))
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "editor-1"})
	signed, err := token.SignedString([]byte("jwt-signing-key"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthRejectsJWTSignedWithWrongKey(t *testing.T) {
	h := New("static-secret", nil).WithJWTVerifier(NewJWTVerifier("jwt-signing-key"))
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "editor-1"})
	signed, err := token.SignedString([]byte("wrong-key"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketRegisterFlowPromotesActiveVault(t *testing.T) {
	h := New("", nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")
	defer conn.Close()

	var connected map[string]any
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, "connected", connected["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "register",
		"payload": map[string]any{"vaultName": "my-vault", "vaultPath": "/vaults/x"},
	}))

	var registered map[string]any
	require.NoError(t, conn.ReadJSON(&registered))
	assert.Equal(t, "registered", registered["type"])
	assert.Equal(t, true, registered["success"])
	assert.Equal(t, "my-vault", registered["vaultId"])
	assert.Equal(t, true, registered["isActive"])
}

func TestWebSocketUnknownMessageTypeGetsErrorEnvelope(t *testing.T) {
	h := New("", nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")
	defer conn.Close()

	var connected map[string]any
	require.NoError(t, conn.ReadJSON(&connected))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "something_weird"}))

	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["type"])
}

func TestRequestFileOperationReturnsFalseWhenNoVaultConnected(t *testing.T) {
	h := New("", nil)
	_, ok := h.RequestFileOperation(context.Background(), "nonexistent", "read_note", nil, time.Second)
	assert.False(t, ok)
}

func TestRequestFileOperationRoundTrip(t *testing.T) {
	h := New("", nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")
	defer conn.Close()

	var connected map[string]any
	require.NoError(t, conn.ReadJSON(&connected))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "register",
		"payload": map[string]any{"vaultName": "v1"},
	}))
	var registered map[string]any
	require.NoError(t, conn.ReadJSON(&registered))

	go func() {
		var req map[string]any
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"id":      req["id"],
			"type":    "read_note_response",
			"success": true,
			"payload": map[string]any{"content": "hello"},
		})
	}()

	env, ok := h.RequestFileOperation(context.Background(), "v1", "read_note", map[string]any{"path": "a.md"}, 2*time.Second)
	require.True(t, ok)
	assert.True(t, env.Success)
	payload, isMap := env.Payload.(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, "hello", payload["content"])
}

func TestRequestFileOperationTimesOut(t *testing.T) {
	h := New("", nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")
	defer conn.Close()
	var connected map[string]any
	require.NoError(t, conn.ReadJSON(&connected))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "register",
		"payload": map[string]any{"vaultName": "v2"},
	}))
	var registered map[string]any
	require.NoError(t, conn.ReadJSON(&registered))

	env, ok := h.RequestFileOperation(context.Background(), "v2", "read_note", nil, 50*time.Millisecond)
	require.True(t, ok)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "timeout")
}

func TestDisconnectClearsActiveVaultAndCancelsPending(t *testing.T) {
	h := New("", nil)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")
	var connected map[string]any
	require.NoError(t, conn.ReadJSON(&connected))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "register",
		"payload": map[string]any{"vaultName": "v3"},
	}))
	var registered map[string]any
	require.NoError(t, conn.ReadJSON(&registered))

	resultCh := make(chan Envelope, 1)
	go func() {
		env, _ := h.RequestFileOperation(context.Background(), "v3", "read_note", nil, 2*time.Second)
		resultCh <- env
	}()

	time.Sleep(50 * time.Millisecond)
	conn.Close()

	select {
	case env := <-resultCh:
		assert.False(t, env.Success)
	case <-time.After(time.Second):
		t.Fatal("pending request was never canceled on disconnect")
	}

	time.Sleep(50 * time.Millisecond)
	health := h.Health()
	assert.Empty(t, health.ActiveVault)
}
