package elector

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestElectBecomesHostWhenPortIsFree(t *testing.T) {
	port := freePort(t)
	result, err := Elect(context.Background(), port, "", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleHost, result.Role)
	require.NotNil(t, result.Listener)
	_ = result.Listener.Close()
}

func TestElectBecomesRPCClientWhenHealthyHostAlreadyListening(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	port := freePort(t)
	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	ln, err := net.Listen("tcp", srv.Addr)
	require.NoError(t, err)
	go srv.Serve(ln)
	defer srv.Close()

	time.Sleep(20 * time.Millisecond)

	result, err := Elect(context.Background(), port, "", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleRPCClient, result.Role)
	assert.Empty(t, result.Warning)
}

func TestElectReportsTokenMismatchWarningButStillAttaches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	port := freePort(t)
	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	ln, err := net.Listen("tcp", srv.Addr)
	require.NoError(t, err)
	go srv.Serve(ln)
	defer srv.Close()

	time.Sleep(20 * time.Millisecond)

	result, err := Elect(context.Background(), port, "some-token", nil)
	require.NoError(t, err)
	assert.Equal(t, RoleRPCClient, result.Role)
	assert.Equal(t, "token mismatch", result.Warning)
}
