package hub

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vaultbridge/internal/jsonx"
)

func deadlineNow() time.Time {
	return time.Now().Add(time.Second)
}

// loopbackOnly rejects any request whose remote peer is not a local
// loopback address, regardless of what the listener itself is bound
// to — the first hop a request takes through this process.
func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// requireAuth enforces the shared bearer token from either the
// Authorization header or a token query parameter. An empty configured
// token disables auth entirely.
func (h *Hub) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !h.authorized(bearerToken(r)) {
			if isWebSocketUpgrade(r) {
				conn, err := h.upgrader.Upgrade(w, r, nil)
				if err == nil {
					closeMsg := websocket.FormatCloseMessage(4001, "unauthenticated")
					_ = conn.WriteControl(websocket.CloseMessage, closeMsg, deadlineNow())
					_ = conn.Close()
				}
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorized accepts either an exact match against the shared static
// token or, when JWT mode is enabled, any token that verifies against
// the configured secret.
func (h *Hub) authorized(token string) bool {
	if token == h.authToken {
		return true
	}
	if h.jwtVerifier == nil {
		return false
	}
	_, ok := h.jwtVerifier.Verify(token)
	return ok
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
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
