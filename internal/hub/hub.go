// Package hub implements the loopback-only HTTP+WebSocket vault
// registry: the host side of the editor bridge. It tracks connected
// editor sessions, promotes an active vault, and correlates outbound
// requests with the client's eventual response.
package hub

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Envelope is the uniform result shape for both the WebSocket
// request/response cycle and the HTTP RPC bridge built on top of it.
type Envelope struct {
	Success   bool   `json:"success"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type pendingRequest struct {
	resultCh chan Envelope
}

// Hub owns every registered WebSocket session and the pending request
// index used to correlate a host-initiated request with the editor's
// eventual reply.
type Hub struct {
	authToken   string
	jwtVerifier *JWTVerifier
	logger      *zap.Logger
	upgrader    websocket.Upgrader
	router      *mux.Router

	mu          sync.Mutex
	clients     map[string]*clientSession
	clientVault map[string]string // client_id -> vault_id
	vaultClient map[string]string // vault_id -> client_id
	activeVault string

	// pending is indexed by owning client id first so a disconnect only
	// ever cancels that client's own in-flight requests, never another
	// client's — the websocket server this is grounded on cancels every
	// pending request on any disconnect, which this hub deliberately
	// does not reproduce.
	pending map[string]map[string]*pendingRequest
}

// New builds a Hub. authToken == "" disables auth entirely, matching
// the "no auth enforced when configured token is empty" contract.
func New(authToken string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		authToken:   authToken,
		logger:      logger,
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:     map[string]*clientSession{},
		clientVault: map[string]string{},
		vaultClient: map[string]string{},
		pending:     map[string]map[string]*pendingRequest{},
	}
	h.router = mux.NewRouter()
	h.setupRoutes()
	return h
}

// Router returns the hub's mux.Router so sibling components (the RPC
// bridge) can register additional routes on the same listener.
func (h *Hub) Router() *mux.Router { return h.router }

// Handler wraps the router with panic recovery so a single malformed
// request can never take the whole loopback listener down.
func (h *Hub) Handler() http.Handler {
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h.router)
}

func (h *Hub) setupRoutes() {
	h.router.Use(loopbackOnly)
	h.router.Use(h.requireAuth)

	h.router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	h.router.HandleFunc("/ws", h.handleWebSocket).Methods(http.MethodGet)
	h.router.HandleFunc("/", h.handleWebSocket).Methods(http.MethodGet)
}

// HealthInfo is the /health response shape.
type HealthInfo struct {
	Status           string   `json:"status"`
	Clients          int      `json:"clients"`
	ClientIDs        []string `json:"clientIds"`
	ConnectedVaults  []string `json:"connectedVaults"`
	ActiveVault      string   `json:"activeVault,omitempty"`
	Timestamp        float64  `json:"timestamp"`
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Health())
}

// Health snapshots the current registry state, used by both /health and
// the RPC client adapter's vault-enumeration methods.
func (h *Hub) Health() HealthInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vaults := make([]string, 0, len(h.vaultClient))
	for v := range h.vaultClient {
		vaults = append(vaults, v)
	}
	sort.Strings(vaults)

	return HealthInfo{
		Status:          "healthy",
		Clients:         len(h.clients),
		ClientIDs:       ids,
		ConnectedVaults: vaults,
		ActiveVault:     h.activeVault,
		Timestamp:       float64(time.Now().Unix()),
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.NewString()
	session := &clientSession{id: clientID, conn: conn}

	h.mu.Lock()
	h.clients[clientID] = session
	h.pending[clientID] = map[string]*pendingRequest{}
	h.mu.Unlock()

	h.logger.Info("vault session connected", zap.String("client_id", clientID))

	session.writeJSON(map[string]any{
		"type":      "connected",
		"clientId":  clientID,
		"timestamp": float64(time.Now().Unix()),
	})

	h.readLoop(session)
}

func (h *Hub) readLoop(session *clientSession) {
	defer h.disconnect(session.id)

	for {
		var msg map[string]any
		if err := session.conn.ReadJSON(&msg); err != nil {
			return
		}
		h.handleMessage(session, msg)
	}
}

func (h *Hub) handleMessage(session *clientSession, msg map[string]any) {
	msgType, _ := msg["type"].(string)

	if msgType == "register" {
		h.handleRegister(session, msg)
		return
	}

	if requestID, ok := msg["id"].(string); ok && requestID != "" {
		if h.resolvePending(session.id, requestID, msg) {
			return
		}
	}

	session.writeJSON(map[string]any{
		"type":  "error",
		"error": "unknown message type: " + msgType,
	})
}

func (h *Hub) handleRegister(session *clientSession, msg map[string]any) {
	payload, _ := msg["payload"].(map[string]any)
	vaultName, _ := payload["vaultName"].(string)

	vaultID := vaultName
	if vaultID == "" {
		vaultID = "vault_" + session.id
	}

	h.mu.Lock()
	h.clientVault[session.id] = vaultID
	h.vaultClient[vaultID] = session.id
	isActive := h.activeVault == vaultID
	if h.activeVault == "" {
		h.activeVault = vaultID
		isActive = true
	}
	h.mu.Unlock()

	session.writeJSON(map[string]any{
		"type":     "registered",
		"success":  true,
		"vaultId":  vaultID,
		"isActive": isActive,
	})
}

// resolvePending resolves the pending request requestID owned by
// clientID with msg rendered as an Envelope, reporting whether a
// pending request actually matched.
func (h *Hub) resolvePending(clientID, requestID string, msg map[string]any) bool {
	h.mu.Lock()
	byClient, ok := h.pending[clientID]
	var pr *pendingRequest
	if ok {
		pr, ok = byClient[requestID]
	}
	if ok {
		delete(byClient, requestID)
	}
	h.mu.Unlock()

	if !ok || pr == nil {
		return false
	}

	env := Envelope{RequestID: requestID}
	if success, ok := msg["success"].(bool); ok {
		env.Success = success
	}
	env.Payload = msg["payload"]
	if errStr, ok := msg["error"].(string); ok {
		env.Error = errStr
	}
	env.Timestamp = int64(time.Now().Unix())

	select {
	case pr.resultCh <- env:
	default:
	}
	return true
}

func (h *Hub) disconnect(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if vaultID, ok := h.clientVault[clientID]; ok {
		delete(h.vaultClient, vaultID)
		delete(h.clientVault, clientID)
		if h.activeVault == vaultID {
			h.activeVault = ""
			for remainingVault := range h.vaultClient {
				h.activeVault = remainingVault
				break
			}
		}
	}

	for requestID, pr := range h.pending[clientID] {
		select {
		case pr.resultCh <- Envelope{Success: false, Error: "client disconnected", RequestID: requestID}:
		default:
		}
	}
	delete(h.pending, clientID)
	delete(h.clients, clientID)

	h.logger.Info("vault session disconnected", zap.String("client_id", clientID))
}

// RequestFileOperation sends {id, type: operation, payload: params} to
// the socket registered under vaultID and blocks for its reply up to
// timeout. Returns (envelope, true) on a normal reply, or
// (zero, false) when no vault with that id is connected.
func (h *Hub) RequestFileOperation(ctx context.Context, vaultID, operation string, params any, timeout time.Duration) (Envelope, bool) {
	h.mu.Lock()
	clientID, ok := h.vaultClient[vaultID]
	var session *clientSession
	if ok {
		session, ok = h.clients[clientID]
	}
	h.mu.Unlock()
	if !ok || session == nil {
		return Envelope{}, false
	}

	requestID := uuid.NewString()
	pr := &pendingRequest{resultCh: make(chan Envelope, 1)}

	h.mu.Lock()
	if h.pending[clientID] == nil {
		h.pending[clientID] = map[string]*pendingRequest{}
	}
	h.pending[clientID][requestID] = pr
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if byClient, ok := h.pending[clientID]; ok {
			delete(byClient, requestID)
		}
		h.mu.Unlock()
	}()

	session.writeJSON(map[string]any{
		"id":      requestID,
		"type":    operation,
		"payload": params,
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env := <-pr.resultCh:
		return env, true
	case <-timer.C:
		return Envelope{Success: false, Error: fmt.Sprintf("Request timeout after %gs", timeout.Seconds()), RequestID: requestID}, true
	case <-ctx.Done():
		return Envelope{Success: false, Error: "request canceled", RequestID: requestID}, true
	}
}
