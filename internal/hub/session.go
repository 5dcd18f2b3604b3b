package hub

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/valyala/bytebufferpool"

	"github.com/vaultbridge/internal/jsonx"
)

// clientSession wraps one registered editor's WebSocket connection.
// gorilla/websocket requires at most one concurrent writer per
// connection, so every outbound send goes through writeMu.
type clientSession struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// writeJSON marshals v into a pooled buffer and writes it as a single
// text frame. Marshal failures are dropped rather than propagated: an
// unsendable outbound message must never take down the read loop.
func (s *clientSession) writeJSON(v any) {
	encoded, err := jsonx.Marshal(v)
	if err != nil {
		return
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.Write(encoded)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}
