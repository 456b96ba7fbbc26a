package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"channelchat/internal/models"
)

// wsTransport adapts a gorilla connection to the hub's Transport. The write
// mutex serializes broadcasts and direct sends over one connection.
type wsTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(event models.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(event)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
