package stubserver

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Connection struct {
	ConversationID string
	UserID         string
	Writer         Writer
}

// Hub tracks open push sockets keyed by conversation id.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func NewHub() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.ConversationID] == nil {
		h.connections[conn.ConversationID] = make(map[*Connection]struct{})
	}
	h.connections[conn.ConversationID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.ConversationID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.ConversationID)
	}
}

// BroadcastOthers pushes a frame to every subscriber of the
// conversation except the sender; the sender's durable copy is the REST
// response.
func (h *Hub) BroadcastOthers(conversationID, senderID string, message []byte) {
	h.mu.RLock()
	set := h.connections[conversationID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		if c.UserID == senderID {
			continue
		}
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}
