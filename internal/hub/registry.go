package hub

import (
	"encoding/json"

	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/metrics"
	pkglog "github.com/weiawesome/amen-live/pkg/log"
)

// Registry holds every registered connection and implements the fan-out
// primitives. It is not safe for concurrent use: inside a running Hub only
// the loop goroutine touches it.
type Registry struct {
	clients map[string]*Client
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		metrics: m,
	}
}

// Add registers c. A client already registered under the same id is replaced.
func (r *Registry) Add(c *Client) {
	r.clients[c.ID] = c
	r.metrics.ConnectionOpened()
}

// Remove forgets c and closes its send channel. It reports whether c was
// registered.
func (r *Registry) Remove(c *Client) bool {
	if !r.IsRegistered(c) {
		return false
	}
	delete(r.clients, c.ID)
	if !c.sendClosed {
		c.sendClosed = true
		close(c.Send)
	}
	r.metrics.ConnectionClosed()
	return true
}

// Client looks up a registered connection by id.
func (r *Registry) Client(id string) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// IsRegistered reports whether c itself (not just its id) is registered.
func (r *Registry) IsRegistered(c *Client) bool {
	if c == nil {
		return false
	}
	existing, ok := r.clients[c.ID]
	return ok && existing == c
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.clients)
}

// Send queues msg to c.
func (r *Registry) Send(c *Client, msg interface{}) {
	if !r.IsRegistered(c) {
		return
	}
	if data, ok := encode(msg); ok {
		r.deliver(c, data)
	}
}

// SendTo queues msg to the client with id clientID. Unknown ids are dropped.
func (r *Registry) SendTo(clientID string, msg interface{}) bool {
	c, ok := r.clients[clientID]
	if !ok {
		return false
	}
	data, ok := encode(msg)
	if !ok {
		return false
	}
	return r.deliver(c, data)
}

// BroadcastAll queues msg to every registered client except exclude and
// returns the number of clients reached.
func (r *Registry) BroadcastAll(msg interface{}, exclude *Client) int {
	data, ok := encode(msg)
	if !ok {
		return 0
	}
	return r.BroadcastRaw(data, exclude)
}

// BroadcastRaw is BroadcastAll for an already encoded message.
func (r *Registry) BroadcastRaw(data []byte, exclude *Client) int {
	n := 0
	for _, c := range r.clients {
		if c == exclude {
			continue
		}
		if r.deliver(c, data) {
			n++
		}
	}
	r.metrics.MessagesQueued(n)
	return n
}

// BroadcastToRoom queues msg to every client whose session is in roomID.
func (r *Registry) BroadcastToRoom(roomID string, msg interface{}, exclude *Client) int {
	if roomID == "" {
		return 0
	}
	data, ok := encode(msg)
	if !ok {
		return 0
	}
	n := 0
	for _, c := range r.clients {
		if c == exclude || c.Session.ChatRoomID != roomID {
			continue
		}
		if r.deliver(c, data) {
			n++
		}
	}
	r.metrics.MessagesQueued(n)
	return n
}

// BroadcastToStream queues msg to the stream's broadcaster and viewers.
func (r *Registry) BroadcastToStream(s *domain.Stream, msg interface{}, exclude *Client) int {
	if s == nil {
		return 0
	}
	data, ok := encode(msg)
	if !ok {
		return 0
	}
	n := 0
	for _, id := range s.ClientIDs() {
		c, ok := r.clients[id]
		if !ok || c == exclude {
			continue
		}
		if r.deliver(c, data) {
			n++
		}
	}
	r.metrics.MessagesQueued(n)
	return n
}

// deliver never blocks. A client whose buffer is full is evicted: its
// connection is closed and its read pump unregisters it.
func (r *Registry) deliver(c *Client, data []byte) bool {
	if c.evicted || c.sendClosed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		r.evict(c)
		return false
	}
}

func (r *Registry) evict(c *Client) {
	l := pkglog.L()
	c.evicted = true
	r.metrics.ClientEvicted()
	l.Warn().Str(pkglog.FieldClientID, c.ID).Msg("send buffer full, evicting slow client")
	if c.Conn != nil {
		go c.Conn.Close()
	}
}

func encode(msg interface{}) ([]byte, bool) {
	switch m := msg.(type) {
	case []byte:
		return m, true
	case json.RawMessage:
		return m, true
	}
	data, err := json.Marshal(msg)
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("failed to encode outbound message")
		return nil, false
	}
	return data, true
}
