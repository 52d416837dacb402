package nanohubmcp

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// clientQueueSize bounds each streaming client's outbound queue. A client
// that falls this far behind starts losing events.
const clientQueueSize = 256

// streamClient is one connected SSE or streamable HTTP consumer.
type streamClient struct {
	id     string
	events chan string
}

// clientHub tracks streaming clients and fans broadcast payloads out to
// their queues. All methods are safe for concurrent use.
type clientHub struct {
	mu      sync.RWMutex
	clients map[string]*streamClient
	closed  chan struct{}
	once    sync.Once
	log     zerolog.Logger
}

func newClientHub(log zerolog.Logger) *clientHub {
	return &clientHub{
		clients: make(map[string]*streamClient),
		closed:  make(chan struct{}),
		log:     log,
	}
}

// add registers a new streaming client.
func (h *clientHub) add() *streamClient {
	c := &streamClient{id: uuid.NewString(), events: make(chan string, clientQueueSize)}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Str("client", c.id).Int("total", n).Msg("streaming client connected")
	return c
}

// remove deregisters a client; anything left in its queue is dropped.
func (h *clientHub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Str("client", c.id).Int("total", n).Msg("streaming client disconnected")
}

// broadcast enqueues payload for every connected client. Delivery is FIFO per
// client; a full queue drops the payload for that client only.
func (h *clientHub) broadcast(payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.events <- payload:
		default:
			h.log.Warn().Str("client", c.id).Msg("client queue full, dropping event")
		}
	}
}

// count returns the number of connected clients.
func (h *clientHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// close signals every stream loop to end. Safe to call more than once.
func (h *clientHub) close() {
	h.once.Do(func() { close(h.closed) })
}

// done is closed when the hub shuts down.
func (h *clientHub) done() <-chan struct{} { return h.closed }

// broadcastMessage serializes an envelope once and fans it out to all
// streaming clients.
func (s *MCPServer) broadcastMessage(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("broadcast encode failed")
		return
	}
	s.hub.broadcast(string(b))
}
