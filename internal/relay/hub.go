package relay

import (
	"log"
	"sync"

	"github.com/jaydenbeard/haven/internal/metrics"
)

// Hub tracks which identity keys are connected to this havenserver
// instance and routes frames between them. Cross-server delivery is
// handed off to a Broadcaster (pubsub.go); the Hub itself only knows
// about local connections.
type Hub struct {
	serverID  string
	clientsMu sync.RWMutex
	clients   map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan Frame

	broadcaster Broadcaster
	inbox       *Inbox
}

// Broadcaster forwards a frame to other havenserver instances and
// delivers frames they forward back, for recipients connected
// elsewhere. internal/relay/pubsub.go provides the Redis-backed
// implementation; nil is a valid single-node no-op.
type Broadcaster interface {
	Publish(f Frame) error
}

// NewHub builds a Hub. Pass nil for broadcaster in a single-node
// deployment, and nil for inbox to disable offline store-and-forward.
// A Redis-backed Broadcaster needs the Hub to exist first (see
// SetBroadcaster) since the two refer to each other.
func NewHub(serverID string, broadcaster Broadcaster, inbox *Inbox) *Hub {
	return &Hub{
		serverID:    serverID,
		clients:     make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan Frame, 256),
		broadcaster: broadcaster,
		inbox:       inbox,
	}
}

// SetBroadcaster wires a Broadcaster after construction, for the
// RedisBroadcaster <-> Hub circular dependency: build the Hub with a
// nil broadcaster, build the RedisBroadcaster with that Hub, then call
// this before starting either.
func (h *Hub) SetBroadcaster(b Broadcaster) {
	h.broadcaster = b
}

// Run drives the Hub's event loop and blocks until its channels are
// closed; callers start it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c.IdentityKeyB64] = c
			h.clientsMu.Unlock()
		case c := <-h.unregister:
			h.clientsMu.Lock()
			if existing, ok := h.clients[c.IdentityKeyB64]; ok && existing == c {
				delete(h.clients, c.IdentityKeyB64)
				close(c.send)
			}
			h.clientsMu.Unlock()
		case f := <-h.inbound:
			h.deliverLocal(f)
		}
	}
}

// Register admits a Client to the Hub; call after its pumps start.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a Client from the Hub; ReadPump calls this on exit.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// route is called from a Client's ReadPump with a frame it just
// received. It queues the frame onto the Hub's own loop rather than
// mutating h.clients directly, since ReadPump runs on its own
// goroutine per connection.
func (h *Hub) route(f Frame) {
	metrics.RecordRelayFrame(h.serverID, "inbound")
	h.inbound <- f
}

// deliverLocal attempts local delivery and falls back to the
// broadcaster for recipients this instance doesn't hold a connection
// for. It never inspects f.Payload.
func (h *Hub) deliverLocal(f Frame) {
	if f.To == "" {
		log.Printf("relay: dropping frame from %s with no recipient", f.From)
		return
	}

	h.clientsMu.RLock()
	c, ok := h.clients[f.To]
	h.clientsMu.RUnlock()
	if ok {
		h.enqueue(c, f)
		return
	}

	if h.broadcaster != nil {
		if err := h.broadcaster.Publish(f); err != nil {
			log.Printf("relay: broadcast publish failed for %s: %v", f.To, err)
		}
	}

	if h.inbox != nil {
		if err := h.inbox.Enqueue(f); err != nil {
			log.Printf("relay: inbox enqueue failed for %s: %v", f.To, err)
		}
	}
}

// DeliverFromBroadcaster is called by the Broadcaster implementation
// when another havenserver instance forwards a frame addressed to a
// client connected here.
func (h *Hub) DeliverFromBroadcaster(f Frame) {
	h.clientsMu.RLock()
	c, ok := h.clients[f.To]
	h.clientsMu.RUnlock()
	if ok {
		h.enqueue(c, f)
	}
}

func (h *Hub) enqueue(c *Client, f Frame) {
	encoded, err := encodeFrame(f)
	if err != nil {
		log.Printf("relay: failed to encode frame for %s: %v", f.To, err)
		return
	}
	select {
	case c.send <- encoded:
		metrics.RecordRelayFrame(h.serverID, "outbound")
	default:
		log.Printf("relay: send buffer full for %s, dropping connection", c.IdentityKeyB64)
		h.clientsMu.Lock()
		if existing, ok := h.clients[c.IdentityKeyB64]; ok && existing == c {
			delete(h.clients, c.IdentityKeyB64)
			close(c.send)
		}
		h.clientsMu.Unlock()
	}
}

// Connected reports whether an identity key currently holds a live
// connection to this instance.
func (h *Hub) Connected(identityKeyB64 string) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	_, ok := h.clients[identityKeyB64]
	return ok
}
