package websocket

import (
	"log/slog"
	"sync"

	"rideon-backend/internal/observability"
)

// Hub tracks live connections and routes relay events. Connections are
// keyed by connection id; a user may hold several connections at once
// and each one joins the user's identity channel. Riders additionally
// join the shared riders broadcast group.
type Hub struct {
	logger *slog.Logger

	mu         sync.RWMutex
	clients    map[*Client]struct{}
	byIdentity map[string]map[*Client]struct{}
	riders     map[*Client]struct{}
	riderConns map[string]int // rider identity -> live connection count

	register   chan *Client
	unregister chan *Client
	route      chan delivery
	done       chan struct{}
}

// delivery is one routed message: either to a single identity channel
// or to the whole riders group.
type delivery struct {
	event    string
	identity string // target identity channel; ignored when toRiders
	toRiders bool
	exclude  *Client // sender, skipped on broadcasts
	data     []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		byIdentity: make(map[string]map[*Client]struct{}),
		riders:     make(map[*Client]struct{}),
		riderConns: make(map[string]int),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		route:      make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. All membership mutation happens here, so
// connect/disconnect/deliver never race.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case d := <-h.route:
			h.dispatch(d)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) Stop() { close(h.done) }

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	observability.ClientsConnected.Set(float64(len(h.clients)))
	if c.UserID == "" {
		// Unidentified connections stay out of every channel.
		return
	}
	set := h.byIdentity[c.UserID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.byIdentity[c.UserID] = set
	}
	set[c] = struct{}{}
	if c.UserType == riderRole {
		h.riders[c] = struct{}{}
		h.riderConns[c.UserID]++
		observability.RidersConnected.Set(float64(len(h.riderConns)))
		h.logger.Info("rider joined riders channel",
			"user_id", c.UserID, "riders_online", len(h.riderConns))
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	observability.ClientsConnected.Set(float64(len(h.clients)))
	if c.UserID == "" {
		return
	}
	if set := h.byIdentity[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byIdentity, c.UserID)
		}
	}
	if c.UserType == riderRole {
		delete(h.riders, c)
		if h.riderConns[c.UserID]--; h.riderConns[c.UserID] <= 0 {
			delete(h.riderConns, c.UserID)
		}
		observability.RidersConnected.Set(float64(len(h.riderConns)))
		h.logger.Info("rider left riders channel",
			"user_id", c.UserID, "riders_online", len(h.riderConns))
	}
}

// dispatch fans a delivery out. Delivery is best-effort and
// at-most-once: an offline recipient never sees the event, and a
// recipient with a full send buffer is skipped rather than blocking the
// hub.
func (h *Hub) dispatch(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if d.toRiders {
		for c := range h.riders {
			if c == d.exclude {
				continue
			}
			h.offer(c, d)
		}
		return
	}
	set, ok := h.byIdentity[d.identity]
	if !ok {
		observability.RelayDroppedTotal.WithLabelValues(d.event).Inc()
		h.logger.Debug("relay recipient offline", "event", d.event, "recipient", d.identity)
		return
	}
	for c := range set {
		h.offer(c, d)
	}
}

func (h *Hub) offer(c *Client, d delivery) {
	select {
	case c.send <- d.data:
	default:
		observability.RelayDroppedTotal.WithLabelValues(d.event).Inc()
		h.logger.Warn("client send buffer full, dropping event",
			"event", d.event, "user_id", c.UserID)
	}
}

// SendToIdentity routes an event to every connection on one identity
// channel. Enqueue order per sender is preserved through the hub loop.
func (h *Hub) SendToIdentity(identity, event string, payload interface{}) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logger.Warn("marshal relay event failed", "event", event, "error", err)
		return
	}
	h.route <- delivery{event: event, identity: identity, data: data}
}

// BroadcastToRiders routes an event to the shared riders channel,
// skipping the sender's own connection.
func (h *Hub) BroadcastToRiders(event string, payload interface{}, exclude *Client) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logger.Warn("marshal relay event failed", "event", event, "error", err)
		return
	}
	h.route <- delivery{event: event, toRiders: true, exclude: exclude, data: data}
}

// ConnectedRiderIDs lists riders currently reachable; a debug aid, not
// a delivery filter.
func (h *Hub) ConnectedRiderIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.riderConns))
	for id := range h.riderConns {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) RiderCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.riderConns)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) IsConnected(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byIdentity[identity]
	return ok
}
