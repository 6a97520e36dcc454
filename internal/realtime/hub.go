package realtime

import (
	"auction-engine/utils"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

const clientBuffer = 64

// Client is one live connection as seen by the hub
type Client struct {
	id       string
	send     chan []byte
	lastSeen atomic.Int64 // unix nanos

	// guarded by Hub.mu
	listingID  string
	userID     string
	authUserID string
	registered bool
	feed       bool
}

// NewClient creates an unregistered client. authUserID is the user resolved from
// credentials at connect time and may be empty.
func NewClient(authUserID string) *Client {
	c := &Client{
		id:         utils.GenerateID(),
		send:       make(chan []byte, clientBuffer),
		authUserID: authUserID,
	}
	c.lastSeen.Store(time.Now().UnixNano())
	return c
}

// ID returns the connection id
func (c *Client) ID() string { return c.id }

// Stats is a point-in-time view of the hub
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Users       int `json:"users"`
	Feed        int `json:"feed"`
}

// Hub owns the listing rooms and user channels of every live connection.
// Delivery is best-effort and at-most-once: a client whose buffer is full is dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{} // key: listingID
	users   map[string]map[*Client]struct{} // key: userID
	feed    map[*Client]struct{}            // global feed subscribers

	idleTimeout time.Duration
	now         func() time.Time
}

// NewHub creates a hub that evicts connections silent for longer than idleTimeout
func NewHub(idleTimeout time.Duration) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		users:       make(map[string]map[*Client]struct{}),
		feed:        make(map[*Client]struct{}),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Register adds a client and greets it
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	c.registered = true
	if c.authUserID != "" {
		h.identifyLocked(c, c.authUserID)
	}
	h.mu.Unlock()

	h.sendTo(c, Event{
		Type:      EventConnected,
		UserID:    c.authUserID,
		Message:   "connected for realtime auction updates",
		Timestamp: h.now().UnixMilli(),
	})
}

// Unregister releases every membership of c and closes its outbound queue
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	if !c.registered {
		return
	}
	h.leaveLocked(c)
	h.unidentifyLocked(c)
	delete(h.feed, c)
	c.feed = false
	delete(h.clients, c)
	c.registered = false
	close(c.send)
}

// Join moves c into the room of listingID, leaving any previous room
func (h *Hub) Join(c *Client, listingID string) int {
	h.mu.Lock()
	if !c.registered {
		h.mu.Unlock()
		return 0
	}
	h.leaveLocked(c)
	room, ok := h.rooms[listingID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[listingID] = room
	}
	room[c] = struct{}{}
	c.listingID = listingID
	count := len(room)
	h.mu.Unlock()

	h.sendTo(c, Event{Type: EventJoinedAuction, ListingID: listingID, ParticipantCount: count, Timestamp: h.now().UnixMilli()})
	return count
}

// Leave removes c from its room, if any
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	listingID := c.listingID
	h.leaveLocked(c)
	h.mu.Unlock()

	if listingID != "" {
		h.sendTo(c, Event{Type: EventLeftAuction, ListingID: listingID, Timestamp: h.now().UnixMilli()})
	}
}

func (h *Hub) leaveLocked(c *Client) {
	if c.listingID == "" {
		return
	}
	if room, ok := h.rooms[c.listingID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.listingID)
		}
	}
	c.listingID = ""
}

// Identify binds c to userID for direct delivery. A connection that authenticated
// at connect time cannot claim a different user.
func (h *Hub) Identify(c *Client, userID string) bool {
	h.mu.Lock()
	if !c.registered || userID == "" || (c.authUserID != "" && c.authUserID != userID) {
		h.mu.Unlock()
		return false
	}
	h.identifyLocked(c, userID)
	h.mu.Unlock()

	h.sendTo(c, Event{Type: EventUserIdentified, UserID: userID, Timestamp: h.now().UnixMilli()})
	return true
}

func (h *Hub) identifyLocked(c *Client, userID string) {
	h.unidentifyLocked(c)
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[userID] = set
	}
	set[c] = struct{}{}
	c.userID = userID
}

func (h *Hub) unidentifyLocked(c *Client) {
	if c.userID == "" {
		return
	}
	if set, ok := h.users[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	c.userID = ""
}

// Touch records liveness for c
func (h *Hub) Touch(c *Client) {
	c.lastSeen.Store(h.now().UnixNano())
}

// BroadcastToListing delivers ev to every client in the listing's room
func (h *Hub) BroadcastToListing(listingID string, ev Event) int {
	if ev.ListingID == "" {
		ev.ListingID = listingID
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[listingID]))
	for c := range h.rooms[listingID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(targets, ev)
}

// SendToUser delivers ev to every live connection of userID
func (h *Hub) SendToUser(userID string, ev Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(targets, ev)
}

// SubscribeFeed adds c to the global feed
func (h *Hub) SubscribeFeed(c *Client) bool {
	h.mu.Lock()
	if !c.registered {
		h.mu.Unlock()
		return false
	}
	h.feed[c] = struct{}{}
	c.feed = true
	h.mu.Unlock()

	h.sendTo(c, Event{Type: EventFeedSubscribed, Timestamp: h.now().UnixMilli()})
	return true
}

// UnsubscribeFeed removes c from the global feed
func (h *Hub) UnsubscribeFeed(c *Client) {
	h.mu.Lock()
	was := c.feed
	delete(h.feed, c)
	c.feed = false
	h.mu.Unlock()

	if was {
		h.sendTo(c, Event{Type: EventFeedUnsubscribed, Timestamp: h.now().UnixMilli()})
	}
}

// BroadcastGlobal delivers ev to feed subscribers. Subscribers sitting in the room of
// ev.ListingID are skipped: the room broadcast already reached them.
func (h *Hub) BroadcastGlobal(ev Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.feed))
	for c := range h.feed {
		if ev.ListingID != "" && c.listingID == ev.ListingID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(targets, ev)
}

func (h *Hub) sendTo(c *Client, ev Event) {
	h.deliver([]*Client{c}, ev)
}

// deliver enqueues ev for each target and drops clients that cannot keep up
func (h *Hub) deliver(targets []*Client, ev Event) int {
	if len(targets) == 0 {
		return 0
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = h.now().UnixMilli()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		utils.Error("realtime: marshal event failed", map[string]any{"type": ev.Type, "error": err.Error()})
		return 0
	}

	var (
		sent int
		slow []*Client
	)
	h.mu.RLock()
	for _, c := range targets {
		if !c.registered {
			continue
		}
		select {
		case c.send <- payload:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			h.unregisterLocked(c)
		}
		h.mu.Unlock()
		utils.Warn("realtime: dropped slow connections", map[string]any{"count": len(slow), "type": ev.Type})
	}
	return sent
}

// EvictStale drops every connection silent for longer than the idle timeout
func (h *Hub) EvictStale() int {
	cutoff := h.now().Add(-h.idleTimeout).UnixNano()
	h.mu.Lock()
	var evicted int
	for c := range h.clients {
		if c.lastSeen.Load() < cutoff {
			h.unregisterLocked(c)
			evicted++
		}
	}
	h.mu.Unlock()
	if evicted > 0 {
		utils.Info("realtime: evicted idle connections", map[string]any{"count": evicted})
	}
	return evicted
}

// Stats reports connection, room and identified-user counts
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Connections: len(h.clients), Rooms: len(h.rooms), Users: len(h.users), Feed: len(h.feed)}
}

// Run evicts idle connections every interval until ctx is done, then closes every connection
func (h *Hub) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-ticker.C:
			h.EvictStale()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.unregisterLocked(c)
	}
}

// handleFrame applies one inbound client frame
func (h *Hub) handleFrame(c *Client, raw []byte) {
	h.Touch(c)
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.sendTo(c, Event{Type: EventError, Message: "malformed frame"})
		return
	}
	switch f.Type {
	case inboundJoinAuction:
		if f.ListingID == "" {
			h.sendTo(c, Event{Type: EventError, Message: "listing_id is required"})
			return
		}
		if f.UserID != "" {
			h.Identify(c, f.UserID)
		}
		h.Join(c, f.ListingID)
	case inboundLeaveAuction:
		h.Leave(c)
	case inboundIdentifyUser:
		if !h.Identify(c, f.UserID) {
			h.sendTo(c, Event{Type: EventError, Message: "cannot identify as this user"})
		}
	case inboundSubscribeFeed:
		h.SubscribeFeed(c)
	case inboundUnsubscribeFeed:
		h.UnsubscribeFeed(c)
	case inboundPing:
		h.sendTo(c, Event{Type: EventPong})
	default:
		h.sendTo(c, Event{Type: EventError, Message: "unknown frame type"})
	}
}
