package notify

import (
	"context"
	"sync"

	"github.com/Baaaki/agora/internal/metrics"
	"github.com/google/uuid"
)

const clientBuffer = 64

// Client is one connected socket as seen by the hub.
type Client struct {
	UserID uuid.UUID
	send   chan Event
	rooms  map[string]struct{}
	closed bool
}

func NewClient(userID uuid.UUID) *Client {
	return &Client{
		UserID: userID,
		send:   make(chan Event, clientBuffer),
		rooms:  make(map[string]struct{}),
	}
}

// Events yields queued events; it is closed when the client is unregistered.
func (c *Client) Events() <-chan Event {
	return c.send
}

// Hub is the process-wide registry of connected clients and their rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Register adds c and joins it to its personal room.
func (h *Hub) Register(c *Client) {
	h.Join(c, UserRoom(c.UserID))
}

// Unregister removes c from every room and closes its event channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	for room := range c.rooms {
		h.removeLocked(c, room)
	}
	c.closed = true
	close(c.send)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, room)
}

func (h *Hub) removeLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) DeliverToUser(ctx context.Context, userID uuid.UUID, ev Event) {
	h.DeliverToRoom(ctx, UserRoom(userID), ev, uuid.Nil)
}

// DeliverToRoom queues ev for every member of room except exclude's sockets.
// A client whose buffer is full misses the event.
func (h *Hub) DeliverToRoom(_ context.Context, room string, ev Event, exclude uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		if exclude != uuid.Nil && c.UserID == exclude {
			continue
		}
		select {
		case c.send <- ev:
			metrics.ObserveNotification(true)
		default:
			metrics.ObserveNotification(false)
		}
	}
}

// InRoom reports whether c has joined room.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// RoomSize reports how many sockets are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// IsOnline reports whether the user has at least one open socket.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	return h.RoomSize(UserRoom(userID)) > 0
}
