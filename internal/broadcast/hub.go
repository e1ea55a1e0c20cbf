package broadcast

import (
	"log/slog"
	"sync"
)

// Conn is one live transport. Send must not block; it returns an error when
// the frame cannot be queued (closed transport, full buffer). Implementations
// must be comparable; pointer types are.
type Conn interface {
	ID() string
	Send(frame Frame) error
}

// Hub groups live connections into rooms keyed by session id.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[string]Conn
	roomOf map[string]int64
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[int64]map[string]Conn),
		roomOf: make(map[string]int64),
	}
}

// Register puts conn into sessionID's room, moving it out of any previous
// room, and acknowledges to conn alone. If the ack cannot be delivered the
// registration is undone and the send error is returned.
func (h *Hub) Register(conn Conn, sessionID int64) error {
	id := conn.ID()

	h.mu.Lock()
	if prev, ok := h.roomOf[id]; ok && prev != sessionID {
		h.removeLocked(id, prev)
	}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]Conn)
		h.rooms[sessionID] = room
	}
	room[id] = conn
	h.roomOf[id] = sessionID
	size := len(room)
	h.mu.Unlock()

	slog.Debug("live connection registered", "connection_id", id, "session_id", sessionID, "room_size", size)

	if err := conn.Send(joinedFrame(sessionID)); err != nil {
		h.drop(conn, sessionID)
		return err
	}
	return nil
}

// Deregister removes the connection from whichever room holds it.
func (h *Hub) Deregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.roomOf[connID]
	if !ok {
		return
	}
	h.removeLocked(connID, room)
	slog.Debug("live connection deregistered", "connection_id", connID, "session_id", room)
}

// Publish delivers event to every connection registered in sessionID's room
// when the call starts. Connections that fail to accept the frame are dropped.
// It returns how many connections accepted the frame.
func (h *Hub) Publish(sessionID int64, event Event) int {
	h.mu.RLock()
	members := make([]Conn, 0, len(h.rooms[sessionID]))
	for _, c := range h.rooms[sessionID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	frame := eventFrame(sessionID, event)
	delivered := 0
	for _, c := range members {
		if err := c.Send(frame); err != nil {
			slog.Debug("dropping unreachable live connection", "connection_id", c.ID(), "session_id", sessionID, "error", err)
			h.drop(c, sessionID)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) RoomSize(sessionID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) RoomOf(connID string) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.roomOf[connID]
	return room, ok
}

// drop removes conn only if it is still the member registered under its id
// in sessionID's room; a concurrent re-register must survive.
func (h *Hub) drop(conn Conn, sessionID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := conn.ID()
	if current, ok := h.rooms[sessionID][id]; ok && current == conn {
		h.removeLocked(id, sessionID)
	}
}

func (h *Hub) removeLocked(connID string, sessionID int64) {
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	if h.roomOf[connID] == sessionID {
		delete(h.roomOf, connID)
	}
}
