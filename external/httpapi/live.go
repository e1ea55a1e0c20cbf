package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/foxseedlab/tablesession/internal/broadcast"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 4096
)

const msgMalformedFrame = "malformed frame"

var (
	errConnClosed    = errors.New("live connection closed")
	errSendQueueFull = errors.New("live connection send queue full")
)

type Rooms interface {
	Register(conn broadcast.Conn, sessionID int64) error
	Deregister(connID string)
}

type inboundFrame struct {
	Type      string `json:"type"`
	SessionID int64  `json:"sessionId"`
}

type liveHandler struct {
	rooms      Rooms
	upgrader   websocket.Upgrader
	sendBuffer int
}

func newLiveHandler(rooms Rooms, allowedOrigins []string, sendBuffer int) *liveHandler {
	return &liveHandler{
		rooms:      rooms,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows any origin when allowed is empty. Requests without an
// Origin header come from non-browser clients and are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func (h *liveHandler) serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("live connection upgrade failed", "error", err, "remote_addr", c.Request.RemoteAddr)
		return
	}
	conn := newLiveConn(uuid.NewString(), ws, h.sendBuffer)
	slog.Info("live connection opened", "connection_id", conn.id, "remote_addr", c.Request.RemoteAddr)

	go conn.writePump()
	defer func() {
		h.rooms.Deregister(conn.id)
		conn.close()
		slog.Info("live connection closed", "connection_id", conn.id)
	}()
	h.readLoop(conn)
}

func (h *liveHandler) readLoop(conn *liveConn) {
	conn.ws.SetReadLimit(maxInboundSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("live connection read failed", "error", err, "connection_id", conn.id)
			}
			return
		}
		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			_ = conn.Send(broadcast.ErrorFrame(msgMalformedFrame))
			continue
		}
		switch in.Type {
		case broadcast.FrameJoinSession:
			if in.SessionID <= 0 {
				_ = conn.Send(broadcast.ErrorFrame("sessionId must be a positive integer"))
				continue
			}
			if err := h.rooms.Register(conn, in.SessionID); err != nil {
				slog.Debug("live connection join ack failed", "error", err, "connection_id", conn.id, "session_id", in.SessionID)
				return
			}
		case broadcast.FrameLeaveSession:
			h.rooms.Deregister(conn.id)
		default:
			_ = conn.Send(broadcast.ErrorFrame(fmt.Sprintf("unknown frame type %q", in.Type)))
		}
	}
}

// liveConn is a broadcast.Conn over a websocket. All writes go through send so
// that writePump is the only writer.
type liveConn struct {
	id   string
	ws   *websocket.Conn
	send chan broadcast.Frame
	done chan struct{}
	once sync.Once
}

func newLiveConn(id string, ws *websocket.Conn, buffer int) *liveConn {
	return &liveConn{
		id:   id,
		ws:   ws,
		send: make(chan broadcast.Frame, buffer),
		done: make(chan struct{}),
	}
}

func (c *liveConn) ID() string {
	return c.id
}

// Send queues f without blocking.
func (c *liveConn) Send(f broadcast.Frame) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *liveConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *liveConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				slog.Debug("live connection write failed", "error", err, "connection_id", c.id)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
