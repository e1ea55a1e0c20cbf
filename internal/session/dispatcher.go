package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/tablesession/internal/broadcast"
	"github.com/foxseedlab/tablesession/internal/identity"
	"github.com/foxseedlab/tablesession/internal/repository"
)

type Publisher interface {
	Publish(sessionID int64, event broadcast.Event) int
}

// Ack confirms an event was authorized and handed to the hub. Recipients is
// the number of live connections that accepted it at publish time.
type Ack struct {
	SessionID  int64
	Recipients int
	Message    string
}

// Dispatcher relays Master events into a session's room.
type Dispatcher struct {
	sessions repository.SessionRepository
	hub      Publisher
}

func NewDispatcher(sessions repository.SessionRepository, hub Publisher) *Dispatcher {
	return &Dispatcher{sessions: sessions, hub: hub}
}

func (d *Dispatcher) BroadcastEvent(ctx context.Context, sessionID int64, event broadcast.Event, actor identity.Actor) (*Ack, error) {
	if strings.TrimSpace(event.Message) == "" {
		return nil, fmt.Errorf("%w: event message is required", ErrInvalidInput)
	}
	s, err := d.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", sessionID, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
	}
	if !actor.IsMaster() || s.MasterID != actor.UserID {
		return nil, fmt.Errorf("%w: only the session's master can send events", ErrUnauthorized)
	}

	n := d.hub.Publish(sessionID, event)
	slog.Info("session event dispatched", "session_id", sessionID, "recipients", n)
	return &Ack{SessionID: sessionID, Recipients: n, Message: messageEventAck}, nil
}
