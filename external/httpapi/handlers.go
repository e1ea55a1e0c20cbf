package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/foxseedlab/tablesession/internal/broadcast"
	"github.com/foxseedlab/tablesession/internal/identity"
	"github.com/foxseedlab/tablesession/internal/repository"
	"github.com/foxseedlab/tablesession/internal/session"
)

type Lifecycle interface {
	CreateSession(ctx context.Context, name string, campaignID int64, actor identity.Actor) (*repository.Session, error)
	GetSession(ctx context.Context, sessionID int64) (*repository.Session, error)
	ListSessions(ctx context.Context, actor identity.Actor) ([]repository.Session, error)
	JoinSession(ctx context.Context, sessionID int64, actor identity.Actor, creds session.JoinCredentials) (*repository.Session, error)
	LeaveSession(ctx context.Context, sessionID int64, actor identity.Actor) (*repository.Session, error)
	StartSession(ctx context.Context, sessionID int64, actor identity.Actor) (*repository.Session, error)
	EndSession(ctx context.Context, sessionID int64, actor identity.Actor) (*repository.Session, error)
}

type EventDispatcher interface {
	BroadcastEvent(ctx context.Context, sessionID int64, event broadcast.Event, actor identity.Actor) (*session.Ack, error)
}

type sessionResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	CampaignID    int64      `json:"campaign_id"`
	MasterID      int64      `json:"master_id"`
	Status        string     `json:"status"`
	ActivePlayers []int64    `json:"active_players"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

func toSessionResponse(s *repository.Session) sessionResponse {
	players := s.ActivePlayers
	if players == nil {
		players = []int64{}
	}
	return sessionResponse{
		ID:            s.ID,
		Name:          s.Name,
		CampaignID:    s.CampaignID,
		MasterID:      s.MasterID,
		Status:        string(s.Status),
		ActivePlayers: players,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
	}
}

type createSessionRequest struct {
	Name       string `json:"name"`
	CampaignID int64  `json:"campaign_id" binding:"required"`
}

type joinSessionRequest struct {
	JoinToken string `json:"join_token"`
	Password  string `json:"password"`
}

type eventRequest struct {
	Message string `json:"message"`
}

type eventResponse struct {
	Message    string `json:"message"`
	Recipients int    `json:"recipients"`
}

type sessionHandler struct {
	lifecycle  Lifecycle
	dispatcher EventDispatcher
}

func (h *sessionHandler) create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", session.ErrInvalidInput, err))
		return
	}
	s, err := h.lifecycle.CreateSession(c.Request.Context(), req.Name, req.CampaignID, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(s))
}

func (h *sessionHandler) list(c *gin.Context) {
	list, err := h.lifecycle.ListSessions(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for i := range list {
		out = append(out, toSessionResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *sessionHandler) get(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s, err := h.lifecycle.GetSession(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(s))
}

func (h *sessionHandler) join(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req joinSessionRequest
	// The body is optional for public campaigns.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, fmt.Errorf("%w: %v", session.ErrInvalidInput, err))
		return
	}
	s, err := h.lifecycle.JoinSession(c.Request.Context(), id, actorFrom(c), session.JoinCredentials{
		JoinToken: req.JoinToken,
		Password:  req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(s))
}

func (h *sessionHandler) leave(c *gin.Context) {
	h.transition(c, h.lifecycle.LeaveSession)
}

func (h *sessionHandler) start(c *gin.Context) {
	h.transition(c, h.lifecycle.StartSession)
}

func (h *sessionHandler) end(c *gin.Context) {
	h.transition(c, h.lifecycle.EndSession)
}

func (h *sessionHandler) transition(c *gin.Context, op func(context.Context, int64, identity.Actor) (*repository.Session, error)) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s, err := op(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(s))
}

func (h *sessionHandler) event(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", session.ErrInvalidInput, err))
		return
	}
	ack, err := h.dispatcher.BroadcastEvent(c.Request.Context(), id, broadcast.Event{Message: req.Message}, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventResponse{Message: ack.Message, Recipients: ack.Recipients})
}

func sessionIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, fmt.Errorf("%w: session id must be a positive integer", session.ErrInvalidInput))
		return 0, false
	}
	return id, true
}
