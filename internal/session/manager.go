package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/tablesession/internal/config"
	"github.com/foxseedlab/tablesession/internal/discord"
	"github.com/foxseedlab/tablesession/internal/identity"
	"github.com/foxseedlab/tablesession/internal/repository"
	"github.com/foxseedlab/tablesession/internal/webhook"
	"golang.org/x/crypto/bcrypt"
)

// Manager owns session status transitions and player membership.
// Every mutation of one session runs under that session's lock.
type Manager struct {
	cfg     *config.Config
	repo    repository.Repository
	discord discord.Client
	webhook webhook.Sender
	locks   *keyedMutex
	now     func() time.Time
}

// JoinCredentials gate sessions of private campaigns.
type JoinCredentials struct {
	JoinToken string
	Password  string
}

func NewManager(cfg *config.Config, repo repository.Repository, dc discord.Client, wh webhook.Sender) *Manager {
	return &Manager{
		cfg:     cfg,
		repo:    repo,
		discord: dc,
		webhook: wh,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

func (m *Manager) CreateSession(ctx context.Context, name string, campaignID int64, actor identity.Actor) (*repository.Session, error) {
	if !actor.IsMaster() {
		return nil, fmt.Errorf("%w: only masters can create sessions", ErrForbidden)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: session name is required", ErrInvalidInput)
	}

	campaign, err := m.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	if campaign == nil {
		return nil, fmt.Errorf("%w: campaign %d", ErrNotFound, campaignID)
	}
	if campaign.MasterID != actor.UserID {
		return nil, fmt.Errorf("%w: campaign %d belongs to another master", ErrForbidden, campaignID)
	}

	created, err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
		Name:       name,
		CampaignID: campaignID,
		MasterID:   actor.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	slog.Info("session created", "session_id", created.ID, "campaign_id", campaignID, "master_id", actor.UserID)
	return created, nil
}

func (m *Manager) GetSession(ctx context.Context, sessionID int64) (*repository.Session, error) {
	return m.load(ctx, sessionID)
}

func (m *Manager) ListSessions(ctx context.Context, actor identity.Actor) ([]repository.Session, error) {
	var filter repository.SessionFilter
	switch {
	case actor.IsMaster():
		filter.MasterID = actor.UserID
	case actor.IsPlayer():
		filter.Statuses = []repository.SessionStatus{repository.SessionStatusPending, repository.SessionStatusActive}
		filter.VisibleTo = actor.UserID
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}
	sessions, err := m.repo.ListSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (m *Manager) JoinSession(ctx context.Context, sessionID int64, actor identity.Actor, creds JoinCredentials) (*repository.Session, error) {
	if !actor.IsPlayer() {
		return nil, fmt.Errorf("%w: only players can join sessions", ErrForbidden)
	}
	_, s, err := m.mutate(ctx, sessionID, func(s *repository.Session) (bool, error) {
		if !s.Status.Open() {
			return false, fmt.Errorf("%w: session %d is %s", ErrInvalidState, sessionID, s.Status)
		}
		campaign, err := m.repo.GetCampaign(ctx, s.CampaignID)
		if err != nil {
			return false, fmt.Errorf("load campaign %d: %w", s.CampaignID, err)
		}
		if campaign == nil {
			return false, fmt.Errorf("%w: campaign %d", ErrNotFound, s.CampaignID)
		}
		if err := checkJoinCredentials(campaign, creds); err != nil {
			return false, err
		}
		if s.MasterID == actor.UserID {
			return false, fmt.Errorf("%w: master cannot join their own session as a player", ErrConflict)
		}
		if !s.AddPlayer(actor.UserID) {
			return false, fmt.Errorf("%w: player %d already in session %d", ErrConflict, actor.UserID, sessionID)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("player joined session", "session_id", sessionID, "user_id", actor.UserID, "players", len(s.ActivePlayers))
	return s, nil
}

func (m *Manager) LeaveSession(ctx context.Context, sessionID int64, actor identity.Actor) (*repository.Session, error) {
	_, s, err := m.mutate(ctx, sessionID, func(s *repository.Session) (bool, error) {
		if !s.Status.Open() {
			return false, fmt.Errorf("%w: session %d is %s", ErrInvalidState, sessionID, s.Status)
		}
		if !s.RemovePlayer(actor.UserID) {
			return false, fmt.Errorf("%w: user %d is not in session %d", ErrConflict, actor.UserID, sessionID)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("player left session", "session_id", sessionID, "user_id", actor.UserID, "players", len(s.ActivePlayers))
	return s, nil
}

// StartSession moves Pending to Active. Starting an Active session succeeds
// without change so client retries are harmless.
func (m *Manager) StartSession(ctx context.Context, sessionID int64, actor identity.Actor) (*repository.Session, error) {
	from, s, err := m.mutate(ctx, sessionID, func(s *repository.Session) (bool, error) {
		if err := checkOwner(s, actor); err != nil {
			return false, err
		}
		switch s.Status {
		case repository.SessionStatusActive:
			return false, nil
		case repository.SessionStatusEnded:
			return false, fmt.Errorf("%w: session %d has already ended", ErrInvalidState, sessionID)
		}
		now := m.now().UTC()
		s.Status = repository.SessionStatusActive
		s.StartedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if from != s.Status {
		slog.Info("session started", "session_id", sessionID, "players", len(s.ActivePlayers))
		m.notifyTransition(ctx, from, s)
	}
	return s, nil
}

// EndSession moves any non-terminal session to Ended. Ending twice fails.
func (m *Manager) EndSession(ctx context.Context, sessionID int64, actor identity.Actor) (*repository.Session, error) {
	from, s, err := m.mutate(ctx, sessionID, func(s *repository.Session) (bool, error) {
		if err := checkOwner(s, actor); err != nil {
			return false, err
		}
		if s.Status == repository.SessionStatusEnded {
			return false, fmt.Errorf("%w: session %d has already ended", ErrInvalidState, sessionID)
		}
		now := m.now().UTC()
		s.Status = repository.SessionStatusEnded
		s.EndedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("session ended", "session_id", sessionID, "from", from)
	m.notifyTransition(ctx, from, s)
	return s, nil
}

// mutate loads a session under its lock and hands a copy to fn. The copy is
// saved only when fn reports a change and returns no error, so a rejected
// request never reaches storage. It returns the status before fn ran.
func (m *Manager) mutate(ctx context.Context, sessionID int64, fn func(s *repository.Session) (bool, error)) (repository.SessionStatus, *repository.Session, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	current, err := m.load(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	next := current.Clone()
	changed, err := fn(next)
	if err != nil {
		return current.Status, nil, err
	}
	if !changed {
		return current.Status, current, nil
	}
	if err := m.save(ctx, next); err != nil {
		return current.Status, nil, err
	}
	return current.Status, next, nil
}

func (m *Manager) load(ctx context.Context, sessionID int64) (*repository.Session, error) {
	s, err := m.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", sessionID, err)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: session %d", ErrNotFound, sessionID)
	}
	return s, nil
}

func (m *Manager) save(ctx context.Context, s *repository.Session) error {
	s.UpdatedAt = m.now().UTC()
	if err := m.repo.SaveSession(ctx, s); err != nil {
		slog.Error("failed to save session", "error", err, "session_id", s.ID)
		return fmt.Errorf("save session %d: %w", s.ID, err)
	}
	return nil
}

func (m *Manager) notifyTransition(ctx context.Context, from repository.SessionStatus, s *repository.Session) {
	if err := m.webhook.SendSessionTransition(ctx, webhook.SessionTransitionPayload{
		Event:      webhookEventName(s.Status),
		SessionID:  s.ID,
		Name:       s.Name,
		CampaignID: s.CampaignID,
		MasterID:   s.MasterID,
		From:       string(from),
		To:         string(s.Status),
		Players:    len(s.ActivePlayers),
		OccurredAt: s.UpdatedAt,
	}); err != nil {
		slog.Error("failed to send session webhook", "error", err, "session_id", s.ID)
	}
	if m.cfg.DiscordAnnounceChannelID == "" {
		return
	}
	if err := m.discord.SendChannelMessage(m.cfg.DiscordAnnounceChannelID, announcement(from, s)); err != nil {
		slog.Error("failed to post session announcement", "error", err, "session_id", s.ID)
	}
}

func checkOwner(s *repository.Session, actor identity.Actor) error {
	if !actor.IsMaster() || s.MasterID != actor.UserID {
		return fmt.Errorf("%w: only the session's master can change its status", ErrUnauthorized)
	}
	return nil
}

func checkJoinCredentials(c *repository.Campaign, creds JoinCredentials) error {
	if c.IsPublic {
		return nil
	}
	if creds.JoinToken == "" || subtle.ConstantTimeCompare([]byte(creds.JoinToken), []byte(c.JoinToken)) != 1 {
		return fmt.Errorf("%w: invalid join token", ErrUnauthorized)
	}
	if !c.HasPassword() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(creds.Password)); err != nil {
		return fmt.Errorf("%w: invalid password", ErrUnauthorized)
	}
	return nil
}
