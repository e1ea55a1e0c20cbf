package repository

import "context"

type CreateSessionInput struct {
	Name       string
	CampaignID int64
	MasterID   int64
}

// SessionFilter narrows ListSessions. Zero fields do not filter.
type SessionFilter struct {
	MasterID int64
	Statuses []SessionStatus
	// VisibleTo limits results to sessions whose campaign is public or
	// that already list this user as a player.
	VisibleTo int64
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	// SaveSession persists status, timestamps and the full player set atomically.
	SaveSession(ctx context.Context, s *Session) error
	// GetSessionByID returns nil, nil when the session does not exist.
	GetSessionByID(ctx context.Context, id int64) (*Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
}

type CampaignRepository interface {
	// GetCampaign returns nil, nil when the campaign does not exist.
	GetCampaign(ctx context.Context, id int64) (*Campaign, error)
}

type Repository interface {
	SessionRepository
	CampaignRepository
	Close()
}
