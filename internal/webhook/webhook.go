package webhook

import (
	"context"
	"time"
)

// SessionTransitionPayload is posted after a session changes status.
type SessionTransitionPayload struct {
	Event      string    `json:"event"`
	SessionID  int64     `json:"session_id"`
	Name       string    `json:"name"`
	CampaignID int64     `json:"campaign_id"`
	MasterID   int64     `json:"master_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Players    int       `json:"players"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Sender interface {
	SendSessionTransition(ctx context.Context, payload SessionTransitionPayload) error
}
