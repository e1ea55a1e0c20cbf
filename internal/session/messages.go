package session

import (
	"fmt"

	"github.com/foxseedlab/tablesession/internal/repository"
)

const (
	messageSessionStartedFormat = ":crossed_swords: **%s** has begun. %d player(s) at the table."
	messageSessionEndedFormat   = ":closed_book: **%s** has ended."
	messageSessionCancelled     = ":wastebasket: **%s** was cancelled before it started."

	messageEventAck = "Event broadcast initiated."

	webhookEventStarted = "session.started"
	webhookEventEnded   = "session.ended"
)

func announcement(from repository.SessionStatus, s *repository.Session) string {
	switch {
	case s.Status == repository.SessionStatusActive:
		return fmt.Sprintf(messageSessionStartedFormat, s.Name, len(s.ActivePlayers))
	case s.Status == repository.SessionStatusEnded && from == repository.SessionStatusPending:
		return fmt.Sprintf(messageSessionCancelled, s.Name)
	default:
		return fmt.Sprintf(messageSessionEndedFormat, s.Name)
	}
}

func webhookEventName(status repository.SessionStatus) string {
	if status == repository.SessionStatusActive {
		return webhookEventStarted
	}
	return webhookEventEnded
}
