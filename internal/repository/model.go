package repository

import (
	"slices"
	"time"
)

type SessionStatus string

const (
	SessionStatusPending SessionStatus = "Pending"
	SessionStatusActive  SessionStatus = "Active"
	SessionStatusEnded   SessionStatus = "Ended"
)

// Open reports whether players may still join or leave.
func (s SessionStatus) Open() bool {
	return s == SessionStatusPending || s == SessionStatusActive
}

type Session struct {
	ID         int64
	Name       string
	CampaignID int64
	MasterID   int64
	Status     SessionStatus
	// ActivePlayers is kept sorted and free of duplicates.
	ActivePlayers []int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	EndedAt       *time.Time
}

func (s *Session) HasPlayer(userID int64) bool {
	_, found := slices.BinarySearch(s.ActivePlayers, userID)
	return found
}

// AddPlayer inserts userID and reports whether the set changed.
func (s *Session) AddPlayer(userID int64) bool {
	i, found := slices.BinarySearch(s.ActivePlayers, userID)
	if found {
		return false
	}
	s.ActivePlayers = slices.Insert(s.ActivePlayers, i, userID)
	return true
}

// RemovePlayer deletes userID and reports whether the set changed.
func (s *Session) RemovePlayer(userID int64) bool {
	i, found := slices.BinarySearch(s.ActivePlayers, userID)
	if !found {
		return false
	}
	s.ActivePlayers = slices.Delete(s.ActivePlayers, i, i+1)
	return true
}

func (s *Session) Clone() *Session {
	c := *s
	c.ActivePlayers = slices.Clone(s.ActivePlayers)
	return &c
}

// NormalizePlayers sorts and dedupes player ids loaded from storage.
func NormalizePlayers(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Campaign is owned by the campaign service; this system only reads it.
type Campaign struct {
	ID           int64
	Name         string
	MasterID     int64
	IsPublic     bool
	JoinToken    string
	PasswordHash string
}

func (c *Campaign) HasPassword() bool {
	return !c.IsPublic && c.PasswordHash != ""
}
