package models

import (
	"context"
	"time"
)

// Session is one conversation as persisted between turns.
type Session struct {
	ID           string            `json:"id"`
	State        ConversationState `json:"state"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity time.Time         `json:"lastActivity"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

// IsExpired checks if session has expired
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Touch records activity at now and pushes the expiry out by ttl.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.LastActivity = now
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
}

// SessionRepository defines session data access interface
type SessionRepository interface {
	Load(ctx context.Context, id string) (*Session, error)
	// Save stores s only if the stored state is still at expectedTurn.
	Save(ctx context.Context, s *Session, expectedTurn int) error
	Delete(ctx context.Context, id string) error
}
