package store

import (
	"context"
	"errors"

	"github.com/weiawesome/amen-live/internal/domain"
)

// ErrSessionNotFound is returned when a prayer session does not exist or has
// already ended.
var ErrSessionNotFound = errors.New("prayer session not found")

// StartSessionParams describes a new prayer session.
type StartSessionParams struct {
	PastorID   string
	ChurchID   string
	PastorName string
	ChurchName string
	Focus      string
}

// SessionStore keeps prayer sessions.
type SessionStore interface {
	StartSession(ctx context.Context, params StartSessionParams) (*domain.PrayerSession, error)
	// EndSession closes a live session and records its duration.
	EndSession(ctx context.Context, sessionID string) (*domain.PrayerSession, error)
	ListLive(ctx context.Context) ([]domain.PrayerSession, error)
	CountLive(ctx context.Context) (int, error)
}

// ChatStore persists chat room messages.
type ChatStore interface {
	InsertMessage(ctx context.Context, msg *domain.ChatMessage) error
}

// ChatHistory reads back persisted chat messages.
type ChatHistory interface {
	ListRoomMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
}
