package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/pkg/log"
)

// GormChatStore implements ChatStore using GORM.
type GormChatStore struct {
	db *gorm.DB
}

func NewGormChatStore(db *gorm.DB) *GormChatStore {
	return &GormChatStore{db: db}
}

// InsertMessage stores msg, assigning an id and timestamp when missing.
func (s *GormChatStore) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(chatMessageToModel(msg)).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("failed to insert chat message")
		return err
	}
	return nil
}

// ListRoomMessages returns up to limit messages of roomID, oldest first.
func (s *GormChatStore) ListRoomMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	var models []ChatMessageModel
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	msgs := make([]domain.ChatMessage, len(models))
	for i := range models {
		msgs[len(models)-1-i] = *models[i].ToDomain()
	}
	return msgs, nil
}
