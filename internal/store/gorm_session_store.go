package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/pkg/log"
)

// GormSessionStore implements SessionStore using GORM.
type GormSessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSessionStore creates a new GORM-based session store.
func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// StartSession creates a live prayer session.
func (s *GormSessionStore) StartSession(ctx context.Context, params StartSessionParams) (*domain.PrayerSession, error) {
	l := log.Ctx(ctx)

	model := &PrayerSessionModel{
		ID:         uuid.New().String(),
		PastorID:   params.PastorID,
		ChurchID:   params.ChurchID,
		PastorName: params.PastorName,
		ChurchName: params.ChurchName,
		Focus:      params.Focus,
		StartedAt:  s.now(),
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str("pastor_id", params.PastorID).Msg("failed to create prayer session")
		return nil, err
	}

	l.Debug().Str(log.FieldSession, model.ID).Msg("prayer session created")
	return model.ToDomain(), nil
}

// EndSession closes a live session. Ending an unknown or already ended
// session returns ErrSessionNotFound.
func (s *GormSessionStore) EndSession(ctx context.Context, sessionID string) (*domain.PrayerSession, error) {
	l := log.Ctx(ctx)

	var model PrayerSessionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND ended_at IS NULL", sessionID).First(&model).Error; err != nil {
			return err
		}

		endedAt := s.now()
		duration := int64(endedAt.Sub(model.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}

		result := tx.Model(&PrayerSessionModel{}).
			Where("id = ? AND ended_at IS NULL", sessionID).
			Updates(map[string]interface{}{
				"ended_at":         endedAt,
				"duration_seconds": duration,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		model.EndedAt = &endedAt
		model.DurationSeconds = duration
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		l.Error().Err(err).Str(log.FieldSession, sessionID).Msg("failed to end prayer session")
		return nil, err
	}

	return model.ToDomain(), nil
}

// ListLive returns live sessions, newest first.
func (s *GormSessionStore) ListLive(ctx context.Context) ([]domain.PrayerSession, error) {
	var models []PrayerSessionModel
	if err := s.db.WithContext(ctx).
		Where("ended_at IS NULL").
		Order("started_at DESC").
		Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list live prayer sessions")
		return nil, err
	}

	sessions := make([]domain.PrayerSession, len(models))
	for i := range models {
		sessions[i] = *models[i].ToDomain()
	}
	return sessions, nil
}

// CountLive returns the number of live sessions.
func (s *GormSessionStore) CountLive(ctx context.Context) (int, error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&PrayerSessionModel{}).
		Where("ended_at IS NULL").
		Count(&total).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to count live prayer sessions")
		return 0, err
	}
	return int(total), nil
}
