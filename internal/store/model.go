package store

import (
	"time"

	"github.com/weiawesome/amen-live/internal/domain"
)

// PrayerSessionModel is the GORM model for prayer_sessions table.
type PrayerSessionModel struct {
	ID              string     `gorm:"type:varchar(36);primaryKey"`
	PastorID        string     `gorm:"type:varchar(64);index;not null"`
	ChurchID        string     `gorm:"type:varchar(64);index"`
	PastorName      string     `gorm:"type:varchar(120)"`
	ChurchName      string     `gorm:"type:varchar(160)"`
	Focus           string     `gorm:"type:text"`
	StartedAt       time.Time  `gorm:"not null"`
	EndedAt         *time.Time `gorm:"index"`
	DurationSeconds int64
}

// TableName specifies the table name for PrayerSessionModel.
func (PrayerSessionModel) TableName() string {
	return "prayer_sessions"
}

// ToDomain converts PrayerSessionModel to domain PrayerSession.
func (m *PrayerSessionModel) ToDomain() *domain.PrayerSession {
	return &domain.PrayerSession{
		ID:              m.ID,
		PastorID:        m.PastorID,
		ChurchID:        m.ChurchID,
		PastorName:      m.PastorName,
		ChurchName:      m.ChurchName,
		Focus:           m.Focus,
		StartedAt:       m.StartedAt,
		EndedAt:         m.EndedAt,
		DurationSeconds: m.DurationSeconds,
	}
}

// ChatMessageModel is the GORM model for chat_messages table.
type ChatMessageModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	RoomID         string    `gorm:"type:varchar(64);index:idx_chat_room_created,priority:1;not null"`
	SenderRole     string    `gorm:"type:varchar(20);not null"`
	SenderName     string    `gorm:"type:varchar(120)"`
	OriginalText   string    `gorm:"type:text;not null"`
	TranslatedText string    `gorm:"type:text"`
	SourceLang     string    `gorm:"type:varchar(16)"`
	TargetLang     string    `gorm:"type:varchar(16)"`
	CreatedAt      time.Time `gorm:"index:idx_chat_room_created,priority:2"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

func (m *ChatMessageModel) ToDomain() *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:             m.ID,
		RoomID:         m.RoomID,
		SenderRole:     domain.ChatRole(m.SenderRole),
		SenderName:     m.SenderName,
		OriginalText:   m.OriginalText,
		TranslatedText: m.TranslatedText,
		SourceLang:     m.SourceLang,
		TargetLang:     m.TargetLang,
		CreatedAt:      m.CreatedAt,
	}
}

func chatMessageToModel(msg *domain.ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		ID:             msg.ID,
		RoomID:         msg.RoomID,
		SenderRole:     string(msg.SenderRole),
		SenderName:     msg.SenderName,
		OriginalText:   msg.OriginalText,
		TranslatedText: msg.TranslatedText,
		SourceLang:     msg.SourceLang,
		TargetLang:     msg.TargetLang,
		CreatedAt:      msg.CreatedAt,
	}
}

// Models lists every table the GORM stores need, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&PrayerSessionModel{}, &ChatMessageModel{}}
}
