package domain

import "time"

// PrayerSession is a pastor's prayer session as kept by the session store.
type PrayerSession struct {
	ID              string     `json:"id"`
	PastorID        string     `json:"pastorId"`
	ChurchID        string     `json:"churchId,omitempty"`
	PastorName      string     `json:"pastorName,omitempty"`
	ChurchName      string     `json:"churchName,omitempty"`
	Focus           string     `json:"focus,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int64      `json:"durationSeconds,omitempty"`
}

// IsLive reports whether the session has not ended.
func (p *PrayerSession) IsLive() bool {
	return p.EndedAt == nil
}

// ChatMessage is one persisted chat room message.
type ChatMessage struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"roomId"`
	SenderRole     ChatRole  `json:"senderRole"`
	SenderName     string    `json:"senderName"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	SourceLang     string    `json:"sourceLang"`
	TargetLang     string    `json:"targetLang"`
	CreatedAt      time.Time `json:"createdAt"`
}
