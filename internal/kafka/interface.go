package kafka

import "context"

// LiveEvent is a stream lifecycle event published for analytics consumers.
type LiveEvent struct {
	Type          string `json:"type"` // "live_started" | "live_stopped"
	StreamID      string `json:"streamId"`
	BroadcasterID string `json:"broadcasterId"`
	Reason        string `json:"reason,omitempty"`
	ViewerCount   int    `json:"viewerCount"`
	DurationMs    int64  `json:"durationMs,omitempty"`
	Instance      string `json:"instance,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// Event types
const (
	EventLiveStarted = "live_started"
	EventLiveStopped = "live_stopped"
)

// Stop reasons
const (
	ReasonExplicit   = "explicit"
	ReasonDisconnect = "disconnect"
	ReasonReplaced   = "replaced"
)

// LiveEventProducer publishes stream lifecycle events.
type LiveEventProducer interface {
	ProduceLiveStarted(ctx context.Context, streamID, broadcasterID string) error
	ProduceLiveStopped(ctx context.Context, streamID, broadcasterID, reason string, viewerCount int, durationMs int64) error
	Close() error
}
