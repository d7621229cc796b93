package service

import (
	"context"
	"errors"

	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
)

// ErrInvalidMessage marks an inbound message missing required fields.
var ErrInvalidMessage = errors.New("invalid message")

// Fanout is the set of delivery primitives handlers use. *hub.Registry
// implements it; every method must be called from the hub loop.
type Fanout interface {
	Send(c *hub.Client, msg interface{})
	SendTo(clientID string, msg interface{}) bool
	BroadcastAll(msg interface{}, exclude *hub.Client) int
	BroadcastToRoom(roomID string, msg interface{}, exclude *hub.Client) int
	BroadcastToStream(s *domain.Stream, msg interface{}, exclude *hub.Client) int
	Client(id string) (*hub.Client, bool)
	IsRegistered(c *hub.Client) bool
}

// Scheduler runs blocking work off the hub loop. The returned continuation,
// if any, runs back on the loop. *hub.Hub implements it.
type Scheduler interface {
	Async(work func(ctx context.Context) func())
}

// PresenceService handles identity and prayer presence.
type PresenceService interface {
	// HandleIdentify records the user identity and replies with live prayer sessions.
	HandleIdentify(ctx context.Context, client *hub.Client, msg *domain.IdentifyMessage) error

	// HandlePastorStartPraying opens a prayer session and announces it to everyone.
	HandlePastorStartPraying(ctx context.Context, client *hub.Client, msg *domain.PastorStartPrayingMessage) error

	// HandlePastorStopPraying closes a prayer session and announces it to everyone.
	HandlePastorStopPraying(ctx context.Context, client *hub.Client, msg *domain.PastorStopPrayingMessage) error

	// HandlePrayerInteraction relays prayer_sent and amem to everyone.
	HandlePrayerInteraction(ctx context.Context, client *hub.Client, msg *domain.PrayerInteractionMessage) error
}

// LiveService handles live stream signaling.
type LiveService interface {
	HandleStart(ctx context.Context, client *hub.Client, msg *domain.LiveStartMessage) error
	HandleStop(ctx context.Context, client *hub.Client, msg *domain.LiveStopMessage) error
	HandleJoin(ctx context.Context, client *hub.Client, msg *domain.LiveViewerMessage) error
	HandleLeave(ctx context.Context, client *hub.Client, msg *domain.LiveViewerMessage) error
	HandleOffer(ctx context.Context, client *hub.Client, msg *domain.LiveOfferMessage) error
	HandleAnswer(ctx context.Context, client *hub.Client, msg *domain.LiveAnswerMessage) error
	HandleICECandidate(ctx context.Context, client *hub.Client, msg *domain.LiveICECandidateMessage) error
	HandleChat(ctx context.Context, client *hub.Client, msg *domain.LiveChatMessage) error
	HandleReaction(ctx context.Context, client *hub.Client, msg *domain.LiveReactionMessage) error
	HandleList(ctx context.Context, client *hub.Client) error

	// HandleDisconnect stops the client's stream or removes it as a viewer.
	HandleDisconnect(ctx context.Context, client *hub.Client) error

	// Snapshot lists active streams. Loop only.
	Snapshot() []domain.LiveStreamInfo
}

// ChatService handles translated chat rooms.
type ChatService interface {
	HandleJoinRoom(ctx context.Context, client *hub.Client, msg *domain.ChatJoinRoomMessage) error
	HandleMessage(ctx context.Context, client *hub.Client, msg *domain.ChatMessageMessage) error
	HandleTyping(ctx context.Context, client *hub.Client, msg *domain.ChatTypingMessage) error
	HandleLeaveRoom(ctx context.Context, client *hub.Client, msg *domain.ChatLeaveRoomMessage) error

	// HandleDisconnect announces the client leaving its room.
	HandleDisconnect(ctx context.Context, client *hub.Client) error
}
