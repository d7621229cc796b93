package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/metrics"
	"github.com/weiawesome/amen-live/pkg/log"
)

// Router decodes inbound messages by their type tag and hands them to the
// owning service. It implements hub.MessageHandler.
type Router struct {
	fanout   Fanout
	presence PresenceService
	live     LiveService
	chat     ChatService
	metrics  *metrics.Metrics
}

var _ hub.MessageHandler = (*Router)(nil)

// NewRouter creates a new Router.
func NewRouter(fanout Fanout, presence PresenceService, live LiveService, chat ChatService, m *metrics.Metrics) *Router {
	return &Router{
		fanout:   fanout,
		presence: presence,
		live:     live,
		chat:     chat,
		metrics:  m,
	}
}

// HandleMessage routes one inbound message. Malformed and unknown messages
// are logged and dropped without a reply.
func (r *Router) HandleMessage(ctx context.Context, c *hub.Client, data []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil || base.Type == "" {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int("size", len(data)).Msg("malformed message dropped")
		return
	}

	l := log.Ctx(ctx).With().Str(log.FieldMsgType, base.Type).Logger()
	ctx = log.WithLogger(ctx, l)

	var err error
	switch base.Type {
	case domain.MsgTypeIdentify:
		var msg domain.IdentifyMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.presence.HandleIdentify(ctx, c, &msg)
		}

	case domain.MsgTypePastorStartPraying:
		var msg domain.PastorStartPrayingMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.presence.HandlePastorStartPraying(ctx, c, &msg)
		}

	case domain.MsgTypePastorStopPraying:
		var msg domain.PastorStopPrayingMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.presence.HandlePastorStopPraying(ctx, c, &msg)
		}

	case domain.MsgTypePrayerSent, domain.MsgTypeAmem:
		var msg domain.PrayerInteractionMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.presence.HandlePrayerInteraction(ctx, c, &msg)
		}

	case domain.MsgTypeLiveList:
		err = r.live.HandleList(ctx, c)

	case domain.MsgTypeLiveStart:
		var msg domain.LiveStartMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleStart(ctx, c, &msg)
		}

	case domain.MsgTypeLiveStop:
		var msg domain.LiveStopMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleStop(ctx, c, &msg)
		}

	case domain.MsgTypeLiveJoin:
		var msg domain.LiveViewerMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleJoin(ctx, c, &msg)
		}

	case domain.MsgTypeLiveLeave:
		var msg domain.LiveViewerMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleLeave(ctx, c, &msg)
		}

	case domain.MsgTypeLiveOffer:
		var msg domain.LiveOfferMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleOffer(ctx, c, &msg)
		}

	case domain.MsgTypeLiveAnswer:
		var msg domain.LiveAnswerMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleAnswer(ctx, c, &msg)
		}

	case domain.MsgTypeLiveICECandidate:
		var msg domain.LiveICECandidateMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleICECandidate(ctx, c, &msg)
		}

	case domain.MsgTypeLiveChat:
		var msg domain.LiveChatMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleChat(ctx, c, &msg)
		}

	case domain.MsgTypeLiveReaction:
		var msg domain.LiveReactionMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.live.HandleReaction(ctx, c, &msg)
		}

	case domain.MsgTypeChatJoinRoom:
		var msg domain.ChatJoinRoomMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.chat.HandleJoinRoom(ctx, c, &msg)
		}

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.chat.HandleMessage(ctx, c, &msg)
		}

	case domain.MsgTypeChatTyping:
		var msg domain.ChatTypingMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.chat.HandleTyping(ctx, c, &msg)
		}

	case domain.MsgTypeChatLeaveRoom:
		var msg domain.ChatLeaveRoomMessage
		if err = json.Unmarshal(data, &msg); err == nil {
			err = r.chat.HandleLeaveRoom(ctx, c, &msg)
		}

	case domain.MsgTypePing:
		r.fanout.Send(c, &domain.PongMessage{
			Type:      domain.MsgTypePong,
			Timestamp: time.Now().UnixMilli(),
		})

	default:
		r.metrics.MessageReceived("unknown")
		l.Warn().Msg("unknown message type dropped")
		return
	}

	r.metrics.MessageReceived(base.Type)
	if err != nil {
		l.Warn().Err(err).Msg("message not handled")
	}
}

// HandleDisconnect revokes the client's stream and room memberships. It runs
// once per connection, before the client leaves the registry.
func (r *Router) HandleDisconnect(ctx context.Context, c *hub.Client) {
	l := log.Ctx(ctx)

	if err := r.live.HandleDisconnect(ctx, c); err != nil {
		l.Error().Err(err).Msg("live cleanup failed")
	}
	if err := r.chat.HandleDisconnect(ctx, c); err != nil {
		l.Error().Err(err).Msg("chat cleanup failed")
	}

	l.Debug().
		Str(log.FieldUserID, c.Session.UserID).
		Dur("connected_for", time.Since(c.Session.ConnectedAt)).
		Msg("client disconnected")
}
