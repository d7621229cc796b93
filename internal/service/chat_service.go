package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weiawesome/amen-live/internal/audit"
	"github.com/weiawesome/amen-live/internal/client"
	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/metrics"
	"github.com/weiawesome/amen-live/internal/store"
	"github.com/weiawesome/amen-live/pkg/log"
)

// Translation results recorded in metrics.
const (
	translationOK       = "ok"
	translationFallback = "fallback"
	translationSkipped  = "skipped"
)

type chatService struct {
	fanout     Fanout
	sched      Scheduler
	translator client.Translator
	store      store.ChatStore
	metrics    *metrics.Metrics
}

// NewChatService creates a new ChatService instance. A nil translator
// relays every message untranslated.
func NewChatService(fanout Fanout, sched Scheduler, translator client.Translator, chatStore store.ChatStore, m *metrics.Metrics) ChatService {
	return &chatService{
		fanout:     fanout,
		sched:      sched,
		translator: translator,
		store:      chatStore,
		metrics:    m,
	}
}

func (s *chatService) HandleJoinRoom(ctx context.Context, c *hub.Client, msg *domain.ChatJoinRoomMessage) error {
	if msg.RoomID == "" {
		return fmt.Errorf("%w: chat_join_room without roomId", ErrInvalidMessage)
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: unknown chat role %q", ErrInvalidMessage, msg.Role)
	}

	if c.Session.IsInChatRoom() && c.Session.ChatRoomID != msg.RoomID {
		s.leaveRoom(ctx, c)
	}
	c.Session.JoinChatRoom(msg.RoomID, msg.Role, msg.Name, msg.Language)

	s.fanout.BroadcastToRoom(msg.RoomID, &domain.ChatUserJoinedMessage{
		Type:     domain.MsgTypeChatUserJoined,
		RoomID:   msg.RoomID,
		Role:     msg.Role,
		Name:     msg.Name,
		Language: msg.Language,
	}, c)

	audit.LogWithDetail(ctx, audit.ActionChatJoinRoom, c.Session.UserID, msg.RoomID, string(msg.Role), "joined chat room")
	return nil
}

func (s *chatService) HandleMessage(ctx context.Context, c *hub.Client, msg *domain.ChatMessageMessage) error {
	if msg.RoomID == "" || strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("%w: chat_message without roomId or text", ErrInvalidMessage)
	}

	role, name := msg.Role, msg.Name
	if role == "" && c.Session.ChatRoomID == msg.RoomID {
		role = c.Session.ChatRole
	}
	if name == "" && c.Session.ChatRoomID == msg.RoomID {
		name = c.Session.ChatName
	}

	record := domain.ChatMessage{
		RoomID:       msg.RoomID,
		SenderRole:   role,
		SenderName:   name,
		OriginalText: msg.Text,
		SourceLang:   msg.SourceLang,
		TargetLang:   msg.TargetLang,
	}

	s.sched.Async(func(workCtx context.Context) func() {
		workCtx = log.WithLogger(workCtx, log.Ctx(ctx).With().Str(log.FieldRoomID, record.RoomID).Logger())
		l := log.Ctx(workCtx)

		record.ID = uuid.NewString()
		record.CreatedAt = time.Now().UTC()
		record.TranslatedText = s.translate(workCtx, record.OriginalText, record.SourceLang, record.TargetLang)

		if err := s.store.InsertMessage(workCtx, &record); err != nil {
			s.metrics.StoreError("insert_chat_message")
			l.Error().Err(err).Str("message_id", record.ID).Msg("failed to persist chat message")
		}

		return func() {
			s.fanout.BroadcastToRoom(record.RoomID, &domain.ChatNewMessageMessage{
				Type:    domain.MsgTypeChatNewMessage,
				Message: record,
			}, nil)
		}
	})
	return nil
}

func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, msg *domain.ChatTypingMessage) error {
	if msg.RoomID == "" {
		return fmt.Errorf("%w: chat_typing without roomId", ErrInvalidMessage)
	}

	role, name := msg.Role, msg.Name
	if role == "" {
		role = c.Session.ChatRole
	}
	if name == "" {
		name = c.Session.ChatName
	}
	s.fanout.BroadcastToRoom(msg.RoomID, &domain.ChatTypingMessage{
		Type:   domain.MsgTypeChatTyping,
		RoomID: msg.RoomID,
		Role:   role,
		Name:   name,
	}, c)
	return nil
}

func (s *chatService) HandleLeaveRoom(ctx context.Context, c *hub.Client, msg *domain.ChatLeaveRoomMessage) error {
	if !c.Session.IsInChatRoom() || c.Session.ChatRoomID != msg.RoomID {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldRoomID, msg.RoomID).Msg("chat_leave_room for a room the connection is not in ignored")
		return nil
	}
	s.leaveRoom(ctx, c)
	return nil
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	if c.Session.IsInChatRoom() {
		s.leaveRoom(ctx, c)
	}
	return nil
}

func (s *chatService) leaveRoom(ctx context.Context, c *hub.Client) {
	sess := c.Session
	roomID := sess.ChatRoomID

	s.fanout.BroadcastToRoom(roomID, &domain.ChatUserLeftMessage{
		Type:   domain.MsgTypeChatUserLeft,
		RoomID: roomID,
		Role:   sess.ChatRole,
		Name:   sess.ChatName,
	}, c)
	sess.LeaveChatRoom()

	audit.Log(ctx, audit.ActionChatLeaveRoom, sess.UserID, roomID, "left chat room")
}

// translate returns the text to relay. Any failure falls back to the
// original text.
func (s *chatService) translate(ctx context.Context, text, sourceLang, targetLang string) string {
	if s.translator == nil || sourceLang == "" || targetLang == "" || strings.EqualFold(sourceLang, targetLang) {
		s.metrics.Translation(translationSkipped)
		return text
	}

	translated, err := s.translator.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		l := log.Ctx(ctx)
		if errors.Is(err, client.ErrTranslationDisabled) {
			l.Debug().Msg("translation disabled, relaying original text")
		} else {
			l.Warn().Err(err).Str("source", sourceLang).Str("target", targetLang).Msg("translation failed, relaying original text")
		}
		s.metrics.Translation(translationFallback)
		return text
	}

	s.metrics.Translation(translationOK)
	return translated
}
