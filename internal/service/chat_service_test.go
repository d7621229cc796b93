package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/amen-live/internal/client"
	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
)

func newChatFixture(t *testing.T, translator client.Translator) (*testEnv, ChatService, *fakeChatStore) {
	env := newTestEnv(t)
	chatStore := &fakeChatStore{}
	return env, NewChatService(env.registry, syncScheduler{}, translator, chatStore, nil), chatStore
}

func joinRoom(t *testing.T, svc ChatService, c *hub.Client, roomID string, role domain.ChatRole, name, lang string) {
	t.Helper()
	require.NoError(t, svc.HandleJoinRoom(context.Background(), c, &domain.ChatJoinRoomMessage{
		RoomID:   roomID,
		Role:     role,
		Name:     name,
		Language: lang,
	}))
}

func TestChatJoinRoom_NotifiesOthersOnly(t *testing.T) {
	env, svc, _ := newChatFixture(t, nil)
	pastor := env.connect("pastor")
	requester := env.connect("requester")
	elsewhere := env.connect("elsewhere")
	joinRoom(t, svc, pastor, "r1", domain.ChatRolePastor, "Pastor John", "en")
	joinRoom(t, svc, elsewhere, "r2", domain.ChatRoleRequester, "Eve", "en")

	joinRoom(t, svc, requester, "r1", domain.ChatRoleRequester, "Maria", "pt")

	joined := ofType(drain(t, pastor), domain.MsgTypeChatUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "Maria", joined[0]["name"])
	assert.Equal(t, "requester", joined[0]["role"])
	assert.Empty(t, drain(t, requester))
	assert.Empty(t, drain(t, elsewhere))
}

func TestChatJoinRoom_RejectsUnknownRole(t *testing.T) {
	env, svc, _ := newChatFixture(t, nil)
	c := env.connect("c")

	err := svc.HandleJoinRoom(context.Background(), c, &domain.ChatJoinRoomMessage{RoomID: "r1", Role: "admin"})

	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.False(t, c.Session.IsInChatRoom())
}

func TestChatMessage_TranslatedPersistedAndBroadcast(t *testing.T) {
	translator := &fakeTranslator{dict: map[string]string{"Hello": "Olá"}}
	env, svc, chatStore := newChatFixture(t, translator)
	pastor := env.connect("pastor")
	requester := env.connect("requester")
	joinRoom(t, svc, pastor, "r1", domain.ChatRolePastor, "Pastor John", "en")
	joinRoom(t, svc, requester, "r1", domain.ChatRoleRequester, "Maria", "pt")
	drain(t, pastor)

	require.NoError(t, svc.HandleMessage(context.Background(), pastor, &domain.ChatMessageMessage{
		RoomID:     "r1",
		Role:       domain.ChatRolePastor,
		Name:       "Pastor John",
		Text:       "Hello",
		SourceLang: "en",
		TargetLang: "pt",
	}))

	require.Len(t, chatStore.messages, 1)
	stored := chatStore.messages[0]
	assert.Equal(t, "Hello", stored.OriginalText)
	assert.Equal(t, "Olá", stored.TranslatedText)
	assert.NotEmpty(t, stored.ID)

	for _, c := range []*hub.Client{pastor, requester} {
		msgs := ofType(drain(t, c), domain.MsgTypeChatNewMessage)
		require.Len(t, msgs, 1)
		body := msgs[0]["message"].(map[string]interface{})
		assert.Equal(t, "Hello", body["originalText"])
		assert.Equal(t, "Olá", body["translatedText"])
		assert.Equal(t, stored.ID, body["id"])
	}
	assert.Equal(t, 1, translator.calls)
}

func TestChatMessage_SameLanguageSkipsTranslator(t *testing.T) {
	translator := &fakeTranslator{dict: map[string]string{"Hi": "Oi"}}
	env, svc, chatStore := newChatFixture(t, translator)
	c := env.connect("c")
	joinRoom(t, svc, c, "r1", domain.ChatRoleRequester, "Maria", "en")

	require.NoError(t, svc.HandleMessage(context.Background(), c, &domain.ChatMessageMessage{
		RoomID: "r1", Text: "Hi", SourceLang: "en", TargetLang: "en",
	}))

	assert.Equal(t, 0, translator.calls)
	require.Len(t, chatStore.messages, 1)
	assert.Equal(t, "Hi", chatStore.messages[0].TranslatedText)
	assert.Equal(t, domain.ChatRoleRequester, chatStore.messages[0].SenderRole)
	assert.Equal(t, "Maria", chatStore.messages[0].SenderName)
}

func TestChatMessage_FailuresFallBack(t *testing.T) {
	translator := &fakeTranslator{err: errors.New("upstream down")}
	env, svc, chatStore := newChatFixture(t, translator)
	chatStore.err = errors.New("disk full")
	c := env.connect("c")
	joinRoom(t, svc, c, "r1", domain.ChatRolePastor, "John", "en")

	require.NoError(t, svc.HandleMessage(context.Background(), c, &domain.ChatMessageMessage{
		RoomID: "r1", Text: "Peace", SourceLang: "en", TargetLang: "es",
	}))

	msgs := ofType(drain(t, c), domain.MsgTypeChatNewMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Peace", msgs[0]["message"].(map[string]interface{})["translatedText"])
}

func TestChatTyping_ExcludesSender(t *testing.T) {
	env, svc, _ := newChatFixture(t, nil)
	a := env.connect("a")
	b := env.connect("b")
	joinRoom(t, svc, a, "r1", domain.ChatRolePastor, "John", "en")
	joinRoom(t, svc, b, "r1", domain.ChatRoleRequester, "Maria", "pt")
	drain(t, a)

	require.NoError(t, svc.HandleTyping(context.Background(), b, &domain.ChatTypingMessage{RoomID: "r1"}))

	typing := ofType(drain(t, a), domain.MsgTypeChatTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, "Maria", typing[0]["name"])
	assert.Empty(t, drain(t, b))
}

func TestChatLeaveAndDisconnect_AnnounceOnce(t *testing.T) {
	env, svc, _ := newChatFixture(t, nil)
	a := env.connect("a")
	b := env.connect("b")
	joinRoom(t, svc, a, "r1", domain.ChatRolePastor, "John", "en")
	joinRoom(t, svc, b, "r1", domain.ChatRoleRequester, "Maria", "pt")
	drain(t, a)

	require.NoError(t, svc.HandleLeaveRoom(context.Background(), b, &domain.ChatLeaveRoomMessage{RoomID: "r1"}))
	left := ofType(drain(t, a), domain.MsgTypeChatUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "Maria", left[0]["name"])
	assert.Equal(t, "requester", left[0]["role"])
	assert.False(t, b.Session.IsInChatRoom())

	require.NoError(t, svc.HandleDisconnect(context.Background(), b))
	assert.Empty(t, drain(t, a))

	require.NoError(t, svc.HandleDisconnect(context.Background(), a))
	assert.False(t, a.Session.IsInChatRoom())
}

func TestChatJoinRoom_SwitchingRoomsLeavesPrevious(t *testing.T) {
	env, svc, _ := newChatFixture(t, nil)
	a := env.connect("a")
	b := env.connect("b")
	joinRoom(t, svc, a, "r1", domain.ChatRolePastor, "John", "en")
	joinRoom(t, svc, b, "r1", domain.ChatRoleRequester, "Maria", "pt")
	drain(t, a)

	joinRoom(t, svc, b, "r2", domain.ChatRoleRequester, "Maria", "pt")

	assert.Len(t, ofType(drain(t, a), domain.MsgTypeChatUserLeft), 1)
	assert.Equal(t, "r2", b.Session.ChatRoomID)
}
