package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
)

func TestPresence_PastorCountRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	sessions := newFakeSessionStore()
	svc := NewPresenceService(env.registry, syncScheduler{}, sessions, nil)
	ctx := context.Background()
	pastor := env.connect("pastor")
	listener := env.connect("listener")

	require.NoError(t, svc.HandleIdentify(ctx, listener, &domain.IdentifyMessage{UserID: "u1", ChurchID: "ch1"}))
	reply := ofType(drain(t, listener), domain.MsgTypeLiveSessions)
	require.Len(t, reply, 1)
	assert.EqualValues(t, 0, reply[0]["liveCount"])
	assert.Empty(t, reply[0]["sessions"])
	assert.Equal(t, "u1", listener.Session.UserID)

	require.NoError(t, svc.HandlePastorStartPraying(ctx, pastor, &domain.PastorStartPrayingMessage{
		PastorID:   "p1",
		ChurchID:   "ch1",
		Focus:      "healing",
		PastorName: "John",
	}))
	started := ofType(drain(t, listener), domain.MsgTypePastorPraying)
	require.Len(t, started, 1)
	assert.Equal(t, domain.PrayingStarted, started[0]["action"])
	assert.EqualValues(t, 1, started[0]["liveCount"])
	assert.Equal(t, "healing", started[0]["focus"])
	sessionID := started[0]["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	drain(t, pastor)

	require.NoError(t, svc.HandlePastorStopPraying(ctx, pastor, &domain.PastorStopPrayingMessage{SessionID: sessionID}))
	stopped := ofType(drain(t, listener), domain.MsgTypePastorPraying)
	require.Len(t, stopped, 1)
	assert.Equal(t, domain.PrayingStopped, stopped[0]["action"])
	assert.EqualValues(t, 0, stopped[0]["liveCount"])

	require.NoError(t, svc.HandlePastorStopPraying(ctx, pastor, &domain.PastorStopPrayingMessage{SessionID: sessionID}))
	assert.Empty(t, drain(t, listener))
}

func TestPresence_StoreFailureSkipsBroadcast(t *testing.T) {
	env := newTestEnv(t)
	sessions := newFakeSessionStore()
	sessions.err = errors.New("db down")
	svc := NewPresenceService(env.registry, syncScheduler{}, sessions, nil)
	ctx := context.Background()
	c := env.connect("c")

	require.NoError(t, svc.HandlePastorStartPraying(ctx, c, &domain.PastorStartPrayingMessage{PastorID: "p1"}))
	require.NoError(t, svc.HandleIdentify(ctx, c, &domain.IdentifyMessage{UserID: "u1"}))

	assert.Empty(t, drain(t, c))
	assert.Equal(t, "u1", c.Session.UserID)
}

func TestPresence_IdentifyRequiresUserID(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPresenceService(env.registry, syncScheduler{}, newFakeSessionStore(), nil)
	c := env.connect("c")

	err := svc.HandleIdentify(context.Background(), c, &domain.IdentifyMessage{})

	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.False(t, c.Session.IsIdentified())
}

func TestPresence_InteractionsRelayedToEveryone(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPresenceService(env.registry, syncScheduler{}, newFakeSessionStore(), nil)
	ctx := context.Background()
	sender := env.connect("sender")
	other := env.connect("other")
	require.NoError(t, svc.HandleIdentify(ctx, sender, &domain.IdentifyMessage{UserID: "u1"}))
	drain(t, sender)

	require.NoError(t, svc.HandlePrayerInteraction(ctx, sender, &domain.PrayerInteractionMessage{
		Type:     domain.MsgTypeAmem,
		PrayerID: "pr1",
	}))

	for _, c := range []*hub.Client{sender, other} {
		got := ofType(drain(t, c), domain.MsgTypeNewPrayerResponse)
		require.Len(t, got, 1, c.ID)
		assert.Equal(t, "amem", got[0]["kind"])
		assert.Equal(t, "u1", got[0]["userId"])
	}
}
