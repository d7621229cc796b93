package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/service"
	"github.com/weiawesome/amen-live/internal/store"
	"github.com/weiawesome/amen-live/pkg/database"
)

func newWSServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, store.Models()...))
	t.Cleanup(func() { database.Close(db) })

	h := hub.NewHub(config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 8192,
		SendBufferSize: 32,
	}, nil)
	presence := service.NewPresenceService(h, h, store.NewGormSessionStore(db), nil)
	live := service.NewLiveService(h, h, nil, 10, nil)
	chat := service.NewChatService(h, h, nil, store.NewGormChatStore(db), nil)
	h.SetHandler(service.NewRouter(h, presence, live, chat, nil))

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	engine := gin.New()
	NewWSHandler(h, nil).RegisterRoutes(engine)
	srv := httptest.NewServer(engine)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-h.Done()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == msgType {
			return msg
		}
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	url := newWSServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	msg := readUntil(t, conn, "pong")
	assert.NotZero(t, msg["timestamp"])
}

func TestWebSocket_BroadcasterDisconnectStopsStream(t *testing.T) {
	url := newWSServer(t)
	broadcaster := dial(t, url)
	viewer := dial(t, url)

	require.NoError(t, broadcaster.WriteJSON(map[string]string{
		"type": "live_start", "streamId": "s1", "broadcasterId": "b1", "broadcasterName": "John",
	}))
	readUntil(t, viewer, "live_started")

	require.NoError(t, viewer.WriteJSON(map[string]string{"type": "live_join", "streamId": "s1", "viewerId": "v1"}))
	count := readUntil(t, broadcaster, "live_viewer_count")
	assert.EqualValues(t, 1, count["count"])

	broadcaster.Close()

	stopped := readUntil(t, viewer, "live_stopped")
	assert.Equal(t, "s1", stopped["streamId"])

	require.NoError(t, viewer.WriteJSON(map[string]string{"type": "live_list"}))
	list := readUntil(t, viewer, "live_streams_list")
	assert.Empty(t, list["streams"])
}

func TestWebSocket_PrayerSessionRoundTrip(t *testing.T) {
	url := newWSServer(t)
	pastor := dial(t, url)
	member := dial(t, url)

	require.NoError(t, member.WriteJSON(map[string]string{"type": "identify", "userId": "u1"}))
	sessions := readUntil(t, member, "live_sessions")
	assert.EqualValues(t, 0, sessions["liveCount"])

	require.NoError(t, pastor.WriteJSON(map[string]string{
		"type": "pastor_start_praying", "pastorId": "p1", "churchId": "c1", "focus": "families",
	}))
	started := readUntil(t, member, "pastor_praying")
	assert.Equal(t, "started", started["action"])
	assert.EqualValues(t, 1, started["liveCount"])

	require.NoError(t, pastor.WriteJSON(map[string]interface{}{
		"type": "pastor_stop_praying", "sessionId": started["sessionId"],
	}))
	stopped := readUntil(t, member, "pastor_praying")
	assert.Equal(t, "stopped", stopped["action"])
	assert.EqualValues(t, 0, stopped["liveCount"])
}
