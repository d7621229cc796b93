package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/notify"
	"github.com/weiawesome/amen-live/internal/store"
	"github.com/weiawesome/amen-live/pkg/log"
	"github.com/weiawesome/amen-live/pkg/middleware"
	"github.com/weiawesome/amen-live/pkg/response"
)

const (
	// ScopeBroadcast grants access to POST /internal/broadcast.
	ScopeBroadcast = "hub:broadcast"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	maxBroadcastBody    = 64 << 10
	loopCallTimeout     = 2 * time.Second
)

// LoopCaller runs a function on the hub loop. *hub.Hub implements it.
type LoopCaller interface {
	Call(ctx context.Context, fn func()) error
}

// StreamLister lists the active live streams. It must run on the hub loop.
type StreamLister interface {
	Snapshot() []domain.LiveStreamInfo
}

// Notifier pushes a backend notification to every connection.
type Notifier interface {
	BroadcastAll(ctx context.Context, subject string, data []byte) error
}

// HTTPHandler serves the REST surface next to the WebSocket endpoint.
type HTTPHandler struct {
	loop       LoopCaller
	streams    StreamLister
	history    store.ChatHistory
	webrtc     config.WebRTCConfig
	httpClient *http.Client
	notifier   Notifier
	auth       *middleware.AuthMiddleware
}

// NewHTTPHandler creates a new HTTP handler. history and auth may be nil,
// in which case their routes are not registered.
func NewHTTPHandler(
	loop LoopCaller,
	streams StreamLister,
	history store.ChatHistory,
	webrtc config.WebRTCConfig,
	notifier Notifier,
	auth *middleware.AuthMiddleware,
) *HTTPHandler {
	return &HTTPHandler{
		loop:       loop,
		streams:    streams,
		history:    history,
		webrtc:     webrtc,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		notifier:   notifier,
		auth:       auth,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)
	r.GET("/api/ice-servers", h.GetICEServers)

	api := r.Group("/api/v1")
	{
		api.GET("/live/streams", h.ListStreams)
		if h.history != nil {
			api.GET("/chat/rooms/:roomId/messages", h.GetRoomMessages)
		}
	}

	if h.auth != nil {
		internal := r.Group("/internal", h.auth.RequireScope(ScopeBroadcast))
		internal.POST("/broadcast", h.Broadcast)
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// GetICEServers returns the ICE servers clients should use for WebRTC.
func (h *HTTPHandler) GetICEServers(c *gin.Context) {
	servers, err := h.webrtc.GetICEServers(c.Request.Context(), h.httpClient)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("TURN credentials unavailable, serving static ICE servers")
	}
	c.JSON(http.StatusOK, gin.H{"iceServers": servers})
}

// ListStreams returns the same snapshot as the live_list message.
func (h *HTTPHandler) ListStreams(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), loopCallTimeout)
	defer cancel()

	var infos []domain.LiveStreamInfo
	if err := h.loop.Call(ctx, func() { infos = h.streams.Snapshot() }); err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("stream snapshot unavailable")
		response.ServiceUnavailable(c, "hub unavailable")
		return
	}

	response.Success(c, gin.H{"streams": infos})
}

// GetRoomMessages returns the most recent messages of a chat room, oldest first.
func (h *HTTPHandler) GetRoomMessages(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		response.BadRequest(c, "roomId is required")
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
	}

	messages, err := h.history.ListRoomMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list chat messages")
		response.InternalError(c, "failed to get chat history")
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}

	response.Success(c, gin.H{"messages": messages})
}

// Broadcast pushes the request body to every connected client.
func (h *HTTPHandler) Broadcast(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBroadcastBody))
	if err != nil {
		response.BadRequest(c, "body too large or unreadable")
		return
	}

	err = h.notifier.BroadcastAll(c.Request.Context(), middleware.GetSubject(c), body)
	switch {
	case err == nil:
		response.Accepted(c, gin.H{"delivered": true})
	case errors.Is(err, notify.ErrInvalidPayload):
		response.BadRequest(c, err.Error())
	case errors.Is(err, hub.ErrHubClosed):
		response.ServiceUnavailable(c, "hub unavailable")
	default:
		// local delivery succeeded, the bus did not
		response.BadGateway(c, "delivered locally only")
	}
}
