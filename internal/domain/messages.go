package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeIdentify           = "identify"
	MsgTypePastorStartPraying = "pastor_start_praying"
	MsgTypePastorStopPraying  = "pastor_stop_praying"
	MsgTypePrayerSent         = "prayer_sent"
	MsgTypeAmem               = "amem"

	MsgTypeLiveList         = "live_list"
	MsgTypeLiveStart        = "live_start"
	MsgTypeLiveStop         = "live_stop"
	MsgTypeLiveJoin         = "live_join"
	MsgTypeLiveLeave        = "live_leave"
	MsgTypeLiveOffer        = "live_offer"
	MsgTypeLiveAnswer       = "live_answer"
	MsgTypeLiveICECandidate = "live_ice_candidate"
	MsgTypeLiveChat         = "live_chat"
	MsgTypeLiveReaction     = "live_reaction"

	MsgTypeChatJoinRoom  = "chat_join_room"
	MsgTypeChatMessage   = "chat_message"
	MsgTypeChatTyping    = "chat_typing"
	MsgTypeChatLeaveRoom = "chat_leave_room"

	MsgTypePing = "ping"
)

// WebSocket message types to client. live_offer, live_answer,
// live_ice_candidate, live_reaction and chat_typing are relayed under their
// inbound names.
const (
	MsgTypeLiveSessions      = "live_sessions"
	MsgTypePastorPraying     = "pastor_praying"
	MsgTypeNewPrayerResponse = "new_prayer_response"

	MsgTypeLiveStreamsList = "live_streams_list"
	MsgTypeLiveStarted     = "live_started"
	MsgTypeLiveStopped     = "live_stopped"
	MsgTypeLiveViewerCount = "live_viewer_count"
	MsgTypeLiveViewerLeft  = "live_viewer_left"
	MsgTypeLiveError       = "live_error"
	MsgTypeLiveChatMessage = "live_chat_message"

	MsgTypeChatUserJoined = "chat_user_joined"
	MsgTypeChatNewMessage = "chat_new_message"
	MsgTypeChatUserLeft   = "chat_user_left"

	MsgTypePong = "pong"
)

// Error codes carried by live_error.
const (
	ErrCodeStreamFull   = "STREAM_FULL"
	ErrCodeStreamExists = "STREAM_EXISTS"
)

// Prayer actions carried by pastor_praying.
const (
	PrayingStarted = "started"
	PrayingStopped = "stopped"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type IdentifyMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	ChurchID string `json:"churchId,omitempty"`
}

type PastorStartPrayingMessage struct {
	Type       string `json:"type"`
	PastorID   string `json:"pastorId"`
	ChurchID   string `json:"churchId"`
	Focus      string `json:"focus"`
	PastorName string `json:"pastorName,omitempty"`
	ChurchName string `json:"churchName,omitempty"`
}

type PastorStopPrayingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// PrayerInteractionMessage is the body of prayer_sent and amem.
type PrayerInteractionMessage struct {
	Type      string `json:"type"`
	PrayerID  string `json:"prayerId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	Message   string `json:"message,omitempty"`
}

type LiveStartMessage struct {
	Type              string `json:"type"`
	StreamID          string `json:"streamId"`
	BroadcasterID     string `json:"broadcasterId"`
	BroadcasterName   string `json:"broadcasterName"`
	BroadcasterAvatar string `json:"broadcasterAvatar,omitempty"`
}

type LiveStopMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
}

// LiveViewerMessage is the body of live_join and live_leave.
type LiveViewerMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	ViewerID string `json:"viewerId"`
}

type LiveChatMessage struct {
	Type       string `json:"type"`
	StreamID   string `json:"streamId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

// Relayed in both directions

// LiveOfferMessage carries a viewer's SDP offer to the broadcaster.
type LiveOfferMessage struct {
	Type     string          `json:"type"`
	StreamID string          `json:"streamId"`
	ViewerID string          `json:"viewerId"`
	Offer    json.RawMessage `json:"offer"`
}

// LiveAnswerMessage carries the broadcaster's SDP answer to one viewer.
type LiveAnswerMessage struct {
	Type     string          `json:"type"`
	StreamID string          `json:"streamId"`
	ViewerID string          `json:"viewerId"`
	Answer   json.RawMessage `json:"answer"`
}

// LiveICECandidateMessage carries an ICE candidate to TargetID. FromID is
// filled in by the hub on the way out.
type LiveICECandidateMessage struct {
	Type      string          `json:"type"`
	StreamID  string          `json:"streamId"`
	TargetID  string          `json:"targetId"`
	FromID    string          `json:"fromId,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

type LiveReactionMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	SenderID string `json:"senderId,omitempty"`
	Reaction string `json:"reaction"`
}

type ChatJoinRoomMessage struct {
	Type     string   `json:"type"`
	RoomID   string   `json:"roomId"`
	Role     ChatRole `json:"role"`
	Name     string   `json:"name"`
	Language string   `json:"language"`
}

type ChatMessageMessage struct {
	Type       string   `json:"type"`
	RoomID     string   `json:"roomId"`
	Role       ChatRole `json:"role"`
	Name       string   `json:"name"`
	Text       string   `json:"text"`
	SourceLang string   `json:"sourceLang"`
	TargetLang string   `json:"targetLang"`
}

type ChatTypingMessage struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	Role   ChatRole `json:"role"`
	Name   string   `json:"name"`
}

type ChatLeaveRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// Server -> Client messages

type LiveSessionsMessage struct {
	Type      string          `json:"type"`
	Sessions  []PrayerSession `json:"sessions"`
	LiveCount int             `json:"liveCount"`
}

type PastorPrayingMessage struct {
	Type            string `json:"type"`
	Action          string `json:"action"`
	SessionID       string `json:"sessionId"`
	PastorID        string `json:"pastorId,omitempty"`
	ChurchID        string `json:"churchId,omitempty"`
	PastorName      string `json:"pastorName,omitempty"`
	ChurchName      string `json:"churchName,omitempty"`
	Focus           string `json:"focus,omitempty"`
	DurationSeconds int64  `json:"durationSeconds,omitempty"`
	LiveCount       int    `json:"liveCount"`
}

type NewPrayerResponseMessage struct {
	Type      string `json:"type"`
	Kind      string `json:"kind"` // prayer_sent or amem
	PrayerID  string `json:"prayerId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// LiveStreamInfo is the public view of a stream.
type LiveStreamInfo struct {
	StreamID          string `json:"streamId"`
	BroadcasterID     string `json:"broadcasterId"`
	BroadcasterName   string `json:"broadcasterName"`
	BroadcasterAvatar string `json:"broadcasterAvatar,omitempty"`
	ViewerCount       int    `json:"viewerCount"`
	StartedAt         int64  `json:"startedAt"`
}

type LiveStreamsListMessage struct {
	Type    string           `json:"type"`
	Streams []LiveStreamInfo `json:"streams"`
}

type LiveStartedMessage struct {
	Type string `json:"type"`
	LiveStreamInfo
}

type LiveStoppedMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
}

type LiveViewerCountMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Count    int    `json:"count"`
}

type LiveViewerLeftMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	ViewerID string `json:"viewerId"`
}

type LiveErrorMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type LiveChatOutMessage struct {
	Type       string `json:"type"`
	StreamID   string `json:"streamId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

type ChatUserJoinedMessage struct {
	Type     string   `json:"type"`
	RoomID   string   `json:"roomId"`
	Role     ChatRole `json:"role"`
	Name     string   `json:"name"`
	Language string   `json:"language,omitempty"`
}

type ChatUserLeftMessage struct {
	Type   string   `json:"type"`
	RoomID string   `json:"roomId"`
	Role   ChatRole `json:"role"`
	Name   string   `json:"name"`
}

type ChatNewMessageMessage struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type PongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewLiveErrorMessage builds a live_error reply.
func NewLiveErrorMessage(streamID, code, message string) *LiveErrorMessage {
	return &LiveErrorMessage{
		Type:     MsgTypeLiveError,
		StreamID: streamID,
		Code:     code,
		Message:  message,
	}
}
