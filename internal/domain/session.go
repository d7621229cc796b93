package domain

import "time"

// LiveRole is the part a connection plays in a stream.
type LiveRole string

const (
	LiveRoleNone        LiveRole = ""
	LiveRoleBroadcaster LiveRole = "broadcaster"
	LiveRoleViewer      LiveRole = "viewer"
)

// ChatRole is the part a connection plays in a chat room.
type ChatRole string

const (
	ChatRoleRequester ChatRole = "requester"
	ChatRolePastor    ChatRole = "pastor"
)

// Valid reports whether r is one of the known chat roles.
func (r ChatRole) Valid() bool {
	return r == ChatRoleRequester || r == ChatRolePastor
}

// Session is the association record of one open connection. It is only
// read and written from the hub loop.
type Session struct {
	ClientID string
	UserID   string
	ChurchID string

	LiveStreamID string
	LiveRole     LiveRole
	LiveViewerID string

	ChatRoomID   string
	ChatRole     ChatRole
	ChatName     string
	ChatLanguage string

	ConnectedAt  time.Time
	LastActiveAt time.Time
}

// NewSession creates an empty association record.
func NewSession(clientID string) *Session {
	now := time.Now()
	return &Session{
		ClientID:     clientID,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

func (s *Session) Touch() {
	s.LastActiveAt = time.Now()
}

// Identify sets the user identity. An empty churchID keeps the previous one.
func (s *Session) Identify(userID, churchID string) {
	s.UserID = userID
	if churchID != "" {
		s.ChurchID = churchID
	}
}

func (s *Session) IsIdentified() bool {
	return s.UserID != ""
}

// JoinStream records stream membership. viewerID is empty for broadcasters.
func (s *Session) JoinStream(streamID string, role LiveRole, viewerID string) {
	s.LiveStreamID = streamID
	s.LiveRole = role
	s.LiveViewerID = viewerID
}

func (s *Session) LeaveStream() {
	s.LiveStreamID = ""
	s.LiveRole = LiveRoleNone
	s.LiveViewerID = ""
}

func (s *Session) IsInStream() bool {
	return s.LiveStreamID != ""
}

// IsBroadcasting reports whether the connection broadcasts streamID.
func (s *Session) IsBroadcasting(streamID string) bool {
	return s.LiveRole == LiveRoleBroadcaster && s.LiveStreamID == streamID
}

// IsViewing reports whether the connection watches streamID as viewerID.
func (s *Session) IsViewing(streamID, viewerID string) bool {
	return s.LiveRole == LiveRoleViewer && s.LiveStreamID == streamID && s.LiveViewerID == viewerID
}

func (s *Session) JoinChatRoom(roomID string, role ChatRole, name, language string) {
	s.ChatRoomID = roomID
	s.ChatRole = role
	s.ChatName = name
	s.ChatLanguage = language
}

func (s *Session) LeaveChatRoom() {
	s.ChatRoomID = ""
	s.ChatRole = ""
	s.ChatName = ""
	s.ChatLanguage = ""
}

func (s *Session) IsInChatRoom() bool {
	return s.ChatRoomID != ""
}
