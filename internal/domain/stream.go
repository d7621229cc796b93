package domain

import (
	"sort"
	"time"
)

// Stream is one live broadcast. Connections are referenced by client id;
// the stream never owns them.
type Stream struct {
	ID                  string
	BroadcasterID       string
	BroadcasterName     string
	BroadcasterAvatar   string
	BroadcasterClientID string
	Viewers             map[string]string // viewer id -> client id
	StartedAt           time.Time
}

func NewStream(id, broadcasterID, name, avatar, broadcasterClientID string) *Stream {
	return &Stream{
		ID:                  id,
		BroadcasterID:       broadcasterID,
		BroadcasterName:     name,
		BroadcasterAvatar:   avatar,
		BroadcasterClientID: broadcasterClientID,
		Viewers:             make(map[string]string),
		StartedAt:           time.Now(),
	}
}

func (s *Stream) ViewerCount() int {
	return len(s.Viewers)
}

// ViewerClient returns the client id behind viewerID.
func (s *Stream) ViewerClient(viewerID string) (string, bool) {
	id, ok := s.Viewers[viewerID]
	return id, ok
}

// ClientIDs returns the broadcaster's client id followed by every viewer's.
func (s *Stream) ClientIDs() []string {
	ids := make([]string, 0, len(s.Viewers)+1)
	if s.BroadcasterClientID != "" {
		ids = append(ids, s.BroadcasterClientID)
	}
	for _, id := range s.Viewers {
		ids = append(ids, id)
	}
	return ids
}

func (s *Stream) Info() LiveStreamInfo {
	return LiveStreamInfo{
		StreamID:          s.ID,
		BroadcasterID:     s.BroadcasterID,
		BroadcasterName:   s.BroadcasterName,
		BroadcasterAvatar: s.BroadcasterAvatar,
		ViewerCount:       s.ViewerCount(),
		StartedAt:         s.StartedAt.UnixMilli(),
	}
}

// SortStreamInfos orders streams oldest first, ties broken by id.
func SortStreamInfos(infos []LiveStreamInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt != infos[j].StartedAt {
			return infos[i].StartedAt < infos[j].StartedAt
		}
		return infos[i].StreamID < infos[j].StreamID
	})
}
