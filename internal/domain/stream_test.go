package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStream_Viewers(t *testing.T) {
	s := NewStream("s1", "b1", "Bob", "", "c-b")
	s.Viewers["v1"] = "c-1"
	s.Viewers["v2"] = "c-2"

	assert.Equal(t, 2, s.ViewerCount())

	id, ok := s.ViewerClient("v1")
	assert.True(t, ok)
	assert.Equal(t, "c-1", id)
	_, ok = s.ViewerClient("v3")
	assert.False(t, ok)

	ids := s.ClientIDs()
	assert.Equal(t, "c-b", ids[0])
	assert.ElementsMatch(t, []string{"c-b", "c-1", "c-2"}, ids)
}

func TestStream_Info(t *testing.T) {
	s := NewStream("s1", "b1", "Bob", "avatar.png", "c-b")
	s.Viewers["v1"] = "c-1"

	info := s.Info()
	assert.Equal(t, "s1", info.StreamID)
	assert.Equal(t, "Bob", info.BroadcasterName)
	assert.Equal(t, 1, info.ViewerCount)
	assert.Equal(t, s.StartedAt.UnixMilli(), info.StartedAt)
}

func TestSortStreamInfos(t *testing.T) {
	now := time.Now().UnixMilli()
	infos := []LiveStreamInfo{
		{StreamID: "c", StartedAt: now + 10},
		{StreamID: "b", StartedAt: now},
		{StreamID: "a", StartedAt: now},
	}
	SortStreamInfos(infos)

	assert.Equal(t, "a", infos[0].StreamID)
	assert.Equal(t, "b", infos[1].StreamID)
	assert.Equal(t, "c", infos[2].StreamID)
}
