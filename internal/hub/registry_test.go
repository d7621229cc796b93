package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/internal/domain"
)

func newTestClient(id string, buffer int) *Client {
	return NewClient(id, nil, nil, config.WebSocketConfig{SendBufferSize: buffer})
}

func pending(c *Client) int {
	return len(c.Send)
}

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry(nil)
	c := newTestClient("a", 4)

	r.Add(c)
	assert.True(t, r.IsRegistered(c))
	assert.Equal(t, 1, r.Len())

	impostor := newTestClient("a", 4)
	assert.False(t, r.IsRegistered(impostor))
	assert.False(t, r.Remove(impostor))

	assert.True(t, r.Remove(c))
	assert.False(t, r.Remove(c))
	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_BroadcastAllHonoursExclude(t *testing.T) {
	r := NewRegistry(nil)
	a, b, c := newTestClient("a", 4), newTestClient("b", 4), newTestClient("c", 4)
	r.Add(a)
	r.Add(b)
	r.Add(c)

	n := r.BroadcastAll(map[string]string{"type": "x"}, b)

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, pending(a))
	assert.Equal(t, 0, pending(b))
	assert.Equal(t, 1, pending(c))
	assert.JSONEq(t, `{"type":"x"}`, string(<-a.Send))
}

func TestRegistry_BroadcastToRoom(t *testing.T) {
	r := NewRegistry(nil)
	a, b, c := newTestClient("a", 4), newTestClient("b", 4), newTestClient("c", 4)
	a.Session.JoinChatRoom("r1", domain.ChatRolePastor, "John", "en")
	b.Session.JoinChatRoom("r1", domain.ChatRoleRequester, "Maria", "pt")
	c.Session.JoinChatRoom("r2", domain.ChatRoleRequester, "Eve", "en")
	r.Add(a)
	r.Add(b)
	r.Add(c)

	assert.Equal(t, 1, r.BroadcastToRoom("r1", []byte(`{"type":"x"}`), a))
	assert.Equal(t, 0, pending(a))
	assert.Equal(t, 1, pending(b))
	assert.Equal(t, 0, pending(c))
	assert.Equal(t, 0, r.BroadcastToRoom("", []byte(`{}`), nil))
}

func TestRegistry_BroadcastToStream(t *testing.T) {
	r := NewRegistry(nil)
	b, v, other := newTestClient("b", 4), newTestClient("v", 4), newTestClient("other", 4)
	r.Add(b)
	r.Add(v)
	r.Add(other)

	st := domain.NewStream("s1", "b1", "John", "", b.ID)
	st.Viewers["v1"] = v.ID
	st.Viewers["gone"] = "closed-client"

	assert.Equal(t, 2, r.BroadcastToStream(st, []byte(`{"type":"x"}`), nil))
	assert.Equal(t, 1, pending(b))
	assert.Equal(t, 1, pending(v))
	assert.Equal(t, 0, pending(other))
}

func TestRegistry_SendToUnknownIsDropped(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.SendTo("nobody", []byte(`{}`)))

	c := newTestClient("c", 4)
	r.Send(c, []byte(`{}`))
	assert.Equal(t, 0, pending(c))
}

func TestRegistry_FullBufferEvicts(t *testing.T) {
	r := NewRegistry(nil)
	slow := newTestClient("slow", 1)
	r.Add(slow)

	require.True(t, r.SendTo("slow", []byte(`{"n":1}`)))
	assert.False(t, r.SendTo("slow", []byte(`{"n":2}`)))
	assert.True(t, slow.evicted)

	<-slow.Send
	assert.False(t, r.SendTo("slow", []byte(`{"n":3}`)))
	assert.True(t, r.IsRegistered(slow))
}

func TestRegistry_UnencodableMessageDropped(t *testing.T) {
	r := NewRegistry(nil)
	c := newTestClient("c", 4)
	r.Add(c)

	assert.Equal(t, 0, r.BroadcastAll(map[string]interface{}{"bad": make(chan int)}, nil))
	assert.Equal(t, 0, pending(c))
}
