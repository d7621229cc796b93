package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/amen-live/pkg/pubsub"
)

type fakeHub struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (f *fakeHub) PublishAll(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, string(data))
	return nil
}

func (f *fakeHub) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

type fakeBus struct {
	mu        sync.Mutex
	published []*pubsub.Event
	subs      chan chan *pubsub.Event
	err       error
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(chan chan *pubsub.Event, 4)}
}

func (f *fakeBus) Publish(_ context.Context, _ string, event *pubsub.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan *pubsub.Event, error) {
	ch := make(chan *pubsub.Event, 8)
	f.subs <- ch
	return ch, nil
}

func (f *fakeBus) SubscribePattern(ctx context.Context, pattern string) (<-chan *pubsub.Event, error) {
	return f.Subscribe(ctx, pattern)
}

func (f *fakeBus) Unsubscribe(context.Context, string) error { return nil }

func TestValidatePayload(t *testing.T) {
	assert.NoError(t, ValidatePayload([]byte(`{"type":"announcement","text":"hi"}`)))
	assert.ErrorIs(t, ValidatePayload([]byte(`{"text":"hi"}`)), ErrInvalidPayload)
	assert.ErrorIs(t, ValidatePayload([]byte(`{"type":""}`)), ErrInvalidPayload)
	assert.ErrorIs(t, ValidatePayload([]byte(`{"type":5}`)), ErrInvalidPayload)
	assert.ErrorIs(t, ValidatePayload([]byte(`["type"]`)), ErrInvalidPayload)
	assert.ErrorIs(t, ValidatePayload([]byte(`nope`)), ErrInvalidPayload)
}

func TestNotifier_DeliversLocallyAndPublishes(t *testing.T) {
	h := &fakeHub{}
	bus := newFakeBus()
	n := NewNotifier(h, bus, "node-a")

	require.NoError(t, n.BroadcastAll(context.Background(), "backend", []byte(`{"type":"announcement"}`)))

	assert.Equal(t, []string{`{"type":"announcement"}`}, h.all())
	require.Len(t, bus.published, 1)
	assert.Equal(t, "node-a", bus.published[0].Origin)
	assert.Equal(t, pubsub.EventBroadcastAll, bus.published[0].Type)
	assert.JSONEq(t, `{"type":"announcement"}`, string(bus.published[0].Payload))
}

func TestNotifier_RejectsInvalidPayload(t *testing.T) {
	h := &fakeHub{}
	n := NewNotifier(h, nil, "node-a")

	err := n.BroadcastAll(context.Background(), "backend", []byte(`{"text":"no type"}`))

	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Empty(t, h.all())
}

func TestNotifier_BusFailureReported(t *testing.T) {
	h := &fakeHub{}
	bus := newFakeBus()
	bus.err = errors.New("broker down")
	n := NewNotifier(h, bus, "node-a")

	err := n.BroadcastAll(context.Background(), "backend", []byte(`{"type":"x"}`))

	assert.Error(t, err)
	assert.Len(t, h.all(), 1)
}

func TestSubscriber_SkipsOwnEventsAndResubscribes(t *testing.T) {
	h := &fakeHub{}
	bus := newFakeBus()
	s := NewSubscriber(bus, h, "node-a")

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	first := <-bus.subs
	own, err := pubsub.NewEvent(pubsub.EventBroadcastAll, "node-a", []byte(`{"type":"mine"}`))
	require.NoError(t, err)
	remote, err := pubsub.NewEvent(pubsub.EventBroadcastAll, "node-b", []byte(`{"type":"theirs"}`))
	require.NoError(t, err)
	invalid, err := pubsub.NewEvent(pubsub.EventBroadcastAll, "node-b", []byte(`{"no":"type"}`))
	require.NoError(t, err)
	other, err := pubsub.NewEvent("something_else", "node-b", []byte(`{"type":"other"}`))
	require.NoError(t, err)

	first <- own
	first <- invalid
	first <- other
	first <- remote
	require.Eventually(t, func() bool { return len(h.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`{"type":"theirs"}`}, h.all())

	close(first)
	select {
	case second := <-bus.subs:
		second <- remote
	case <-time.After(reconnectDelay + time.Second):
		t.Fatal("subscriber did not resubscribe")
	}
	require.Eventually(t, func() bool { return len(h.all()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop")
	}
}
