package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/store"
)

// syncScheduler runs work and its continuation inline.
type syncScheduler struct{}

func (syncScheduler) Async(work func(ctx context.Context) func()) {
	if next := work(context.Background()); next != nil {
		next()
	}
}

type testEnv struct {
	t        *testing.T
	registry *hub.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{t: t, registry: hub.NewRegistry(nil)}
}

func (e *testEnv) connect(id string) *hub.Client {
	c := hub.NewClient(id, nil, nil, config.WebSocketConfig{SendBufferSize: 64})
	e.registry.Add(c)
	return c
}

// drain returns every message queued for c, decoded.
func drain(t *testing.T, c *hub.Client) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return out
			}
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType(msgs []map[string]interface{}, msgType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range msgs {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.PrayerSession
	err      error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*domain.PrayerSession)}
}

func (f *fakeSessionStore) StartSession(_ context.Context, p store.StartSessionParams) (*domain.PrayerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &domain.PrayerSession{
		ID:         uuid.NewString(),
		PastorID:   p.PastorID,
		ChurchID:   p.ChurchID,
		PastorName: p.PastorName,
		ChurchName: p.ChurchName,
		Focus:      p.Focus,
		StartedAt:  time.Now().UTC(),
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessionStore) EndSession(_ context.Context, id string) (*domain.PrayerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok || s.EndedAt != nil {
		return nil, store.ErrSessionNotFound
	}
	now := time.Now().UTC()
	s.EndedAt = &now
	s.DurationSeconds = int64(now.Sub(s.StartedAt).Seconds())
	return s, nil
}

func (f *fakeSessionStore) ListLive(context.Context) ([]domain.PrayerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.PrayerSession
	for _, s := range f.sessions {
		if s.IsLive() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) CountLive(ctx context.Context) (int, error) {
	live, err := f.ListLive(ctx)
	return len(live), err
}

type fakeChatStore struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	err      error
}

func (f *fakeChatStore) InsertMessage(_ context.Context, msg *domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, *msg)
	return nil
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	dict  map[string]string
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.dict[text]; ok {
		return out, nil
	}
	return "", errors.New("no translation")
}

type producedEvent struct {
	kind     string
	streamID string
	reason   string
	viewers  int
}

type fakeProducer struct {
	mu     sync.Mutex
	events []producedEvent
}

func (f *fakeProducer) ProduceLiveStarted(_ context.Context, streamID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, producedEvent{kind: "started", streamID: streamID})
	return nil
}

func (f *fakeProducer) ProduceLiveStopped(_ context.Context, streamID, _, reason string, viewerCount int, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, producedEvent{kind: "stopped", streamID: streamID, reason: reason, viewers: viewerCount})
	return nil
}

func (f *fakeProducer) Close() error { return nil }
