package notify

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/amen-live/pkg/log"
	"github.com/weiawesome/amen-live/pkg/pubsub"
)

const reconnectDelay = 2 * time.Second

// Subscriber listens on the hub broadcast channel and pushes every event
// published by another instance to the local connections.
type Subscriber struct {
	bus        pubsub.Subscriber
	hub        Broadcaster
	instanceID string
	doneCh     chan struct{}
}

// NewSubscriber creates a new broadcast subscriber.
func NewSubscriber(bus pubsub.Subscriber, h Broadcaster, instanceID string) *Subscriber {
	return &Subscriber{
		bus:        bus,
		hub:        h,
		instanceID: instanceID,
		doneCh:     make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run consumes events until ctx is done, resubscribing when the
// subscription drops.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)
	l := log.L()

	for {
		err := s.runSubscription(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("subscription closed")
		}
		l.Warn().Err(err).Str("channel", pubsub.ChannelHubBroadcast).Msg("broadcast subscription lost, reconnecting in 2s")

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	events, err := s.bus.Subscribe(ctx, pubsub.ChannelHubBroadcast)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			s.handleEvent(event)
		}
	}
}

func (s *Subscriber) handleEvent(event *pubsub.Event) {
	l := log.L()

	if event == nil || event.Type != pubsub.EventBroadcastAll {
		return
	}
	if event.Origin != "" && event.Origin == s.instanceID {
		return
	}
	if err := ValidatePayload(event.Payload); err != nil {
		l.Warn().Err(err).Str("origin", event.Origin).Msg("broadcast event dropped")
		return
	}
	if err := s.hub.PublishAll(event.Payload); err != nil {
		l.Error().Err(err).Msg("broadcast event not delivered")
	}
}
