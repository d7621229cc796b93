package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/weiawesome/amen-live/internal/audit"
	"github.com/weiawesome/amen-live/pkg/log"
	"github.com/weiawesome/amen-live/pkg/pubsub"
)

// ErrInvalidPayload is returned for payloads that are not a JSON object
// carrying a non-empty "type".
var ErrInvalidPayload = errors.New("payload must be a JSON object with a type")

// Broadcaster delivers an encoded message to every local connection.
// *hub.Hub implements it.
type Broadcaster interface {
	PublishAll(data []byte) error
}

// ValidatePayload checks that data can be pushed to clients as-is.
func ValidatePayload(data []byte) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var msgType string
	if err := json.Unmarshal(envelope["type"], &msgType); err != nil || msgType == "" {
		return ErrInvalidPayload
	}
	return nil
}

// Notifier pushes backend notifications to every client. With a bus
// configured the payload is also published so other instances deliver it
// to their own connections.
type Notifier struct {
	hub        Broadcaster
	bus        pubsub.Publisher
	instanceID string
}

// NewNotifier creates a Notifier. bus may be nil.
func NewNotifier(h Broadcaster, bus pubsub.Publisher, instanceID string) *Notifier {
	return &Notifier{hub: h, bus: bus, instanceID: instanceID}
}

// BroadcastAll validates data and delivers it locally, then on the bus.
func (n *Notifier) BroadcastAll(ctx context.Context, subject string, data []byte) error {
	if err := ValidatePayload(data); err != nil {
		return err
	}
	if err := n.hub.PublishAll(data); err != nil {
		return fmt.Errorf("local broadcast: %w", err)
	}

	audit.Log(ctx, audit.ActionExternalNotify, subject, pubsub.ChannelHubBroadcast, "external broadcast accepted")

	if n.bus == nil {
		return nil
	}
	event, err := pubsub.NewEvent(pubsub.EventBroadcastAll, n.instanceID, data)
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	if err := n.bus.Publish(ctx, pubsub.ChannelHubBroadcast, event); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to publish broadcast to other instances")
		return fmt.Errorf("publish broadcast: %w", err)
	}
	return nil
}
