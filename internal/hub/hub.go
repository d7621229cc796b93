package hub

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/internal/metrics"
	pkglog "github.com/weiawesome/amen-live/pkg/log"
)

// ErrHubClosed is returned when the hub loop is no longer running.
var ErrHubClosed = errors.New("hub is not running")

// MessageHandler consumes inbound messages and disconnects. Both methods run
// on the hub loop.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, data []byte)
	HandleDisconnect(ctx context.Context, client *Client)
}

// inboundMessage is a frame or, with disconnect set, the end of a
// connection. Both share one channel so a client's disconnect is handled
// after every frame it sent before closing.
type inboundMessage struct {
	client     *Client
	data       []byte
	disconnect bool
}

// Hub owns the registry and serializes every event that touches it through a
// single goroutine (Run): registration, inbound messages, disconnects,
// external broadcasts and continuations of asynchronous work.
type Hub struct {
	*Registry

	handler MessageHandler
	config  config.WebSocketConfig
	metrics *metrics.Metrics

	register chan *Client
	inbound  chan inboundMessage
	tasks    chan func()

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	workers sync.WaitGroup
}

// NewHub creates a new Hub. SetHandler must be called before Run.
func NewHub(cfg config.WebSocketConfig, m *metrics.Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		Registry: NewRegistry(m),
		config:   cfg,
		metrics:  m,
		register: make(chan *Client),
		inbound:  make(chan inboundMessage, 256),
		tasks:    make(chan func(), 256),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// SetHandler installs the message handler. It must be called before Run.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Config returns the socket settings clients are created with.
func (h *Hub) Config() config.WebSocketConfig {
	return h.config
}

// Run processes hub events until ctx is cancelled, then closes every
// connection and waits for outstanding async work.
func (h *Hub) Run(ctx context.Context) {
	l := pkglog.L()
	l.Info().Msg("hub loop started")

	defer func() {
		h.cancel()
		close(h.done)
		h.shutdown()
		h.workers.Wait()
		l.Info().Msg("hub loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.Add(c)
			l.Debug().Str(pkglog.FieldClientID, c.ID).Int("clients", h.Len()).Msg("client registered")

		case msg := <-h.inbound:
			c := msg.client
			if !h.IsRegistered(c) {
				continue
			}
			if msg.disconnect {
				h.safely("disconnect", func() {
					h.handler.HandleDisconnect(pkglog.WithConnection(h.ctx, c.ID), c)
				})
				h.Remove(c)
				l.Debug().Str(pkglog.FieldClientID, c.ID).Int("clients", h.Len()).Msg("client unregistered")
				continue
			}
			c.Session.Touch()
			h.safely("message", func() {
				h.handler.HandleMessage(pkglog.WithConnection(h.ctx, c.ID), c, msg.data)
			})

		case task := <-h.tasks:
			h.safely("task", task)
		}
	}
}

// safely keeps a panicking handler from taking the loop down.
func (h *Hub) safely(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l := pkglog.L()
			l.Error().
				Interface("panic", r).
				Str("kind", kind).
				Bytes("stack", debug.Stack()).
				Msg("recovered panic in hub loop")
		}
	}()
	fn()
}

func (h *Hub) shutdown() {
	for _, c := range h.clients {
		if c.Conn != nil {
			c.Conn.Close()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes a client once the frames it already dispatched have been
// handled; its disconnect cleanup runs first.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.inbound <- inboundMessage{client: c, disconnect: true}:
	case <-h.done:
	}
}

// Dispatch hands an inbound message to the loop. It reports false once the
// hub has stopped.
func (h *Hub) Dispatch(c *Client, data []byte) bool {
	if h.closed() {
		return false
	}
	select {
	case h.inbound <- inboundMessage{client: c, data: data}:
		return true
	case <-h.done:
		return false
	}
}

// Async runs work on its own goroutine. The function work returns, if any,
// is run on the loop afterwards and must re-check any state it relies on.
func (h *Hub) Async(work func(ctx context.Context) func()) {
	h.workers.Add(1)
	go func() {
		defer h.workers.Done()
		cont := work(h.ctx)
		if cont == nil {
			return
		}
		select {
		case h.tasks <- cont:
		case <-h.ctx.Done():
		}
	}()
}

// Call runs fn on the loop and waits for it to finish. It must not be called
// from the loop itself.
func (h *Hub) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	if h.closed() {
		return ErrHubClosed
	}
	select {
	case h.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubClosed
	}
}

// PublishAll broadcasts an encoded message to every connection. It is the
// entry point for notifications coming from outside the socket layer.
func (h *Hub) PublishAll(data []byte) error {
	task := func() {
		n := h.BroadcastRaw(data, nil)
		l := pkglog.L()
		l.Debug().Int("recipients", n).Msg("external broadcast delivered")
	}
	if h.closed() {
		return ErrHubClosed
	}
	select {
	case h.tasks <- task:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
