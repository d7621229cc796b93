package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/weiawesome/amen-live/internal/audit"
	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/kafka"
	"github.com/weiawesome/amen-live/internal/metrics"
	"github.com/weiawesome/amen-live/pkg/log"
)

// DefaultMaxViewers is the viewer cap used when none is configured.
const DefaultMaxViewers = 10

type liveService struct {
	fanout     Fanout
	sched      Scheduler
	producer   kafka.LiveEventProducer
	metrics    *metrics.Metrics
	maxViewers int

	// stream id -> stream, owned by the hub loop
	streams map[string]*domain.Stream
}

// NewLiveService creates a new LiveService instance. producer may be nil.
func NewLiveService(fanout Fanout, sched Scheduler, producer kafka.LiveEventProducer, maxViewers int, m *metrics.Metrics) LiveService {
	if maxViewers <= 0 {
		maxViewers = DefaultMaxViewers
	}
	return &liveService{
		fanout:     fanout,
		sched:      sched,
		producer:   producer,
		metrics:    m,
		maxViewers: maxViewers,
		streams:    make(map[string]*domain.Stream),
	}
}

func (s *liveService) HandleStart(ctx context.Context, c *hub.Client, msg *domain.LiveStartMessage) error {
	if msg.StreamID == "" || msg.BroadcasterID == "" {
		return fmt.Errorf("%w: live_start without streamId or broadcasterId", ErrInvalidMessage)
	}
	l := log.Ctx(ctx).With().Str(log.FieldStreamID, msg.StreamID).Logger()

	if st, ok := s.streams[msg.StreamID]; ok {
		if st.BroadcasterClientID != c.ID {
			l.Warn().Str("owner", st.BroadcasterClientID).Msg("live_start for a stream owned by another connection")
			s.fanout.Send(c, domain.NewLiveErrorMessage(msg.StreamID, domain.ErrCodeStreamExists, "stream already live"))
			return nil
		}

		st.BroadcasterID = msg.BroadcasterID
		st.BroadcasterName = msg.BroadcasterName
		st.BroadcasterAvatar = msg.BroadcasterAvatar
		c.Session.JoinStream(st.ID, domain.LiveRoleBroadcaster, "")
		s.fanout.BroadcastAll(&domain.LiveStartedMessage{Type: domain.MsgTypeLiveStarted, LiveStreamInfo: st.Info()}, nil)
		l.Debug().Msg("live stream metadata refreshed")
		return nil
	}

	if c.Session.IsInStream() {
		s.detach(ctx, c, kafka.ReasonReplaced)
	}

	st := domain.NewStream(msg.StreamID, msg.BroadcasterID, msg.BroadcasterName, msg.BroadcasterAvatar, c.ID)
	s.streams[st.ID] = st
	c.Session.JoinStream(st.ID, domain.LiveRoleBroadcaster, "")

	s.fanout.BroadcastAll(&domain.LiveStartedMessage{Type: domain.MsgTypeLiveStarted, LiveStreamInfo: st.Info()}, nil)
	s.updateGauges()

	audit.Log(ctx, audit.ActionLiveStart, st.BroadcasterID, st.ID, "live stream started")
	s.emit(ctx, func(ctx context.Context, p kafka.LiveEventProducer) error {
		return p.ProduceLiveStarted(ctx, st.ID, st.BroadcasterID)
	})
	return nil
}

func (s *liveService) HandleStop(ctx context.Context, c *hub.Client, msg *domain.LiveStopMessage) error {
	l := log.Ctx(ctx).With().Str(log.FieldStreamID, msg.StreamID).Logger()

	st, ok := s.streams[msg.StreamID]
	if !ok {
		l.Debug().Msg("live_stop for unknown stream ignored")
		return nil
	}
	if st.BroadcasterClientID != c.ID {
		l.Warn().Msg("live_stop from a connection that does not own the stream ignored")
		return nil
	}

	s.stopStream(ctx, st, kafka.ReasonExplicit, nil)
	return nil
}

func (s *liveService) HandleJoin(ctx context.Context, c *hub.Client, msg *domain.LiveViewerMessage) error {
	if msg.StreamID == "" || msg.ViewerID == "" {
		return fmt.Errorf("%w: live_join without streamId or viewerId", ErrInvalidMessage)
	}
	l := log.Ctx(ctx).With().
		Str(log.FieldStreamID, msg.StreamID).
		Str(log.FieldViewerID, msg.ViewerID).
		Logger()

	st, ok := s.streams[msg.StreamID]
	if !ok {
		s.fanout.Send(c, &domain.LiveStoppedMessage{Type: domain.MsgTypeLiveStopped, StreamID: msg.StreamID})
		return nil
	}
	if st.BroadcasterClientID == c.ID {
		l.Warn().Msg("broadcaster tried to join its own stream")
		return nil
	}

	prevClientID, rejoin := st.Viewers[msg.ViewerID]
	occupied := st.ViewerCount()
	if c.Session.LiveRole == domain.LiveRoleViewer && c.Session.LiveStreamID == st.ID {
		// this connection's current entry is released before the insert
		occupied--
	}
	if !rejoin && occupied >= s.maxViewers {
		s.metrics.JoinRejected()
		audit.LogWithDetail(ctx, audit.ActionLiveRejected, msg.ViewerID, st.ID, strconv.Itoa(s.maxViewers), "live join rejected, stream full")
		s.fanout.Send(c, domain.NewLiveErrorMessage(st.ID, domain.ErrCodeStreamFull,
			fmt.Sprintf("stream has reached the maximum of %d viewers", s.maxViewers)))
		return nil
	}

	if c.Session.IsInStream() && !c.Session.IsViewing(st.ID, msg.ViewerID) {
		s.detach(ctx, c, kafka.ReasonReplaced)
	}

	if rejoin && prevClientID != c.ID {
		if prev, ok := s.fanout.Client(prevClientID); ok && prev.Session.IsViewing(st.ID, msg.ViewerID) {
			prev.Session.LeaveStream()
		}
		l.Debug().Str("previous_client", prevClientID).Msg("viewer id rebound to a new connection")
	}

	st.Viewers[msg.ViewerID] = c.ID
	c.Session.JoinStream(st.ID, domain.LiveRoleViewer, msg.ViewerID)

	s.fanout.BroadcastToStream(st, &domain.LiveViewerCountMessage{
		Type:     domain.MsgTypeLiveViewerCount,
		StreamID: st.ID,
		Count:    st.ViewerCount(),
	}, nil)
	s.updateGauges()

	audit.Log(ctx, audit.ActionLiveJoin, msg.ViewerID, st.ID, "viewer joined live stream")
	return nil
}

func (s *liveService) HandleLeave(ctx context.Context, c *hub.Client, msg *domain.LiveViewerMessage) error {
	st, ok := s.streams[msg.StreamID]
	if !ok {
		return nil
	}
	if clientID, ok := st.ViewerClient(msg.ViewerID); !ok || clientID != c.ID {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldStreamID, msg.StreamID).Str(log.FieldViewerID, msg.ViewerID).Msg("live_leave for a viewer not held by this connection ignored")
		return nil
	}

	s.leaveStream(ctx, st, msg.ViewerID, c)
	return nil
}

func (s *liveService) HandleOffer(ctx context.Context, c *hub.Client, msg *domain.LiveOfferMessage) error {
	st, ok := s.streams[msg.StreamID]
	if !ok {
		return nil
	}
	if clientID, ok := st.ViewerClient(msg.ViewerID); !ok || clientID != c.ID {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldStreamID, msg.StreamID).Str(log.FieldViewerID, msg.ViewerID).Msg("offer from a non-viewer dropped")
		return nil
	}

	s.fanout.SendTo(st.BroadcasterClientID, &domain.LiveOfferMessage{
		Type:     domain.MsgTypeLiveOffer,
		StreamID: st.ID,
		ViewerID: msg.ViewerID,
		Offer:    msg.Offer,
	})
	return nil
}

func (s *liveService) HandleAnswer(ctx context.Context, c *hub.Client, msg *domain.LiveAnswerMessage) error {
	st, ok := s.streams[msg.StreamID]
	if !ok || st.BroadcasterClientID != c.ID {
		return nil
	}
	clientID, ok := st.ViewerClient(msg.ViewerID)
	if !ok {
		return nil
	}

	s.fanout.SendTo(clientID, &domain.LiveAnswerMessage{
		Type:     domain.MsgTypeLiveAnswer,
		StreamID: st.ID,
		ViewerID: msg.ViewerID,
		Answer:   msg.Answer,
	})
	return nil
}

func (s *liveService) HandleICECandidate(ctx context.Context, c *hub.Client, msg *domain.LiveICECandidateMessage) error {
	st, ok := s.streams[msg.StreamID]
	if !ok {
		return nil
	}
	fromID, ok := s.memberID(st, c)
	if !ok {
		return nil
	}

	var targetClientID string
	if msg.TargetID == st.BroadcasterID {
		targetClientID = st.BroadcasterClientID
	} else if id, ok := st.ViewerClient(msg.TargetID); ok {
		targetClientID = id
	} else {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldStreamID, st.ID).Str("target_id", msg.TargetID).Msg("ice candidate for unknown target dropped")
		return nil
	}

	s.fanout.SendTo(targetClientID, &domain.LiveICECandidateMessage{
		Type:      domain.MsgTypeLiveICECandidate,
		StreamID:  st.ID,
		TargetID:  msg.TargetID,
		FromID:    fromID,
		Candidate: msg.Candidate,
	})
	return nil
}

func (s *liveService) HandleChat(ctx context.Context, c *hub.Client, msg *domain.LiveChatMessage) error {
	st, ok := s.streams[msg.StreamID]
	if !ok {
		return nil
	}
	memberID, ok := s.memberID(st, c)
	if !ok {
		return nil
	}

	senderID := msg.SenderID
	if senderID == "" {
		senderID = memberID
	}
	s.fanout.BroadcastToStream(st, &domain.LiveChatOutMessage{
		Type:       domain.MsgTypeLiveChatMessage,
		StreamID:   st.ID,
		SenderID:   senderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		Timestamp:  time.Now().UnixMilli(),
	}, c)
	return nil
}

func (s *liveService) HandleReaction(ctx context.Context, c *hub.Client, msg *domain.LiveReactionMessage) error {
	st, ok := s.streams[msg.StreamID]
	if !ok {
		return nil
	}
	memberID, ok := s.memberID(st, c)
	if !ok {
		return nil
	}

	senderID := msg.SenderID
	if senderID == "" {
		senderID = memberID
	}
	s.fanout.BroadcastToStream(st, &domain.LiveReactionMessage{
		Type:     domain.MsgTypeLiveReaction,
		StreamID: st.ID,
		SenderID: senderID,
		Reaction: msg.Reaction,
	}, c)
	return nil
}

func (s *liveService) HandleList(ctx context.Context, c *hub.Client) error {
	s.fanout.Send(c, &domain.LiveStreamsListMessage{
		Type:    domain.MsgTypeLiveStreamsList,
		Streams: s.Snapshot(),
	})
	return nil
}

func (s *liveService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	if c.Session.IsInStream() {
		s.detach(ctx, c, kafka.ReasonDisconnect)
	}
	return nil
}

func (s *liveService) Snapshot() []domain.LiveStreamInfo {
	infos := make([]domain.LiveStreamInfo, 0, len(s.streams))
	for _, st := range s.streams {
		infos = append(infos, st.Info())
	}
	domain.SortStreamInfos(infos)
	return infos
}

// detach removes c from whatever stream its session points at. A broadcaster
// takes its stream down with it.
func (s *liveService) detach(ctx context.Context, c *hub.Client, reason string) {
	sess := c.Session
	st, ok := s.streams[sess.LiveStreamID]
	if !ok {
		sess.LeaveStream()
		return
	}

	switch sess.LiveRole {
	case domain.LiveRoleBroadcaster:
		if st.BroadcasterClientID == c.ID {
			var exclude *hub.Client
			if reason == kafka.ReasonDisconnect {
				exclude = c
			}
			s.stopStream(ctx, st, reason, exclude)
		}
	case domain.LiveRoleViewer:
		if clientID, ok := st.ViewerClient(sess.LiveViewerID); ok && clientID == c.ID {
			s.leaveStream(ctx, st, sess.LiveViewerID, c)
		}
	}
	sess.LeaveStream()
}

func (s *liveService) leaveStream(ctx context.Context, st *domain.Stream, viewerID string, c *hub.Client) {
	delete(st.Viewers, viewerID)
	c.Session.LeaveStream()

	s.fanout.SendTo(st.BroadcasterClientID, &domain.LiveViewerLeftMessage{
		Type:     domain.MsgTypeLiveViewerLeft,
		StreamID: st.ID,
		ViewerID: viewerID,
	})
	s.fanout.BroadcastToStream(st, &domain.LiveViewerCountMessage{
		Type:     domain.MsgTypeLiveViewerCount,
		StreamID: st.ID,
		Count:    st.ViewerCount(),
	}, nil)
	s.updateGauges()

	audit.Log(ctx, audit.ActionLiveLeave, viewerID, st.ID, "viewer left live stream")
}

func (s *liveService) stopStream(ctx context.Context, st *domain.Stream, reason string, exclude *hub.Client) {
	stopped := &domain.LiveStoppedMessage{Type: domain.MsgTypeLiveStopped, StreamID: st.ID}
	viewerCount := st.ViewerCount()

	for viewerID, clientID := range st.Viewers {
		vc, ok := s.fanout.Client(clientID)
		if !ok {
			continue
		}
		if vc.Session.IsViewing(st.ID, viewerID) {
			vc.Session.LeaveStream()
		}
		s.fanout.Send(vc, stopped)
	}
	if bc, ok := s.fanout.Client(st.BroadcasterClientID); ok && bc.Session.IsBroadcasting(st.ID) {
		bc.Session.LeaveStream()
	}

	delete(s.streams, st.ID)
	s.fanout.BroadcastAll(stopped, exclude)
	s.updateGauges()

	duration := time.Since(st.StartedAt)
	audit.LogWithDetail(ctx, audit.ActionLiveStop, st.BroadcasterID, st.ID, reason, "live stream stopped")
	s.emit(ctx, func(ctx context.Context, p kafka.LiveEventProducer) error {
		return p.ProduceLiveStopped(ctx, st.ID, st.BroadcasterID, reason, viewerCount, duration.Milliseconds())
	})
}

// memberID returns the id c is known by inside st: the broadcaster id for
// the broadcaster connection, the viewer id for a viewer.
func (s *liveService) memberID(st *domain.Stream, c *hub.Client) (string, bool) {
	if st.BroadcasterClientID == c.ID {
		return st.BroadcasterID, true
	}
	viewerID := c.Session.LiveViewerID
	if viewerID == "" || c.Session.LiveStreamID != st.ID {
		return "", false
	}
	if clientID, ok := st.ViewerClient(viewerID); ok && clientID == c.ID {
		return viewerID, true
	}
	return "", false
}

func (s *liveService) updateGauges() {
	viewers := 0
	for _, st := range s.streams {
		viewers += st.ViewerCount()
	}
	s.metrics.SetLiveTotals(len(s.streams), viewers)
}

// emit publishes a lifecycle event off the loop. Failures are only logged.
func (s *liveService) emit(ctx context.Context, produce func(ctx context.Context, p kafka.LiveEventProducer) error) {
	if s.producer == nil {
		return
	}
	l := log.Ctx(ctx)
	s.sched.Async(func(workCtx context.Context) func() {
		if err := produce(workCtx, s.producer); err != nil {
			l.Warn().Err(err).Msg("failed to publish live event")
		}
		return nil
	})
}
