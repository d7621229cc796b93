package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/amen-live/internal/audit"
	"github.com/weiawesome/amen-live/internal/domain"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/metrics"
	"github.com/weiawesome/amen-live/internal/store"
	"github.com/weiawesome/amen-live/pkg/log"
)

type presenceService struct {
	fanout  Fanout
	sched   Scheduler
	store   store.SessionStore
	metrics *metrics.Metrics
}

// NewPresenceService creates a new PresenceService instance.
func NewPresenceService(fanout Fanout, sched Scheduler, sessions store.SessionStore, m *metrics.Metrics) PresenceService {
	return &presenceService{
		fanout:  fanout,
		sched:   sched,
		store:   sessions,
		metrics: m,
	}
}

func (s *presenceService) HandleIdentify(ctx context.Context, c *hub.Client, msg *domain.IdentifyMessage) error {
	if msg.UserID == "" {
		return fmt.Errorf("%w: identify without userId", ErrInvalidMessage)
	}

	c.Session.Identify(msg.UserID, msg.ChurchID)
	audit.Log(ctx, audit.ActionIdentify, msg.UserID, c.ID, "connection identified")

	s.sched.Async(func(workCtx context.Context) func() {
		workCtx = log.WithLogger(workCtx, log.Ctx(ctx))

		var (
			sessions []domain.PrayerSession
			count    int
		)
		g, gctx := errgroup.WithContext(workCtx)
		g.Go(func() error {
			var err error
			sessions, err = s.store.ListLive(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			count, err = s.store.CountLive(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			s.metrics.StoreError("list_live")
			l := log.Ctx(workCtx)
			l.Error().Err(err).Msg("failed to load live prayer sessions")
			return nil
		}
		if sessions == nil {
			sessions = []domain.PrayerSession{}
		}

		return func() {
			if !s.fanout.IsRegistered(c) {
				return
			}
			s.fanout.Send(c, &domain.LiveSessionsMessage{
				Type:      domain.MsgTypeLiveSessions,
				Sessions:  sessions,
				LiveCount: count,
			})
		}
	})
	return nil
}

func (s *presenceService) HandlePastorStartPraying(ctx context.Context, c *hub.Client, msg *domain.PastorStartPrayingMessage) error {
	if msg.PastorID == "" {
		return fmt.Errorf("%w: pastor_start_praying without pastorId", ErrInvalidMessage)
	}

	params := store.StartSessionParams{
		PastorID:   msg.PastorID,
		ChurchID:   msg.ChurchID,
		PastorName: msg.PastorName,
		ChurchName: msg.ChurchName,
		Focus:      msg.Focus,
	}

	s.sched.Async(func(workCtx context.Context) func() {
		workCtx = log.WithLogger(workCtx, log.Ctx(ctx))
		l := log.Ctx(workCtx)

		session, err := s.store.StartSession(workCtx, params)
		if err != nil {
			s.metrics.StoreError("start_session")
			l.Error().Err(err).Str("pastor_id", params.PastorID).Msg("failed to start prayer session")
			return nil
		}
		count, err := s.store.CountLive(workCtx)
		if err != nil {
			s.metrics.StoreError("count_live")
			l.Error().Err(err).Msg("failed to count live prayer sessions")
			return nil
		}

		audit.Log(workCtx, audit.ActionPrayerStarted, session.PastorID, session.ID, "prayer session started")

		return func() {
			s.fanout.BroadcastAll(&domain.PastorPrayingMessage{
				Type:       domain.MsgTypePastorPraying,
				Action:     domain.PrayingStarted,
				SessionID:  session.ID,
				PastorID:   session.PastorID,
				ChurchID:   session.ChurchID,
				PastorName: session.PastorName,
				ChurchName: session.ChurchName,
				Focus:      session.Focus,
				LiveCount:  count,
			}, nil)
		}
	})
	return nil
}

func (s *presenceService) HandlePastorStopPraying(ctx context.Context, c *hub.Client, msg *domain.PastorStopPrayingMessage) error {
	if msg.SessionID == "" {
		return fmt.Errorf("%w: pastor_stop_praying without sessionId", ErrInvalidMessage)
	}

	sessionID := msg.SessionID
	s.sched.Async(func(workCtx context.Context) func() {
		workCtx = log.WithLogger(workCtx, log.Ctx(ctx))
		l := log.Ctx(workCtx).With().Str(log.FieldSession, sessionID).Logger()

		session, err := s.store.EndSession(workCtx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				l.Debug().Msg("stop for unknown or ended prayer session ignored")
				return nil
			}
			s.metrics.StoreError("end_session")
			l.Error().Err(err).Msg("failed to end prayer session")
			return nil
		}
		count, err := s.store.CountLive(workCtx)
		if err != nil {
			s.metrics.StoreError("count_live")
			l.Error().Err(err).Msg("failed to count live prayer sessions")
			return nil
		}

		audit.LogWithDetail(workCtx, audit.ActionPrayerStopped, session.PastorID, session.ID,
			(time.Duration(session.DurationSeconds) * time.Second).String(), "prayer session stopped")

		return func() {
			s.fanout.BroadcastAll(&domain.PastorPrayingMessage{
				Type:            domain.MsgTypePastorPraying,
				Action:          domain.PrayingStopped,
				SessionID:       session.ID,
				PastorID:        session.PastorID,
				ChurchID:        session.ChurchID,
				PastorName:      session.PastorName,
				ChurchName:      session.ChurchName,
				DurationSeconds: session.DurationSeconds,
				LiveCount:       count,
			}, nil)
		}
	})
	return nil
}

func (s *presenceService) HandlePrayerInteraction(ctx context.Context, c *hub.Client, msg *domain.PrayerInteractionMessage) error {
	userID := msg.UserID
	if userID == "" {
		userID = c.Session.UserID
	}

	s.fanout.BroadcastAll(&domain.NewPrayerResponseMessage{
		Type:      domain.MsgTypeNewPrayerResponse,
		Kind:      msg.Type,
		PrayerID:  msg.PrayerID,
		SessionID: msg.SessionID,
		UserID:    userID,
		UserName:  msg.UserName,
		Message:   msg.Message,
		Timestamp: time.Now().UnixMilli(),
	}, nil)
	return nil
}
