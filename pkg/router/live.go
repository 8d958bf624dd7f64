package router

import (
	"context"

	"github.com/gabrielmiguelok/scholarpage/pkg/core"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/protocol"
	"github.com/gabrielmiguelok/scholarpage/pkg/recovery"
)

// serve runs one session: client frames and delivered info messages are
// handled one at a time until the connection or the router closes.
func (r *Router) serve(logger logging.Logger, s *LiveSession) {
	reason := core.TerminateNormal
	defer func() { r.disconnect(logger, s, reason) }()

	ctx := core.BuildContext(r.base, s.Socket, s.Session, s.Params)
	for {
		select {
		case msg := <-s.Transport.Receive():
			s.Socket.UpdateActivity()
			r.metrics.FramesReceived.Inc(msg.Event)
			switch msg.Event {
			case protocol.EventHeartbeat:
				r.reply(logger, s, protocol.Reply(msg.Ref, nil))
			case protocol.EventJoin:
				if err := r.join(ctx, logger, s, msg); err != nil {
					reason = core.TerminateError
					return
				}
			default:
				r.event(ctx, logger, s, msg)
			}

		case info := <-s.Socket.Info():
			if !s.Mounted() {
				continue
			}
			r.info(ctx, logger, s, info)

		case <-s.Transport.CloseChan():
			return

		case <-r.base.Done():
			reason = core.TerminateShutdown
			return
		}
	}
}

// join mounts the component on the first join and sends every patch root.
func (r *Router) join(ctx context.Context, logger logging.Logger, s *LiveSession, msg *protocol.Message) error {
	if !s.Mounted() {
		mctx, cancel := core.WithTimeout(ctx, r.timeouts.ComponentMount)
		err := recovery.Guard(logger, "mount", func() error {
			return s.Component.Mount(mctx, s.Params, s.Session)
		})
		cancel()
		if err != nil {
			r.recordPanic(err)
			logger.Error("mount failed", logging.Err(err))
			r.reply(logger, s, protocol.ErrorReply(msg.Ref, "mount failed"))
			return err
		}
		s.setMounted()
	}

	s.resetRoots()
	if err := r.push(logger, s); err != nil {
		r.reply(logger, s, protocol.ErrorReply(msg.Ref, err.Error()))
		return err
	}
	r.reply(logger, s, protocol.Reply(msg.Ref, map[string]any{"version": s.Socket.Version()}))
	return nil
}

// event applies a client event, pushes what changed, then acknowledges.
// A failed event still pushes: part of the document may have changed.
func (r *Router) event(ctx context.Context, logger logging.Logger, s *LiveSession, msg *protocol.Message) {
	if !s.Mounted() {
		r.reply(logger, s, protocol.ErrorReply(msg.Ref, ErrNotJoined.Error()))
		return
	}

	timer := r.metrics.EventDuration.Timer()
	ectx, cancel := core.WithTimeout(ctx, r.timeouts.ComponentEvent)
	err := recovery.Guard(logger, "event "+msg.Event, func() error {
		return s.Component.HandleEvent(ectx, msg.Event, msg.Params())
	})
	cancel()
	timer.ObserveDuration()

	if perr := r.push(logger, s); perr != nil {
		logger.Warn("patch failed", logging.String("event", msg.Event), logging.Err(perr))
	}
	if err != nil {
		r.recordPanic(err)
		r.metrics.EventErrors.Inc(msg.Event)
		logger.Warn("event failed", logging.String("event", msg.Event), logging.Err(err))
		r.reply(logger, s, protocol.ErrorReply(msg.Ref, err.Error()))
		return
	}
	r.reply(logger, s, protocol.Reply(msg.Ref, nil))
}

func (r *Router) info(ctx context.Context, logger logging.Logger, s *LiveSession, msg any) {
	ictx, cancel := core.WithTimeout(ctx, r.timeouts.ComponentInfo)
	err := recovery.Guard(logger, "info", func() error {
		return s.Component.HandleInfo(ictx, msg)
	})
	cancel()
	if err != nil {
		r.recordPanic(err)
		logger.Warn("info failed", logging.Err(err))
	}
	if err := r.push(logger, s); err != nil {
		logger.Warn("patch failed", logging.Err(err))
	}
}

// push sends the patch roots that changed since the last patch.
func (r *Router) push(logger logging.Logger, s *LiveSession) error {
	p, ok := s.Component.(core.Patcher)
	if !ok {
		return ErrNoPatchSupport
	}
	roots, err := p.Patches()
	if err != nil {
		return err
	}
	changed := s.changedRoots(roots)
	if len(changed) == 0 {
		return nil
	}
	size := 0
	for _, html := range changed {
		size += len(html)
	}
	logger.Debug("sending patch", logging.Int("roots", len(changed)), logging.Int("bytes", size))
	if err := s.Socket.SendPatch(changed); err != nil {
		return err
	}
	r.metrics.PatchesSent.Inc()
	r.metrics.PatchBytes.Observe(float64(size))
	return nil
}

func (r *Router) reply(logger logging.Logger, s *LiveSession, msg *protocol.Message) {
	if err := s.Socket.Send(msg); err != nil {
		logger.Debug("reply not sent", logging.String("ref", msg.Ref), logging.Err(err))
	}
}

func (r *Router) disconnect(logger logging.Logger, s *LiveSession, reason core.TerminateReason) {
	if s.Mounted() {
		ctx, cancel := core.WithTimeout(context.Background(), r.timeouts.ComponentTerminate)
		err := recovery.Guard(logger, "terminate", func() error {
			return s.Component.Terminate(ctx, reason)
		})
		cancel()
		if err != nil {
			logger.Warn("terminate failed", logging.Err(err))
		}
	}
	r.sessions.Remove(s.ID)
	r.sockets.Remove(s.Socket.ID())
	r.metrics.SessionsActive.Dec()
	_ = s.Socket.Close()
	logger.Debug("live session closed", logging.String("reason", reason.String()))
}
