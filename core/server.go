package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/appstore"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/pool"
	"github.com/wippyai/zhur/transport"
)

// Server exposes a pool over the transport.
type Server struct {
	pool *pool.Pool
}

func NewServer(p *pool.Pool) *Server {
	return &Server{pool: p}
}

// ServeInvocations answers Invocations with Replies until ctx ends.
func (s *Server) ServeInvocations(ctx context.Context, ln transport.Listener) error {
	Logger().Info("serving invocations", zap.String("addr", ln.Addr()))
	return transport.Serve(ctx, ln, s.invoke)
}

// ServeControl answers AppEvents from the app store with Acks until ctx ends.
func (s *Server) ServeControl(ctx context.Context, ln transport.Listener) error {
	Logger().Info("serving control events", zap.String("addr", ln.Addr()))
	return transport.Serve(ctx, ln, s.apply)
}

func (s *Server) invoke(ctx context.Context, inv message.Invocation) message.Reply {
	rep, err := s.pool.Invoke(ctx, inv)
	if err != nil {
		Logger().Warn("invocation not delivered", zap.Stringer("invocation", inv), zap.Error(err))
		return message.FromError(err)
	}
	return rep
}

func (s *Server) apply(ctx context.Context, ev message.AppEvent) message.Ack {
	log := Logger().With(
		zap.String("event", string(ev.Kind)),
		zap.String("owner", ev.Owner),
		zap.String("app", ev.AppName))

	if len(ev.Code) > 0 {
		code, err := appstore.Decode(ev.Code, ev.Encoding)
		if err != nil {
			log.Warn("rejecting app event", zap.Error(err))
			return message.Ack{Err: err.Error()}
		}
		ev.Code, ev.Encoding = code, ""
	}

	n, err := s.pool.Notify(ctx, ev)
	if err != nil {
		log.Warn("app event failed", zap.Error(err))
		return message.Ack{Err: err.Error()}
	}
	log.Debug("app event applied", zap.Int("executors", n))
	return message.Ack{OK: true}
}
