package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
)

// Handler answers one request on a connection.
type Handler[Req, Res any] func(ctx context.Context, req Req) Res

// Serve accepts connections on ln and runs a request/reply loop on each in its
// own goroutine. A failing connection is logged and closed without affecting
// the others. Serve closes ln and every open connection when ctx ends, waits
// for connection goroutines, and returns nil.
func Serve[Req, Res any](ctx context.Context, ln Listener, h Handler[Req, Res]) error {
	log := Logger().With(zap.String("addr", ln.Addr()))

	var (
		mu    sync.Mutex
		conns = make(map[*Conn]struct{})
		wg    sync.WaitGroup
	)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		mu.Lock()
		for c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
	})
	defer stop()

	var backoff time.Duration
	for {
		s, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || listenerClosed(err) {
				break
			}
			backoff = nextBackoff(backoff)
			log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
			}
			break
		}
		backoff = 0

		conn := NewConn(s, RoleServer)
		mu.Lock()
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
				_ = conn.Close()
			}()
			serveConn(ctx, conn, h, log)
		}()
	}

	wg.Wait()
	return nil
}

func serveConn[Req, Res any](ctx context.Context, conn *Conn, h Handler[Req, Res], log *zap.Logger) {
	for {
		var req Req
		if err := conn.Receive(&req); err != nil {
			logConnErr(ctx, log, "receive request", err)
			return
		}
		res := h(ctx, req)
		if err := conn.Send(res); err != nil {
			logConnErr(ctx, log, "send reply", err)
			return
		}
	}
}

func logConnErr(ctx context.Context, log *zap.Logger, what string, err error) {
	switch {
	case ctx.Err() != nil:
	case errors.IsDisconnect(err):
		log.Debug("connection closed", zap.Error(err))
	default:
		log.Warn(what+" failed", zap.Error(err))
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
