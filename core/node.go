package core

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/pool"
	"github.com/wippyai/zhur/transport"
)

// Node is a complete invocation core: a pool, its servers and its KV
// forwarder. Control and KV are optional.
type Node struct {
	Pool        *pool.Pool
	Invocations transport.Listener
	Control     transport.Listener
	KV          *KVForwarder
	// Preload lists apps to spawn before the first invocation arrives.
	Preload []message.Identity
}

// Run serves until ctx ends, then shuts the pool down and waits for every
// goroutine it started.
func (n *Node) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	srv := NewServer(n.Pool)

	g.Go(func() error { return n.Pool.Run(gctx) })
	if n.KV != nil {
		g.Go(func() error { return n.KV.Run(gctx) })
	}
	for _, id := range n.Preload {
		if err := n.Pool.Preload(gctx, id.Owner, id.AppName); err != nil {
			Logger().Warn("preload failed",
				zap.String("owner", id.Owner),
				zap.String("app", id.AppName),
				zap.Error(err))
		}
	}
	g.Go(func() error { return srv.ServeInvocations(gctx, n.Invocations) })
	if n.Control != nil {
		g.Go(func() error { return srv.ServeControl(gctx, n.Control) })
	}
	return g.Wait()
}
