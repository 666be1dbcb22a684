package core

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/zhur/envelope"
	"github.com/wippyai/zhur/executor"
	"github.com/wippyai/zhur/kv"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

// KVBackend performs one KV request.
type KVBackend interface {
	Do(ctx context.Context, req message.KVRequest) (message.KVReply, error)
}

// RemoteKV sends requests to a KV service, one round trip each.
type RemoteKV struct {
	client *transport.Client
}

func NewRemoteKV(ep transport.Endpoint, opts transport.Options) *RemoteKV {
	return &RemoteKV{client: transport.NewClient(ep, opts)}
}

func (r *RemoteKV) Do(ctx context.Context, req message.KVRequest) (message.KVReply, error) {
	var rep message.KVReply
	err := r.client.Call(ctx, req, &rep)
	return rep, err
}

func (r *RemoteKV) Close() error { return r.client.Close() }

// LocalKV answers requests from an in-process store.
type LocalKV struct {
	Store kv.Store
}

func (l LocalKV) Do(ctx context.Context, req message.KVRequest) (message.KVReply, error) {
	return kv.Handle(ctx, l.Store, req), nil
}

// KVForwarder serves a pool's KV bridge. Each backend gets its own worker,
// so that many KV calls can be in flight at once.
type KVForwarder struct {
	bridge   *executor.KVBridge
	backends []KVBackend
}

func NewKVForwarder(bridge *executor.KVBridge, backends ...KVBackend) *KVForwarder {
	return &KVForwarder{bridge: bridge, backends: backends}
}

// Run forwards envelopes until ctx ends or the bridge is closed.
func (f *KVForwarder) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range f.backends {
		g.Go(func() error {
			err := envelope.Serve(gctx, f.bridge, func(ctx context.Context, req message.KVRequest) message.KVReply {
				return forward(ctx, b, req)
			})
			if gctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func forward(ctx context.Context, b KVBackend, req message.KVRequest) message.KVReply {
	rep, err := b.Do(ctx, req)
	if err != nil {
		Logger().Warn("kv request failed",
			zap.String("op", string(req.Op)),
			zap.String("owner", req.Owner),
			zap.String("table", req.Table),
			zap.Error(err))
		return message.KVReply{Err: err.Error()}
	}
	return rep
}
