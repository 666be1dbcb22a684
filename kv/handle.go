package kv

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
)

// Handle applies one request to store. Failures travel in KVReply.Err.
func Handle(ctx context.Context, store Store, req message.KVRequest) message.KVReply {
	rep, err := handle(ctx, store, req)
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

func handle(ctx context.Context, store Store, req message.KVRequest) (message.KVReply, error) {
	if req.Owner == "" || req.Table == "" {
		return message.KVReply{}, errors.InvalidInput(errors.PhaseHost, "owner and table are required")
	}

	switch req.Op {
	case message.KVGet:
		v, ok, err := store.Get(ctx, req.Owner, req.Table, req.Key)
		return message.KVReply{Found: ok, Value: v}, err
	case message.KVSet:
		return message.KVReply{}, store.Set(ctx, req.Owner, req.Table, req.Key, req.Value)
	case message.KVDel:
		return message.KVReply{}, store.Del(ctx, req.Owner, req.Table, req.Key)
	case message.KVScan:
		pairs, err := store.Scan(ctx, req.Owner, req.Table, req.Prefix)
		return message.KVReply{Pairs: pairs, Count: len(pairs)}, err
	case message.KVDelPrefix:
		n, err := store.DelPrefix(ctx, req.Owner, req.Table, req.Prefix)
		return message.KVReply{Count: n}, err
	case message.KVSetMany:
		return message.KVReply{Count: len(req.Pairs)}, store.SetMany(ctx, req.Owner, req.Table, req.Pairs)
	}
	return message.KVReply{}, errors.Unsupported(errors.PhaseHost, "kv op "+string(req.Op))
}
