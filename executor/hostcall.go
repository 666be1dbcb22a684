package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
)

// Host call namespaces.
const (
	NamespaceRoot      = ""
	NamespaceInternals = "internals"
	NamespaceDatetime  = "datetime"
	NamespaceKV        = "kv"
)

// hostCall runs on the actor goroutine, inside a sandboxed call.
func (a *actor) hostCall(ctx context.Context, namespace, operation string, payload []byte) ([]byte, error) {
	switch namespace {
	case NamespaceRoot:
		switch operation {
		case "whoami":
			return a.whoami()
		case "datetime":
			return a.now()
		}
	case NamespaceInternals:
		if operation == "whoami" {
			return a.whoami()
		}
	case NamespaceDatetime:
		if operation == "now" {
			return a.now()
		}
	case NamespaceKV:
		if op := message.KVOp(operation); op.Valid() {
			return a.kvCall(ctx, op, payload)
		}
	}
	return nil, errors.Unsupported(errors.PhaseHost, fmt.Sprintf("host call %q in namespace %q", operation, namespace))
}

func (a *actor) whoami() ([]byte, error) {
	return encode(message.Identity{Owner: a.meta.Owner, AppName: a.meta.AppName})
}

func (a *actor) now() ([]byte, error) {
	now := a.cfg.Now().UTC()
	return encode(message.Timestamp{UnixNano: now.UnixNano(), RFC3339: now.Format(time.RFC3339Nano)})
}

// kvCall blocks the actor until the KV bridge replies.
func (a *actor) kvCall(ctx context.Context, op message.KVOp, payload []byte) ([]byte, error) {
	if a.cfg.KV == nil {
		return nil, errors.Unsupported(errors.PhaseHost, "kv is not configured")
	}

	var args message.KVArgs
	if err := msgpack.Unmarshal(payload, &args); err != nil {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Cause(err).
			Detail("kv.%s arguments", op).
			Build()
	}

	rep, err := a.cfg.KV.Call(ctx, args.Request(op, a.meta.Owner))
	if err != nil {
		a.log.Error("kv bridge failed", zap.String("op", string(op)), zap.Error(err))
		return nil, err
	}
	if rep.Err != "" {
		return nil, errors.New(errors.PhaseHost, errors.KindIO).
			App(a.meta.Owner, a.meta.AppName).
			Detail("kv.%s: %s", op, rep.Err).
			Build()
	}

	switch op {
	case message.KVGet:
		return encode(message.KVValue{Found: rep.Found, Value: rep.Value})
	case message.KVScan:
		return encode(message.KVScanResult{Pairs: rep.Pairs})
	case message.KVDelPrefix:
		return encode(message.KVCount{Count: rep.Count})
	}
	return nil, nil
}

func encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindSerialize, err, fmt.Sprintf("encode %T", v))
	}
	return data, nil
}
