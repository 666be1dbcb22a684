package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/engine"
	"github.com/wippyai/zhur/message"
)

// Metadata is the identity an actor runs under. It is read by host calls and
// written by LoadCode, Rename and Unload, all on the actor goroutine.
type Metadata struct {
	Owner   string
	AppName string
	ID      int
}

type actor struct {
	cfg     Config
	meta    Metadata
	sandbox engine.Sandbox
	loadErr error
	done    chan<- struct{}
	ctx     context.Context
	log     *zap.Logger
}

func newActor(cfg Config, id int, done chan<- struct{}) *actor {
	return &actor{
		cfg:  cfg,
		meta: Metadata{ID: id},
		done: done,
		ctx:  context.Background(),
		log:  Logger().With(zap.Int("executor", id)),
	}
}

func (a *actor) run(msgs <-chan Msg) {
	for msg := range msgs {
		switch m := msg.(type) {
		case LoadCode:
			a.load(m)
		case Rename:
			a.log.Debug("rename", zap.String("from", a.meta.AppName), zap.String("to", m.AppName))
			a.meta.AppName = m.AppName
		case Invoke:
			a.invoke(m.Envelope)
		case Unload:
			a.unload()
			a.meta.Owner, a.meta.AppName = "", ""
		case Shutdown:
			a.unload()
			a.log.Debug("shut down")
			return
		}
	}
}

// load swaps the module. A failed load leaves the actor alive without a
// sandbox; invocations then fail with a load failure.
func (a *actor) load(m LoadCode) {
	a.unload()
	a.meta.Owner, a.meta.AppName = m.Owner, m.AppName
	log := a.log.With(zap.String("owner", m.Owner), zap.String("app", m.AppName))

	sb, err := a.cfg.Loader.Load(a.ctx, m.Code, a.hostCall)
	if err != nil {
		a.loadErr = err
		log.Error("load failed, executor degraded", zap.Error(err))
		return
	}
	a.sandbox = sb
	a.loadErr = nil
	log.Debug("code loaded", zap.Int("bytes", len(m.Code)))
}

func (a *actor) unload() {
	if a.sandbox == nil {
		return
	}
	if err := a.sandbox.Close(a.ctx); err != nil {
		a.log.Warn("close sandbox", zap.Error(err))
	}
	a.sandbox = nil
}

// invoke replies and then signals done, whatever happens in between.
func (a *actor) invoke(env *InvocationEnvelope) {
	defer a.signalDone()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("invocation panicked", zap.Any("panic", r))
			if !env.Replied() {
				env.Reply(message.Failed(message.FailureTrap, fmt.Sprintf("panic: %v", r)))
			}
		}
	}()

	env.Reply(a.execute(env.Request))
}

func (a *actor) execute(inv message.Invocation) message.Reply {
	if a.sandbox == nil {
		detail := "no code loaded"
		if a.loadErr != nil {
			detail = a.loadErr.Error()
		}
		return message.Failed(message.FailureLoad, detail)
	}

	out := a.sandbox.Call(a.ctx, a.cfg.EntryOp, inv.Payload)
	if out.Trapped {
		a.log.Warn("invocation trapped",
			zap.String("owner", a.meta.Owner),
			zap.String("app", a.meta.AppName),
			zap.String("trap", out.Trap))
		return message.Failed(message.FailureTrap, out.Trap)
	}
	return message.Success(out.Output)
}

func (a *actor) signalDone() {
	select {
	case a.done <- struct{}{}:
	default:
	}
	if a.cfg.Wake != nil {
		select {
		case a.cfg.Wake <- struct{}{}:
		default:
		}
	}
}
