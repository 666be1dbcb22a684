package pool

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/envelope"
	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/executor"
	"github.com/wippyai/zhur/message"
)

const (
	DefaultMaxExecutors   = 3
	DefaultMaxOutstanding = 1024

	requestBuffer = 64
	kvBuffer      = 64
)

// CodeSource resolves an app to its module bytes. A missing or disabled app
// is an error of kind app_not_found.
type CodeSource interface {
	Resolve(ctx context.Context, owner, app string) ([]byte, error)
}

// Config configures a pool.
type Config struct {
	MaxExecutors   int
	MaxOutstanding int
	Codes          CodeSource
	// Executor is passed to every executor. KV and Wake are set by the pool.
	Executor executor.Config
}

// Stats is a snapshot of the pool.
type Stats struct {
	Executors    int
	Busy         int
	Queued       int
	MaxExecutors int
}

// Pool schedules invocations onto a bounded set of executors. The executor
// list, the queue and every executor handle are owned by the goroutine
// running Run; everything else talks to it through channels.
type Pool struct {
	cfg      Config
	requests *envelope.Channel[message.Invocation, message.Reply]
	control  *envelope.Channel[command, result]
	kv       *executor.KVBridge
	wake     chan struct{}

	executors   []*executor.Executor
	outstanding []*executor.InvocationEnvelope

	// trace observes every routing decision. Tests only.
	trace func(message.Invocation, Decision)
}

// New creates a pool. Nothing runs until Run is called.
func New(cfg Config) *Pool {
	if cfg.MaxExecutors <= 0 {
		cfg.MaxExecutors = DefaultMaxExecutors
	}
	if cfg.MaxOutstanding <= 0 {
		cfg.MaxOutstanding = DefaultMaxOutstanding
	}

	p := &Pool{
		cfg:      cfg,
		requests: envelope.NewChannel[message.Invocation, message.Reply](requestBuffer),
		control:  envelope.NewChannel[command, result](0),
		kv:       envelope.NewChannel[message.KVRequest, message.KVReply](kvBuffer),
		wake:     make(chan struct{}, 1),
	}
	p.cfg.Executor.KV = p.kv
	p.cfg.Executor.Wake = p.wake
	return p
}

// KV is the channel executors send KV host calls through. Someone must
// serve it, see core.KVForwarder.
func (p *Pool) KV() *executor.KVBridge {
	return p.kv
}

// Invoke routes inv and waits for its reply.
func (p *Pool) Invoke(ctx context.Context, inv message.Invocation) (message.Reply, error) {
	return p.requests.Call(ctx, inv)
}

// Run owns the executors until ctx ends. On the way out every queued
// envelope is answered with shutting_down and every executor is shut down
// and joined.
func (p *Pool) Run(ctx context.Context) error {
	log := Logger()
	log.Info("pool started",
		zap.Int("max_executors", p.cfg.MaxExecutors),
		zap.Int("max_outstanding", p.cfg.MaxOutstanding))
	defer p.shutdown()

	for {
		select {
		case env := <-p.requests.Receive():
			p.refresh()
			p.drain(ctx)
			p.route(ctx, env)
		case env := <-p.control.Receive():
			p.refresh()
			env.Reply(p.handle(ctx, env.Request))
			p.drain(ctx)
		case <-p.wake:
			p.refresh()
			p.drain(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// refresh promotes executors whose done signal arrived to free.
func (p *Pool) refresh() {
	for _, e := range p.executors {
		e.Poll()
	}
}

func (p *Pool) route(ctx context.Context, env *executor.InvocationEnvelope) {
	if p.dispatch(ctx, env) {
		return
	}
	if len(p.outstanding) >= p.cfg.MaxOutstanding {
		Logger().Warn("pool saturated, rejecting",
			zap.Stringer("app", env.Request),
			zap.Int("queued", len(p.outstanding)))
		env.Reply(message.FromError(errors.New(errors.PhaseSchedule, errors.KindPoolSaturated).
			App(env.Request.Owner, env.Request.AppName).
			Detail("%d invocations already queued", len(p.outstanding)).
			Build()))
		return
	}
	p.outstanding = append(p.outstanding, env)
	Logger().Debug("put away", zap.Stringer("app", env.Request), zap.Int("queued", len(p.outstanding)))
}

// drain retries queued envelopes in arrival order until one has to wait again.
func (p *Pool) drain(ctx context.Context) {
	for len(p.outstanding) > 0 {
		if !p.dispatch(ctx, p.outstanding[0]) {
			return
		}
		p.outstanding[0] = nil
		p.outstanding = p.outstanding[1:]
	}
}

// dispatch places env on an executor, or answers it when its code cannot be
// found. It reports false when env has to wait.
func (p *Pool) dispatch(ctx context.Context, env *executor.InvocationEnvelope) bool {
	inv := env.Request
	d := decide(p.executors, p.cfg.MaxExecutors, inv.Owner, inv.AppName)
	if p.trace != nil {
		p.trace(inv, d)
	}
	log := Logger().With(zap.Stringer("app", inv), zap.Stringer("action", d.Action))

	switch d.Action {
	case Forward:
		log.Debug("route", zap.Int("executor", d.Index))
		p.executors[d.Index].Invoke(env)
		return true
	case PutAway:
		return false
	}

	// spawn and replace both need the code before touching an executor
	code, err := p.cfg.Codes.Resolve(ctx, inv.Owner, inv.AppName)
	if err != nil {
		log.Info("code lookup failed", zap.Error(err))
		env.Reply(message.FromError(err))
		return true
	}

	if d.Action == SpawnNew {
		e := executor.Spawn(p.cfg.Executor, d.Index, inv.Owner, inv.AppName, code)
		p.executors = append(p.executors, e)
		log.Debug("route", zap.Int("executor", d.Index))
		e.Invoke(env)
		return true
	}

	e := p.executors[d.Index]
	log.Debug("route", zap.Int("executor", d.Index),
		zap.String("evicted_owner", e.Owner),
		zap.String("evicted_app", e.AppName))
	e.LoadCode(inv.Owner, inv.AppName, code)
	e.Invoke(env)
	return true
}

func (p *Pool) shutdown() {
	log := Logger()
	p.requests.Close()
	p.control.Close()

	gone := message.Failed(message.FailureShuttingDown, "pool is shutting down")
	for _, env := range p.outstanding {
		env.Reply(gone)
	}
	p.outstanding = nil
	p.requests.Drain(func(env *executor.InvocationEnvelope) {
		env.Reply(gone)
	})
	p.control.Drain(func(env *envelope.Envelope[command, result]) {
		env.Reply(result{err: errors.BridgeClosed("pool is shutting down")})
	})

	// invocations already on an executor run to completion. A KV call made
	// from now on fails with bridge_closed and the guest traps.
	p.kv.Close()
	p.kv.Drain(func(env *envelope.Envelope[message.KVRequest, message.KVReply]) {
		env.Reply(message.KVReply{Err: "kv bridge closed"})
	})
	for _, e := range p.executors {
		e.Shutdown()
	}
	log.Info("pool stopped", zap.Int("executors", len(p.executors)))
}
