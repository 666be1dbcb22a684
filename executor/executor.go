package executor

import (
	"fmt"
	"runtime"
	"time"

	"github.com/wippyai/zhur/engine"
	"github.com/wippyai/zhur/errors"
)

const (
	// DefaultEntryOp is the guest operation an invocation calls.
	DefaultEntryOp = "handle"

	// DefaultJoinTimeout bounds how long Shutdown waits for the actor.
	DefaultJoinTimeout = 30 * time.Second

	mailboxSize = 16
)

// Config is shared by every executor of a pool.
type Config struct {
	Loader      engine.Loader
	EntryOp     string
	KV          *KVBridge
	JoinTimeout time.Duration

	// Wake, if set, is poked without blocking each time an invocation finishes.
	Wake chan<- struct{}

	// Now is the clock behind the datetime host call. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.EntryOp == "" {
		c.EntryOp = DefaultEntryOp
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Executor is the scheduler's handle on one execution actor. Its fields are
// owned by the scheduling goroutine; the actor keeps its own copy of the
// identity.
type Executor struct {
	ID      int
	Owner   string
	AppName string

	free        bool
	msgs        chan Msg
	done        chan struct{}
	thread      chan struct{}
	joinTimeout time.Duration
}

// Spawn starts an actor on its own OS thread and asks it to load code.
func Spawn(cfg Config, id int, owner, app string, code []byte) *Executor {
	cfg = cfg.withDefaults()

	e := &Executor{
		ID:          id,
		Owner:       owner,
		AppName:     app,
		free:        true,
		msgs:        make(chan Msg, mailboxSize),
		done:        make(chan struct{}, 1),
		thread:      make(chan struct{}),
		joinTimeout: cfg.JoinTimeout,
	}

	a := newActor(cfg, id, e.done)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(e.thread)
		a.run(e.msgs)
	}()

	e.msgs <- LoadCode{Owner: owner, AppName: app, Code: code}
	return e
}

// LoadCode swaps the module and the identity. It does not wait for the load.
func (e *Executor) LoadCode(owner, app string, code []byte) {
	e.Owner, e.AppName = owner, app
	e.msgs <- LoadCode{Owner: owner, AppName: app, Code: code}
}

// Invoke hands env to the actor and marks the executor busy until the actor
// signals done.
func (e *Executor) Invoke(env *InvocationEnvelope) {
	e.free = false
	e.msgs <- Invoke{Envelope: env}
}

// Rename updates the cached and the actor's app name.
func (e *Executor) Rename(app string) {
	e.AppName = app
	e.msgs <- Rename{AppName: app}
}

// Retire clears the identity so the executor no longer matches any app.
func (e *Executor) Retire() {
	e.Owner, e.AppName = "", ""
	e.msgs <- Unload{}
}

// Shutdown stops the actor and joins it. An actor that cannot be joined
// within the join timeout is a fatal error.
func (e *Executor) Shutdown() {
	timer := time.NewTimer(e.joinTimeout)
	defer timer.Stop()

	select {
	case e.msgs <- Shutdown{}:
	case <-timer.C:
		panic(errors.ProtocolViolation(fmt.Sprintf("executor %d mailbox full for %s on shutdown", e.ID, e.joinTimeout)))
	}
	select {
	case <-e.thread:
	case <-timer.C:
		panic(errors.ProtocolViolation(fmt.Sprintf("executor %d not joined within %s", e.ID, e.joinTimeout)))
	}
}

// Poll consumes a pending done signal without blocking and reports whether
// the executor is free.
func (e *Executor) Poll() bool {
	select {
	case <-e.done:
		e.free = true
	default:
	}
	return e.free
}

// Free reports the cached free flag. Call Poll to refresh it.
func (e *Executor) Free() bool {
	return e.free
}

// Matches reports whether the executor holds (owner, app).
func (e *Executor) Matches(owner, app string) bool {
	return e.Owner != "" && e.Owner == owner && e.AppName == app
}

// Exited is closed once the actor goroutine has returned.
func (e *Executor) Exited() <-chan struct{} {
	return e.thread
}
