package envelope

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wippyai/zhur/errors"
)

// Envelope pairs a request with the private channel its single reply goes
// back through, like the return address on a mail envelope.
type Envelope[Req, Res any] struct {
	Request Req
	reply   chan Res
	replied atomic.Bool
}

// New wraps req in an envelope with a fresh one-shot reply channel.
func New[Req, Res any](req Req) *Envelope[Req, Res] {
	return &Envelope[Req, Res]{
		Request: req,
		reply:   make(chan Res, 1),
	}
}

// Reply delivers the reply. It never blocks. Replying twice is a bug in the
// caller and panics.
func (e *Envelope[Req, Res]) Reply(res Res) {
	if !e.replied.CompareAndSwap(false, true) {
		panic(errors.ProtocolViolation("envelope replied to twice"))
	}
	e.reply <- res
}

// Replied reports whether Reply has been called.
func (e *Envelope[Req, Res]) Replied() bool {
	return e.replied.Load()
}

// Wait blocks until the reply arrives or ctx is done.
func (e *Envelope[Req, Res]) Wait(ctx context.Context) (Res, error) {
	select {
	case res := <-e.reply:
		return res, nil
	case <-ctx.Done():
		var zero Res
		return zero, ctx.Err()
	}
}

// Channel carries envelopes from any number of clients to one serving actor.
// Every envelope Send accepts is answered: by the actor while it runs, or by
// Drain once the channel is closed.
type Channel[Req, Res any] struct {
	envelopes chan *Envelope[Req, Res]
	closed    chan struct{}

	mu       sync.Mutex
	isClosed bool
	senders  sync.WaitGroup
}

// NewChannel creates a channel buffering up to buffer envelopes.
func NewChannel[Req, Res any](buffer int) *Channel[Req, Res] {
	return &Channel[Req, Res]{
		envelopes: make(chan *Envelope[Req, Res], buffer),
		closed:    make(chan struct{}),
	}
}

// Send hands env to the serving actor.
func (c *Channel[Req, Res]) Send(ctx context.Context, env *Envelope[Req, Res]) error {
	c.mu.Lock()
	if c.isClosed {
		c.mu.Unlock()
		return errors.BridgeClosed("send on closed envelope channel")
	}
	c.senders.Add(1)
	c.mu.Unlock()
	defer c.senders.Done()

	select {
	case c.envelopes <- env:
		return nil
	case <-c.closed:
		return errors.BridgeClosed("send on closed envelope channel")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call sends req and waits for its reply. Once the envelope is accepted the
// reply is awaited even if the channel closes meanwhile.
func (c *Channel[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	var zero Res

	env := New[Req, Res](req)
	if err := c.Send(ctx, env); err != nil {
		return zero, err
	}
	return env.Wait(ctx)
}

// Request is Call without cancellation. A closed channel is a fatal bridge
// failure and panics.
func (c *Channel[Req, Res]) Request(req Req) Res {
	res, err := c.Call(context.Background(), req)
	if err != nil {
		panic(err)
	}
	return res
}

// Receive returns the stream of envelopes for the serving actor.
func (c *Channel[Req, Res]) Receive() <-chan *Envelope[Req, Res] {
	return c.envelopes
}

// Done is closed once Close has been called.
func (c *Channel[Req, Res]) Done() <-chan struct{} {
	return c.closed
}

// Close stops accepting envelopes. Safe to call more than once. Envelopes
// already accepted stay queued for the actor or for Drain.
func (c *Channel[Req, Res]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		c.isClosed = true
		close(c.closed)
	}
}

// Drain answers every envelope still queued on a closed channel. It waits
// for in-progress Sends to settle first, so nothing accepted is left behind.
// Calling Drain before Close panics.
func (c *Channel[Req, Res]) Drain(answer func(env *Envelope[Req, Res])) int {
	c.mu.Lock()
	closed := c.isClosed
	c.mu.Unlock()
	if !closed {
		panic(errors.ProtocolViolation("drain on open envelope channel"))
	}

	c.senders.Wait()
	n := 0
	for {
		select {
		case env := <-c.envelopes:
			answer(env)
			n++
		default:
			return n
		}
	}
}

// Handler computes the reply for one request.
type Handler[Req, Res any] func(ctx context.Context, req Req) Res

// Serve runs the recv → compute → reply loop until ctx is done or the
// channel is closed. On close the envelopes still queued are computed and
// answered before Serve returns.
func Serve[Req, Res any](ctx context.Context, c *Channel[Req, Res], h Handler[Req, Res]) error {
	for {
		select {
		case env := <-c.envelopes:
			env.Reply(h(ctx, env.Request))
		case <-c.closed:
			c.Drain(func(env *Envelope[Req, Res]) {
				env.Reply(h(ctx, env.Request))
			})
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
