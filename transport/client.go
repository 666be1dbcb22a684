package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
)

// Client holds one persistent connection to a request/reply server. Round
// trips are serialised; a new request is not sent before the previous reply
// has been read.
type Client struct {
	endpoint Endpoint
	opts     Options

	mu     sync.Mutex
	conn   *Conn
	reused bool
	closed bool
}

// NewClient creates a client for ep. Nothing is dialed until the first Call.
func NewClient(ep Endpoint, opts Options) *Client {
	return &Client{endpoint: ep, opts: opts}
}

// Endpoint returns the server address.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// Call sends req and decodes the reply into reply. A connection that turns out
// to be gone on reuse is redialed once.
func (c *Client) Call(ctx context.Context, req, reply any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.BridgeClosed("client for " + c.endpoint.String() + " is closed")
	}

	for attempt := 0; ; attempt++ {
		conn, reused, err := c.connect(ctx)
		if err != nil {
			return err
		}

		err = c.roundTrip(ctx, conn, req, reply)
		if err == nil {
			c.reused = true
			return nil
		}

		c.drop()
		if reused && attempt == 0 && errors.IsDisconnect(err) {
			Logger().Debug("redialing after stale connection",
				zap.Stringer("endpoint", c.endpoint),
				zap.Error(err))
			continue
		}
		return err
	}
}

func (c *Client) connect(ctx context.Context) (*Conn, bool, error) {
	if c.conn != nil {
		return c.conn, c.reused, nil
	}
	s, err := Dial(ctx, c.endpoint, c.opts)
	if err != nil {
		return nil, false, err
	}
	c.conn = NewConn(s, RoleClient)
	c.reused = false
	return c.conn, false, nil
}

func (c *Client) roundTrip(ctx context.Context, conn *Conn, req, reply any) error {
	deadline := time.Time{}
	if c.opts.RequestTimeout > 0 {
		deadline = time.Now().Add(c.opts.RequestTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return errors.IO("set deadline", err)
	}

	// unblock a read or write in flight when ctx ends
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := conn.Send(req); err != nil {
		return c.contextErr(ctx, err)
	}
	if err := conn.Receive(reply); err != nil {
		return c.contextErr(ctx, err)
	}
	return nil
}

func (c *Client) contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.IO("round trip to "+c.endpoint.String()+" cancelled", ctx.Err())
	}
	return err
}

func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.reused = false
}

// Close drops the connection. Later calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.drop()
	return nil
}
