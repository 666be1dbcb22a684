package appstore

import (
	"context"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

// Client resolves app code from a remote app store. It satisfies
// pool.CodeSource.
type Client struct {
	conn *transport.Client
}

// NewClient creates a client for the app store at ep.
func NewClient(ep transport.Endpoint, opts transport.Options) *Client {
	return &Client{conn: transport.NewClient(ep, opts)}
}

// Resolve fetches and decodes the code of (owner, app) in one round trip.
func (c *Client) Resolve(ctx context.Context, owner, app string) ([]byte, error) {
	var rep message.AppReply
	if err := c.conn.Call(ctx, message.AppRequest{Owner: owner, AppName: app}, &rep); err != nil {
		return nil, err
	}
	if rep.Err != "" {
		return nil, errors.New(errors.PhaseLoad, errors.KindIO).
			App(owner, app).
			Detail("app store: %s", rep.Err).
			Build()
	}
	if !rep.Found {
		return nil, errors.AppNotFound(owner, app)
	}
	return Decode(rep.Code, rep.Encoding)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
