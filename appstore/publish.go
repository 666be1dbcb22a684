package appstore

import (
	"context"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

// Publisher pushes app events to a core's control endpoint.
type Publisher struct {
	conn *transport.Client
}

func NewPublisher(ep transport.Endpoint, opts transport.Options) *Publisher {
	return &Publisher{conn: transport.NewClient(ep, opts)}
}

// Publish sends ev and waits for the core's acknowledgement.
func (p *Publisher) Publish(ctx context.Context, ev message.AppEvent) error {
	var ack message.Ack
	if err := p.conn.Call(ctx, ev, &ack); err != nil {
		return err
	}
	if !ack.OK {
		return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			App(ev.Owner, ev.AppName).
			Detail("core rejected %s event: %s", ev.Kind, ack.Err).
			Build()
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
