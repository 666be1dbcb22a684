package pool

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/executor"
	"github.com/wippyai/zhur/message"
)

// command is a control request served on the routing goroutine.
type command interface {
	isCommand()
}

type notifyCmd struct{ event message.AppEvent }

type preloadCmd struct{ owner, app string }

type statsCmd struct{}

func (notifyCmd) isCommand()  {}
func (preloadCmd) isCommand() {}
func (statsCmd) isCommand()   {}

type result struct {
	stats    Stats
	affected int
	err      error
}

// Notify applies an app store event to every executor holding the app and
// returns how many executors it touched. An update without code is resolved
// through the CodeSource.
func (p *Pool) Notify(ctx context.Context, ev message.AppEvent) (int, error) {
	res, err := p.control.Call(ctx, notifyCmd{event: ev})
	if err != nil {
		return 0, err
	}
	return res.affected, res.err
}

// Preload spawns an idle executor for the app. It fails when the pool is full.
func (p *Pool) Preload(ctx context.Context, owner, app string) error {
	res, err := p.control.Call(ctx, preloadCmd{owner: owner, app: app})
	if err != nil {
		return err
	}
	return res.err
}

// Stats returns a snapshot taken on the routing goroutine.
func (p *Pool) Stats(ctx context.Context) (Stats, error) {
	res, err := p.control.Call(ctx, statsCmd{})
	if err != nil {
		return Stats{}, err
	}
	return res.stats, nil
}

func (p *Pool) handle(ctx context.Context, cmd command) result {
	switch c := cmd.(type) {
	case notifyCmd:
		n, err := p.notify(ctx, c.event)
		return result{affected: n, err: err}
	case preloadCmd:
		return result{err: p.preload(ctx, c.owner, c.app)}
	case statsCmd:
		return result{stats: p.stats()}
	}
	return result{err: errors.Unsupported(errors.PhaseSchedule, fmt.Sprintf("command %T", cmd))}
}

func (p *Pool) notify(ctx context.Context, ev message.AppEvent) (int, error) {
	holders := p.holders(ev.Owner, ev.AppName)
	log := Logger().With(
		zap.String("event", string(ev.Kind)),
		zap.String("owner", ev.Owner),
		zap.String("app", ev.AppName),
		zap.Int("executors", len(holders)))

	switch ev.Kind {
	case message.AppUpdate:
		if len(holders) == 0 {
			return 0, nil
		}
		code := ev.Code
		if len(code) == 0 {
			var err error
			if code, err = p.cfg.Codes.Resolve(ctx, ev.Owner, ev.AppName); err != nil {
				return 0, err
			}
		}
		for _, e := range holders {
			e.LoadCode(ev.Owner, ev.AppName, code)
		}
	case message.AppRename:
		if ev.NewName == "" {
			return 0, errors.InvalidInput(errors.PhaseSchedule, "rename without a new name")
		}
		for _, e := range holders {
			e.Rename(ev.NewName)
		}
	case message.AppRemove:
		for _, e := range holders {
			e.Retire()
		}
	default:
		return 0, errors.Unsupported(errors.PhaseSchedule, "app event "+string(ev.Kind))
	}

	log.Info("app event applied")
	return len(holders), nil
}

func (p *Pool) holders(owner, app string) []*executor.Executor {
	var out []*executor.Executor
	for _, e := range p.executors {
		if e.Matches(owner, app) {
			out = append(out, e)
		}
	}
	return out
}

func (p *Pool) preload(ctx context.Context, owner, app string) error {
	if len(p.executors) >= p.cfg.MaxExecutors {
		return errors.New(errors.PhaseSchedule, errors.KindPoolSaturated).
			App(owner, app).
			Detail("no room to preload, %d executors running", len(p.executors)).
			Build()
	}
	code, err := p.cfg.Codes.Resolve(ctx, owner, app)
	if err != nil {
		return err
	}
	id := len(p.executors)
	p.executors = append(p.executors, executor.Spawn(p.cfg.Executor, id, owner, app, code))
	Logger().Info("preloaded", zap.String("owner", owner), zap.String("app", app), zap.Int("executor", id))
	return nil
}

func (p *Pool) stats() Stats {
	s := Stats{
		Executors:    len(p.executors),
		Queued:       len(p.outstanding),
		MaxExecutors: p.cfg.MaxExecutors,
	}
	for _, e := range p.executors {
		if !e.Free() {
			s.Busy++
		}
	}
	return s
}
