package appstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
)

// settle batches bursts of file events into one rescan.
const settle = 100 * time.Millisecond

// Watch rescans the store whenever its directories change and calls emit for
// every resulting event, with the new code attached to updates. It returns
// when ctx ends.
func (s *Store) Watch(ctx context.Context, emit func(message.AppEvent)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Load("create watcher", err)
	}
	defer w.Close()

	if err := s.watchTree(w); err != nil {
		return err
	}
	log := Logger().With(zap.String("root", s.root))
	log.Info("watching app store")

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && filepath.Dir(ev.Name) == s.root {
					if err := w.Add(ev.Name); err != nil {
						log.Warn("watch owner directory", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
			}
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			s.publishChanges(emit)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Store) watchTree(w *fsnotify.Watcher) error {
	if err := w.Add(s.root); err != nil {
		return errors.Load("watch "+s.root, err)
	}
	owners, err := os.ReadDir(s.root)
	if err != nil {
		return errors.Load("read app store root", err)
	}
	for _, o := range owners {
		if o.IsDir() {
			if err := w.Add(filepath.Join(s.root, o.Name())); err != nil {
				return errors.Load("watch "+o.Name(), err)
			}
		}
	}
	return nil
}

func (s *Store) publishChanges(emit func(message.AppEvent)) {
	events, err := s.Rescan()
	if err != nil {
		Logger().Warn("rescan failed", zap.Error(err))
		return
	}
	for _, ev := range events {
		if ev.Kind == message.AppUpdate {
			rep, err := s.Lookup(ev.Owner, ev.AppName)
			if err != nil || !rep.Found {
				continue
			}
			ev.Code, ev.Encoding = rep.Code, rep.Encoding
		}
		Logger().Info("app changed",
			zap.String("event", string(ev.Kind)),
			zap.String("owner", ev.Owner),
			zap.String("app", ev.AppName))
		emit(ev)
	}
}
