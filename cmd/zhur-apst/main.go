package main

import (
	"flag"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/appstore"
	"github.com/wippyai/zhur/internal/cli"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		dir    = flag.String("apps", "", "App directory (default $ZHUR_APPS_DIR)")
		notify = flag.Bool("notify", true, "Push app changes to the core's control endpoint")
	)
	flag.Parse()

	cfg, log := cli.Setup("zhur-apst")
	defer log.Sync()
	if *dir != "" {
		cfg.AppsDir = *dir
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	store, err := appstore.Open(cfg.AppsDir)
	if err != nil {
		return cli.Fail(log, "open app directory", err)
	}
	ln, err := transport.Listen(ctx, cfg.AppStore, cfg.Transport())
	if err != nil {
		return cli.Fail(log, "listen", err)
	}

	var wg sync.WaitGroup
	if *notify {
		pub := appstore.NewPublisher(cfg.ControlEndpoint, cfg.Transport())
		defer pub.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Watch(ctx, func(ev message.AppEvent) {
				if err := pub.Publish(ctx, ev); err != nil {
					// a core that is down has nothing loaded to refresh
					log.Warn("publish app event",
						zap.String("event", string(ev.Kind)),
						zap.String("owner", ev.Owner),
						zap.String("app", ev.AppName),
						zap.Error(err))
				}
			})
			if err != nil {
				log.Error("watch app directory", zap.Error(err))
			}
		}()
	}

	log.Info("app store started", zap.Stringer("endpoint", cfg.AppStore), zap.String("dir", store.Root()))
	_ = transport.Serve(ctx, ln, store.Handle)
	wg.Wait()
	log.Info("app store stopped")
	return 0
}

