package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/appstore"
	"github.com/wippyai/zhur/config"
	"github.com/wippyai/zhur/core"
	"github.com/wippyai/zhur/engine"
	"github.com/wippyai/zhur/executor"
	"github.com/wippyai/zhur/internal/cli"
	"github.com/wippyai/zhur/kv"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/pool"
	"github.com/wippyai/zhur/transport"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		owner   = flag.String("owner", "", "Preload an app of this owner (development mode)")
		app     = flag.String("app", "", "Preload this app (development mode)")
		apps    = flag.String("apps", "", "Serve code from a local app directory instead of the app store")
		localKV = flag.Bool("local-kv", false, "Keep KV data in memory instead of using the KV service")
		workers = flag.Int("kv-workers", 4, "Concurrent KV round trips")
	)
	flag.Parse()

	cfg, log := cli.Setup("zhur-core")
	defer log.Sync()

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, log, *owner, *app, *apps, *localKV, *workers); err != nil {
		return cli.Fail(log, "core failed", err)
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, owner, app, apps string, localKV bool, workers int) error {
	opts := cfg.Transport()

	var codes pool.CodeSource
	if apps != "" {
		store, err := appstore.Open(apps)
		if err != nil {
			return err
		}
		codes = store
		log.Info("serving code from local directory", zap.String("dir", apps))
	} else {
		client := appstore.NewClient(cfg.AppStore, opts)
		defer client.Close()
		codes = client
	}

	p := pool.New(pool.Config{
		MaxExecutors:   cfg.MaxExecutors,
		MaxOutstanding: cfg.MaxOutstanding,
		Codes:          codes,
		Executor: executor.Config{
			Loader:  engine.New(engine.Config{MemoryLimitPages: cfg.MemoryLimitPages}),
			EntryOp: cfg.EntryOp,
		},
	})

	var backends []core.KVBackend
	if localKV {
		backends = append(backends, core.LocalKV{Store: kv.NewMemoryStore()})
	} else {
		for range max(workers, 1) {
			r := core.NewRemoteKV(cfg.KVEndpoint, opts)
			defer r.Close()
			backends = append(backends, r)
		}
	}

	invocations, err := transport.Listen(ctx, cfg.CoreEndpoint, opts)
	if err != nil {
		return err
	}
	control, err := transport.Listen(ctx, cfg.ControlEndpoint, opts)
	if err != nil {
		_ = invocations.Close()
		return err
	}

	node := &core.Node{
		Pool:        p,
		Invocations: invocations,
		Control:     control,
		KV:          core.NewKVForwarder(p.KV(), backends...),
	}
	if owner != "" && app != "" {
		node.Preload = []message.Identity{{Owner: owner, AppName: app}}
	}

	log.Info("core started",
		zap.Stringer("invocations", cfg.CoreEndpoint),
		zap.Stringer("control", cfg.ControlEndpoint),
		zap.Int("max_executors", cfg.MaxExecutors))
	err = node.Run(ctx)
	log.Info("core stopped")
	return err
}
