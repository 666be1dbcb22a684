package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/internal/cli"
	"github.com/wippyai/zhur/kv"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	path := flag.String("db", "", "SQLite database path (default $ZHUR_KV_PATH, \":memory:\" for a throwaway store)")
	flag.Parse()

	cfg, log := cli.Setup("zhur-kv")
	defer log.Sync()
	if *path != "" {
		cfg.KVPath = *path
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	store, err := kv.OpenSQL(ctx, cfg.KVPath)
	if err != nil {
		return cli.Fail(log, "open store", err)
	}
	defer store.Close()

	ln, err := transport.Listen(ctx, cfg.KVEndpoint, cfg.Transport())
	if err != nil {
		return cli.Fail(log, "listen", err)
	}

	log.Info("kv service started", zap.Stringer("endpoint", cfg.KVEndpoint), zap.String("db", cfg.KVPath))
	_ = transport.Serve(ctx, ln, func(ctx context.Context, req message.KVRequest) message.KVReply {
		return kv.Handle(ctx, store, req)
	})
	log.Info("kv service stopped")
	return 0
}
