package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/gate"
	"github.com/wippyai/zhur/internal/cli"
	"github.com/wippyai/zhur/transport"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		addr    = flag.String("addr", "", "HTTP listen address (default $ZHUR_GATE_ADDR)")
		h3      = flag.Bool("h3", false, "Also serve HTTP/3 on the same port")
		maxBody = flag.Int64("max-body", gate.DefaultMaxBody, "Largest accepted request body in bytes")
	)
	flag.Parse()

	cfg, log := cli.Setup("zhur-gate")
	defer log.Sync()
	if *addr != "" {
		cfg.GateAddr = *addr
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	core := gate.NewRemoteCore(cfg.CoreEndpoint, cfg.Transport())
	defer core.Close()

	h := gate.Handler(core, *maxBody)
	g, gctx := errgroup.WithContext(ctx)

	if *h3 {
		tlsConf, err := transport.ServerTLS(cfg.Transport())
		if err != nil {
			return cli.Fail(log, "http3 setup", err)
		}
		_, p, err := net.SplitHostPort(cfg.GateAddr)
		if err != nil {
			return cli.Fail(log, "http3 setup", err)
		}
		port, _ := strconv.Atoi(p)
		g.Go(func() error { return gate.ServeHTTP3(gctx, cfg.GateAddr, tlsConf, h) })
		h = gate.AdvertiseHTTP3(h, port)
	}

	srv := &http.Server{
		Addr:              cfg.GateAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	g.Go(func() error {
		log.Info("gateway started", zap.String("addr", cfg.GateAddr), zap.Stringer("core", cfg.CoreEndpoint))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return cli.Fail(log, "gateway failed", err)
	}
	log.Info("gateway stopped")
	return 0
}
