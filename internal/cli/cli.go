// Package cli holds the startup sequence shared by the zhur binaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wippyai/zhur/appstore"
	"github.com/wippyai/zhur/config"
	"github.com/wippyai/zhur/core"
	"github.com/wippyai/zhur/engine"
	"github.com/wippyai/zhur/executor"
	"github.com/wippyai/zhur/gate"
	"github.com/wippyai/zhur/kv"
	"github.com/wippyai/zhur/pool"
	"github.com/wippyai/zhur/transport"
)

// Setup reads the environment, builds the process logger and hands it to
// every package. Missing variables are reported through that logger once it
// exists.
func Setup(name string) (config.Config, *zap.Logger) {
	// the level and format come from the environment, so read it twice
	boot, err := config.FromEnv(nil)
	if err != nil {
		fatal(err)
	}
	log, err := config.NewLogger(boot.LogLevel, boot.LogFormat)
	if err != nil {
		fatal(err)
	}
	log = log.Named(name)

	cfg, err := config.FromEnv(log)
	if err != nil {
		fatal(err)
	}

	transport.SetLogger(log.Named("transport"))
	engine.SetLogger(log.Named("engine"))
	executor.SetLogger(log.Named("executor"))
	pool.SetLogger(log.Named("pool"))
	kv.SetLogger(log.Named("kv"))
	appstore.SetLogger(log.Named("appstore"))
	core.SetLogger(log.Named("core"))
	gate.SetLogger(log.Named("gate"))
	return cfg, log
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var stderr io.Writer = os.Stderr

// Fail logs err, prints it for the operator and returns the process exit
// code. Binaries return it from their run function so deferred cleanup
// still happens before os.Exit.
func Fail(log *zap.Logger, msg string, err error) int {
	if log != nil {
		log.Error(msg, zap.Error(err))
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
