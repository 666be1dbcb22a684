package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/wippyai/zhur/config"
	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/internal/cli"
	"github.com/wippyai/zhur/message"
	"github.com/wippyai/zhur/transport"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		owner       = flag.String("owner", "", "App owner")
		app         = flag.String("app", "", "App name")
		payload     = flag.String("payload", "", "Payload (read from stdin when omitted and stdin is not a terminal)")
		endpoint    = flag.String("endpoint", "", "Core endpoint (default $ZHUR_CORE_ENDPOINT)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := config.FromEnv(nil)
	if err != nil {
		return cli.Fail(nil, "", err)
	}
	if *endpoint != "" {
		if cfg.CoreEndpoint, err = transport.ParseEndpoint(*endpoint); err != nil {
			return cli.Fail(nil, "", err)
		}
	}
	client := transport.NewClient(cfg.CoreEndpoint, cfg.Transport())
	defer client.Close()

	if *interactive {
		if err := runInteractive(client, *owner, *app); err != nil {
			return cli.Fail(nil, "", err)
		}
		return 0
	}

	if *owner == "" || *app == "" {
		fmt.Fprintln(os.Stderr, "Usage: zhur-invoke -owner <owner> -app <app> [-payload data]")
		fmt.Fprintln(os.Stderr, "       echo data | zhur-invoke -owner <owner> -app <app>")
		fmt.Fprintln(os.Stderr, "       zhur-invoke -i  (interactive mode)")
		return 1
	}

	body := []byte(*payload)
	if *payload == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
		if body, err = io.ReadAll(os.Stdin); err != nil {
			return cli.Fail(nil, "", errors.IO("read stdin", err))
		}
	}

	rep, err := invoke(context.Background(), client, message.Invocation{Owner: *owner, AppName: *app, Payload: body})
	if err != nil {
		return cli.Fail(nil, "", err)
	}
	if !rep.OK() {
		fmt.Fprintf(os.Stderr, "%s: %v\n", rep.Err.Class(), rep.Err)
		return exitCode(rep.Err.Class())
	}
	_, _ = os.Stdout.Write(rep.Output)
	return 0
}

func invoke(ctx context.Context, c *transport.Client, inv message.Invocation) (message.Reply, error) {
	var rep message.Reply
	err := c.Call(ctx, inv, &rep)
	return rep, err
}

func exitCode(c message.Class) int {
	switch c {
	case message.ClassNotFound:
		return 3
	case message.ClassTrapped:
		return 4
	case message.ClassUnavailable:
		return 5
	default:
		return 2
	}
}
