package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/skobkin/rcp2bridge/internal/app"
	"github.com/skobkin/rcp2bridge/internal/httpapi"
)

type launchOptions struct {
	ConfigFile  string
	Listen      string
	ShowVersion bool
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.ShowVersion {
		fmt.Println(app.Name, app.BuildVersionWithDate())

		return
	}

	if err := run(opts); err != nil {
		slog.Error("run rcp2bridge", "error", err)
		os.Exit(1)
	}
}

func parseLaunchOptions(args []string, output io.Writer) (launchOptions, error) {
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.SetOutput(output)

	var opts launchOptions
	fs.StringVar(&opts.ConfigFile, "config", "", "path to config.json (default: user config dir)")
	fs.StringVar(&opts.Listen, "listen", "", "override http.listen, e.g. 127.0.0.1:8998")
	fs.BoolVar(&opts.ShowVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	opts.ConfigFile = strings.TrimSpace(opts.ConfigFile)
	opts.Listen = strings.TrimSpace(opts.Listen)

	return opts, nil
}

func run(opts launchOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("initialize app runtime: %w", err)
	}
	defer func() {
		_ = rt.Close()
	}()

	listen := rt.CurrentConfig().HTTP.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}
	if listen == "" {
		slog.Info("http api disabled, running until interrupt")
		<-ctx.Done()

		return nil
	}

	gin.SetMode(gin.ReleaseMode)
	server := httpapi.NewServer(rt.LogManager.Logger("httpapi"), httpapi.Deps{
		Backend:   rt,
		Variables: rt.Variables,
		Actions:   rt.Actions,
		Feedback:  rt.Feedback,
	})

	return server.ListenAndServe(ctx, listen)
}
