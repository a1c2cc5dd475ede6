package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appctx "github.com/bassista/go_backoffice/internal/app"
	"github.com/bassista/go_backoffice/internal/cli"
	"github.com/bassista/go_backoffice/internal/config"
	"github.com/bassista/go_backoffice/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	open := func() (*repository.Registry, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		app, err := appctx.New(cfg)
		if err != nil {
			return nil, err
		}
		return app.Registry, nil
	}

	code := cli.Execute(ctx, cli.NewRootCommand(open, cli.PromptConfirm), os.Stderr)
	stop()
	os.Exit(code)
}
