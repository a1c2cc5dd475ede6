package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bassista/go_backoffice/internal/cache"
	"github.com/bassista/go_backoffice/internal/config"
	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/metrics"
	"github.com/bassista/go_backoffice/internal/notify"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/bassista/go_backoffice/internal/scheduler"
	"github.com/bassista/go_backoffice/internal/session"
)

// App is the application container (shared dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config   *config.Config
	Client   *remote.Client
	Cache    cache.QueryCache
	Registry *repository.Registry
	Sessions *session.Store
	Notifier notify.Presenter

	tokens remote.TokenSource
	sched  *scheduler.PollingScheduler

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

// New wires the backend client, the query cache and the resources from cfg.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	tokens, err := tokenSource(cfg.Backend)
	if err != nil {
		return nil, err
	}

	client, err := remote.New(cfg.Backend.BaseURL,
		remote.WithTimeout(cfg.Backend.Timeout),
		remote.WithTokenSource(tokens),
		remote.WithRateLimit(cfg.Backend.RateLimitRPS, cfg.Backend.RateLimitBurst),
	)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	store := cache.NewStore(cache.Options{StaleTime: cfg.Cache.StaleTime, GCTime: cfg.Cache.GCTime})
	return NewWith(cfg, client, store, tokens)
}

// NewWith builds the container around an existing client and cache.
func NewWith(cfg *config.Config, client *remote.Client, store cache.QueryCache, tokens remote.TokenSource) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if client == nil {
		return nil, errors.New("backend client is nil")
	}
	if store == nil {
		return nil, errors.New("cache store is nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Client:   client,
		Cache:    store,
		Registry: repository.NewRegistry(client, store, cfg.List.DefaultPageSize),
		Sessions: session.NewStore(cfg.Session.IdleTTL, nil),
		Notifier: notify.LogPresenter{},
		tokens:   tokens,
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

func tokenSource(cfg config.BackendConfig) (remote.TokenSource, error) {
	if cfg.TokenFile == "" {
		return remote.StaticToken(cfg.Token), nil
	}
	ts, err := remote.NewFileTokenSource(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("token file: %w", err)
	}
	return ts, nil
}

func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
}

// StartWatchers starts the token file watcher and the housekeeping jobs.
func (a *App) StartWatchers() error {
	if ts, ok := a.tokens.(*remote.FileTokenSource); ok {
		if err := ts.StartWatcher(a.BaseCtx); err != nil {
			return fmt.Errorf("cannot start token file watcher: %w", err)
		}
	}

	a.sched = scheduler.NewPollingScheduler(a.Jobs()...)
	a.sched.Start(a.BaseCtx)
	return nil
}

// Jobs returns the periodic housekeeping of the service.
func (a *App) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     "cache-gc",
			Interval: a.Config.Cache.GCInterval,
			Run: func(context.Context) {
				if n := a.Cache.Collect(); n > 0 {
					logger.WithComponent("cache-gc").Debugf("evicted %d idle entries", n)
				}
				if s, ok := a.Cache.(interface{ Len() int }); ok {
					metrics.SetCacheEntries(s.Len())
				}
			},
		},
		{
			Name:     "session-sweep",
			Interval: a.Config.Session.SweepInterval,
			Run: func(context.Context) {
				a.Sessions.Sweep()
			},
		},
	}
}
