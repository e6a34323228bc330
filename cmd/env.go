package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nplace/tracker/internal/alert"
	"github.com/nplace/tracker/internal/collector"
	"github.com/nplace/tracker/internal/store"
	"github.com/nplace/tracker/internal/tracker"
)

// env holds the initialized store, collector, and service shared by the
// serve/collect/rank commands.
type env struct {
	Store     store.Store
	Collector collector.Collector
	Service   *tracker.Service
}

// Close releases the environment's resources.
func (e *env) Close() {
	if e.Collector != nil {
		e.Collector.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for the given mode, opens and migrates the store,
// and wires the collector and service. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	col := collector.New(collector.Config{
		ClientID:     cfg.Naver.ClientID,
		ClientSecret: cfg.Naver.ClientSecret,
		Limit:        cfg.Collect.Limit,
	})

	var notifier *alert.Notifier
	if cfg.Alert.WebhookURL != "" {
		notifier = alert.New(alert.Config{
			WebhookURL:    cfg.Alert.WebhookURL,
			DropThreshold: cfg.Alert.DropThreshold,
		})
	}

	svc := tracker.New(st, col, tracker.Config{
		RequestDelay:  time.Duration(cfg.Collect.RequestDelaySecs * float64(time.Second)),
		MaxConcurrent: cfg.Collect.MaxConcurrent,
		Notifier:      notifier,
	})

	return &env{Store: st, Collector: col, Service: svc}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "nplace.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
