package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lox/weathertrack/internal/cache"
	"github.com/lox/weathertrack/internal/history"
	"github.com/lox/weathertrack/internal/kvstore"
	"github.com/lox/weathertrack/internal/owm"
	"github.com/lox/weathertrack/internal/store"
)

// app holds the opened stores for one command invocation.
type app struct {
	history *history.Store
	state   *store.Store
	closers []func() error
}

func (a *app) Close() {
	// Reverse order: the history store may share the state store's database.
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func openState(path string) (*store.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return store.New(db), nil
}

// openApp opens the state database and the configured history backend.
func openApp(ctx context.Context, g *Globals) (*app, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", g.Timezone, err)
	}

	dbPath := g.DB
	if g.Backend == "memory" {
		dbPath = ":memory:"
	}
	st, err := openState(dbPath)
	if err != nil {
		return nil, err
	}

	a := &app{state: st}

	var backend history.Backend
	switch g.Backend {
	case "sqlite":
		// Snapshots live next to favorites; history.Init runs the migrations.
		backend = st
	case "badger", "memory":
		if err := st.Init(ctx); err != nil {
			st.Close()
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		if g.Backend == "badger" {
			backend = kvstore.New(kvstore.Config{Path: g.BadgerDir})
		} else {
			backend = history.NewMemoryBackend()
		}
	default:
		st.Close()
		return nil, fmt.Errorf("unknown backend %q", g.Backend)
	}

	a.history = history.New(backend,
		history.WithLocation(loc),
		history.WithRetention(g.RetentionDays),
	)
	if err := a.history.Init(ctx); err != nil {
		a.Close()
		if g.Backend == "sqlite" {
			st.Close()
		}
		return nil, err
	}
	a.closers = append(a.closers, a.history.Close)

	log.Printf("history: %s backend, %d day retention, zone %s", g.Backend, a.history.RetentionDays(), loc)
	return a, nil
}

// weatherClient builds the OpenWeatherMap client, with a Redis cache when one
// is configured and reachable.
func weatherClient(ctx context.Context, g *Globals) (*owm.Client, func(), error) {
	if g.APIKey == "" {
		return nil, nil, errors.New("OWM_API_KEY is required")
	}

	opts := []owm.Option{owm.WithUnits(g.Units)}
	cleanup := func() {}

	if g.RedisURL != "" {
		rdb, err := cache.Connect(ctx, g.RedisURL)
		if err != nil {
			log.Printf("cache: disabled: %v", err)
		} else {
			opts = append(opts, owm.WithCache(cache.New(rdb)))
			cleanup = func() { rdb.Close() }
			log.Println("cache: redis enabled")
		}
	}

	return owm.New(g.APIKey, opts...), cleanup, nil
}
