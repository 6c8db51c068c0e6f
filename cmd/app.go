package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/config"
	"github.com/etnz/immotax/store"
	"go.uber.org/zap"
)

// app is what most commands need: the configuration, a logger and the store.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
}

// openApp loads the configuration and opens the store.
func openApp(opts ...store.Option) (*app, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *Verbose {
		cfg.Log.Level = "debug"
	}
	log, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.Store.Path, append([]store.Option{store.WithLogger(log)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("cannot open store %q: %w", cfg.Store.Path, err)
	}
	return &app{cfg: cfg, log: log, store: s}, nil
}

// Close closes the store and flushes the logs.
func (a *app) Close() error {
	err := a.store.Close()
	_ = a.log.Sync()
	return err
}

// user returns the user with the given email.
func (a *app) user(ctx context.Context, email string) (*immotax.User, error) {
	if email == "" {
		return nil, errors.New("a user email is required (-user)")
	}
	users, err := a.store.Entities().Users.Where(ctx, "", "email", email)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
	}
	return users[0], nil
}
