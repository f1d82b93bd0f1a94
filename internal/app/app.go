// Package app assembles a ready-to-use engine from a configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/roach88/objgate/internal/auth"
	"github.com/roach88/objgate/internal/config"
	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/driver/memory"
	"github.com/roach88/objgate/internal/driver/sqlite"
	"github.com/roach88/objgate/internal/engine"
	"github.com/roach88/objgate/internal/events"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/model"
	"github.com/roach88/objgate/internal/rules"
	"github.com/roach88/objgate/internal/store"
)

// App owns every component built from a Config.
type App struct {
	Config   *config.Config
	Store    *store.Store
	Rules    *rules.Registry
	Models   *model.Registry
	Engine   *engine.Engine
	Bus      *events.Bus
	Verifier *auth.Verifier

	logger *slog.Logger
	done   chan struct{}
}

type settings struct {
	logger *slog.Logger
	ids    engine.IDGenerator
	now    func() time.Time
}

// Option overrides a component chosen by Build.
type Option func(*settings)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithIDGenerator overrides the configured id strategy.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *settings) { s.ids = g }
}

// WithClock sets the time source for timestamps and audit entries.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Build opens the configured drivers, loads models and policy, and starts
// the event bus. Callers must Close the returned App.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	set := settings{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&set)
	}
	if set.ids == nil {
		set.ids = idGenerator(cfg.IDStrategy)
	}

	s := store.New(
		store.WithLogType(cfg.Log.Type),
		store.WithDefaultLogLimit(cfg.Log.DefaultLimit),
		store.WithClock(set.now),
		store.WithLogger(set.logger),
	)
	if err := openDrivers(s, cfg); err != nil {
		return nil, multierr.Append(err, s.Close())
	}
	if len(cfg.LogDrivers) > 0 {
		if err := s.ResumeLog(ctx); err != nil {
			return nil, multierr.Append(fmt.Errorf("resume audit log: %w", err), s.Close())
		}
	}

	reg, err := buildRules(cfg)
	if err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	models := model.NewRegistry(model.Open(cfg.OpenTypes), model.WithClock(set.now))
	if cfg.Models != "" {
		if err := models.Load(cfg.Models); err != nil {
			return nil, multierr.Append(err, s.Close())
		}
	}

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier, err = auth.NewVerifier(cfg.Auth.JWTSecret, auth.WithClock(set.now))
		if err != nil {
			return nil, multierr.Append(err, s.Close())
		}
	}

	bus := events.NewBus(set.logger)
	bus.Subscribe(events.All, func(_ context.Context, e ir.Event) {
		set.logger.Debug("lifecycle event", "event", e.Name, "type", e.Type, "id", e.ID)
	})

	eng := engine.New(s, reg, models,
		engine.WithIDField(cfg.IDField),
		engine.WithIDGenerator(set.ids),
		engine.WithValidator(models),
		engine.WithNotifier(bus),
		engine.WithLogger(set.logger),
		engine.WithClock(set.now),
		engine.WithStrictApply(cfg.StrictApply),
		engine.WithStampField(cfg.StampField),
	)

	a := &App{
		Config:   cfg,
		Store:    s,
		Rules:    reg,
		Models:   models,
		Engine:   eng,
		Bus:      bus,
		Verifier: verifier,
		logger:   set.logger,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		if err := bus.Run(context.WithoutCancel(ctx)); err != nil {
			set.logger.Warn("event bus stopped", "error", err)
		}
	}()
	return a, nil
}

// Close delivers pending events and closes every driver.
func (a *App) Close() error {
	a.Bus.Close()
	<-a.done
	return a.Store.Close()
}

// Meta resolves caller metadata from a bearer token or a plain user name.
// A token wins when both are given.
func (a *App) Meta(user, token string) (ir.Meta, error) {
	if token == "" {
		return ir.Meta{User: user}, nil
	}
	if a.Verifier == nil {
		return ir.Meta{}, ir.InvalidInput("token given but auth.jwt_secret is not configured")
	}
	return a.Verifier.Meta(token)
}

func idGenerator(strategy string) engine.IDGenerator {
	if strategy == config.IDStrategyULID {
		return engine.ULIDGenerator{}
	}
	return engine.UUIDv7Generator{}
}

func buildRules(cfg *config.Config) (*rules.Registry, error) {
	policy, err := rules.ParseFieldPolicy(cfg.FieldPolicy)
	if err != nil {
		return nil, err
	}
	reg := rules.NewRegistry(rules.WithStrict(cfg.Strict), rules.WithFieldPolicy(policy))
	if cfg.Policy == "" {
		return reg, nil
	}
	p, err := rules.LoadPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	p.Install(reg)
	return reg, nil
}

// openDrivers registers every configured driver. sqlite drivers that share a
// path share one connection.
func openDrivers(s *store.Store, cfg *config.Config) error {
	opened := make(map[string]*sqlite.Driver)
	register := func(dc config.DriverConfig, add func(string, driver.Driver, string) error) error {
		if dc.Kind == config.KindMemory {
			return add(dc.Name, memory.New(), dc.Authority)
		}
		if d, ok := opened[dc.Path]; ok {
			return add(dc.Name, d, dc.Authority)
		}
		d, err := sqlite.Open(dc.Path)
		if err != nil {
			return fmt.Errorf("driver %s: %w", dc.Name, err)
		}
		if err := add(dc.Name, d, dc.Authority); err != nil {
			return multierr.Append(err, d.Close())
		}
		opened[dc.Path] = d
		return nil
	}

	for _, dc := range cfg.Drivers {
		if err := register(dc, s.AddDriver); err != nil {
			return err
		}
	}
	for _, dc := range cfg.LogDrivers {
		if err := register(dc, s.AddLogDriver); err != nil {
			return err
		}
	}
	return nil
}
