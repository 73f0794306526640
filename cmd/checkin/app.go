package main

import (
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/catalog"
	"github.com/warp/checkin-engine/checkin"
	"github.com/warp/checkin-engine/config"
	"github.com/warp/checkin-engine/events"
	"github.com/warp/checkin-engine/factory"
	"github.com/warp/checkin-engine/generic"
	"github.com/warp/checkin-engine/generic/store"
	"github.com/warp/checkin-engine/interaction"
	"github.com/warp/checkin-engine/store/jsonfile"
	"github.com/warp/checkin-engine/store/sqlite"
)

// app is the wired component graph shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	clock   generic.Clock
	kv      generic.KV
	ledger  generic.Ledger // nil when the backend has no ledger
	json    *jsonfile.Store
	rules   checkin.Rules
	catalog *catalog.Catalog
	locator catalog.Locator
	bus     *events.Bus
	repo    *checkin.Repository
	engine  *checkin.Engine
	layer   *interaction.Layer

	closers []func() error
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		clock:  generic.RealClock{},
		bus:    events.NewBus(logger.Named("events")),
	}
	a.closers = append(a.closers, func() error { a.bus.Close(); return nil })

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}

	rules := checkin.DefaultRules()
	if cfg.Rules.Path != "" {
		r, err := factory.NewRulesFactory().ParseFile(cfg.Rules.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		rules = r
	}
	a.rules = rules

	cat, err := loadCatalog(cfg.Catalog.Path, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.catalog = cat

	a.locator = catalog.NoLocator{}
	if cfg.Location.Enabled {
		a.locator = catalog.StaticLocator{At: catalog.Coord{Lat: cfg.Location.Lat, Lng: cfg.Location.Lng}}
	}

	a.repo = checkin.NewRepository(a.kv, logger.Named("repo"))
	a.engine = checkin.NewEngine(a.repo, rules,
		checkin.WithClock(a.clock),
		checkin.WithLedger(a.ledger),
		checkin.WithLogger(logger.Named("engine")),
	)
	a.layer = interaction.New(a.repo, cat, rules,
		interaction.WithClock(a.clock),
		interaction.WithLedger(a.ledger),
		interaction.WithLogger(logger.Named("interaction")),
		interaction.WithPublisher(a.bus),
	)
	return a, nil
}

// loadCatalog reads the shop catalog. Only a missing file at the default
// path is tolerated: progress still works without shops.
func loadCatalog(path string, logger *zap.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) && path == config.Default().Catalog.Path {
		logger.Warn("default shop catalog not found, starting with no shops",
			zap.String("path", path))
		return catalog.New(nil)
	}
	return cat, err
}

func (a *app) openStore() error {
	switch a.cfg.Storage.Backend {
	case config.BackendSQLite:
		s, err := sqlite.New(a.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.kv = s
		a.closers = append(a.closers, s.Close)
	case config.BackendJSON:
		s, err := jsonfile.New(a.cfg.Storage.Path, a.logger.Named("jsonfile"))
		if err != nil {
			return fmt.Errorf("open json store: %w", err)
		}
		a.kv = s
		a.json = s
	case config.BackendMemory:
		a.kv = store.NewMemory()
	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}

	ledger, err := generic.LedgerFor(a.kv)
	switch {
	case generic.IsUnsupported(err):
		a.logger.Info("store has no ledger; points history disabled",
			zap.String("backend", a.cfg.Storage.Backend))
	case err != nil:
		return err
	default:
		a.ledger = ledger
	}
	return nil
}

// Close releases the store and the bus, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
