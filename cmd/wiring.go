package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"anki-sync/core/anki"
	"anki-sync/core/collection"
	"anki-sync/core/config"
	"anki-sync/core/database"
	"anki-sync/core/graph"
	"anki-sync/core/journal"
	"anki-sync/core/logger"
	"anki-sync/core/reconcile"
	"anki-sync/core/storage"
	"anki-sync/feature/cards"
	"anki-sync/feature/extract"
	"anki-sync/feature/prompt"
	"anki-sync/feature/render"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// graphSource is a document graph that can be scanned and described.
type graphSource interface {
	graph.Accessor
	graph.Scanner
	graph.Describer
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	graph    graphSource
	snapshot *graph.Snapshot
	journal  *journal.Store
	assets   storage.AssetSource
	db       *gorm.DB
	closers  []func() error
}

// newApp loads the configuration and opens the graph and the journal.
// snapshot overrides logseq.snapshot when set.
func newApp(snapshot string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if snapshot != "" {
		cfg.Logseq.Snapshot = snapshot
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	a := &app{cfg: cfg, log: logg}
	a.closers = append(a.closers, func() error {
		_ = logg.Sync()
		return nil
	})

	if cfg.Logseq.Snapshot != "" {
		snap, err := graph.LoadSnapshot(cfg.Logseq.Snapshot)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.graph, a.snapshot = snap, snap
		logg.Info("Loaded graph snapshot", zap.String("path", cfg.Logseq.Snapshot))
	} else {
		a.graph = graph.NewLogseqClient(cfg.Logseq, nil)
	}

	store, err := journal.Open(cfg.Journal)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.journal = store
	a.closers = append(a.closers, store.Close)
	return a, nil
}

// Close releases everything opened by the app, last opened first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Failed to close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// connector builds the flashcard store selected by sync.destination.
func (a *app) connector(ctx context.Context) (reconcile.Connector, error) {
	assets, err := storage.NewAssetSource(a.cfg.Storage, a.cfg.Logseq.GraphPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset source: %w", err)
	}
	a.assets = assets
	if bs, ok := assets.(*storage.BucketSource); ok {
		if err := bs.Check(ctx); err != nil {
			a.log.Warn("Asset bucket is not available", zap.Error(err))
		}
	}

	switch a.cfg.Sync.Destination {
	case "collection":
		if a.cfg.Database.Driver == "sqlite" {
			if dir := filepath.Dir(a.cfg.Database.Name); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, err
				}
			}
		}
		db, err := database.Connect(a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to collection database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		a.db = db
		store := collection.New(db, assets, a.log)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate collection database: %w", err)
		}
		a.log.Info("Using local collection", zap.String("driver", a.cfg.Database.Driver))
		return store, nil
	default:
		client := anki.NewClient(a.cfg.Anki, nil, a.log)
		return anki.NewConnector(client, assets, a.log), nil
	}
}

// engine assembles a sync engine. in and out back the interactive prompts.
func (a *app) engine(ctx context.Context, in io.Reader, out io.Writer) (*reconcile.Engine, error) {
	conn, err := a.connector(ctx)
	if err != nil {
		return nil, err
	}

	renderer := render.New()
	prompter := prompt.New(in, out, os.Getenv("ACCESSIBLE") != "")

	deps := reconcile.Deps{
		Graph:     a.graph,
		Describer: a.graph,
		Connector: conn,
		Extractors: []reconcile.Extractor{
			extract.NewCloze(a.graph),
			extract.NewCard(a.graph),
		},
		Parser:    cards.NewParser(a.graph, a.graph, renderer, a.cfg.Cards, a.log),
		Hasher:    reconcile.NewHashCalculator(cards.NewSeeder(a.graph, a.cfg.Cards)),
		Selector:  prompter,
		Confirmer: prompter,
		Reporter:  reporters{a.journal, prompt.NewReporter(out)},
		Progress:  prompt.NewProgress(out),
		Logger:    a.log,
	}
	return reconcile.NewEngine(a.cfg.Sync, deps), nil
}

// saveSnapshot writes back block properties recorded during the run.
func (a *app) saveSnapshot() error {
	if a.snapshot == nil || !a.snapshot.Dirty() {
		return nil
	}
	if err := a.snapshot.Save(a.cfg.Logseq.Snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	a.log.Info("Saved graph snapshot", zap.String("path", a.cfg.Logseq.Snapshot))
	return nil
}

// reporters fans a summary out to several reporters.
type reporters []reconcile.Reporter

func (r reporters) Report(ctx context.Context, s *reconcile.Summary) error {
	var errs []error
	for _, rep := range r {
		if err := rep.Report(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runTimeout bounds a whole sync.
const runTimeout = 30 * time.Minute
