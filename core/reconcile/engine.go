package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"anki-sync/core/graph"
	"anki-sync/core/logger"

	"go.uber.org/zap"
)

// running guards against concurrent runs in the process.
var running atomic.Bool

// massDeleteMessage is shown when a run would only delete records.
const massDeleteMessage = "This will delete all notes in the flashcard store that were generated from this graph. Continue?"

var whitespace = regexp.MustCompile(`\s`)

// Deps are the collaborators of an Engine. Graph, Connector, Parser and at
// least one Extractor are required.
type Deps struct {
	Graph      graph.Accessor
	Describer  graph.Describer
	Connector  Connector
	Extractors []Extractor
	Parser     Parser
	Hasher     *HashCalculator
	Selector   Selector
	Confirmer  Confirmer
	Reporter   Reporter
	Progress   Progress
	Logger     *zap.Logger
}

// Engine reconciles the notes of a document graph against a flashcard store.
type Engine struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// NewEngine creates an engine.
func NewEngine(cfg Config, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Hasher == nil {
		deps.Hasher = NewHashCalculator(nil)
	}
	if deps.Progress == nil {
		deps.Progress = nopProgress{}
	}
	return &Engine{cfg: cfg, deps: deps, log: deps.Logger}
}

// Run performs one sync. It returns ErrSyncInProgress while another run is
// active. Per-item failures are reported in the summary; the returned error
// is reserved for failures that stopped the run.
func (e *Engine) Run(ctx context.Context, opts Options) (*Summary, error) {
	if !running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer running.Store(false)

	log := logger.WithRunID(e.log, opts.RunID)
	summary := &Summary{RunID: opts.RunID, StartedAt: time.Now(), DryRun: opts.DryRun}

	err := e.run(ctx, opts, summary, log)
	summary.Duration = time.Since(summary.StartedAt)
	if err != nil {
		e.deps.Progress.Done()
		summary.Error = err.Error()
		log.Error("Sync failed", zap.Error(err))
	}

	if e.deps.Reporter != nil && !summary.Aborted {
		if repErr := e.deps.Reporter.Report(ctx, summary); repErr != nil {
			log.Warn("Failed to report summary", zap.Error(repErr))
		}
	}
	return summary, err
}

func (e *Engine) run(ctx context.Context, opts Options, summary *Summary, log *zap.Logger) error {
	graphName, model := e.resolveModel(ctx, log)
	summary.Graph, summary.Model = graphName, model
	log.Info("Starting sync", zap.String("graph", graphName), zap.String("model", model), zap.Bool("dry_run", opts.DryRun))

	if pr, ok := e.deps.Connector.(PermissionRequester); ok {
		if err := pr.RequestPermission(ctx); err != nil {
			return fmt.Errorf("permission request failed: %w", err)
		}
	}
	if !opts.DryRun {
		if err := e.deps.Connector.CreateModel(ctx, model, ModelFieldNames); err != nil {
			return fmt.Errorf("failed to create model %s: %w", model, err)
		}
	}

	notes, err := e.extract(ctx, log)
	if err != nil {
		return err
	}

	router := NewRouter(e.deps.Connector, model, log)
	if err := router.Init(ctx, notes); err != nil {
		return fmt.Errorf("failed to initialize managers: %w", err)
	}

	if !opts.DryRun {
		e.persistIdentity(ctx, notes, log)
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].BlockID < notes[j].BlockID })

	candidates := Partition(notes, router)
	log.Info("Planned sync",
		zap.Int("create", len(candidates.Create)),
		zap.Int("update", len(candidates.Update)),
		zap.Int("delete", len(candidates.Delete)))

	prewarm := StartPrewarm(ctx, e.deps.Hasher, notes, time.Duration(e.cfg.PrewarmDelaySeconds)*time.Second, log)
	selected, err := e.selectCandidates(ctx, candidates, opts)
	prewarm.Cancel()
	if err != nil {
		return err
	}
	if selected == nil {
		summary.Aborted = true
		log.Info("Sync aborted by user")
		return nil
	}

	plan := newSyncPlan(*selected)
	if opts.DryRun {
		summary.Planned = PlanCounts{Create: len(plan.Create), Update: len(plan.Update), Delete: len(plan.Delete)}
		return nil
	}

	e.deps.Progress.Start("notes", plan.Total()+1)
	if err := e.createNotes(ctx, plan, router, log); err != nil {
		return err
	}
	if err := e.updateNotes(ctx, plan, router, log); err != nil {
		return err
	}
	if err := e.deleteNotes(ctx, plan, router, log); err != nil {
		return err
	}
	e.storeAssets(ctx, router, log)
	e.deps.Progress.Increment(1)
	e.deps.Progress.Done()

	summary.applyPlan(plan)
	log.Info("Sync completed",
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("deleted", summary.Deleted),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("failed", summary.Failed()))
	return nil
}

// resolveModel returns the graph name and the default model name.
func (e *Engine) resolveModel(ctx context.Context, log *zap.Logger) (string, string) {
	graphName := "Default"
	if e.deps.Describer != nil {
		if info, err := e.deps.Describer.CurrentGraph(ctx); err == nil && info.Name != "" {
			graphName = info.Name
		} else if err != nil {
			log.Warn("Failed to read current graph", zap.Error(err))
		}
	}
	if e.cfg.ModelName != "" {
		return graphName, e.cfg.ModelName
	}
	return graphName, DefaultModelName(graphName)
}

// DefaultModelName derives the default model from the graph name.
func DefaultModelName(graphName string) string {
	return whitespace.ReplaceAllString(graphName+"Model", "_")
}

func (e *Engine) extract(ctx context.Context, log *zap.Logger) ([]*SourceNote, error) {
	e.deps.Progress.Start("scan", len(e.deps.Extractors))
	var notes []*SourceNote
	for _, ex := range e.deps.Extractors {
		found, err := ex.Extract(ctx, notes)
		if err != nil {
			return nil, fmt.Errorf("extractor %s failed: %w", ex.Name(), err)
		}
		log.Debug("Extracted notes", zap.String("extractor", ex.Name()), zap.Int("notes", len(found)))
		notes = append(notes, found...)
		e.deps.Progress.Increment(1)
	}
	e.deps.Progress.Done()
	return notes, nil
}

// persistIdentity writes an id property onto blocks that lack one so the
// block uuid survives re-indexing. Failures are logged.
func (e *Engine) persistIdentity(ctx context.Context, notes []*SourceNote, log *zap.Logger) {
	written := make(map[string]bool)
	for _, note := range notes {
		if note.Properties.Has("id") {
			continue
		}
		ok, seen := written[note.UUID]
		if !seen {
			err := e.deps.Graph.UpsertBlockProperty(ctx, note.UUID, "id", note.UUID)
			if err != nil {
				log.Warn("Failed to write id property", zap.String("uuid", note.UUID), zap.Error(err))
			}
			ok = err == nil
			written[note.UUID] = ok
		}
		// The next scan reads the property back; hash what it will see.
		if ok {
			if note.Properties == nil {
				note.Properties = graph.Properties{}
			}
			note.Properties["id"] = note.UUID
		}
	}
}

// Partition splits notes into creates and updates and collects the record
// ids no note matched. Matched notes get RemoteID set.
func Partition(notes []*SourceNote, router *Router) Candidates {
	var c Candidates
	matched := make(map[int64]struct{})
	for _, note := range notes {
		id, ok := router.FindRemoteID(note)
		if !ok {
			note.RemoteID = 0
			c.Create = append(c.Create, note)
			continue
		}
		note.RemoteID = id
		matched[id] = struct{}{}
		c.Update = append(c.Update, note)
	}
	for _, id := range router.AllIDs() {
		if _, ok := matched[id]; !ok {
			c.Delete = append(c.Delete, id)
		}
	}
	return c
}

// selectCandidates returns nil when the user aborts.
func (e *Engine) selectCandidates(ctx context.Context, c Candidates, opts Options) (*Candidates, error) {
	selected := &c
	if !opts.Confirmed && e.deps.Selector != nil {
		var err error
		selected, err = e.deps.Selector.Select(ctx, &c)
		if err != nil {
			return nil, fmt.Errorf("selection failed: %w", err)
		}
		if selected == nil {
			return nil, nil
		}
	}

	if !opts.Confirmed && e.requiresMassDeleteConfirm(selected) {
		if e.deps.Confirmer == nil {
			return nil, nil
		}
		ok, err := e.deps.Confirmer.Confirm(ctx, massDeleteMessage)
		if err != nil {
			return nil, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return nil, nil
		}
	}
	return selected, nil
}

func (e *Engine) requiresMassDeleteConfirm(c *Candidates) bool {
	threshold := e.cfg.MassDeleteThreshold
	if threshold <= 0 {
		threshold = 10
	}
	return len(c.Create) == 0 && len(c.Update) == 0 && len(c.Delete) >= threshold
}
