package reconcile

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"
)

// Router owns one Manager per destination model and routes notes and
// record ids to them.
type Router struct {
	conn         Connector
	defaultModel string
	log          *zap.Logger

	managers map[string]*Manager
	failed   map[string]error
	order    []string
}

// NewRouter creates a router whose notes default to defaultModel.
func NewRouter(conn Connector, defaultModel string, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		conn:         conn,
		defaultModel: defaultModel,
		log:          log,
		managers:     make(map[string]*Manager),
		failed:       make(map[string]error),
	}
}

// DefaultModel returns the model notes without an override are written to.
func (r *Router) DefaultModel() string {
	return r.defaultModel
}

// ModelNames returns the default model followed by every distinct model
// override among notes, in first-seen order.
func (r *Router) ModelNames(notes []*SourceNote) []string {
	names := []string{r.defaultModel}
	for _, note := range notes {
		if model := note.ModelOverride(); model != "" && !slices.Contains(names, model) {
			names = append(names, model)
		}
	}
	return names
}

// Init initializes a manager for every model the notes need. A model whose
// manager fails to initialize is logged and left absent.
func (r *Router) Init(ctx context.Context, notes []*SourceNote) error {
	for _, model := range r.ModelNames(notes) {
		if _, err := r.Get(ctx, model); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("Failed to initialize manager", zap.String("model", model), zap.Error(err))
		}
	}
	return nil
}

// Get returns the manager for model, initializing it on first use.
// A failed initialization is remembered for the rest of the run.
func (r *Router) Get(ctx context.Context, model string) (*Manager, error) {
	if m, ok := r.managers[model]; ok {
		return m, nil
	}
	if err, ok := r.failed[model]; ok {
		return nil, err
	}
	m := NewManager(model, r.conn, r.log)
	if err := m.Init(ctx); err != nil {
		r.failed[model] = err
		return nil, err
	}
	r.managers[model] = m
	r.order = append(r.order, model)
	return m, nil
}

// Manager returns the initialized manager for model, or nil.
func (r *Router) Manager(model string) *Manager {
	return r.managers[model]
}

// ManagerFor returns the override model's manager when it is initialized,
// else the default model's manager, else nil.
func (r *Router) ManagerFor(note *SourceNote) *Manager {
	if model := note.ModelOverride(); model != "" {
		if m, ok := r.managers[model]; ok {
			return m
		}
	}
	return r.managers[r.defaultModel]
}

// FindRemoteID returns the id of the record matching the note's uuid-type
// in its owning manager.
func (r *Router) FindRemoteID(note *SourceNote) (int64, bool) {
	m := r.ManagerFor(note)
	if m == nil {
		return 0, false
	}
	return m.Find(note.Key())
}

// Owner returns the manager holding record id, or nil.
func (r *Router) Owner(id int64) *Manager {
	for _, m := range r.Managers() {
		if m.Owns(id) {
			return m
		}
	}
	return nil
}

// Managers returns the initialized managers in initialization order.
func (r *Router) Managers() []*Manager {
	out := make([]*Manager, 0, len(r.order))
	for _, model := range r.order {
		out = append(out, r.managers[model])
	}
	return out
}

// AllIDs returns every record id across managers in ascending order.
func (r *Router) AllIDs() []int64 {
	var ids []int64
	for _, m := range r.Managers() {
		ids = append(ids, m.IDs()...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Err returns the initialization error of model, if any.
func (r *Router) Err(model string) error {
	if err, ok := r.failed[model]; ok {
		return err
	}
	if _, ok := r.managers[model]; ok {
		return nil
	}
	return errors.New("model not initialized")
}
