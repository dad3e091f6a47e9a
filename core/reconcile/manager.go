package reconcile

import (
	"context"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Manager holds the records of one model and queues writes to it.
type Manager struct {
	model string
	conn  Connector
	log   *zap.Logger

	records map[int64]*RemoteNote
	byKey   map[string]int64
	media   map[string]struct{}

	assets  map[string]Asset
	pending map[OpKind][]Operation
}

// NewManager creates an uninitialized manager for model.
func NewManager(model string, conn Connector, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		model:   model,
		conn:    conn,
		log:     log.With(zap.String("model", model)),
		records: make(map[int64]*RemoteNote),
		byKey:   make(map[string]int64),
		media:   make(map[string]struct{}),
		assets:  make(map[string]Asset),
		pending: make(map[OpKind][]Operation),
	}
}

// Init loads the model's records and the store's media names.
func (m *Manager) Init(ctx context.Context) error {
	notes, err := m.conn.LoadModel(ctx, m.model)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", m.model, err)
	}
	media, err := m.conn.ListMedia(ctx)
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}

	for i := range notes {
		note := notes[i]
		m.records[note.ID] = &note
		key := note.Key()
		if key == "" {
			continue
		}
		// Duplicates resolve to the lowest id.
		if existing, ok := m.byKey[key]; !ok || note.ID < existing {
			m.byKey[key] = note.ID
		}
	}
	for _, name := range media {
		m.media[name] = struct{}{}
	}

	m.log.Debug("Manager initialized", zap.Int("records", len(m.records)), zap.Int("media", len(m.media)))
	return nil
}

// Model returns the model name.
func (m *Manager) Model() string {
	return m.model
}

// Find returns the id of the record whose uuid-type equals key.
func (m *Manager) Find(key string) (int64, bool) {
	id, ok := m.byKey[key]
	return id, ok
}

// Record returns the record with id.
func (m *Manager) Record(id int64) (*RemoteNote, bool) {
	r, ok := m.records[id]
	return r, ok
}

// Owns reports whether the record id belongs to this model.
func (m *Manager) Owns(id int64) bool {
	_, ok := m.records[id]
	return ok
}

// IDs returns every record id in ascending order.
func (m *Manager) IDs() []int64 {
	return slices.Sorted(maps.Keys(m.records))
}

// HasMedia reports whether the store already holds a media file named name.
func (m *Manager) HasMedia(name string) bool {
	_, ok := m.media[name]
	return ok
}

// QueueAsset schedules the file at the graph-relative path for upload.
// Uploads are keyed by base name, so one file is stored once per run.
func (m *Manager) QueueAsset(assetPath string) Asset {
	a := Asset{Name: assetName(assetPath), Path: assetPath}
	m.assets[a.Name] = a
	return a
}

// Enqueue appends op to the pending batch of kind.
func (m *Manager) Enqueue(kind OpKind, op Operation) {
	if op.Model == "" {
		op.Model = m.model
	}
	m.pending[kind] = append(m.pending[kind], op)
}

// Pending returns the number of queued items of kind.
func (m *Manager) Pending(kind OpKind) int {
	if kind == OpStoreAssets {
		return len(m.assets)
	}
	return len(m.pending[kind])
}

// Outcome pairs a queued operation with its result.
type Outcome struct {
	Op  Operation
	ID  int64
	Err error
}

// Execute runs and clears the pending batch of kind. Every queued item gets
// exactly one outcome, in enqueue order. A batch-level connector error fails
// every item.
func (m *Manager) Execute(ctx context.Context, kind OpKind) []Outcome {
	ops := m.drain(kind)
	if len(ops) == 0 {
		return nil
	}

	outcomes := make([]Outcome, len(ops))
	for i, op := range ops {
		outcomes[i].Op = op
	}

	results, err := m.conn.Execute(ctx, kind, ops)
	if err == nil && len(results) != len(ops) {
		err = fmt.Errorf("connector returned %d results for %d operations", len(results), len(ops))
	}
	if err != nil {
		m.log.Error("Batch failed", zap.String("kind", string(kind)), zap.Int("items", len(ops)), zap.Error(err))
		for i := range outcomes {
			outcomes[i].Err = err
		}
		return outcomes
	}

	for i, res := range results {
		outcomes[i].ID = res.ID
		outcomes[i].Err = res.Err
		if res.Err != nil {
			continue
		}
		m.apply(kind, ops[i], res.ID)
	}
	return outcomes
}

func (m *Manager) drain(kind OpKind) []Operation {
	if kind == OpStoreAssets {
		names := slices.Sorted(maps.Keys(m.assets))
		ops := make([]Operation, 0, len(names))
		for _, name := range names {
			a := m.assets[name]
			ops = append(ops, Operation{Key: name, Model: m.model, Asset: &a})
		}
		clear(m.assets)
		return ops
	}
	ops := m.pending[kind]
	delete(m.pending, kind)
	return ops
}

// apply keeps the local index in step with successful writes.
func (m *Manager) apply(kind OpKind, op Operation, id int64) {
	switch kind {
	case OpAdd:
		if id == 0 {
			return
		}
		m.records[id] = &RemoteNote{ID: id, Model: op.Model, Deck: op.Deck, Fields: op.Fields, Tags: op.Tags}
		if _, ok := m.byKey[op.Key]; !ok {
			m.byKey[op.Key] = id
		}
	case OpUpdate:
		if r, ok := m.records[op.NoteID]; ok {
			r.Deck, r.Fields, r.Tags = op.Deck, op.Fields, op.Tags
		}
	case OpDelete:
		if r, ok := m.records[op.NoteID]; ok {
			if m.byKey[r.Key()] == op.NoteID {
				delete(m.byKey, r.Key())
			}
			delete(m.records, op.NoteID)
		}
	case OpStoreAssets:
		if op.Asset != nil {
			m.media[op.Asset.Name] = struct{}{}
		}
	}
}

func assetName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}
