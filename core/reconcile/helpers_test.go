package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"anki-sync/core/graph"
)

// fakeConnector is an in-memory flashcard store.
type fakeConnector struct {
	mu       sync.Mutex
	notes    map[string][]RemoteNote
	media    []string
	nextID   int64
	loadErr  map[string]error
	batchErr map[OpKind]error
	itemErr  func(kind OpKind, op Operation) error

	created     []string
	batches     map[OpKind]int
	reloads     int
	permissions int
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		notes:    make(map[string][]RemoteNote),
		nextID:   1000,
		loadErr:  make(map[string]error),
		batchErr: make(map[OpKind]error),
		batches:  make(map[OpKind]int),
	}
}

func (f *fakeConnector) seed(model string, notes ...RemoteNote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[model] = append(f.notes[model], notes...)
}

func (f *fakeConnector) all() []RemoteNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RemoteNote
	for _, notes := range f.notes {
		out = append(out, notes...)
	}
	return out
}

func (f *fakeConnector) batchCount(kind OpKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[kind]
}

func (f *fakeConnector) RequestPermission(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissions++
	return nil
}

func (f *fakeConnector) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *fakeConnector) CreateModel(_ context.Context, name string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.created, name) {
		f.created = append(f.created, name)
	}
	if _, ok := f.notes[name]; !ok {
		f.notes[name] = nil
	}
	return nil
}

func (f *fakeConnector) LoadModel(_ context.Context, model string) ([]RemoteNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadErr[model]; err != nil {
		return nil, err
	}
	notes, ok := f.notes[model]
	if !ok {
		return nil, fmt.Errorf("model %s not found", model)
	}
	return slices.Clone(notes), nil
}

func (f *fakeConnector) ListMedia(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.media), nil
}

func (f *fakeConnector) Execute(_ context.Context, kind OpKind, ops []Operation) ([]OpResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[kind]++
	if err := f.batchErr[kind]; err != nil {
		return nil, err
	}

	results := make([]OpResult, len(ops))
	for i, op := range ops {
		if f.itemErr != nil {
			if err := f.itemErr(kind, op); err != nil {
				results[i].Err = err
				continue
			}
		}
		switch kind {
		case OpAdd:
			f.nextID++
			f.notes[op.Model] = append(f.notes[op.Model], RemoteNote{
				ID: f.nextID, Model: op.Model, Deck: op.Deck, Fields: op.Fields, Tags: op.Tags,
			})
			results[i].ID = f.nextID
		case OpUpdate:
			results[i].Err = f.update(op)
		case OpDelete:
			results[i].Err = f.delete(op.NoteID)
		case OpStoreAssets:
			f.media = append(f.media, op.Asset.Name)
		}
	}
	return results, nil
}

func (f *fakeConnector) update(op Operation) error {
	for model, notes := range f.notes {
		for i := range notes {
			if notes[i].ID == op.NoteID {
				f.notes[model][i].Fields = op.Fields
				f.notes[model][i].Deck = op.Deck
				f.notes[model][i].Tags = op.Tags
				return nil
			}
		}
	}
	return errors.New("note not found")
}

func (f *fakeConnector) delete(id int64) error {
	for model, notes := range f.notes {
		for i := range notes {
			if notes[i].ID == id {
				f.notes[model] = slices.Delete(notes, i, i+1)
				return nil
			}
		}
	}
	return errors.New("note not found")
}

// fakeParser renders content verbatim and routes on the model override.
type fakeParser struct {
	defaultModel string
	fail         map[string]error
	assets       map[string][]string
}

func (p *fakeParser) Parse(_ context.Context, note *SourceNote) (*ParsedNote, error) {
	if err := p.fail[note.Key()]; err != nil {
		return nil, err
	}
	model := p.defaultModel
	var fields FieldSet = LegacyFields{}
	if override := note.ModelOverride(); override != "" {
		model = override
		fields = CustomFields{"Front": note.Content}
	}
	return &ParsedNote{
		HTML:   "<p>" + note.Content + "</p>",
		Assets: p.assets[note.Key()],
		Deck:   "Default",
		Tags:   []string{"t"},
		Model:  model,
		Fields: fields,
	}, nil
}

// staticExtractor returns fresh copies of a fixed note list.
type staticExtractor struct {
	notes []SourceNote
}

func (s *staticExtractor) Name() string { return "static" }

func (s *staticExtractor) Extract(context.Context, []*SourceNote) ([]*SourceNote, error) {
	out := make([]*SourceNote, 0, len(s.notes))
	for _, n := range s.notes {
		cp := n
		out = append(out, &cp)
	}
	return out, nil
}

type selectorFunc func(*Candidates) *Candidates

func (f selectorFunc) Select(_ context.Context, c *Candidates) (*Candidates, error) {
	return f(c), nil
}

type fixedConfirmer struct {
	answer bool
	asked  int
}

func (c *fixedConfirmer) Confirm(context.Context, string) (bool, error) {
	c.asked++
	return c.answer, nil
}

type captureReporter struct {
	summaries []*Summary
}

func (r *captureReporter) Report(_ context.Context, s *Summary) error {
	r.summaries = append(r.summaries, s)
	return nil
}

const testModel = "Test_GraphModel"

func newNote(uuid, content string, blockID int, props graph.Properties) SourceNote {
	return SourceNote{UUID: uuid, Type: "cloze", Content: content, Format: "markdown", Properties: props, BlockID: blockID, PageID: 1}
}

// snapshotFor builds a graph holding a block for every note.
func snapshotFor(notes []SourceNote) *graph.Snapshot {
	blocks := make([]*graph.Block, 0, len(notes))
	for _, n := range notes {
		blocks = append(blocks, &graph.Block{
			ID: n.BlockID, UUID: n.UUID, Content: n.Content,
			Parent: &graph.Ref{ID: 1}, Page: &graph.Ref{ID: 1},
		})
	}
	return graph.NewSnapshot(graph.Info{Name: "Test Graph"}, []*graph.Page{{ID: 1, OriginalName: "Page"}}, blocks)
}

type engineFixture struct {
	conn     *fakeConnector
	parser   *fakeParser
	extract  *staticExtractor
	snapshot *graph.Snapshot
	reporter *captureReporter
	deps     Deps
	cfg      Config
}

func newFixture(notes ...SourceNote) *engineFixture {
	fx := &engineFixture{
		conn:     newFakeConnector(),
		parser:   &fakeParser{defaultModel: testModel, fail: map[string]error{}, assets: map[string][]string{}},
		extract:  &staticExtractor{notes: notes},
		snapshot: snapshotFor(notes),
		reporter: &captureReporter{},
		cfg:      Config{SkipOnDependencyHashMatch: true, MassDeleteThreshold: 10},
	}
	fx.deps = Deps{
		Graph:      fx.snapshot,
		Describer:  fx.snapshot,
		Connector:  fx.conn,
		Extractors: []Extractor{fx.extract},
		Parser:     fx.parser,
		Reporter:   fx.reporter,
	}
	return fx
}

func (fx *engineFixture) engine() *Engine {
	return NewEngine(fx.cfg, fx.deps)
}
