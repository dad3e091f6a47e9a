package reconcile

import "context"

// OpKind names a batched operation against the flashcard store.
type OpKind string

const (
	// OpAdd creates notes.
	OpAdd OpKind = "add"
	// OpUpdate rewrites fields, tags and deck of existing notes.
	OpUpdate OpKind = "update"
	// OpDelete removes notes.
	OpDelete OpKind = "delete"
	// OpStoreAssets uploads media files.
	OpStoreAssets OpKind = "store-assets"
)

// Asset is a media file referenced by a note.
type Asset struct {
	// Name is the media file name in the store (the path's base name).
	Name string `json:"name"`
	// Path is the graph-relative source path.
	Path string `json:"path"`
}

// Operation is one item of a batch.
type Operation struct {
	// Key is the uuid-type identity for add and update.
	Key string
	// NoteID is the remote id for update and delete.
	NoteID int64
	Model  string
	Deck   string
	Fields map[string]string
	Tags   []string
	// Asset is set for store-assets.
	Asset *Asset
}

// OpResult is the outcome of one batch item as reported by a Connector.
type OpResult struct {
	// ID is the id assigned by the store on add.
	ID  int64
	Err error
}

// Connector is the flashcard store.
type Connector interface {
	// CreateModel creates the model when missing. Existing models are kept.
	CreateModel(ctx context.Context, name string, fields []string) error
	// LoadModel returns every record of the model.
	LoadModel(ctx context.Context, model string) ([]RemoteNote, error)
	// ListMedia returns the names of the media files already stored.
	ListMedia(ctx context.Context) ([]string, error)
	// Execute runs a batch. Results are aligned with ops. A returned error
	// means the whole batch failed.
	Execute(ctx context.Context, kind OpKind, ops []Operation) ([]OpResult, error)
}

// Reloader is implemented by connectors that must refresh the store's view
// after writes.
type Reloader interface {
	Reload(ctx context.Context) error
}

// PermissionRequester is implemented by connectors that need the user to
// grant access before use.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) error
}

// Extractor finds notes in the graph. existing holds the notes found by the
// extractors that ran before it.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, existing []*SourceNote) ([]*SourceNote, error)
}

// Renderer turns raw block markup into HTML.
type Renderer interface {
	Render(ctx context.Context, raw, format string) (Rendered, error)
}

// Parser resolves a note's attributes and renders it.
type Parser interface {
	Parse(ctx context.Context, note *SourceNote) (*ParsedNote, error)
}

// Selector lets the user narrow the candidates. A nil result aborts the run.
type Selector interface {
	Select(ctx context.Context, c *Candidates) (*Candidates, error)
}

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// Reporter receives the final summary.
type Reporter interface {
	Report(ctx context.Context, s *Summary) error
}

// Progress tracks work of the current phase.
type Progress interface {
	Start(phase string, total int)
	Increment(n int)
	Done()
}

type nopProgress struct{}

func (nopProgress) Start(string, int) {}
func (nopProgress) Increment(int)     {}
func (nopProgress) Done()             {}
