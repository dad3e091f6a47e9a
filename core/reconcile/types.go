package reconcile

import (
	"encoding/json"
	"errors"
	"time"

	"anki-sync/core/graph"
)

var (
	// ErrSyncInProgress is returned by Run while another run is active in the process.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNoManager is recorded for notes whose destination model has no initialized manager.
	ErrNoManager = errors.New("no manager for model")
)

// Record field names shared by every model the engine writes to.
const (
	FieldUUIDType   = "uuid-type"
	FieldUUID       = "uuid"
	FieldText       = "Text"
	FieldExtra      = "Extra"
	FieldBreadcrumb = "Breadcrumb"
	FieldConfig     = "Config"
)

// ModelFieldNames is the field layout of the default model.
var ModelFieldNames = []string{FieldUUIDType, FieldUUID, FieldText, FieldExtra, FieldBreadcrumb, FieldConfig}

// SourceNote is a flashcard-worthy snippet extracted from a graph block.
type SourceNote struct {
	// UUID is the owning block uuid.
	UUID string `json:"uuid"`
	// Type is the note kind (cloze, card, ...). A block yields at most one note per type.
	Type string `json:"type"`
	// Content is the raw block content.
	Content string `json:"content"`
	// Format is the block markup format.
	Format string `json:"format"`
	// Properties are the raw block properties.
	Properties graph.Properties `json:"properties"`
	// PageID is the owning page.
	PageID int `json:"page_id"`
	// BlockID is the block database id, used as the ordering key.
	BlockID int `json:"block_id"`
	// RemoteID caches the matched remote record id. Zero means none.
	RemoteID int64 `json:"remote_id,omitempty"`
}

// Key returns the "<uuid>-<type>" identity stored in the uuid-type field.
func (n *SourceNote) Key() string {
	return n.UUID + "-" + n.Type
}

// ModelOverride returns the destination model named by the note's
// anki-note-type property, or "".
func (n *SourceNote) ModelOverride() string {
	return n.Properties.String("anki-note-type")
}

// RemoteNote is a record held by the flashcard store.
type RemoteNote struct {
	ID     int64             `json:"id"`
	Model  string            `json:"model"`
	Deck   string            `json:"deck"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
	// Cards lists the card ids generated from the note.
	Cards []int64 `json:"cards,omitempty"`
}

// Key returns the uuid-type identity of the record.
func (r *RemoteNote) Key() string {
	return r.Fields[FieldUUIDType]
}

// DependencyConfig is the JSON document kept in a record's Config field.
type DependencyConfig struct {
	DependencyHash string   `json:"dependencyHash"`
	Assets         []string `json:"assets"`
}

// DecodeDependencyConfig parses a Config field value. Malformed or empty
// input yields an empty config.
func DecodeDependencyConfig(s string) DependencyConfig {
	var cfg DependencyConfig
	if s == "" {
		return cfg
	}
	if err := json.Unmarshal([]byte(s), &cfg); err != nil {
		return DependencyConfig{}
	}
	return cfg
}

// Encode returns the JSON form of the config.
func (c DependencyConfig) Encode() string {
	if c.Assets == nil {
		c.Assets = []string{}
	}
	data, _ := json.Marshal(c)
	return string(data)
}

// Candidates groups the notes and record ids a run intends to touch.
type Candidates struct {
	Create []*SourceNote
	Update []*SourceNote
	Delete []int64
}

// Total returns the number of planned operations.
func (c *Candidates) Total() int {
	return len(c.Create) + len(c.Update) + len(c.Delete)
}

// SyncPlan is the selected work of a run and its per-item failures.
type SyncPlan struct {
	Candidates
	// CreateFailures and UpdateFailures are keyed by uuid-type.
	CreateFailures map[string]error
	UpdateFailures map[string]error
	// DeleteFailures is keyed by remote id.
	DeleteFailures map[int64]error
	// Unchanged counts updates skipped because the dependency hash matched.
	Unchanged int
}

func newSyncPlan(c Candidates) *SyncPlan {
	return &SyncPlan{
		Candidates:     c,
		CreateFailures: make(map[string]error),
		UpdateFailures: make(map[string]error),
		DeleteFailures: make(map[int64]error),
	}
}

// ParsedNote is the rendered form of a note ready to be written.
type ParsedNote struct {
	HTML       string
	Assets     []string
	Deck       string
	Breadcrumb string
	Tags       []string
	Extra      string
	// Model is the destination model name. Empty selects the default model.
	Model  string
	Fields FieldSet
}

// Rendered is the output of a Renderer.
type Rendered struct {
	HTML string
	// Assets are graph-relative paths of the files the HTML references.
	Assets []string
}

// PlanCounts holds per-phase counts.
type PlanCounts struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
}

// Summary is the structured result of a run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Graph     string        `json:"graph"`
	Model     string        `json:"model"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	DryRun    bool          `json:"dry_run"`
	Aborted   bool          `json:"aborted"`
	// Planned holds the selected counts before execution.
	Planned PlanCounts `json:"planned"`
	// Created, Updated and Deleted are the planned counts minus failures.
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`

	CreateFailures map[string]string `json:"create_failures,omitempty"`
	UpdateFailures map[string]string `json:"update_failures,omitempty"`
	DeleteFailures map[int64]string  `json:"delete_failures,omitempty"`
	// Error is set when the run stopped early.
	Error string `json:"error,omitempty"`
}

// Failed returns the total number of failed items.
func (s *Summary) Failed() int {
	return len(s.CreateFailures) + len(s.UpdateFailures) + len(s.DeleteFailures)
}

func (s *Summary) applyPlan(p *SyncPlan) {
	s.Planned = PlanCounts{Create: len(p.Create), Update: len(p.Update), Delete: len(p.Delete)}
	s.Created = len(p.Create) - len(p.CreateFailures)
	s.Updated = len(p.Update) - len(p.UpdateFailures)
	s.Deleted = len(p.Delete) - len(p.DeleteFailures)
	s.Unchanged = p.Unchanged
	s.CreateFailures = errorMessages(p.CreateFailures)
	s.UpdateFailures = errorMessages(p.UpdateFailures)
	if len(p.DeleteFailures) > 0 {
		s.DeleteFailures = make(map[int64]string, len(p.DeleteFailures))
		for id, err := range p.DeleteFailures {
			s.DeleteFailures[id] = err.Error()
		}
	}
}

func errorMessages(m map[string]error) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, err := range m {
		out[k] = err.Error()
	}
	return out
}

// Config holds the sync behavior settings.
type Config struct {
	// ModelName is the default destination model. Empty derives "<graph>Model".
	ModelName string `mapstructure:"model_name" default:""`
	// Destination selects the connector (anki, collection).
	Destination string `mapstructure:"destination" default:"anki"`
	// SkipOnDependencyHashMatch skips updates whose stored hash is current.
	SkipOnDependencyHashMatch bool `mapstructure:"skip_on_dependency_hash_match" default:"true"`
	// MassDeleteThreshold is the delete count that requires extra confirmation
	// when nothing is created or updated.
	MassDeleteThreshold int `mapstructure:"mass_delete_threshold" default:"10"`
	// PrewarmDelaySeconds delays the background hash prewarm.
	PrewarmDelaySeconds int `mapstructure:"prewarm_delay_seconds" default:"4"`
}

// Options controls a single run.
type Options struct {
	// RunID identifies the run in logs and reports.
	RunID string
	// DryRun plans without executing any write.
	DryRun bool
	// Confirmed accepts every candidate and answers confirmations with yes.
	Confirmed bool
}
