package graph

import (
	"context"
	"errors"
	"strings"

	"anki-sync/core/utils"
)

// ErrNotFound is returned by writes that target an entity the graph does not contain.
var ErrNotFound = errors.New("graph: entity not found")

// Ref points at another graph entity by database id.
type Ref struct {
	ID int `json:"id"`
}

// Block is a single outliner block.
type Block struct {
	// ID is the numeric database id. It also orders blocks in document order.
	ID int `json:"id"`
	// UUID is the stable block identity.
	UUID string `json:"uuid"`
	// Content is the raw block text, including property lines.
	Content string `json:"content"`
	// Format is the markup format ("markdown" or "org").
	Format string `json:"format"`
	// Properties holds the parsed block properties.
	Properties Properties `json:"properties"`
	// Parent is the parent block, or the page for top-level blocks.
	Parent *Ref `json:"parent"`
	// Page is the owning page.
	Page *Ref `json:"page"`
	// Refs lists pages and blocks this block references (tags included).
	Refs []Ref `json:"refs"`
}

// ParentID returns the parent entity id, or 0.
func (b *Block) ParentID() int {
	if b == nil || b.Parent == nil {
		return 0
	}
	return b.Parent.ID
}

// PageID returns the owning page id, or 0.
func (b *Block) PageID() int {
	if b == nil || b.Page == nil {
		return 0
	}
	return b.Page.ID
}

// Page is a graph page. Namespaced pages ("a/b/c") point at their parent
// namespace page through Namespace.
type Page struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	OriginalName string     `json:"originalName"`
	Properties   Properties `json:"properties"`
	Namespace    *Ref       `json:"namespace"`
}

// NamespaceID returns the parent namespace page id, or 0.
func (p *Page) NamespaceID() int {
	if p == nil || p.Namespace == nil {
		return 0
	}
	return p.Namespace.ID
}

// Title returns the display name of the page.
func (p *Page) Title() string {
	if p == nil {
		return ""
	}
	if p.OriginalName != "" {
		return p.OriginalName
	}
	if title := p.Properties.String("title"); title != "" {
		return title
	}
	return p.Name
}

// Info describes the graph currently served by an accessor.
type Info struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Accessor is the point-lookup interface over the document graph.
// Lookups of absent entities return (nil, nil); errors are reserved for
// transport or decoding failures.
type Accessor interface {
	GetBlock(ctx context.Context, id int) (*Block, error)
	GetBlockByUUID(ctx context.Context, uuid string) (*Block, error)
	GetPage(ctx context.Context, id int) (*Page, error)
	UpsertBlockProperty(ctx context.Context, uuid, key string, value any) error
}

// Scanner enumerates every block of the graph.
type Scanner interface {
	Blocks(ctx context.Context) ([]*Block, error)
}

// Describer reports the current graph.
type Describer interface {
	CurrentGraph(ctx context.Context) (*Info, error)
}

// SplitNamespace splits a namespaced name on "/" and trims every segment.
// Empty segments are dropped.
func SplitNamespace(name string) []string {
	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Properties is a block or page property map. Values are strings, numbers,
// booleans or slices of those. Keys are matched loosely: case, "-" and "_"
// are ignored, so "anki-note-type" and "ankiNoteType" name the same property.
type Properties map[string]any

// NormalizeKey returns the loose comparison form of a property key.
func NormalizeKey(key string) string {
	key = strings.ToLower(key)
	return strings.NewReplacer("-", "", "_", "").Replace(key)
}

// Get returns the raw value for key.
func (p Properties) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	if v, ok := p[key]; ok {
		return v, true
	}
	want := NormalizeKey(key)
	for k, v := range p {
		if NormalizeKey(k) == want {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is present with a non-nil value.
func (p Properties) Has(key string) bool {
	v, ok := p.Get(key)
	return ok && v != nil
}

// String returns the value for key rendered as a string.
func (p Properties) String(key string) string {
	v, _ := p.Get(key)
	return utils.ToString(v)
}

// Strings returns the value for key as a slice.
func (p Properties) Strings(key string) []string {
	v, _ := p.Get(key)
	return utils.ToStrings(v)
}

// Bool returns the boolean value for key and whether it was set explicitly.
func (p Properties) Bool(key string) (bool, bool) {
	v, ok := p.Get(key)
	if !ok {
		return false, false
	}
	return utils.ParseBool(v)
}
