package graph

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// snapshotFile is the on-disk layout of a graph snapshot. JSON snapshots are
// accepted too since JSON is valid YAML.
type snapshotFile struct {
	Name   string          `yaml:"name"`
	Path   string          `yaml:"path,omitempty"`
	Pages  []snapshotPage  `yaml:"pages"`
	Blocks []snapshotBlock `yaml:"blocks"`
}

type snapshotPage struct {
	ID           int            `yaml:"id"`
	Name         string         `yaml:"name,omitempty"`
	OriginalName string         `yaml:"original_name,omitempty"`
	Namespace    int            `yaml:"namespace,omitempty"`
	Properties   map[string]any `yaml:"properties,omitempty"`
}

type snapshotBlock struct {
	ID         int            `yaml:"id"`
	UUID       string         `yaml:"uuid"`
	Content    string         `yaml:"content"`
	Format     string         `yaml:"format,omitempty"`
	Page       int            `yaml:"page"`
	Parent     int            `yaml:"parent,omitempty"`
	Refs       []int          `yaml:"refs,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Snapshot is an in-memory graph loaded from a snapshot file. It implements
// Accessor, Scanner and Describer. Property writes are kept in memory until Save.
type Snapshot struct {
	mu     sync.RWMutex
	info   Info
	pages  map[int]*Page
	blocks map[int]*Block
	byUUID map[string]*Block
	dirty  bool
}

// NewSnapshot builds a snapshot from already constructed entities.
func NewSnapshot(info Info, pages []*Page, blocks []*Block) *Snapshot {
	s := &Snapshot{
		info:   info,
		pages:  make(map[int]*Page, len(pages)),
		blocks: make(map[int]*Block, len(blocks)),
		byUUID: make(map[string]*Block, len(blocks)),
	}
	for _, p := range pages {
		if p.Name == "" {
			p.Name = strings.ToLower(p.OriginalName)
		}
		s.pages[p.ID] = p
	}
	for _, b := range blocks {
		s.blocks[b.ID] = b
		s.byUUID[b.UUID] = b
	}
	return s
}

// LoadSnapshot reads a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes snapshot content.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	pages := make([]*Page, 0, len(file.Pages))
	for _, sp := range file.Pages {
		page := &Page{
			ID:           sp.ID,
			Name:         sp.Name,
			OriginalName: sp.OriginalName,
			Properties:   Properties(sp.Properties),
		}
		if page.OriginalName == "" {
			page.OriginalName = sp.Name
		}
		page.Name = strings.ToLower(page.OriginalName)
		if sp.Namespace != 0 {
			page.Namespace = &Ref{ID: sp.Namespace}
		}
		pages = append(pages, page)
	}

	blocks := make([]*Block, 0, len(file.Blocks))
	for _, sb := range file.Blocks {
		if sb.UUID == "" {
			return nil, fmt.Errorf("block %d has no uuid", sb.ID)
		}
		block := &Block{
			ID:         sb.ID,
			UUID:       sb.UUID,
			Content:    sb.Content,
			Format:     sb.Format,
			Properties: Properties(sb.Properties),
			Page:       &Ref{ID: sb.Page},
		}
		if block.Format == "" {
			block.Format = "markdown"
		}
		parent := sb.Parent
		if parent == 0 {
			parent = sb.Page
		}
		block.Parent = &Ref{ID: parent}
		for _, ref := range sb.Refs {
			block.Refs = append(block.Refs, Ref{ID: ref})
		}
		blocks = append(blocks, block)
	}

	return NewSnapshot(Info{Name: file.Name, Path: file.Path}, pages, blocks), nil
}

// GetBlock returns a copy of the block with the given id.
func (s *Snapshot) GetBlock(_ context.Context, id int) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBlock(s.blocks[id]), nil
}

// GetBlockByUUID returns a copy of the block with the given uuid.
func (s *Snapshot) GetBlockByUUID(_ context.Context, uuid string) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBlock(s.byUUID[uuid]), nil
}

// GetPage returns a copy of the page with the given id.
func (s *Snapshot) GetPage(_ context.Context, id int) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Properties = maps.Clone(p.Properties)
	return &cp, nil
}

// UpsertBlockProperty sets a property on a block and marks the snapshot dirty.
func (s *Snapshot) UpsertBlockProperty(_ context.Context, uuid, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byUUID[uuid]
	if !ok {
		return fmt.Errorf("block %s: %w", uuid, ErrNotFound)
	}
	if b.Properties == nil {
		b.Properties = Properties{}
	}
	b.Properties[key] = value
	s.dirty = true
	return nil
}

// Blocks returns copies of all blocks ordered by id.
func (s *Snapshot) Blocks(_ context.Context) ([]*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(s.blocks))
	out := make([]*Block, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneBlock(s.blocks[id]))
	}
	return out, nil
}

// CurrentGraph returns the snapshot's graph info.
func (s *Snapshot) CurrentGraph(_ context.Context) (*Info, error) {
	info := s.info
	return &info, nil
}

// Dirty reports whether properties were written since load.
func (s *Snapshot) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Save writes the snapshot back to path.
func (s *Snapshot) Save(path string) error {
	s.mu.RLock()
	file := snapshotFile{Name: s.info.Name, Path: s.info.Path}
	for _, id := range slices.Sorted(maps.Keys(s.pages)) {
		p := s.pages[id]
		file.Pages = append(file.Pages, snapshotPage{
			ID:           p.ID,
			OriginalName: p.OriginalName,
			Namespace:    p.NamespaceID(),
			Properties:   p.Properties,
		})
	}
	for _, id := range slices.Sorted(maps.Keys(s.blocks)) {
		b := s.blocks[id]
		sb := snapshotBlock{
			ID:         b.ID,
			UUID:       b.UUID,
			Content:    b.Content,
			Format:     b.Format,
			Page:       b.PageID(),
			Properties: b.Properties,
		}
		if b.ParentID() != b.PageID() {
			sb.Parent = b.ParentID()
		}
		for _, ref := range b.Refs {
			sb.Refs = append(sb.Refs, ref.ID)
		}
		file.Blocks = append(file.Blocks, sb)
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

func cloneBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Properties = maps.Clone(b.Properties)
	cp.Refs = slices.Clone(b.Refs)
	return &cp
}
