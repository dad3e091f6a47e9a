package extract

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"anki-sync/core/graph"
	"anki-sync/core/reconcile"
	"anki-sync/feature/render"
)

// Note kinds.
const (
	TypeCloze = "cloze"
	TypeCard  = "multiline_card"
)

const (
	disableProperty = "disable-anki-sync"
	cardTag         = "card"
)

// index is a scanned graph held in memory for one extraction.
type index struct {
	blocks   []*graph.Block
	byID     map[int]*graph.Block
	children map[int][]*graph.Block
}

func scan(ctx context.Context, scanner graph.Scanner) (*index, error) {
	blocks, err := scanner.Blocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan blocks: %w", err)
	}
	idx := &index{
		blocks:   blocks,
		byID:     make(map[int]*graph.Block, len(blocks)),
		children: make(map[int][]*graph.Block),
	}
	for _, b := range blocks {
		idx.byID[b.ID] = b
	}
	for _, b := range blocks {
		if _, ok := idx.byID[b.ParentID()]; ok {
			idx.children[b.ParentID()] = append(idx.children[b.ParentID()], b)
		}
	}
	for id := range idx.children {
		slices.SortFunc(idx.children[id], func(a, b *graph.Block) int { return a.ID - b.ID })
	}
	return idx, nil
}

// disabled reports whether b or one of its ancestors opts out of syncing.
func (idx *index) disabled(b *graph.Block) bool {
	current := b
	for steps := 0; current != nil && steps < graph.MaxWalkDepth; steps++ {
		if v, ok := current.Properties.Bool(disableProperty); ok && v {
			return true
		}
		current = idx.byID[current.ParentID()]
	}
	return false
}

func newNote(b *graph.Block, kind, content string) *reconcile.SourceNote {
	format := b.Format
	if format == "" {
		format = "markdown"
	}
	return &reconcile.SourceNote{
		UUID:       b.UUID,
		Type:       kind,
		Content:    content,
		Format:     format,
		Properties: b.Properties,
		PageID:     b.PageID(),
		BlockID:    b.ID,
	}
}

// Cloze extracts cloze notes.
type Cloze struct {
	scanner graph.Scanner
}

// NewCloze creates a cloze extractor.
func NewCloze(scanner graph.Scanner) *Cloze {
	return &Cloze{scanner: scanner}
}

// Name implements reconcile.Extractor.
func (c *Cloze) Name() string {
	return TypeCloze
}

// Extract implements reconcile.Extractor.
func (c *Cloze) Extract(ctx context.Context, _ []*reconcile.SourceNote) ([]*reconcile.SourceNote, error) {
	idx, err := scan(ctx, c.scanner)
	if err != nil {
		return nil, err
	}
	var notes []*reconcile.SourceNote
	for _, b := range idx.blocks {
		if b.UUID == "" || !render.HasCloze(render.StripProperties(b.Content)) || idx.disabled(b) {
			continue
		}
		notes = append(notes, newNote(b, TypeCloze, b.Content))
	}
	return notes, nil
}

// Card extracts #card notes. Blocks already claimed by an earlier
// extractor are left out.
type Card struct {
	scanner graph.Scanner
}

// NewCard creates a card extractor.
func NewCard(scanner graph.Scanner) *Card {
	return &Card{scanner: scanner}
}

// Name implements reconcile.Extractor.
func (c *Card) Name() string {
	return TypeCard
}

// Extract implements reconcile.Extractor.
func (c *Card) Extract(ctx context.Context, existing []*reconcile.SourceNote) ([]*reconcile.SourceNote, error) {
	idx, err := scan(ctx, c.scanner)
	if err != nil {
		return nil, err
	}
	claimed := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		claimed[n.UUID] = struct{}{}
	}

	var notes []*reconcile.SourceNote
	for _, b := range idx.blocks {
		if _, ok := claimed[b.UUID]; ok || b.UUID == "" || !isCard(b) || idx.disabled(b) {
			continue
		}
		notes = append(notes, newNote(b, TypeCard, idx.cardContent(b)))
	}
	return notes, nil
}

func isCard(b *graph.Block) bool {
	for _, tag := range render.Tags(b.Content) {
		if strings.EqualFold(tag, cardTag) {
			return true
		}
	}
	for _, tag := range b.Properties.Strings("tags") {
		if strings.EqualFold(tag, cardTag) {
			return true
		}
	}
	return false
}

// cardContent is the block followed by its descendants as a nested list.
func (idx *index) cardContent(b *graph.Block) string {
	var sb strings.Builder
	sb.WriteString(b.Content)
	seen := map[int]struct{}{b.ID: {}}
	var walk func(parent, depth int)
	walk = func(parent, depth int) {
		if depth >= graph.MaxWalkDepth {
			return
		}
		for _, child := range idx.children[parent] {
			if _, dup := seen[child.ID]; dup {
				continue
			}
			seen[child.ID] = struct{}{}
			text := strings.ReplaceAll(render.StripProperties(child.Content), "\n", " ")
			sb.WriteString("\n" + strings.Repeat("  ", depth) + "- " + text)
			walk(child.ID, depth+1)
		}
	}
	walk(b.ID, 0)
	return sb.String()
}
