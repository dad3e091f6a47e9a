package cards

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"anki-sync/core/graph"
	"anki-sync/core/reconcile"
)

// Seeder implements reconcile.Seeder. The seed covers the inputs a card is
// built from: the note, its ancestor blocks, its page chain and the card
// settings.
type Seeder struct {
	graph graph.Accessor
	cfg   Config
}

// NewSeeder creates a seeder.
func NewSeeder(g graph.Accessor, cfg Config) *Seeder {
	return &Seeder{graph: g, cfg: cfg}
}

type blockDep struct {
	UUID       string           `json:"uuid"`
	Content    string           `json:"content"`
	Properties graph.Properties `json:"properties"`
}

type pageDep struct {
	Name       string           `json:"name"`
	Properties graph.Properties `json:"properties"`
}

// Seed implements reconcile.Seeder.
func (s *Seeder) Seed(ctx context.Context, note *reconcile.SourceNote) (string, error) {
	var blocks []blockDep
	block, err := s.graph.GetBlockByUUID(ctx, note.UUID)
	if err != nil {
		return "", fmt.Errorf("failed to load block: %w", err)
	}
	if block != nil {
		ancestors, err := graph.Ancestors(ctx, s.graph, block)
		if err != nil {
			return "", fmt.Errorf("failed to load ancestors: %w", err)
		}
		for _, a := range ancestors {
			blocks = append(blocks, blockDep{UUID: a.UUID, Content: a.Content, Properties: a.Properties})
		}
	}

	var pages []pageDep
	err = graph.WalkNamespace(ctx, s.graph, note.PageID, func(p *graph.Page) bool {
		pages = append(pages, pageDep{Name: p.Title(), Properties: p.Properties})
		return true
	})
	if err != nil {
		return "", fmt.Errorf("failed to load pages: %w", err)
	}

	data, err := json.Marshal(map[string]any{
		"key":        note.Key(),
		"content":    note.Content,
		"format":     note.Format,
		"properties": note.Properties,
		"ancestors":  blocks,
		"pages":      pages,
		"settings":   s.cfg,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
