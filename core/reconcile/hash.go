package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Payload is the rendered content a dependency hash covers.
type Payload struct {
	HTML       string
	Assets     []string
	Deck       string
	Breadcrumb string
	Tags       []string
	Extra      string
}

// canonical orders the set-like members so equal payloads encode equally.
func (p Payload) canonical() []any {
	assets := slices.Clone(p.Assets)
	if assets == nil {
		assets = []string{}
	}
	slices.Sort(assets)
	tags := slices.Clone(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	slices.Sort(tags)
	return []any{p.HTML, assets, p.Deck, p.Breadcrumb, tags, p.Extra}
}

// Seeder computes the stable identity seed of a note: everything the note's
// output depends on apart from the payload itself.
type Seeder interface {
	Seed(ctx context.Context, note *SourceNote) (string, error)
}

// SeederFunc adapts a function to Seeder.
type SeederFunc func(ctx context.Context, note *SourceNote) (string, error)

// Seed calls f.
func (f SeederFunc) Seed(ctx context.Context, note *SourceNote) (string, error) {
	return f(ctx, note)
}

// DefaultSeed seeds on the note identity, content and properties.
func DefaultSeed(_ context.Context, note *SourceNote) (string, error) {
	data, err := json.Marshal([]any{note.Key(), note.Content, note.Format, note.Properties})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashCalculator computes dependency hashes. Seeds are memoized per note
// key for the lifetime of the calculator.
type HashCalculator struct {
	seeder Seeder

	mu    sync.RWMutex
	seeds map[string]string
	sf    singleflight.Group
}

// NewHashCalculator creates a calculator. A nil seeder uses DefaultSeed.
func NewHashCalculator(seeder Seeder) *HashCalculator {
	if seeder == nil {
		seeder = SeederFunc(DefaultSeed)
	}
	return &HashCalculator{seeder: seeder, seeds: make(map[string]string)}
}

// Seed returns the memoized seed for note, computing it at most once per key
// even under concurrent callers. Failed computations are not memoized.
func (h *HashCalculator) Seed(ctx context.Context, note *SourceNote) (string, error) {
	key := note.Key()

	h.mu.RLock()
	seed, ok := h.seeds[key]
	h.mu.RUnlock()
	if ok {
		return seed, nil
	}

	v, err, _ := h.sf.Do(key, func() (any, error) {
		h.mu.RLock()
		seed, ok := h.seeds[key]
		h.mu.RUnlock()
		if ok {
			return seed, nil
		}

		seed, err := h.seeder.Seed(ctx, note)
		if err != nil {
			return "", err
		}
		h.mu.Lock()
		h.seeds[key] = seed
		h.mu.Unlock()
		return seed, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cached reports whether the seed for note is memoized.
func (h *HashCalculator) Cached(note *SourceNote) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.seeds[note.Key()]
	return ok
}

// Hash returns the dependency hash of note with payload p.
func (h *HashCalculator) Hash(ctx context.Context, note *SourceNote, p Payload) (string, error) {
	seed, err := h.Seed(ctx, note)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal([]any{seed, p.canonical()})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
