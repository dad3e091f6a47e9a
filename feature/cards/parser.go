package cards

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"anki-sync/core/graph"
	"anki-sync/core/reconcile"
	"anki-sync/feature/render"

	"go.uber.org/zap"
)

// Parser implements reconcile.Parser.
type Parser struct {
	graph    graph.Accessor
	renderer reconcile.Renderer
	resolver *Resolver
	cfg      Config
	log      *zap.Logger

	graphName func() string
}

// NewParser creates a parser. describer names the graph in breadcrumb
// links and is asked once.
func NewParser(g graph.Accessor, describer graph.Describer, renderer reconcile.Renderer, cfg Config, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{
		graph:    g,
		renderer: renderer,
		resolver: NewResolver(g, renderer, cfg),
		cfg:      cfg,
		log:      log,
		graphName: sync.OnceValue(func() string {
			if describer == nil {
				return ""
			}
			info, err := describer.CurrentGraph(context.Background())
			if err != nil || info == nil {
				log.Warn("Failed to describe graph", zap.Error(err))
				return ""
			}
			return info.Name
		}),
	}
}

// Parse renders note and resolves its deck, tags, breadcrumb and extra.
func (p *Parser) Parse(ctx context.Context, note *reconcile.SourceNote) (*reconcile.ParsedNote, error) {
	block, err := p.graph.GetBlockByUUID(ctx, note.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load block: %w", err)
	}
	if block == nil {
		return nil, fmt.Errorf("block %s: %w", note.UUID, graph.ErrNotFound)
	}
	pageID := note.PageID
	if pageID == 0 {
		pageID = block.PageID()
	}
	page, err := p.graph.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return nil, fmt.Errorf("page %d: %w", pageID, graph.ErrNotFound)
	}

	rendered, err := p.renderer.Render(ctx, note.Content, note.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to render note: %w", err)
	}
	assets := newOrderedSet(rendered.Assets...)
	own := render.Tags(note.Content)

	parsed := &reconcile.ParsedNote{
		HTML:   rendered.HTML,
		Model:  note.ModelOverride(),
		Fields: reconcile.LegacyFields{},
	}
	if parsed.Model != "" {
		parsed.Fields = MapFields(note.Properties, rendered.HTML)
	}

	if p.cfg.IncludeParentContent {
		hideAll := containsFold(own, hideAllParentsTag) || containsFold(listValues(note.Properties, "tags"), hideAllParentsTag)
		html, parentAssets, err := p.resolver.InlineParents(ctx, block, rendered.HTML, hideAll)
		if err != nil {
			return nil, err
		}
		parsed.HTML = html
		assets.add(parentAssets...)
	}

	if parsed.Deck, err = p.resolver.Deck(ctx, block, page); err != nil {
		return nil, err
	}
	if parsed.Breadcrumb, err = p.resolver.Breadcrumb(ctx, p.graphName(), block, page); err != nil {
		return nil, err
	}
	if parsed.Tags, err = p.resolver.Tags(ctx, block, page.ID, own); err != nil {
		return nil, err
	}

	extra := note.Properties.Strings("extra")
	if len(extra) == 0 {
		extra = page.Properties.Strings("extra")
	}
	if len(extra) > 0 {
		out, err := p.renderer.Render(ctx, strings.Join(extra, " "), note.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to render extra: %w", err)
		}
		parsed.Extra = out.HTML
		assets.add(out.Assets...)
	}

	parsed.Assets = assets.items
	p.log.Debug("Parsed note",
		zap.String("note", note.Key()),
		zap.String("model", parsed.Model),
		zap.String("deck", parsed.Deck),
		zap.Int("assets", len(parsed.Assets)))
	return parsed, nil
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet(items ...string) *orderedSet {
	s := &orderedSet{seen: make(map[string]struct{})}
	s.add(items...)
	return s
}

func (s *orderedSet) add(items ...string) {
	for _, item := range items {
		if _, ok := s.seen[item]; ok {
			continue
		}
		s.seen[item] = struct{}{}
		s.items = append(s.items, item)
	}
}
