package cards

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"anki-sync/core/graph"
	"anki-sync/core/reconcile"
	"anki-sync/feature/render"
)

const (
	defaultDeck       = "Default"
	deckSeparator     = "::"
	crumbSeparator    = " > "
	hideParentTag     = "hide-when-card-parent"
	hideAllParentsTag = "hide-all-card-parent"
)

var (
	whitespace = regexp.MustCompile(`\s`)
	pageLink   = regexp.MustCompile(`^\[\[(.*)\]\]$`)
)

// Resolver resolves the inherited attributes of a note's block.
type Resolver struct {
	graph    graph.Accessor
	renderer reconcile.Renderer
	cfg      Config
}

// NewResolver creates a resolver.
func NewResolver(g graph.Accessor, renderer reconcile.Renderer, cfg Config) *Resolver {
	return &Resolver{graph: g, renderer: renderer, cfg: cfg}
}

// firstValue returns the first value of a possibly multi-valued property
// with page-link brackets removed.
func firstValue(props graph.Properties, key string) string {
	values := listValues(props, key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// listValues splits a property into trimmed values. Comma separated
// strings count as lists.
func listValues(props graph.Properties, key string) []string {
	var out []string
	for _, v := range props.Strings(key) {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if m := pageLink.FindStringSubmatch(part); m != nil {
				part = m[1]
			}
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Deck resolves the deck of a block on page.
func (r *Resolver) Deck(ctx context.Context, block *graph.Block, page *graph.Page) (string, error) {
	var deck string
	err := graph.WalkBlocks(ctx, r.graph, block, func(b *graph.Block) bool {
		deck = firstValue(b.Properties, "deck")
		return deck == ""
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve block deck: %w", err)
	}

	if deck == "" && page != nil {
		err := graph.WalkNamespace(ctx, r.graph, page.ID, func(p *graph.Page) bool {
			deck = firstValue(p.Properties, "deck")
			return deck == ""
		})
		if err != nil {
			return "", fmt.Errorf("failed to resolve page deck: %w", err)
		}
	}

	if deck == "" && page != nil {
		useNamespace, err := r.UseNamespaceAsDeck(ctx, page.ID)
		if err != nil {
			return "", err
		}
		if useNamespace {
			if parts := graph.SplitNamespace(page.Title()); len(parts) > 1 {
				deck = strings.Join(parts[:len(parts)-1], "/")
			}
		}
	}

	if deck == "" {
		deck = r.cfg.DefaultDeck
	}
	if deck == "" {
		deck = defaultDeck
	}
	return strings.Join(graph.SplitNamespace(deck), deckSeparator), nil
}

// UseNamespaceAsDeck resolves the namespace deck flag. The nearest
// namespace page with an explicit value wins; otherwise the configured
// value applies.
func (r *Resolver) UseNamespaceAsDeck(ctx context.Context, pageID int) (bool, error) {
	var value, found bool
	err := graph.WalkNamespace(ctx, r.graph, pageID, func(p *graph.Page) bool {
		value, found = p.Properties.Bool("use-namespace-as-default-deck")
		return !found
	})
	if err != nil {
		return false, fmt.Errorf("failed to resolve namespace deck flag: %w", err)
	}
	if found {
		return value, nil
	}
	return r.cfg.UseNamespaceAsDefaultDeck, nil
}

// Tags collects own plus the tags of the block, its ancestors, its page
// and the page's namespace ancestors, normalized by NormalizeTags.
func (r *Resolver) Tags(ctx context.Context, block *graph.Block, pageID int, own []string) ([]string, error) {
	tags := slices.Clone(own)
	err := graph.WalkBlocks(ctx, r.graph, block, func(b *graph.Block) bool {
		tags = append(tags, listValues(b.Properties, "tags")...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve block tags: %w", err)
	}
	err = graph.WalkNamespace(ctx, r.graph, pageID, func(p *graph.Page) bool {
		tags = append(tags, listValues(p.Properties, "tags")...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve page tags: %w", err)
	}
	return NormalizeTags(tags), nil
}

// NormalizeTags rewrites namespace separators to "::" and whitespace to
// "_", drops duplicates, then drops every tag that is the parent of
// another one ("A" goes when "A::B" is present).
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var unique []string
	for _, tag := range tags {
		tag = strings.ReplaceAll(tag, "/", deckSeparator)
		tag = whitespace.ReplaceAllString(tag, "_")
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		unique = append(unique, tag)
	}

	out := make([]string, 0, len(unique))
	for _, tag := range unique {
		parent := false
		for _, other := range unique {
			if strings.HasPrefix(other, tag+deckSeparator) {
				parent = true
				break
			}
		}
		if !parent {
			out = append(out, tag)
		}
	}
	return out
}

func graphLink(graphName, query, id string) string {
	return "logseq://graph/" + encodeComponent(graphName) + "?" + query + "=" + encodeComponent(id)
}

// encodeComponent escapes like JavaScript's encodeURIComponent.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Breadcrumb builds the link trail shown on the card.
func (r *Resolver) Breadcrumb(ctx context.Context, graphName string, block *graph.Block, page *graph.Page) (string, error) {
	title := page.Title()
	href := graphLink(graphName, "page", title)
	if r.cfg.BreadcrumbDisplay == BreadcrumbHidden {
		return fmt.Sprintf(`<a href="%s" class="hidden">%s</a>`, href, html.EscapeString(title)), nil
	}

	crumb := fmt.Sprintf(`<a href="%s" title="%s">%s</a>`, href, html.EscapeString(title), html.EscapeString(title))
	if r.cfg.BreadcrumbDisplay != BreadcrumbPageAndParents {
		return crumb, nil
	}

	ancestors, err := graph.Ancestors(ctx, r.graph, block)
	if err != nil {
		return "", fmt.Errorf("failed to resolve breadcrumb: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(crumb)
	for i := len(ancestors) - 1; i >= 0; i-- {
		parent := ancestors[i]
		content := render.StripClozes(render.StripProperties(parent.Content))
		firstLine, _, _ := strings.Cut(content, "\n")
		fmt.Fprintf(&sb, `%s<a href="%s" title="%s">%s</a>`, crumbSeparator,
			graphLink(graphName, "block-id", parent.UUID), html.EscapeString(content), html.EscapeString(firstLine))
	}
	return sb.String(), nil
}

// hasTag reports whether the block carries tag inline or in its tags property.
func hasTag(b *graph.Block, tag string) bool {
	for _, t := range render.Tags(b.Content) {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	for _, t := range listValues(b.Properties, "tags") {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func listClass(props graph.Properties) string {
	if props.String("logseq.order-list-type") == "number" {
		return "children numbered"
	}
	return "children"
}

// InlineParents nests body inside the rendered ancestors of block,
// outermost first. Ancestors tagged #hide-when-card-parent, or all of them
// when hideAll is set, are wrapped in a hidden span. The ancestors' assets
// are returned.
func (r *Resolver) InlineParents(ctx context.Context, block *graph.Block, body string, hideAll bool) (string, []string, error) {
	ancestors, err := graph.Ancestors(ctx, r.graph, block)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load parent blocks: %w", err)
	}

	var sb strings.Builder
	var assets []string
	for i := len(ancestors) - 1; i >= 0; i-- {
		parent := ancestors[i]
		out, err := r.renderer.Render(ctx, render.StripClozes(parent.Content), parent.Format)
		if err != nil {
			return "", nil, fmt.Errorf("failed to render parent block %s: %w", parent.UUID, err)
		}
		content := out.HTML
		if hideAll || hasTag(parent, hideParentTag) {
			content = `<span class="hidden-parent">` + content + `</span>`
		}
		assets = append(assets, out.Assets...)
		fmt.Fprintf(&sb, `<ul class="children-list"><li class="%s">%s`, listClass(parent.Properties), content)
	}
	fmt.Fprintf(&sb, `<ul class="children-list"><li class="%s">%s</li></ul>`, listClass(block.Properties), body)
	sb.WriteString(strings.Repeat("</li></ul>", len(ancestors)))
	return sb.String(), assets, nil
}
