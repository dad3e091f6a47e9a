package cards

import (
	"context"
	"testing"

	"anki-sync/core/graph"
	"anki-sync/core/reconcile"
	"anki-sync/feature/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
name: My Graph
pages:
  - id: 1
    original_name: Science
    properties:
      tags: [science]
  - id: 2
    original_name: Science/Biology
    namespace: 1
  - id: 3
    original_name: Chemistry
    properties:
      deck: Chem/Organic
      extra: Chem notes
  - id: 4
    original_name: Solo
  - id: 5
    original_name: Lang
    properties:
      use-namespace-as-default-deck: false
  - id: 6
    original_name: Lang/French
    namespace: 5
blocks:
  - id: 10
    uuid: n-10
    page: 4
    content: Parent
    properties:
      deck: Block Deck
  - id: 11
    uuid: n-11
    page: 4
    parent: 10
    content: "Q {{c1::A}} ![x](../assets/x.png)"
  - id: 20
    uuid: n-20
    page: 3
    content: "Chem {{c1::C}}"
  - id: 21
    uuid: n-21
    page: 3
    content: "Own deck {{c1::x}}"
    properties:
      deck: Own
  - id: 30
    uuid: n-30
    page: 2
    content: "Bio {{c1::B}}"
    properties:
      tags: [cells, Science/Cell Biology]
  - id: 40
    uuid: n-40
    page: 6
    content: "Fr {{c1::F}}"
  - id: 50
    uuid: n-50
    page: 4
    content: "Top #hide-when-card-parent"
    properties:
      logseq.order-list-type: number
  - id: 51
    uuid: n-51
    page: 4
    parent: 50
    content: "Middle {{c1::m}}"
  - id: 52
    uuid: n-52
    page: 4
    parent: 51
    content: "Leaf {{c1::L}}"
  - id: 60
    uuid: n-60
    page: 4
    content: Front text
    properties:
      anki-note-type: Basic
      front: "{{content}}"
      archivedate: "2024-01-01"
      deck: Cards
      extra: "see ![y](../assets/y.png)"
`

func setup(t *testing.T) *graph.Snapshot {
	t.Helper()
	snap, err := graph.ParseSnapshot([]byte(fixture))
	require.NoError(t, err)
	return snap
}

func block(t *testing.T, snap *graph.Snapshot, uuid string) (*graph.Block, *graph.Page) {
	t.Helper()
	ctx := context.Background()
	b, err := snap.GetBlockByUUID(ctx, uuid)
	require.NoError(t, err)
	require.NotNil(t, b)
	p, err := snap.GetPage(ctx, b.PageID())
	require.NoError(t, err)
	return b, p
}

func sourceNote(t *testing.T, snap *graph.Snapshot, uuid, content string) *reconcile.SourceNote {
	t.Helper()
	b, _ := block(t, snap, uuid)
	if content == "" {
		content = b.Content
	}
	return &reconcile.SourceNote{
		UUID:       b.UUID,
		Type:       "cloze",
		Content:    content,
		Format:     b.Format,
		Properties: b.Properties,
		PageID:     b.PageID(),
		BlockID:    b.ID,
	}
}

func TestResolver_Deck(t *testing.T) {
	snap := setup(t)
	cfg := Config{DefaultDeck: "Inbox", UseNamespaceAsDefaultDeck: true}
	r := NewResolver(snap, render.New(), cfg)

	tests := []struct {
		name string
		uuid string
		want string
	}{
		{"Block", "n-11", "Block Deck"},
		{"Page", "n-20", "Chem::Organic"},
		{"BlockOverPage", "n-21", "Own"},
		{"Namespace", "n-30", "Science"},
		{"NamespaceFlagOverridden", "n-40", "Inbox"},
		{"Default", "n-52", "Inbox"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, p := block(t, snap, tt.uuid)
			deck, err := r.Deck(context.Background(), b, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, deck)
		})
	}

	t.Run("LiteralDefault", func(t *testing.T) {
		b, p := block(t, snap, "n-52")
		deck, err := NewResolver(snap, nil, Config{}).Deck(context.Background(), b, p)
		require.NoError(t, err)
		assert.Equal(t, "Default", deck)
	})
}

func TestResolver_UseNamespaceAsDeck(t *testing.T) {
	snap := setup(t)
	ctx := context.Background()

	on := NewResolver(snap, nil, Config{UseNamespaceAsDefaultDeck: true})
	v, err := on.UseNamespaceAsDeck(ctx, 6)
	require.NoError(t, err)
	assert.False(t, v, "namespace page value wins over config")

	v, err = on.UseNamespaceAsDeck(ctx, 2)
	require.NoError(t, err)
	assert.True(t, v)

	off := NewResolver(snap, nil, Config{})
	v, err = off.UseNamespaceAsDeck(ctx, 2)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"A::B", "C"}, NormalizeTags([]string{"A", "A::B", "C"}))
	assert.Equal(t, []string{"Lang::Old_French", "x"}, NormalizeTags([]string{"Lang", "Lang/Old French", "x", "x", ""}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestResolver_Tags(t *testing.T) {
	snap := setup(t)
	r := NewResolver(snap, nil, Config{})
	b, p := block(t, snap, "n-30")

	tags, err := r.Tags(context.Background(), b, p.ID, []string{"inline"})
	require.NoError(t, err)
	assert.Equal(t, []string{"inline", "cells", "Science::Cell_Biology", "science"}, tags)
}

func TestResolver_Breadcrumb(t *testing.T) {
	snap := setup(t)
	ctx := context.Background()
	b, p := block(t, snap, "n-52")

	hidden, err := NewResolver(snap, nil, Config{BreadcrumbDisplay: BreadcrumbHidden}).Breadcrumb(ctx, "My Graph", b, p)
	require.NoError(t, err)
	assert.Equal(t, `<a href="logseq://graph/My%20Graph?page=Solo" class="hidden">Solo</a>`, hidden)

	page, err := NewResolver(snap, nil, Config{BreadcrumbDisplay: BreadcrumbPage}).Breadcrumb(ctx, "My Graph", b, p)
	require.NoError(t, err)
	assert.Equal(t, `<a href="logseq://graph/My%20Graph?page=Solo" title="Solo">Solo</a>`, page)

	full, err := NewResolver(snap, nil, Config{BreadcrumbDisplay: BreadcrumbPageAndParents}).Breadcrumb(ctx, "My Graph", b, p)
	require.NoError(t, err)
	assert.Equal(t, page+
		` > <a href="logseq://graph/My%20Graph?block-id=n-50" title="Top #hide-when-card-parent">Top #hide-when-card-parent</a>`+
		` > <a href="logseq://graph/My%20Graph?block-id=n-51" title="Middle m">Middle m</a>`, full)
}

func TestResolver_InlineParents(t *testing.T) {
	snap := setup(t)
	r := NewResolver(snap, render.New(), Config{})
	b, _ := block(t, snap, "n-52")

	html, assets, err := r.InlineParents(context.Background(), b, "BODY", false)
	require.NoError(t, err)
	assert.Empty(t, assets)
	assert.Equal(t, `<ul class="children-list"><li class="children numbered">`+
		`<span class="hidden-parent">Top <span class="tag">#hide-when-card-parent</span></span>`+
		`<ul class="children-list"><li class="children">Middle m`+
		`<ul class="children-list"><li class="children">BODY</li></ul>`+
		`</li></ul></li></ul>`, html)

	all, _, err := r.InlineParents(context.Background(), b, "BODY", true)
	require.NoError(t, err)
	assert.Contains(t, all, `<span class="hidden-parent">Middle m</span>`)
}

func TestFieldName(t *testing.T) {
	tests := map[string]string{
		"archivedate": "archiveDate",
		"sourcepage":  "sourcePage",
		"duedate":     "dueDate",
		"scorevalue":  "scoreValue",
		"date":        "date",
		"front":       "front",
		"dateline":    "dateline",
	}
	for in, want := range tests {
		assert.Equal(t, want, FieldName(in), in)
	}
}

func TestMapFields(t *testing.T) {
	props := graph.Properties{
		"anki-note-type":    "Basic",
		"front":             "{{content}}",
		"archivedate":       "2024-01-01",
		"sources":           []any{"a", "b"},
		"id":                "123",
		"Deck":              "X",
		"disable-anki-sync": false,
	}
	fields := MapFields(props, "<b>html</b>")
	assert.Equal(t, reconcile.CustomFields{
		"front":       "<b>html</b>",
		"archiveDate": "2024-01-01",
		"sources":     "a, b",
	}, fields)
}

func TestParser_Legacy(t *testing.T) {
	snap := setup(t)
	p := NewParser(snap, snap, render.New(), Config{DefaultDeck: "Inbox", BreadcrumbDisplay: BreadcrumbPage}, nil)

	parsed, err := p.Parse(context.Background(), sourceNote(t, snap, "n-11", ""))
	require.NoError(t, err)
	assert.Equal(t, `Q {{c1::A}} <img src="x.png" alt="x">`, parsed.HTML)
	assert.Equal(t, []string{"../assets/x.png"}, parsed.Assets)
	assert.Equal(t, "Block Deck", parsed.Deck)
	assert.Empty(t, parsed.Model)
	assert.Equal(t, reconcile.LegacyFields{}, parsed.Fields)
	assert.Equal(t, `<a href="logseq://graph/My%20Graph?page=Solo" title="Solo">Solo</a>`, parsed.Breadcrumb)
	assert.Empty(t, parsed.Extra)

	chem, err := p.Parse(context.Background(), sourceNote(t, snap, "n-20", ""))
	require.NoError(t, err)
	assert.Equal(t, "Chem notes", chem.Extra)
}

func TestParser_CustomModel(t *testing.T) {
	snap := setup(t)
	p := NewParser(snap, snap, render.New(), Config{}, nil)

	parsed, err := p.Parse(context.Background(), sourceNote(t, snap, "n-60", ""))
	require.NoError(t, err)
	assert.Equal(t, "Basic", parsed.Model)
	assert.Equal(t, reconcile.CustomFields{"front": "Front text", "archiveDate": "2024-01-01"}, parsed.Fields)
	assert.Equal(t, "Cards", parsed.Deck)
	assert.Equal(t, `see <img src="y.png" alt="y">`, parsed.Extra)
	assert.Equal(t, []string{"../assets/y.png"}, parsed.Assets)
}

func TestParser_IncludeParentContent(t *testing.T) {
	snap := setup(t)
	p := NewParser(snap, snap, render.New(), Config{IncludeParentContent: true}, nil)

	parsed, err := p.Parse(context.Background(), sourceNote(t, snap, "n-52", "Leaf {{c1::L}} #hide-all-card-parent"))
	require.NoError(t, err)
	assert.Contains(t, parsed.HTML, `<span class="hidden-parent">Middle m</span>`)
	assert.Contains(t, parsed.HTML, `<li class="children">Leaf {{c1::L}}`)
	assert.Contains(t, parsed.Tags, "hide-all-card-parent")
}

func TestParser_MissingBlock(t *testing.T) {
	snap := setup(t)
	p := NewParser(snap, nil, render.New(), Config{}, nil)

	_, err := p.Parse(context.Background(), &reconcile.SourceNote{UUID: "gone", Type: "cloze", PageID: 4})
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestSeeder(t *testing.T) {
	snap := setup(t)
	ctx := context.Background()
	s := NewSeeder(snap, Config{})
	note := sourceNote(t, snap, "n-11", "")

	first, err := s.Seed(ctx, note)
	require.NoError(t, err)
	again, err := s.Seed(ctx, note)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, snap.UpsertBlockProperty(ctx, "n-10", "deck", "Moved"))
	moved, err := s.Seed(ctx, note)
	require.NoError(t, err)
	assert.NotEqual(t, first, moved, "ancestor change alters the seed")

	other, err := NewSeeder(snap, Config{DefaultDeck: "Other"}).Seed(ctx, note)
	require.NoError(t, err)
	assert.NotEqual(t, moved, other, "settings alter the seed")
}
