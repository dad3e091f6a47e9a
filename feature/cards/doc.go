// Package cards turns extracted notes into card content.
//
// The Parser resolves everything a card shows besides its own text by
// walking the graph: the deck, tags and breadcrumb come from the block's
// ancestors and from the page's namespace ancestors. Notes naming a custom
// note type via anki-note-type:: get their properties mapped onto fields of
// that type.
//
// Deck resolution, first match wins:
//  1. deck:: on the block or one of its ancestor blocks
//  2. deck:: on the page or one of its namespace ancestors
//  3. the page namespace without its leaf, when use-namespace-as-default-deck
//     resolves true
//  4. the configured default deck
package cards
