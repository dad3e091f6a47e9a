// Package extract finds flashcard notes in the graph.
//
// Two note kinds are supported:
//
//   - cloze: blocks containing {{c1::...}} or {{cloze ...}} markup.
//   - multiline_card: blocks tagged #card. The block is the question and
//     its children are the answer.
//
// Blocks with disable-anki-sync:: true, or below such a block, are skipped.
package extract
