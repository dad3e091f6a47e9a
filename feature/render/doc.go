// Package render converts block markup to card HTML.
//
// It covers the subset of Logseq markdown and org syntax that shows up in
// flashcards: emphasis, code, links, page references, images, lists and
// fenced code. Cloze markup passes through untouched so Anki can read it,
// and the Logseq {{cloze ...}} macro is rewritten to numbered Anki clozes.
//
// Local image paths are collected as assets so the sync can upload them.
package render
