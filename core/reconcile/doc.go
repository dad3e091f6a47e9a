// Package reconcile keeps a flashcard store in step with the notes found in
// a document graph. The graph is authoritative; the store is passive.
//
// # Architecture
//
// A run moves through fixed phases:
//
//  1. Extract: every Extractor scans the graph and returns SourceNotes.
//
//  2. Route: the Router creates one Manager per destination model (the
//     default model plus every anki-note-type override). A Manager indexes
//     the model's records by their uuid-type field and queues writes.
//
//  3. Partition: notes with a matching record become updates, the rest
//     creates; records no note matched become deletes.
//
//  4. Select: a Selector may narrow the candidates or abort. A run that only
//     deletes, and deletes many, needs an extra confirmation.
//
//  5. Execute: creates, updates and deletes are queued on their managers and
//     executed as one batch per manager and kind. Managers run concurrently.
//     Failures are recorded per item and never roll back other items.
//
//  6. Assets: queued media files are stored, then the store is reloaded.
//
// # Dependency Hash
//
// Every written record carries a DependencyConfig in its Config field. The
// hash covers a per-note seed (what the note depends on in the graph) and the
// rendered payload. On update, the hash of the stored payload is compared to
// the stored hash: equal means nothing the note depends on changed, and the
// rewrite is skipped. Seeds are memoized and prewarmed in the background
// while the user reviews the candidates.
//
// # Usage
//
//	engine := reconcile.NewEngine(cfg.Sync, reconcile.Deps{
//	    Graph:      accessor,
//	    Connector:  conn,
//	    Extractors: extractors,
//	    Parser:     parser,
//	})
//	summary, err := engine.Run(ctx, reconcile.Options{RunID: runID})
package reconcile
