// Package graph models the outliner document graph that notes are extracted from.
//
// A graph consists of pages and blocks. Blocks form a tree under their page:
// a top-level block's parent is the page itself. Pages form a second hierarchy
// through namespaces ("science/physics" lives under "science").
//
// # Accessors
//
// Accessor is the point-lookup interface the sync engine depends on. Two
// implementations are provided:
//   - LogseqClient: the Logseq HTTP API server (POST /api).
//   - Snapshot: a YAML or JSON snapshot file, used offline and in tests.
//
// # Walks
//
// WalkBlocks and WalkNamespace implement bounded, cycle-tolerant ancestor walks.
// Absent entities terminate a walk; they are not errors.
package graph
