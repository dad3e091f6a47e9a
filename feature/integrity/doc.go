// Package integrity checks that the sync environment is usable before a run.
//
// # Checks Provided
//
//   - Graph: the document graph answers and reports a name.
//   - Store: the flashcard store accepts requests and lists its media.
//   - Model: the default note model exists in the store.
//   - Assets: the asset bucket exists (s3 source only).
//   - Schema: the local collection tables carry every expected column.
//
// A failed check does not stop the others; the report lists each outcome.
package integrity
