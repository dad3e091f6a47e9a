// Package storage provides access to the files attached to notes.
//
// Notes reference assets (images, audio) by graph-relative paths such as
// "../assets/diagram.png". Before a note is sent to the flashcard store its
// assets are read through an AssetSource:
//
//   - FSSource reads them from the graph directory on disk.
//   - BucketSource reads them from an S3/MinIO bucket, for graphs whose
//     assets are mirrored to object storage.
//
// # Client Interface
//
// The Client interface abstracts the MinIO Go client, making it easier to
// mock storage interactions for unit testing (as seen in core/storage/mocks).
//
// # Usage
//
//	src, err := storage.NewAssetSource(cfg.Storage, cfg.Logseq.GraphPath)
//	rc, err := src.Open(ctx, "assets/diagram.png")
package storage
