// Package anki connects the sync engine to a running Anki through the
// AnkiConnect add-on.
//
// Every batch is sent as a single "multi" request whose sub-actions use
// protocol version 6, so each item reports its own result and error. A
// failed item never fails its neighbours.
//
//   - add: createDeck for the decks involved, then addNote per item
//   - update: updateNote (fields and tags) and changeDeck per item
//   - delete: deleteNotes per item
//   - store-assets: storeMediaFile per item, with file data read from the
//     configured asset source
//
// Transport errors, 429 and 5xx responses are retried by core/transport.
package anki
