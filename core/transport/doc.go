// Package transport provides the JSON-over-HTTP client shared by the
// AnkiConnect connector and the Logseq HTTP API accessor.
//
// Both services speak a single POST endpoint with a JSON envelope. JSONClient
// handles marshalling, bearer authentication, and bounded retries for transport
// errors, 429 and 5xx responses (honouring Retry-After).
package transport
