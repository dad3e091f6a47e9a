// Package journal persists sync summaries so past runs can be inspected
// with the report command.
//
// Summaries are stored as JSON in a single bbolt bucket keyed by a big-endian
// sequence number, so cursor order is chronological. Only the newest Keep
// entries are retained.
package journal
