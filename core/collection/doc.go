// Package collection is a local flashcard store kept in a SQL database.
//
// It implements reconcile.Connector so a graph can be synced without a
// running Anki, either into a SQLite file for offline review or into a
// shared MySQL schema.
package collection
