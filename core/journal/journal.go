package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"anki-sync/core/reconcile"

	bolt "go.etcd.io/bbolt"
)

var bucketReports = []byte("reports")

// Store keeps sync summaries in a bbolt file, newest last.
type Store struct {
	db   *bolt.DB
	keep int
}

// Open opens or creates the journal at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReports)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, keep: cfg.Keep}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Report saves the summary. It implements reconcile.Reporter.
func (s *Store) Report(_ context.Context, summary *reconcile.Summary) error {
	return s.Save(summary)
}

// Save appends summary and prunes reports beyond the retention limit.
func (s *Store) Save(summary *reconcile.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), data); err != nil {
			return err
		}
		return prune(b, s.keep)
	})
}

// prune deletes the oldest entries until at most keep remain.
func prune(b *bolt.Bucket, keep int) error {
	if keep <= 0 {
		return nil
	}
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	if len(keys) <= keep {
		return nil
	}
	for _, k := range keys[:len(keys)-keep] {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// List returns up to limit summaries, newest first. A limit of zero or less
// returns all.
func (s *Store) List(limit int) ([]*reconcile.Summary, error) {
	var out []*reconcile.Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var summary reconcile.Summary
			if err := json.Unmarshal(v, &summary); err != nil {
				return fmt.Errorf("failed to decode report %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, &summary)
		}
		return nil
	})
	return out, err
}

// Latest returns the newest summary, or nil when the journal is empty.
func (s *Store) Latest() (*reconcile.Summary, error) {
	list, err := s.List(1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
