// Package outbox persists undelivered notification events in a local BoltDB file.
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "outbox"

// ErrFull is returned by Put once the outbox holds its configured maximum.
var ErrFull = errors.New("outbox: full")

type Store struct {
	db      *bolt.DB
	bucket  []byte
	maxSize int
}

// Open creates the BoltDB file and the bucket when missing. maxSize <= 0 means unbounded.
func Open(path, bucket string, maxSize int) (*Store, error) {
	if bucket == "" {
		bucket = defaultBucket
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: []byte(bucket), maxSize: maxSize}, nil
}

// Put parks an entry. Keys order entries by priority, then by parking time.
func (s *Store) Put(entry Entry) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	entry.normalize()
	entry.key = entryKey(entry)

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if s.maxSize > 0 && b.Stats().KeyN >= s.maxSize {
			return ErrFull
		}
		return b.Put(entry.key, payload)
	})
}

// Batch returns up to limit entries in key order without removing them.
func (s *Store) Batch(limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil && len(entries) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue
			}
			entry.key = append([]byte(nil), k...)
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// Ack removes a delivered or abandoned entry.
func (s *Store) Ack(entry Entry) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if len(entry.key) == 0 {
		entry.key = entryKey(entry)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(entry.key)
	})
}

// Retry moves an entry to the back of its priority band with the failure recorded.
func (s *Store) Retry(entry Entry, cause error) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	oldKey := entry.key
	entry.Attempts++
	entry.ParkedAt = time.Now()
	if cause != nil {
		entry.LastErr = cause.Error()
	}
	entry.key = entryKey(entry)

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if len(oldKey) > 0 {
			if err := b.Delete(oldKey); err != nil {
				return err
			}
		}
		return b.Put(entry.key, payload)
	})
}

func (s *Store) Len() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Prune drops entries parked before olderThan and reports how many were dropped.
func (s *Store) Prune(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	pruned := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			if entry.ParkedAt.Before(olderThan) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// keys are collected first: deleting under a live cursor skips the following key
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		pruned = len(expired)
		return nil
	})
	return pruned, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func entryKey(entry Entry) []byte {
	return []byte(fmt.Sprintf("%d_%020d_%s", entry.Priority, entry.ParkedAt.UnixNano(), entry.Event.ID))
}
