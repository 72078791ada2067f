package cache

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// bucketName is this store's bbolt bucket within the engine-wide database
// handle, the same handle pkg/mlog.DurableSink persists log entries into —
// one embedded store per process rather than one per concern.
var bucketName = []byte("cache_overflow")

// DurableStore persists evicted-but-still-valuable blobs (e.g. decoded
// thumbnail or waveform data) to an already-open bbolt database, so a
// subsequent Get miss can be satisfied from disk instead of redecoding
// (§4.8 "durable overflow").
type DurableStore struct {
	db *bolt.DB
}

// NewDurableStore wraps db, creating its bucket if necessary.
func NewDurableStore(db *bolt.DB) (*DurableStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &DurableStore{db: db}, nil
}

// Put persists value under key.
func (s *DurableStore) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
}

// Get returns the persisted value for key, if any.
func (s *DurableStore) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	return out, out != nil, nil
}

// Delete removes the persisted value for key, if any.
func (s *DurableStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}
