// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package mlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// bucketName is the bbolt bucket this sink owns within the engine-wide database
// handle (the same handle pkg/cache opens for its durable overflow store).
var bucketName = []byte("mlog_entries")

const defaultMaxEntries = 100000

// DurableSink persists log entries into an already-open bbolt database, so the
// engine keeps a single embedded store open per process instead of one per
// concern.
type DurableSink struct {
	db         *bolt.DB
	maxEntries int
	saveWG     sync.WaitGroup
}

// NewDurableSink wraps db, creating its bucket if necessary.
func NewDurableSink(db *bolt.DB) (*DurableSink, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create mlog bucket: %w", err)
	}
	return &DurableSink{db: db, maxEntries: defaultMaxEntries}, nil
}

// Run persists entries from l until ctx is canceled.
func (s *DurableSink) Run(ctx context.Context, l *Logger) {
	feed, cancel := l.Subscribe()
	defer cancel()

	s.saveWG.Add(1)
	defer s.saveWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-feed:
			if err := s.save(entry); err != nil {
				fmt.Fprintf(os.Stderr, "mlog: could not save entry: %v: %v\n", entry.Msg, err)
			}
		}
	}
}

// Wait blocks until any in-flight save completes. Call after the owning
// context is canceled and before closing the underlying bbolt handle.
func (s *DurableSink) Wait() {
	s.saveWG.Wait()
}

func (s *DurableSink) save(entry Entry) error {
	key := encodeKey(uint64(entry.Time))
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Stats().KeyN >= s.maxEntries {
			if err := deleteFirstKey(b); err != nil {
				return fmt.Errorf("delete oldest entry: %w", err)
			}
		}
		return b.Put(key, value)
	})
}

func deleteFirstKey(b *bolt.Bucket) error {
	k, _ := b.Cursor().First()
	if k == nil {
		return nil
	}
	return b.Delete(k)
}

func encodeKey(key uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, key)
	return out
}
