package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"lyrics-panel/internal/lyrics"
)

var lyricsBucket = []byte("lyrics")

type BoltStore struct {
	mu     sync.RWMutex
	db     *bbolt.DB
	closed bool
}

func NewBoltStore(dbPath string) (*BoltStore, error) {
	options := &bbolt.Options{Timeout: 1 * time.Second}
	db, err := bbolt.Open(dbPath, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(lyricsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create lyrics bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *lyrics.Lyrics
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(lyricsBucket).Get([]byte(songID))
		if v == nil {
			return nil
		}
		rec = &lyrics.Lyrics{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("error reading lyrics for %s: %w", songID, err)
	}
	return rec, nil
}

func (s *BoltStore) Upsert(ctx context.Context, rec lyrics.Lyrics) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error serializing lyrics: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(lyricsBucket).Put([]byte(rec.SongID), value)
	})
}

func (s *BoltStore) All(ctx context.Context) ([]lyrics.Lyrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []lyrics.Lyrics
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(lyricsBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec lyrics.Lyrics
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
