// Package store persists one lyrics record per track id.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"lyrics-panel/internal/lyrics"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("store closed")

// Store 歌词记录存储
type Store interface {
	// Lyrics returns nil, nil when no record exists.
	Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error)
	// Upsert replaces the record with the same SongID.
	Upsert(ctx context.Context, rec lyrics.Lyrics) error
	// All returns every record ordered by SongID.
	All(ctx context.Context) ([]lyrics.Lyrics, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Open 打开指定驱动的存储，必要时创建目录
func Open(driver, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create store directory: %w", err)
	}
	switch driver {
	case DriverBolt, "":
		return NewBoltStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
