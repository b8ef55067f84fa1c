package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"lyrics-panel/internal/lyrics"
)

// SQLiteStore keeps records in a single table; NULL columns are absent fields.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS lyrics (
			song_id TEXT PRIMARY KEY,
			fixed   TEXT,
			synced  TEXT
		);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create lyrics table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var fixed, synced sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT fixed, synced FROM lyrics WHERE song_id = ?`, songID).Scan(&fixed, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading lyrics for %s: %w", songID, err)
	}
	return &lyrics.Lyrics{SongID: songID, Fixed: nullablePtr(fixed), Synced: nullablePtr(synced)}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec lyrics.Lyrics) error {
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO lyrics (song_id, fixed, synced) VALUES (?, ?, ?)`,
		rec.SongID, ptrNullable(rec.Fixed), ptrNullable(rec.Synced))
	return err
}

func (s *SQLiteStore) All(ctx context.Context) ([]lyrics.Lyrics, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT song_id, fixed, synced FROM lyrics ORDER BY song_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []lyrics.Lyrics
	for rows.Next() {
		var id string
		var fixed, synced sql.NullString
		if err := rows.Scan(&id, &fixed, &synced); err != nil {
			return nil, err
		}
		out = append(out, lyrics.Lyrics{SongID: id, Fixed: nullablePtr(fixed), Synced: nullablePtr(synced)})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func nullablePtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func ptrNullable(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
