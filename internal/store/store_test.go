package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lyrics-panel/internal/lyrics"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	tempDir := t.TempDir()

	stores := map[string]Store{}
	for _, driver := range []string{DriverBolt, DriverSQLite} {
		s, err := Open(driver, filepath.Join(tempDir, driver, "lyrics.db"))
		require.NoError(t, err, "Failed to open %s store", driver)
		t.Cleanup(func() { s.Close() })
		stores[driver] = s
	}
	return stores
}

func TestStore_Upsert(t *testing.T) {
	ctx := context.Background()
	for driver, s := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			rec, err := s.Lyrics(ctx, "missing")
			require.NoError(t, err)
			require.Nil(t, rec, "Missing record should be nil")

			require.NoError(t, s.Upsert(ctx, lyrics.Lyrics{SongID: "song1", Fixed: lyrics.StringPtr("plain text")}))

			rec, err = s.Lyrics(ctx, "song1")
			require.NoError(t, err)
			require.NotNil(t, rec)
			require.Equal(t, "plain text", *rec.Fixed)
			require.Nil(t, rec.Synced, "Synced should stay absent")

			merged := rec.Merge("song1", "[00:01.00]synced", true)
			require.NoError(t, s.Upsert(ctx, merged))

			rec, err = s.Lyrics(ctx, "song1")
			require.NoError(t, err)
			require.Equal(t, "plain text", *rec.Fixed, "Upserting synced must keep fixed")
			require.Equal(t, "[00:01.00]synced", *rec.Synced)

			// 空字符串与缺失不同
			require.NoError(t, s.Upsert(ctx, rec.Merge("song1", "", true)))
			rec, err = s.Lyrics(ctx, "song1")
			require.NoError(t, err)
			require.NotNil(t, rec.Synced)
			require.Equal(t, "", *rec.Synced)
		})
	}
}

func TestStore_All(t *testing.T) {
	ctx := context.Background()
	for driver, s := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			for _, id := range []string{"b", "a", "c"} {
				require.NoError(t, s.Upsert(ctx, lyrics.Lyrics{SongID: id, Fixed: lyrics.StringPtr(id)}))
			}
			require.NoError(t, s.Upsert(ctx, lyrics.Lyrics{SongID: "a", Fixed: lyrics.StringPtr("A")}))

			all, err := s.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3, "At most one record per song id")
			require.Equal(t, "a", all[0].SongID)
			require.Equal(t, "A", *all[0].Fixed)
			require.Equal(t, "c", all[2].SongID)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	for driver, s := range openStores(t) {
		t.Run(driver, func(t *testing.T) {
			require.NoError(t, s.Close())
			require.NoError(t, s.Close(), "Close should be idempotent")

			_, err := s.Lyrics(ctx, "x")
			require.ErrorIs(t, err, ErrClosed)
			require.ErrorIs(t, s.Upsert(ctx, lyrics.Lyrics{SongID: "x"}), ErrClosed)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
}
