package music

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type memCache struct {
	data   map[string]string
	getErr error
}

func (m *memCache) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.data[key], nil
}

func (m *memCache) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return nil
}

func TestCachedSource(t *testing.T) {
	inner := &mockSource{name: "LrcLib.net", text: "[00:01.00]hi"}
	cache := &memCache{data: map[string]string{}}
	src := Cached(inner, cache, time.Hour)

	for i := 0; i < 2; i++ {
		res, err := src.Fetch(context.Background(), testQuery, KindSynced)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if res.Text != "[00:01.00]hi" {
			t.Errorf("text = %q", res.Text)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner source called %d times, want 1", inner.calls)
	}
	if _, ok := cache.data["lyrics:lrclib.net:synced:test artist:test song:180"]; !ok {
		t.Errorf("missing cache entry, have %v", cache.data)
	}
}

func TestCachedSourceIgnoresCacheErrors(t *testing.T) {
	inner := &mockSource{name: "A", text: "x"}
	src := Cached(inner, &memCache{data: map[string]string{}, getErr: errors.New("down")}, time.Hour)

	if _, err := src.Fetch(context.Background(), testQuery, KindPlain); err != nil {
		t.Fatalf("cache failure should not fail fetch: %v", err)
	}
}

func TestCachedNilCache(t *testing.T) {
	inner := &mockSource{name: "A"}
	if Cached(inner, nil, time.Hour) != Source(inner) {
		t.Error("nil cache should return the source unchanged")
	}
}

func TestTrackLabels(t *testing.T) {
	tr := Track{ID: 42, TrackName: "Song", ArtistName: "Artist", Duration: 61 * time.Second}
	if tr.Label() != "Artist - Song" {
		t.Errorf("Label = %q", tr.Label())
	}
	if tr.Detail() != "(Duration 1:01 ID 42)" {
		t.Errorf("Detail = %q", tr.Detail())
	}
}
