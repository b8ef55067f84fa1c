package lrclib

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lyrics-panel/pkg/music"
)

const searchBody = `[
 {"id":1,"trackName":"Song","artistName":"Someone Else","duration":100,"plainLyrics":"wrong","syncedLyrics":"[00:01.00]wrong"},
 {"id":2,"trackName":"Song","artistName":"Artist","duration":250,"plainLyrics":"long","syncedLyrics":"[00:01.00]long"},
 {"id":3,"trackName":"Song (Live)","artistName":"Artist","duration":181,"plainLyrics":null,"syncedLyrics":"[00:01.00]first\n[00:02.50]second"},
 {"id":4,"trackName":"Song","artistName":"Artist","duration":180,"plainLyrics":"plain only","syncedLyrics":null}
]`

func newTestClient(url string) *Client {
	return NewClient(WithBaseURL(url), WithTimeout(time.Second), WithRetries(1, time.Millisecond))
}

func TestFetchSyncedPrefersDurationMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("track_name"); got != "Song" {
			t.Errorf("track_name = %q", got)
		}
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	res, err := newTestClient(server.URL).Fetch(context.Background(), music.Query{
		Title: "Song", Artist: "Artist", Duration: 180 * time.Second,
	}, music.KindSynced)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Kind != music.KindSynced {
		t.Errorf("kind = %v, want synced", res.Kind)
	}
	if res.Text != "[00:01.00]first\n[00:02.50]second" {
		t.Errorf("unexpected text %q", res.Text)
	}
}

func TestFetchPlainFallsBackToSyncedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":3,"trackName":"Song","artistName":"Artist","duration":181,"syncedLyrics":"[00:01.00]first\n[00:02.50]second"}]`))
	}))
	defer server.Close()

	res, err := newTestClient(server.URL).Fetch(context.Background(), music.Query{Title: "Song", Artist: "Artist"}, music.KindPlain)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Text != "first\nsecond" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestFetchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), music.Query{Title: "Nope"}, music.KindSynced)
	if !errors.Is(err, music.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Fetch(context.Background(), music.Query{Title: "Song", Artist: "Artist"}, music.KindSynced); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestSearchReturnsOnlySyncedTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	tracks, err := newTestClient(server.URL).Search(context.Background(), music.Query{Title: "Song", Artist: "Artist"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(tracks))
	}
	if tracks[2].ID != 3 || tracks[2].Duration != 181*time.Second {
		t.Errorf("unexpected track %+v", tracks[2])
	}
	if got := tracks[2].Detail(); got != "(Duration 3:01 ID 3)" {
		t.Errorf("Detail() = %q", got)
	}
}
