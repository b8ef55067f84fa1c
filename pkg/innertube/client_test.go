package innertube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lyrics-panel/pkg/music"
)

func TestFetchLyricsTab(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		var body nextBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VideoID != "vid1" {
			t.Errorf("unexpected body %+v (%v)", body, err)
		}
		w.Write([]byte(`{"contents":{"singleColumnMusicWatchNextResultsRenderer":{"tabbedRenderer":{"watchNextTabbedResultsRenderer":{"tabs":[
			{"tabRenderer":{"title":"Up next"}},
			{"tabRenderer":{"title":"Lyrics","endpoint":{"browseEndpoint":{"browseId":"MPLYt_abc"}}}}
		]}}}}}`))
	})
	mux.HandleFunc("/browse", func(w http.ResponseWriter, r *http.Request) {
		var body browseBody
		json.NewDecoder(r.Body).Decode(&body)
		if body.BrowseID != "MPLYt_abc" {
			t.Errorf("browseId = %q", body.BrowseID)
		}
		w.Write([]byte(`{"contents":{"sectionListRenderer":{"contents":[{"musicDescriptionShelfRenderer":{"description":{"runs":[{"text":"line one\nline two"}]},"footer":{"runs":[{"text":"Source: X"}]}}}]}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	res, err := NewClient(time.Second).WithBaseURL(server.URL).Fetch(context.Background(), music.Query{MediaID: "vid1"}, music.KindSynced)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Kind != music.KindPlain || res.Text != "line one\nline two" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFetchWithoutLyricsTab(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"contents":{}}`))
	}))
	defer server.Close()

	_, err := NewClient(time.Second).WithBaseURL(server.URL).Fetch(context.Background(), music.Query{MediaID: "vid1"}, music.KindPlain)
	if !errors.Is(err, music.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
