package lyrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/notify"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]Lyrics
	upserts int
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]Lyrics{}}
}

func (r *memRepo) Lyrics(ctx context.Context, songID string) (*Lyrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[songID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memRepo) Upsert(ctx context.Context, rec Lyrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.records[rec.SongID] = rec
	return nil
}

type stubSource struct {
	name  string
	text  string
	kind  music.Kind
	err   error
	calls int
	last  music.Query
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, q music.Query, want music.Kind) (*music.Result, error) {
	s.calls++
	s.last = q
	if s.err != nil {
		return nil, s.err
	}
	return &music.Result{Text: s.text, Kind: s.kind, Source: s.name}, nil
}

type stubSearcher struct {
	tracks []music.Track
	err    error
}

func (s stubSearcher) Search(ctx context.Context, q music.Query) ([]music.Track, error) {
	return s.tracks, s.err
}

var testSong = Song{MediaID: "vid1", Title: "e:Test Song", Artist: "Test Artist", Album: "Album"}

func fixedDuration(d time.Duration) DurationFunc {
	return func(ctx context.Context) time.Duration { return d }
}

func TestEnsureSyncedFirstProviderWins(t *testing.T) {
	lrclib := &stubSource{name: "LrcLib.net", text: "[00:01.00]hi"}
	kugou := &stubSource{name: "KuGou.com", text: "[00:01.00]other"}
	plain := &stubSource{name: "YouTube Music", text: "hi", kind: music.KindPlain}
	repo := newMemRepo()

	svc := NewService(ServiceConfig{
		Repo:     repo,
		Synced:   music.NewManager([]music.Source{lrclib, kugou}, nil),
		Plain:    music.NewManager([]music.Source{plain}, nil),
		Duration: fixedDuration(3 * time.Minute),
	})

	out, err := svc.Ensure(context.Background(), music.NewSession("vid1"), testSong, true)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if out.Err || !out.Fetched || out.Source != "LrcLib.net" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if kugou.calls != 0 || plain.calls != 0 {
		t.Errorf("later providers invoked: kugou=%d plain=%d", kugou.calls, plain.calls)
	}
	if lrclib.last.Title != "Test Song" || lrclib.last.Duration != 3*time.Minute {
		t.Errorf("unexpected query %+v", lrclib.last)
	}
	if rec := repo.records["vid1"]; rec.Synced == nil || *rec.Synced != "[00:01.00]hi" || rec.Fixed != nil {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestEnsureAllFailPersistsNothing(t *testing.T) {
	a := &stubSource{name: "A", err: music.ErrNotFound}
	b := &stubSource{name: "B", text: ""}
	repo := newMemRepo()
	rec := &notify.Recorder{}

	svc := NewService(ServiceConfig{
		Repo:     repo,
		Synced:   music.NewManager([]music.Source{a, b}, rec),
		Duration: fixedDuration(time.Minute),
	})

	out, err := svc.Ensure(context.Background(), music.NewSession("vid1"), testSong, true)
	if err != nil {
		t.Fatalf("total failure must not be an error: %v", err)
	}
	if !out.Err {
		t.Error("expected error flag")
	}
	if repo.upserts != 0 {
		t.Errorf("upserts = %d, want 0", repo.upserts)
	}
	if len(rec.Messages()) != 2 {
		t.Errorf("expected one notification per source, got %+v", rec.Messages())
	}
}

func TestEnsureUsesStoredRecord(t *testing.T) {
	src := &stubSource{name: "A", text: "x"}
	repo := newMemRepo()
	repo.records["vid1"] = Lyrics{SongID: "vid1", Fixed: StringPtr("")}

	svc := NewService(ServiceConfig{Repo: repo, Plain: music.NewManager([]music.Source{src}, nil)})
	out, err := svc.Ensure(context.Background(), music.NewSession("vid1"), testSong, false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Fetched || src.calls != 0 {
		t.Error("stored (even empty) text must be used without fetching")
	}
}

func TestEnsurePlainResultKeepsSynced(t *testing.T) {
	src := &stubSource{name: "YouTube Music", text: "plain words", kind: music.KindPlain}
	repo := newMemRepo()
	repo.records["vid1"] = Lyrics{SongID: "vid1", Synced: StringPtr("[00:01.00]a")}

	svc := NewService(ServiceConfig{Repo: repo, Plain: music.NewManager([]music.Source{src}, nil)})
	if _, err := svc.Ensure(context.Background(), music.NewSession("vid1"), testSong, false); err != nil {
		t.Fatal(err)
	}
	rec := repo.records["vid1"]
	if rec.Fixed == nil || *rec.Fixed != "plain words" || rec.Synced == nil {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestEnsureWaitsForDuration(t *testing.T) {
	src := &stubSource{name: "A", text: "[00:01.00]x"}
	var mu sync.Mutex
	polls := 0
	duration := func(ctx context.Context) time.Duration {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls < 3 {
			return 0
		}
		return time.Minute
	}

	svc := NewService(ServiceConfig{Repo: newMemRepo(), Synced: music.NewManager([]music.Source{src}, nil), Duration: duration})
	if _, err := svc.Ensure(context.Background(), music.NewSession("vid1"), testSong, true); err != nil {
		t.Fatal(err)
	}
	if polls != 3 || src.last.Duration != time.Minute {
		t.Errorf("polls=%d duration=%v", polls, src.last.Duration)
	}
}

func TestEnsureCancelledWhileWaiting(t *testing.T) {
	svc := NewService(ServiceConfig{
		Repo:     newMemRepo(),
		Synced:   music.NewManager([]music.Source{&stubSource{name: "A"}}, nil),
		Duration: fixedDuration(0),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	_, err := svc.Ensure(ctx, music.NewSession("vid1"), testSong, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestSaveAndPick(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(ServiceConfig{Repo: repo})
	ctx := context.Background()

	if _, err := svc.Save(ctx, "vid1", "edited plain\n", false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Pick(ctx, "vid1", music.Track{ID: 1}); err != nil {
		t.Fatal(err)
	}
	rec := repo.records["vid1"]
	if *rec.Fixed != "edited plain" {
		t.Errorf("fixed = %q", *rec.Fixed)
	}
	if rec.Synced == nil || *rec.Synced != "" {
		t.Errorf("pick without synced lyrics should store empty text, got %v", rec.Synced)
	}

	synced := "[00:02.00]picked"
	if _, err := svc.Pick(ctx, "vid1", music.Track{ID: 2, SyncedLyrics: &synced}); err != nil {
		t.Fatal(err)
	}
	if rec := repo.records["vid1"]; *rec.Synced != synced || *rec.Fixed != "edited plain" {
		t.Errorf("unexpected record %+v", rec)
	}

	if _, err := svc.Save(ctx, "", "x", true); err == nil {
		t.Error("expected error for empty song id")
	}
}

func TestSearchNotifications(t *testing.T) {
	tests := []struct {
		name     string
		searcher stubSearcher
		wantText string
		wantErr  bool
	}{
		{"found", stubSearcher{tracks: []music.Track{{ID: 1}, {ID: 2}}}, "2 tracks found on LrcLib.net", false},
		{"none", stubSearcher{err: music.ErrNotFound}, "No tracks found on LrcLib.net", false},
		{"error", stubSearcher{err: errors.New("timeout")}, "An error has occurred while fetching the lyrics", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &notify.Recorder{}
			svc := NewService(ServiceConfig{Repo: newMemRepo(), Searcher: tt.searcher, Notifier: rec})
			_, err := svc.Search(context.Background(), "Artist", "e:Title")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			msgs := rec.Messages()
			if len(msgs) != 1 || msgs[0].Text != tt.wantText {
				t.Errorf("notifications = %+v", msgs)
			}
		})
	}
}

func TestRefetchIgnoresStoredText(t *testing.T) {
	src := &stubSource{name: "YouTube Music", text: "fresh", kind: music.KindPlain}
	repo := newMemRepo()
	repo.records["vid1"] = Lyrics{SongID: "vid1", Fixed: StringPtr(""), Synced: StringPtr("[00:01.00]a")}

	svc := NewService(ServiceConfig{Repo: repo, Plain: music.NewManager([]music.Source{src}, nil)})
	out, err := svc.Refetch(context.Background(), music.NewSession("vid1"), testSong, false)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Fetched || *out.Lyrics.Fixed != "fresh" || *out.Lyrics.Synced != "[00:01.00]a" {
		t.Errorf("unexpected outcome %+v", out)
	}

	// 失败时保留原有记录
	src.err = music.ErrNotFound
	out, err = svc.Refetch(context.Background(), music.NewSession("vid1"), testSong, false)
	if err != nil || !out.Err || *out.Lyrics.Fixed != "fresh" {
		t.Errorf("failed refetch should keep record: %+v, %v", out, err)
	}
}
