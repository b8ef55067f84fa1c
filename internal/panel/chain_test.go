package panel

import (
	"context"
	"sync"
	"testing"

	"lyrics-panel/internal/lyrics"
	"lyrics-panel/pkg/music"
)

// memRepo 内存中的歌词记录
type memRepo struct {
	mu   sync.Mutex
	recs map[string]lyrics.Lyrics
}

func (r *memRepo) Lyrics(ctx context.Context, songID string) (*lyrics.Lyrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[songID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memRepo) Upsert(ctx context.Context, rec lyrics.Lyrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recs == nil {
		r.recs = map[string]lyrics.Lyrics{}
	}
	r.recs[rec.SongID] = rec
	return nil
}

// scriptedSource 按调用次数和请求类型返回结果
type scriptedSource struct {
	name   string
	answer func(call int, want music.Kind) (*music.Result, error)

	mu    sync.Mutex
	asked []music.Kind
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Fetch(ctx context.Context, q music.Query, want music.Kind) (*music.Result, error) {
	s.mu.Lock()
	s.asked = append(s.asked, want)
	call := len(s.asked)
	s.mu.Unlock()
	return s.answer(call, want)
}

func (s *scriptedSource) calls() []music.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]music.Kind(nil), s.asked...)
}

func newChainPanel(synced bool, syncedChain, plainChain []music.Source) *Panel {
	svc := lyrics.NewService(lyrics.ServiceConfig{
		Repo:   &memRepo{},
		Synced: music.NewManager(syncedChain, nil),
		Plain:  music.NewManager(plainChain, nil),
	})
	return New(Config{Service: svc, Synced: synced})
}

func TestRefetchAsksProvidersAgain(t *testing.T) {
	flaky := &scriptedSource{name: "flaky", answer: func(call int, want music.Kind) (*music.Result, error) {
		if call == 1 {
			return nil, music.ErrNotFound
		}
		return &music.Result{Text: "found", Kind: music.KindPlain}, nil
	}}
	p := newChainPanel(false, nil, []music.Source{flaky})
	defer p.Close()

	if err := p.Load(context.Background(), song); err != nil {
		t.Fatal(err)
	}
	if f := p.Render(); !f.ShowError || len(flaky.calls()) != 1 {
		t.Fatalf("after Load: calls=%d frame=%+v", len(flaky.calls()), f)
	}

	if err := p.Refetch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(flaky.calls()); n != 2 {
		t.Fatalf("Refetch should ask the provider again, calls=%d", n)
	}
	if f := p.Render(); f.ShowError || f.Plain != "found" {
		t.Errorf("after Refetch: %+v", f)
	}
}

func TestSetSyncedFetchesMissingVariant(t *testing.T) {
	lrclib := &scriptedSource{name: "lrclib", answer: func(call int, want music.Kind) (*music.Result, error) {
		if want == music.KindSynced {
			return &music.Result{Text: testLRC, Kind: music.KindSynced}, nil
		}
		return &music.Result{Text: "plain text", Kind: music.KindPlain}, nil
	}}
	innertube := &scriptedSource{name: "innertube", answer: func(int, music.Kind) (*music.Result, error) {
		return nil, music.ErrNotFound
	}}
	p := newChainPanel(true, []music.Source{lrclib}, []music.Source{innertube, lrclib})
	defer p.Close()

	if err := p.Load(context.Background(), song); err != nil {
		t.Fatal(err)
	}
	if f := p.Render(); f.ShowError || len(f.Lines) != 3 {
		t.Fatalf("synced view: %+v", f)
	}

	if err := p.SetSynced(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	f := p.Render()
	if f.ShowError || f.Plain != "plain text" {
		t.Errorf("plain view: %+v", f)
	}
	if got := lrclib.calls(); len(got) != 2 || got[0] != music.KindSynced || got[1] != music.KindPlain {
		t.Errorf("lrclib asked %v", got)
	}
	if got := innertube.calls(); len(got) != 1 || got[0] != music.KindPlain {
		t.Errorf("innertube asked %v", got)
	}

	// 切回同步视图时使用已保存的记录
	if err := p.SetSynced(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if n := len(lrclib.calls()); n != 2 {
		t.Errorf("stored synced lyrics refetched, calls=%d", n)
	}
}
