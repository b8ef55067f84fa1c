package music

import (
	"context"
	"errors"
	"testing"
	"time"

	"lyrics-panel/pkg/notify"
)

// mockSource 模拟歌词提供商
type mockSource struct {
	name  string
	text  string
	kind  Kind
	err   error
	calls int
}

func (m *mockSource) Name() string {
	return m.name
}

func (m *mockSource) Fetch(ctx context.Context, q Query, want Kind) (*Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &Result{Text: m.text, Kind: m.kind}, nil
}

var testQuery = Query{MediaID: "id1", Title: "Test Song", Artist: "Test Artist", Duration: 3 * time.Minute}

func TestManagerFetch(t *testing.T) {
	// 第一个提供商成功时不调用后续提供商
	t.Run("FirstSourceWins", func(t *testing.T) {
		synced := &mockSource{name: "Synced", text: "[00:10.00]Test lyrics"}
		plain := &mockSource{name: "Plain", text: "Test lyrics", kind: KindPlain}
		rec := &notify.Recorder{}

		manager := NewManager([]Source{synced, plain}, rec)
		res, err := manager.Fetch(context.Background(), NewSession("id1"), testQuery, KindSynced)
		if err != nil {
			t.Fatalf("Expected success, got error: %v", err)
		}
		if res.Text != "[00:10.00]Test lyrics" || res.Source != "Synced" {
			t.Errorf("unexpected result %+v", res)
		}
		if plain.calls != 0 {
			t.Errorf("plain source called %d times, want 0", plain.calls)
		}
		msgs := rec.Messages()
		if len(msgs) != 1 || msgs[0].Text != "Lyrics found on Synced" || msgs[0].Type != notify.Success {
			t.Errorf("unexpected notifications %+v", msgs)
		}
	})

	// 失败和空结果都会回退到下一个提供商
	t.Run("FailoverSuccess", func(t *testing.T) {
		failing := &mockSource{name: "Fail", err: ErrNotFound}
		empty := &mockSource{name: "Empty", text: "  "}
		ok := &mockSource{name: "OK", text: "lyrics", kind: KindPlain}
		rec := &notify.Recorder{}

		manager := NewManager([]Source{failing, empty, ok}, rec)
		res, err := manager.Fetch(context.Background(), NewSession("id1"), testQuery, KindSynced)
		if err != nil {
			t.Fatalf("Expected success with failover, got error: %v", err)
		}
		if res.Kind != KindPlain || res.Source != "OK" {
			t.Errorf("unexpected result %+v", res)
		}

		want := []string{
			"Lyrics not found on Fail, trying Empty",
			"Lyrics not found on Empty, trying OK",
			"Lyrics found on OK",
		}
		msgs := rec.Messages()
		if len(msgs) != len(want) {
			t.Fatalf("got %d notifications, want %d: %+v", len(msgs), len(want), msgs)
		}
		for i, m := range msgs {
			if m.Text != want[i] {
				t.Errorf("notification %d = %q, want %q", i, m.Text, want[i])
			}
		}
	})

	// 所有提供商都失败
	t.Run("AllFail", func(t *testing.T) {
		a := &mockSource{name: "A", err: errors.New("boom")}
		b := &mockSource{name: "B", err: ErrNotFound}
		rec := &notify.Recorder{}

		manager := NewManager([]Source{a, b}, rec)
		_, err := manager.Fetch(context.Background(), NewSession("id1"), testQuery, KindSynced)
		if !errors.Is(err, ErrAllFailed) {
			t.Fatalf("expected ErrAllFailed, got %v", err)
		}
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected last error to be wrapped, got %v", err)
		}
		msgs := rec.Messages()
		if last := msgs[len(msgs)-1]; last.Text != "Lyrics not found on B" || last.Type != notify.Error {
			t.Errorf("unexpected last notification %+v", last)
		}
	})
}

func TestManagerSkipsCheckedSources(t *testing.T) {
	a := &mockSource{name: "A", err: ErrNotFound}
	b := &mockSource{name: "B", err: ErrNotFound}
	manager := NewManager([]Source{a, b}, nil)
	session := NewSession("id1")

	if session.AnyChecked() {
		t.Fatal("new session should have nothing checked")
	}
	manager.Fetch(context.Background(), session, testQuery, KindSynced)
	if !session.Checked("A", KindSynced) || !session.Checked("B", KindSynced) {
		t.Fatal("every attempted source should be marked")
	}
	if session.Checked("A", KindPlain) {
		t.Fatal("synced attempt should not mark the plain kind")
	}

	_, err := manager.Fetch(context.Background(), session, testQuery, KindSynced)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("expected ErrAllFailed, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("checked sources were retried: a=%d b=%d", a.calls, b.calls)
	}

	// 新歌曲的会话重新开始
	manager.Fetch(context.Background(), NewSession("id2"), testQuery, KindSynced)
	if a.calls != 2 {
		t.Errorf("new session should retry sources, a=%d", a.calls)
	}
}

// 同一提供商出现在两条链里时，两种类型各问一次
func TestManagerChecksPerKind(t *testing.T) {
	shared := &mockSource{name: "lrclib", text: "[00:01.00]x"}
	failing := &mockSource{name: "innertube", err: ErrNotFound}
	synced := NewManager([]Source{shared}, nil)
	plain := NewManager([]Source{failing, shared}, nil)
	session := NewSession("id1")

	if _, err := synced.Fetch(context.Background(), session, testQuery, KindSynced); err != nil {
		t.Fatalf("synced fetch: %v", err)
	}
	res, err := plain.Fetch(context.Background(), session, testQuery, KindPlain)
	if err != nil {
		t.Fatalf("plain chain should still ask lrclib for plain lyrics: %v", err)
	}
	if res.Source != "lrclib" || shared.calls != 2 || failing.calls != 1 {
		t.Errorf("result %+v, lrclib calls=%d innertube calls=%d", res, shared.calls, failing.calls)
	}

	// 再次请求时两种类型都已检查过
	if _, err := plain.Fetch(context.Background(), session, testQuery, KindPlain); !errors.Is(err, ErrAllFailed) {
		t.Errorf("expected ErrAllFailed once both kinds are checked, got %v", err)
	}
	if shared.calls != 2 {
		t.Errorf("checked kind was retried, calls=%d", shared.calls)
	}
}

func TestManagerStopsOnCancel(t *testing.T) {
	a := &mockSource{name: "A", err: ErrNotFound}
	manager := NewManager([]Source{a}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := manager.Fetch(ctx, NewSession("id1"), testQuery, KindSynced)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if a.calls != 0 {
		t.Errorf("source called after cancel")
	}
}

func TestManagerSourceNames(t *testing.T) {
	manager := NewManager([]Source{&mockSource{name: "A"}, &mockSource{name: "B"}}, nil)
	names := manager.SourceNames()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("unexpected names %v", names)
	}
}
