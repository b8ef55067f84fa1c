package sources

import (
	"testing"
)

func TestCreateManagerDefaults(t *testing.T) {
	tests := []struct {
		synced bool
		want   []string
	}{
		{true, []string{"LrcLib.net", "KuGou.com", "YouTube Music"}},
		{false, []string{"YouTube Music", "LrcLib.net"}},
	}

	for _, tt := range tests {
		manager, err := CreateManager(Chain(tt.synced), Options{}, nil)
		if err != nil {
			t.Fatalf("CreateManager: %v", err)
		}
		got := manager.SourceNames()
		if len(got) != len(tt.want) {
			t.Fatalf("synced=%v: got %v, want %v", tt.synced, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("synced=%v: source %d = %q, want %q", tt.synced, i, got[i], tt.want[i])
			}
		}
	}
}

func TestCreateSourceUnknown(t *testing.T) {
	if _, err := CreateSource("qqmusic", Options{}); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestChainIsCopy(t *testing.T) {
	c := Chain(true)
	c[0] = "changed"
	if DefaultSynced[0] != LrcLib {
		t.Error("Chain must not alias the defaults")
	}
}
