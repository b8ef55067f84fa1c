package lyrics

import (
	"testing"
	"time"
)

func TestIndexAt(t *testing.T) {
	sentences, _ := ParseLRC("[00:01.00]a\n[00:02.00]b\n[00:02.00]b2\n[00:05.00]c")

	tests := []struct {
		at   time.Duration
		want int
	}{
		{0, 0},
		{999 * time.Millisecond, 0},
		{time.Second, 1},
		{2 * time.Second, 3},
		{4 * time.Second, 3},
		{time.Hour, 4},
	}
	for _, tt := range tests {
		if got := IndexAt(sentences, tt.at); got != tt.want {
			t.Errorf("IndexAt(%v) = %d, want %d", tt.at, got, tt.want)
		}
	}
	if IndexAt(nil, time.Second) != 0 {
		t.Error("empty sentences should give 0")
	}
}

func TestSynchronizedMonotonic(t *testing.T) {
	sentences, _ := ParseLRC("[00:00.50]a\n[00:01.20]b\n[00:01.25]c\n[00:03.00]d\n[00:07.77]e")

	var pos time.Duration
	s := NewSynchronized(sentences, func() time.Duration { return pos })

	last := s.Index()
	changes := 0
	for pos = 0; pos < 10*time.Second; pos += 50 * time.Millisecond {
		if s.Update() {
			changes++
		}
		idx := s.Index()
		if idx < last {
			t.Fatalf("index went back from %d to %d at %v", last, idx, pos)
		}
		last = idx
	}
	if last != len(sentences)-1 {
		t.Errorf("final index = %d, want %d", last, len(sentences)-1)
	}
	if changes != len(sentences)-1 {
		t.Errorf("changes = %d, want %d", changes, len(sentences)-1)
	}
}

func TestSynchronizedUpdateReportsChange(t *testing.T) {
	sentences, _ := ParseLRC("[00:01.00]a")
	pos := 2 * time.Second
	s := NewSynchronized(sentences, func() time.Duration { return pos })
	if s.Index() != 1 {
		t.Fatalf("initial index = %d", s.Index())
	}
	if s.Update() {
		t.Error("no change expected")
	}
	pos = 0
	if !s.Update() || s.Index() != 0 {
		t.Error("seek back should report change")
	}
}
