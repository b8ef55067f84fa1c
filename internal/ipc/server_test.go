package ipc

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lyrics-panel/internal/panel"
	"lyrics-panel/pkg/notify"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "p.sock")
	s := NewServer(path)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Close)
	return s, path
}

func waitClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for s.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", s.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerStreamsEnvelopes(t *testing.T) {
	s, path := startServer(t)
	s.Frame(panel.Frame{SongID: "early"})

	c, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	hello, err := c.Next()
	if err != nil || hello.Type != TypeHello || hello.ClientID == "" {
		t.Fatalf("hello = %+v, %v", hello, err)
	}
	initial, err := c.Next()
	if err != nil || initial.Type != TypeFrame || initial.Frame.SongID != "early" {
		t.Fatalf("initial frame = %+v, %v", initial, err)
	}

	waitClients(t, s, 1)
	s.Scroll(panel.ScrollEvent{SongID: "early", Index: 3})
	s.Notify(notify.Message{Text: "Lyrics found on LrcLib.net", Type: notify.Success})

	scroll, err := c.Next()
	if err != nil || scroll.Type != TypeScroll || scroll.Scroll.Index != 3 {
		t.Errorf("scroll = %+v, %v", scroll, err)
	}
	msg, err := c.Next()
	if err != nil || msg.Type != TypeNotify || msg.Notify.Text != "Lyrics found on LrcLib.net" {
		t.Errorf("notify = %+v, %v", msg, err)
	}

	c.Close()
	waitClients(t, s, 0)
}

// 不读数据的客户端会被断开，广播不会卡住
func TestStalledClientDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.sock")
	s := NewServer(path)
	s.writeTimeout = 50 * time.Millisecond
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, s, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		big := panel.Frame{SongID: "big", Title: strings.Repeat("x", 64*1024)}
		for i := 0; i < 200; i++ {
			s.Frame(big)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a client that does not read")
	}
	waitClients(t, s, 0)
}

func TestSecondServerRefused(t *testing.T) {
	_, path := startServer(t)
	other := NewServer(path)
	if err := other.Start(); err == nil {
		other.Close()
		t.Fatal("expected lock error")
	}
}

func TestStaleLockRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.sock")
	if err := os.WriteFile(path+".lock", []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewServer(path)
	if err := s.Start(); err != nil {
		t.Fatalf("Start with stale lock: %v", err)
	}
	s.Close()
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file should be removed on close")
	}
}
