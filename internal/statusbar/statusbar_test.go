package statusbar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFirstPID(t *testing.T) {
	tests := []struct {
		out     string
		want    int
		wantErr bool
	}{
		{"1234\n", 1234, false},
		{"\n42\n43\n", 42, false},
		{"", -1, true},
		{"abc\n", -1, true},
	}
	for _, tt := range tests {
		got, err := firstPID(tt.out)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("firstPID(%q) = %d, %v", tt.out, got, err)
		}
	}
}

func TestUpdateWritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lyrics")
	c := NewController(Config{Path: path})

	if err := c.Update("  hello world "); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "hello world\n" {
		t.Fatalf("content = %q, %v", got, err)
	}

	// 相同内容不再写入
	os.Remove(path)
	if err := c.Update("hello world"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("duplicate line should be skipped")
	}
}

func TestRefreshPID(t *testing.T) {
	pid := 77
	c := NewController(Config{Signal: DefaultSignal, Find: func(ctx context.Context, name string) (int, error) {
		if name != DefaultProcess {
			t.Errorf("name = %q", name)
		}
		if pid < 0 {
			return -1, errors.New("not found")
		}
		return pid, nil
	}})

	c.refreshPID(context.Background())
	if c.PID() != 77 {
		t.Errorf("PID = %d", c.PID())
	}
	pid = -1
	c.refreshPID(context.Background())
	if c.PID() != -1 {
		t.Errorf("PID = %d after loss", c.PID())
	}
	// 没有进程时不发信号
	if err := c.Update("line"); err != nil {
		t.Errorf("Update without bar: %v", err)
	}
}
