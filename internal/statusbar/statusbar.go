// Package statusbar mirrors the active lyric line into a status file and
// asks i3blocks to redraw the block that prints it.
package statusbar

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/fileutil"
)

var logger = log.With().Str("component", "statusbar").Logger()

const (
	// DefaultSignal SIGRTMIN+21，对应 i3blocks 配置里的 signal=21
	DefaultSignal  = 55
	DefaultProcess = "i3blocks"
	refreshEvery   = 10 * time.Second
)

// FindPID 查找状态栏进程，找不到时返回 -1
type FindPID func(ctx context.Context, name string) (int, error)

// Config 状态栏参数
type Config struct {
	Path    string // 状态文件，为空时不写文件
	Process string
	Signal  int // 0 表示不发信号
	Find    FindPID
}

// Controller writes the status file and signals the bar process.
type Controller struct {
	cfg Config

	mu   sync.Mutex
	pid  int
	last string
}

func NewController(cfg Config) *Controller {
	if cfg.Process == "" {
		cfg.Process = DefaultProcess
	}
	if cfg.Find == nil {
		cfg.Find = Pgrep
	}
	return &Controller{cfg: cfg, pid: -1}
}

// Run refreshes the bar PID every 10 seconds until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	if c.cfg.Signal == 0 {
		return
	}
	c.refreshPID(ctx)

	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	logger.Info().Str("process", c.cfg.Process).Msg("Status bar controller started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Status bar controller stopped")
			return
		case <-ticker.C:
			c.refreshPID(ctx)
		}
	}
}

// PID returns the last known bar PID, or -1.
func (c *Controller) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

func (c *Controller) refreshPID(ctx context.Context) {
	pid, err := c.cfg.Find(ctx, c.cfg.Process)
	if err != nil {
		pid = -1
		logger.Debug().Err(err).Str("process", c.cfg.Process).Msg("Status bar process not found")
	}

	c.mu.Lock()
	old := c.pid
	c.pid = pid
	c.mu.Unlock()
	if old != pid {
		logger.Info().Int("old_pid", old).Int("pid", pid).Msg("Status bar PID updated")
	}
}

// Update writes line to the status file and signals the bar. Repeated lines
// are skipped.
func (c *Controller) Update(line string) error {
	line = strings.TrimSpace(line)

	c.mu.Lock()
	if line == c.last {
		c.mu.Unlock()
		return nil
	}
	c.last = line
	pid := c.pid
	c.mu.Unlock()

	if c.cfg.Path != "" {
		if err := fileutil.WriteFileAtomic(c.cfg.Path, []byte(line+"\n"), 0644); err != nil {
			return err
		}
	}
	if c.cfg.Signal == 0 || pid <= 0 {
		return nil
	}
	return signal(pid, c.cfg.Signal)
}

func signal(pid, sig int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.Signal(sig)); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", sig, pid, err)
	}
	return nil
}

// Pgrep finds the first PID whose command line matches name.
func Pgrep(ctx context.Context, name string) (int, error) {
	out, err := exec.CommandContext(ctx, "pgrep", "-f", name).Output()
	if err != nil {
		return -1, fmt.Errorf("pgrep %s: %w", name, err)
	}
	return firstPID(string(out))
}

func firstPID(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return -1, fmt.Errorf("failed to parse PID %q: %w", line, err)
		}
		return pid, nil
	}
	return -1, fmt.Errorf("process not found")
}
