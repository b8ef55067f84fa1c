package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoPlayer 没有正在运行的播放器
var ErrNoPlayer = errors.New("no player running")

// Metadata 当前播放内容
type Metadata struct {
	MediaID string
	Title   string
	Artist  string
	Album   string
	Length  time.Duration
	URL     string
}

// Player 播放服务，位置和时长未知时返回 0
type Player interface {
	Metadata(ctx context.Context) (Metadata, error)
	Position(ctx context.Context) (time.Duration, error)
	Duration(ctx context.Context) (time.Duration, error)
}

const metadataFormat = "{{mpris:trackid}}\t{{xesam:title}}\t{{xesam:artist}}\t{{xesam:album}}\t{{mpris:length}}\t{{xesam:url}}"

// Playerctl 通过 playerctl 命令读取 MPRIS 播放器
type Playerctl struct {
	player string // 为空时由 playerctl 自行选择
	run    func(ctx context.Context, args ...string) ([]byte, error)
}

func NewPlayerctl(player string) *Playerctl {
	return &Playerctl{player: player, run: runPlayerctl}
}

func runPlayerctl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "playerctl", args...).Output()
}

func (p *Playerctl) exec(ctx context.Context, args ...string) (string, error) {
	if p.player != "" {
		args = append([]string{"--player=" + p.player}, args...)
	}
	out, err := p.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoPlayer, err)
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}

func (p *Playerctl) Metadata(ctx context.Context) (Metadata, error) {
	out, err := p.exec(ctx, "metadata", "--format", metadataFormat)
	if err != nil {
		return Metadata{}, err
	}
	fields := strings.Split(out, "\t")
	for len(fields) < 6 {
		fields = append(fields, "")
	}

	md := Metadata{
		MediaID: strings.TrimSpace(fields[0]),
		Title:   strings.TrimSpace(fields[1]),
		Artist:  strings.TrimSpace(fields[2]),
		Album:   strings.TrimSpace(fields[3]),
		URL:     strings.TrimSpace(fields[5]),
	}
	if us, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64); err == nil {
		md.Length = time.Duration(us) * time.Microsecond
	}
	if id := youtubeID(md.URL); id != "" {
		md.MediaID = id
	}
	if md.MediaID == "" {
		md.MediaID = md.Artist + " - " + md.Title
	}
	if md.Title == "" {
		return Metadata{}, fmt.Errorf("%w: empty title", ErrNoPlayer)
	}
	return md, nil
}

func (p *Playerctl) Position(ctx context.Context) (time.Duration, error) {
	out, err := p.exec(ctx, "position")
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || seconds < 0 {
		return 0, nil
	}
	return time.Duration(math.Round(seconds * float64(time.Second))), nil
}

func (p *Playerctl) Duration(ctx context.Context) (time.Duration, error) {
	out, err := p.exec(ctx, "metadata", "mpris:length")
	if err != nil {
		return 0, err
	}
	us, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, nil
	}
	return time.Duration(us) * time.Microsecond, nil
}

// youtubeID 从 YouTube / YouTube Music 链接中取视频ID
func youtubeID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com", "music.youtube.com", "m.youtube.com":
		return u.Query().Get("v")
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	}
	return ""
}
