package panel

import (
	"context"
	"time"

	"lyrics-panel/internal/lyrics"
)

const (
	// DefaultPollInterval 同步歌词轮询间隔
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultLead 播放位置提前量
	DefaultLead = 50 * time.Millisecond
)

// ScrollEvent asks the client to bring a list item into view. Index counts
// the list header, so sentence i is item i+1.
type ScrollEvent struct {
	SongID string `json:"song_id"`
	Index  int    `json:"index"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

// Layout 面板布局，影响滚动居中偏移
type Layout struct {
	ThumbnailPx   int  `json:"thumbnail_px"`
	ShowThumbnail bool `json:"show_thumbnail"`
	Landscape     bool `json:"landscape"`
	HasTrailing   bool `json:"has_trailing"`
}

// CenterOffset returns the scroll offset that keeps the active line near the
// middle of the visible area.
func CenterOffset(thumbnailPx int, showThumbnail, landscape, hasTrailing bool) int {
	var d int
	if !showThumbnail && !landscape {
		d = 2
		if hasTrailing {
			d = 1
		}
	} else {
		d = 3
		if hasTrailing {
			d = 2
		}
	}
	return -(thumbnailPx / d)
}

// Offset is CenterOffset for the layout.
func (l Layout) Offset() int {
	return CenterOffset(l.ThumbnailPx, l.ShowThumbnail, l.Landscape, l.HasTrailing)
}

// Syncer drives scroll events from a Synchronized clock while its context
// lives.
type Syncer struct {
	songID   string
	sync     *lyrics.Synchronized
	interval time.Duration
	offset   int
	emit     func(ScrollEvent)
}

func NewSyncer(songID string, s *lyrics.Synchronized, interval time.Duration, offset int, emit func(ScrollEvent)) *Syncer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Syncer{songID: songID, sync: s, interval: interval, offset: offset, emit: emit}
}

// Run scrolls once immediately and then on every active sentence change
// until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	s.scroll()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.sync.Update() {
				s.scroll()
			}
		}
	}
}

func (s *Syncer) scroll() {
	idx := s.sync.Index()
	text := ""
	if idx >= 0 && idx < len(s.sync.Sentences) {
		text = s.sync.Sentences[idx].Text
	}
	s.emit(ScrollEvent{SongID: s.songID, Index: idx + 1, Offset: s.offset, Text: text})
}
