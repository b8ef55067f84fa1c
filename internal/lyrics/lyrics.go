package lyrics

import (
	"strings"
)

// explicitPrefix marks explicit tracks in media titles.
const explicitPrefix = "e:"

// Lyrics 歌词记录，每首歌最多一条
type Lyrics struct {
	SongID string  `json:"song_id"`
	Fixed  *string `json:"fixed,omitempty"`  // 纯文本歌词
	Synced *string `json:"synced,omitempty"` // LRC 格式的同步歌词
}

// Text returns the variant shown by the panel.
func (l *Lyrics) Text(synced bool) *string {
	if l == nil {
		return nil
	}
	if synced {
		return l.Synced
	}
	return l.Fixed
}

// Merge returns a copy of l with the given variant replaced.
func (l *Lyrics) Merge(songID, text string, synced bool) Lyrics {
	out := Lyrics{SongID: songID}
	if l != nil {
		out.Fixed = l.Fixed
		out.Synced = l.Synced
	}
	if synced {
		out.Synced = &text
	} else {
		out.Fixed = &text
	}
	return out
}

// Song 当前播放歌曲信息
type Song struct {
	MediaID string
	Title   string
	Artist  string
	Album   string
}

// CleanTitle strips the explicit marker some catalogs prepend to titles.
func CleanTitle(title string) string {
	t := strings.TrimSpace(title)
	if len(t) >= len(explicitPrefix) && strings.EqualFold(t[:len(explicitPrefix)], explicitPrefix) {
		t = strings.TrimSpace(t[len(explicitPrefix):])
	}
	return t
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
