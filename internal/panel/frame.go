package panel

import (
	"time"

	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/romanize"
)

// Line 面板中的一行
type Line struct {
	Time                 time.Duration `json:"time"`
	Text                 string        `json:"text"`
	Translation          string        `json:"translation,omitempty"`
	Romanized            string        `json:"romanized,omitempty"`
	RomanizedTranslation string        `json:"romanized_translation,omitempty"`
}

// Frame is a snapshot of everything the panel displays.
type Frame struct {
	SongID string `json:"song_id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`

	Synced     bool `json:"synced"`
	Loading    bool `json:"loading"`
	ShowError  bool `json:"show_error"`
	InvalidLRC bool `json:"invalid_lrc"`
	Fallback   bool `json:"fallback"` // 同步视图下显示纯文本歌词

	// Plain is the raw text shown in the plain view; Lines carries the same
	// text split per line.
	Plain  string `json:"plain,omitempty"`
	Lines  []Line `json:"lines"`
	Active int    `json:"active"` // 当前句下标，纯文本视图为 -1

	Translate      bool          `json:"translate"`
	TargetLanguage string        `json:"target_language"`
	Romanization   romanize.Mode `json:"romanization"`
	ShowSecondLine bool          `json:"show_second_line"`

	Tracks []music.Track `json:"tracks,omitempty"`
}

// Text returns the active line text, or "" outside the synced view.
func (f Frame) Text() string {
	if f.Active < 0 || f.Active >= len(f.Lines) {
		return ""
	}
	return f.Lines[f.Active].Text
}
