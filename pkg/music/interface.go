package music

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound 提供商没有找到歌词
	ErrNotFound = errors.New("lyrics not found")
	// ErrAllFailed 所有提供商都失败
	ErrAllFailed = errors.New("all providers failed")
)

// Kind 歌词类型
type Kind int

const (
	KindSynced Kind = iota // 同步歌词（LRC）
	KindPlain              // 纯文本歌词
)

func (k Kind) String() string {
	if k == KindSynced {
		return "synced"
	}
	return "plain"
}

// Query 歌词查询参数
type Query struct {
	MediaID  string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Result 提供商返回的歌词
type Result struct {
	Text   string
	Kind   Kind // 实际返回的类型，可能与请求的类型不同
	Source string
}

// Source 歌词提供商通用接口
type Source interface {
	// Name 提供商名称，用于提示信息
	Name() string

	// Fetch 获取歌词，want 为期望的歌词类型
	Fetch(ctx context.Context, q Query, want Kind) (*Result, error)
}

// Searcher 支持列出候选歌曲的提供商
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Track, error)
}

// Track 搜索结果中的一首歌，供用户手动选择
type Track struct {
	ID           int           `json:"id"`
	TrackName    string        `json:"track_name"`
	ArtistName   string        `json:"artist_name"`
	AlbumName    string        `json:"album_name"`
	Duration     time.Duration `json:"duration"`
	SyncedLyrics *string       `json:"synced_lyrics,omitempty"`
	PlainLyrics  *string       `json:"plain_lyrics,omitempty"`
}

// Label is the picker entry text.
func (t Track) Label() string {
	return fmt.Sprintf("%s - %s", t.ArtistName, t.TrackName)
}

// Detail is the picker secondary text with duration and id.
func (t Track) Detail() string {
	secs := int(t.Duration / time.Second)
	return fmt.Sprintf("(Duration %d:%02d ID %d)", secs/60, secs%60, t.ID)
}
