package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lyrics-panel/pkg/ai"
)

// SongInfo 模型从媒体标题中提取的歌曲信息
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式。 媒体标题是：%s`, title)
}

// Identifier fills in title and artist for media that only carries a
// free-form title, such as browser videos.
type Identifier struct {
	client  ai.AiInterface
	retries int
}

func NewIdentifier(client ai.AiInterface) *Identifier {
	return &Identifier{client: client, retries: 3}
}

// Identify returns song with title and artist replaced by the model's
// reading. Songs that already have an artist are returned unchanged.
func (id *Identifier) Identify(ctx context.Context, song Song) (Song, error) {
	if id == nil || id.client == nil || song.Artist != "" {
		return song, nil
	}

	var raw string
	var err error
	for i := 0; i < id.retries; i++ {
		raw, err = id.client.HandleText(ctx, formatQuerySong(song.Title))
		if err == nil {
			break
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("Failed to query model for song info")
		select {
		case <-ctx.Done():
			return song, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		return song, fmt.Errorf("failed to query model after %d attempts: %w", id.retries, err)
	}

	var info SongInfo
	if err := json.Unmarshal([]byte(ai.Trim(raw)), &info); err != nil {
		return song, fmt.Errorf("failed to parse model response: %w", err)
	}
	if !info.IsSong || info.Title == "" {
		return song, nil
	}

	logger.Info().Str("title", info.Title).Str("artist", info.Artist).Msg("Model identified song")
	song.Title, song.Artist = info.Title, info.Artist
	return song, nil
}
