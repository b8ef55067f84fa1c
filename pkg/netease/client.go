package netease

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/lrc"
	"lyrics-panel/pkg/music"
)

const defaultBaseURL = "https://music.163.com"

var (
	logger  = log.With().Str("component", "netease").Logger()
	lyricRe = regexp.MustCompile(`\[(\d{2}:\d{2}\.\d{2,3})\](.*)`)
)

// SearchResponse 网易云搜索API响应
type SearchResponse struct {
	Result struct {
		Songs []struct {
			ID       int    `json:"id"`
			Name     string `json:"name"`
			Duration int64  `json:"duration"` // 毫秒
			Artists  []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// LyricResponse 网易云歌词API响应
type LyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	cookie         string
	withTranslated bool // 是否合并官方翻译
	maxRetries     int
	requestTimeout time.Duration
}

// NewClient 创建新的网易云音乐客户端
func NewClient(cookie string, withTranslated bool, timeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        defaultBaseURL,
		cookie:         cookie,
		withTranslated: withTranslated,
		maxRetries:     3,
		requestTimeout: timeout,
	}
}

// Name 获取提供商名称
func (c *Client) Name() string {
	return "NetEase Cloud Music"
}

// Fetch 搜索歌曲并获取歌词
func (c *Client) Fetch(ctx context.Context, q music.Query, want music.Kind) (*music.Result, error) {
	songID, err := c.SearchSong(ctx, q.Title, q.Artist)
	if err != nil {
		return nil, err
	}
	text, err := c.GetLyrics(ctx, songID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty lyric for song %s", music.ErrNotFound, songID)
	}
	if want == music.KindPlain {
		return &music.Result{Text: lrc.PlainFromSynced(text), Kind: music.KindPlain, Source: c.Name()}, nil
	}
	return &music.Result{Text: text, Kind: music.KindSynced, Source: c.Name()}, nil
}

// SearchSong 搜索歌曲，返回歌曲ID
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	searchURL := fmt.Sprintf("%s/api/search/get/web?csrf_token=hlpretag&hlposttag=&s=%s&type=1&limit=100", c.baseURL, url.QueryEscape(title))
	logger.Info().Str("url", searchURL).Msg("Searching for song")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("failed to send search request: %w", err)
	}
	defer resp.Body.Close()

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return "", fmt.Errorf("failed to decode search response: %w", err)
	}

	if len(searchResp.Result.Songs) == 0 {
		return "", fmt.Errorf("%w: no songs found for '%s'", music.ErrNotFound, title)
	}

	songID := findBestMatch(searchResp, artist, title)
	if songID == 0 {
		return "", fmt.Errorf("%w: no matching song for '%s' by '%s'", music.ErrNotFound, title, artist)
	}
	return strconv.Itoa(songID), nil
}

// GetLyrics 根据歌曲ID获取歌词
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%s&lv=-1&kv=-1&tv=-1", c.baseURL, songID)
	logger.Info().Str("url", lyricURL).Msg("Fetching lyrics")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lyricURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create lyric request: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("failed to send lyric request: %w", err)
	}
	defer resp.Body.Close()

	var lyricResp LyricResponse
	if err := json.NewDecoder(resp.Body).Decode(&lyricResp); err != nil {
		return "", fmt.Errorf("failed to decode lyric response: %w", err)
	}

	if c.withTranslated && lyricResp.Tlyric.Lyric != "" {
		return combineLyrics(lyricResp.Lrc.Lyric, lyricResp.Tlyric.Lyric), nil
	}
	return lyricResp.Lrc.Lyric, nil
}

// doRequestWithRetry 发送请求，失败或非200时重试
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}

		ctx, cancel := req.Context(), context.CancelFunc(func() {})
		if c.requestTimeout > 0 {
			ctx, cancel = context.WithTimeout(req.Context(), c.requestTimeout)
		}
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			cancel()
			lastErr = err
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Request failed")
			if req.Context().Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}
		resp.Body.Close()
		cancel()
		lastErr = fmt.Errorf("request failed with status %d", resp.StatusCode)
		logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Request returned non-200 status")
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}

// findBestMatch 找到最佳匹配的歌曲
func findBestMatch(resp SearchResponse, targetArtist, targetTitle string) int {
	for _, song := range resp.Result.Songs {
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}
		// 歌手可能有多个，只要一个满足就算
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				logger.Info().Str("song", song.Name).Int("id", song.ID).Msg("Found matching song")
				return song.ID
			}
		}
	}

	// 没有完全匹配时，返回第一个标题匹配的
	if len(resp.Result.Songs) > 0 && containsIgnoreCase(resp.Result.Songs[0].Name, targetTitle) {
		return resp.Result.Songs[0].ID
	}
	return 0
}

// combineLyrics 合并原文和翻译歌词，同一时间戳下原文在前
func combineLyrics(originalLyrics, translatedLyrics string) string {
	originalLines := parseLyrics(originalLyrics)
	translatedLines := parseLyrics(translatedLyrics)

	var timestamps []string
	for t := range originalLines {
		timestamps = append(timestamps, t)
	}
	sort.Strings(timestamps)

	var combined strings.Builder
	for _, t := range timestamps {
		combined.WriteString(fmt.Sprintf("[%s]%s\n", t, originalLines[t]))
		if translated, ok := translatedLines[t]; ok {
			combined.WriteString(fmt.Sprintf("[%s]%s\n", t, translated))
		}
	}
	return strings.TrimSpace(combined.String())
}

// parseLyrics 解析歌词，提取时间戳和歌词内容
func parseLyrics(lyricText string) map[string]string {
	lines := make(map[string]string)
	for _, match := range lyricRe.FindAllStringSubmatch(lyricText, -1) {
		text := strings.TrimSpace(match[2])
		if text != "" {
			lines[match[1]] = text
		}
	}
	return lines
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase 忽略大小写和空格的双向包含检查
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
