package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/lrc"
	"lyrics-panel/pkg/music"
)

const (
	// DefaultBaseURL LRCLib API 地址
	DefaultBaseURL = "https://lrclib.net/api"
	// maxDurationDiff 时长匹配允许的误差
	maxDurationDiff = 3 * time.Second
)

var logger = log.With().Str("component", "lrclib").Logger()

// Client LRCLib客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	requestTimeout time.Duration
	maxRetries     int
	retryBackoff   time.Duration
}

// Response LRCLib API响应结构
type Response struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  *string `json:"plainLyrics"`
	SyncedLyrics *string `json:"syncedLyrics"`
}

// Option 客户端选项
type Option func(*Client)

// WithBaseURL overrides the API root, mostly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
		c.httpClient.Timeout = d
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.retryBackoff = backoff
	}
}

// NewClient 创建新的LRCLib客户端
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		baseURL:        DefaultBaseURL,
		requestTimeout: 5 * time.Second,
		maxRetries:     3,
		retryBackoff:   500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name 返回提供商名称
func (c *Client) Name() string {
	return "LrcLib.net"
}

// Fetch 获取歌词。请求同步歌词时只返回同步歌词；请求纯文本时优先纯文本，
// 没有则从同步歌词中提取。
func (c *Client) Fetch(ctx context.Context, q music.Query, want music.Kind) (*music.Result, error) {
	responses, err := c.search(ctx, q)
	if err != nil {
		return nil, err
	}

	var pool []Response
	for _, r := range responses {
		if want == music.KindSynced && nonEmpty(r.SyncedLyrics) {
			pool = append(pool, r)
		}
		if want == music.KindPlain && (nonEmpty(r.PlainLyrics) || nonEmpty(r.SyncedLyrics)) {
			pool = append(pool, r)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no %s lyrics for '%s - %s'", music.ErrNotFound, want, q.Title, q.Artist)
	}

	best := findBestMatch(pool, q.Title, q.Artist, q.Duration)
	logger.Info().
		Str("track", best.TrackName).
		Str("artist", best.ArtistName).
		Float64("duration", best.Duration).
		Dur("target", q.Duration).
		Str("kind", want.String()).
		Msg("Selected lyrics")

	if want == music.KindSynced {
		return &music.Result{Text: *best.SyncedLyrics, Kind: music.KindSynced, Source: c.Name()}, nil
	}
	if nonEmpty(best.PlainLyrics) {
		return &music.Result{Text: *best.PlainLyrics, Kind: music.KindPlain, Source: c.Name()}, nil
	}
	return &music.Result{Text: lrc.PlainFromSynced(*best.SyncedLyrics), Kind: music.KindPlain, Source: c.Name()}, nil
}

// Search 列出带同步歌词的候选歌曲，供用户选择
func (c *Client) Search(ctx context.Context, q music.Query) ([]music.Track, error) {
	responses, err := c.search(ctx, q)
	if err != nil {
		return nil, err
	}

	tracks := make([]music.Track, 0, len(responses))
	for _, r := range responses {
		if !nonEmpty(r.SyncedLyrics) {
			continue
		}
		tracks = append(tracks, music.Track{
			ID:           r.ID,
			TrackName:    r.TrackName,
			ArtistName:   r.ArtistName,
			AlbumName:    r.AlbumName,
			Duration:     time.Duration(r.Duration * float64(time.Second)),
			SyncedLyrics: r.SyncedLyrics,
			PlainLyrics:  r.PlainLyrics,
		})
	}
	return tracks, nil
}

func (c *Client) search(ctx context.Context, q music.Query) ([]Response, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.requestTimeout*time.Duration(c.maxRetries+1))
	defer cancel()

	// 构建查询参数，时长不作为参数，而是在结果中筛选
	params := url.Values{}
	params.Set("track_name", q.Title)
	if q.Artist != "" {
		params.Set("artist_name", q.Artist)
	}
	if q.Album != "" {
		params.Set("album_name", q.Album)
	}
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	resp, err := c.getWithRetry(timeoutCtx, searchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var responses []Response
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	logger.Info().Int("results", len(responses)).Str("title", q.Title).Str("artist", q.Artist).Msg("Search finished")
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w for '%s - %s'", music.ErrNotFound, q.Title, q.Artist)
	}
	return responses, nil
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Info().Int("attempt", attempt).Int("max_retries", c.maxRetries).Msg("Retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "lyrics-panel/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Request failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("Request returned non-200 status")
		// 404 不会因为重试而改变
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %v", music.ErrNotFound, lastErr)
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// findBestMatch 从搜索结果中找到最佳匹配：先按标题+歌手，再按标题，最后按时长
func findBestMatch(responses []Response, title, artist string, target time.Duration) *Response {
	var exact, titleOnly []*Response
	for i := range responses {
		r := &responses[i]
		switch {
		case containsIgnoreCase(r.TrackName, title) && containsIgnoreCase(r.ArtistName, artist):
			exact = append(exact, r)
		case containsIgnoreCase(r.TrackName, title):
			titleOnly = append(titleOnly, r)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = titleOnly
	}
	if len(pool) == 0 {
		for i := range responses {
			pool = append(pool, &responses[i])
		}
	}

	if target <= 0 {
		return pool[0]
	}

	best := pool[0]
	minDiff := durationDiff(best.Duration, target)
	for _, r := range pool {
		diff := durationDiff(r.Duration, target)
		if diff <= maxDurationDiff {
			return r
		}
		if diff < minDiff {
			minDiff = diff
			best = r
		}
	}
	logger.Info().Dur("diff", minDiff).Msg("Using closest duration match")
	return best
}

func durationDiff(seconds float64, target time.Duration) time.Duration {
	return time.Duration(math.Abs(seconds*float64(time.Second) - float64(target)))
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// containsIgnoreCase 忽略大小写检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
