package kugou

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/lrc"
	"lyrics-panel/pkg/music"
)

const (
	defaultLyricsURL = "https://krcs.kugou.com"
	defaultSongURL   = "https://mobileservice.kugou.com"
	defaultDownload  = "https://lyrics.kugou.com"
	// durationTolerance 候选歌曲时长允许的误差
	durationTolerance = 8 * time.Second
)

var (
	logger = log.With().Str("component", "kugou").Logger()

	featRe     = regexp.MustCompile(`(?i)\s*[(\[（【]?\s*(feat\.?|ft\.)\s[^)\]）】]*[)\]）】]?`)
	bracketRe  = regexp.MustCompile(`\s*[(\[（【][^)\]）】]*[)\]）】]`)
	topicRe    = regexp.MustCompile(`(?i)\s*-\s*topic$`)
	creditLine = regexp.MustCompile(`^\[\d{2}:\d{2}(?:\.\d{1,3})?\]\s*(作词|作曲|编曲|制作人|Lyrics by|Composed by)\s*[:：]`)
)

// Client 酷狗音乐歌词客户端
type Client struct {
	httpClient  *http.Client
	lyricsURL   string
	songURL     string
	downloadURL string
}

// SearchLyricsResponse 歌词候选搜索响应
type SearchLyricsResponse struct {
	Status     int `json:"status"`
	Candidates []struct {
		ID        string `json:"id"`
		AccessKey string `json:"accesskey"`
		Duration  int64  `json:"duration"` // 毫秒
		Song      string `json:"song"`
		Singer    string `json:"singer"`
	} `json:"candidates"`
}

// SearchSongResponse 歌曲搜索响应
type SearchSongResponse struct {
	Status int `json:"status"`
	Data   struct {
		Info []struct {
			Duration int64  `json:"duration"` // 秒
			Hash     string `json:"hash"`
			SongName string `json:"songname"`
		} `json:"info"`
	} `json:"data"`
}

// DownloadResponse 歌词下载响应，content 为 base64
type DownloadResponse struct {
	Status  int    `json:"status"`
	Charset string `json:"charset"`
	Content string `json:"content"`
	Fmt     string `json:"fmt"`
}

// NewClient 创建新的酷狗客户端
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		lyricsURL:   defaultLyricsURL,
		songURL:     defaultSongURL,
		downloadURL: defaultDownload,
	}
}

// WithBaseURL points every endpoint at one server, for tests.
func (c *Client) WithBaseURL(u string) *Client {
	u = strings.TrimRight(u, "/")
	c.lyricsURL, c.songURL, c.downloadURL = u, u, u
	return c
}

// Name 获取提供商名称
func (c *Client) Name() string {
	return "KuGou.com"
}

// Fetch 获取同步歌词；请求纯文本时去掉时间标签
func (c *Client) Fetch(ctx context.Context, q music.Query, want music.Kind) (*music.Result, error) {
	keyword := Keyword(q.Artist, q.Title)

	candidates, err := c.searchLyrics(ctx, url.Values{"keyword": {keyword}}, q.Duration)
	if err != nil {
		return nil, err
	}

	// 关键字没搜到时，先搜歌曲再按 hash 搜歌词
	if len(candidates.Candidates) == 0 {
		hash, err := c.searchSongHash(ctx, keyword, q.Duration)
		if err != nil {
			return nil, err
		}
		candidates, err = c.searchLyrics(ctx, url.Values{"hash": {hash}}, q.Duration)
		if err != nil {
			return nil, err
		}
	}
	if len(candidates.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates for '%s'", music.ErrNotFound, keyword)
	}

	cand := candidates.Candidates[0]
	for _, cc := range candidates.Candidates {
		if q.Duration > 0 && absDuration(time.Duration(cc.Duration)*time.Millisecond-q.Duration) <= durationTolerance {
			cand = cc
			break
		}
	}

	text, err := c.download(ctx, cand.ID, cand.AccessKey)
	if err != nil {
		return nil, err
	}
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty lyrics for '%s'", music.ErrNotFound, keyword)
	}

	if want == music.KindPlain {
		return &music.Result{Text: lrc.PlainFromSynced(text), Kind: music.KindPlain, Source: c.Name()}, nil
	}
	return &music.Result{Text: text, Kind: music.KindSynced, Source: c.Name()}, nil
}

func (c *Client) searchLyrics(ctx context.Context, params url.Values, duration time.Duration) (*SearchLyricsResponse, error) {
	params.Set("ver", "1")
	params.Set("man", "yes")
	params.Set("client", "mobi")
	if duration > 0 {
		params.Set("duration", fmt.Sprint(duration.Milliseconds()))
	}
	var resp SearchLyricsResponse
	if err := c.getJSON(ctx, c.lyricsURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to search lyrics: %w", err)
	}
	return &resp, nil
}

func (c *Client) searchSongHash(ctx context.Context, keyword string, duration time.Duration) (string, error) {
	params := url.Values{
		"version":  {"9108"},
		"plat":     {"0"},
		"pagesize": {"8"},
		"showtype": {"0"},
		"keyword":  {keyword},
	}
	var resp SearchSongResponse
	if err := c.getJSON(ctx, c.songURL+"/api/v3/search/song?"+params.Encode(), &resp); err != nil {
		return "", fmt.Errorf("failed to search song: %w", err)
	}

	for _, info := range resp.Data.Info {
		if duration <= 0 || absDuration(time.Duration(info.Duration)*time.Second-duration) <= durationTolerance {
			logger.Info().Str("song", info.SongName).Str("hash", info.Hash).Msg("Matched song by duration")
			return info.Hash, nil
		}
	}
	return "", fmt.Errorf("%w: no song matching '%s'", music.ErrNotFound, keyword)
}

func (c *Client) download(ctx context.Context, id, accessKey string) (string, error) {
	params := url.Values{
		"ver":       {"1"},
		"man":       {"yes"},
		"client":    {"pc"},
		"fmt":       {"lrc"},
		"charset":   {"utf8"},
		"id":        {id},
		"accesskey": {accessKey},
	}
	var resp DownloadResponse
	if err := c.getJSON(ctx, c.downloadURL+"/download?"+params.Encode(), &resp); err != nil {
		return "", fmt.Errorf("failed to download lyrics: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		return "", fmt.Errorf("failed to decode lyrics content: %w", err)
	}
	return string(data), nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Keyword 生成搜索关键字 "歌手 - 标题"，去掉 feat 与括号注释
func Keyword(artist, title string) string {
	title = bracketRe.ReplaceAllString(featRe.ReplaceAllString(title, ""), "")
	artist = topicRe.ReplaceAllString(featRe.ReplaceAllString(artist, ""), "")
	artist = strings.NewReplacer("、", ", ", " & ", ", ").Replace(strings.TrimSpace(artist))
	title = strings.TrimSpace(title)
	if artist == "" {
		return title
	}
	return artist + " - " + title
}

// Normalize 去掉 LRC 头部标签和制作人员信息行
func Normalize(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = lrc.StripMetadata(text)

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if creditLine.MatchString(strings.TrimSpace(line)) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
