// Package innertube reads the lyrics tab YouTube Music attaches to a video's
// metadata. It only ever returns plain text.
package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/music"
)

const (
	defaultBaseURL = "https://music.youtube.com/youtubei/v1"
	clientName     = "WEB_REMIX"
	clientVersion  = "1.20240918.01.00"
	lyricsPrefix   = "MPLY"
)

var logger = log.With().Str("component", "innertube").Logger()

// Client YouTube Music innertube 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}, baseURL: defaultBaseURL}
}

// WithBaseURL overrides the API root, for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

func (c *Client) Name() string {
	return "YouTube Music"
}

type clientContext struct {
	Client struct {
		ClientName    string `json:"clientName"`
		ClientVersion string `json:"clientVersion"`
		HL            string `json:"hl,omitempty"`
	} `json:"client"`
}

type nextBody struct {
	Context clientContext `json:"context"`
	VideoID string        `json:"videoId"`
}

type browseBody struct {
	Context  clientContext `json:"context"`
	BrowseID string        `json:"browseId"`
}

type nextResponse struct {
	Contents struct {
		SingleColumnMusicWatchNextResultsRenderer struct {
			TabbedRenderer struct {
				WatchNextTabbedResultsRenderer struct {
					Tabs []struct {
						TabRenderer struct {
							Title    string `json:"title"`
							Endpoint *struct {
								BrowseEndpoint struct {
									BrowseID string `json:"browseId"`
								} `json:"browseEndpoint"`
							} `json:"endpoint"`
						} `json:"tabRenderer"`
					} `json:"tabs"`
				} `json:"watchNextTabbedResultsRenderer"`
			} `json:"tabbedRenderer"`
		} `json:"singleColumnMusicWatchNextResultsRenderer"`
	} `json:"contents"`
}

type browseResponse struct {
	Contents struct {
		SectionListRenderer struct {
			Contents []struct {
				MusicDescriptionShelfRenderer *struct {
					Description runs `json:"description"`
					Footer      runs `json:"footer"`
				} `json:"musicDescriptionShelfRenderer"`
			} `json:"contents"`
		} `json:"sectionListRenderer"`
	} `json:"contents"`
}

type runs struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (r runs) String() string {
	var b strings.Builder
	for _, run := range r.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

// Fetch 通过视频ID获取歌词页的纯文本歌词，忽略 want
func (c *Client) Fetch(ctx context.Context, q music.Query, want music.Kind) (*music.Result, error) {
	if q.MediaID == "" {
		return nil, fmt.Errorf("%w: media id required", music.ErrNotFound)
	}

	browseID, err := c.lyricsBrowseID(ctx, q.MediaID)
	if err != nil {
		return nil, err
	}

	var resp browseResponse
	if err := c.post(ctx, "/browse", browseBody{Context: newContext(), BrowseID: browseID}, &resp); err != nil {
		return nil, fmt.Errorf("failed to browse lyrics: %w", err)
	}
	for _, content := range resp.Contents.SectionListRenderer.Contents {
		if shelf := content.MusicDescriptionShelfRenderer; shelf != nil {
			text := strings.TrimSpace(shelf.Description.String())
			if text != "" {
				logger.Info().Str("media_id", q.MediaID).Str("footer", shelf.Footer.String()).Msg("Found lyrics")
				return &music.Result{Text: text, Kind: music.KindPlain, Source: c.Name()}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: empty lyrics page for %s", music.ErrNotFound, q.MediaID)
}

func (c *Client) lyricsBrowseID(ctx context.Context, videoID string) (string, error) {
	var resp nextResponse
	if err := c.post(ctx, "/next", nextBody{Context: newContext(), VideoID: videoID}, &resp); err != nil {
		return "", fmt.Errorf("failed to load watch page: %w", err)
	}

	tabs := resp.Contents.SingleColumnMusicWatchNextResultsRenderer.TabbedRenderer.WatchNextTabbedResultsRenderer.Tabs
	for _, tab := range tabs {
		if ep := tab.TabRenderer.Endpoint; ep != nil && strings.HasPrefix(ep.BrowseEndpoint.BrowseID, lyricsPrefix) {
			return ep.BrowseEndpoint.BrowseID, nil
		}
	}
	return "", fmt.Errorf("%w: no lyrics tab for %s", music.ErrNotFound, videoID)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path+"?prettyPrint=false", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Origin", "https://music.youtube.com")

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

func newContext() clientContext {
	var cc clientContext
	cc.Client.ClientName = clientName
	cc.Client.ClientVersion = clientVersion
	cc.Client.HL = "en"
	return cc
}
