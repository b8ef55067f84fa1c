package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultLibreURL = "https://libretranslate.com"

// LibreTranslate LibreTranslate 实例客户端
type LibreTranslate struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewLibreTranslate(baseURL, apiKey string) *LibreTranslate {
	if baseURL == "" {
		baseURL = defaultLibreURL
	}
	return &LibreTranslate{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (l *LibreTranslate) Name() string {
	return "LibreTranslate"
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (l *LibreTranslate) Translate(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(libreRequest{Q: text, Source: source, Target: target, Format: "text", APIKey: l.apiKey})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("libretranslate request failed: %w", err)
	}
	defer resp.Body.Close()

	var out libreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode libretranslate response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("libretranslate returned status %d: %s", resp.StatusCode, out.Error)
	}
	return out.TranslatedText, nil
}
