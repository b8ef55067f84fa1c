package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultDeepLURL = "https://www.deepl.com/en/translator"

// DeepL reads the translator web page; no API key is involved.
type DeepL struct {
	httpClient *http.Client
	baseURL    string
}

func NewDeepL(baseURL string) *DeepL {
	if baseURL == "" {
		baseURL = defaultDeepLURL
	}
	return &DeepL{httpClient: &http.Client{Timeout: 15 * time.Second}, baseURL: baseURL}
}

func (d *DeepL) Name() string {
	return "DeepL"
}

func (d *DeepL) Translate(ctx context.Context, text, source, target string) (string, error) {
	pageURL := fmt.Sprintf("%s#%s/%s/%s%%0A", d.baseURL, source, target, url.QueryEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepl request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepl returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse deepl page: %w", err)
	}
	sel := doc.Find("textarea[dl-test=translator-target-input]").First()
	if sel.Length() == 0 {
		return "", errors.New("deepl page has no target textarea")
	}
	return strings.TrimSpace(sel.Text()), nil
}
