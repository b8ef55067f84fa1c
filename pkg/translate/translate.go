// Package translate picks a translation backend for a block of lyrics and
// degrades to an empty result when every backend fails.
package translate

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	// AutoLanguage lets the backend detect the source language.
	AutoLanguage = "auto"
	// MaxDeepLChars 超过该长度的文本不走 DeepL
	MaxDeepLChars = 1500
)

var logger = log.With().Str("component", "translate").Logger()

// deeplSourceLanguages DeepL 支持的源语言
var deeplSourceLanguages = map[string]struct{}{
	"AR": {}, "BG": {}, "CS": {}, "DA": {}, "DE": {}, "EL": {}, "EN": {}, "ES": {}, "ET": {}, "FI": {}, "FR": {},
	"HU": {}, "ID": {}, "IT": {}, "JA": {}, "KO": {}, "LT": {}, "LV": {}, "NB": {}, "NL": {}, "PL": {}, "PT": {},
	"RO": {}, "RU": {}, "SK": {}, "SL": {}, "SV": {}, "TR": {}, "UK": {}, "ZH": {},
}

// Translator 翻译后端
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Detector 语种识别
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// Cache 与 music.Cache 相同，pkg/redis.Client 实现了它
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Pipeline 翻译流程：识别语种，选择 DeepL 或 LibreTranslate，失败时依次尝试回退后端
type Pipeline struct {
	deepl     Translator
	libre     Translator
	fallbacks []Translator
	detector  Detector
	cache     Cache
	cacheTTL  time.Duration
}

type Option func(*Pipeline)

// WithDeepL replaces the DeepL backend.
func WithDeepL(t Translator) Option {
	return func(p *Pipeline) { p.deepl = t }
}

// WithLibreTranslate replaces the LibreTranslate backend.
func WithLibreTranslate(t Translator) Option {
	return func(p *Pipeline) { p.libre = t }
}

// WithFallbacks appends backends tried after the primary one fails.
func WithFallbacks(ts ...Translator) Option {
	return func(p *Pipeline) {
		for _, t := range ts {
			if t != nil {
				p.fallbacks = append(p.fallbacks, t)
			}
		}
	}
}

// WithDetector sets the language detector; without one the source is "auto".
func WithDetector(d Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithCache keeps successful translations for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(p *Pipeline) { p.cache, p.cacheTTL = c, ttl }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		deepl: NewDeepL(""),
		libre: NewLibreTranslate("", ""),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DetectLanguage returns the detected source language, or "auto".
func (p *Pipeline) DetectLanguage(ctx context.Context, text string) string {
	if p.detector == nil {
		return AutoLanguage
	}
	lang, err := p.detector.DetectLanguage(ctx, text)
	if err != nil || lang == "" {
		logger.Warn().Err(err).Msg("Language detection failed, using auto")
		return AutoLanguage
	}
	return lang
}

// Choose 返回首选后端
func (p *Pipeline) Choose(source, text string) Translator {
	if _, ok := deeplSourceLanguages[strings.ToUpper(source)]; ok && utf8.RuneCountInString(text) <= MaxDeepLChars {
		return p.deepl
	}
	return p.libre
}

// Translate translates text into target. It never fails: every backend
// error is logged and the result is "".
func (p *Pipeline) Translate(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	key := cacheKey(text, target)
	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, key); err == nil && cached != "" {
			logger.Debug().Str("key", key).Msg("Translation cache HIT")
			return cached
		}
	}

	source := p.DetectLanguage(ctx, text)
	primary := p.Choose(source, text)

	backends := append([]Translator{primary}, p.fallbacks...)
	for _, backend := range backends {
		if backend == nil {
			continue
		}
		if ctx.Err() != nil {
			return ""
		}
		out, err := backend.Translate(ctx, text, source, target)
		if err == nil && strings.TrimSpace(out) != "" {
			logger.Info().
				Str("backend", backend.Name()).
				Str("source", source).
				Str("target", target).
				Msg("Translated lyrics")
			if p.cache != nil {
				if err := p.cache.SetWithExpiration(ctx, key, out, p.cacheTTL); err != nil {
					logger.Warn().Err(err).Msg("Translation cache write failed")
				}
			}
			return out
		}
		if err == nil {
			err = fmt.Errorf("empty translation")
		}
		logger.Error().Err(err).Str("backend", backend.Name()).Msg("Translation failed")
	}
	return ""
}

// TranslateLines translates lines in one request and splits the result back.
// Lines the backend dropped come back empty.
func (p *Pipeline) TranslateLines(ctx context.Context, lines []string, target string) []string {
	out := make([]string, len(lines))
	translated := p.Translate(ctx, strings.Join(lines, "\n"), target)
	if translated == "" {
		return out
	}
	parts := strings.Split(strings.ReplaceAll(translated, "\r\n", "\n"), "\n")
	if len(parts) != len(lines) {
		logger.Warn().Int("want", len(lines)).Int("got", len(parts)).Msg("Translated line count mismatch")
	}
	for i := range out {
		if i < len(parts) {
			out[i] = strings.TrimSpace(parts[i])
		}
	}
	return out
}

func cacheKey(text, target string) string {
	sum := sha1.Sum([]byte(text))
	return "translate:" + strings.ToLower(target) + ":" + hex.EncodeToString(sum[:])
}
