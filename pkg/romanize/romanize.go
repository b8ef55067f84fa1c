// Package romanize renders non-Latin lyrics in Latin script.
package romanize

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/unidecode"
	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/ai"
)

var logger = log.With().Str("component", "romanize").Logger()

// Mode 罗马音显示模式
type Mode string

const (
	Off        Mode = "off"
	Original   Mode = "original"   // 只转换原文
	Translated Mode = "translated" // 只转换译文
	All        Mode = "all"
)

// ParseMode 解析模式，未知值返回 Off
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Off, Original, Translated, All:
		return m, nil
	case "":
		return Off, nil
	default:
		return Off, fmt.Errorf("unknown romanization mode %q", s)
	}
}

// Original reports whether the original text is romanized in this mode.
func (m Mode) Original() bool { return m == Original || m == All }

// Translated reports whether the translated text is romanized in this mode.
func (m Mode) Translated() bool { return m == Translated || m == All }

// Romanizer 把文本转为拉丁字母
type Romanizer interface {
	Romanize(ctx context.Context, text string) (string, error)
}

// Transliterator uses unidecode tables; fast but phonetically rough for
// kana and hangul.
type Transliterator struct{}

func (Transliterator) Romanize(ctx context.Context, text string) (string, error) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(unidecode.Unidecode(line))
	}
	return strings.Join(lines, "\n"), nil
}

// LLM asks a chat model for a proper reading (romaji, pinyin, RR).
type LLM struct {
	client ai.AiInterface
}

func NewLLM(client ai.AiInterface) *LLM {
	return &LLM{client: client}
}

func formatRomanizePrompt(text string) string {
	return fmt.Sprintf(`请把下面的歌词逐行转换为拉丁字母读音（日语用罗马字，中文用带声调的拼音，韩语用韩文罗马字）。保持行数完全一致，已经是拉丁字母的行原样输出，只输出结果，不要任何解释或markdown格式。歌词：
%s`, text)
}

func (l *LLM) Romanize(ctx context.Context, text string) (string, error) {
	reply, err := l.client.HandleText(ctx, formatRomanizePrompt(text))
	if err != nil {
		return "", err
	}
	out := ai.Trim(reply)
	if strings.Count(out, "\n") != strings.Count(text, "\n") {
		return "", fmt.Errorf("romanization changed line count")
	}
	return out, nil
}

// Fallback tries romanizers in order.
type Fallback []Romanizer

func (f Fallback) Romanize(ctx context.Context, text string) (string, error) {
	var lastErr error
	for _, r := range f {
		out, err := r.Romanize(ctx, text)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no romanizer configured")
	}
	return "", lastErr
}

// Apply romanizes original and translated according to mode. A romanizer
// failure leaves that text unchanged.
func Apply(ctx context.Context, r Romanizer, mode Mode, original, translated string) (string, string) {
	if r == nil || mode == Off {
		return original, translated
	}
	if mode.Original() && original != "" {
		original = romanizeOrKeep(ctx, r, original)
	}
	if mode.Translated() && translated != "" {
		translated = romanizeOrKeep(ctx, r, translated)
	}
	return original, translated
}

func romanizeOrKeep(ctx context.Context, r Romanizer, text string) string {
	out, err := r.Romanize(ctx, text)
	if err != nil || strings.TrimSpace(out) == "" {
		logger.Warn().Err(err).Msg("Romanization failed, keeping text")
		return text
	}
	return out
}
