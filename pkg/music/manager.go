package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/notify"
)

var logger = log.With().Str("component", "music-manager").Logger()

// Session 记录当前歌曲已经尝试过的提供商（按歌词类型分开），切歌或手动重新获取时重新创建
type Session struct {
	MediaID string

	mu      sync.Mutex
	checked map[checkKey]bool
}

type checkKey struct {
	source string
	kind   Kind
}

func NewSession(mediaID string) *Session {
	return &Session{MediaID: mediaID, checked: make(map[checkKey]bool)}
}

// Checked reports whether the source has already been asked for kind on
// this track.
func (s *Session) Checked(source string, kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[checkKey{source, kind}]
}

func (s *Session) mark(source string, kind Kind) {
	s.mu.Lock()
	s.checked[checkKey{source, kind}] = true
	s.mu.Unlock()
}

// AnyChecked reports whether at least one source has been tried, for
// either kind.
func (s *Session) AnyChecked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checked) > 0
}

// Manager 按顺序尝试多个歌词提供商
type Manager struct {
	sources  []Source
	notifier notify.Notifier
}

// NewManager 创建新的提供商管理器
func NewManager(sources []Source, notifier notify.Notifier) *Manager {
	if notifier == nil {
		notifier = notify.Nop
	}
	if len(sources) == 0 {
		logger.Warn().Msg("No lyrics sources configured")
		return &Manager{notifier: notifier}
	}

	logger.Info().
		Int("source_count", len(sources)).
		Strs("sources", names(sources)).
		Msg("Lyrics source manager initialized")

	return &Manager{sources: sources, notifier: notifier}
}

// Fetch 依次尝试各提供商，返回第一个非空结果
func (m *Manager) Fetch(ctx context.Context, session *Session, q Query, want Kind) (*Result, error) {
	if len(m.sources) == 0 {
		return nil, fmt.Errorf("%w: no sources available", ErrAllFailed)
	}
	if session == nil {
		session = NewSession(q.MediaID)
	}

	var lastErr error
	for i, source := range m.sources {
		name := source.Name()
		if session.Checked(name, want) {
			logger.Debug().Str("source", name).Msg("Source already checked for this track, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logger.Info().
			Str("title", q.Title).
			Str("artist", q.Artist).
			Dur("duration", q.Duration).
			Str("source", name).
			Str("want", want.String()).
			Int("attempt", i+1).
			Int("total_sources", len(m.sources)).
			Msg("Trying to get lyrics")

		result, err := source.Fetch(ctx, q, want)
		session.mark(name, want)

		if err == nil && result != nil && strings.TrimSpace(result.Text) != "" {
			if result.Source == "" {
				result.Source = name
			}
			logger.Info().
				Str("source", name).
				Str("kind", result.Kind.String()).
				Msg("Successfully got lyrics")
			m.notifier.Notify(notify.Message{
				Text: fmt.Sprintf("Lyrics found on %s", name),
				Type: notify.Success,
			})
			return result, nil
		}
		if err == nil {
			err = ErrNotFound
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		logger.Warn().Str("source", name).Err(err).Msg("Source failed")
		lastErr = err

		if next := m.nextUnchecked(session, i, want); next != "" {
			m.notifier.Notify(notify.Message{
				Text: fmt.Sprintf("Lyrics not found on %s, trying %s", name, next),
				Type: notify.Error,
				Long: true,
			})
		} else {
			m.notifier.Notify(notify.Message{
				Text: fmt.Sprintf("Lyrics not found on %s", name),
				Type: notify.Error,
				Long: true,
			})
		}
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w for '%s - %s': every source already checked", ErrAllFailed, q.Title, q.Artist)
	}
	return nil, fmt.Errorf("%w for '%s - %s', last error: %w", ErrAllFailed, q.Title, q.Artist, lastErr)
}

func (m *Manager) nextUnchecked(session *Session, after int, want Kind) string {
	for _, s := range m.sources[after+1:] {
		if !session.Checked(s.Name(), want) {
			return s.Name()
		}
	}
	return ""
}

// Sources returns the configured sources in order.
func (m *Manager) Sources() []Source {
	return m.sources
}

// SourceNames 获取所有提供商名称
func (m *Manager) SourceNames() []string {
	return names(m.sources)
}

func names(sources []Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name()
	}
	return out
}
