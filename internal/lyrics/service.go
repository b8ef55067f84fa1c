package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/notify"
)

var logger = log.With().Str("component", "lyrics").Logger()

// durationPollStep 等待播放器给出时长的轮询间隔
const durationPollStep = 100 * time.Millisecond

// Repository 歌词记录的读写，internal/store 的实现满足它
type Repository interface {
	Lyrics(ctx context.Context, songID string) (*Lyrics, error)
	Upsert(ctx context.Context, rec Lyrics) error
}

// Fetcher 回退链，*music.Manager 满足它
type Fetcher interface {
	Fetch(ctx context.Context, session *music.Session, q music.Query, want music.Kind) (*music.Result, error)
}

// DurationFunc returns the track duration, or 0 while unknown.
type DurationFunc func(ctx context.Context) time.Duration

// Outcome 一次 Ensure 的结果
type Outcome struct {
	Lyrics  *Lyrics
	Err     bool   // 所有提供商都失败
	Fetched bool   // 本次从远端获取
	Source  string // 提供商名称
}

// Service 负责本地记录与远端提供商之间的协调
type Service struct {
	repo         Repository
	synced       Fetcher
	plain        Fetcher
	searcher     music.Searcher
	searcherName string
	notifier     notify.Notifier
	duration     DurationFunc

	mu sync.Mutex // 串行化读-合并-写
}

// ServiceConfig 创建 Service 的参数
type ServiceConfig struct {
	Repo         Repository
	Synced       Fetcher
	Plain        Fetcher
	Searcher     music.Searcher
	SearcherName string
	Notifier     notify.Notifier
	Duration     DurationFunc
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop
	}
	if cfg.SearcherName == "" {
		cfg.SearcherName = "LrcLib.net"
	}
	return &Service{
		repo:         cfg.Repo,
		synced:       cfg.Synced,
		plain:        cfg.Plain,
		searcher:     cfg.Searcher,
		searcherName: cfg.SearcherName,
		notifier:     cfg.Notifier,
		duration:     cfg.Duration,
	}
}

// Current returns the stored record for songID, or nil.
func (s *Service) Current(ctx context.Context, songID string) (*Lyrics, error) {
	return s.repo.Lyrics(ctx, songID)
}

// Ensure returns the record for song, fetching and persisting the requested
// variant when it is missing. A total provider failure is reported through
// Outcome.Err; the returned error is reserved for store failures and
// cancellation.
func (s *Service) Ensure(ctx context.Context, session *music.Session, song Song, synced bool) (Outcome, error) {
	rec, err := s.repo.Lyrics(ctx, song.MediaID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read lyrics: %w", err)
	}
	if rec.Text(synced) != nil {
		return Outcome{Lyrics: rec}, nil
	}
	return s.fetch(ctx, session, song, rec, synced)
}

// Refetch runs the provider chain even when a stored variant exists. The
// stored record is only replaced on success.
func (s *Service) Refetch(ctx context.Context, session *music.Session, song Song, synced bool) (Outcome, error) {
	rec, err := s.repo.Lyrics(ctx, song.MediaID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read lyrics: %w", err)
	}
	return s.fetch(ctx, session, song, rec, synced)
}

func (s *Service) fetch(ctx context.Context, session *music.Session, song Song, rec *Lyrics, synced bool) (Outcome, error) {
	q := music.Query{
		MediaID: song.MediaID,
		Title:   CleanTitle(song.Title),
		Artist:  song.Artist,
		Album:   song.Album,
	}

	chain, want := s.plain, music.KindPlain
	if synced {
		chain, want = s.synced, music.KindSynced
		d, err := s.waitDuration(ctx)
		if err != nil {
			return Outcome{}, err
		}
		q.Duration = d
	}
	if chain == nil {
		return Outcome{Lyrics: rec, Err: true}, nil
	}

	logger.Info().
		Str("media_id", song.MediaID).
		Str("title", q.Title).
		Str("artist", q.Artist).
		Bool("synced", synced).
		Msg("Fetching lyrics from providers")

	res, err := chain.Fetch(ctx, session, q, want)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		logger.Warn().Err(err).Str("media_id", song.MediaID).Msg("No provider returned lyrics")
		return Outcome{Lyrics: rec, Err: true}, nil
	}

	saved, err := s.upsert(ctx, song.MediaID, res.Text, res.Kind == music.KindSynced)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Lyrics: saved, Fetched: true, Source: res.Source}, nil
}

func (s *Service) waitDuration(ctx context.Context) (time.Duration, error) {
	if s.duration == nil {
		return 0, nil
	}
	for {
		if d := s.duration(ctx); d > 0 {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(durationPollStep):
		}
	}
}

// Save stores manually edited text in the given variant, keeping the other.
func (s *Service) Save(ctx context.Context, songID, text string, synced bool) (*Lyrics, error) {
	if songID == "" {
		return nil, errors.New("song id required")
	}
	return s.upsert(ctx, songID, text, synced)
}

// Search lists candidate tracks for the picker.
func (s *Service) Search(ctx context.Context, artist, title string) ([]music.Track, error) {
	if s.searcher == nil {
		return nil, errors.New("no searcher configured")
	}
	tracks, err := s.searcher.Search(ctx, music.Query{Title: CleanTitle(title), Artist: artist})
	if err != nil && !errors.Is(err, music.ErrNotFound) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.notifier.Notify(notify.Message{
			Text: "An error has occurred while fetching the lyrics",
			Type: notify.Error,
			Long: true,
		})
		return nil, err
	}

	if len(tracks) > 0 {
		s.notifier.Notify(notify.Message{
			Text: fmt.Sprintf("%d tracks found on %s", len(tracks), s.searcherName),
			Type: notify.Success,
		})
	} else {
		s.notifier.Notify(notify.Message{
			Text: fmt.Sprintf("No tracks found on %s", s.searcherName),
			Type: notify.Error,
			Long: true,
		})
	}
	return tracks, nil
}

// Pick stores the chosen track's synced lyrics, empty when it has none.
func (s *Service) Pick(ctx context.Context, songID string, track music.Track) (*Lyrics, error) {
	text := ""
	if track.SyncedLyrics != nil {
		text = *track.SyncedLyrics
	}
	return s.upsert(ctx, songID, text, true)
}

func (s *Service) upsert(ctx context.Context, songID, text string, synced bool) (*Lyrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.Lyrics(ctx, songID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lyrics: %w", err)
	}
	merged := current.Merge(songID, strings.TrimRight(text, "\n"), synced)
	if err := s.repo.Upsert(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to save lyrics: %w", err)
	}
	logger.Info().Str("song_id", songID).Bool("synced", synced).Msg("Saved lyrics")
	return &merged, nil
}
