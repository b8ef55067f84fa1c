package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-panel/internal/config"
	"lyrics-panel/internal/lyrics"
	"lyrics-panel/internal/player"
	"lyrics-panel/internal/store"
	"lyrics-panel/pkg/ai"
	"lyrics-panel/pkg/lrclib"
	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/notify"
	"lyrics-panel/pkg/redis"
	"lyrics-panel/pkg/romanize"
	"lyrics-panel/pkg/sources"
	"lyrics-panel/pkg/tencent"
	"lyrics-panel/pkg/translate"
)

// SetupLogging 设置 zerolog 的全局配置
func SetupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Components are the pieces shared by the daemon and the CLI commands.
type Components struct {
	Store      store.Store
	Redis      *redis.Client // 未启用或连接失败时为 nil
	AI         ai.AiInterface
	Service    *lyrics.Service
	Translator *translate.Pipeline
	Romanizer  romanize.Romanizer
	Identifier *lyrics.Identifier
}

// Build wires storage, providers and translation from cfg. pl may be nil
// when no player is involved; fetches then run without a duration.
func Build(cfg *config.Config, pl player.Player, notifier notify.Notifier) (*Components, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Str("path", cfg.Store.Path).Msg("Lyrics store opened")

	c := &Components{Store: st}

	// 只有连接成功时才设置缓存，避免 typed-nil 接口
	var cache music.Cache
	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, continuing without cache")
		} else {
			c.Redis = rc
			cache = rc
		}
	}

	if cfg.AI.APIKey != "" {
		client, err := ai.New(cfg.AI.ModuleName, cfg.AI.APIKey, cfg.AI.BaseURL)
		if err != nil {
			log.Warn().Err(err).Str("module", cfg.AI.ModuleName).Msg("AI client unavailable")
		} else {
			c.AI = client
			c.Identifier = lyrics.NewIdentifier(client)
		}
	}

	opts := sources.Options{
		Timeout:        cfg.Providers.Timeout,
		NetEaseCookie:  cfg.Providers.NetEaseCookie,
		WithTranslated: cfg.Providers.NetEaseTranslated,
		Cache:          cache,
		CacheTTL:       cfg.Providers.CacheTTL,
	}
	synced, err := sources.CreateManager(cfg.Providers.Synced, opts, notifier)
	if err != nil {
		c.Close()
		return nil, err
	}
	plain, err := sources.CreateManager(cfg.Providers.Plain, opts, notifier)
	if err != nil {
		c.Close()
		return nil, err
	}
	log.Info().
		Strs("synced", synced.SourceNames()).
		Strs("plain", plain.SourceNames()).
		Msg("Lyrics providers configured")

	var duration lyrics.DurationFunc
	if pl != nil {
		duration = func(ctx context.Context) time.Duration {
			d, err := pl.Duration(ctx)
			if err != nil {
				return 0
			}
			return d
		}
	}

	searcher := lrclib.NewClient(lrclib.WithTimeout(cfg.Providers.Timeout))
	c.Service = lyrics.NewService(lyrics.ServiceConfig{
		Repo:         st,
		Synced:       synced,
		Plain:        plain,
		Searcher:     searcher,
		SearcherName: searcher.Name(),
		Notifier:     notifier,
		Duration:     duration,
	})

	c.Translator = buildTranslator(cfg, c.AI, cache)

	c.Romanizer = romanize.Transliterator{}
	if cfg.Romanize.LLM && c.AI != nil {
		c.Romanizer = romanize.Fallback{romanize.NewLLM(c.AI), romanize.Transliterator{}}
	}
	return c, nil
}

func buildTranslator(cfg *config.Config, client ai.AiInterface, cache music.Cache) *translate.Pipeline {
	opts := []translate.Option{
		translate.WithDeepL(translate.NewDeepL(cfg.Translate.DeepLURL)),
		translate.WithLibreTranslate(translate.NewLibreTranslate(cfg.Translate.LibreURL, cfg.Translate.LibreAPIKey)),
	}

	var fallbacks []translate.Translator
	if cfg.Tencent.SecretID != "" && cfg.Tencent.SecretKey != "" {
		tc, err := tencent.NewClient(cfg.Tencent.SecretID, cfg.Tencent.SecretKey, cfg.Tencent.Region)
		if err != nil {
			log.Warn().Err(err).Msg("Tencent TMT unavailable")
		} else {
			opts = append(opts, translate.WithDetector(tc))
			fallbacks = append(fallbacks, tc)
		}
	}
	if client != nil && cfg.Translate.LLMFallback {
		fallbacks = append(fallbacks, translate.NewLLM(client))
	}
	opts = append(opts, translate.WithFallbacks(fallbacks...))

	if cache != nil {
		opts = append(opts, translate.WithCache(cache, cfg.Translate.CacheTTL))
	}
	return translate.NewPipeline(opts...)
}

// Close releases the store and the Redis connection.
func (c *Components) Close() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis")
		}
	}
}
