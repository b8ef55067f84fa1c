// Package sources builds lyrics sources and fallback chains by name.
package sources

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/pkg/innertube"
	"lyrics-panel/pkg/kugou"
	"lyrics-panel/pkg/lrclib"
	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/netease"
	"lyrics-panel/pkg/notify"
)

// Source names accepted in configuration.
const (
	LrcLib    = "lrclib"
	KuGou     = "kugou"
	NetEase   = "netease"
	Innertube = "innertube"
)

var (
	// DefaultSynced 同步歌词默认回退链
	DefaultSynced = []string{LrcLib, KuGou, Innertube}
	// DefaultPlain 纯文本歌词默认回退链
	DefaultPlain = []string{Innertube, LrcLib}
)

// Options 创建提供商所需参数
type Options struct {
	Timeout        time.Duration
	NetEaseCookie  string
	WithTranslated bool // 网易云合并官方翻译

	// Cache 为空时不缓存
	Cache    music.Cache
	CacheTTL time.Duration
}

// CreateSource 根据名称创建提供商
func CreateSource(name string, opts Options) (music.Source, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	var src music.Source
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LrcLib:
		src = lrclib.NewClient(lrclib.WithTimeout(opts.Timeout))
	case KuGou:
		src = kugou.NewClient(opts.Timeout)
	case NetEase:
		src = netease.NewClient(opts.NetEaseCookie, opts.WithTranslated, opts.Timeout)
	case Innertube:
		src = innertube.NewClient(opts.Timeout)
	default:
		return nil, fmt.Errorf("unsupported lyrics source: %s", name)
	}

	if opts.Cache != nil {
		return music.Cached(src, opts.Cache, opts.CacheTTL), nil
	}
	return src, nil
}

// CreateManager 按名称顺序创建回退链
func CreateManager(names []string, opts Options, notifier notify.Notifier) (*music.Manager, error) {
	list := make([]music.Source, 0, len(names))
	for _, name := range names {
		src, err := CreateSource(name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create source %q: %w", name, err)
		}
		list = append(list, src)
	}
	log.Debug().Str("component", "sources").Strs("names", names).Msg("Created lyrics chain")
	return music.NewManager(list, notifier), nil
}

// Chain 返回同步或纯文本的默认回退链
func Chain(synced bool) []string {
	if synced {
		return append([]string(nil), DefaultSynced...)
	}
	return append([]string(nil), DefaultPlain...)
}
