package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/internal/config"
	"lyrics-panel/internal/httpapi"
	"lyrics-panel/internal/ipc"
	"lyrics-panel/internal/lyrics"
	"lyrics-panel/internal/panel"
	"lyrics-panel/internal/player"
	"lyrics-panel/internal/statusbar"
	"lyrics-panel/pkg/notify"
	"lyrics-panel/pkg/romanize"
)

const noMusic = "No music playing..."

type App struct {
	cfg        *config.Config
	player     player.Player
	components *Components
	ipcServer  *ipc.Server
	statusBar  *statusbar.Controller
	httpServer *httpapi.Server
	panel      *panel.Panel
	identifier *lyrics.Identifier

	mutex       sync.Mutex
	currentSong string
}

func New(cfg *config.Config) (*App, error) {
	pl := player.NewPlayerctl(cfg.App.Player)
	ipcServer := ipc.NewServer(cfg.App.SocketPath)
	statusBar := statusbar.NewController(statusbar.Config{
		Path:    cfg.StatusBar.Path,
		Process: cfg.StatusBar.Process,
		Signal:  cfg.StatusBar.Signal,
	})

	// 日志始终记录，弹窗受偏好控制
	notifier := notify.Multi(notify.Log(), notify.NewGate(ipcServer, cfg.App.Popups))

	components, err := Build(cfg, pl, notifier)
	if err != nil {
		return nil, err
	}

	mode, err := romanize.ParseMode(cfg.Romanize.Mode)
	if err != nil {
		components.Close()
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		player:     pl,
		components: components,
		ipcServer:  ipcServer,
		statusBar:  statusBar,
		identifier: components.Identifier,
	}
	a.panel = panel.New(panel.Config{
		Service:    components.Service,
		Translator: components.Translator,
		Romanizer:  components.Romanizer,
		Notifier:   notifier,
		Position:   pl.Position,
		Sink: panel.SinkFuncs{
			OnFrame:  a.onFrame,
			OnScroll: a.onScroll,
		},
		PollInterval: cfg.Panel.PollInterval,
		Lead:         cfg.Panel.Lead,
		Layout: panel.Layout{
			ThumbnailPx:   cfg.Panel.ThumbnailPx,
			ShowThumbnail: cfg.Panel.ShowThumbnail,
			Landscape:     cfg.Panel.Landscape,
			HasTrailing:   cfg.Panel.HasTrailing,
		},
		Synced:          cfg.Panel.Synced,
		Translate:       cfg.Translate.Enabled,
		TargetLanguage:  cfg.Translate.Target,
		DefaultLanguage: cfg.Translate.Language,
		Romanization:    mode,
		ShowSecondLine:  cfg.Panel.ShowSecondLine,
	})
	if cfg.App.HTTPAddr != "" {
		a.httpServer = httpapi.New(cfg.App.HTTPAddr, a.panel)
	}
	return a, nil
}

func (a *App) onFrame(f panel.Frame) {
	a.ipcServer.Frame(f)
	if f.Synced && !f.Fallback && len(f.Lines) > 0 {
		return // 同步歌词由 onScroll 更新状态栏
	}
	line := f.Title
	if f.Artist != "" {
		line = f.Artist + " - " + f.Title
	}
	if f.Loading {
		line = fmt.Sprintf("... Searching for lyrics for %s ...", line)
	}
	a.updateStatus(line)
}

func (a *App) onScroll(e panel.ScrollEvent) {
	a.ipcServer.Scroll(e)
	a.updateStatus(e.Text)
}

func (a *App) updateStatus(line string) {
	if err := a.statusBar.Update(line); err != nil {
		log.Debug().Err(err).Msg("Failed to update status bar")
	}
}

// Run blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.components.Close()

	if err := a.ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer a.ipcServer.Close()
	defer a.panel.Close()

	go a.statusBar.Run(ctx)

	if a.httpServer != nil {
		go func() {
			if err := a.httpServer.Start(); err != nil {
				log.Error().Err(err).Msg("HTTP API stopped")
			}
		}()
		defer func() {
			if err := a.httpServer.Shutdown(); err != nil {
				log.Error().Err(err).Msg("Failed to shut down HTTP API")
			}
		}()
	}

	ticker := time.NewTicker(a.cfg.App.CheckInterval)
	defer ticker.Stop()

	log.Info().Msg("Starting player check loop...")
	for {
		a.updateSongInfo(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) updateSongInfo(ctx context.Context) {
	md, err := a.player.Metadata(ctx)
	if err != nil {
		a.mutex.Lock()
		changed := a.currentSong != ""
		a.currentSong = ""
		a.mutex.Unlock()
		if changed {
			a.panel.Close()
		}
		a.updateStatus(noMusic)
		return
	}

	a.mutex.Lock()
	if md.MediaID == a.currentSong {
		a.mutex.Unlock()
		return
	}
	log.Info().Msg("-----------------------------------------------------")
	log.Info().Str("media_id", md.MediaID).Str("title", md.Title).Str("artist", md.Artist).Msg("New song detected")
	a.currentSong = md.MediaID
	a.mutex.Unlock()

	song := lyrics.Song{MediaID: md.MediaID, Title: md.Title, Artist: md.Artist, Album: md.Album}

	// 换歌时 Load 会取消上一首的获取，所以放到后台，循环继续检测
	go func() {
		if identified, err := a.identifier.Identify(ctx, song); err != nil {
			log.Warn().Err(err).Str("title", song.Title).Msg("Failed to identify song, using raw title")
		} else {
			song = identified
		}
		if !a.isCurrent(song.MediaID) {
			return
		}
		if err := a.panel.Load(ctx, song); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("media_id", song.MediaID).Msg("Failed to load lyrics")
		}
	}()
}

func (a *App) isCurrent(mediaID string) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.currentSong == mediaID
}
