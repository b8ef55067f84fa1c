// Package panel holds the lyrics panel state and the user actions on it.
// Every change is published as a Frame to a Sink; synced lyrics additionally
// produce ScrollEvents while the track plays.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-panel/internal/lyrics"
	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/notify"
	"lyrics-panel/pkg/romanize"
	"lyrics-panel/pkg/translate"
)

var logger = log.With().Str("component", "panel").Logger()

var (
	// ErrNoSong 还没有加载歌曲
	ErrNoSong = errors.New("no song loaded")
	// ErrPlainView 搜索只在同步视图可用
	ErrPlainView = errors.New("search is only available in synced view")
	// ErrUnknownTrack 选择的歌曲不在搜索结果中
	ErrUnknownTrack = errors.New("track not in search results")
)

// LyricsService is implemented by *lyrics.Service.
type LyricsService interface {
	Ensure(ctx context.Context, session *music.Session, song lyrics.Song, synced bool) (lyrics.Outcome, error)
	Refetch(ctx context.Context, session *music.Session, song lyrics.Song, synced bool) (lyrics.Outcome, error)
	Save(ctx context.Context, songID, text string, synced bool) (*lyrics.Lyrics, error)
	Search(ctx context.Context, artist, title string) ([]music.Track, error)
	Pick(ctx context.Context, songID string, track music.Track) (*lyrics.Lyrics, error)
}

// Translator is implemented by *translate.Pipeline.
type Translator interface {
	TranslateLines(ctx context.Context, lines []string, target string) []string
}

// Sink receives everything the panel publishes.
type Sink interface {
	Frame(Frame)
	Scroll(ScrollEvent)
}

// SinkFuncs adapts two functions to Sink; nil fields are skipped.
type SinkFuncs struct {
	OnFrame  func(Frame)
	OnScroll func(ScrollEvent)
}

func (s SinkFuncs) Frame(f Frame) {
	if s.OnFrame != nil {
		s.OnFrame(f)
	}
}

func (s SinkFuncs) Scroll(e ScrollEvent) {
	if s.OnScroll != nil {
		s.OnScroll(e)
	}
}

// PositionFunc 读取播放位置
type PositionFunc func(ctx context.Context) (time.Duration, error)

// Config 面板依赖与初始偏好
type Config struct {
	Service    LyricsService
	Translator Translator
	Romanizer  romanize.Romanizer
	Notifier   notify.Notifier
	Position   PositionFunc
	Sink       Sink

	PollInterval time.Duration
	Lead         time.Duration
	Layout       Layout

	Synced          bool
	Translate       bool
	TargetLanguage  string // 菜单代码，"default" 表示 DefaultLanguage
	DefaultLanguage string
	Romanization    romanize.Mode
	ShowSecondLine  bool
}

// Panel 歌词面板
type Panel struct {
	cfg Config

	mu         sync.Mutex
	song       lyrics.Song
	session    *music.Session
	rec        *lyrics.Lyrics
	synced     bool
	isError    bool
	invalidLRC bool
	loading    bool
	rechecked  bool
	lines      []lyrics.Sentence
	decor      []Line // 与 lines 对齐的翻译和罗马音
	tracks     []music.Track

	translateOn    bool
	target         string
	mode           romanize.Mode
	showSecondLine bool
	layout         Layout

	generation  uint64 // 每次换歌加一
	rev         uint64 // 内容或显示设置每次变化加一
	trackCtx    context.Context
	cancelTrack context.CancelFunc
	clock       *lyrics.Synchronized
	cancelSync  context.CancelFunc

	lastPos atomic.Int64
}

func New(cfg Config) *Panel {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop
	}
	if cfg.Sink == nil {
		cfg.Sink = SinkFuncs{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Lead == 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.Romanization == "" {
		cfg.Romanization = romanize.Off
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = translate.DefaultCode
	}
	return &Panel{
		cfg:            cfg,
		synced:         cfg.Synced,
		translateOn:    cfg.Translate,
		target:         cfg.TargetLanguage,
		mode:           cfg.Romanization,
		showSecondLine: cfg.ShowSecondLine,
		layout:         cfg.Layout,
	}
}

// SongID returns the loaded media id, or "".
func (p *Panel) SongID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.song.MediaID
}

// Load switches the panel to song. The previous track's fetch and syncer
// are cancelled. Load blocks until the lyrics are resolved.
func (p *Panel) Load(ctx context.Context, song lyrics.Song) error {
	p.mu.Lock()
	if p.cancelTrack != nil {
		p.cancelTrack()
	}
	p.stopSyncLocked()
	trackCtx, cancel := context.WithCancel(ctx)
	p.trackCtx, p.cancelTrack = trackCtx, cancel
	p.generation++
	p.rev++
	p.song = song
	p.session = music.NewSession(song.MediaID)
	p.rec = nil
	p.isError, p.invalidLRC, p.rechecked = false, false, false
	p.lines, p.decor, p.tracks = nil, nil, nil
	p.lastPos.Store(0)
	gen := p.generation
	p.mu.Unlock()

	logger.Info().Str("media_id", song.MediaID).Str("title", song.Title).Msg("Loading song")
	return p.resolve(trackCtx, gen, false)
}

// Close cancels the current track.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelTrack != nil {
		p.cancelTrack()
		p.cancelTrack = nil
	}
	p.stopSyncLocked()
}

// SetSynced toggles between the plain and synced views, fetching the
// variant when it is missing.
func (p *Panel) SetSynced(ctx context.Context, synced bool) error {
	p.mu.Lock()
	if p.trackCtx == nil {
		p.synced = synced
		p.mu.Unlock()
		p.publish()
		return nil
	}
	p.synced = synced
	p.rev++
	p.tracks = nil
	missing := p.rec.Text(synced) == nil
	gen := p.generation
	p.mu.Unlock()

	ctx, done, err := p.bind(ctx, gen)
	if err != nil {
		return err
	}
	defer done()
	if missing {
		return p.resolve(ctx, gen, false)
	}
	p.refresh(ctx, gen)
	return nil
}

// Refetch runs the provider chains again for the current song. Sources
// already asked during this track are asked again.
func (p *Panel) Refetch(ctx context.Context) error {
	p.mu.Lock()
	if p.trackCtx == nil || p.song.MediaID == "" {
		p.mu.Unlock()
		return ErrNoSong
	}
	// 手动重新获取使用新的会话，已检查标记只用于自动重查
	p.session = music.NewSession(p.song.MediaID)
	gen := p.generation
	p.mu.Unlock()

	ctx, done, err := p.bind(ctx, gen)
	if err != nil {
		return err
	}
	defer done()
	return p.resolve(ctx, gen, true)
}

// Edit saves text as the current view's variant.
func (p *Panel) Edit(ctx context.Context, text string) error {
	gen, err := p.current()
	if err != nil {
		return err
	}
	p.mu.Lock()
	songID, synced := p.song.MediaID, p.synced
	p.mu.Unlock()

	rec, err := p.cfg.Service.Save(ctx, songID, text, synced)
	if err != nil {
		p.cfg.Notifier.Notify(notify.Message{Text: "Failed to save lyrics", Type: notify.Error})
		return err
	}
	p.cfg.Notifier.Notify(notify.Message{Text: "Lyrics saved", Type: notify.Success})
	p.setRecord(ctx, gen, rec, false)
	return nil
}

// Search lists candidates for the picker. Empty artist or title default to
// the current song.
func (p *Panel) Search(ctx context.Context, artist, title string) ([]music.Track, error) {
	gen, err := p.current()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	if !p.synced {
		p.mu.Unlock()
		return nil, ErrPlainView
	}
	if artist == "" {
		artist = p.song.Artist
	}
	if title == "" {
		title = p.song.Title
	}
	p.mu.Unlock()

	tracks, err := p.cfg.Service.Search(ctx, artist, title)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	if gen == p.generation {
		p.tracks = tracks
	}
	p.mu.Unlock()
	p.publish()
	return tracks, nil
}

// Pick stores the synced lyrics of a track from the last search.
func (p *Panel) Pick(ctx context.Context, trackID int) error {
	gen, err := p.current()
	if err != nil {
		return err
	}
	p.mu.Lock()
	songID := p.song.MediaID
	var picked *music.Track
	for i := range p.tracks {
		if p.tracks[i].ID == trackID {
			picked = &p.tracks[i]
			break
		}
	}
	p.mu.Unlock()
	if picked == nil {
		return fmt.Errorf("%w: %d", ErrUnknownTrack, trackID)
	}

	rec, err := p.cfg.Service.Pick(ctx, songID, *picked)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if gen == p.generation {
		p.tracks = nil
	}
	p.mu.Unlock()
	p.setRecord(ctx, gen, rec, false)
	return nil
}

// SetTranslation enables or disables translation. target is a menu code
// from translate.Languages; "" keeps the current one.
func (p *Panel) SetTranslation(ctx context.Context, enabled bool, target string) error {
	p.mu.Lock()
	p.translateOn = enabled
	if target != "" {
		p.target = target
	}
	p.rev++
	gen := p.generation
	loaded := p.trackCtx != nil
	p.mu.Unlock()
	return p.redecorate(ctx, gen, loaded)
}

// SetRomanization changes the romanization mode.
func (p *Panel) SetRomanization(ctx context.Context, mode romanize.Mode) error {
	p.mu.Lock()
	p.mode = mode
	p.rev++
	gen := p.generation
	loaded := p.trackCtx != nil
	p.mu.Unlock()
	return p.redecorate(ctx, gen, loaded)
}

// SetShowSecondLine toggles the translation line under each sentence.
func (p *Panel) SetShowSecondLine(show bool) {
	p.mu.Lock()
	p.showSecondLine = show
	p.mu.Unlock()
	p.publish()
}

// SetLayout updates the layout used for scroll centering.
func (p *Panel) SetLayout(layout Layout) {
	p.mu.Lock()
	p.layout = layout
	gen := p.generation
	p.mu.Unlock()
	p.restartSyncer(gen)
}

// Locate returns the index of the playing song in ids, or -1.
func (p *Panel) Locate(ids []string) int {
	return NewLocator(p.SongID).Locate(ids)
}

// Render returns the current frame.
func (p *Panel) Render() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked()
}

func (p *Panel) renderLocked() Frame {
	f := Frame{
		SongID:         p.song.MediaID,
		Title:          lyrics.CleanTitle(p.song.Title),
		Artist:         p.song.Artist,
		Synced:         p.synced,
		Loading:        p.loading,
		InvalidLRC:     p.invalidLRC,
		Active:         -1,
		Translate:      p.translateOn,
		TargetLanguage: p.target,
		Romanization:   p.mode,
		ShowSecondLine: p.showSecondLine,
		Tracks:         p.tracks,
	}
	text, fallback := p.shownLocked()
	f.ShowError = (p.isError && text == nil) || (p.invalidLRC && p.synced)
	f.Fallback = fallback

	f.Lines = make([]Line, len(p.lines))
	for i, s := range p.lines {
		f.Lines[i] = Line{Time: s.Time, Text: s.Text}
		if i < len(p.decor) {
			d := p.decor[i]
			f.Lines[i].Translation = d.Translation
			f.Lines[i].Romanized = d.Romanized
			f.Lines[i].RomanizedTranslation = d.RomanizedTranslation
		}
	}
	if p.synced && !fallback {
		if p.clock != nil {
			f.Active = p.clock.Index()
		} else if len(p.lines) > 0 {
			f.Active = 0
		}
	} else if text != nil {
		f.Plain = *text
	}
	return f
}

// shownLocked returns the text on screen. In the synced view an absent or
// empty synced variant falls back to the plain one.
func (p *Panel) shownLocked() (text *string, fallback bool) {
	if !p.synced {
		return p.rec.Text(false), false
	}
	synced := p.rec.Text(true)
	if synced != nil && *synced != "" {
		return synced, false
	}
	if plain := p.rec.Text(false); plain != nil && *plain != "" {
		return plain, true
	}
	return synced, false
}

func (p *Panel) current() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trackCtx == nil || p.song.MediaID == "" {
		return 0, ErrNoSong
	}
	return p.generation, nil
}

// bind returns ctx additionally cancelled when track gen is replaced.
func (p *Panel) bind(ctx context.Context, gen uint64) (context.Context, func(), error) {
	p.mu.Lock()
	track := p.trackCtx
	stale := gen != p.generation
	p.mu.Unlock()
	if track == nil || stale {
		return nil, nil, ErrNoSong
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(track, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

// resolve loads the current view's variant through the service.
func (p *Panel) resolve(ctx context.Context, gen uint64, force bool) error {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil
	}
	song, session, synced := p.song, p.session, p.synced
	p.loading = true
	p.mu.Unlock()
	p.publish()

	var (
		out lyrics.Outcome
		err error
	)
	if force {
		out, err = p.cfg.Service.Refetch(ctx, session, song, synced)
	} else {
		out, err = p.cfg.Service.Ensure(ctx, session, song, synced)
	}
	if err != nil {
		p.mu.Lock()
		if gen == p.generation {
			p.loading = false
		}
		p.mu.Unlock()
		if ctx.Err() == nil {
			logger.Error().Err(err).Str("media_id", song.MediaID).Msg("Failed to load lyrics")
			p.publish()
		}
		return err
	}

	if recheck := p.setRecord(ctx, gen, out.Lyrics, out.Err); recheck {
		logger.Debug().Str("media_id", song.MediaID).Msg("Stored lyrics empty, checking providers again")
		return p.resolve(ctx, gen, true)
	}
	return nil
}

// setRecord installs rec and redraws. It reports whether the stored text is
// empty while no provider has been asked yet for this song.
func (p *Panel) setRecord(ctx context.Context, gen uint64, rec *lyrics.Lyrics, isError bool) (recheck bool) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return false
	}
	p.rec = rec
	p.isError = isError
	p.loading = false
	p.rev++
	if t := rec.Text(p.synced); t != nil && *t == "" && !p.session.AnyChecked() && !p.rechecked {
		p.rechecked = true
		recheck = true
	}
	p.mu.Unlock()

	p.refresh(ctx, gen)
	return recheck
}

// refresh re-derives lines from the record, then decorations and syncer.
func (p *Panel) refresh(ctx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.parseLocked()
	p.mu.Unlock()

	p.publish()
	p.restartSyncer(gen)
	if err := p.redecorate(ctx, gen, true); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("Failed to decorate lyrics")
	}
}

func (p *Panel) parseLocked() {
	p.decor = nil
	p.invalidLRC = false
	text, fallback := p.shownLocked()
	switch {
	case text == nil || *text == "":
		p.lines = nil
	case p.synced && !fallback:
		sentences, ok := lyrics.ParseLRC(*text)
		if !ok {
			p.invalidLRC = true
			p.lines = nil
			return
		}
		p.lines = sentences
	default:
		parts := strings.Split(strings.ReplaceAll(*text, "\r\n", "\n"), "\n")
		p.lines = make([]lyrics.Sentence, len(parts))
		for i, part := range parts {
			p.lines[i] = lyrics.Sentence{Text: part}
		}
	}
}

// redecorate computes translations and romanization for the current lines
// outside the lock and installs them if nothing changed meanwhile.
func (p *Panel) redecorate(ctx context.Context, gen uint64, loaded bool) error {
	if !loaded {
		p.publish()
		return nil
	}
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil
	}
	rev := p.rev
	texts := make([]string, len(p.lines))
	for i, s := range p.lines {
		texts[i] = s.Text
	}
	translateOn, target, mode := p.translateOn, p.target, p.mode
	p.mu.Unlock()

	decor := make([]Line, len(texts))
	if translateOn && p.cfg.Translator != nil && len(texts) > 0 {
		if lang, ok := translate.Resolve(target, p.cfg.DefaultLanguage); ok {
			translated := p.translateNonEmpty(ctx, texts, lang)
			for i := range decor {
				decor[i].Translation = translated[i]
			}
		}
	}
	if mode != romanize.Off && p.cfg.Romanizer != nil && len(texts) > 0 {
		translations := make([]string, len(decor))
		for i := range decor {
			translations[i] = decor[i].Translation
		}
		joined := strings.Join(translations, "\n")
		if strings.TrimSpace(joined) == "" {
			joined = ""
		}
		original, translated := romanize.Apply(ctx, p.cfg.Romanizer, mode, strings.Join(texts, "\n"), joined)
		if mode.Original() {
			assignLines(decor, original, func(l *Line, s string) { l.Romanized = s })
		}
		if mode.Translated() {
			assignLines(decor, translated, func(l *Line, s string) { l.RomanizedTranslation = s })
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if gen != p.generation || rev != p.rev {
		p.mu.Unlock()
		return nil
	}
	p.decor = decor
	p.mu.Unlock()
	p.publish()
	return nil
}

// translateNonEmpty skips blank lines so backends see only real text.
func (p *Panel) translateNonEmpty(ctx context.Context, texts []string, target string) []string {
	out := make([]string, len(texts))
	var idx []int
	var batch []string
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			idx = append(idx, i)
			batch = append(batch, t)
		}
	}
	if len(batch) == 0 {
		return out
	}
	translated := p.cfg.Translator.TranslateLines(ctx, batch, target)
	for j, i := range idx {
		if j < len(translated) {
			out[i] = translated[j]
		}
	}
	return out
}

// assignLines 按行拆分 text，行数不一致时放弃
func assignLines(decor []Line, text string, set func(*Line, string)) {
	parts := strings.Split(text, "\n")
	if len(parts) != len(decor) {
		return
	}
	for i := range decor {
		if parts[i] != "" {
			set(&decor[i], parts[i])
		}
	}
}

func (p *Panel) stopSyncLocked() {
	if p.cancelSync != nil {
		p.cancelSync()
		p.cancelSync = nil
	}
	p.clock = nil
}

// restartSyncer replaces the syncer for the current lines. It runs only in
// the synced view with parsed sentences.
func (p *Panel) restartSyncer(gen uint64) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.stopSyncLocked()
	_, fallback := p.shownLocked()
	if !p.synced || fallback || p.invalidLRC || len(p.lines) == 0 || p.trackCtx == nil || p.cfg.Position == nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(p.trackCtx)
	p.cancelSync = cancel
	sentences := p.lines
	songID := p.song.MediaID
	offset := p.layout.Offset()
	p.mu.Unlock()

	clock := lyrics.NewSynchronized(sentences, p.position(ctx))

	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.clock = clock
	p.mu.Unlock()

	syncer := NewSyncer(songID, clock, p.cfg.PollInterval, offset, p.cfg.Sink.Scroll)
	go syncer.Run(ctx)
}

// position reads the player clock plus lead. A failed read repeats the last
// known position.
func (p *Panel) position(ctx context.Context) func() time.Duration {
	return func() time.Duration {
		pos, err := p.cfg.Position(ctx)
		if err != nil {
			return time.Duration(p.lastPos.Load())
		}
		pos += p.cfg.Lead
		p.lastPos.Store(int64(pos))
		return pos
	}
}

func (p *Panel) publish() {
	p.cfg.Sink.Frame(p.Render())
}
