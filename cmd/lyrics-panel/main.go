package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"lyrics-panel/internal/app"
	"lyrics-panel/internal/config"
	"lyrics-panel/internal/ipc"
	"lyrics-panel/internal/lyrics"
	"lyrics-panel/pkg/music"
	"lyrics-panel/pkg/notify"
	"lyrics-panel/pkg/translate"
)

func main() {
	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "serve":
		err = runServe(ctx, args)
	case "fetch":
		err = runFetch(ctx, args)
	case "search":
		err = runSearch(ctx, args)
	case "translate":
		err = runTranslate(ctx, args)
	case "romanize":
		err = runRomanize(ctx, args)
	case "export":
		err = runExport(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("command", command).Msg("Command failed")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: lyrics-panel <command> [flags]

Commands:
  serve       run the panel daemon (default)
  fetch       fetch lyrics for a song through the provider chain
  search      list LrcLib candidates for a song
  translate   translate text from arguments or stdin
  romanize    romanize text from arguments or stdin
  export      dump the lyrics store as JSON
  watch       print the active line of a running panel
`)
}

// setup 解析通用参数并加载配置
func setup(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "", "config file (default $XDG_CONFIG_HOME/lyrics-panel/config.toml)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	app.SetupLogging("warn")
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if fs.Name() == "serve" {
		app.SetupLogging(cfg.App.LogLevel)
	}
	return cfg, nil
}

func build(cfg *config.Config) (*app.Components, error) {
	return app.Build(cfg, nil, notify.Log())
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	title := fs.String("title", "", "song title (required)")
	artist := fs.String("artist", "", "artist")
	album := fs.String("album", "", "album")
	id := fs.String("id", "", "media id used as store key (default \"artist - title\")")
	plain := fs.Bool("plain", false, "fetch plain lyrics instead of synced")
	force := fs.Bool("force", false, "ignore the stored record")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if *title == "" {
		return errors.New("-title is required")
	}
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	song := lyrics.Song{MediaID: *id, Title: *title, Artist: *artist, Album: *album}
	if song.MediaID == "" {
		song.MediaID = song.Artist + " - " + song.Title
	}
	if identified, err := c.Identifier.Identify(ctx, song); err != nil {
		log.Warn().Err(err).Msg("Failed to identify song")
	} else {
		song = identified
	}

	session := music.NewSession(song.MediaID)
	fetch := c.Service.Ensure
	if *force {
		fetch = c.Service.Refetch
	}
	out, err := fetch(ctx, session, song, !*plain)
	if err != nil {
		return err
	}
	text := out.Lyrics.Text(!*plain)
	if text == nil && !*plain {
		text = out.Lyrics.Text(false)
	}
	if out.Err || text == nil {
		return fmt.Errorf("no lyrics found for %s", song.MediaID)
	}
	fmt.Println(*text)
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	title := fs.String("title", "", "song title (required)")
	artist := fs.String("artist", "", "artist")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if *title == "" {
		return errors.New("-title is required")
	}
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	tracks, err := c.Service.Search(ctx, *artist, *title)
	if err != nil {
		return err
	}
	for _, t := range tracks {
		fmt.Printf("%s %s\n", t.Label(), t.Detail())
	}
	return nil
}

// inputText 取参数文本，没有时读 stdin
func inputText(fs *flag.FlagSet) (string, error) {
	if fs.NArg() > 0 {
		return strings.Join(fs.Args(), " "), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func runTranslate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	to := fs.String("to", translate.DefaultCode, "target language code")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	target, ok := translate.Resolve(*to, cfg.Translate.Language)
	if !ok {
		return errors.New("nothing to do for target \"none\"")
	}
	text, err := inputText(fs)
	if err != nil {
		return err
	}
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	out := c.Translator.Translate(ctx, text, target)
	if out == "" {
		return errors.New("translation failed")
	}
	fmt.Println(out)
	return nil
}

func runRomanize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("romanize", flag.ExitOnError)
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	text, err := inputText(fs)
	if err != nil {
		return err
	}
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	out, err := c.Romanizer.Romanize(ctx, text)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	output := fs.String("o", "", "output file (default stdout)")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	records, err := c.Store.All(ctx)
	if err != nil {
		return err
	}

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	client, err := ipc.Dial(cfg.App.SocketPath)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	for {
		env, err := client.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		switch env.Type {
		case ipc.TypeScroll:
			fmt.Println(env.Scroll.Text)
		case ipc.TypeNotify:
			fmt.Printf("[%s] %s\n", env.Notify.Type, env.Notify.Text)
		case ipc.TypeFrame:
			if f := env.Frame; !f.Synced || f.Fallback {
				fmt.Printf("%s - %s\n", f.Artist, f.Title)
			}
		}
	}
}
