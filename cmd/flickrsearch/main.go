package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/abiiranathan/goflag"

	"flickrsearch/internal/app"
	"flickrsearch/internal/config"
	"flickrsearch/internal/domain"
)

// options collects flag values for all subcommands.
type options struct {
	Term    string
	OutDir  string
	PhotoID string
	Farm    int
	Server  string
	Secret  string
	Size    string
	OutFile string
}

const configDir = "./configs"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{Size: string(domain.Large)}
	var runErr error

	// run opens only what a subcommand needs; stdout carries command output,
	// logs go to stderr.
	run := func(needsFlickr bool, fn func(*commands) error) {
		runErr = withCommands(configDir, needsFlickr, os.Stdout, os.Stderr, fn)
	}

	photoIDFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "id",
		ShortName: "i",
		Value:     &opts.PhotoID,
		Usage:     "The Flickr photo id",
		Required:  true,
		Validator: nil,
	}

	flags := goflag.NewContext()

	flags.AddSubCommand("search", "Search photos and print the results", func() {
		run(true, func(c *commands) error { return c.search(ctx, opts.Term, opts.OutDir) })
	}).AddFlag(goflag.FlagString, "term", "t", &opts.Term, "The search term", true).
		AddFlag(goflag.FlagString, "out", "o", &opts.OutDir, "Directory to download thumbnails into", false)

	flags.AddSubCommand("favorite", "Toggle the favorite flag of a photo", func() {
		run(false, func(c *commands) error { return c.toggleFavorite(ctx, opts.PhotoID) })
	}).AddFlagPtr(&photoIDFlag)

	flags.AddSubCommand("favorites", "List favorite photo ids", func() {
		run(false, func(c *commands) error { return c.listFavorites(ctx) })
	})

	flags.AddSubCommand("fetch", "Download one photo", func() {
		size := domain.Size(opts.Size)
		if !size.Valid() {
			runErr = fmt.Errorf("size must be %q or %q, got %q", domain.Thumbnail, domain.Large, opts.Size)
			return
		}
		photo := domain.Photo{ID: opts.PhotoID, Farm: opts.Farm, Server: opts.Server, Secret: opts.Secret}
		run(true, func(c *commands) error { return c.fetch(ctx, photo, size, opts.OutFile) })
	}).AddFlagPtr(&photoIDFlag).
		AddFlag(goflag.FlagInt, "farm", "f", &opts.Farm, "The photo's farm number", true, goflag.Min(0)).
		AddFlag(goflag.FlagString, "server", "s", &opts.Server, "The photo's server id", true).
		AddFlag(goflag.FlagString, "secret", "x", &opts.Secret, "The photo's secret", true).
		AddFlag(goflag.FlagString, "size", "z", &opts.Size, "Size token: m (thumbnail) or b (large)", false).
		AddFlag(goflag.FlagString, "out", "o", &opts.OutFile, "File to write the image to", true)

	subcmd, err := flags.Parse(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if subcmd == nil {
		flags.PrintUsage(os.Stdout)
		os.Exit(1)
	}

	subcmd.Handler()

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

// withCommands loads configuration from dir, opens the components a
// subcommand needs and runs fn. Only Flickr commands require FLICKR_API_KEY.
func withCommands(dir string, needsFlickr bool, out, logOut io.Writer, fn func(*commands) error) error {
	load := config.LoadStoreConfig
	if needsFlickr {
		load = config.LoadConfig
	}
	cfg, err := load(dir)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	log := app.NewLogger(logOut, cfg.Level())

	var a *app.App
	if needsFlickr {
		a, err = app.New(cfg, log, nil)
	} else {
		a, err = app.NewStore(cfg, log)
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	cmds := &commands{
		favorites: a.Favorites,
		out:       out,
		log:       log.WithField("component", "cli"),
	}
	if a.Flickr != nil {
		cmds.searcher = a.Flickr
		cmds.fetcher = a.Flickr
	}
	return fn(cmds)
}
