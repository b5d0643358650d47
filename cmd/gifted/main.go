// Command gifted finds a person's public profiles and suggests gifts from what they reveal.
//
// Usage:
//
//	gifted suggest "Jane Doe" --location Portland
//	gifted resolve "Jane Doe"
//	gifted enrich https://github.com/janedoe
//	gifted recommend --signal gaming.playstation=0.8 --owns playstation-ecosystem
//	gifted serve --addr :8080
//
// Search needs BRAVE_SEARCH_KEY, or GOOGLE_CSE_KEY and GOOGLE_CSE_ID.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/gifted/pkg/config"
)

// app carries state shared by every subcommand.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	configPath     string
	debug          bool
	noCache        bool
	browserCookies bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "gifted",
		Short:         "Gift ideas from public profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file (default $GIFTED_CONFIG)")
	flags.BoolVarP(&a.debug, "debug", "v", false, "enable debug logging")
	flags.BoolVar(&a.noCache, "no-cache", false, "disable the HTTP response cache even when configured")
	flags.BoolVar(&a.browserCookies, "browser-cookies", false, "send local browser session cookies to profile hosts")

	root.AddCommand(
		newResolveCmd(a),
		newEnrichCmd(a),
		newRecommendCmd(a),
		newSuggestCmd(a),
		newRegistriesCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.browserCookies {
		cfg.Fetch.BrowserCookies = true
	}
	if a.noCache {
		cfg.Cache.Enabled = false
	}
	a.cfg = cfg

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	if a.debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		a.logger = slog.New(slog.NewJSONHandler(stderr, opts))
	} else {
		a.logger = slog.New(slog.NewTextHandler(stderr, opts))
	}
	return nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
