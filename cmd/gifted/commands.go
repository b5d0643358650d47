package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/gifted/pkg/gifted"
	"github.com/codeGROOVE-dev/gifted/pkg/server"
	"github.com/codeGROOVE-dev/gifted/pkg/signal"
)

func newResolveCmd(a *app) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "resolve NAME",
		Short: "Find candidate profiles for a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer done()

			res, err := client.Resolve(cmd.Context(), args[0], location)
			if err != nil {
				return err
			}
			return outputJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "city or region to match against")
	return cmd
}

func newEnrichCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich URL",
		Short: "Fetch a page and infer signals and ownership from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer done()

			prof, err := client.Enrich(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return outputJSON(cmd.OutOrStdout(), prof)
		},
	}
}

func newRecommendCmd(a *app) *cobra.Command {
	var (
		signals  []string
		req      gifted.Request
		evidence bool
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank gift ideas for a set of signals",
		Example: `  gifted recommend --signal gaming.playstation=0.8 --signal hobby.running=0.7 \
    --owns playstation-ecosystem --nogos xbox --max-price 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := parseSignals(signals)
			if err != nil {
				return err
			}
			req.Signals = v

			client, done, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer done()

			res := client.Recommend(req)
			if evidence {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			return outputJSON(cmd.OutOrStdout(), res.Ideas)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&signals, "signal", "s", nil, "signal as key=confidence, repeatable")
	f.StringSliceVar(&req.Owns, "owns", nil, "ownership tags, comma separated")
	f.StringSliceVar(&req.Nogos, "nogos", nil, "tags to avoid, comma separated")
	f.StringVar(&req.Subject, "subject", "", "key that seeds tie-breaking")
	f.Float64Var(&req.MinPrice, "min-price", 0, "drop ideas whose price hint is entirely below this")
	f.Float64Var(&req.MaxPrice, "max-price", 0, "drop ideas whose price hint is entirely above this")
	f.BoolVar(&evidence, "evidence", false, "print the shared evidence alongside the ideas")
	return cmd
}

// parseSignals turns key=confidence pairs into a Vector.
func parseSignals(pairs []string) (signal.Vector, error) {
	v := signal.Vector{}
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("signal %q: want key=confidence", p)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || c < 0 || c > 1 {
			return nil, fmt.Errorf("signal %q: confidence must be a number in [0,1]", p)
		}
		if c > 0 {
			v.Add(key, c)
		}
	}
	return v, nil
}

func newSuggestCmd(a *app) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "suggest NAME",
		Short: "Resolve a person and recommend gifts for the best match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer done()

			report, err := client.Suggest(cmd.Context(), args[0], location)
			if err != nil {
				return err
			}
			return outputJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "city or region to match against")
	return cmd
}

func newRegistriesCmd(a *app) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "registries NAME",
		Short: "Search public gift registries and wishlists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := a.newClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer done()

			hits, err := client.FindRegistries(cmd.Context(), args[0], location)
			if err != nil {
				return err
			}
			return outputJSON(cmd.OutOrStdout(), hits)
		},
	}
	cmd.Flags().StringVarP(&location, "location", "l", "", "city or region to narrow the search")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Addr
			}
			client, done, err := a.newClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer done()

			srv := server.New(client, server.WithLogger(a.logger))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
