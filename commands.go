package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxpert/auditsource/admin"
	"github.com/maxpert/auditsource/cfg"
	"github.com/maxpert/auditsource/publisher"
	"github.com/maxpert/auditsource/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll and deliver until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Debug().Msg("Initializing telemetry")
			telemetry.InitializeTelemetry()

			p, err := newPipeline(ctx, cfg.Config)
			if err != nil {
				log.Error().Err(err).Msg("Failed to start audit source")
				return err
			}
			defer p.Close()

			if cfg.Config.HTTPEnabled() {
				handlers := admin.NewHandlers(p.source, p.wake, cfg.Config)
				go func() {
					if err := admin.Serve(ctx, cfg.Config.MetricsAddress(), handlers); err != nil {
						log.Error().Err(err).Msg("HTTP server failed")
					}
				}()
			}

			return p.source.Run(ctx)
		},
	}
}

func newOnceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single read, deliver and commit cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := *cfg.Config
			config.Source.MinimumCycleIntervalMS = 0

			p, err := newPipeline(cmd.Context(), &config)
			if err != nil {
				return err
			}
			defer p.Close()

			status, err := p.source.Process(cmd.Context())
			if status == publisher.Backoff {
				return err
			}

			health := p.source.Health()
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d events, committed %s\n", health.Delivered, displayValue(health.Committed))
			return nil
		},
	}
}

func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or change the committed cursor value",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the committed cursor value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg.Config)
			if err != nil {
				return err
			}
			defer store.Close()

			value, err := store.Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), displayValue(value))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <value>",
		Short: "Replace the committed cursor value; the next poll starts after it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("checkpoint value must not be empty")
			}

			store, err := openStore(cfg.Config)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Save(args[0]); err != nil {
				return err
			}
			log.Info().Str("committed", args[0]).Msg("Checkpoint replaced")
			return nil
		},
	})

	return cmd
}

func newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query",
		Short: "Print the query the next poll would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printNextQuery(cmd.Context(), cfg.Config, cmd)
		},
	}
}

func printNextQuery(ctx context.Context, config *cfg.Configuration, cmd *cobra.Command) error {
	db, err := openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := openReader(ctx, config, db)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintln(cmd.OutOrStdout(), r.NextQuery())
	return nil
}

func displayValue(v *string) string {
	if v == nil {
		return "(none)"
	}
	return *v
}
