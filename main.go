package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/maxpert/auditsource/cfg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/maxpert/auditsource/publisher/sink"
)

// rootOptions holds global flags for all commands
type rootOptions struct {
	ConfigPath string
	Verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "auditsource",
		Short:         "Incremental audit table poller",
		Long:          "Polls a database table (or query) in cursor order and delivers every row as an event, at least once.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(opts.ConfigPath); err != nil {
				return err
			}
			if opts.Verbose {
				cfg.Config.Logging.Verbose = true
			}
			setupLogging(cmd.ErrOrStderr())

			if err := cfg.Validate(); err != nil {
				log.Error().Err(err).Msg("Invalid configuration")
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.toml", "path to configuration file (toml or yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newOnceCommand())
	cmd.AddCommand(newCheckpointCommand())
	cmd.AddCommand(newQueryCommand())

	return cmd
}

// setupLogging configures the global logger from cfg.Config
func setupLogging(console io.Writer) {
	var writer io.Writer = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = console
	})
	if cfg.Config.Logging.Format == "json" {
		writer = console
	}

	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Str("source", cfg.Config.Name).
		Str("run_id", uuid.NewString()).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}
}
