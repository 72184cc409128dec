package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/channel-sweeper/internal/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "sweeper",
		Short:         "Chat bot that periodically deletes old channel messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var envFile string
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(newRunCmd(&envFile))
	root.AddCommand(newPurgeCmd(&envFile))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sweeper %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("sweeper failed")
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file and the environment, then sets up the
// global logger from the result.
func loadConfig(envFile string) (*config.Config, zerolog.Logger, error) {
	logger := newLogger(os.Getenv("ENVIRONMENT") == "development")
	log.Logger = logger

	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, logger, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, logger, err
	}

	logger = newLogger(cfg.Development())
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Logger = logger
	return cfg, logger, nil
}

func newLogger(development bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
	if development {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}
