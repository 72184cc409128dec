package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/channel-sweeper/internal/sweep"
)

func newPurgeCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Sweep one channel once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			channelID, _ := cmd.Flags().GetString("channel")
			minutes, _ := cmd.Flags().GetInt("minutes")
			profileName, _ := cmd.Flags().GetString("profile")

			if channelID == "" {
				return fmt.Errorf("--channel is required")
			}

			cfg, logger, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if profileName == "" {
				profileName = cfg.SweepProfile
			}
			profile := sweep.Profile(profileName)
			policy, err := sweep.PolicyFor(profile)
			if err != nil {
				return err
			}

			cutoffAge := cfg.Defaults(sweep.DefaultsFor(profile)).Cutoff
			if cmd.Flags().Changed("minutes") {
				cutoffAge = time.Duration(minutes) * time.Minute
			}

			client, err := restClient(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if cfg.SweepTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.SweepTimeout)
				defer cancel()
			}

			res, err := sweep.NewSweeper(client, policy, nil, logger).Sweep(ctx, channelID, time.Now().Add(-cutoffAge))
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d messages in %s (%d already gone, %d failed)\n",
				res.Deleted, res.Matched, channelID, res.Gone, len(res.Failures))
			return err
		},
	}
	cmd.Flags().String("channel", "", "channel id to sweep")
	cmd.Flags().Int("minutes", 0, "delete messages older than this many minutes (default: profile cutoff)")
	cmd.Flags().String("profile", "", "sweep profile, history or images (default: SWEEP_PROFILE)")
	return cmd
}
