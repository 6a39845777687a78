package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/logging"
	"github.com/liverec/liverec/internal/platform"
)

// CreateProbeCmd creates the probe command: a one-shot liveness check.
// Exit code 0 means live, 1 offline, 2 error.
func CreateProbeCmd() *cobra.Command {
	var streamersFile string
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "probe [streamer-id]",
		Short: "Check whether a configured streamer is live",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			streamerID := args[0]

			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("probe")

			store := config.NewStreamerStore(streamersFile)
			if err := store.Load(); err != nil {
				logger.Error("Failed to load streamers configuration", "error", err)
				os.Exit(2)
			}

			streamer, exists := store.GetStreamer(streamerID)
			if !exists {
				logger.Error("Streamer not found", "streamer", streamerID)
				os.Exit(2)
			}

			plugin, err := platform.New(platform.Deps{
				Streamer: streamer,
				Logger:   logger,
			})
			if err != nil {
				logger.Error("Cannot construct platform plugin", "error", err)
				os.Exit(2)
			}

			ctx, cancel := context.WithTimeout(context.Background(),
				time.Duration(timeoutSeconds)*time.Second)
			defer cancel()

			live, err := plugin.ShouldDownload(ctx)
			if err != nil {
				logger.Error("Liveness probe failed", "error", err)
				os.Exit(2)
			}

			if live {
				fmt.Printf("%s is live\n", streamer.Name)
				return
			}
			fmt.Printf("%s is offline\n", streamer.Name)
			os.Exit(1)
		},
	}

	cmd.Flags().StringVar(&streamersFile, "streamers", "streamers.toml", "Path to streamers configuration file")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 30, "Probe timeout in seconds")

	return cmd
}
