package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liverec/liverec/internal/action"
	"github.com/liverec/liverec/internal/capture"
	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/logging"
	"github.com/liverec/liverec/internal/recorder"
	"github.com/liverec/liverec/internal/upload"
)

// CreateRecordCmd creates the record command: supervise a single streamer
// without the full daemon.
func CreateRecordCmd() *cobra.Command {
	var streamersFile string
	var ffmpegPath string
	var uploadProgram string
	var maxRetries int
	var retryDelaySeconds int
	var logJSON bool
	var debug bool

	cmd := &cobra.Command{
		Use:   "record [streamer-id]",
		Short: "Supervise and record a single streamer",
		Long: `Runs the poll/capture loop for one configured streamer until interrupted. ` +
			`Loads the streamer from the streamers file and handles capture lifecycle including graceful shutdown.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			streamerID := args[0]

			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if debug {
				loggingConfig.Level = "debug"
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("record").With("streamer", streamerID)

			store := config.NewStreamerStore(streamersFile)
			if err := store.Load(); err != nil {
				logger.Error("Failed to load streamers configuration", "error", err)
				os.Exit(1)
			}

			streamer, exists := store.GetStreamer(streamerID)
			if !exists {
				logger.Error("Streamer not found", "config", streamersFile)
				os.Exit(1)
			}
			streamer.Enabled = true

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bus := events.New()
			invoker := capture.NewInvoker(ffmpegPath, logging.GetLogger("capture"), logging.GetLogger("engine"))
			uploads := upload.NewExecutor(uploadProgram, nil, logging.GetLogger("upload"))
			dispatcher := action.NewDispatcher(uploads, bus, logging.GetLogger("action"))

			supervisor := recorder.NewSupervisor(recorder.Options{
				Invoker:    invoker,
				Dispatcher: dispatcher,
				Bus:        bus,
				Logger:     logging.GetLogger("recorder"),
				Debug:      debug,
				MaxRetries: maxRetries,
				RetryDelay: time.Duration(retryDelaySeconds) * time.Second,
			})

			// Shut down if the streamer disappears from config. Reload does
			// not restart a running worker, so it keeps the settings it
			// started with.
			watcher := config.NewConfigWatcher(streamersFile, config.LoadStreamers, logger)
			watcher.OnReload(func(all map[string]config.Streamer) {
				fresh, ok := all[streamerID]
				if !ok {
					logger.Warn("Streamer removed from config, shutting down")
					stop()
					return
				}
				fresh.Enabled = true
				supervisor.Reload(map[string]config.Streamer{streamerID: fresh})
			})
			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
			} else {
				defer func() { _ = watcher.Stop() }()
			}

			err := supervisor.Run(ctx, map[string]config.Streamer{streamerID: streamer})
			logger.Info("Record command exiting", "reason", err)
		},
	}

	cmd.Flags().StringVar(&streamersFile, "streamers", "streamers.toml", "Path to streamers configuration file")
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "Path to the capture engine binary")
	cmd.Flags().StringVar(&uploadProgram, "upload-program", "", "Program invoked for upload actions (e.g. rclone)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Non-live polls tolerated before a session is considered over")
	cmd.Flags().IntVar(&retryDelaySeconds, "retry-delay", 10, "Poll delay in seconds while a session is in progress")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and engine diagnostics")

	return cmd
}
