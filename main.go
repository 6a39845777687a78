package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liverec/liverec/cmd"
	"github.com/liverec/liverec/internal/action"
	"github.com/liverec/liverec/internal/capture"
	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/logging"
	"github.com/liverec/liverec/internal/metrics"
	"github.com/liverec/liverec/internal/recorder"
	"github.com/liverec/liverec/internal/upload"
	"github.com/liverec/liverec/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Streamers settings
	StreamersFile string `help:"Streamer definitions file" default:"streamers.toml" toml:"streamers.config_file" env:"STREAMERS_CONFIG_FILE"`

	// Recorder settings
	MaxDownloadRetries        int  `help:"Non-live polls tolerated before a session is considered over" default:"3" toml:"recorder.max_download_retries" env:"MAX_DOWNLOAD_RETRIES"`
	DownloadRetryDelaySeconds int  `help:"Poll delay in seconds while a session is in progress" default:"10" toml:"recorder.download_retry_delay_seconds" env:"DOWNLOAD_RETRY_DELAY_SECONDS"`
	Debug                     bool `help:"Enable capture engine debug diagnostics" default:"false" toml:"recorder.debug" env:"DEBUG"`

	// Capture settings
	FFmpegPath string `help:"Path to the capture engine binary" default:"ffmpeg" toml:"capture.ffmpeg_path" env:"FFMPEG_PATH"`

	// Upload settings
	UploadProgram string `help:"Program invoked for upload actions (e.g. rclone)" default:"" toml:"upload.program" env:"UPLOAD_PROGRAM"`
	UploadArgs    string `help:"Comma-separated base arguments for the upload program" default:"copy" toml:"upload.args" env:"UPLOAD_ARGS"`

	// Metrics settings
	MetricsAddr string `help:"Prometheus metrics listen address (empty disables)" default:":9523" toml:"metrics.addr" env:"METRICS_ADDR"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingRecorder string `help:"Recorder logging level" default:"info" toml:"logging.recorder" env:"LOGGING_RECORDER"`
	LoggingCapture  string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingEngine   string `help:"Capture engine output logging level" default:"warn" toml:"logging.engine" env:"LOGGING_ENGINE"`
	LoggingPlatform string `help:"Platform plugin logging level" default:"info" toml:"logging.platform" env:"LOGGING_PLATFORM"`
	LoggingAction   string `help:"Action dispatch logging level" default:"info" toml:"logging.action" env:"LOGGING_ACTION"`
	LoggingUpload   string `help:"Upload logging level" default:"info" toml:"logging.upload" env:"LOGGING_UPLOAD"`
}

func main() {
	// Local overrides for development; missing .env is fine.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"recorder": opts.LoggingRecorder,
				"capture":  opts.LoggingCapture,
				"engine":   opts.LoggingEngine,
				"platform": opts.LoggingPlatform,
				"action":   opts.LoggingAction,
				"upload":   opts.LoggingUpload,
			},
		})

		logger := logging.GetLogger("main")
		logger.Info("liverec starting", "version", version.String())

		bus := events.New()
		bridge := metrics.NewBridge(bus)

		invoker := capture.NewInvoker(opts.FFmpegPath,
			logging.GetLogger("capture"), logging.GetLogger("engine"))
		uploads := upload.NewExecutor(opts.UploadProgram,
			splitArgs(opts.UploadArgs), logging.GetLogger("upload"))
		dispatcher := action.NewDispatcher(uploads, bus, logging.GetLogger("action"))

		store := config.NewStreamerStore(opts.StreamersFile)
		if err := store.Load(); err != nil {
			logger.Warn("Failed to load streamers file", "error", err)
		}

		supervisor := recorder.NewSupervisor(recorder.Options{
			Invoker:    invoker,
			Dispatcher: dispatcher,
			Bus:        bus,
			Logger:     logging.GetLogger("recorder"),
			Debug:      opts.Debug,
			MaxRetries: opts.MaxDownloadRetries,
			RetryDelay: time.Duration(opts.DownloadRetryDelaySeconds) * time.Second,
		})

		watcher := config.NewConfigWatcher(opts.StreamersFile, config.LoadStreamers,
			logging.GetLogger("config"))
		watcher.OnReload(func(streamers map[string]config.Streamer) {
			logger.Info("Streamers file changed, reconciling workers", "streamers", len(streamers))
			supervisor.Reload(streamers)
		})

		ctx, cancel := context.WithCancel(context.Background())

		var metricsServer *http.Server
		if opts.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer = &http.Server{Addr: opts.MetricsAddr, Handler: mux}
		}

		hooks.OnStart(func() {
			if metricsServer != nil {
				go func() {
					logger.Info("Metrics server listening", "addr", opts.MetricsAddr)
					if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("Metrics server failed", "error", err)
					}
				}()
			}

			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
			}

			logger.Info("Supervising streamers", "count", len(store.GetEnabledStreamers()))
			_ = supervisor.Run(ctx, store.GetStreamers())
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			_ = watcher.Stop()

			if metricsServer != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = metricsServer.Shutdown(shutdownCtx)
			}
			bridge.Close()
		})
	})

	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateRecordCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	cli.Run()
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
