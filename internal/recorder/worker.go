// Package recorder is the supervision core: one worker per enabled
// streamer polls for liveness, drives captures, and fires completion
// actions, all under a supervisor that isolates worker failures.
package recorder

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/liverec/liverec/internal/action"
	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/metrics"
	"github.com/liverec/liverec/internal/platform"
	"github.com/liverec/liverec/internal/types"
)

// restDelay is the poll interval while no session is in progress; cooldown
// is the pause after an end-of-session action cycle.
const (
	defaultRestDelay = 60 * time.Second
	defaultCooldown  = 60 * time.Second
)

// Worker owns the full lifecycle of one streamer. Once running, it
// terminates only when its context is cancelled; Run returns at once if the
// streamer is already supervised.
type Worker struct {
	streamer config.Streamer
	plugin   platform.Plugin
	actions  *action.Dispatcher
	bus      *events.Bus
	logger   *slog.Logger
	live     *liveSet

	maxRetries int
	retryDelay time.Duration
	restDelay  time.Duration
	cooldown   time.Duration

	// Runtime state, owned by the worker goroutine, never shared.
	isLive     bool
	retryCount int
	collected  []types.StreamData
}

func newWorker(
	streamer config.Streamer,
	plugin platform.Plugin,
	actions *action.Dispatcher,
	bus *events.Bus,
	live *liveSet,
	maxRetries int,
	retryDelay time.Duration,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		streamer:   streamer,
		plugin:     plugin,
		actions:    actions,
		bus:        bus,
		logger:     logger.With("streamer", streamer.ID),
		live:       live,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		restDelay:  defaultRestDelay,
		cooldown:   defaultCooldown,
	}
}

// Run executes the poll/capture loop until ctx is cancelled. A streamer
// already under supervision is left alone.
func (w *Worker) Run(ctx context.Context) {
	if !w.live.claim(w.streamer.ID) {
		w.logger.Warn("Streamer already supervised, refusing double supervision")
		return
	}
	defer w.live.release(w.streamer.ID)

	// Hook lifetime is tied to this worker: a recreated worker never
	// observes a stale closure.
	if parted := w.partedActions(); len(parted) > 0 {
		w.plugin.OnPartedDownload(func(sd types.StreamData) {
			w.actions.DispatchAll(ctx, parted, []types.StreamData{sd})
		})
		defer w.plugin.OnPartedDownload(nil)
	}

	w.logger.Info("Worker started", "platform", w.streamer.Platform, "url", w.streamer.URL)

	for ctx.Err() == nil {
		w.iterate(ctx)
	}

	w.logger.Info("Worker stopped")
}

// iterate runs one cycle of the state machine. Panics are contained here
// so a misbehaving plugin cannot take the worker down.
func (w *Worker) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Worker iteration panicked", "panic", r)
			w.sleep(ctx, w.restDelay)
		}
	}()

	// Liveness is re-observed every iteration; a stale true here would
	// skip the probe below.
	w.setLive(false)

	if w.retryCount > w.maxRetries {
		w.endOfRetryWindow(ctx)
		return
	}

	live, err := w.plugin.ShouldDownload(ctx)
	if err != nil {
		w.logger.Error("Liveness probe failed", "error", err)
		live = false
	}

	if live {
		w.setLive(true)
		if len(w.collected) == 0 {
			w.bus.Publish(events.SessionStartedEvent{StreamerID: w.streamer.ID})
		}
		w.logger.Info("Streamer is live, starting capture")

		files, err := w.plugin.Download(ctx)
		if err != nil {
			w.logger.Error("Capture failed", "error", err)
			files = nil
		}

		w.retryCount = 0
		if len(files) > 0 {
			w.collected = append(w.collected, files...)
		} else {
			w.logger.Warn("Capture produced no files")
		}
	} else {
		w.logger.Debug("Streamer not live", "retry_count", w.retryCount)
	}

	w.retryCount++
	metrics.SetRetryCount(w.streamer.ID, w.retryCount)

	// Asymmetric back-off: probe fast while a session is paused to catch
	// reconnection, slow at rest.
	if len(w.collected) > 0 {
		w.sleep(ctx, w.retryDelay)
	} else {
		w.sleep(ctx, w.restDelay)
	}
}

// endOfRetryWindow handles retry_count crossing max_retries: a false-alarm
// window just resets; a real session fires the end-of-stream actions
// exactly once against a snapshot.
func (w *Worker) endOfRetryWindow(ctx context.Context) {
	if len(w.collected) == 0 {
		w.retryCount = 0
		metrics.SetRetryCount(w.streamer.ID, 0)
		return
	}

	snapshot := slices.Clone(w.collected)
	var bytes int64
	for _, sd := range snapshot {
		bytes += sd.SizeBytes
	}
	w.logger.Info("Session ended, dispatching completion actions",
		"files", len(snapshot), "bytes", bytes)

	w.actions.DispatchAll(ctx, w.finishedActions(), snapshot)
	w.bus.Publish(events.SessionFinishedEvent{
		StreamerID: w.streamer.ID,
		Files:      len(snapshot),
		Bytes:      bytes,
	})

	w.retryCount = 0
	w.collected = nil
	metrics.SetRetryCount(w.streamer.ID, 0)
	w.sleep(ctx, w.cooldown)
}

func (w *Worker) setLive(live bool) {
	w.isLive = live
	metrics.SetLive(w.streamer.ID, live)
}

func (w *Worker) partedActions() []types.Action {
	if w.streamer.Download == nil {
		return nil
	}
	return types.Enabled(w.streamer.Download.OnPartedDownload)
}

func (w *Worker) finishedActions() []types.Action {
	if w.streamer.Download == nil {
		return nil
	}
	return w.streamer.Download.OnStreamingFinished
}

// sleep waits for the delay or until ctx is cancelled, whichever is first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// liveSet tracks which streamers are currently under supervision. It backs
// the double-supervision guard.
type liveSet struct {
	mu sync.Mutex
	m  map[string]bool
}

func newLiveSet() *liveSet {
	return &liveSet{m: make(map[string]bool)}
}

func (ls *liveSet) claim(id string) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.m[id] {
		return false
	}
	ls.m[id] = true
	return true
}

func (ls *liveSet) release(id string) {
	ls.mu.Lock()
	delete(ls.m, id)
	ls.mu.Unlock()
}
