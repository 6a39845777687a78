package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/liverec/liverec/internal/action"
	"github.com/liverec/liverec/internal/capture"
	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/metrics"
	"github.com/liverec/liverec/internal/platform"
)

// Options configures a Supervisor.
type Options struct {
	Invoker    *capture.Invoker
	Dispatcher *action.Dispatcher
	Bus        *events.Bus
	Logger     *slog.Logger
	Debug      bool

	MaxRetries    int
	RetryDelay    time.Duration
	RestDelay     time.Duration
	Cooldown      time.Duration
	PluginFactory func(platform.Deps) (platform.Plugin, error)
}

// Supervisor fans out one worker per enabled streamer and keeps worker
// failures isolated from each other. It returns only when its context is
// cancelled.
type Supervisor struct {
	opts Options
	live *liveSet

	mu      sync.Mutex
	ctx     context.Context
	workers map[string]*workerHandle
	wg      sync.WaitGroup
}

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a supervisor.
func NewSupervisor(opts Options) *Supervisor {
	if opts.PluginFactory == nil {
		opts.PluginFactory = platform.New
	}
	return &Supervisor{
		opts:    opts,
		live:    newLiveSet(),
		workers: make(map[string]*workerHandle),
	}
}

// Run spawns workers for the given streamers and blocks until ctx is
// cancelled and every worker has terminated.
func (s *Supervisor) Run(ctx context.Context, streamers map[string]config.Streamer) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.Reload(streamers)

	<-ctx.Done()
	s.wg.Wait()
	s.opts.Logger.Info("All workers stopped")
	return ctx.Err()
}

// Reload reconciles the running worker set against a fresh streamer map:
// workers for removed or disabled streamers are cancelled, new enabled
// streamers get a worker.
func (s *Supervisor) Reload(streamers map[string]config.Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil || s.ctx.Err() != nil {
		return
	}

	for id, h := range s.workers {
		streamer, ok := streamers[id]
		if ok && streamer.Enabled {
			continue
		}
		s.opts.Logger.Info("Stopping worker, streamer removed or disabled", "streamer", id)
		h.cancel()
		delete(s.workers, id)
		metrics.DeleteStreamer(id)
	}

	for id, streamer := range streamers {
		if !streamer.Enabled {
			continue
		}
		if _, running := s.workers[id]; running {
			continue
		}
		s.spawn(streamer)
	}
}

// spawn starts one worker goroutine. Must hold s.mu.
func (s *Supervisor) spawn(streamer config.Streamer) {
	plugin, err := s.opts.PluginFactory(platform.Deps{
		Streamer: streamer,
		Invoker:  s.opts.Invoker,
		Bus:      s.opts.Bus,
		Logger:   s.opts.Logger.With("streamer", streamer.ID),
		Debug:    s.opts.Debug,
	})
	if err != nil {
		s.opts.Logger.Error("Skipping streamer", "streamer", streamer.ID, "error", err)
		return
	}

	worker := newWorker(
		streamer,
		plugin,
		s.opts.Dispatcher,
		s.opts.Bus,
		s.live,
		s.opts.MaxRetries,
		s.opts.RetryDelay,
		s.opts.Logger,
	)
	if s.opts.RestDelay > 0 {
		worker.restDelay = s.opts.RestDelay
	}
	if s.opts.Cooldown > 0 {
		worker.cooldown = s.opts.Cooldown
	}

	wctx, cancel := context.WithCancel(s.ctx)
	h := &workerHandle{cancel: cancel, done: make(chan struct{})}
	s.workers[streamer.ID] = h

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(h.done)
		defer cancel()
		defer s.forget(streamer.ID, h)
		// A panicking worker is logged and dies alone; siblings keep
		// running.
		defer func() {
			if r := recover(); r != nil {
				s.opts.Logger.Error("Worker terminated by panic",
					"streamer", streamer.ID, "panic", r)
			}
		}()
		worker.Run(wctx)
	}()

	s.opts.Logger.Info("Worker spawned", "streamer", streamer.ID, "platform", streamer.Platform)
}

// forget drops the handle if it is still the registered one; Reload may
// already have replaced it.
func (s *Supervisor) forget(id string, h *workerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers[id] == h {
		delete(s.workers, id)
	}
}
