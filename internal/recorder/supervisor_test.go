package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/liverec/liverec/internal/action"
	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/platform"
)

func supervisorForTest(plugins map[string]*scriptedPlugin) *Supervisor {
	dispatcher := action.NewDispatcher(&recordingUploads{}, events.New(), testLogger())
	return NewSupervisor(Options{
		Dispatcher: dispatcher,
		Bus:        events.New(),
		Logger:     testLogger(),
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		RestDelay:  time.Millisecond,
		Cooldown:   time.Millisecond,
		PluginFactory: func(deps platform.Deps) (platform.Plugin, error) {
			p, ok := plugins[deps.Streamer.ID]
			if !ok {
				return nil, platform.ErrUnknownPlatform
			}
			return p, nil
		},
	})
}

func enabledStreamer(id string) config.Streamer {
	return config.Streamer{ID: id, Name: id, Platform: "HUYA", URL: "https://example.test/" + id, Enabled: true}
}

func TestSupervisorSiblingIsolation(t *testing.T) {
	// Worker x panics on every probe; worker y must keep polling and the
	// supervisor must not return.
	plugins := map[string]*scriptedPlugin{
		"x": {probe: func(n int) (bool, error) { panic("boom") }},
		"y": {},
	}
	s := supervisorForTest(plugins)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, map[string]config.Streamer{
			"x": enabledStreamer("x"),
			"y": enabledStreamer("y"),
		})
	}()

	waitFor(t, 5*time.Second, func() bool { return plugins["y"].probeCount() >= 5 },
		"worker y stopped while sibling x was failing")

	select {
	case <-done:
		t.Fatal("supervisor returned while workers were running")
	default:
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not return after cancellation")
	}
}

func TestSupervisorSkipsDisabled(t *testing.T) {
	plugins := map[string]*scriptedPlugin{"a": {}, "b": {}}
	s := supervisorForTest(plugins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	streamers := map[string]config.Streamer{
		"a": enabledStreamer("a"),
		"b": {ID: "b", Platform: "HUYA", URL: "u", Enabled: false},
	}
	go func() { _ = s.Run(ctx, streamers) }()

	waitFor(t, 5*time.Second, func() bool { return plugins["a"].probeCount() >= 2 },
		"enabled streamer was not supervised")
	if plugins["b"].probeCount() != 0 {
		t.Error("disabled streamer must not be supervised")
	}
}

func TestSupervisorUnknownPlatformSkipped(t *testing.T) {
	// The factory fails for an unknown streamer; the supervisor logs,
	// skips it, and keeps supervising the rest.
	plugins := map[string]*scriptedPlugin{"known": {}}
	s := supervisorForTest(plugins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = s.Run(ctx, map[string]config.Streamer{
			"known":   enabledStreamer("known"),
			"unknown": enabledStreamer("unknown"),
		})
	}()

	waitFor(t, 5*time.Second, func() bool { return plugins["known"].probeCount() >= 2 },
		"known streamer was not supervised")
}

func TestSupervisorReload(t *testing.T) {
	plugins := map[string]*scriptedPlugin{"a": {}, "b": {}}
	s := supervisorForTest(plugins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = s.Run(ctx, map[string]config.Streamer{"a": enabledStreamer("a")})
	}()

	waitFor(t, 5*time.Second, func() bool { return plugins["a"].probeCount() >= 2 },
		"streamer a was not supervised")

	// Reload: a removed, b added.
	s.Reload(map[string]config.Streamer{"b": enabledStreamer("b")})

	waitFor(t, 5*time.Second, func() bool { return plugins["b"].probeCount() >= 2 },
		"streamer b was not picked up on reload")

	// a's worker is cancelled; its probe count settles.
	time.Sleep(50 * time.Millisecond)
	before := plugins["a"].probeCount()
	time.Sleep(50 * time.Millisecond)
	if after := plugins["a"].probeCount(); after != before {
		t.Errorf("streamer a kept polling after removal: %d -> %d", before, after)
	}
}
