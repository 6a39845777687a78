package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/liverec/liverec/internal/capture"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/types"
)

// basePlugin implements the capture half of the plugin contract. Platform
// plugins embed it and supply liveness checking and stream-URL resolution.
type basePlugin struct {
	deps       Deps
	checkLive  func(ctx context.Context) (bool, error)
	resolveURL func(ctx context.Context) (string, error)

	mu     sync.Mutex
	parted func(types.StreamData)
}

func newBase(deps Deps) *basePlugin {
	return &basePlugin{deps: deps}
}

// ShouldDownload probes the platform for liveness.
func (p *basePlugin) ShouldDownload(ctx context.Context) (bool, error) {
	return p.checkLive(ctx)
}

// OnPartedDownload sets the per-segment callback.
func (p *basePlugin) OnPartedDownload(fn func(types.StreamData)) {
	p.mu.Lock()
	p.parted = fn
	p.mu.Unlock()
}

func (p *basePlugin) partedCallback() func(types.StreamData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parted
}

// Download resolves the stream URL, drives the capture engine to
// completion, and returns the finalized files. Segment callbacks are
// dispatched serially off the capture reader.
func (p *basePlugin) Download(ctx context.Context) ([]types.StreamData, error) {
	url, err := p.resolveURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve stream url: %w", err)
	}

	streamer := p.deps.Streamer
	dl := streamer.Download
	req := capture.Request{
		Headers: streamer.HeaderPairs(),
		URL:     url,
		Debug:   p.deps.Debug,
	}
	if dl != nil {
		req.Cookies = dl.Cookies
		req.Format = strings.ToLower(dl.Format)
		req.Segmented = dl.Segmented
		req.SegmentTimeSeconds = dl.SegmentTimeSeconds
		req.SegmentPartBytes = dl.SegmentPartBytes
	}
	req.Output = p.outputPath()

	if req.PartBytesIgnored() {
		p.deps.Logger.Debug("segment_part_bytes ignored, time-based segmentation wins",
			"streamer", streamer.ID, "part_bytes", req.SegmentPartBytes)
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	collector := newSegmentCollector(p, req)
	defer collector.close()

	exitCode, runErr := p.deps.Invoker.Run(ctx, streamer.ID, capture.BuildArgs(req), capture.Hooks{
		OnSegmentOpen: collector.segmentOpened,
		OnProgress:    collector.progress,
	})
	if exitCode != 0 {
		p.deps.Logger.Warn("Capture engine exited non-zero",
			"streamer", streamer.ID, "exit_code", exitCode)
	}

	files := collector.finish()
	if runErr != nil {
		return files, runErr
	}
	return files, nil
}

// outputPath expands the output template. {{name}} expands to the streamer
// name; strftime escapes are expanded here for single-file captures and by
// the engine in segmented mode.
func (p *basePlugin) outputPath() string {
	streamer := p.deps.Streamer
	template := ""
	segmented := false
	format := "flv"
	if streamer.Download != nil {
		template = streamer.Download.OutputTemplate
		segmented = streamer.Download.Segmented
		if streamer.Download.Format != "" {
			format = strings.ToLower(streamer.Download.Format)
		}
	}
	if template == "" {
		template = "{{name}}_%Y%m%d_%H%M%S." + format
	}

	out := strings.ReplaceAll(template, "{{name}}", sanitizeName(streamer.Name))
	if !segmented {
		out = expandStrftime(out, time.Now())
	}
	return out
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// expandStrftime expands the strftime escapes the engine would have
// handled in segmented mode.
func expandStrftime(s string, t time.Time) string {
	replacer := strings.NewReplacer(
		"%Y", t.Format("2006"),
		"%m", t.Format("01"),
		"%d", t.Format("02"),
		"%H", t.Format("15"),
		"%M", t.Format("04"),
		"%S", t.Format("05"),
	)
	return replacer.Replace(s)
}

// segmentCollector turns engine events into StreamData records. A segment
// is finalized when the next one opens, or when the capture exits. Parted
// callbacks run on their own goroutine behind a 64-entry buffer, so the
// capture reader only waits when 64 finalized segments are still pending;
// dispatch order is preserved.
type segmentCollector struct {
	plugin  *basePlugin
	current string
	started time.Time
	files   []types.StreamData

	partedCh   chan types.StreamData
	dispatched sync.WaitGroup
}

func newSegmentCollector(p *basePlugin, req capture.Request) *segmentCollector {
	c := &segmentCollector{
		plugin:   p,
		partedCh: make(chan types.StreamData, 64),
	}
	if !req.Segmented {
		// Single-file capture: the only segment is the output itself.
		c.current = req.Output
		c.started = time.Now()
	}

	c.dispatched.Add(1)
	go func() {
		defer c.dispatched.Done()
		for sd := range c.partedCh {
			if cb := p.partedCallback(); cb != nil {
				cb(sd)
			}
		}
	}()

	return c
}

func (c *segmentCollector) segmentOpened(path string) {
	c.finalizeCurrent()
	c.current = path
	c.started = time.Now()
	c.plugin.deps.Bus.Publish(events.SegmentOpenedEvent{
		StreamerID: c.plugin.deps.Streamer.ID,
		Path:       path,
	})
}

func (c *segmentCollector) progress(p capture.Progress) {
	c.plugin.deps.Bus.Publish(events.CaptureProgressEvent{
		StreamerID: c.plugin.deps.Streamer.ID,
		SizeKB:     p.SizeKB,
		DeltaKB:    p.DeltaKB,
		Bitrate:    p.Bitrate,
	})
}

func (c *segmentCollector) finalizeCurrent() {
	if c.current == "" {
		return
	}

	sd := types.StreamData{
		Path:       c.current,
		StartTime:  c.started,
		EndTime:    time.Now(),
		StreamerID: c.plugin.deps.Streamer.ID,
	}
	if info, err := os.Stat(c.current); err == nil {
		sd.SizeBytes = info.Size()
	} else {
		c.plugin.deps.Logger.Warn("Cannot stat finalized segment",
			"path", c.current, "error", err)
	}

	c.files = append(c.files, sd)
	c.current = ""
	c.partedCh <- sd
}

// finish finalizes the trailing segment and returns all files. Must be
// called after the engine has exited.
func (c *segmentCollector) finish() []types.StreamData {
	c.finalizeCurrent()
	return c.files
}

// close drains the parted dispatcher.
func (c *segmentCollector) close() {
	close(c.partedCh)
	c.dispatched.Wait()
}
