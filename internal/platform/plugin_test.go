package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/liverec/liverec/internal/capture"
	"github.com/liverec/liverec/internal/config"
	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func depsFor(streamer config.Streamer) Deps {
	return Deps{
		Streamer: streamer,
		Invoker:  capture.NewInvoker("sh", testLogger(), testLogger()),
		Bus:      events.New(),
		Logger:   testLogger(),
	}
}

func TestRegistryKnownPlatforms(t *testing.T) {
	tags := Platforms()
	for _, want := range []string{PlatformDouyin, PlatformHuya} {
		if !slices.Contains(tags, want) {
			t.Errorf("expected %s in registry, got %v", want, tags)
		}
	}
}

func TestNewUnknownPlatform(t *testing.T) {
	_, err := New(depsFor(config.Streamer{ID: "s", Platform: "TWITCH"}))
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestHuyaLiveness(t *testing.T) {
	tests := []struct {
		name string
		body string
		live bool
	}{
		{"on air", `{"eLiveStatus":2,"sFlvUrl":"https:\/\/flv.huya.com\/src"}`, true},
		{"offline", `{"eLiveStatus":1}`, false},
		{"replay", `{"eLiveStatus":3}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			plugin, err := New(depsFor(config.Streamer{ID: "s", Platform: PlatformHuya, URL: srv.URL}))
			if err != nil {
				t.Fatal(err)
			}

			live, err := plugin.ShouldDownload(context.Background())
			if err != nil {
				t.Fatalf("ShouldDownload failed: %v", err)
			}
			if live != tt.live {
				t.Errorf("live = %v, want %v", live, tt.live)
			}
		})
	}
}

func TestHuyaLivenessNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>nothing here</html>"))
	}))
	defer srv.Close()

	plugin, _ := New(depsFor(config.Streamer{ID: "s", Platform: PlatformHuya, URL: srv.URL}))
	if _, err := plugin.ShouldDownload(context.Background()); err == nil {
		t.Error("expected error when page has no live status")
	}
}

func TestHuyaStreamURL(t *testing.T) {
	body := `{"eLiveStatus":2,"sFlvUrl":"https:\/\/flv.huya.com\/src","sStreamName":"room123","sFlvUrlSuffix":"flv","sFlvAntiCode":"wsSecret=abc&amp;wsTime=123"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := newHuya(depsFor(config.Streamer{ID: "s", Platform: PlatformHuya, URL: srv.URL})).(*huyaPlugin)
	url, err := p.streamURL(context.Background())
	if err != nil {
		t.Fatalf("streamURL failed: %v", err)
	}
	want := "https://flv.huya.com/src/room123.flv?wsSecret=abc&wsTime=123"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

func TestDouyinLiveness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":2,"status_str":"2","flv_pull_url":{"FULL_HD1":"http:\/\/pull.douyin.com\/hd.flv"}}`))
	}))
	defer srv.Close()

	plugin, err := New(depsFor(config.Streamer{ID: "s", Platform: PlatformDouyin, URL: srv.URL}))
	if err != nil {
		t.Fatal(err)
	}

	live, err := plugin.ShouldDownload(context.Background())
	if err != nil {
		t.Fatalf("ShouldDownload failed: %v", err)
	}
	if !live {
		t.Error("expected live room")
	}
}

func TestDouyinStreamURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":4,"status_str":"4","flv_pull_url":{"FULL_HD1":"http:\/\/pull.douyin.com\/hd.flv?x=1&y=2"}}`))
	}))
	defer srv.Close()

	p := newDouyin(depsFor(config.Streamer{ID: "s", Platform: PlatformDouyin, URL: srv.URL})).(*douyinPlugin)
	url, err := p.streamURL(context.Background())
	if err != nil {
		t.Fatalf("streamURL failed: %v", err)
	}
	want := "http://pull.douyin.com/hd.flv?x=1&y=2"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

func TestBaseOutputPath(t *testing.T) {
	p := newBase(Deps{Streamer: config.Streamer{
		ID:   "s",
		Name: "a/b:c",
		Download: &config.DownloadConfig{
			OutputTemplate: "rec/{{name}}.flv",
		},
	}})

	got := p.outputPath()
	if got != "rec/a_b_c.flv" {
		t.Errorf("outputPath = %q, want sanitized template expansion", got)
	}
}

func TestBaseOutputPathDefaultTemplate(t *testing.T) {
	p := newBase(Deps{Streamer: config.Streamer{
		ID:       "s",
		Name:     "mei",
		Download: &config.DownloadConfig{Format: "mp4"},
	}})

	got := p.outputPath()
	if filepath.Ext(got) != ".mp4" {
		t.Errorf("outputPath = %q, want .mp4 extension", got)
	}
	// Single-file capture: strftime escapes are expanded here.
	if strings.ContainsRune(got, '%') {
		t.Errorf("outputPath = %q, want strftime escapes expanded", got)
	}
}

func TestDownloadSingleFileCollectsOutput(t *testing.T) {
	// The engine invocation fails fast (sh rejects the argv) but the
	// single-file capture path still finalizes the output artifact.
	dir := t.TempDir()
	deps := depsFor(config.Streamer{
		ID:   "s1",
		Name: "mei",
		Download: &config.DownloadConfig{
			Format:         "flv",
			OutputTemplate: filepath.Join(dir, "out.flv"),
		},
	})

	base := newBase(deps)
	base.checkLive = func(context.Context) (bool, error) { return true, nil }
	base.resolveURL = func(context.Context) (string, error) { return "http://example.test/live.flv", nil }

	var parted []types.StreamData
	base.OnPartedDownload(func(sd types.StreamData) { parted = append(parted, sd) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	files, err := base.Download(ctx)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 finalized file, got %d", len(files))
	}
	if files[0].Path != filepath.Join(dir, "out.flv") {
		t.Errorf("path = %q", files[0].Path)
	}
	if files[0].StreamerID != "s1" {
		t.Errorf("streamer id = %q", files[0].StreamerID)
	}
	if len(parted) != 1 {
		t.Errorf("expected 1 parted callback, got %d", len(parted))
	}
}
