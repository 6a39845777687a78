package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/liverec/liverec/internal/types"
)

func TestStreamerStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamers.toml")
	store := NewStreamerStore(path)

	streamer := Streamer{
		ID:       "mei",
		Name:     "Mei",
		Platform: "HUYA",
		URL:      "https://www.huya.com/mei",
		Enabled:  true,
		Download: &DownloadConfig{
			Headers:            map[string]string{"Referer": "https://www.huya.com"},
			Cookies:            "c=1",
			Format:             "mp4",
			Segmented:          true,
			SegmentTimeSeconds: 3600,
			OutputTemplate:     "rec/{{name}}_%Y%m%d_%H%M%S.mp4",
			OnStreamingFinished: []types.Action{
				{Type: types.ActionUpload, Enabled: true, RemotePath: "remote:vods"},
			},
		},
	}
	if err := store.AddStreamer(streamer); err != nil {
		t.Fatalf("AddStreamer failed: %v", err)
	}

	fresh := NewStreamerStore(path)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, exists := fresh.GetStreamer("mei")
	if !exists {
		t.Fatal("streamer not found after reload")
	}
	if !reflect.DeepEqual(got, streamer) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, streamer)
	}
}

func TestStreamerStoreMissingFile(t *testing.T) {
	store := NewStreamerStore(filepath.Join(t.TempDir(), "nope.toml"))
	if err := store.Load(); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(store.GetStreamers()) != 0 {
		t.Error("expected empty store")
	}
}

func TestStreamerStoreBackfillsIDAndName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamers.toml")
	doc := `
version = 1

[streamers.alice]
platform = "DOUYIN"
url = "https://live.douyin.com/123"
enabled = true
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStreamerStore(path)
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, _ := store.GetStreamer("alice")
	if got.ID != "alice" || got.Name != "alice" {
		t.Errorf("expected ID and Name backfilled from key, got %+v", got)
	}
}

func TestGetEnabledStreamers(t *testing.T) {
	store := NewStreamerStore(filepath.Join(t.TempDir(), "s.toml"))
	_ = store.AddStreamer(Streamer{ID: "on", URL: "u", Platform: "HUYA", Enabled: true})
	_ = store.AddStreamer(Streamer{ID: "off", URL: "u", Platform: "HUYA", Enabled: false})

	enabled := store.GetEnabledStreamers()
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled streamer, got %d", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Error("expected streamer 'on' to be enabled")
	}
}

func TestHeaderPairsOrdering(t *testing.T) {
	s := Streamer{
		Download: &DownloadConfig{
			Headers: map[string]string{
				"Referer":    "R",
				"User-Agent": "UA",
				"Accept":     "A",
			},
		},
	}

	want := [][2]string{
		{"User-Agent", "UA"},
		{"Accept", "A"},
		{"Referer", "R"},
	}
	for i := 0; i < 5; i++ {
		if got := s.HeaderPairs(); !reflect.DeepEqual(got, want) {
			t.Fatalf("HeaderPairs = %v, want %v", got, want)
		}
	}
}

func TestHeaderPairsEmpty(t *testing.T) {
	if got := (Streamer{}).HeaderPairs(); got != nil {
		t.Errorf("expected nil pairs for no headers, got %v", got)
	}
}
