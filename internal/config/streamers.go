package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/liverec/liverec/internal/types"
)

// DownloadConfig tunes how a streamer's broadcast is captured and what
// happens to the resulting files.
type DownloadConfig struct {
	Headers map[string]string `toml:"headers,omitempty" json:"headers,omitempty"`
	Cookies string            `toml:"cookies,omitempty" json:"cookies,omitempty"`

	// Container format for the output (flv, mp4, mov, avi, ...). Empty means
	// let the capture engine decide from the output path.
	Format string `toml:"format,omitempty" json:"format,omitempty"`

	// Segmented splits the capture into parts. When enabled, time-based
	// splitting wins; SegmentPartBytes is ignored.
	Segmented          bool  `toml:"segmented" json:"segmented"`
	SegmentTimeSeconds int64 `toml:"segment_time_seconds,omitempty" json:"segment_time_seconds,omitempty"`
	SegmentPartBytes   int64 `toml:"segment_part_bytes,omitempty" json:"segment_part_bytes,omitempty"`

	// OutputTemplate is the output path template. {{name}} expands to the
	// streamer name; strftime escapes (%Y%m%d etc.) are expanded by the
	// capture engine in segmented mode and at capture start otherwise.
	OutputTemplate string `toml:"output_template,omitempty" json:"output_template,omitempty"`

	OnPartedDownload    []types.Action `toml:"on_parted_download,omitempty" json:"on_parted_download,omitempty"`
	OnStreamingFinished []types.Action `toml:"on_streaming_finished,omitempty" json:"on_streaming_finished,omitempty"`
}

// Streamer is one configured broadcaster. Read-only to the recorder core.
type Streamer struct {
	ID       string          `toml:"id" json:"id"`
	Name     string          `toml:"name" json:"name"`
	Platform string          `toml:"platform" json:"platform"`
	URL      string          `toml:"url" json:"url"`
	Enabled  bool            `toml:"enabled" json:"enabled"`
	Download *DownloadConfig `toml:"download,omitempty" json:"download,omitempty"`
}

// HeaderPairs returns the download headers as an ordered list suitable for
// argv construction: User-Agent first, the rest sorted by key. Identical
// configs therefore always encode to identical argv.
func (s Streamer) HeaderPairs() [][2]string {
	if s.Download == nil || len(s.Download.Headers) == 0 {
		return nil
	}
	pairs := make([][2]string, 0, len(s.Download.Headers))
	if ua, ok := s.Download.Headers["User-Agent"]; ok {
		pairs = append(pairs, [2]string{"User-Agent", ua})
	}
	rest := make([]string, 0, len(s.Download.Headers))
	for k := range s.Download.Headers {
		if k != "User-Agent" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		pairs = append(pairs, [2]string{k, s.Download.Headers[k]})
	}
	return pairs
}

// StreamersConfig is the on-disk shape of the streamers file.
type StreamersConfig struct {
	Version   int                 `toml:"version" json:"version"`
	Streamers map[string]Streamer `toml:"streamers" json:"streamers"`
}

// StreamerStore manages the streamers configuration file.
type StreamerStore struct {
	configPath string
	config     *StreamersConfig
}

// NewStreamerStore creates a store backed by the given path.
func NewStreamerStore(configPath string) *StreamerStore {
	if configPath == "" {
		configPath = "streamers.toml"
	}

	return &StreamerStore{
		configPath: configPath,
		config: &StreamersConfig{
			Version:   1,
			Streamers: make(map[string]Streamer),
		},
	}
}

// Load loads the streamers configuration from file. A missing file is not
// an error; the store is simply empty.
func (ss *StreamerStore) Load() error {
	if _, err := os.Stat(ss.configPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(ss.configPath)
	if err != nil {
		return fmt.Errorf("failed to read streamers config: %w", err)
	}

	if err := toml.Unmarshal(data, ss.config); err != nil {
		return fmt.Errorf("failed to parse streamers config: %w", err)
	}

	if ss.config.Streamers == nil {
		ss.config.Streamers = make(map[string]Streamer)
	}
	if ss.config.Version == 0 {
		ss.config.Version = 1
	}

	// IDs live in the map keys; backfill the struct field so callers can
	// pass Streamer values around on their own.
	for id, s := range ss.config.Streamers {
		if s.ID == "" {
			s.ID = id
			ss.config.Streamers[id] = s
		}
		if s.Name == "" {
			s.Name = id
			ss.config.Streamers[id] = s
		}
	}

	return nil
}

// Save writes the streamers configuration back to disk.
func (ss *StreamerStore) Save() error {
	dir := filepath.Dir(ss.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(ss.config)
	if err != nil {
		return fmt.Errorf("failed to marshal streamers config: %w", err)
	}

	if err := os.WriteFile(ss.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write streamers config: %w", err)
	}

	return nil
}

// AddStreamer adds a streamer and persists the store.
func (ss *StreamerStore) AddStreamer(s Streamer) error {
	if s.ID == "" {
		return fmt.Errorf("streamer ID cannot be empty")
	}
	if s.URL == "" {
		return fmt.Errorf("streamer URL cannot be empty")
	}
	if s.Name == "" {
		s.Name = s.ID
	}

	ss.config.Streamers[s.ID] = s
	return ss.Save()
}

// RemoveStreamer removes a streamer and persists the store.
func (ss *StreamerStore) RemoveStreamer(id string) error {
	if _, exists := ss.config.Streamers[id]; !exists {
		return fmt.Errorf("streamer %s not found", id)
	}

	delete(ss.config.Streamers, id)
	return ss.Save()
}

// GetStreamer retrieves a streamer by ID.
func (ss *StreamerStore) GetStreamer(id string) (Streamer, bool) {
	s, exists := ss.config.Streamers[id]
	return s, exists
}

// GetStreamers returns all streamers.
func (ss *StreamerStore) GetStreamers() map[string]Streamer {
	return ss.config.Streamers
}

// GetEnabledStreamers returns only enabled streamers.
func (ss *StreamerStore) GetEnabledStreamers() map[string]Streamer {
	enabled := make(map[string]Streamer)
	for id, s := range ss.config.Streamers {
		if s.Enabled {
			enabled[id] = s
		}
	}
	return enabled
}

// LoadStreamers loads the streamers file fresh and returns the full map.
// Used as the loader for the config watcher so reload handlers never see
// stale data.
func LoadStreamers(path string) (map[string]Streamer, error) {
	ss := NewStreamerStore(path)
	if err := ss.Load(); err != nil {
		return nil, err
	}
	return ss.GetStreamers(), nil
}
