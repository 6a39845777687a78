// Package types holds the core data model shared across the recorder:
// capture artifacts, completion actions, and upload jobs.
package types

import "time"

// StreamData is a single finalized capture artifact. It is created by the
// platform plugin's segment collector when a segment (or the whole
// recording) is closed and is never mutated afterwards.
type StreamData struct {
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	StreamerID string    `json:"streamer_id"`
}

// Action variants.
const (
	ActionUpload  = "upload"
	ActionCommand = "command"
)

// Action is a completion effect attached to a streamer. Upload actions hand
// the files to the upload service, command actions run a subprocess. The
// Type field is open for extension; dispatchers must reject variants they
// do not know.
type Action struct {
	Type    string `toml:"type" json:"type"`
	Enabled bool   `toml:"enabled" json:"enabled"`

	// Upload fields
	RemotePath string   `toml:"remote_path,omitempty" json:"remote_path,omitempty"`
	ExtraArgs  []string `toml:"extra_args,omitempty" json:"extra_args,omitempty"`

	// Command fields. Program is a space-separated argv; arguments must not
	// contain embedded whitespace (no shell, no quoting).
	Program string `toml:"program,omitempty" json:"program,omitempty"`
}

// UploadConfig carries the destination settings for one upload job.
type UploadConfig struct {
	RemotePath string   `json:"remote_path"`
	Args       []string `json:"args"`
}

// UploadJob is a unit of work for the upload service. ID zero means the job
// has not been assigned identity yet; the upload service assigns one on
// submission.
type UploadJob struct {
	ID              int64        `json:"id"`
	CreatedAtMillis int64        `json:"created_at_millis"`
	Items           []StreamData `json:"items"`
	Config          UploadConfig `json:"config"`
}

// Enabled filters a slice of actions down to the enabled ones.
func Enabled(actions []Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}
