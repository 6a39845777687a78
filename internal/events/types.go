package events

// Event type constants for kelindar/event.
const (
	TypeSegmentOpened uint32 = iota + 1
	TypeCaptureProgress
	TypeSessionStarted
	TypeSessionFinished
	TypeUploadQueued
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SegmentOpenedEvent is published when the capture engine opens a new
// segment file.
type SegmentOpenedEvent struct {
	StreamerID string `json:"streamer_id"`
	Path       string `json:"path"`
}

// Type returns the event type identifier for SegmentOpenedEvent.
func (e SegmentOpenedEvent) Type() uint32 { return TypeSegmentOpened }

// CaptureProgressEvent carries one parsed progress report from the capture
// engine.
type CaptureProgressEvent struct {
	StreamerID string `json:"streamer_id"`
	SizeKB     int64  `json:"size_kb"`
	DeltaKB    int64  `json:"delta_kb"`
	Bitrate    string `json:"bitrate"`
}

// Type returns the event type identifier for CaptureProgressEvent.
func (e CaptureProgressEvent) Type() uint32 { return TypeCaptureProgress }

// SessionStartedEvent is published when a worker observes a streamer go
// live and starts capturing.
type SessionStartedEvent struct {
	StreamerID string `json:"streamer_id"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionFinishedEvent is published after a live session ends and the
// end-of-stream actions have been dispatched.
type SessionFinishedEvent struct {
	StreamerID string `json:"streamer_id"`
	Files      int    `json:"files"`
	Bytes      int64  `json:"bytes"`
}

// Type returns the event type identifier for SessionFinishedEvent.
func (e SessionFinishedEvent) Type() uint32 { return TypeSessionFinished }

// UploadQueuedEvent is published when an upload job is handed to the
// upload service.
type UploadQueuedEvent struct {
	StreamerID string `json:"streamer_id"`
	JobID      int64  `json:"job_id"`
	Items      int    `json:"items"`
}

// Type returns the event type identifier for UploadQueuedEvent.
func (e UploadQueuedEvent) Type() uint32 { return TypeUploadQueued }
