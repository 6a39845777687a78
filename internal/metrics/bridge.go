package metrics

import (
	"github.com/liverec/liverec/internal/events"
)

// Bridge feeds capture events from the bus into the Prometheus collectors.
type Bridge struct {
	unsubs []func()
}

// NewBridge subscribes to the relevant events on the bus.
func NewBridge(bus *events.Bus) *Bridge {
	b := &Bridge{}
	b.unsubs = append(b.unsubs,
		bus.Subscribe(func(e events.CaptureProgressEvent) {
			SetProgress(e.StreamerID, e.SizeKB, e.Bitrate)
		}),
		bus.Subscribe(func(e events.SegmentOpenedEvent) {
			IncSegments(e.StreamerID)
		}),
		bus.Subscribe(func(e events.SessionFinishedEvent) {
			IncSessions(e.StreamerID)
		}),
		bus.Subscribe(func(e events.UploadQueuedEvent) {
			IncUploadJobs(e.StreamerID)
		}),
	)
	return b
}

// Close unsubscribes the bridge from the bus.
func (b *Bridge) Close() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
}
