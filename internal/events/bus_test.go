package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitForCount(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("count = %d, want %d", counter.Load(), want)
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()

	var segments atomic.Int32
	unsub := bus.Subscribe(func(e SegmentOpenedEvent) {
		if e.StreamerID == "s1" {
			segments.Add(1)
		}
	})
	defer unsub()

	bus.Publish(SegmentOpenedEvent{StreamerID: "s1", Path: "a.mp4"})
	bus.Publish(SegmentOpenedEvent{StreamerID: "s1", Path: "b.mp4"})

	waitForCount(t, &segments, 2)
}

func TestBusTypeSelectivity(t *testing.T) {
	bus := New()

	var progress atomic.Int32
	unsub := bus.Subscribe(func(e CaptureProgressEvent) {
		progress.Add(1)
	})
	defer unsub()

	bus.Publish(SegmentOpenedEvent{StreamerID: "s1", Path: "a.mp4"})
	bus.Publish(CaptureProgressEvent{StreamerID: "s1", SizeKB: 10})

	waitForCount(t, &progress, 1)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()

	var count atomic.Int32
	unsub := bus.Subscribe(func(e SessionStartedEvent) {
		count.Add(1)
	})

	bus.Publish(SessionStartedEvent{StreamerID: "s1"})
	waitForCount(t, &count, 1)

	unsub()
	bus.Publish(SessionStartedEvent{StreamerID: "s1"})

	time.Sleep(50 * time.Millisecond)
	if count.Load() != 1 {
		t.Errorf("count = %d after unsubscribe, want 1", count.Load())
	}
}
