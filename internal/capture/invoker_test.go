package capture

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvokerRunParsesOutput(t *testing.T) {
	script := `
echo "[segment @ 0x1] Opening 'seg0.mp4' for writing" >&2
echo "size=     100kB time=00:00:01.00 bitrate= 800.0kbits/s speed=1.0x" >&2
echo "size=     250kB time=00:00:02.00 bitrate= 810.0kbits/s speed=1.0x" >&2
echo "[segment @ 0x1] Opening 'seg1.mp4' for writing" >&2
echo "some informational line" >&2
`
	iv := NewInvoker("sh", testLogger(), testLogger())

	var mu sync.Mutex
	var segments []string
	var progress []Progress

	exitCode, err := iv.Run(context.Background(), "test", []string{"-c", script}, Hooks{
		OnSegmentOpen: func(path string) {
			mu.Lock()
			segments = append(segments, path)
			mu.Unlock()
		},
		OnProgress: func(p Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(segments) != 2 || segments[0] != "seg0.mp4" || segments[1] != "seg1.mp4" {
		t.Errorf("segments = %q, want [seg0.mp4 seg1.mp4]", segments)
	}
	if len(progress) != 2 {
		t.Fatalf("expected 2 progress events, got %d", len(progress))
	}
	if progress[0].SizeKB != 100 || progress[1].SizeKB != 250 || progress[1].DeltaKB != 150 {
		t.Errorf("unexpected progress events: %+v", progress)
	}
}

func TestInvokerRunExitCode(t *testing.T) {
	iv := NewInvoker("sh", testLogger(), testLogger())

	exitCode, err := iv.Run(context.Background(), "test", []string{"-c", "exit 42"}, Hooks{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if exitCode != 42 {
		t.Errorf("exit code = %d, want 42", exitCode)
	}
}

func TestInvokerRunCancellation(t *testing.T) {
	iv := NewInvoker("sh", testLogger(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	script := `trap 'exit 0' INT TERM; while :; do sleep 0.1; done`
	_, err := iv.Run(ctx, "test", []string{"-c", script}, Hooks{})
	if err == nil {
		t.Error("expected context error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("cancellation took %v, expected prompt shutdown", elapsed)
	}
}

func TestInvokerSpawnFailure(t *testing.T) {
	iv := NewInvoker("/nonexistent/binary", testLogger(), testLogger())

	exitCode, err := iv.Run(context.Background(), "test", nil, Hooks{})
	if err == nil {
		t.Error("expected error for missing binary")
	}
	if exitCode != -1 {
		t.Errorf("exit code = %d, want -1", exitCode)
	}
}
