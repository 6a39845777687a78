package upload

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/liverec/liverec/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func job(paths ...string) *types.UploadJob {
	items := make([]types.StreamData, len(paths))
	for i, p := range paths {
		items[i] = types.StreamData{Path: p, StreamerID: "s1"}
	}
	return &types.UploadJob{
		Items:  items,
		Config: types.UploadConfig{RemotePath: "remote:vods"},
	}
}

func TestExecutorAssignsIDs(t *testing.T) {
	e := NewExecutor("true", nil, testLogger())

	first := job("a.mp4")
	second := job("b.mp4")

	if err := e.Submit(context.Background(), first); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := e.Submit(context.Background(), second); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("IDs = %d, %d, want 1, 2", first.ID, second.ID)
	}
}

func TestExecutorNoProgramConfigured(t *testing.T) {
	e := NewExecutor("", nil, testLogger())
	if err := e.Submit(context.Background(), job("a.mp4")); err == nil {
		t.Error("expected error when no upload program is configured")
	}
}

func TestExecutorProgramFailure(t *testing.T) {
	e := NewExecutor("false", nil, testLogger())
	if err := e.Submit(context.Background(), job("a.mp4", "b.mp4")); err == nil {
		t.Error("expected error when upload program fails")
	}
}

func TestExecutorCancellation(t *testing.T) {
	e := NewExecutor("sleep", []string{"10"}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Submit(ctx, job("a.mp4")); err == nil {
		t.Error("expected error for cancelled submission")
	}
}
