// Package action resolves completion actions to their side effects:
// upload submissions and subprocess runs.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/liverec/liverec/internal/events"
	"github.com/liverec/liverec/internal/types"
	"github.com/liverec/liverec/internal/upload"
)

// ErrUnsupportedAction is returned for action variants the dispatcher does
// not know. A safety net for future additions.
var ErrUnsupportedAction = errors.New("unsupported action")

// Dispatcher performs actions against capture artifacts. Actions within
// one call run sequentially; calls for different sessions are independent.
type Dispatcher struct {
	uploads upload.Service
	bus     *events.Bus
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher backed by the given upload service.
func NewDispatcher(uploads upload.Service, bus *events.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		uploads: uploads,
		bus:     bus,
		logger:  logger,
	}
}

// DispatchAll runs every enabled action against the items, one after
// another. A failing action is logged and does not stop the rest of the
// batch. No-op when items is empty.
func (d *Dispatcher) DispatchAll(ctx context.Context, actions []types.Action, items []types.StreamData) {
	if len(items) == 0 {
		return
	}

	for _, act := range types.Enabled(actions) {
		if err := d.dispatch(ctx, act, items); err != nil {
			d.logger.Error("Action failed",
				"type", act.Type, "items", len(items), "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, act types.Action, items []types.StreamData) error {
	switch act.Type {
	case types.ActionUpload:
		return d.dispatchUpload(ctx, act, items)
	case types.ActionCommand:
		return d.dispatchCommand(ctx, act)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAction, act.Type)
	}
}

func (d *Dispatcher) dispatchUpload(ctx context.Context, act types.Action, items []types.StreamData) error {
	job := &types.UploadJob{
		CreatedAtMillis: time.Now().UnixMilli(),
		Items:           items,
		Config: types.UploadConfig{
			RemotePath: act.RemotePath,
			Args:       act.ExtraArgs,
		},
	}

	err := d.uploads.Submit(ctx, job)

	d.bus.Publish(events.UploadQueuedEvent{
		StreamerID: items[0].StreamerID,
		JobID:      job.ID,
		Items:      len(items),
	})
	return err
}

// dispatchCommand tokenizes the program by single spaces and runs it as a
// subprocess. No shell, no quoting: arguments must not contain embedded
// whitespace. Cancelling the context kills the process.
func (d *Dispatcher) dispatchCommand(ctx context.Context, act types.Action) error {
	argv := tokenize(act.Program)
	if len(argv) == 0 {
		return fmt.Errorf("empty command action")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		d.logger.Info("Command action finished", "program", argv[0], "exit_code", 0)
		return nil
	case errors.As(err, &exitErr):
		d.logger.Info("Command action finished", "program", argv[0], "exit_code", exitErr.ExitCode())
		return nil
	default:
		return fmt.Errorf("spawn %s: %w", argv[0], err)
	}
}

func tokenize(program string) []string {
	parts := strings.Split(program, " ")
	argv := parts[:0]
	for _, p := range parts {
		if p != "" {
			argv = append(argv, p)
		}
	}
	return argv
}
