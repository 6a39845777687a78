// Package upload submits finished capture files to a sync program.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync/atomic"

	"github.com/liverec/liverec/internal/types"
)

// Service accepts upload jobs and returns once the job has completed,
// successfully or not. Implementations must be safe for concurrent
// submission from multiple workers.
type Service interface {
	Submit(ctx context.Context, job *types.UploadJob) error
}

// Executor runs a configured sync program (rclone-style) once per job
// item: <program> <base args> <job args> <local path> <remote path>.
type Executor struct {
	program  string
	baseArgs []string
	logger   *slog.Logger
	nextID   atomic.Int64
}

// NewExecutor creates an executor for the given program. An empty program
// disables uploads; submissions then fail.
func NewExecutor(program string, baseArgs []string, logger *slog.Logger) *Executor {
	return &Executor{
		program:  program,
		baseArgs: baseArgs,
		logger:   logger,
	}
}

// Submit assigns the job an ID and uploads each item in order. The context
// cancels in-flight subprocesses. All items are attempted unless the
// context is cancelled, which stops the loop after the failing item; errors
// are joined.
func (e *Executor) Submit(ctx context.Context, job *types.UploadJob) error {
	if e.program == "" {
		return fmt.Errorf("no upload program configured")
	}

	job.ID = e.nextID.Add(1)
	e.logger.Info("Upload job started",
		"job_id", job.ID, "items", len(job.Items), "remote", job.Config.RemotePath)

	var errs []error
	for _, item := range job.Items {
		if err := e.uploadOne(ctx, job, item); err != nil {
			e.logger.Error("Upload failed",
				"job_id", job.ID, "path", item.Path, "error", err)
			errs = append(errs, fmt.Errorf("upload %s: %w", item.Path, err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	if len(errs) == 0 {
		e.logger.Info("Upload job finished", "job_id", job.ID)
	}
	return errors.Join(errs...)
}

func (e *Executor) uploadOne(ctx context.Context, job *types.UploadJob, item types.StreamData) error {
	args := make([]string, 0, len(e.baseArgs)+len(job.Config.Args)+2)
	args = append(args, e.baseArgs...)
	args = append(args, job.Config.Args...)
	args = append(args, item.Path, job.Config.RemotePath)

	cmd := exec.CommandContext(ctx, e.program, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			e.logger.Debug("Upload program output", "output", string(out))
		}
		return err
	}

	e.logger.Debug("Uploaded item", "job_id", job.ID, "path", item.Path)
	return nil
}
