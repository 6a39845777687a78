package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Hooks receive parsed events from the engine's output while a capture is
// running. Nil hooks are skipped. Hooks are invoked from the output reader
// and must return quickly.
type Hooks struct {
	OnSegmentOpen func(path string)
	OnProgress    func(p Progress)
}

// Invoker launches the capture engine as a child process and supervises it
// until exit or cancellation.
type Invoker struct {
	binary          string
	logger          *slog.Logger
	engineLogger    *slog.Logger
	gracefulTimeout time.Duration
	killTimeout     time.Duration
}

// NewInvoker creates an invoker for the given engine binary. The
// engineLogger receives the engine's own output lines.
func NewInvoker(binary string, logger, engineLogger *slog.Logger) *Invoker {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Invoker{
		binary:          binary,
		logger:          logger,
		engineLogger:    engineLogger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// Run spawns the engine with the given argv and blocks until it exits or
// ctx is cancelled. On cancellation the child receives SIGINT, then SIGKILL
// after a grace period. Returns the engine exit code.
func (iv *Invoker) Run(ctx context.Context, streamerID string, args []string, hooks Hooks) (int, error) {
	cmd := exec.Command(iv.binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	iv.logger.Info("Capture engine started",
		"streamer", streamerID, "pid", cmd.Process.Pid, "binary", iv.binary)

	// Stream output in separate goroutines. Progress lines arrive on
	// stderr; stdout is normally silent but is drained regardless.
	outputDone := make(chan struct{}, 2)
	var outputWg sync.WaitGroup
	outputWg.Add(2)
	go func() {
		defer outputWg.Done()
		iv.streamOutput(stdout, Hooks{})
		outputDone <- struct{}{}
	}()
	go func() {
		defer outputWg.Done()
		iv.streamOutput(stderr, hooks)
		outputDone <- struct{}{}
	}()

	// cmd.Wait closes the pipes once the process exits; it must not run
	// until both output readers have finished draining them, or buffered
	// data can be lost to a race between the close and the read.
	processDone := make(chan error, 1)
	go func() {
		outputWg.Wait()
		processDone <- cmd.Wait()
	}()

	defer func() {
		<-outputDone
		<-outputDone
	}()

	select {
	case <-ctx.Done():
		iv.logger.Info("Capture cancelled, stopping engine", "streamer", streamerID)
		iv.sendStopSignal(cmd)
		exitCode := iv.waitForExit(cmd, processDone)
		return exitCode, ctx.Err()
	case processErr := <-processDone:
		exitCode := exitCodeFromError(processErr)
		iv.logger.Info("Capture engine exited", "streamer", streamerID, "exit_code", exitCode)
		return exitCode, nil
	}
}

// sendStopSignal sends SIGINT to the child without waiting.
func (iv *Invoker) sendStopSignal(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		iv.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the child to exit, force-killing after the grace
// timeout.
func (iv *Invoker) waitForExit(cmd *exec.Cmd, processDone <-chan error) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(iv.gracefulTimeout):
		iv.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", iv.gracefulTimeout)
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				// The process may have exited between timeout and kill.
				if !errors.Is(err, os.ErrProcessDone) {
					iv.logger.Error("Failed to kill engine", "error", err)
				}
			}
		}
		select {
		case <-processDone:
		case <-time.After(iv.killTimeout):
			iv.logger.Error("Engine did not exit after kill signal")
		}
		return 137
	}
}

// exitCodeFromError extracts the exit code from a process error.
// Returns 0 for nil, the exit code for ExitError, or 1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput scans one output stream line by line, dispatching segment
// and progress events and logging everything else. Unexpected lines never
// fail the capture.
func (iv *Invoker) streamOutput(reader io.Reader, hooks Hooks) {
	scanner := bufio.NewScanner(reader)
	parser := &ProgressParser{}

	for scanner.Scan() {
		line := scanner.Text()

		if path, ok := ParseSegmentOpen(line); ok {
			if hooks.OnSegmentOpen != nil {
				hooks.OnSegmentOpen(path)
			}
			iv.engineLogger.Debug(line)
			continue
		}

		if progress, ok := parser.ParseLine(line); ok {
			if hooks.OnProgress != nil {
				hooks.OnProgress(progress)
			}
			iv.engineLogger.Debug(line)
			continue
		}

		level, msg := ParseLogLevel(line)
		switch level {
		case "fatal", "error":
			iv.engineLogger.Error(msg)
		case "warning":
			iv.engineLogger.Warn(msg)
		case "debug", "trace", "verbose":
			iv.engineLogger.Debug(msg)
		default:
			iv.engineLogger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		iv.logger.Warn("Error reading engine output", "error", err)
	}
}
