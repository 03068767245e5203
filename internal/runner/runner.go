// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// maxLineSize bounds a single streamed output line. Package managers can emit
// very long progress lines.
const maxLineSize = 1024 * 1024

// waitDelay bounds how long Wait blocks on I/O after the tool has exited or
// been killed.
const waitDelay = 5 * time.Second

var (
	// ErrToolInvocation is the sentinel error wrapped by ToolInvocationError.
	ErrToolInvocation = errors.New("tool invocation failed")

	// ErrInterrupted is returned when the context is cancelled before or while
	// the tool runs.
	ErrInterrupted = errors.New("interrupted")

	// ErrEmptyCommand is returned when Run is called without an argument vector.
	ErrEmptyCommand = errors.New("empty command")
)

type (
	// LineHandler receives one line of tool output without its trailing newline.
	LineHandler func(line string)

	// Runner runs one external process to completion.
	Runner interface {
		// Run executes argv, delivering stdout and stderr lines to the handlers
		// in emission order, and returns the exit code. A non-zero exit code is
		// not an error. A nil handler logs the stream at debug level.
		Run(ctx context.Context, argv []string, stdout, stderr LineHandler) (int, error)
	}

	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures an Exec runner.
	Option func(*Exec)

	// Exec is the Runner backed by os/exec.
	Exec struct {
		execCommand ExecCommandFunc
		logger      *log.Logger
	}

	// ToolInvocationError is returned when the tool could not be started or
	// waited on, for example because the binary is missing.
	ToolInvocationError struct {
		Argv []string
		Err  error
	}

	// ExitError is returned by Output when the tool exits non-zero.
	ExitError struct {
		Argv     []string
		ExitCode int
		Stderr   []string
	}
)

// New creates an Exec runner.
func New(opts ...Option) *Exec {
	e := &Exec{
		execCommand: exec.CommandContext,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithExecCommand replaces the exec.Cmd factory. Used by tests.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(e *Exec) {
		e.execCommand = fn
	}
}

// WithLogger sets the logger used for unhandled output streams.
func WithLogger(logger *log.Logger) Option {
	return func(e *Exec) {
		e.logger = logger
	}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, argv []string, stdout, stderr LineHandler) (int, error) {
	if len(argv) == 0 {
		return -1, ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return -1, interrupted(argv, err)
	}

	cmd := e.execCommand(ctx, argv[0], argv[1:]...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return -1, &ToolInvocationError{Argv: argv, Err: err}
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return -1, &ToolInvocationError{Argv: argv, Err: err}
	}

	e.logger.Debug("exec", "argv", strings.Join(argv, " "))
	if err := cmd.Start(); err != nil {
		return -1, &ToolInvocationError{Argv: argv, Err: err}
	}

	// Background children of the tool can keep the pipes open after it has
	// been killed, so cancellation closes the read ends itself.
	stop := context.AfterFunc(ctx, func() {
		_ = outPipe.Close()
		_ = errPipe.Close()
	})
	defer stop()

	// Handlers never run concurrently, even though both streams are read at once.
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.stream(outPipe, &mu, e.orDebug(stdout, argv[0], "stdout"))
	}()
	go func() {
		defer wg.Done()
		e.stream(errPipe, &mu, e.orDebug(stderr, argv[0], "stderr"))
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, interrupted(argv, ctxErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, &ToolInvocationError{Argv: argv, Err: waitErr}
	}
	return 0, nil
}

func (e *Exec) stream(r io.Reader, mu *sync.Mutex, handler LineHandler) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		mu.Lock()
		handler(line)
		mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return
		}
		e.logger.Warn("output stream truncated", "err", err)
		// Drain so the child does not block on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (e *Exec) orDebug(h LineHandler, tool, stream string) LineHandler {
	if h != nil {
		return h
	}
	return func(line string) {
		e.logger.Debug(line, "tool", tool, "stream", stream)
	}
}

func interrupted(argv []string, cause error) error {
	return fmt.Errorf("%s: %w: %w", argv[0], ErrInterrupted, cause)
}

// Output runs argv and returns its stdout lines. Unlike Run, a non-zero exit
// code is returned as an *ExitError carrying the captured stderr.
func Output(ctx context.Context, r Runner, argv []string) ([]string, error) {
	var out, errLines []string
	code, err := r.Run(ctx, argv,
		func(line string) { out = append(out, line) },
		func(line string) { errLines = append(errLines, line) },
	)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return out, &ExitError{Argv: argv, ExitCode: code, Stderr: errLines}
	}
	return out, nil
}

// Error implements the error interface.
func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("failed to invoke %s: %v", e.tool(), e.Err)
}

// Unwrap returns ErrToolInvocation and the underlying exec error.
func (e *ToolInvocationError) Unwrap() []error { return []error{ErrToolInvocation, e.Err} }

func (e *ToolInvocationError) tool() string {
	if len(e.Argv) == 0 {
		return "<empty>"
	}
	return e.Argv[0]
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", strings.Join(e.Argv, " "), e.ExitCode)
	if len(e.Stderr) > 0 {
		msg += ": " + strings.Join(e.Stderr, "\n")
	}
	return msg
}
