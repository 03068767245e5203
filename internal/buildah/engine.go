// SPDX-License-Identifier: MPL-2.0

package buildah

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/openchami/image-builder/internal/runner"
)

const (
	// DefaultBinary is the buildah executable looked up on PATH.
	DefaultBinary = "buildah"

	// DefaultRetryAttempts bounds pull and push attempts.
	DefaultRetryAttempts = 3

	// DefaultRetryBackoff is the delay before the second attempt. It doubles
	// for every further attempt.
	DefaultRetryBackoff = 2 * time.Second
)

var (
	// ErrCommandFailed is the sentinel error wrapped by CommandError.
	ErrCommandFailed = errors.New("buildah command failed")

	// ErrNoOutput is returned when from or mount print no identifying line.
	ErrNoOutput = errors.New("buildah printed no output")
)

type (
	// Option configures an Engine.
	Option func(*Engine)

	// Engine issues buildah subcommands through a runner.
	Engine struct {
		binary        string
		runner        runner.Runner
		logger        *log.Logger
		retryAttempts int
		retryBackoff  time.Duration
		sleep         func(time.Duration)
	}

	// FromOptions configures Engine.From.
	FromOptions struct {
		// Parent is the image reference, or "scratch".
		Parent string
		// Name is the working container name.
		Name string
		// PullOpts are passed to "buildah from" before --name.
		PullOpts []string
	}

	// RunOptions configures Engine.Run.
	RunOptions struct {
		// Args are passed to "buildah run" before the container id.
		Args []string
		// Env entries (KEY=VALUE) are passed with --env.
		Env []string
	}

	// CommandError is returned when a buildah subcommand exits non-zero.
	CommandError struct {
		Op       string
		Argv     []string
		ExitCode int
		Stderr   []string
	}
)

// New creates an Engine that runs buildah through r.
func New(r runner.Runner, opts ...Option) *Engine {
	e := &Engine{
		binary:        DefaultBinary,
		runner:        r,
		logger:        log.Default(),
		retryAttempts: DefaultRetryAttempts,
		retryBackoff:  DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithBinary overrides the buildah executable.
func WithBinary(path string) Option {
	return func(e *Engine) {
		if path != "" {
			e.binary = path
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRetry configures pull/push retries. attempts < 1 disables retrying.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.retryAttempts = max(attempts, 1)
		e.retryBackoff = backoff
	}
}

// WithSleep replaces the cancellable backoff wait with sleep. Used by tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// Runner returns the runner the engine invokes buildah with.
func (e *Engine) Runner() runner.Runner { return e.runner }

// From creates a working container from opts.Parent and returns its handle.
func (e *Engine) From(ctx context.Context, opts FromOptions) (*Container, error) {
	argv := e.argv("from", opts.PullOpts...)
	if opts.Name != "" {
		argv = append(argv, "--name", opts.Name)
	}
	argv = append(argv, opts.Parent)

	var id string
	err := RetryWithBackoff(ctx, e.retryAttempts, e.retryBackoff, e.sleep, func(attempt int) (bool, error) {
		out, err := e.output(ctx, "from", argv)
		if err != nil {
			if IsTransient(err) {
				e.logger.Warn("transient error creating container, retrying", "parent", opts.Parent, "attempt", attempt+1, "err", err)
				return true, err
			}
			return false, err
		}
		id, err = lastLine(out)
		return false, err
	})
	if err != nil {
		return nil, fmt.Errorf("create container from %s: %w", opts.Parent, err)
	}
	e.logger.Info("created working container", "id", id, "parent", opts.Parent)
	return &Container{ID: id, Name: opts.Name, Parent: opts.Parent, engine: e}, nil
}

// Mount mounts the container filesystem and records the mount path on c.
func (e *Engine) Mount(ctx context.Context, c *Container) (string, error) {
	out, err := e.output(ctx, "mount", e.argv("mount", c.ID))
	if err != nil {
		return "", fmt.Errorf("mount container %s: %w", c.ID, err)
	}
	path, err := lastLine(out)
	if err != nil {
		return "", fmt.Errorf("mount container %s: %w", c.ID, err)
	}
	c.MountPath = path
	e.logger.Info("mounted working container", "id", c.ID, "path", path)
	return path, nil
}

// Unmount unmounts the container filesystem.
func (e *Engine) Unmount(ctx context.Context, c *Container) error {
	if _, err := e.output(ctx, "umount", e.argv("umount", c.ID)); err != nil {
		return fmt.Errorf("unmount container %s: %w", c.ID, err)
	}
	c.MountPath = ""
	return nil
}

// RunArgs returns the argv for running command inside c.
func (e *Engine) RunArgs(c *Container, command []string, opts RunOptions) []string {
	argv := e.argv("run", opts.Args...)
	for _, kv := range opts.Env {
		argv = append(argv, "--env", kv)
	}
	argv = append(argv, c.ID, "--")
	return append(argv, command...)
}

// Run executes command inside c and returns its exit code. Interpreting the
// exit code is left to the caller.
func (e *Engine) Run(ctx context.Context, c *Container, command []string, opts RunOptions, stdout, stderr runner.LineHandler) (int, error) {
	return e.runner.Run(ctx, e.RunArgs(c, command, opts), stdout, stderr)
}

// CopyArgs returns the argv for copying src on the host to dest in c.
// Options precede the container id, as buildah stops parsing flags there.
func (e *Engine) CopyArgs(c *Container, src, dest string, opts []string) []string {
	argv := e.argv("copy", opts...)
	return append(argv, c.ID, src, dest)
}

// Copy copies src on the host to dest inside c and returns the exit code.
func (e *Engine) Copy(ctx context.Context, c *Container, src, dest string, opts []string, stderr runner.LineHandler) (int, error) {
	return e.runner.Run(ctx, e.CopyArgs(c, src, dest, opts), nil, stderr)
}

// Commit commits c to the local image store as image.
func (e *Engine) Commit(ctx context.Context, c *Container, image string) error {
	if _, err := e.output(ctx, "commit", e.argv("commit", c.ID, image)); err != nil {
		return fmt.Errorf("commit %s as %s: %w", c.ID, image, err)
	}
	e.logger.Info("committed image", "image", image)
	return nil
}

// Push pushes a local image to dest, retrying transient failures.
func (e *Engine) Push(ctx context.Context, image, dest string, opts []string) error {
	argv := e.argv("push", opts...)
	argv = append(argv, image, dest)
	err := RetryWithBackoff(ctx, e.retryAttempts, e.retryBackoff, e.sleep, func(attempt int) (bool, error) {
		_, err := e.output(ctx, "push", argv)
		if err != nil && IsTransient(err) {
			e.logger.Warn("transient error pushing image, retrying", "image", image, "attempt", attempt+1, "err", err)
			return true, err
		}
		return false, err
	})
	if err != nil {
		return fmt.Errorf("push %s to %s: %w", image, dest, err)
	}
	e.logger.Info("pushed image", "image", image, "dest", dest)
	return nil
}

// Remove removes the working container with the given id. Prefer
// Container.Remove, which guarantees a single removal.
func (e *Engine) Remove(ctx context.Context, id string) error {
	if _, err := e.output(ctx, "rm", e.argv("rm", id)); err != nil {
		return fmt.Errorf("remove container %s: %w", id, err)
	}
	return nil
}

// RemoveImage removes an image reference from the local store.
func (e *Engine) RemoveImage(ctx context.Context, ref string) error {
	if _, err := e.output(ctx, "rmi", e.argv("rmi", ref)); err != nil {
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

func (e *Engine) argv(sub string, args ...string) []string {
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, e.binary, sub)
	return append(argv, args...)
}

// output runs argv and returns stdout. Stderr is logged at debug and attached
// to the CommandError on failure.
func (e *Engine) output(ctx context.Context, op string, argv []string) ([]string, error) {
	var out, errLines []string
	code, err := e.runner.Run(ctx, argv,
		func(line string) { out = append(out, line) },
		func(line string) {
			errLines = append(errLines, line)
			e.logger.Debug(line, "op", op)
		},
	)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return out, &CommandError{Op: op, Argv: argv, ExitCode: code, Stderr: errLines}
	}
	return out, nil
}

func lastLine(lines []string) (string, error) {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s, nil
		}
	}
	return "", ErrNoOutput
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("buildah %s exited with code %d", e.Op, e.ExitCode)
	if len(e.Stderr) > 0 {
		msg += ": " + strings.Join(e.Stderr, "\n")
	}
	return msg
}

// Unwrap returns ErrCommandFailed for errors.Is() compatibility.
func (e *CommandError) Unwrap() error { return ErrCommandFailed }
