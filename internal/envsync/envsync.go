// Package envsync prepares a materialized project's dependency environment
// by running an external tool in the project directory.
package envsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jward/compeval/internal/evalerr"
)

// waitDelay bounds how long a killed sync may keep its stderr pipe open
// through orphaned children.
const waitDelay = 2 * time.Second

// Syncer prepares the environment of the project rooted at dir.
type Syncer interface {
	Sync(ctx context.Context, dir string) error
}

// Command runs an external program, `uv sync` by default, inside the
// project directory. The program gets no stdin; its stderr is captured and
// reported on failure.
type Command struct {
	name    string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Command.
type Option func(*Command)

// WithTimeout bounds each sync run. Zero, the default, means no bound: a
// hanging tool blocks the caller.
func WithTimeout(d time.Duration) Option {
	return func(c *Command) {
		c.timeout = d
	}
}

// WithLogger sets the logger used to report sync runs.
func WithLogger(l *zap.Logger) Option {
	return func(c *Command) {
		c.logger = l
	}
}

// UV returns the default syncer, `uv sync`.
func UV(opts ...Option) *Command {
	return NewCommand("uv", []string{"sync"}, opts...)
}

// NewCommand returns a syncer running name with args.
func NewCommand(name string, args []string, opts ...Option) *Command {
	c := &Command{name: name, args: args, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseCommand splits a command line on whitespace into a syncer.
func ParseCommand(line string, opts ...Option) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("envsync: empty sync command")
	}
	return NewCommand(fields[0], fields[1:], opts...), nil
}

// String returns the command line.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// Sync runs the command with dir as its working directory.
func (c *Command) Sync(ctx context.Context, dir string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	c.logger.Debug("environment sync finished",
		zap.String("command", c.String()),
		zap.String("dir", dir),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else {
		err = fmt.Errorf("failed to run `%s` in `%s`: %w", c, dir, err)
	}
	return &evalerr.EnvironmentSyncError{
		Command:  c.String(),
		Dir:      dir,
		ExitCode: exitCode,
		Stderr:   stderr.String(),
		Err:      err,
	}
}

// Noop skips environment preparation.
type Noop struct{}

// Sync does nothing.
func (Noop) Sync(context.Context, string) error { return nil }
