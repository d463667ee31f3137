package compeval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jward/compeval/internal/evalerr"
)

// ErrEntriesFailed is wrapped by the error Run returns in keep-going mode
// when at least one entry failed.
var ErrEntriesFailed = errors.New("entries failed")

// Result is the outcome of one test.
type Result struct {
	Name        string
	Completions []Completion
	// Answer is the zero value when the truth file could not be loaded.
	Answer Answer
	// Err is set when the test failed. Only emitted in keep-going mode.
	Err error
}

// Run materializes and queries every source and passes each Result to emit
// in source order.
//
// By default the first failure stops the run and is returned; results
// emitted before it stand. With WithKeepGoing failures are emitted as
// Results and Run returns an error wrapping ErrEntriesFailed at the end. An
// error from emit always stops the run.
func (h *Harness) Run(ctx context.Context, sources []*TestSource, emit func(*Result) error) error {
	runID := uuid.NewString()
	logger := h.logger.With(zap.String("run_id", runID))
	logger.Info("run started",
		zap.Int("tests", len(sources)),
		zap.Int("jobs", h.jobs),
		zap.Bool("keep_going", h.keepGoing),
	)
	start := time.Now()

	failed, err := h.run(ctx, sources, emit, logger)
	logger.Info("run finished",
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("compeval: %d of %d tests failed: %w", failed, len(sources), ErrEntriesFailed)
	}
	return nil
}

func (h *Harness) run(ctx context.Context, sources []*TestSource, emit func(*Result) error, logger *zap.Logger) (int, error) {
	if h.jobs <= 1 {
		failed := 0
		for _, source := range sources {
			res := h.runOne(ctx, source, logger)
			stop, err := h.deliver(res, emit, logger)
			if res.Err != nil {
				failed++
			}
			if stop {
				return failed, err
			}
		}
		return failed, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make([]chan *Result, len(sources))
	for i := range done {
		done[i] = make(chan *Result, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.jobs)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, source := range sources {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					done[i] <- &Result{Name: source.Name, Err: &evalerr.EntryError{Name: source.Name, Err: err}}
					return nil
				}
				done[i] <- h.runOne(gctx, source, logger)
				return nil
			})
		}
	}()

	var (
		failed  int
		stopped bool
		runErr  error
	)
	for i := range sources {
		res := <-done[i]
		if stopped {
			continue
		}
		stop, err := h.deliver(res, emit, logger)
		if res.Err != nil {
			failed++
		}
		if stop {
			stopped, runErr = true, err
			cancel()
		}
	}
	<-launched
	_ = g.Wait()
	return failed, runErr
}

// deliver hands res to emit and reports whether the run must stop.
func (h *Harness) deliver(res *Result, emit func(*Result) error, logger *zap.Logger) (bool, error) {
	if res.Err != nil {
		logger.Warn("test failed",
			zap.String("test", res.Name),
			zap.String("class", string(evalerr.ClassOf(res.Err))),
			zap.Error(res.Err),
		)
		if !h.keepGoing {
			return true, res.Err
		}
	}
	if err := emit(res); err != nil {
		return true, err
	}
	return false, nil
}

// runOne takes a single source through the whole pipeline. Every failure
// is wrapped in an EntryError naming the source.
func (h *Harness) runOne(ctx context.Context, source *TestSource, logger *zap.Logger) *Result {
	res := &Result{Name: source.Name}
	fail := func(err error) *Result {
		res.Err = &evalerr.EntryError{Name: source.Name, Err: err}
		return res
	}

	t, err := h.materialize(ctx, source, logger)
	if source.Truth != nil {
		res.Answer = source.Truth.Answer
	}
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := t.Close(); err != nil {
			logger.Warn("closing project", zap.String("test", source.Name), zap.Error(err))
		}
	}()

	completions, err := t.Completions(ctx)
	if err != nil {
		return fail(err)
	}
	res.Completions = completions
	return res
}
