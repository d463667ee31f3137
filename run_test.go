package compeval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jward/compeval/internal/envsync"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// bigCorpus builds n entries named e00, e01, ... whose cursor offset is the
// entry number.
func bigCorpus(n int) string {
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "-- e%02d/completion.toml --\n[answer]\nsymbol = \"s%d\"\n", i, i)
		fmt.Fprintf(&b, "-- e%02d/main.py --\n%s<CURSOR>\n", i, strings.Repeat("x", i))
	}
	return b.String()
}

type collector struct {
	mu      sync.Mutex
	results []*Result
}

func (c *collector) emit(r *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *collector) lines() []string {
	var out []string
	for _, r := range c.results {
		line := r.Name + " " + r.Answer.Symbol
		for _, comp := range r.Completions {
			line += " " + comp.Name
		}
		if r.Err != nil {
			line += " ERR " + string(ClassOf(r.Err))
		}
		out = append(out, line)
	}
	return out
}

func TestRun_Sequential(t *testing.T) {
	t.Parallel()
	root := writeCorpus(t, corpus)
	sources, err := AllSources(root)
	require.NoError(t, err)

	p := &stubProvider{}
	h := New(t.TempDir(), p, WithSyncer(envsync.Noop{}))
	var c collector
	require.NoError(t, h.Run(context.Background(), sources, c.emit))

	assert.Equal(t, []string{
		"alpha total alpha@13",
		"beta slugify beta@4",
	}, c.lines())
	assert.Equal(t, 2, p.closed)
}

func TestRun_ParallelKeepsOrder(t *testing.T) {
	t.Parallel()
	root := writeCorpus(t, bigCorpus(12))
	sources, err := DiscoverSources(root)
	require.NoError(t, err)

	var seq, par collector
	require.NoError(t, New(t.TempDir(), &stubProvider{}, WithSyncer(envsync.Noop{})).
		Run(context.Background(), sources, seq.emit))

	sources, err = DiscoverSources(root)
	require.NoError(t, err)
	p := &stubProvider{}
	require.NoError(t, New(t.TempDir(), p, WithSyncer(envsync.Noop{}), WithJobs(4)).
		Run(context.Background(), sources, par.emit))

	if diff := cmp.Diff(seq.lines(), par.lines()); diff != "" {
		t.Errorf("parallel output differs (-sequential +parallel):\n%s", diff)
	}
	assert.Len(t, par.results, 12)
	assert.Equal(t, "e11 s11 e11@11", par.lines()[11])
	assert.Equal(t, 12, p.closed)
}

const brokenCorpus = `
-- a/completion.toml --
[answer]
symbol = "a"
-- a/main.py --
a<CURSOR>
-- b/completion.toml --
[answer]
symbol = "b"
-- b/main.py --
b
-- c/completion.toml --
[answer]
symbol = "c"
-- c/main.py --
c<CURSOR>
`

func TestRun_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	for _, jobs := range []int{1, 3} {
		t.Run(fmt.Sprintf("jobs=%d", jobs), func(t *testing.T) {
			root := writeCorpus(t, brokenCorpus)
			sources, err := DiscoverSources(root)
			require.NoError(t, err)

			var c collector
			err = New(t.TempDir(), &stubProvider{}, WithSyncer(envsync.Noop{}), WithJobs(jobs)).
				Run(context.Background(), sources, c.emit)

			var entryErr *EntryError
			require.ErrorAs(t, err, &entryErr)
			assert.Equal(t, "b", entryErr.Name)
			assert.Equal(t, ErrorClass("MARKER_NOT_FOUND"), ClassOf(err))
			assert.Contains(t, err.Error(), "test `b`")
			assert.Equal(t, []string{"a a a@1"}, c.lines())
		})
	}
}

func TestRun_KeepGoing(t *testing.T) {
	t.Parallel()
	root := writeCorpus(t, brokenCorpus+"-- d/main.py --\nd<CURSOR>\n")
	sources, err := DiscoverSources(root)
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	var c collector
	err = New(t.TempDir(), &stubProvider{}, WithSyncer(envsync.Noop{}), WithKeepGoing(true), WithLogger(zap.New(core))).
		Run(context.Background(), sources, c.emit)

	require.ErrorIs(t, err, ErrEntriesFailed)
	assert.Contains(t, err.Error(), "2 of 4 tests failed")
	assert.Equal(t, []string{
		"a a a@1",
		"b b ERR MARKER_NOT_FOUND",
		"c c c@1",
		"d  ERR MISSING_TRUTH",
	}, c.lines())

	assert.Equal(t, 2, logs.FilterMessage("test failed").Len())
	started := logs.FilterMessage("run started").All()
	require.Len(t, started, 1)
	assert.NotEmpty(t, started[0].ContextMap()["run_id"])
}

func TestRun_EmitErrorStops(t *testing.T) {
	t.Parallel()
	root := writeCorpus(t, bigCorpus(5))
	sources, err := DiscoverSources(root)
	require.NoError(t, err)

	stop := errors.New("stdout closed")
	calls := 0
	err = New(t.TempDir(), &stubProvider{}, WithSyncer(envsync.Noop{}), WithJobs(2)).
		Run(context.Background(), sources, func(*Result) error {
			calls++
			if calls == 2 {
				return stop
			}
			return nil
		})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestRun_Empty(t *testing.T) {
	t.Parallel()
	h := New(t.TempDir(), &stubProvider{}, WithSyncer(envsync.Noop{}))
	assert.NoError(t, h.Run(context.Background(), nil, func(*Result) error {
		t.Fatal("emit called")
		return nil
	}))
}
