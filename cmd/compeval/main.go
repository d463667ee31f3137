package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jward/compeval"
	"github.com/jward/compeval/internal/envsync"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command-line flags.
type options struct {
	truthDir    string
	tmpDir      string
	syncCommand string
	noSync      bool
	syncTimeout time.Duration
	jobs        int
	keepGoing   bool
	format      string
	verbose     bool

	logger *zap.Logger
	// provider overrides the default IndexProvider in tests.
	provider compeval.Provider
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "compeval",
		Short: "Measure completion accuracy against a corpus of single-cursor tests",
		Long: `compeval materializes every entry of the truth corpus into a scratch
directory, prepares its Python environment, asks the completion provider for
candidates at the marked cursor and prints them next to the expected answer.

Run it from the repository root, where the truth/ directory lives.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.format); err != nil {
				return err
			}
			logger, err := buildLogger(opts.verbose)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.truthDir, "truth", "truth", "corpus directory, one subdirectory per test")
	f.StringVar(&opts.tmpDir, "tmp", filepath.Join(os.TempDir(), "compeval"), "scratch directory tests are materialized into")
	f.StringVar(&opts.syncCommand, "sync-command", "uv sync", "command run in each materialized test to prepare its environment")
	f.BoolVar(&opts.noSync, "no-sync", false, "skip environment preparation")
	f.DurationVar(&opts.syncTimeout, "sync-timeout", 0, "bound on each environment sync (0 means no bound)")
	f.IntVar(&opts.jobs, "jobs", 1, "number of tests processed concurrently")
	f.BoolVar(&opts.keepGoing, "keep-going", false, "report failing tests and continue instead of stopping")
	f.StringVar(&opts.format, "format", "text", "output format: text|json")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// buildLogger returns a production logger writing to stderr so stdout stays
// reserved for results.
func buildLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func run(cmd *cobra.Command, opts *options) error {
	info, err := os.Stat(opts.truthDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("truth directory %q not found; run compeval from the repository root", opts.truthDir)
		}
		return fmt.Errorf("checking truth directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("truth path %q is not a directory", opts.truthDir)
	}

	syncer, err := newSyncer(opts)
	if err != nil {
		return err
	}
	provider := opts.provider
	if provider == nil {
		provider = compeval.NewIndexProvider(opts.logger.Named("provider"))
	}

	// Without --keep-going a broken truth file fails the run before any
	// entry is materialized.
	discover := compeval.AllSources
	if opts.keepGoing {
		discover = compeval.DiscoverSources
	}
	sources, err := discover(opts.truthDir)
	if err != nil {
		return err
	}

	h := compeval.New(opts.tmpDir, provider,
		compeval.WithSyncer(syncer),
		compeval.WithLogger(opts.logger.Named("harness")),
		compeval.WithJobs(opts.jobs),
		compeval.WithKeepGoing(opts.keepGoing),
	)
	w := newResultWriter(cmd.OutOrStdout(), opts.format)
	return h.Run(cmd.Context(), sources, w.write)
}

func newSyncer(opts *options) (envsync.Syncer, error) {
	if opts.noSync {
		return envsync.Noop{}, nil
	}
	return envsync.ParseCommand(opts.syncCommand,
		envsync.WithTimeout(opts.syncTimeout),
		envsync.WithLogger(opts.logger.Named("sync")),
	)
}

func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid --format %q: must be text or json", format)
	}
}
