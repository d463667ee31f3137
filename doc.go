// Package compeval runs single-cursor code completion accuracy tests against
// a corpus of small Python projects.
//
// # Corpus
//
// Every immediate subdirectory of the truth root is one test. It holds a
// project and a completion.toml file recording the expected answer:
//
//	[answer]
//	symbol = "slugify"
//	module = "app.util"   # optional
//
//	[settings]
//	auto-import = true    # optional, default false
//
// Exactly one file in the project contains the literal marker <CURSOR>.
//
// # Pipeline
//
// For each test, [Harness.Materialize] copies the project into the
// destination root with the marker removed and its byte offset recorded, runs
// the environment sync command (uv sync by default) in the copy, and opens
// the copy with the completion [Provider]. [Test.Completions] then asks the
// provider for completions at the recorded offset.
//
//	h := compeval.New(tmpRoot, compeval.NewIndexProvider(logger))
//	sources, err := compeval.AllSources("truth")
//	if err != nil { ... }
//	err = h.Run(ctx, sources, func(r *compeval.Result) error {
//		fmt.Println(r.Name, r.Completions)
//		return nil
//	})
//
// A test moves through the states Discovered, Materialized,
// SyncedEnvironment, ProviderReady and Queried, one way only. Any failure
// aborts that test; with [WithKeepGoing] the run continues with the next one.
//
// # Providers
//
// [IndexProvider] is the built-in provider. It indexes the materialized
// project and its virtualenv with tree-sitter and Risor extraction scripts
// into SQLite and answers queries from the index. Any other engine can be
// plugged in by implementing [Provider].
package compeval
