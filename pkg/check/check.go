// Package check reconciles a pinned requirements file against its sources.
//
// A check runs in four steps, each usable on its own:
//
//  1. [BuildPins] folds the target requirements into one pin per package,
//     reporting editable, unpinned and duplicate entries.
//  2. [BuildSources] merges the source requirements, records which packages
//     are declared directly and drops entries whose environment marker
//     does not hold.
//  3. [Reconcile] reports missing pins, pins that violate a source
//     specifier, and pins no source asks for.
//  4. The [Sink] counts errors and warnings and yields the exit status.
//
// [Run] wires the steps together and returns a [Report].
//
// # Example
//
//	report, err := check.Run(ctx, check.Input{
//	    Target:       "requirements.txt",
//	    Requirements: pinned,
//	    Sources:      [][]requirement.Requirement{declared},
//	}, check.Options{})
//	if err != nil {
//	    return err // malformed input, no findings
//	}
//	os.Exit(report.ExitStatus)
package check

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/pincheck/pkg/observability"
	"github.com/matzehuels/pincheck/pkg/requirement"
	"github.com/matzehuels/pincheck/pkg/requirement/marker"
)

// Input holds already-parsed requirements.
type Input struct {
	Target       string                      // Display name of the pinned file
	Requirements []requirement.Requirement   // Pinned file contents
	SourceNames  []string                    // Display names of the sources
	Sources      [][]requirement.Requirement // One sequence per source file
}

// Options configures a run.
type Options struct {
	// Env is the environment markers are evaluated against. Nil means
	// [marker.DefaultEnv].
	Env marker.Env
	// Reporter receives findings as they are recorded when Verbose is set.
	Reporter Reporter
	Verbose  bool
}

// Run checks in.Requirements against in.Sources.
//
// Findings never make Run fail; they are returned in the report. An error
// means the input violated a precondition (see [Reconcile]) or ctx was
// cancelled before the run started.
func Run(ctx context.Context, in Input, opts Options) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := opts.Env
	if env == nil {
		env = marker.DefaultEnv()
	}

	hooks := observability.Check()
	hooks.OnCheckStart(ctx, in.Target)
	start := time.Now()

	sink := NewSink(opts.Reporter, opts.Verbose)
	pins := BuildPins(in.Requirements, sink)
	sources := BuildSources(in.Sources, env)
	err := Reconcile(pins, sources, sink)

	hooks.OnCheckComplete(ctx, in.Target, sink.Errors, sink.Warnings, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return NewReport(uuid.NewString(), in, sink), nil
}
