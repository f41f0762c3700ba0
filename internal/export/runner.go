// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/netSkope/console-export-tool/internal/artifact"
	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/metrics"
	"github.com/netSkope/console-export-tool/internal/tabular"
	"go.uber.org/zap"
)

// Options controls where and how a job's output is written.
type Options struct {
	OutputDir string
	Delimiter rune
	Policy    tabular.HeaderPolicy
	// Consolidate merges the delimited files into one spreadsheet and
	// deletes them afterwards.
	Consolidate bool
}

// Result is what a finished job delivered.
type Result struct {
	Outcome *JobOutcome
	// Artifact is set when the job was consolidated.
	Artifact *artifact.Artifact
	// Files lists every delivered file.
	Files []string
}

// Runner wires sink, scheduler and assembler for one job at a time.
type Runner struct {
	fetcher console.PageFetcher
	opts    Options
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(fetcher console.PageFetcher, opts Options, m *metrics.Collector, logger *zap.Logger) *Runner {
	return &Runner{fetcher: fetcher, opts: opts, metrics: m, logger: logger}
}

// Run executes job from a clean set of buffers. Stream failures are reported
// in Result.Outcome; only output failures are returned as errors.
func (r *Runner) Run(ctx context.Context, job *Job) (*Result, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	sink, err := tabular.NewSink(tabular.Options{
		Dir:         r.opts.OutputDir,
		Prefix:      job.ArtifactName + "_",
		Delimiter:   r.opts.Delimiter,
		Policy:      r.opts.Policy,
		ScopeColumn: job.ScopeColumn,
	}, r.logger)
	if err != nil {
		return nil, err
	}
	sink.Declare(job.FileGroups()...)

	outcome := NewScheduler(r.fetcher, sink, r.metrics, r.logger).Run(ctx, job)

	if err := sink.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize file groups: %w", err)
	}

	result := &Result{Outcome: outcome}
	buffers := sink.Buffers()

	if r.opts.Consolidate {
		sources := make([]artifact.Source, 0, len(buffers))
		for _, b := range buffers {
			sources = append(sources, b)
		}
		dest := filepath.Join(r.outputDir(), job.ArtifactName+".xlsx")
		art, err := artifact.NewAssembler(r.logger).Assemble(dest, sink.Declared(), sources)
		if err != nil {
			return nil, err
		}
		result.Artifact = art
		result.Files = []string{art.Path}
	} else {
		for _, b := range buffers {
			result.Files = append(result.Files, b.Path())
		}
		if len(buffers) == 0 {
			r.logger.Warn("Export produced no rows, no files written", zap.String("report", job.Report))
		}
	}

	r.metrics.RecordJob(job.Report, outcome.Duration(), outcome.Finished)
	return result, nil
}

func (r *Runner) outputDir() string {
	if r.opts.OutputDir == "" {
		return "."
	}
	return r.opts.OutputDir
}
