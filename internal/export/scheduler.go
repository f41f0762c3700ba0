// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package export

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/metrics"
	"github.com/netSkope/console-export-tool/internal/record"
	"github.com/netSkope/console-export-tool/internal/scope"
	"github.com/netSkope/console-export-tool/internal/tabular"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler fans a job out over its scope keys.
type Scheduler struct {
	fetcher console.PageFetcher
	sink    *tabular.Sink
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewScheduler creates a Scheduler writing into sink. metrics may be nil.
func NewScheduler(fetcher console.PageFetcher, sink *tabular.Sink, m *metrics.Collector, logger *zap.Logger) *Scheduler {
	return &Scheduler{fetcher: fetcher, sink: sink, metrics: m, logger: logger}
}

// Run processes phases in dimension order and, within a phase, one scope key
// at a time. Each scope key runs one stream per data type concurrently and
// waits for the whole batch. Stream failures are recorded, never returned.
func (s *Scheduler) Run(ctx context.Context, job *Job) *JobOutcome {
	out := &JobOutcome{JobID: job.ID, Report: job.Report, Started: time.Now()}

	phases := append([]scope.Phase(nil), job.Phases...)
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Dimension < phases[j].Dimension
	})

	s.logger.Info("Starting export job",
		zap.Int("streams", len(job.Streams)),
		zap.Int("phases", len(phases)),
		zap.Int("scope_keys", scope.Len(phases)))

phases:
	for _, phase := range phases {
		s.logger.Info("Processing scope phase",
			zap.String("dimension", phase.Dimension.String()),
			zap.Int("scope_keys", len(phase.Scopes)))

		for i, sc := range phase.Scopes {
			if err := ctx.Err(); err != nil {
				s.logger.Warn("Export interrupted, skipping remaining scope batches", zap.Error(err))
				out.Interrupted = true
				break phases
			}

			s.logger.Info("Processing scope batch",
				zap.String("scope", sc.Key()),
				zap.Int("batch", i+1),
				zap.Int("batch_total", len(phase.Scopes)))

			out.Streams = append(out.Streams, s.runBatch(ctx, job, sc)...)
			out.Batches++
			s.metrics.RecordBatch(job.Report, phase.Dimension.String())
		}
	}

	out.Finished = time.Now()
	s.logger.Info("Export job finished",
		zap.Int("batches", out.Batches),
		zap.Int("completed", out.Completed()),
		zap.Int("aborted", len(out.Failed())),
		zap.Int("records", out.Records()),
		zap.Duration("elapsed", out.Duration()))
	return out
}

// runBatch runs every stream of the job for one scope key and waits for all
// of them. Outcomes keep the job's stream order.
func (s *Scheduler) runBatch(ctx context.Context, job *Job, sc scope.Scope) []StreamOutcome {
	outcomes := make([]StreamOutcome, len(job.Streams))

	var g errgroup.Group
	g.SetLimit(len(job.Streams))
	for i, spec := range job.Streams {
		g.Go(func() error {
			outcomes[i] = s.runStream(ctx, job, spec, sc)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Scheduler) runStream(ctx context.Context, job *Job, spec StreamSpec, sc scope.Scope) StreamOutcome {
	start := time.Now()
	result := StreamOutcome{DataType: spec.DataType, FileGroup: spec.Group(), Scope: sc}

	label := ""
	if job.ScopeColumn {
		label = sc.Label()
	}
	writer := s.sink.Stream(spec.Group(), label)

	params := mergeParams(job.Params, spec.Params, sc.Params())
	result.Outcome = s.fetcher.Fetch(ctx, spec.Endpoint, params, func(records []record.Record) error {
		s.metrics.RecordPage(job.Report, spec.DataType, len(records))
		page := shape(spec, records)
		if err := writer.WritePage(page); err != nil {
			return err
		}
		result.Written += len(page)
		return nil
	})
	result.Elapsed = time.Since(start)

	s.metrics.RecordStream(job.Report, spec.DataType, result.Status.String(), result.Elapsed)
	if result.Status == console.Aborted {
		s.logger.Warn("Export stream aborted",
			zap.String("data_type", spec.DataType),
			zap.String("scope", sc.Key()),
			zap.Int("pages", result.Pages),
			zap.Error(result.Err))
	} else {
		s.logger.Debug("Export stream completed",
			zap.String("data_type", spec.DataType),
			zap.String("scope", sc.Key()),
			zap.Int("pages", result.Pages),
			zap.Int("written", result.Written))
	}
	return result
}

// shape applies the stream's filter and projection.
func shape(spec StreamSpec, records []record.Record) []record.Record {
	if spec.Filter == nil && spec.Project == nil {
		return records
	}
	out := make([]record.Record, 0, len(records))
	for _, rec := range records {
		if spec.Filter != nil && !spec.Filter(rec) {
			continue
		}
		if spec.Project != nil {
			rec = spec.Project(rec)
		}
		out = append(out, rec)
	}
	return out
}

// mergeParams layers parameter sets; later sets win per key.
func mergeParams(sets ...url.Values) url.Values {
	merged := make(url.Values)
	for _, set := range sets {
		for k, v := range set {
			merged[k] = append([]string(nil), v...)
		}
	}
	return merged
}
