// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package export runs export jobs: one paginated stream per data type for
// every scope key, scope keys one at a time, into shared file groups.
package export

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/record"
	"github.com/netSkope/console-export-tool/internal/scope"
)

// StreamSpec describes one data type of a report.
type StreamSpec struct {
	// DataType tags the stream in logs and metrics.
	DataType string
	// FileGroup is the output file/sheet. Empty means DataType.
	FileGroup string
	Endpoint  console.Endpoint
	// Params are sent on every request of this stream.
	Params url.Values
	// Project rewrites each record before it is written. Optional.
	Project func(record.Record) record.Record
	// Filter drops records for which it returns false. Optional.
	Filter func(record.Record) bool
}

// Group returns the effective file-group key.
func (s StreamSpec) Group() string {
	if s.FileGroup != "" {
		return s.FileGroup
	}
	return s.DataType
}

// Job is everything needed to run one report.
type Job struct {
	ID     string
	Report string
	// Streams run concurrently within each scope batch.
	Streams []StreamSpec
	// Params are sent on every request of every stream.
	Params url.Values
	// Phases are run in dimension order, scopes within a phase in order.
	Phases []scope.Phase
	// ScopeColumn prefixes every row with the scope label.
	ScopeColumn bool
	// ArtifactName is the output base name, without extension.
	ArtifactName string
}

// Validate checks the job is runnable.
func (j *Job) Validate() error {
	if j.Report == "" {
		return errors.New("job has no report name")
	}
	if len(j.Streams) == 0 {
		return fmt.Errorf("report %s has no streams", j.Report)
	}
	if j.ArtifactName == "" {
		return fmt.Errorf("report %s has no artifact name", j.Report)
	}
	for i, s := range j.Streams {
		if s.DataType == "" || s.Endpoint.Path == "" {
			return fmt.Errorf("stream %d of report %s needs a data type and an endpoint path", i, j.Report)
		}
	}
	return nil
}

// FileGroups returns the distinct file groups in stream order.
func (j *Job) FileGroups() []string {
	var groups []string
	seen := make(map[string]struct{})
	for _, s := range j.Streams {
		g := s.Group()
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		groups = append(groups, g)
	}
	return groups
}

// StreamOutcome is the result of one (data type, scope) stream.
type StreamOutcome struct {
	DataType  string
	FileGroup string
	Scope     scope.Scope
	console.Outcome
	// Written counts records written after filtering.
	Written int
	Elapsed time.Duration
}

// JobOutcome collects every stream outcome of a job in batch order.
type JobOutcome struct {
	JobID    string
	Report   string
	Streams  []StreamOutcome
	Batches  int
	Started  time.Time
	Finished time.Time
	// Interrupted is set when the context ended before every batch ran.
	Interrupted bool
}

// Failed returns the aborted streams.
func (o *JobOutcome) Failed() []StreamOutcome {
	var failed []StreamOutcome
	for _, s := range o.Streams {
		if s.Status == console.Aborted {
			failed = append(failed, s)
		}
	}
	return failed
}

// Completed counts streams that reached the end of their pagination.
func (o *JobOutcome) Completed() int {
	n := 0
	for _, s := range o.Streams {
		if s.Status == console.Completed {
			n++
		}
	}
	return n
}

// Records counts records written across all streams.
func (o *JobOutcome) Records() int {
	n := 0
	for _, s := range o.Streams {
		n += s.Written
	}
	return n
}

// Duration is the wall time of the job.
func (o *JobOutcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}
