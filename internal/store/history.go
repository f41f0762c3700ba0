// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/netSkope/console-export-tool/internal/export"
	"go.uber.org/zap"
)

const historyTable = "export_jobs"

const createHistoryTable = `CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
	job_id VARCHAR(64) NOT NULL PRIMARY KEY,
	report VARCHAR(64) NOT NULL,
	started_at DATETIME(6) NOT NULL,
	finished_at DATETIME(6) NOT NULL,
	streams_completed INT NOT NULL,
	streams_aborted INT NOT NULL,
	records_written BIGINT NOT NULL,
	interrupted TINYINT(1) NOT NULL,
	artifact VARCHAR(1024) NOT NULL,
	uploaded TEXT NOT NULL
)`

// JobRecord is one row of the job history table.
type JobRecord struct {
	JobID            string
	Report           string
	Started          time.Time
	Finished         time.Time
	StreamsCompleted int
	StreamsAborted   int
	RecordsWritten   int
	Interrupted      bool
	Artifact         string
	Uploaded         []string
}

// NewJobRecord summarizes a finished job.
func NewJobRecord(res *export.Result, uploaded []string) JobRecord {
	o := res.Outcome
	rec := JobRecord{
		JobID:            o.JobID,
		Report:           o.Report,
		Started:          o.Started,
		Finished:         o.Finished,
		StreamsCompleted: o.Completed(),
		StreamsAborted:   len(o.Failed()),
		RecordsWritten:   o.Records(),
		Interrupted:      o.Interrupted,
		Uploaded:         uploaded,
	}
	if res.Artifact != nil {
		rec.Artifact = res.Artifact.Path
	} else {
		rec.Artifact = strings.Join(res.Files, ",")
	}
	return rec
}

// History appends finished jobs to the export_jobs table. Nothing reads it back.
type History struct {
	client *SQLClient
	logger *zap.Logger
}

// NewHistory wraps an open client.
func NewHistory(client *SQLClient, logger *zap.Logger) *History {
	return &History{client: client, logger: logger}
}

// EnsureSchema creates the history table when missing.
func (h *History) EnsureSchema(ctx context.Context) error {
	ctx, cancel := h.client.context(ctx)
	defer cancel()
	if _, err := h.client.db.ExecContext(ctx, createHistoryTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", historyTable, err)
	}
	return nil
}

// Record inserts one job row.
func (h *History) Record(ctx context.Context, rec JobRecord) error {
	ctx, cancel := h.client.context(ctx)
	defer cancel()

	_, err := h.client.db.ExecContext(ctx,
		`INSERT INTO `+historyTable+` (job_id, report, started_at, finished_at, streams_completed,
			streams_aborted, records_written, interrupted, artifact, uploaded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.Report, rec.Started.UTC(), rec.Finished.UTC(), rec.StreamsCompleted,
		rec.StreamsAborted, rec.RecordsWritten, rec.Interrupted, rec.Artifact, strings.Join(rec.Uploaded, ","),
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", rec.JobID, err)
	}

	h.logger.Debug("Recorded job history",
		zap.String("job_id", rec.JobID),
		zap.String("report", rec.Report))
	return nil
}
