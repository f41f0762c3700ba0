// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netSkope/console-export-tool/internal/config"
	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/export"
	s1log "github.com/netSkope/console-export-tool/internal/log"
	"github.com/netSkope/console-export-tool/internal/metrics"
	"github.com/netSkope/console-export-tool/internal/report"
	"github.com/netSkope/console-export-tool/internal/s3"
	"github.com/netSkope/console-export-tool/internal/scope"
	"github.com/netSkope/console-export-tool/internal/store"
	"github.com/netSkope/console-export-tool/internal/util"
)

// pipeline runs report jobs end to end: authenticate, enumerate, export,
// deliver, record.
type pipeline struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	out     io.Writer
	now     func() time.Time

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error
}

// runResult is what one pipeline run delivered.
type runResult struct {
	*export.Result
	Uploaded  []string
	UploadErr error
}

func newPipeline(cmd *cobra.Command) (*pipeline, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := s1log.NewLogger(cfg.LogDir, cfg.LogName, cfg.LogDebug, cfg.LogStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(nil),
		out:     cmd.OutOrStdout(),
		now:     time.Now,
	}, nil
}

func (p *pipeline) close() {
	_ = p.logger.Sync()
}

func (p *pipeline) aws(ctx context.Context) (aws.Config, error) {
	p.awsOnce.Do(func() {
		p.awsCfg, p.awsErr = util.LoadAWSConfig(ctx, p.cfg.AWSRegion, util.StaticKeys{
			AccessKeyID:     p.cfg.AWSAccessKeyID,
			SecretAccessKey: p.cfg.AWSSecretAccessKey,
			SessionToken:    p.cfg.AWSSessionToken,
		})
	})
	return p.awsCfg, p.awsErr
}

// run executes one job of report name. Stream failures are part of the
// summary; only setup and output failures are returned.
func (p *pipeline) run(ctx context.Context, name string, req report.Request) (*runResult, error) {
	jobID := uuid.NewString()
	logger := s1log.ForJob(p.logger, jobID, name)
	logger.Info("Running report")

	token, err := util.ResolveAPIToken(ctx, p.cfg.APIToken, p.cfg.APITokenSecret, func() (util.SecretsGetter, error) {
		awsCfg, err := p.aws(ctx)
		if err != nil {
			return nil, err
		}
		return util.NewSecretsClient(awsCfg), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve API token: %w", err)
	}

	client, err := console.NewClient(p.cfg.ClientConfig(), logger)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.Authenticate(ctx, token); err != nil {
		return nil, err
	}
	fetcher := console.NewFetcher(client, logger)

	req.JobID = jobID
	req.APIVersion = p.cfg.APIVersion
	req.PageSize = p.cfg.PageSize
	req.Now = p.now()

	if report.Scoped(name) {
		access, err := client.UserScope(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read user scope: %w", err)
		}
		enumerator := scope.NewEnumerator(fetcher, scope.DefaultListings(p.cfg.APIVersion), logger)
		req.Phases = enumerator.Enumerate(ctx, scope.ParseAccessLevel(access))
		logger.Info("Enumerated scopes",
			zap.String("access", access),
			zap.Int("phases", len(req.Phases)),
			zap.Int("scopes", scope.Len(req.Phases)))
	}

	job, err := report.Build(name, req)
	if err != nil {
		return nil, err
	}

	delimiter, err := p.cfg.Delimiter()
	if err != nil {
		return nil, err
	}
	runner := export.NewRunner(fetcher, export.Options{
		OutputDir:   p.cfg.OutputDir,
		Delimiter:   delimiter,
		Policy:      p.cfg.Policy(),
		Consolidate: p.cfg.Consolidate,
	}, p.metrics, logger)

	res, err := runner.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	result := &runResult{Result: res}

	if p.cfg.S3Bucket != "" && len(res.Files) > 0 {
		result.Uploaded, result.UploadErr = p.upload(ctx, job, res.Files, logger)
	}

	if p.cfg.HistoryHost != "" {
		if err := p.record(ctx, store.NewJobRecord(res, result.Uploaded), logger); err != nil {
			logger.Warn("Failed to record job history", zap.Error(err))
		}
	}

	if p.cfg.MetricsTextfile != "" {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsTextfile); err != nil {
			logger.Warn("Failed to write metrics textfile", zap.Error(err))
		}
	}

	printSummary(p.out, result)
	logger.Info("Report delivered",
		zap.Int("streams_completed", res.Outcome.Completed()),
		zap.Int("streams_aborted", len(res.Outcome.Failed())),
		zap.Int("records", res.Outcome.Records()),
		zap.Duration("duration", res.Outcome.Duration()))
	return result, nil
}

func (p *pipeline) upload(ctx context.Context, job *export.Job, files []string, logger *zap.Logger) ([]string, error) {
	awsCfg, err := p.aws(ctx)
	if err != nil {
		logger.Error("AWS configuration unavailable, artifacts not uploaded", zap.Error(err))
		return nil, err
	}
	uploader := s3.NewUploader(awsCfg, p.cfg.S3Bucket, p.cfg.S3Prefix, logger)
	return uploader.UploadAll(ctx, job.Report, job.ID, files)
}

func (p *pipeline) record(ctx context.Context, rec store.JobRecord, logger *zap.Logger) error {
	client, err := store.NewSQLClient(ctx, p.cfg.HistoryDSN(), 0)
	if err != nil {
		return fmt.Errorf("failed to connect to history database: %w", err)
	}
	defer client.Close()

	history := store.NewHistory(client, logger)
	if err := history.EnsureSchema(ctx); err != nil {
		return err
	}
	return history.Record(ctx, rec)
}
