// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netSkope/console-export-tool/internal/report"
)

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

func newScheduleCmd() *cobra.Command {
	var spec string
	flags := &reportFlags{}

	cmd := &cobra.Command{
		Use:   "schedule --cron <spec> <report>",
		Short: "Run a report repeatedly on a cron schedule",
		Long: `Run a report on a standard five-field cron schedule (or a descriptor such
as @daily) until interrupted. A run that is still going when the next one is
due causes that tick to be skipped. Every run is an independent job.

Common cron expressions:
  "0 3 * * *"    - Daily at 3 AM
  "0 */6 * * *"  - Every 6 hours
  "0 0 * * 0"    - Weekly on Sunday at midnight`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := validateSchedule(spec, name); err != nil {
				return err
			}

			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			req, err := flags.request()
			if err != nil {
				return err
			}
			return runSchedule(cmd.Context(), p, spec, name, func(ctx context.Context) error {
				_, err := p.run(ctx, name, req)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron schedule (e.g. \"0 2 * * *\")")
	_ = cmd.MarkFlagRequired("cron")
	flags.register(cmd.Flags(), "")
	return cmd
}

func validateSchedule(spec, name string) error {
	if !slices.Contains(report.Names(), name) {
		return fmt.Errorf("unknown report %q (known: %s)", name, strings.Join(report.Names(), ", "))
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// runSchedule runs job on spec until ctx ends, then waits for a running job.
func runSchedule(ctx context.Context, p *pipeline, spec, name string, job func(context.Context) error) error {
	logger := p.logger.With(zap.String("report", name), zap.String("schedule", spec))
	clog := cronLogger{s: logger.Sugar()}

	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	if _, err := c.AddFunc(spec, func() {
		if err := job(ctx); err != nil {
			logger.Error("Scheduled export failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule report: %w", err)
	}

	c.Start()
	if entries := c.Entries(); len(entries) > 0 {
		logger.Info("Export scheduler started", zap.Time("next_run", entries[0].Next))
		fmt.Fprintf(p.out, "Scheduled %s on %q, next run at %s\n", name, spec, entries[0].Next.Format("2006-01-02 15:04:05"))
	}

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	logger.Info("Export scheduler stopped")
	return nil
}
