// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/netSkope/console-export-tool/internal/report"
)

var reportShort = map[string]string{
	report.Exclusions: "Export exclusions of every type across all accessible scopes",
	report.DV:         "Export Deep Visibility events for one or more query ids",
	report.Activities: "Export activities in a date range, optionally filtered",
	report.Tags:       "Export endpoint tags",
	report.Users:      "Export console users",
	report.Ranger:     "Export the ranger inventory for account or site ids",
	report.Accounts:   "Export active account ids and names",
}

// reportFlags holds report-specific inputs.
type reportFlags struct {
	queryIDs    []string
	from        string
	to          string
	search      string
	rangerScope string
	period      string
	ids         []string
	idsFile     string
}

// register adds the flags report name reads. An empty name registers all of them.
func (f *reportFlags) register(fs *pflag.FlagSet, name string) {
	if name == "" || name == report.DV {
		fs.StringSliceVar(&f.queryIDs, "query-ids", nil, "Deep Visibility query ids (comma separated)")
	}
	if name == "" || name == report.Activities {
		fs.StringVar(&f.from, "from", "", "First day to export (YYYY-MM-DD)")
		fs.StringVar(&f.to, "to", "", "Last day to export (YYYY-MM-DD)")
		fs.StringVar(&f.search, "search", "", "Keep activities whose description contains this text")
	}
	if name == "" || name == report.Ranger {
		fs.StringVar(&f.rangerScope, "ranger-scope", "accounts", "Ranger scope: accounts or sites")
		fs.StringVar(&f.period, "period", report.RangerPeriods[0], "Ranger period")
		fs.StringSliceVar(&f.ids, "ids", nil, "Account or site ids (comma separated)")
		fs.StringVar(&f.idsFile, "ids-file", "", "CSV file with account or site ids in the first column")
	}
}

// request converts the flags into a report request.
func (f *reportFlags) request() (report.Request, error) {
	req := report.Request{
		QueryIDs:     f.queryIDs,
		Search:       f.search,
		RangerScope:  f.rangerScope,
		RangerPeriod: f.period,
		ScopeIDs:     f.ids,
	}

	if f.from != "" {
		from, err := report.ParseDate(f.from)
		if err != nil {
			return req, fmt.Errorf("invalid --from: %w", err)
		}
		req.From = from
	}
	if f.to != "" {
		to, err := report.ParseDate(f.to)
		if err != nil {
			return req, fmt.Errorf("invalid --to: %w", err)
		}
		req.To = to
	}

	if f.idsFile != "" {
		ids, err := report.ReadScopeIDs(f.idsFile)
		if err != nil {
			return req, err
		}
		req.ScopeIDs = append(req.ScopeIDs, ids...)
	}
	return req, nil
}

func newReportCmd(name string) *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   name,
		Short: reportShort[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline(cmd)
			if err != nil {
				return err
			}
			defer p.close()

			req, err := flags.request()
			if err != nil {
				return err
			}
			_, err = p.run(cmd.Context(), name, req)
			return err
		},
	}
	flags.register(cmd.Flags(), name)
	return cmd
}
