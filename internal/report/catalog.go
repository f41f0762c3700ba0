// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package report maps report names to export jobs: which endpoints, which
// parameters, which scope phases and how the output is named.
package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/netSkope/console-export-tool/internal/console"
	"github.com/netSkope/console-export-tool/internal/export"
	"github.com/netSkope/console-export-tool/internal/scope"
)

// Report names.
const (
	Exclusions = "exclusions"
	DV         = "dv"
	Activities = "activities"
	Tags       = "tags"
	Users      = "users"
	Ranger     = "ranger"
	Accounts   = "accounts"
)

// Request carries the inputs a report may need. Only the fields relevant to
// the requested report are read.
type Request struct {
	JobID      string
	APIVersion string
	PageSize   int
	Now        time.Time

	// Phases are the enumerated scopes, used by scoped reports.
	Phases []scope.Phase

	// QueryIDs are Deep Visibility query ids.
	QueryIDs []string

	// From and To bound the activity export, inclusive, at day precision.
	From, To time.Time
	// Search keeps only activities whose descriptions contain it.
	Search string

	// RangerScope is "accounts" or "sites".
	RangerScope string
	// RangerPeriod is one of RangerPeriods.
	RangerPeriod string
	// ScopeIDs are the account or site ids for the ranger report.
	ScopeIDs []string
}

type builder struct {
	// scoped reports need the enumerated phases.
	scoped bool
	build  func(req Request) (*export.Job, error)
}

var catalog = map[string]builder{
	Exclusions: {scoped: true, build: buildExclusions},
	DV:         {build: buildDV},
	Activities: {build: buildActivities},
	Tags:       {build: buildTags},
	Users:      {build: buildUsers},
	Ranger:     {build: buildRanger},
	Accounts:   {build: buildAccounts},
}

// Names lists every report, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scoped reports whether the report fans out over enumerated scopes.
func Scoped(name string) bool {
	return catalog[name].scoped
}

// Build returns the export job for a report.
func Build(name string, req Request) (*export.Job, error) {
	b, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown report %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	if req.APIVersion == "" {
		req.APIVersion = console.DefaultAPIVersion
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	job, err := b.build(req)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	job.ID = req.JobID
	job.Report = name
	return job, nil
}

func (r Request) endpoint(name, resource string, static url.Values) console.Endpoint {
	return console.Endpoint{
		Name:     name,
		Path:     "/web/api/" + r.APIVersion + "/" + resource,
		PageSize: r.PageSize,
		Static:   static,
	}
}

// stamp renders the time suffix used in artifact names, e.g.
// "2024-03-01_123456" with microseconds.
func stamp(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("2006-01-02"), t.Nanosecond()/1000)
}

// globalPhase is the single phase of reports that are not fanned out.
func globalPhase() []scope.Phase {
	return []scope.Phase{{Dimension: scope.Global, Scopes: []scope.Scope{scope.GlobalScope}}}
}
