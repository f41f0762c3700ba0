// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/netSkope/console-export-tool/internal/export"
	"github.com/netSkope/console-export-tool/internal/scope"
)

// RangerPeriods are the time windows the ranger inventory accepts.
var RangerPeriods = []string{"latest", "last12h", "last24h", "last3d", "last7d"}

func buildRanger(req Request) (*export.Job, error) {
	dim, label, err := rangerDimension(req.RangerScope)
	if err != nil {
		return nil, err
	}
	period := req.RangerPeriod
	if period == "" {
		period = RangerPeriods[0]
	}
	if !slices.Contains(RangerPeriods, period) {
		return nil, fmt.Errorf("unknown ranger period %q (want one of %s)", period, strings.Join(RangerPeriods, ", "))
	}

	ids := cleanIDs(req.ScopeIDs)
	if len(ids) == 0 {
		return nil, errors.New("no account or site ids given")
	}

	phase := scope.Phase{Dimension: dim}
	for _, id := range ids {
		phase.Scopes = append(phase.Scopes, scope.Scope{Dimension: dim, ID: id})
	}

	return &export.Job{
		Streams: []export.StreamSpec{{
			DataType: "ranger",
			Endpoint: req.endpoint("ranger", "ranger/table-view", url.Values{"period": {period}}),
		}},
		Phases:       []scope.Phase{phase},
		ScopeColumn:  true,
		ArtifactName: fmt.Sprintf("Ranger_Export-%s_%s_%s", label, period, req.Now.Format(DateLayout)),
	}, nil
}

func rangerDimension(s string) (scope.Dimension, string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "accounts", "account":
		return scope.Account, "Accounts", nil
	case "sites", "site":
		return scope.Site, "Sites", nil
	default:
		return 0, "", fmt.Errorf("ranger scope must be accounts or sites, got %q", s)
	}
}

// ReadScopeIDs reads ids from the first column of a CSV file.
func ReadScopeIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open id file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var ids []string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read id file %s: %w", path, err)
		}
		if len(row) > 0 {
			ids = append(ids, row[0])
		}
	}
	return cleanIDs(ids), nil
}
