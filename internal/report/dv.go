// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package report

import (
	"errors"
	"strings"

	"github.com/netSkope/console-export-tool/internal/export"
	"github.com/netSkope/console-export-tool/internal/scope"
)

// DVEventTypes are the Deep Visibility event types, one sheet each.
var DVEventTypes = []string{"file", "ip", "url", "dns", "process", "registry", "scheduled_task"}

func buildDV(req Request) (*export.Job, error) {
	ids := cleanIDs(req.QueryIDs)
	if len(ids) == 0 {
		return nil, errors.New("at least one Deep Visibility query id is required")
	}

	job := &export.Job{
		Phases:       queryPhase(ids),
		ArtifactName: "DV_Export_" + strings.Join(ids, "-"),
	}
	for _, typ := range DVEventTypes {
		job.Streams = append(job.Streams, export.StreamSpec{
			DataType:  typ,
			FileGroup: "dv_" + typ,
			Endpoint:  req.endpoint("dv_"+typ, "dv/events/"+typ, nil),
		})
	}
	return job, nil
}

func queryPhase(ids []string) []scope.Phase {
	phase := scope.Phase{Dimension: scope.Query}
	for _, id := range ids {
		phase.Scopes = append(phase.Scopes, scope.Scope{Dimension: scope.Query, ID: id})
	}
	return []scope.Phase{phase}
}

// cleanIDs trims ids, drops empty ones and keeps the first of duplicates.
func cleanIDs(raw []string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
