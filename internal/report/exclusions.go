// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package report

import (
	"errors"
	"net/url"

	"github.com/netSkope/console-export-tool/internal/export"
)

// ExclusionTypes are the exclusion data types, one sheet each.
var ExclusionTypes = []string{"path", "certificate", "browser", "file_type", "white_hash"}

func buildExclusions(req Request) (*export.Job, error) {
	if len(req.Phases) == 0 {
		return nil, errors.New("no scopes to export")
	}

	job := &export.Job{
		Phases:       req.Phases,
		ScopeColumn:  true,
		ArtifactName: "Exceptions_Export_" + stamp(req.Now),
	}
	for _, typ := range ExclusionTypes {
		job.Streams = append(job.Streams, export.StreamSpec{
			DataType: typ,
			Endpoint: req.endpoint(typ, "exclusions", url.Values{"countOnly": {"false"}}),
			Params:   url.Values{"type": {typ}},
		})
	}
	return job, nil
}
