// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package report

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/netSkope/console-export-tool/internal/export"
	"github.com/netSkope/console-export-tool/internal/record"
)

// DateLayout is the accepted format for activity date bounds.
const DateLayout = "2006-01-02"

// ParseDate reads a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func buildActivities(req Request) (*export.Job, error) {
	if req.From.IsZero() || req.To.IsZero() {
		return nil, errors.New("a from date and a to date are required")
	}
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("to date %s is before from date %s",
			req.To.Format(DateLayout), req.From.Format(DateLayout))
	}

	between := fmt.Sprintf("%d-%d", req.From.UTC().UnixMilli(), req.To.UTC().UnixMilli())
	spec := export.StreamSpec{
		DataType: "activities",
		Endpoint: req.endpoint("activities", "activities", url.Values{
			"countOnly":     {"false"},
			"includeHidden": {"false"},
		}),
		Params: url.Values{"createdAt__between": {between}},
	}

	name := "Activity_Log_Export_" + stamp(req.Now)
	if search := strings.TrimSpace(req.Search); search != "" {
		spec.Filter = descriptionContains(search)
		name = "Activity_Log_Search_" + stamp(req.Now)
	}

	return &export.Job{
		Streams:      []export.StreamSpec{spec},
		Phases:       globalPhase(),
		ArtifactName: name,
	}, nil
}

// descriptionContains matches the primary description, or the secondary one
// when present, case-insensitively.
func descriptionContains(search string) func(record.Record) bool {
	needle := strings.ToUpper(search)
	return func(rec record.Record) bool {
		if primary, _ := rec.Get("primaryDescription"); strings.Contains(strings.ToUpper(primary), needle) {
			return true
		}
		secondary, _ := rec.Get("secondaryDescription")
		return secondary != "" && strings.Contains(strings.ToUpper(secondary), needle)
	}
}
