// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package report

import (
	"net/url"

	"github.com/netSkope/console-export-tool/internal/export"
	"github.com/netSkope/console-export-tool/internal/record"
)

// UserColumns is the fixed column set of the users report.
var UserColumns = []string{
	"Full Name",
	"Email",
	"Verified Email",
	"User ID",
	"Date Joined",
	"First Login Date",
	"Last Login",
	"2FA Enabled?",
	"2FA Method",
	"Lowest Role",
	"Scope",
	"Scope Roles",
	"Site Roles",
	"Tenant Roles",
	"API Token Dates",
	"Read-Only Groups",
	"Read-Only Email",
	"Read-Only Full Name",
	"Source",
	"Is System?",
}

// userSource maps each column to its console field and the value used when
// the field is absent or empty. An empty default keeps the value as is.
var userSource = map[string]struct{ field, def string }{
	"Full Name":           {"fullName", ""},
	"Email":               {"email", ""},
	"Verified Email":      {"emailVerified", ""},
	"User ID":             {"id", ""},
	"Date Joined":         {"dateJoined", ""},
	"First Login Date":    {"firstLogin", "Never"},
	"Last Login":          {"lastLogin", "Never"},
	"2FA Enabled?":        {"twoFaEnabled", ""},
	"2FA Method":          {"primaryTwoFaMethod", "N/A"},
	"Lowest Role":         {"lowestRole", ""},
	"Scope":               {"scope", ""},
	"Scope Roles":         {"scopeRoles", ""},
	"Site Roles":          {"siteRoles", "N/A"},
	"Tenant Roles":        {"tenantRoles", "N/A"},
	"API Token Dates":     {"apiToken", "N/A"},
	"Read-Only Groups":    {"groupsReadOnly", ""},
	"Read-Only Email":     {"emailReadOnly", ""},
	"Read-Only Full Name": {"fullNameReadOnly", ""},
	"Source":              {"source", ""},
	"Is System?":          {"isSystem", ""},
}

// ProjectUser maps a console user to UserColumns.
func ProjectUser(rec record.Record) record.Record {
	fields := make([]record.Field, 0, len(UserColumns))
	for _, col := range UserColumns {
		src := userSource[col]
		fields = append(fields, record.Field{Name: col, Value: rec.GetOr(src.field, src.def)})
	}
	return record.New(fields...)
}

// ProjectAccount keeps an account's id and name.
func ProjectAccount(rec record.Record) record.Record {
	id, _ := rec.Get("id")
	name, _ := rec.Get("name")
	return record.New(
		record.Field{Name: "Account ID", Value: id},
		record.Field{Name: "Account Name", Value: name},
	)
}

func buildUsers(req Request) (*export.Job, error) {
	return &export.Job{
		Streams: []export.StreamSpec{{
			DataType:  "users",
			FileGroup: "Users",
			Endpoint: req.endpoint("users", "users", url.Values{
				"sortOrder": {"asc"},
				"sortBy":    {"email"},
			}),
			Project: ProjectUser,
		}},
		Phases:       globalPhase(),
		ArtifactName: "Export_Users_" + stamp(req.Now),
	}, nil
}

func buildTags(req Request) (*export.Job, error) {
	return &export.Job{
		Streams: []export.StreamSpec{{
			DataType: "tags",
			Endpoint: req.endpoint("tags", "agents/tags", url.Values{
				"includeChildren": {"true"},
				"includeParents":  {"true"},
			}),
		}},
		Phases:       globalPhase(),
		ArtifactName: "Endpoint_Tags_Export_" + stamp(req.Now),
	}, nil
}

func buildAccounts(req Request) (*export.Job, error) {
	return &export.Job{
		Streams: []export.StreamSpec{{
			DataType: "accounts",
			Endpoint: req.endpoint("accounts", "accounts", url.Values{
				"states":    {"active"},
				"sortBy":    {"name"},
				"sortOrder": {"asc"},
			}),
			Project: ProjectAccount,
		}},
		Phases:       globalPhase(),
		ArtifactName: "Account-IDs",
	}, nil
}
