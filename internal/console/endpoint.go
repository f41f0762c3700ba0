// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package console

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/netSkope/console-export-tool/internal/record"
)

const (
	// DefaultPageSize is the largest page the console serves.
	DefaultPageSize = 1000
	// DefaultCursorParam is the query parameter carrying the pagination cursor.
	DefaultCursorParam = "cursor"
)

// Endpoint describes one paginated console listing.
type Endpoint struct {
	// Name identifies the endpoint in logs.
	Name string

	// Path is the full REST path, e.g. "/web/api/v2.1/exclusions".
	Path string

	// PageSize is sent as "limit". Zero means DefaultPageSize.
	PageSize int

	// CursorParam is the query parameter for the next-page cursor.
	// Empty means DefaultCursorParam.
	CursorParam string

	// DataKey is set when the records are nested one level below "data",
	// e.g. the sites listing returns {"data": {"sites": [...]}}.
	DataKey string

	// Static holds parameters sent on every page.
	Static url.Values
}

// Page is one decoded console page.
type Page struct {
	Records    []record.Record
	NextCursor string
	TotalItems int
}

// envelope is the common pagination response shape.
type envelope struct {
	Pagination struct {
		NextCursor json.RawMessage `json:"nextCursor"`
		TotalItems int             `json:"totalItems"`
	} `json:"pagination"`
	Data json.RawMessage `json:"data"`
}

func (e Endpoint) pageSize() int {
	if e.PageSize <= 0 {
		return DefaultPageSize
	}
	return e.PageSize
}

func (e Endpoint) cursorParam() string {
	if e.CursorParam == "" {
		return DefaultCursorParam
	}
	return e.CursorParam
}

// InitialQuery merges the endpoint's static parameters, the page size and the
// caller's parameters. Caller parameters win over static ones.
func (e Endpoint) InitialQuery(params url.Values) url.Values {
	q := make(url.Values)
	for k, v := range e.Static {
		q[k] = append([]string(nil), v...)
	}
	q.Set("limit", strconv.Itoa(e.pageSize()))
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Del(e.cursorParam())
	return q
}

// DecodePage parses a response body using this endpoint's shape.
func (e Endpoint) DecodePage(body []byte) (Page, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, fmt.Errorf("malformed envelope: %w", err)
	}

	data := env.Data
	if e.DataKey != "" && len(data) > 0 && string(data) != "null" {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(data, &nested); err != nil {
			return Page{}, fmt.Errorf("expected object with %q under data: %w", e.DataKey, err)
		}
		data = nested[e.DataKey]
	}

	records, err := record.DecodeArray(data)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Records:    records,
		NextCursor: cursorText(env.Pagination.NextCursor),
		TotalItems: env.Pagination.TotalItems,
	}, nil
}

// cursorText maps a raw nextCursor to a string; null, false, "" and absent are
// all end-of-data.
func cursorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
