// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/netSkope/console-export-tool/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, VerifyTLS: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return NewFetcher(client, zaptest.NewLogger(t)), client
}

// pagedHandler serves pages of two records each, linking pages with cursors
// "c1".."c<n-1>".
func pagedHandler(t *testing.T, pages int, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))

		page := 0
		if c := r.URL.Query().Get("cursor"); c != "" {
			_, err := fmt.Sscanf(c, "c%d", &page)
			require.NoError(t, err)
		}

		next := "null"
		if page+1 < pages {
			next = fmt.Sprintf("%q", fmt.Sprintf("c%d", page+1))
		}
		_, _ = fmt.Fprintf(w, `{"pagination":{"nextCursor":%s,"totalItems":%d},"data":[{"id":"%d-a","n":%d},{"id":"%d-b","n":%d}]}`,
			next, pages*2, page, page, page, page)
	}
}

func TestFetch_FollowsCursorsInOrder(t *testing.T) {
	var calls atomic.Int32
	fetcher, _ := newTestFetcher(t, pagedHandler(t, 3, &calls))

	var ids []string
	out := fetcher.Fetch(context.Background(), Endpoint{Name: "test", Path: "/items"}, nil,
		func(records []record.Record) error {
			for _, rec := range records {
				id, _ := rec.Get("id")
				ids = append(ids, id)
			}
			return nil
		})

	require.NoError(t, out.Err)
	assert.Equal(t, Completed, out.Status)
	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, 6, out.Records)
	assert.Equal(t, 6, out.TotalItems)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{"0-a", "0-b", "1-a", "1-b", "2-a", "2-b"}, ids)
}

func TestFetch_EmptyPageStillDelivered(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pagination":{"nextCursor":""},"data":[]}`))
	})

	delivered := 0
	out := fetcher.Fetch(context.Background(), Endpoint{Path: "/items"}, nil, func(records []record.Record) error {
		delivered++
		assert.Empty(t, records)
		return nil
	})

	assert.Equal(t, Completed, out.Status)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, out.Records)
}

func TestFetch_StatusErrorAbortsAfterPartialData(t *testing.T) {
	var calls atomic.Int32
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"pagination":{"nextCursor":"next"},"data":[{"id":"1"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"title":"boom"}]}`))
	})

	delivered := 0
	out := fetcher.Fetch(context.Background(), Endpoint{Path: "/items"}, nil, func(records []record.Record) error {
		delivered += len(records)
		return nil
	})

	assert.Equal(t, Aborted, out.Status)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, out.Pages)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, out.Err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "boom")
	assert.Contains(t, statusErr.URL, "cursor=next")
}

func TestFetch_MalformedBodyIsTransportError(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway timeout</html>`))
	})

	out := fetcher.Fetch(context.Background(), Endpoint{Path: "/items"}, nil, func([]record.Record) error {
		t.Fatal("no page should be delivered")
		return nil
	})

	assert.Equal(t, Aborted, out.Status)
	var transportErr *TransportError
	assert.ErrorAs(t, out.Err, &transportErr)
}

func TestFetch_ConnectionFailureIsTransportError(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	fetcher := NewFetcher(client, zaptest.NewLogger(t))

	out := fetcher.Fetch(context.Background(), Endpoint{Path: "/items"}, nil, func([]record.Record) error { return nil })

	assert.Equal(t, Aborted, out.Status)
	var transportErr *TransportError
	assert.ErrorAs(t, out.Err, &transportErr)
}

func TestFetch_ConsumerErrorIsSinkError(t *testing.T) {
	var calls atomic.Int32
	fetcher, _ := newTestFetcher(t, pagedHandler(t, 5, &calls))

	diskFull := errors.New("no space left on device")
	out := fetcher.Fetch(context.Background(), Endpoint{Path: "/items"}, nil, func([]record.Record) error {
		return diskFull
	})

	assert.Equal(t, Aborted, out.Status)
	var sinkErr *SinkError
	require.ErrorAs(t, out.Err, &sinkErr)
	assert.ErrorIs(t, out.Err, diskFull)
	assert.Equal(t, int32(1), calls.Load(), "no further pages after a consumer failure")
}

func TestFetch_NestedDataKey(t *testing.T) {
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pagination":{"nextCursor":null},"data":{"allSites":{"total":2},"sites":[{"id":"s1","name":"One"},{"id":"s2","name":"Two"}]}}`))
	})

	var names []string
	out := fetcher.Fetch(context.Background(), Endpoint{Path: "/sites", DataKey: "sites"}, nil,
		func(records []record.Record) error {
			for _, rec := range records {
				names = append(names, rec.GetOr("name", ""))
			}
			return nil
		})

	assert.Equal(t, Completed, out.Status)
	assert.Equal(t, []string{"One", "Two"}, names)
}

func TestFetch_SendsMergedParameters(t *testing.T) {
	var seen url.Values
	fetcher, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query()
		_, _ = w.Write([]byte(`{"pagination":{},"data":[]}`))
	})

	ep := Endpoint{
		Path:     "/exclusions",
		PageSize: 50,
		Static:   url.Values{"type": {"path"}, "countOnly": {"false"}},
	}
	out := fetcher.Fetch(context.Background(), ep, url.Values{"siteIds": {"42"}, "type": {"certificate"}},
		func([]record.Record) error { return nil })

	assert.Equal(t, Completed, out.Status)
	assert.Equal(t, "50", seen.Get("limit"))
	assert.Equal(t, "certificate", seen.Get("type"))
	assert.Equal(t, "false", seen.Get("countOnly"))
	assert.Equal(t, "42", seen.Get("siteIds"))
	assert.Empty(t, seen.Get("cursor"))
}

func TestCursorText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{``, ""},
		{`null`, ""},
		{`""`, ""},
		{`false`, ""},
		{`"abc"`, "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cursorText([]byte(tt.raw)), "raw %q", tt.raw)
	}
}
