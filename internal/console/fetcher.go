// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package console

import (
	"context"
	"fmt"
	"net/url"

	"github.com/netSkope/console-export-tool/internal/record"
	"go.uber.org/zap"
)

// Status is the terminal state of one paginated retrieval.
type Status int

const (
	Completed Status = iota
	Aborted
)

func (s Status) String() string {
	if s == Completed {
		return "completed"
	}
	return "aborted"
}

// Outcome summarizes one paginated retrieval.
type Outcome struct {
	Status     Status
	Pages      int
	Records    int
	TotalItems int
	// Err is set when Status is Aborted. It is one of *HTTPStatusError,
	// *TransportError or *SinkError.
	Err error
}

// PageFunc receives each page's records before the next page is requested.
// Returning an error aborts the retrieval.
type PageFunc func(records []record.Record) error

// PageFetcher drives a paginated retrieval to completion.
type PageFetcher interface {
	Fetch(ctx context.Context, ep Endpoint, params url.Values, onPage PageFunc) Outcome
}

// Getter is the transport used by Fetcher.
type Getter interface {
	Get(ctx context.Context, path string, params url.Values) (Response, error)
}

// Fetcher follows pagination cursors until the console returns no next cursor.
type Fetcher struct {
	client Getter
	logger *zap.Logger
}

// NewFetcher creates a Fetcher on top of a console client.
func NewFetcher(client Getter, logger *zap.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// Fetch requests pages of ep starting with params. Every failure is local to
// this call: it is logged, recorded in the Outcome and never retried.
func (f *Fetcher) Fetch(ctx context.Context, ep Endpoint, params url.Values, onPage PageFunc) Outcome {
	var out Outcome
	query := ep.InitialQuery(params)

	for {
		resp, err := f.client.Get(ctx, ep.Path, query)
		if err != nil {
			f.logger.Error("Console request failed",
				zap.String("endpoint", ep.Name),
				zap.String("url", resp.URL),
				zap.Error(err))
			return out.abort(err)
		}

		if !resp.OK() {
			f.logger.Error("Console returned an error status",
				zap.String("endpoint", ep.Name),
				zap.String("url", resp.URL),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", resp.Body))
			return out.abort(&HTTPStatusError{
				URL:        resp.URL,
				StatusCode: resp.StatusCode,
				Body:       string(resp.Body),
			})
		}

		page, err := ep.DecodePage(resp.Body)
		if err != nil {
			f.logger.Error("Failed to decode console page",
				zap.String("endpoint", ep.Name),
				zap.String("url", resp.URL),
				zap.Error(err))
			return out.abort(&TransportError{URL: resp.URL, Err: err})
		}

		out.Pages++
		out.Records += len(page.Records)
		if out.Pages == 1 {
			out.TotalItems = page.TotalItems
		}

		if err := onPage(page.Records); err != nil {
			f.logger.Error("Failed to consume console page",
				zap.String("endpoint", ep.Name),
				zap.Int("page", out.Pages),
				zap.Error(err))
			return out.abort(&SinkError{Err: err})
		}

		if page.NextCursor == "" {
			f.logger.Debug("No cursor found, retrieval complete",
				zap.String("endpoint", ep.Name),
				zap.Int("pages", out.Pages),
				zap.Int("records", out.Records))
			out.Status = Completed
			return out
		}

		f.logger.Debug("Found next cursor",
			zap.String("endpoint", ep.Name),
			zap.String("cursor", page.NextCursor))
		query.Set(ep.cursorParam(), page.NextCursor)
	}
}

func (o Outcome) abort(err error) Outcome {
	o.Status = Aborted
	o.Err = err
	return o
}

// String renders the outcome for summaries.
func (o Outcome) String() string {
	if o.Status == Aborted {
		return fmt.Sprintf("aborted after %d pages: %v", o.Pages, o.Err)
	}
	return fmt.Sprintf("completed: %d pages, %d records", o.Pages, o.Records)
}
