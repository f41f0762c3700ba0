// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package console

import "fmt"

// maxErrorBody bounds the response body kept in an HTTPStatusError.
const maxErrorBody = 2048

// HTTPStatusError is a non-2xx console response. It aborts only its stream.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, body)
}

// TransportError is a connection failure or a response body that could not be
// parsed. It is treated like HTTPStatusError: the stream aborts, siblings run on.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SinkError wraps a failure returned by a page consumer, typically a file
// write on the stream's backing buffer.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("page consumer failed: %v", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
