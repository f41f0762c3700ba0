// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package tabular accumulates records into column-stable delimited files, one
// per file group.
package tabular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/netSkope/console-export-tool/internal/record"
	"go.uber.org/zap"
)

// ScopeColumn is the synthetic leading column carrying the scope label.
const ScopeColumn = "Scope"

// HeaderPolicy decides how many header rows a shared file group receives.
type HeaderPolicy string

const (
	// HeaderOnce writes exactly one header per file group, derived from the
	// first record any stream delivers.
	HeaderOnce HeaderPolicy = "once"
	// HeaderPerStream writes a header each time a stream delivers its first
	// page, so a file group shared by several scopes carries one embedded
	// header per scope that returned data.
	HeaderPerStream HeaderPolicy = "per-stream"
)

// ParseHeaderPolicy validates a policy name. Empty means HeaderOnce.
func ParseHeaderPolicy(s string) (HeaderPolicy, error) {
	switch HeaderPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", HeaderOnce:
		return HeaderOnce, nil
	case HeaderPerStream:
		return HeaderPerStream, nil
	default:
		return "", fmt.Errorf("unknown header policy %q (want %q or %q)", s, HeaderOnce, HeaderPerStream)
	}
}

// Options configures a Sink.
type Options struct {
	// Dir receives the delimited files. It is created if missing.
	Dir string
	// Prefix is prepended to every file name.
	Prefix string
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	Policy    HeaderPolicy
	// ScopeColumn prefixes every row with the stream's scope label.
	ScopeColumn bool
}

// Sink owns the buffers of one job. Buffers are created lazily on the first
// non-empty page for their file group.
type Sink struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	buffers  map[string]*Buffer
	order    []string
	declared []string
}

// NewSink prepares the output directory.
func NewSink(opts Options, logger *zap.Logger) (*Sink, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if !validDelimiter(opts.Delimiter) {
		return nil, fmt.Errorf("invalid delimiter %q", opts.Delimiter)
	}
	if opts.Policy == "" {
		opts.Policy = HeaderOnce
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Sink{
		opts:    opts,
		logger:  logger,
		buffers: make(map[string]*Buffer),
	}, nil
}

func validDelimiter(r rune) bool {
	return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError && utf8.ValidRune(r)
}

// Declare registers file groups the job expects, in order. Declared groups
// get a sheet even when no buffer is ever created for them.
func (s *Sink) Declare(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		if !slices.Contains(s.declared, key) {
			s.declared = append(s.declared, key)
		}
	}
}

// Declared returns the declared file groups in declaration order.
func (s *Sink) Declared() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.declared...)
}

// Buffers returns the created buffers in creation order.
func (s *Sink) Buffers() []*Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Buffer, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.buffers[key])
	}
	return out
}

// Buffer returns the buffer for key if it was created.
func (s *Sink) Buffer(key string) (*Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[key]
	return b, ok
}

// Stream returns the writer one export stream uses for its pages.
func (s *Sink) Stream(key, label string) *StreamWriter {
	return &StreamWriter{sink: s, key: key, label: label}
}

// Accept writes a single record outside of any stream. Each call behaves like
// a stream's first page under HeaderPerStream.
func (s *Sink) Accept(key, label string, rec record.Record) error {
	return s.Stream(key, label).WritePage([]record.Record{rec})
}

// Close flushes and closes every buffer.
func (s *Sink) Close() error {
	var errs []error
	for _, b := range s.Buffers() {
		errs = append(errs, b.Close())
	}
	return errors.Join(errs...)
}

// FileName is the buffer file name for key.
func (s *Sink) FileName(key string) string {
	return s.opts.Prefix + safeFileName(key) + ".csv"
}

func (s *Sink) open(key string) (*Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buffers[key]; ok {
		return b, nil
	}
	path := filepath.Join(s.opts.Dir, s.FileName(key))
	b, err := openBuffer(key, path, s.opts.Delimiter)
	if err != nil {
		return nil, err
	}
	s.buffers[key] = b
	s.order = append(s.order, key)
	s.logger.Debug("Created file group buffer", zap.String("file_group", key), zap.String("path", path))
	return b, nil
}

// StreamWriter routes the pages of one (data type, scope) stream into its
// file group's buffer.
type StreamWriter struct {
	sink  *Sink
	key   string
	label string

	// columns is this stream's own header under HeaderPerStream.
	columns []string
}

// WritePage appends one page. The whole page is written under the buffer
// lock, so pages from concurrent streams never interleave.
func (w *StreamWriter) WritePage(records []record.Record) error {
	if len(records) == 0 {
		return nil
	}

	b, err := w.sink.open(w.key)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("buffer %s is closed", w.key)
	}

	var columns []string
	switch w.sink.opts.Policy {
	case HeaderPerStream:
		if w.columns == nil {
			w.columns = w.sink.headerFor(records[0])
			if err := b.writeHeader(w.columns); err != nil {
				return err
			}
		}
		columns = w.columns
	default:
		if b.header == nil {
			if err := b.writeHeader(w.sink.headerFor(records[0])); err != nil {
				return err
			}
		}
		columns = b.header
	}

	for _, rec := range records {
		if err := b.writeRow(w.sink.render(columns, w.label, rec)); err != nil {
			return err
		}
	}
	return b.flush()
}

func (s *Sink) headerFor(rec record.Record) []string {
	names := rec.Names()
	if !s.opts.ScopeColumn {
		return names
	}
	return append([]string{ScopeColumn}, names...)
}

// render looks each column up by name; missing fields yield empty cells.
func (s *Sink) render(columns []string, label string, rec record.Record) []string {
	row := make([]string, len(columns))
	start := 0
	if s.opts.ScopeColumn && len(columns) > 0 {
		row[0] = label
		start = 1
	}
	for i := start; i < len(columns); i++ {
		row[i], _ = rec.Get(columns[i])
	}
	return row
}

func safeFileName(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, key)
}
