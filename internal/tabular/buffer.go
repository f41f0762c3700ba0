// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Buffer is the delimited-file backing store of one file group. The header is
// fixed by the first write and never changes afterwards.
type Buffer struct {
	key       string
	path      string
	delimiter rune

	mu         sync.Mutex
	file       *os.File
	w          *csv.Writer
	header     []string
	headerRows int
	rows       int
	closed     bool
}

func openBuffer(key, path string, delimiter rune) (*Buffer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open buffer file %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	w.Comma = delimiter
	return &Buffer{
		key:       key,
		path:      path,
		delimiter: delimiter,
		file:      file,
		w:         w,
	}, nil
}

// Key is the file-group key.
func (b *Buffer) Key() string { return b.key }

// Path is the backing file path.
func (b *Buffer) Path() string { return b.path }

// Header returns a copy of the fixed header, or nil before the first write.
func (b *Buffer) Header() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.header...)
}

// Rows is the number of data rows written, excluding header rows.
func (b *Buffer) Rows() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows
}

// HeaderRows is the number of header rows written. It is 1 under HeaderOnce.
func (b *Buffer) HeaderRows() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headerRows
}

// writeHeader appends a header row. Caller holds b.mu.
func (b *Buffer) writeHeader(header []string) error {
	if b.header == nil {
		b.header = append([]string{}, header...)
	}
	if err := b.w.Write(header); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", b.path, err)
	}
	b.headerRows++
	return nil
}

// writeRow appends a data row. Caller holds b.mu.
func (b *Buffer) writeRow(row []string) error {
	if err := b.w.Write(row); err != nil {
		return fmt.Errorf("failed to write row to %s: %w", b.path, err)
	}
	b.rows++
	return nil
}

// flush pushes buffered rows to the file. Caller holds b.mu.
func (b *Buffer) flush() error {
	b.w.Flush()
	if err := b.w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", b.path, err)
	}
	return nil
}

// Close flushes and closes the backing file. It is safe to call twice.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	flushErr := b.flush()
	closeErr := b.file.Close()
	return errors.Join(flushErr, closeErr)
}

// ReadRows replays every written row, header rows included, in file order.
// The buffer must be closed first.
func (b *Buffer) ReadRows(fn func(row []string) error) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		return fmt.Errorf("buffer %s is still open", b.key)
	}

	file, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", b.path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = b.delimiter
	r.FieldsPerRecord = -1

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", b.path, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// Remove closes the buffer and deletes its backing file.
func (b *Buffer) Remove() error {
	if err := b.Close(); err != nil {
		return err
	}
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", b.path, err)
	}
	return nil
}
