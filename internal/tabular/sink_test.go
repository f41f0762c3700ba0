// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/netSkope/console-export-tool/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func rec(kv ...string) record.Record {
	fields := make([]record.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, record.Field{Name: kv[i], Value: kv[i+1]})
	}
	return record.New(fields...)
}

func newSink(t *testing.T, opts Options) *Sink {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	s, err := NewSink(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func readAll(t *testing.T, b *Buffer) [][]string {
	t.Helper()
	var rows [][]string
	require.NoError(t, b.ReadRows(func(row []string) error {
		rows = append(rows, row)
		return nil
	}))
	return rows
}

func TestWritePage_RendersByHeaderName(t *testing.T) {
	s := newSink(t, Options{ScopeColumn: true})

	w := s.Stream("path", "Site|A")
	require.NoError(t, w.WritePage([]record.Record{rec("id", "1", "value", "/tmp", "osType", "linux")}))
	require.NoError(t, w.WritePage([]record.Record{
		rec("osType", "windows", "id", "2", "value", `C:\x`, "extra", "ignored"),
		rec("id", "3"),
	}))
	require.NoError(t, s.Close())

	b, ok := s.Buffer("path")
	require.True(t, ok)
	assert.Equal(t, [][]string{
		{"Scope", "id", "value", "osType"},
		{"Site|A", "1", "/tmp", "linux"},
		{"Site|A", "2", `C:\x`, "windows"},
		{"Site|A", "3", "", ""},
	}, readAll(t, b))
	assert.Equal(t, 3, b.Rows())
	assert.Equal(t, 1, b.HeaderRows())
}

func TestWritePage_EmptyPageCreatesNoBuffer(t *testing.T) {
	s := newSink(t, Options{})

	require.NoError(t, s.Stream("browser", "Global").WritePage(nil))

	_, ok := s.Buffer("browser")
	assert.False(t, ok)
	assert.Empty(t, s.Buffers())
}

func TestHeaderOnce_ConcurrentStreams(t *testing.T) {
	s := newSink(t, Options{ScopeColumn: true, Policy: HeaderOnce})

	var start sync.WaitGroup
	start.Add(1)
	var done sync.WaitGroup
	for _, label := range []string{"Site|A", "Site|B", "Site|C"} {
		done.Add(1)
		go func(label string) {
			defer done.Done()
			w := s.Stream("path", label)
			start.Wait()
			for i := 0; i < 20; i++ {
				assert.NoError(t, w.WritePage([]record.Record{rec("id", label, "n", "x")}))
			}
		}(label)
	}
	start.Done()
	done.Wait()
	require.NoError(t, s.Close())

	b, _ := s.Buffer("path")
	rows := readAll(t, b)
	headers := 0
	for _, row := range rows {
		if row[0] == ScopeColumn {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
	assert.Equal(t, 60, b.Rows())
	assert.Len(t, rows, 61)
}

func TestHeaderPerStream_EmbedsOneHeaderPerStream(t *testing.T) {
	s := newSink(t, Options{ScopeColumn: true, Policy: HeaderPerStream})

	for _, label := range []string{"Site|A", "Site|B"} {
		w := s.Stream("path", label)
		require.NoError(t, w.WritePage([]record.Record{rec("id", "1")}))
		require.NoError(t, w.WritePage([]record.Record{rec("id", "2")}))
	}
	require.NoError(t, s.Close())

	b, _ := s.Buffer("path")
	assert.Equal(t, [][]string{
		{"Scope", "id"},
		{"Site|A", "1"},
		{"Site|A", "2"},
		{"Scope", "id"},
		{"Site|B", "1"},
		{"Site|B", "2"},
	}, readAll(t, b))
	assert.Equal(t, 2, b.HeaderRows())
	assert.Equal(t, []string{"Scope", "id"}, b.Header())
}

func TestSink_FilesAndOrder(t *testing.T) {
	dir := t.TempDir()
	s := newSink(t, Options{Dir: dir, Prefix: "job-", Delimiter: ';'})
	s.Declare("b", "a", "b")

	require.NoError(t, s.Accept("a", "", rec("k", "v;1")))
	require.NoError(t, s.Accept("dv/file", "", rec("k", "v")))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"b", "a"}, s.Declared())

	var keys []string
	for _, b := range s.Buffers() {
		keys = append(keys, b.Key())
	}
	assert.Equal(t, []string{"a", "dv/file"}, keys)

	data, err := os.ReadFile(filepath.Join(dir, "job-a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "k\n\"v;1\"\n", string(data))

	_, err = os.Stat(filepath.Join(dir, "job-dv_file.csv"))
	assert.NoError(t, err)
}

func TestBuffer_ReadRequiresCloseAndRemoveDeletes(t *testing.T) {
	s := newSink(t, Options{})
	require.NoError(t, s.Accept("k", "", rec("a", "1")))

	b, _ := s.Buffer("k")
	err := b.ReadRows(func([]string) error { return nil })
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "still open"))

	require.NoError(t, b.Remove())
	_, err = os.Stat(b.Path())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, b.Remove(), "second remove is a no-op")

	err = s.Accept("k", "", rec("a", "2"))
	assert.Error(t, err, "writes after close fail")
}

func TestNewSink_RejectsBadDelimiter(t *testing.T) {
	_, err := NewSink(Options{Dir: t.TempDir(), Delimiter: '"'}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestParseHeaderPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    HeaderPolicy
		wantErr bool
	}{
		{"", HeaderOnce, false},
		{"once", HeaderOnce, false},
		{"Per-Stream", HeaderPerStream, false},
		{"twice", "", true},
	}
	for _, tt := range tests {
		got, err := ParseHeaderPolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
