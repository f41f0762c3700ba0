// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package artifact consolidates finished file-group buffers into a single
// multi-sheet spreadsheet.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const defaultSheet = "Sheet1"

// Source is a finished file-group buffer.
type Source interface {
	Key() string
	ReadRows(fn func(row []string) error) error
	Remove() error
}

// Sheet describes one written sheet.
type Sheet struct {
	Name string
	Key  string
	// Rows counts rows below the first one.
	Rows int
}

// Artifact is the delivered spreadsheet.
type Artifact struct {
	Path   string
	Sheets []Sheet
}

// Sheet returns the sheet written for key.
func (a *Artifact) Sheet(key string) (Sheet, bool) {
	for _, s := range a.Sheets {
		if s.Key == key {
			return s, true
		}
	}
	return Sheet{}, false
}

// Assembler writes spreadsheets from file-group buffers.
type Assembler struct {
	logger *zap.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(logger *zap.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Assemble writes one sheet per file group to dest. Declared keys come first
// in declaration order, followed by any remaining sources in the order given.
// A declared key with no source gets an empty sheet. Each source is removed
// as soon as it has been copied.
func (a *Assembler) Assemble(dest string, declared []string, sources []Source) (*Artifact, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	byKey := make(map[string]Source, len(sources))
	for _, src := range sources {
		byKey[src.Key()] = src
	}

	keys := make([]string, 0, len(declared)+len(sources))
	seen := make(map[string]struct{})
	for _, key := range declared {
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for _, src := range sources {
		if _, dup := seen[src.Key()]; !dup {
			seen[src.Key()] = struct{}{}
			keys = append(keys, src.Key())
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("no file groups to assemble")
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			a.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	namer := NewSheetNamer()
	artifact := &Artifact{Path: dest}

	for i, key := range keys {
		name := namer.Name(key)
		if err := a.addSheet(f, i, name); err != nil {
			return nil, err
		}

		sheet := Sheet{Name: name, Key: key}
		if src, ok := byKey[key]; ok {
			rows, err := a.copyRows(f, name, src)
			if err != nil {
				return nil, fmt.Errorf("failed to copy file group %s: %w", key, err)
			}
			sheet.Rows = rows
			if err := src.Remove(); err != nil {
				a.logger.Warn("Failed to remove file group buffer",
					zap.String("file_group", key),
					zap.Error(err))
			}
		} else {
			a.logger.Info("No data for file group, writing empty sheet", zap.String("file_group", key))
		}

		artifact.Sheets = append(artifact.Sheets, sheet)
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(dest); err != nil {
		return nil, fmt.Errorf("failed to save artifact %s: %w", dest, err)
	}

	a.logger.Info("Artifact assembled",
		zap.String("path", dest),
		zap.Int("sheets", len(artifact.Sheets)))
	return artifact, nil
}

func (a *Assembler) addSheet(f *excelize.File, index int, name string) error {
	if index == 0 {
		if name == defaultSheet {
			return nil
		}
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return fmt.Errorf("failed to name sheet %q: %w", name, err)
		}
		return nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", name, err)
	}
	return nil
}

// copyRows streams src into sheet and returns the number of rows after the
// first.
func (a *Assembler) copyRows(f *excelize.File, sheet string, src Source) (int, error) {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, err
	}

	rowNum := 0
	dropped := 0
	truncated := 0
	err = src.ReadRows(func(row []string) error {
		if rowNum >= excelize.TotalRows {
			dropped++
			return nil
		}
		rowNum++

		values := make([]interface{}, len(row))
		for i, v := range row {
			if utf8.RuneCountInString(v) > excelize.TotalCellChars {
				v = truncateRunes(v, excelize.TotalCellChars)
				truncated++
			}
			values[i] = v
		}

		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, values)
	})
	if err != nil {
		return 0, err
	}
	if err := sw.Flush(); err != nil {
		return 0, err
	}

	if dropped > 0 {
		a.logger.Warn("File group exceeds the sheet row limit, rows dropped",
			zap.String("sheet", sheet),
			zap.Int("dropped", dropped))
	}
	if truncated > 0 {
		a.logger.Warn("Cells truncated to the sheet cell limit",
			zap.String("sheet", sheet),
			zap.Int("cells", truncated))
	}

	if rowNum == 0 {
		return 0, nil
	}
	return rowNum - 1, nil
}
