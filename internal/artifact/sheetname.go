// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package artifact

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// SheetNamer hands out valid, case-insensitively unique sheet names.
type SheetNamer struct {
	used map[string]struct{}
}

// NewSheetNamer creates an empty namer.
func NewSheetNamer() *SheetNamer {
	return &SheetNamer{used: make(map[string]struct{})}
}

// Name returns the sheet name for a file-group key. Characters the format
// forbids become '_', surrounding apostrophes are dropped and the result is
// cut to the maximum length. Collisions get a "_N" suffix.
func (n *SheetNamer) Name(key string) string {
	base := SanitizeSheetName(key)
	name := base
	for i := 2; ; i++ {
		if _, taken := n.used[strings.ToLower(name)]; !taken {
			break
		}
		suffix := fmt.Sprintf("_%d", i)
		name = truncateRunes(base, excelize.MaxSheetNameLength-len(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = struct{}{}
	return name
}

// SanitizeSheetName maps key onto the spreadsheet sheet-name rules.
func SanitizeSheetName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, key)
	name = strings.Trim(name, "'")
	name = truncateRunes(name, excelize.MaxSheetNameLength)
	name = strings.TrimRight(name, "'")
	if strings.TrimSpace(name) == "" {
		return "Sheet"
	}
	return name
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
