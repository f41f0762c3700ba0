// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package record

import (
	"reflect"
	"testing"
)

func TestDecodeArray_PreservesKeyOrder(t *testing.T) {
	raw := []byte(`[
		{"zeta": "z", "alpha": 1, "mid": true},
		{"alpha": 2.50, "zeta": null, "extra": {"b": 1, "a": [1, 2]}}
	]`)

	records, err := DecodeArray(raw)
	if err != nil {
		t.Fatalf("DecodeArray() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if got, want := records[0].Names(), []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	if got, want := records[1].Names(), []string{"alpha", "zeta", "extra"}; !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}

	tests := []struct {
		rec  Record
		name string
		want string
	}{
		{records[0], "zeta", "z"},
		{records[0], "alpha", "1"},
		{records[0], "mid", "true"},
		{records[1], "alpha", "2.50"},
		{records[1], "zeta", ""},
		{records[1], "extra", `{"b":1,"a":[1,2]}`},
	}
	for _, tt := range tests {
		got, ok := tt.rec.Get(tt.name)
		if !ok {
			t.Errorf("field %q missing", tt.name)
			continue
		}
		if got != tt.want {
			t.Errorf("field %q = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDecodeArray_NullAndEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", "[]"} {
		records, err := DecodeArray([]byte(raw))
		if err != nil {
			t.Errorf("DecodeArray(%q) error = %v", raw, err)
		}
		if len(records) != 0 {
			t.Errorf("DecodeArray(%q) returned %d records", raw, len(records))
		}
	}
}

func TestDecodeArray_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not an array", `{"a": 1}`},
		{"scalar element", `[1, 2]`},
		{"broken json", `[{"a": }]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeArray([]byte(tt.raw)); err == nil {
				t.Errorf("DecodeArray(%s) should fail", tt.raw)
			}
		})
	}
}

func TestNew_RepeatedNameKeepsPosition(t *testing.T) {
	rec := New(Field{"a", "1"}, Field{"b", "2"}, Field{"a", "3"})

	if rec.Len() != 2 {
		t.Fatalf("expected 2 fields, got %d", rec.Len())
	}
	if got := rec.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("names = %v", got)
	}
	if v, _ := rec.Get("a"); v != "3" {
		t.Errorf("a = %q, want 3", v)
	}
}

func TestRecord_GetOr(t *testing.T) {
	rec := New(Field{"set", "x"}, Field{"empty", ""})

	if got := rec.GetOr("set", "def"); got != "x" {
		t.Errorf("GetOr(set) = %q", got)
	}
	if got := rec.GetOr("empty", "def"); got != "def" {
		t.Errorf("GetOr(empty) = %q", got)
	}
	if got := rec.GetOr("missing", "def"); got != "def" {
		t.Errorf("GetOr(missing) = %q", got)
	}
}
