// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import (
	"testing"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
)

// TestEncodeLineTagEscaping reproduces the spec's literal tag-escape
// scenario: tags sorted ascending by key, both key and value
// tag-escaped, no schema registered.
func TestEncodeLineTagEscaping(t *testing.T) {
	p := Point{
		Measurement: "m",
		Tags: map[string]string{
			"tag_1": "value",
			"tag2":  "value value",
			"tag3":  "value,value",
		},
		Fields: map[string]any{"v": int64(1)},
	}
	got, err := EncodeLine("db", nil, PrecisionNanosecond, p)
	if err != nil {
		t.Fatalf("EncodeLine() error = %v", err)
	}
	want := `m,tag2=value\ value,tag3=value\,value,tag_1=value v=1`
	if got != want {
		t.Errorf("EncodeLine() = %q, want %q", got, want)
	}
}

// TestEncodeLineAscendingFieldOutput verifies schemaless field output is
// sorted ascending by key regardless of map iteration order.
func TestEncodeLineAscendingFieldOutput(t *testing.T) {
	p := Point{
		Measurement: "m",
		Fields:      map[string]any{"b": int64(2), "a": int64(1)},
	}
	got, err := EncodeLine("db", nil, PrecisionNanosecond, p)
	if err != nil {
		t.Fatalf("EncodeLine() error = %v", err)
	}
	if want := "m a=1,b=2"; got != want {
		t.Errorf("EncodeLine() = %q, want %q", got, want)
	}
}

// TestEncodeLineSchemaTypedCoercion reproduces the spec's schema-typed
// coercion scenario across all four field types.
func TestEncodeLineSchemaTypedCoercion(t *testing.T) {
	s, err := NewSchema("db", "m", map[string]FieldType{
		"int":    FieldInteger,
		"float":  FieldFloat,
		"string": FieldString,
		"bool":   FieldBoolean,
	}, nil)
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}
	schemas := NewSchemaSet(s)

	p := Point{
		Measurement: "m",
		Fields: map[string]any{
			"int":    42,
			"float":  43,
			"string": `hello"world`,
			"bool":   true,
		},
	}
	got, err := EncodeLine("db", schemas, PrecisionNanosecond, p)
	if err != nil {
		t.Fatalf("EncodeLine() error = %v", err)
	}
	want := `m bool=T,float=43,int=42i,string="hello\"world"`
	if got != want {
		t.Errorf("EncodeLine() = %q, want %q", got, want)
	}
}

// TestEncodeLineRequiresAtLeastOneField verifies a point with tags but no
// fields is rejected rather than emitting a tags-only line (spec §9's
// second open question).
func TestEncodeLineRequiresAtLeastOneField(t *testing.T) {
	p := Point{Measurement: "m", Tags: map[string]string{"host": "a"}}
	if _, err := EncodeLine("db", nil, PrecisionNanosecond, p); err == nil {
		t.Fatal("EncodeLine() with no fields: want error, got nil")
	}
}

// TestEncodeLineEmptyMeasurementFails verifies an empty measurement name
// is a validation error.
func TestEncodeLineEmptyMeasurementFails(t *testing.T) {
	p := Point{Fields: map[string]any{"v": int64(1)}}
	if _, err := EncodeLine("db", nil, PrecisionNanosecond, p); err == nil {
		t.Fatal("EncodeLine() with empty measurement: want error, got nil")
	}
}

// TestEncodeLineRoundTripsThroughUpstreamDecoder verifies every line this
// encoder produces is valid line protocol by decoding it with the
// independent github.com/influxdata/line-protocol/v2 decoder.
func TestEncodeLineRoundTripsThroughUpstreamDecoder(t *testing.T) {
	p := Point{
		Measurement: "cpu load",
		Tags:        map[string]string{"host": "A, B", "region": "us=east"},
		Fields: map[string]any{
			"value": 0.64,
			"n":     int64(3),
			"ok":    true,
			"label": `a "quoted" value`,
		},
		Timestamp: int64(1465839830100400200),
	}
	line, err := EncodeLine("db", nil, PrecisionNanosecond, p)
	if err != nil {
		t.Fatalf("EncodeLine() error = %v", err)
	}

	dec := lineprotocol.NewDecoderWithBytes([]byte(line))
	if !dec.Next() {
		t.Fatalf("decoder found no line in %q", line)
	}
	measurement, err := dec.Measurement()
	if err != nil {
		t.Fatalf("Measurement() error = %v", err)
	}
	if string(measurement) != "cpu load" {
		t.Errorf("decoded measurement = %q, want %q", measurement, "cpu load")
	}

	gotTags := map[string]string{}
	for {
		k, v, err := dec.NextTag()
		if err != nil {
			t.Fatalf("NextTag() error = %v", err)
		}
		if k == nil {
			break
		}
		gotTags[string(k)] = string(v)
	}
	if gotTags["host"] != "A, B" || gotTags["region"] != "us=east" {
		t.Errorf("decoded tags = %v, want host=%q region=%q", gotTags, "A, B", "us=east")
	}

	gotFields := map[string]lineprotocol.Value{}
	for {
		k, v, err := dec.NextField()
		if err != nil {
			t.Fatalf("NextField() error = %v", err)
		}
		if k == nil {
			break
		}
		gotFields[string(k)] = v
	}
	if gotFields["value"].FloatV() != 0.64 {
		t.Errorf("decoded value field = %v, want 0.64", gotFields["value"])
	}
	if gotFields["n"].FloatV() != 3 {
		t.Errorf("decoded n field = %v, want 3", gotFields["n"])
	}
	if !gotFields["ok"].BoolV() {
		t.Errorf("decoded ok field = %v, want true", gotFields["ok"])
	}
	if gotFields["label"].StringV() != `a "quoted" value` {
		t.Errorf("decoded label field = %q, want %q", gotFields["label"].StringV(), `a "quoted" value`)
	}

	ts, err := dec.Time(lineprotocol.Nanosecond, time.Time{})
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	if ts.UnixNano() != 1465839830100400200 {
		t.Errorf("decoded time = %v, want unixnano 1465839830100400200", ts)
	}
}
