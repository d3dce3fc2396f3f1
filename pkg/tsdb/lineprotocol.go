// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file implements serialization of Point batches into the
// database's line-protocol wire text (spec §4.5):
//
//	<measurement-escaped>[,<tagK>=<tagV>…] [<fieldK>=<fieldV>[,…]][ <timestamp>]
//
// Field and tag values never change escaping mode depending on which
// schema produced them — the schema (or its fallback) has already
// encoded each field value; the encoder only escapes names and joins.
package tsdb

import (
	"sort"
	"strings"
)

// schemaKey is how Schemas are looked up by the encoder: one schema per
// (database, measurement) pair.
func schemaKey(database, measurement string) string { return database + "\x00" + measurement }

// SchemaSet is the set of Schemas a Client (or a standalone encoder
// call) consults to validate and type-encode a point's fields.
type SchemaSet map[string]*Schema

// NewSchemaSet registers every schema in schemas under its
// (Database, Measurement) key.
func NewSchemaSet(schemas ...*Schema) SchemaSet {
	set := make(SchemaSet, len(schemas))
	for _, s := range schemas {
		set[schemaKey(s.Database, s.Measurement)] = s
	}
	return set
}

func (s SchemaSet) lookup(database, measurement string) *Schema {
	return s[schemaKey(database, measurement)]
}

// EncodeLine serializes a single Point to its wire line, without a
// trailing newline. database selects the Schema (if any) registered for
// (database, p.Measurement); defaultPrecision is used to cast p.Timestamp
// when present.
func EncodeLine(database string, schemas SchemaSet, defaultPrecision Precision, p Point) (string, error) {
	if p.Measurement == "" {
		return "", &ValidationError{Message: "point measurement must not be empty"}
	}

	var b strings.Builder
	b.WriteString(EscapeMeasurement(p.Measurement))

	if len(p.Tags) > 0 {
		keys := make([]string, 0, len(p.Tags))
		for k := range p.Tags {
			if k == "time" {
				return "", &ValidationError{Message: "tag name \"time\" is reserved"}
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(',')
			b.WriteString(EscapeTag(k))
			b.WriteByte('=')
			b.WriteString(EscapeTag(p.Tags[k]))
		}
	}

	var fields []EncodedField
	schema := schemas.lookup(database, p.Measurement)
	if schema != nil {
		if _, err := schema.CheckTags(p.Tags); err != nil {
			return "", err
		}
		enc, err := schema.CoerceFields(p.Fields)
		if err != nil {
			return "", err
		}
		fields = enc
	} else {
		for name := range p.Fields {
			if name == "time" {
				return "", &ValidationError{Message: "field name \"time\" is reserved"}
			}
		}
		fields = CoerceFieldsFallback(p.Fields)
	}

	// Required regardless of whether a timestamp is supplied: spec §9's
	// open question on tags-only points is resolved in favor of always
	// requiring at least one field.
	if len(fields) == 0 {
		return "", &ValidationError{Message: "point for measurement " + p.Measurement + " has no fields"}
	}

	b.WriteByte(' ')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeTag(f.Name))
		b.WriteByte('=')
		b.WriteString(f.Value)
	}

	if p.Timestamp != nil {
		ts, err := CastTimestamp(p.Timestamp, defaultPrecision)
		if err != nil {
			return "", err
		}
		b.WriteByte(' ')
		b.WriteString(ts)
	}

	return b.String(), nil
}

// EncodeBatch serializes points in caller order, joined by newlines with
// no trailing newline (spec §4.5, §5 "points are serialized in the order
// supplied by the caller").
func EncodeBatch(database string, schemas SchemaSet, defaultPrecision Precision, points []Point) (string, error) {
	lines := make([]string, len(points))
	for i, p := range points {
		line, err := EncodeLine(database, schemas, defaultPrecision, p)
		if err != nil {
			return "", err
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n"), nil
}
