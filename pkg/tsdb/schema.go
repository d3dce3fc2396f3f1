// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// FieldType is the declared wire type of a measurement field.
type FieldType int

const (
	FieldFloat FieldType = iota
	FieldInteger
	FieldString
	FieldBoolean
)

func (t FieldType) String() string {
	switch t {
	case FieldFloat:
		return "float"
	case FieldInteger:
		return "integer"
	case FieldString:
		return "string"
	case FieldBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// FieldDecl declares one allowed field name and its wire type.
type FieldDecl struct {
	Name string
	Type FieldType
}

// EncodedField is a field name paired with its already wire-encoded
// value, ready to be joined into a line-protocol field section.
type EncodedField struct {
	Name  string
	Value string
}

// Schema binds a (database, measurement) pair to an ordered list of
// allowed fields and a set of allowed tags (spec §3, "Schema"). Field
// declarations are sorted by name at construction so encoder output is
// deterministic regardless of the order fields were declared in.
//
// A Schema is immutable once built: NewSchema is the only mutator.
type Schema struct {
	Database    string
	Measurement string

	fields []FieldDecl
	tags   map[string]struct{}
}

// NewSchema builds an immutable Schema. It rejects a name that appears
// in both fields and tags.
func NewSchema(database, measurement string, fields map[string]FieldType, tagNames []string) (*Schema, error) {
	tags := make(map[string]struct{}, len(tagNames))
	for _, t := range tagNames {
		tags[t] = struct{}{}
	}

	decls := make([]FieldDecl, 0, len(fields))
	for name, typ := range fields {
		if _, isTag := tags[name]; isTag {
			return nil, &ValidationError{Message: fmt.Sprintf("schema %s.%s: %q declared as both field and tag", database, measurement, name)}
		}
		if name == "time" {
			return nil, &ValidationError{Message: fmt.Sprintf("schema %s.%s: %q is a reserved name", database, measurement, name)}
		}
		decls = append(decls, FieldDecl{Name: name, Type: typ})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })

	return &Schema{Database: database, Measurement: measurement, fields: decls, tags: tags}, nil
}

// Fields returns the schema's field declarations in their deterministic,
// name-sorted order.
func (s *Schema) Fields() []FieldDecl { return append([]FieldDecl(nil), s.fields...) }

var integerPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)

func numericOf(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		if !integerPattern.MatchString(x) {
			return 0, false
		}
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// CoerceFields validates and encodes fields against the schema's
// declared types, emitting entries in the schema's declared (sorted)
// order regardless of the map's iteration order (spec §4.4, §8 property
// "declared fields [a,b,c] ⇒ emitted in order a,b,c").
//
// A field name not declared on the schema, or a value that does not
// match its declared type, is a ValidationError. A nil field value is
// silently dropped.
func (s *Schema) CoerceFields(fields map[string]any) ([]EncodedField, error) {
	declared := make(map[string]FieldType, len(s.fields))
	for _, d := range s.fields {
		declared[d.Name] = d.Type
	}
	for name := range fields {
		if _, ok := declared[name]; !ok {
			return nil, &ValidationError{Message: fmt.Sprintf("%s.%s: undeclared field %q", s.Database, s.Measurement, name)}
		}
	}

	out := make([]EncodedField, 0, len(s.fields))
	for _, d := range s.fields {
		v, present := fields[d.Name]
		if !present || v == nil {
			continue
		}

		enc, err := encodeTypedField(s, d, v)
		if err != nil {
			return nil, err
		}
		out = append(out, EncodedField{Name: d.Name, Value: enc})
	}
	return out, nil
}

func encodeTypedField(s *Schema, d FieldDecl, v any) (string, error) {
	switch d.Type {
	case FieldInteger:
		f, ok := numericOf(v)
		if !ok {
			return "", &ValidationError{Message: fmt.Sprintf("%s.%s: field %q declared integer, got %T", s.Database, s.Measurement, d.Name, v)}
		}
		return strconv.FormatInt(int64(math.Floor(f)), 10) + "i", nil
	case FieldFloat:
		f, ok := numericOf(v)
		if !ok {
			return "", &ValidationError{Message: fmt.Sprintf("%s.%s: field %q declared float, got %T", s.Database, s.Measurement, d.Name, v)}
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case FieldString:
		str, ok := v.(string)
		if !ok {
			return "", &ValidationError{Message: fmt.Sprintf("%s.%s: field %q declared string, got %T", s.Database, s.Measurement, d.Name, v)}
		}
		return QuoteIdentifier(str), nil
	case FieldBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", &ValidationError{Message: fmt.Sprintf("%s.%s: field %q declared boolean, got %T", s.Database, s.Measurement, d.Name, v)}
		}
		if b {
			return "T", nil
		}
		return "F", nil
	default:
		return "", &ValidationError{Message: fmt.Sprintf("%s.%s: field %q has unknown declared type", s.Database, s.Measurement, d.Name)}
	}
}

// CheckTags validates tags against the schema's declared tag set and
// returns the tag names present (spec §4.4, "checkTags(tags) → [name]").
// An undeclared tag name is a ValidationError.
func (s *Schema) CheckTags(tags map[string]string) ([]string, error) {
	names := make([]string, 0, len(tags))
	for name := range tags {
		if _, ok := s.tags[name]; !ok {
			return nil, &ValidationError{Message: fmt.Sprintf("%s.%s: undeclared tag %q", s.Database, s.Measurement, name)}
		}
		names = append(names, name)
	}
	return names, nil
}

// CoerceFieldsFallback is the schemaless encoding path used when no
// Schema is registered for a (database, measurement) pair: field names
// are sorted ascending, string values are quoted, every other value is
// stringified unchanged, and no validation occurs (spec §4.4).
func CoerceFieldsFallback(fields map[string]any) []EncodedField {
	names := make([]string, 0, len(fields))
	for name, v := range fields {
		if v == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]EncodedField, 0, len(names))
	for _, name := range names {
		v := fields[name]
		var enc string
		switch x := v.(type) {
		case string:
			enc = QuoteIdentifier(x)
		default:
			enc = fmt.Sprint(x)
		}
		out = append(out, EncodedField{Name: name, Value: enc})
	}
	return out
}
