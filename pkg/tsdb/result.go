// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file implements decoding of query response bodies into flat row
// records with group lookup (spec §4.6).
package tsdb

import (
	"encoding/json"
	"fmt"
)

// Row is one flattened value row: every response column keyed by name,
// plus every tag from the series that produced it. The "time" column, if
// present, is always a NanoDate rather than the column's raw JSON value.
type Row map[string]any

// seriesGroup is one recorded (name, tags, rows) triple, as returned
// verbatim by Results.Groups.
type seriesGroup struct {
	Name string
	Tags map[string]string
	Rows []Row
}

// Results is the flattened output of one result entry: an ordered row
// sequence plus a group index for exact tag-set lookup (spec §4.6).
type Results struct {
	Rows   []Row
	groups []seriesGroup
}

// Group returns the rows of the first recorded series whose tag map
// exactly equals matcher (same keys, same values), or nil if none match.
func (r *Results) Group(matcher map[string]string) []Row {
	for _, g := range r.groups {
		if tagsEqual(g.Tags, matcher) {
			return g.Rows
		}
	}
	return nil
}

// Groups returns every recorded (name, tags, rows) triple in series
// order.
func (r *Results) Groups() []seriesGroup {
	return append([]seriesGroup(nil), r.groups...)
}

func tagsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// wireResponse mirrors the query endpoint's JSON envelope:
// {results: [{series?: [...], error?: string}]}.
type wireResponse struct {
	Results []wireResult `json:"results"`
}

type wireResult struct {
	Series []wireSeries `json:"series"`
	Error  string       `json:"error"`
}

type wireSeries struct {
	Name    string            `json:"name"`
	Tags    map[string]string `json:"tags"`
	Columns []string          `json:"columns"`
	Values  [][]any           `json:"values"`
}

// ParseResponse decodes a query response body at the given wire
// precision into one Results per result entry, in response order. When
// precision is PrecisionNanosecond, "time" column values are expected to
// be ISO-8601 strings (the driver must have stripped the precision
// parameter from the request, per spec §4.6); for any other precision
// they are expected to be numbers in that precision's units.
//
// If any result entry carries a non-empty error string, ParseResponse
// returns a *ResultError and no Results (spec §7, kind 3).
func ParseResponse(body []byte, precision Precision) ([]*Results, error) {
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ResultError{Message: fmt.Sprintf("malformed response body: %s", err)}
	}

	out := make([]*Results, 0, len(resp.Results))
	for _, res := range resp.Results {
		if res.Error != "" {
			return nil, &ResultError{Message: res.Error}
		}
		r, err := parseResult(res, precision)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseResult(res wireResult, precision Precision) (*Results, error) {
	r := &Results{}
	for _, s := range res.Series {
		rows := make([]Row, 0, len(s.Values))
		for _, v := range s.Values {
			if len(v) != len(s.Columns) {
				return nil, &ResultError{Message: fmt.Sprintf("series %q: row has %d values, want %d columns", s.Name, len(v), len(s.Columns))}
			}
			row := make(Row, len(s.Columns)+len(s.Tags))
			for j, col := range s.Columns {
				if col == "time" {
					t, err := parseResponseTime(v[j], precision)
					if err != nil {
						return nil, err
					}
					row[col] = t
					continue
				}
				row[col] = v[j]
			}
			for k, tv := range s.Tags {
				row[k] = tv
			}
			rows = append(rows, row)
		}
		r.Rows = append(r.Rows, rows...)
		r.groups = append(r.groups, seriesGroup{Name: s.Name, Tags: s.Tags, Rows: rows})
	}
	return r, nil
}

// parseResponseTime converts one decoded JSON "time" value into a
// NanoDate: an ISO-8601 string uses the ISO path (always full nanosecond
// precision regardless of the requested precision), a JSON number uses
// the numeric path at the response's precision (spec §4.3, §4.6).
func parseResponseTime(v any, precision Precision) (NanoDate, error) {
	switch t := v.(type) {
	case string:
		return NanoDateFromISO(t)
	case float64:
		return TimeToDate(int64(t), precision)
	default:
		return NanoDate{}, &ResultError{Message: fmt.Sprintf("unsupported time value type %T", v)}
	}
}
