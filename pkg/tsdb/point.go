// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

// Point is one line-protocol sample: a measurement, an optional set of
// indexed string tags, a set of typed fields, and an optional timestamp
// (spec §3, "Point").
//
// Field values are bool, int, int64, float64 or string. Timestamp, when
// set, must be a time.Time, a NanoDate, a numeric string, an int, an
// int64 or a float64 — see CastTimestamp.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Timestamp   any
}
