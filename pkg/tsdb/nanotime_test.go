// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import "testing"

// TestNanoDateFromISORoundTrips verifies the ISO path produces the exact
// 19-digit nanosecond string the spec's nano-date example names, and that
// ToNanoISOString renders it back to a 9-digit-fraction canonical form.
func TestNanoDateFromISORoundTrips(t *testing.T) {
	d, err := NanoDateFromISO("2016-06-13T17:43:50.1004002Z")
	if err != nil {
		t.Fatalf("NanoDateFromISO() error = %v", err)
	}
	if got, want := d.NanoTime(), "1465839830100400200"; got != want {
		t.Errorf("NanoTime() = %q, want %q", got, want)
	}
	if got, want := d.ToNanoISOString(), "2016-06-13T17:43:50.100400200Z"; got != want {
		t.Errorf("ToNanoISOString() = %q, want %q", got, want)
	}
}

// TestNanoDateFromISONoFraction verifies an ISO string with no fractional
// part pads the nano string with nine trailing zeroes.
func TestNanoDateFromISONoFraction(t *testing.T) {
	d, err := NanoDateFromISO("2016-06-13T17:43:50Z")
	if err != nil {
		t.Fatalf("NanoDateFromISO() error = %v", err)
	}
	if got, want := d.NanoTime(), "1465839830000000000"; got != want {
		t.Errorf("NanoTime() = %q, want %q", got, want)
	}
}

// TestNanoDateFromISORejectsGarbage verifies a malformed timestamp raises
// a ValidationError rather than panicking.
func TestNanoDateFromISORejectsGarbage(t *testing.T) {
	_, err := NanoDateFromISO("not-a-timestamp")
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("NanoDateFromISO() error = %v (%T), want *ValidationError", err, err)
	}
}

// TestNanoDateFromNanoStringRejectsNonDecimal verifies the precise path
// rejects a non-decimal string.
func TestNanoDateFromNanoStringRejectsNonDecimal(t *testing.T) {
	_, err := NanoDateFromNanoString("12ab")
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("NanoDateFromNanoString() error = %v (%T), want *ValidationError", err, err)
	}
}

// TestNanoDateUnixMilliTruncates verifies Time/UnixMilli agree with the
// nano string modulo 1e6, per the data-model invariant linking the two
// resolutions.
func TestNanoDateUnixMilliTruncates(t *testing.T) {
	d, err := NanoDateFromNanoString("1465839830100400200")
	if err != nil {
		t.Fatalf("NanoDateFromNanoString() error = %v", err)
	}
	if got, want := d.UnixMilli(), int64(1465839830100); got != want {
		t.Errorf("UnixMilli() = %d, want %d", got, want)
	}
	if got, want := d.Time().UnixMilli(), d.UnixMilli(); got != want {
		t.Errorf("Time().UnixMilli() = %d, want %d", got, want)
	}
}

// TestToTimePrecisions verifies each of the six wire precisions per spec
// §4.3: 'n' is the nano string verbatim, 'u' truncates to microseconds,
// the rest floor-divide the millisecond value.
func TestToTimePrecisions(t *testing.T) {
	d, err := NanoDateFromNanoString("1465839830100400200")
	if err != nil {
		t.Fatalf("NanoDateFromNanoString() error = %v", err)
	}
	cases := []struct {
		precision Precision
		want      string
	}{
		{PrecisionNanosecond, "1465839830100400200"},
		{PrecisionMicrosecond, "1465839830100400"},
		{PrecisionMillisecond, "1465839830100"},
		{PrecisionSecond, "1465839830"},
		{PrecisionMinute, "24430663"},
		{PrecisionHour, "407177"},
	}
	for _, c := range cases {
		got, err := d.ToTime(c.precision)
		if err != nil {
			t.Errorf("ToTime(%q) error = %v", c.precision, err)
			continue
		}
		if got != c.want {
			t.Errorf("ToTime(%q) = %q, want %q", c.precision, got, c.want)
		}
	}
}

// TestToTimeRejectsUnknownPrecision verifies an unrecognized precision tag
// is a ValidationError.
func TestToTimeRejectsUnknownPrecision(t *testing.T) {
	d, _ := NanoDateFromNanoString("1")
	_, err := d.ToTime(Precision("x"))
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("ToTime() error = %v (%T), want *ValidationError", err, err)
	}
}

// TestTimeToDateRoundTripsThroughUnix verifies TimeToDate (the response
// path for non-nanosecond precisions) inverts NanoDateFromUnix.
func TestTimeToDateRoundTripsThroughUnix(t *testing.T) {
	d, err := TimeToDate(1465839830, PrecisionSecond)
	if err != nil {
		t.Fatalf("TimeToDate() error = %v", err)
	}
	if got, want := d.NanoTime(), "1465839830000000000"; got != want {
		t.Errorf("NanoTime() = %q, want %q", got, want)
	}
}

// TestCastTimestampVariants verifies CastTimestamp accepts every type the
// write path allows: a numeric string passed through, integers
// stringified, and a NanoDate converted at the target precision.
func TestCastTimestampVariants(t *testing.T) {
	if got, err := CastTimestamp("1465839830100400200", PrecisionNanosecond); err != nil || got != "1465839830100400200" {
		t.Errorf("CastTimestamp(numeric string) = %q, %v", got, err)
	}
	if got, err := CastTimestamp(1465839830, PrecisionSecond); err != nil || got != "1465839830" {
		t.Errorf("CastTimestamp(int) = %q, %v", got, err)
	}
	d, _ := NanoDateFromNanoString("1465839830100400200")
	if got, err := CastTimestamp(d, PrecisionMillisecond); err != nil || got != "1465839830100" {
		t.Errorf("CastTimestamp(NanoDate) = %q, %v", got, err)
	}
}

// TestCastTimestampRejectsNonDecimalString verifies a string timestamp
// that isn't a plain decimal integer is a ValidationError, not silently
// forwarded to the wire.
func TestCastTimestampRejectsNonDecimalString(t *testing.T) {
	_, err := CastTimestamp("soon", PrecisionSecond)
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("CastTimestamp() error = %v (%T), want *ValidationError", err, err)
	}
}
