// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Precision identifies the unit of an integer timestamp on the wire.
type Precision string

const (
	PrecisionNanosecond  Precision = "n"
	PrecisionMicrosecond Precision = "u"
	PrecisionMillisecond Precision = "ms"
	PrecisionSecond      Precision = "s"
	PrecisionMinute      Precision = "m"
	PrecisionHour        Precision = "h"
)

// Valid reports whether p is one of the six recognized precision tags.
func (p Precision) Valid() bool {
	switch p {
	case PrecisionNanosecond, PrecisionMicrosecond, PrecisionMillisecond,
		PrecisionSecond, PrecisionMinute, PrecisionHour:
		return true
	}
	return false
}

// nsPerUnit is the number of nanoseconds in one unit of p.
func nsPerUnit(p Precision) int64 {
	switch p {
	case PrecisionNanosecond:
		return 1
	case PrecisionMicrosecond:
		return 1_000
	case PrecisionMillisecond:
		return 1_000_000
	case PrecisionSecond:
		return 1_000_000_000
	case PrecisionMinute:
		return 60 * 1_000_000_000
	case PrecisionHour:
		return 3600 * 1_000_000_000
	default:
		return 0
	}
}

// NanoDate is a date-like value that additionally carries a 19-character
// decimal unix-nanoseconds string, losslessly round-trippable through an
// ISO-8601 string with 9-digit fractional seconds (spec §3, "Nano-date").
//
// Its ordinary accessors (Time, UnixMilli) behave like a plain
// millisecond-resolution date; Time.Truncate(time.Millisecond) and the
// nano string always agree modulo 1e6, per the data-model invariant.
type NanoDate struct {
	nanos string // exact decimal unix-nanoseconds
}

var nanoStringPattern = regexp.MustCompile(`^[0-9]+$`)

// NanoDateFromNanoString builds a NanoDate from a precise 19-digit
// unix-nanoseconds decimal string (the "precise path" of spec §3).
func NanoDateFromNanoString(s string) (NanoDate, error) {
	if !nanoStringPattern.MatchString(s) {
		return NanoDate{}, &ValidationError{Message: fmt.Sprintf("nano timestamp %q is not a decimal integer", s)}
	}
	return NanoDate{nanos: s}, nil
}

// NanoDateFromISO parses an ISO-8601 string of the form
// "YYYY-MM-DDTHH:MM:SS[.fff…]Z" (the "ISO path" of spec §3): the
// fractional part (zero or more digits) is right-padded to 9 digits and
// concatenated onto the integer-seconds part scaled to nanoseconds.
func NanoDateFromISO(iso string) (NanoDate, error) {
	sec, frac, ok := strings.Cut(iso, ".")
	fracDigits := ""
	if ok {
		// Trailing "Z" (or a timezone) terminates the fractional digits.
		end := strings.IndexFunc(frac, func(r rune) bool { return r < '0' || r > '9' })
		if end == -1 {
			end = len(frac)
		}
		fracDigits = frac[:end]
	} else {
		sec = strings.TrimSuffix(sec, "Z")
	}
	if len(fracDigits) > 9 {
		fracDigits = fracDigits[:9]
	} else {
		fracDigits = fracDigits + strings.Repeat("0", 9-len(fracDigits))
	}

	t, err := time.Parse(time.RFC3339, strings.TrimSuffix(sec, "Z")+"Z")
	if err != nil {
		return NanoDate{}, &ValidationError{Message: fmt.Sprintf("invalid ISO timestamp %q: %s", iso, err)}
	}

	nanos := strconv.FormatInt(t.Unix(), 10) + fracDigits
	return NanoDate{nanos: nanos}, nil
}

// NanoDateFromUnix builds a NanoDate from an integer timestamp ts at
// precision p (the inverse of ToTime for the nano path).
func NanoDateFromUnix(ts int64, p Precision) NanoDate {
	ns := ts * nsPerUnit(p)
	return NanoDate{nanos: strconv.FormatInt(ns, 10)}
}

// NanoTime returns the exact unix-nanoseconds decimal string.
func (d NanoDate) NanoTime() string { return d.nanos }

// Time returns the millisecond-resolution instant underlying d, in UTC.
func (d NanoDate) Time() time.Time {
	ns, _ := strconv.ParseInt(d.nanos, 10, 64)
	return time.UnixMilli(ns / 1_000_000).UTC()
}

// UnixMilli returns the millisecond-resolution instant as a unix-epoch
// millisecond count, equivalent to JavaScript's Date#getTime().
func (d NanoDate) UnixMilli() int64 {
	ns, _ := strconv.ParseInt(d.nanos, 10, 64)
	return ns / 1_000_000
}

// ToNanoISOString renders d as an ISO-8601 string with 9-digit fractional
// seconds, taking the nano string's last 9 digits as the fraction.
func (d NanoDate) ToNanoISOString() string {
	n := d.nanos
	if len(n) <= 9 {
		n = strings.Repeat("0", 10-len(n)) + n
	}
	secPart, fracPart := n[:len(n)-9], n[len(n)-9:]
	secs, _ := strconv.ParseInt(secPart, 10, 64)
	return time.Unix(secs, 0).UTC().Format("2006-01-02T15:04:05") + "." + fracPart + "Z"
}

// ToTime converts d to the target precision p, per spec §4.3's
// nanosecond path: 'n' returns the 19-digit nano string verbatim, 'u'
// truncates to the first 16 digits, coarser precisions floor-divide the
// millisecond value.
func (d NanoDate) ToTime(p Precision) (string, error) {
	if !p.Valid() {
		return "", &ValidationError{Message: fmt.Sprintf("unknown precision %q", p)}
	}
	switch p {
	case PrecisionNanosecond:
		return d.nanos, nil
	case PrecisionMicrosecond:
		n := d.nanos
		if len(n) > 16 {
			n = n[:16]
		}
		return n, nil
	default:
		ms := d.UnixMilli()
		return strconv.FormatInt(scaleMillis(ms, p), 10), nil
	}
}

// FormatNanoDate renders d as a quoted query-text timestamp literal with
// 9-digit fractional seconds: "YYYY-MM-DD HH:MM:SS.nnnnnnnnn".
func FormatNanoDate(d NanoDate) string {
	iso := d.ToNanoISOString()
	body := strings.TrimSuffix(iso, "Z")
	body = strings.Replace(body, "T", " ", 1)
	return `"` + body + `"`
}

// FormatDate renders t (treated at millisecond resolution) as a quoted
// query-text timestamp literal: "YYYY-MM-DD HH:MM:SS.mmm".
func FormatDate(t time.Time) string {
	t = t.UTC()
	return `"` + t.Format("2006-01-02 15:04:05.000") + `"`
}

// ToTimeFromDate converts t (treated at millisecond resolution) to the
// target precision p, per spec §4.3's millisecond path.
func ToTimeFromDate(t time.Time, p Precision) (string, error) {
	if !p.Valid() {
		return "", &ValidationError{Message: fmt.Sprintf("unknown precision %q", p)}
	}
	return strconv.FormatInt(scaleMillis(t.UnixMilli(), p), 10), nil
}

// scaleMillis converts a millisecond count into the integer count of
// units of p, floor-dividing for precisions coarser than milliseconds.
func scaleMillis(ms int64, p Precision) int64 {
	switch p {
	case PrecisionMillisecond:
		return ms
	case PrecisionMicrosecond:
		return ms * 1_000
	case PrecisionNanosecond:
		return ms * 1_000_000
	case PrecisionSecond:
		return floorDiv(ms, 1_000)
	case PrecisionMinute:
		return floorDiv(ms, 60_000)
	case PrecisionHour:
		return floorDiv(ms, 3_600_000)
	default:
		return ms
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// TimeToDate converts an integer timestamp ts at precision p back into a
// NanoDate (the inverse used when parsing a response encoded at a
// non-nanosecond precision, spec §4.3/§4.6).
func TimeToDate(ts int64, p Precision) (NanoDate, error) {
	if !p.Valid() {
		return NanoDate{}, &ValidationError{Message: fmt.Sprintf("unknown precision %q", p)}
	}
	return NanoDateFromUnix(ts, p), nil
}

var numericStringPattern = regexp.MustCompile(`^[0-9]+$`)

// CastTimestamp coerces a caller-supplied write timestamp into the wire
// string at precision p (spec §4.3, "Cast timestamp"): a numeric string
// is passed through, a plain number is stringified, a time.Time or
// NanoDate is converted via ToTimeFromDate/ToTime.
func CastTimestamp(v any, p Precision) (string, error) {
	switch t := v.(type) {
	case string:
		if !numericStringPattern.MatchString(t) {
			return "", &ValidationError{Message: fmt.Sprintf("timestamp string %q is not a decimal integer", t)}
		}
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatInt(int64(t), 10), nil
	case time.Time:
		return ToTimeFromDate(t, p)
	case NanoDate:
		return t.ToTime(p)
	default:
		return "", &ValidationError{Message: fmt.Sprintf("unsupported timestamp type %T", v)}
	}
}
