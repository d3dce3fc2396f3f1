// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import (
	"fmt"
	"strings"
)

// Raw opts a string out of escaping wherever an escape mode would
// otherwise apply: when the escaper encounters a Raw value it emits the
// inner string verbatim.
type Raw string

// escapeMode selects one of the four position-specific escaping rules
// the wire formats require.
type escapeMode int

const (
	// escapeMeasurement backslash-escapes ',' and ' ' — used for the
	// measurement name in line protocol.
	escapeMeasurement escapeMode = iota
	// escapeTag backslash-escapes ',', '=' and ' ' — used for tag keys,
	// tag values and field keys in line protocol.
	escapeTag
	// escapeQuoted wraps the value in '"', backslash-escaping '"' and
	// '\' inside — used for identifiers in query text.
	escapeQuoted
	// escapeStringLit wraps the value in '\'', backslash-escaping '\''
	// and '\' inside — used for string literals in query text.
	escapeStringLit
)

// escape applies mode to s, unless s is wrapped in Raw in which case it
// is passed through unchanged.
func escape(mode escapeMode, s any) string {
	if r, ok := s.(Raw); ok {
		return string(r)
	}
	str, ok := s.(string)
	if !ok {
		str = fmt.Sprint(s)
	}
	switch mode {
	case escapeMeasurement:
		return escapeChars(str, ",", " ")
	case escapeTag:
		return escapeChars(str, ",", "=", " ")
	case escapeQuoted:
		return `"` + escapeChars(str, `"`, `\`) + `"`
	case escapeStringLit:
		return `'` + escapeChars(str, `'`, `\`) + `'`
	default:
		return str
	}
}

// escapeChars backslash-escapes every occurrence of any of cutset's bytes
// in s. The backslash itself, when named in cutset, is escaped too — so
// callers that need it escaped must list it explicitly (escapeQuoted and
// escapeStringLit do; escapeMeasurement and escapeTag don't, matching the
// wire protocol's own rules).
func escapeChars(s string, cutset ...string) string {
	if !strings.ContainsAny(s, strings.Join(cutset, "")) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		for _, cut := range cutset {
			if len(cut) == 1 && c == cut[0] {
				b.WriteByte('\\')
				break
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// EscapeMeasurement escapes a measurement name for embedding in line
// protocol (spec §4.2, mode "measurement"). A Raw value is passed through
// unescaped.
func EscapeMeasurement(s any) string { return escape(escapeMeasurement, s) }

// EscapeTag escapes a tag key, tag value or field key for embedding in
// line protocol (spec §4.2, mode "tag"). A Raw value is passed through
// unescaped.
func EscapeTag(s any) string { return escape(escapeTag, s) }

// QuoteIdentifier wraps s in double quotes for embedding as an
// identifier in query text (spec §4.2, mode "quoted"). A Raw value is
// passed through unescaped (and unquoted).
func QuoteIdentifier(s any) string { return escape(escapeQuoted, s) }

// QuoteStringLiteral wraps s in single quotes for embedding as a string
// literal in query text (spec §4.2, mode "stringLit"). A Raw value is
// passed through unescaped (and unquoted).
func QuoteStringLiteral(s any) string { return escape(escapeStringLit, s) }
