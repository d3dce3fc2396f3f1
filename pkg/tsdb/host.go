// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/ClusterCockpit/cc-tsdb-client/pkg/backoff"
)

// HostOptions carries the per-host transport configuration: the
// basic-auth credentials attached to every request sent to this host
// (spec §3, "Host").
type HostOptions struct {
	Username string
	Password string
}

// Host is one database endpoint tracked by a Pool: a parsed base URL,
// an opaque set of transport options, and the backoff state currently
// governing its re-enable delay (spec §3, "Host").
//
// A Host is a value type; Pool owns a *Host so penalize/success mutate
// the shared record in place rather than through a stale copy. ID
// distinguishes hosts sharing the same URL (not expected in practice,
// but keeps re-enable timers addressable unambiguously).
type Host struct {
	ID      uuid.UUID
	URL     *url.URL
	Options HostOptions
	Backoff backoff.Strategy
}

// NewHost parses rawURL and builds a Host whose backoff starts at
// initial, matching the invariant that an available host's backoff is
// always at its initial state.
func NewHost(rawURL string, opts HostOptions, initial backoff.Strategy) (*Host, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ValidationError{Message: "invalid host URL " + rawURL + ": " + err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{Message: "host URL " + rawURL + ": scheme must be http or https"}
	}
	return &Host{ID: uuid.New(), URL: u, Options: opts, Backoff: initial}, nil
}

// success resets the host's backoff to its initial state (spec §3,
// "transitioning disabled→available resets the backoff only on a
// subsequent successful request").
func (h *Host) success(initial backoff.Strategy) {
	h.Backoff = initial
}
