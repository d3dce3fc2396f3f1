// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import "fmt"

// RequestError is returned for an HTTP 3xx/4xx response. It is never
// retried by the pool and is surfaced to the caller immediately
// (spec §7, kind 1).
type RequestError struct {
	StatusCode int
	Status     string
	Body       string
	Method     string
	URL        string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

// ServiceUnavailableError covers HTTP 5xx responses, resubmit-class
// network errors, local timeouts, and the pool having no host left to
// try. It triggers host penalization and a retry; it is surfaced to the
// caller only once retries are exhausted or no host remains
// (spec §7, kind 2).
type ServiceUnavailableError struct {
	Message string
	Cause   error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }

// ErrNoHostAvailable is the ServiceUnavailableError message used when
// every host in the pool is disabled (spec §4.7, §8 scenario 7).
const ErrNoHostAvailable = "No host available"

// ResultError is raised when a query response body carries a non-empty
// "error" string in at least one result entry. It surfaces only after a
// successful HTTP round trip (spec §7, kind 3).
type ResultError struct {
	Message string
}

func (e *ResultError) Error() string { return e.Message }

// ValidationError covers schema violations, unknown precision tags,
// malformed timestamps, and any other un-encodable value. It is raised
// synchronously at the call site before any transport occurs
// (spec §7, kind 4).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CancelledError is returned when a caller-supplied context is cancelled
// mid-attempt; it skips the retry loop entirely and is distinct from a
// ServiceUnavailableError (spec §5, "Cancellation and timeouts").
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string { return "request cancelled: " + e.Cause.Error() }

func (e *CancelledError) Unwrap() error { return e.Cause }
