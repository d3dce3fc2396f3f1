// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tsdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/cc-tsdb-client/pkg/backoff"
)

// TestNewHostRejectsBadScheme verifies a non-http(s) scheme is a
// validation error.
func TestNewHostRejectsBadScheme(t *testing.T) {
	_, err := NewHost("ftp://example.com", HostOptions{}, backoff.NewConstant(time.Second, 0))
	require.Error(t, err)
	require.IsType(t, &ValidationError{}, err)
}

// TestNewHostStartsAtInitialBackoff verifies a freshly constructed host
// carries exactly the backoff strategy it was given.
func TestNewHostStartsAtInitialBackoff(t *testing.T) {
	initial := backoff.NewConstant(5*time.Second, 0)
	h, err := NewHost("http://example.com:8086", HostOptions{}, initial)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, h.Backoff.GetDelay())
}
