// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file implements the multi-host request dispatcher: round-robin
// selection, per-host backoff/penalization, bounded retries and
// per-attempt timeouts (spec §4.7).
package tsdb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ClusterCockpit/cc-tsdb-client/pkg/backoff"
	cclog "github.com/ClusterCockpit/cc-tsdb-client/pkg/log"
)

// PoolOptions configures a Pool at construction time.
type PoolOptions struct {
	// Timeout bounds a single HTTP attempt; it does not bound the whole
	// logical request when retries occur.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after the first.
	// Zero (the default) means a failed attempt is never retried.
	MaxRetries int
	// NewBackoff builds the backoff strategy assigned to a newly added
	// host, and the strategy a host is reset to on success. Defaults to
	// an exponential backoff (1s initial, 30s max, random attempt offset
	// of up to 1).
	NewBackoff func() backoff.Strategy
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.NewBackoff == nil {
		o.NewBackoff = func() backoff.Strategy {
			return backoff.NewExponential(time.Second, 30*time.Second, 1)
		}
	}
	return o
}

// Pool dispatches HTTP requests across a set of Hosts, load-balancing
// with round-robin selection and penalizing hosts that fail (spec §3,
// §4.7, "Pool"). A Pool is safe for concurrent use.
type Pool struct {
	opts   PoolOptions
	client *http.Client

	mu        sync.Mutex
	available []*Host
	disabled  map[uuid.UUID]*Host
	cursor    int
	timers    map[uuid.UUID]*time.Timer
}

// NewPool builds a Pool over the given hosts, all initially available.
func NewPool(hosts []*Host, opts PoolOptions) *Pool {
	opts = opts.withDefaults()
	p := &Pool{
		opts:      opts,
		client:    &http.Client{Timeout: opts.Timeout},
		available: append([]*Host(nil), hosts...),
		disabled:  make(map[uuid.UUID]*Host),
		timers:    make(map[uuid.UUID]*time.Timer),
	}
	return p
}

// AddHost registers a new host, appending it to the available list.
// Dynamic addition is permitted; removal is not (spec §5, "Resource
// lifecycle").
func (p *Pool) AddHost(h *Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = append(p.available, h)
}

// getHost returns the host currently at the round-robin cursor and
// advances the cursor. Caller must hold p.mu. Returns nil if no host is
// available.
func (p *Pool) getHost() *Host {
	if len(p.available) == 0 {
		return nil
	}
	h := p.available[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.available)
	return h
}

// penalize moves h from available to disabled, advances its backoff,
// and schedules a re-enable timer. Caller must hold p.mu.
func (p *Pool) penalize(h *Host) {
	idx := -1
	for i, a := range p.available {
		if a.ID == h.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return // already penalized by a concurrent attempt
	}

	p.available = append(p.available[:idx], p.available[idx+1:]...)
	if len(p.available) > 0 {
		// Decrement cursor modulo the new size rather than reusing the
		// stale post-increment cursor: the removed host's own index is
		// where "one before the next host" now lands after the removal
		// (spec §4.7, Penalize step), preserving round-robin fairness
		// instead of skipping or repeating a host.
		p.cursor = idx % len(p.available)
	} else {
		p.cursor = 0
	}

	delay := h.Backoff.GetDelay()
	h.Backoff = h.Backoff.Next()
	p.disabled[h.ID] = h

	timer := time.AfterFunc(delay, func() { p.reenable(h.ID) })
	p.timers[h.ID] = timer

	cclog.Warnf("tsdb: pool: penalized host %s for %s", h.URL, delay)
}

// reenable moves a disabled host back to the tail of the available
// list. It is always invoked from the re-enable timer, outside any I/O
// suspension point, per the concurrency model (spec §5).
func (p *Pool) reenable(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.disabled[id]
	if !ok {
		return
	}
	delete(p.disabled, id)
	delete(p.timers, id)
	p.available = append(p.available, h)
	cclog.Infof("tsdb: pool: re-enabled host %s", h.URL)
}

// success resets h's backoff to the pool's default. It does not touch
// the re-enable timers.
func (p *Pool) success(h *Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h.success(p.opts.NewBackoff())
}

// Close cancels every pending re-enable timer so none can fire after
// the pool is dropped (spec §5, "scoped timer handles").
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
}

// request is one logical HTTP request the pool dispatches, retrying
// across hosts per the classification table in spec §4.7.
type request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Header http.Header
}

// attemptOutcome classifies what happened on one attempt.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeRequestError
	outcomeServiceUnavailable
	outcomeCancelled
	outcomeOther
)

// do executes req against the pool, retrying per the classification
// table until success, a non-retried error, or retries are exhausted.
func (p *Pool) do(ctx context.Context, req request) ([]byte, *http.Response, error) {
	retries := 0
	for {
		p.mu.Lock()
		h := p.getHost()
		p.mu.Unlock()
		if h == nil {
			return nil, nil, &ServiceUnavailableError{Message: ErrNoHostAvailable}
		}

		body, resp, outcome, err := p.attempt(ctx, h, req)
		switch outcome {
		case outcomeSuccess:
			p.success(h)
			return body, resp, nil
		case outcomeRequestError:
			return nil, resp, err
		case outcomeCancelled:
			return nil, nil, err
		case outcomeServiceUnavailable:
			p.mu.Lock()
			p.penalize(h)
			available := len(p.available)
			p.mu.Unlock()
			if retries < p.opts.MaxRetries && available > 0 {
				retries++
				continue
			}
			return nil, nil, err
		default:
			return nil, nil, err
		}
	}
}

// attempt performs a single HTTP round trip against h and classifies
// the outcome (spec §4.7, "Request execution" + the retry table).
func (p *Pool) attempt(ctx context.Context, h *Host, req request) ([]byte, *http.Response, attemptOutcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	u := *h.URL
	u.Path = joinPath(u.Path, req.Path)
	u.RawQuery = req.Query

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, u.String(), bodyReader)
	if err != nil {
		return nil, nil, outcomeOther, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if h.Options.Username != "" {
		httpReq.SetBasicAuth(h.Options.Username, h.Options.Password)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, outcomeCancelled, &CancelledError{Cause: ctx.Err()}
		}
		if isResubmitError(err) || attemptCtx.Err() == context.DeadlineExceeded {
			return nil, nil, outcomeServiceUnavailable, &ServiceUnavailableError{Message: "request to " + u.String() + " failed", Cause: err}
		}
		return nil, nil, outcomeOther, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, outcomeOther, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, resp, outcomeSuccess, nil
	case resp.StatusCode >= 500:
		return nil, resp, outcomeServiceUnavailable, &ServiceUnavailableError{Message: u.String() + ": " + resp.Status}
	default:
		return nil, resp, outcomeRequestError, &RequestError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
			Method:     req.Method,
			URL:        u.String(),
		}
	}
}

// isResubmitError reports whether err is one of the network error
// classes the retry table treats as service-unavailable: connection
// refused/reset, host unreachable, or a timed-out operation (spec §4.7).
func isResubmitError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

func joinPath(prefix, suffix string) string {
	switch {
	case prefix == "" || prefix == "/":
		return suffix
	case len(prefix) > 0 && prefix[len(prefix)-1] == '/':
		return prefix + suffix[1:]
	default:
		return prefix + suffix
	}
}

// Text issues req and returns the response body as a string.
func (p *Pool) Text(ctx context.Context, req request) (string, error) {
	body, _, err := p.do(ctx, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// JSON issues req and returns the raw response body bytes for the
// caller to decode with ParseResponse.
func (p *Pool) JSON(ctx context.Context, req request) ([]byte, error) {
	body, _, err := p.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Discard issues req, draining and discarding the response body.
func (p *Pool) Discard(ctx context.Context, req request) error {
	_, _, err := p.do(ctx, req)
	return err
}

// PingResult is one host's outcome from Pool.Ping. RTT is -1 when the
// probe got no HTTP response at all (Go has no infinite time.Duration);
// a response with status >= 300 has Online false and a measured RTT.
type PingResult struct {
	URL     string
	Online  bool
	RTT     time.Duration
	Version string
}

// Ping probes every host, available and disabled, with a concurrent GET
// to path, using golang.org/x/sync/errgroup to fan out and join (spec
// §4.7, "Ping"). Ping never mutates pool state. Results are returned in
// no guaranteed order relative to the host list; callers correlate via
// URL.
func (p *Pool) Ping(ctx context.Context, path string, timeout time.Duration) []PingResult {
	p.mu.Lock()
	hosts := make([]*Host, 0, len(p.available)+len(p.disabled))
	hosts = append(hosts, p.available...)
	for _, h := range p.disabled {
		hosts = append(hosts, h)
	}
	p.mu.Unlock()

	results := make([]PingResult, len(hosts))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hosts {
		i, h := i, h
		g.Go(func() error {
			results[i] = p.pingHost(gctx, h, path, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pool) pingHost(ctx context.Context, h *Host, path string, timeout time.Duration) PingResult {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := *h.URL
	u.Path = joinPath(u.Path, path)

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(pingCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return PingResult{URL: u.String(), Online: false, RTT: -1}
	}
	if h.Options.Username != "" {
		httpReq.SetBasicAuth(h.Options.Username, h.Options.Password)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return PingResult{URL: u.String(), Online: false, RTT: -1}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return PingResult{
		URL:     u.String(),
		Online:  resp.StatusCode < 300,
		RTT:     time.Since(start),
		Version: resp.Header.Get("X-Influxdb-Version"),
	}
}
