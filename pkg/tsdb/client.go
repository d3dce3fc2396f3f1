// Copyright (C) ClusterCockpit.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// This file implements the public driver surface: administrative
// statements, queries and writes composed from the encoder (C6), the
// result parser (C7) and the pool (C8) (spec §4.8).
package tsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ClusterCockpit/cc-tsdb-client/pkg/backoff"
)

// Client is the public entry point: a pool of database hosts plus the
// configuration (default database, precision, retention policy, and
// registered schemas) every operation uses unless overridden.
type Client struct {
	pool *Pool
	opts clientOptions
}

// NewClient builds a Client with one host parsed from rawURL per §6's
// configuration-URL grammar. Use AddHost to register further hosts.
func NewClient(rawURL string, opts ...ClientOption) (*Client, error) {
	cfg, err := ParseConfigURL(rawURL)
	if err != nil {
		return nil, err
	}

	o := defaultClientOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.database == "" {
		o.database = cfg.Database
	}

	h, err := NewHost(cfg.BaseURL(), HostOptions{Username: cfg.Username, Password: cfg.Password}, o.newBackoff())
	if err != nil {
		return nil, err
	}

	return &Client{pool: NewPool([]*Host{h}, o.poolOpts), opts: o}, nil
}

// AddHost registers an additional host that authenticates with creds.
func (c *Client) AddHost(rawURL string, creds HostOptions) error {
	h, err := NewHost(rawURL, creds, c.newBackoff())
	if err != nil {
		return err
	}
	c.pool.AddHost(h)
	return nil
}

func (c *Client) newBackoff() backoff.Strategy { return c.opts.newBackoff() }

// Close releases the client's pending re-enable timers.
func (c *Client) Close() { c.pool.Close() }

// statement dispatches a single administrative statement as a POST
// /query with an application/x-www-form-urlencoded body (spec §4.8).
func (c *Client) statement(ctx context.Context, stmt string) error {
	form := url.Values{"q": {stmt}}
	if c.opts.database != "" {
		form.Set("db", c.opts.database)
	}
	_, err := c.pool.JSON(ctx, request{
		Method: http.MethodPost,
		Path:   "/query",
		Body:   []byte(form.Encode()),
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
	})
	return err
}

// CreateDatabase issues `create database "name"`.
func (c *Client) CreateDatabase(ctx context.Context, name string) error {
	return c.statement(ctx, "create database "+QuoteIdentifier(name))
}

// DropDatabase issues `drop database "name"`.
func (c *Client) DropDatabase(ctx context.Context, name string) error {
	return c.statement(ctx, "drop database "+QuoteIdentifier(name))
}

// CreateUser issues `create user "name" with password 'password'`.
func (c *Client) CreateUser(ctx context.Context, name, password string) error {
	return c.statement(ctx, fmt.Sprintf("create user %s with password %s", QuoteIdentifier(name), QuoteStringLiteral(password)))
}

// DropUser issues `drop user "name"`.
func (c *Client) DropUser(ctx context.Context, name string) error {
	return c.statement(ctx, "drop user "+QuoteIdentifier(name))
}

// Privilege is a grantable/revokable database permission level.
type Privilege string

const (
	PrivilegeRead  Privilege = "read"
	PrivilegeWrite Privilege = "write"
	PrivilegeAll   Privilege = "all"
)

// GrantPrivilege issues `grant <privilege> on "database" to "user"`.
func (c *Client) GrantPrivilege(ctx context.Context, priv Privilege, database, user string) error {
	return c.statement(ctx, fmt.Sprintf("grant %s on %s to %s", priv, QuoteIdentifier(database), QuoteIdentifier(user)))
}

// RevokePrivilege issues `revoke <privilege> on "database" from "user"`
// (spec §9's open question on revoke grammar, resolved in favor of this
// form to mirror GrantPrivilege's on/to pairing).
func (c *Client) RevokePrivilege(ctx context.Context, priv Privilege, database, user string) error {
	return c.statement(ctx, fmt.Sprintf("revoke %s on %s from %s", priv, QuoteIdentifier(database), QuoteIdentifier(user)))
}

// ShowDatabases issues `show databases` and returns the flattened rows.
func (c *Client) ShowDatabases(ctx context.Context) (*Results, error) {
	return c.query(ctx, "show databases", c.opts.database, nil, c.opts.defaultPrecision)
}

// Query issues an arbitrary read statement with optional placeholder
// substitution (spec §4.8, "Placeholder expansion"): params values may
// be strings or numbers, JSON-encoded into the params query parameter
// for the server to substitute into the statement text.
func (c *Client) Query(ctx context.Context, statement string, params map[string]any) (*Results, error) {
	return c.query(ctx, statement, c.opts.database, params, c.opts.defaultPrecision)
}

func (c *Client) query(ctx context.Context, statement, database string, params map[string]any, precision Precision) (*Results, error) {
	q := url.Values{"q": {statement}}
	if database != "" {
		q.Set("db", database)
	}
	if c.opts.retentionPolicy != "" {
		q.Set("rp", c.opts.retentionPolicy)
	}
	// Nanosecond precision is never sent: the server returns ISO time
	// strings instead of integers it cannot represent losslessly as a
	// 64-bit float (spec §4.6, "Precision handling").
	if precision != PrecisionNanosecond {
		q.Set("epoch", string(precision))
	}
	if len(params) > 0 {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, &ValidationError{Message: "params: " + err.Error()}
		}
		q.Set("params", string(encoded))
	}

	body, err := c.pool.JSON(ctx, request{
		Method: http.MethodGet,
		Path:   "/query",
		Query:  q.Encode(),
	})
	if err != nil {
		return nil, err
	}

	results, err := ParseResponse(body, precision)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Results{}, nil
	}
	return results[0], nil
}

// WritePoints encodes points with the client's registered schemas and
// writes them to database (or the client's default database when
// empty) at the client's default precision (spec §4.8, "For writes").
func (c *Client) WritePoints(ctx context.Context, database string, points []Point) error {
	if database == "" {
		database = c.opts.database
	}
	body, err := EncodeBatch(database, c.opts.schemas, c.opts.defaultPrecision, points)
	if err != nil {
		return err
	}

	q := url.Values{}
	if database != "" {
		q.Set("db", database)
	}
	q.Set("precision", string(c.opts.defaultPrecision))
	if c.opts.retentionPolicy != "" {
		q.Set("rp", c.opts.retentionPolicy)
	}

	return c.pool.Discard(ctx, request{
		Method: http.MethodPost,
		Path:   "/write",
		Query:  q.Encode(),
		Body:   []byte(body),
	})
}

// Ping probes every host in the pool and returns their reachability,
// round-trip time, and reported server version (spec §4.7, "Ping").
func (c *Client) Ping(ctx context.Context, timeout time.Duration) []PingResult {
	return c.pool.Ping(ctx, "/ping", timeout)
}
