// Package client issues one range query per connection.
//
// A connection that closes without a Response means the server could not
// produce data for the range. Callers must not treat ErrNoResponse as an
// empty result.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/danmuck/barcoded/internal/calendar"
	"github.com/danmuck/barcoded/internal/protocol"
	"github.com/danmuck/barcoded/internal/protocol/frame"
)

const DefaultAddr = "127.0.0.1:2348"

var ErrNoResponse = errors.New("client: connection closed without response")

// Client dials addr once per query. It keeps no connection between calls.
type Client struct {
	addr        string
	dialTimeout time.Duration
	limits      frame.Limits
}

func New(addr string) *Client {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{
		addr:        addr,
		dialTimeout: 5 * time.Second,
		limits:      frame.DefaultLimits(),
	}
}

// WithDialTimeout returns a copy of c using timeout for connection setup.
func (c *Client) WithDialTimeout(timeout time.Duration) *Client {
	out := *c
	out.dialTimeout = timeout
	return &out
}

func (c *Client) Addr() string {
	return c.addr
}

// Query sends one Request for start..end and waits for the single Response.
// Cancelling ctx closes the connection.
func (c *Client) Query(ctx context.Context, start, end calendar.Date) (protocol.Response, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("client: dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	release := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer release()

	resp, err := Exchange(conn, protocol.Request{Start: start, End: end}, c.limits)
	if err != nil && ctx.Err() != nil {
		return protocol.Response{}, ctx.Err()
	}
	return resp, err
}

// Exchange writes req to rw and reads exactly one Response back.
func Exchange(rw io.ReadWriter, req protocol.Request, limits frame.Limits) (protocol.Response, error) {
	if err := protocol.WriteRequest(rw, req, limits); err != nil {
		return protocol.Response{}, err
	}
	resp, err := protocol.ReadResponse(rw, limits)
	if errors.Is(err, frame.ErrNoFrame) {
		return protocol.Response{}, ErrNoResponse
	}
	if err != nil {
		return protocol.Response{}, err
	}
	return resp, nil
}
