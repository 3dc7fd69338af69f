package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// HTTPClient is the control-point/client side of the HTTP stream
// transport (spec.md §4.4): builds an outgoing request, applies
// connect/read/total timeouts, and returns the decoded response.
// Grounded on the teacher's sonos_cast http.Client usage
// (avtransport.go, discovery.go) — this is explicitly the pluggable
// "HTTP server/client engine" spec.md §1 calls an external collaborator,
// so it is built directly on net/http rather than a third-party HTTP
// client library.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient returns a client configured with the given timeouts.
func NewHTTPClient(t Timeouts) *HTTPClient {
	dialer := &net.Dialer{Timeout: t.Connect}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: t.Read,
	}
	return &HTTPClient{client: &http.Client{Transport: transport, Timeout: t.Total}}
}

// Request sends a StreamRequest and returns the decoded StreamResponse.
func (c *HTTPClient) Request(ctx context.Context, url string, req *StreamRequest) (*StreamResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read response body: %w", err)
	}
	out := &StreamResponse{Status: resp.StatusCode, Headers: NewHeader(), Body: body}
	for k, vs := range resp.Header {
		for _, v := range vs {
			out.Headers.Add(k, v)
		}
	}
	return out, nil
}

// HTTPServerOptions configures the listening side's timeouts,
// mirroring net/http.Server's own knobs (no GENA/SOAP-specific
// behavior lives here — that's the router/control/event engines'
// job; this is purely the transport edge).
type HTTPServerOptions struct {
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultHTTPServerOptions matches common UPnP device server behavior:
// generous enough for slow control points, bounded against idle-conn
// exhaustion.
var DefaultHTTPServerOptions = HTTPServerOptions{
	ReadHeaderTimeout: 5 * time.Second,
	WriteTimeout:      30 * time.Second,
	IdleTimeout:       2 * time.Minute,
}
