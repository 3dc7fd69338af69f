package event

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/navidrome/goupnp-core/gena"
	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/transport"
	"github.com/navidrome/goupnp-core/upnptype"
)

// PropertyListener receives decoded property changes for a client-side
// subscription.
type PropertyListener func(sid string, props []gena.Property, gapped bool)

// Client is the C6 Eventing engine's client side (spec.md §4.6
// "Eventing (client)"): SUBSCRIBE + renewal scheduling, NOTIFY
// handling with sequence-continuity validation.
type Client struct {
	cfg          Config
	http         *transport.HTTPClient
	callbackBase string // this process's own callback URL prefix

	mu        sync.Mutex
	subs      map[string]*gena.Subscription
	listeners map[string]PropertyListener
}

// NewClient constructs a GENA client. callbackBase is this process's
// reachable HTTP base URL, used to build the per-subscription
// callback path spec.md §6 names
// (".../event/cb/<SID>").
func NewClient(cfg Config, callbackBase string) *Client {
	return &Client{
		cfg:          cfg,
		http:         transport.NewHTTPClient(transport.Timeouts{Connect: 2 * time.Second, Read: 3 * time.Second, Total: 5 * time.Second}),
		callbackBase: callbackBase,
		subs:         make(map[string]*gena.Subscription),
		listeners:    make(map[string]PropertyListener),
	}
}

// Subscribe sends SUBSCRIBE to eventURL, records the returned SID and
// lease, and schedules automatic renewal at lease-renewalSlackSec.
func (c *Client) Subscribe(ctx context.Context, eventURL string, listener PropertyListener) (string, error) {
	// The callback path is filled in once the SID is known server-side,
	// but UPnP requires CALLBACK on the initial SUBSCRIBE itself, so a
	// client-generated correlation id is used as a stand-in path
	// component, matching the common pattern of pre-allocating the
	// callback route before the SID exists.
	corrID := gena.NewSID()
	callback := fmt.Sprintf("<%s/event/cb/%s>", strings.TrimSuffix(c.callbackBase, "/"), corrID)

	h := transport.NewHeader()
	h.Set("Callback", callback)
	h.Set("Nt", "upnp:event")
	h.Set("Timeout", gena.FormatTimeoutHeader(c.cfg.MaxLease))

	resp, err := c.http.Request(ctx, eventURL, &transport.StreamRequest{Method: "SUBSCRIBE", Headers: h})
	if err != nil {
		return "", fmt.Errorf("event: subscribe failed: %w", err)
	}
	if resp.Status != 200 {
		return "", fmt.Errorf("event: subscribe rejected with status %d", resp.Status)
	}

	sid := resp.Headers.Get("Sid")
	timeout, _ := gena.ParseTimeoutHeader(resp.Headers.Get("Timeout"))
	if timeout <= 0 {
		timeout = c.cfg.MaxLease
	}
	sub := &gena.Subscription{
		SID:           sid,
		CallbackURLs:  []string{callback},
		ActualTimeout: timeout,
		ExpiresAt:     time.Now().Add(timeout),
	}

	c.mu.Lock()
	c.subs[corrID] = sub
	c.listeners[corrID] = listener
	c.mu.Unlock()

	go c.scheduleRenewal(ctx, eventURL, corrID)
	return corrID, nil
}

func (c *Client) scheduleRenewal(ctx context.Context, eventURL, corrID string) {
	for {
		c.mu.Lock()
		sub, ok := c.subs[corrID]
		c.mu.Unlock()
		if !ok {
			return
		}
		wait := time.Until(sub.ExpiresAt) - c.cfg.RenewalSlack
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		c.mu.Lock()
		sub, ok = c.subs[corrID]
		c.mu.Unlock()
		if !ok {
			return
		}

		h := transport.NewHeader()
		h.Set("Sid", sub.SID)
		resp, err := c.http.Request(ctx, eventURL, &transport.StreamRequest{Method: "SUBSCRIBE", Headers: h})
		if err != nil || resp.Status != 200 {
			upnplog.Warn(ctx, "GENA subscription renewal failed", err, "sid", sub.SID)
			c.mu.Lock()
			delete(c.subs, corrID)
			delete(c.listeners, corrID)
			c.mu.Unlock()
			return
		}
		timeout, _ := gena.ParseTimeoutHeader(resp.Headers.Get("Timeout"))
		if timeout <= 0 {
			timeout = c.cfg.MaxLease
		}
		c.mu.Lock()
		sub.ActualTimeout = timeout
		sub.ExpiresAt = time.Now().Add(timeout)
		c.mu.Unlock()
	}
}

// HandleNotify processes an incoming NOTIFY on this client's own
// callback server, validating SEQ continuity (spec.md §4.6 "Eventing
// (client)": initial = 0, then 1, 2, ...; wrap skips 0; on a missed
// sequence number the subscription is marked gapped but the event is
// still surfaced, since UPnP defines no resync mechanism).
func (c *Client) HandleNotify(ctx context.Context, corrID string, headers transport.Header, body []byte) error {
	c.mu.Lock()
	sub, ok := c.subs[corrID]
	listener := c.listeners[corrID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("event: NOTIFY for unknown subscription %q", corrID)
	}

	var seq uint32
	if _, err := fmt.Sscanf(headers.Get("Seq"), "%d", &seq); err != nil {
		return fmt.Errorf("event: NOTIFY missing/invalid SEQ: %w", err)
	}

	gapped := false
	if seq != 0 && upnptype.UnsignedIntegerFourBytes(seq) != sub.EventKey.Next() {
		gapped = true
		sub.Gapped = true
	}
	sub.EventKey = upnptype.UnsignedIntegerFourBytes(seq)

	props, err := gena.DecodePropertySet(body)
	if err != nil {
		return fmt.Errorf("event: decode NOTIFY body: %w", err)
	}
	if listener != nil {
		listener(sub.SID, props, gapped)
	}
	return nil
}

// Unsubscribe sends UNSUBSCRIBE and forgets the subscription.
func (c *Client) Unsubscribe(ctx context.Context, eventURL, corrID string) error {
	c.mu.Lock()
	sub, ok := c.subs[corrID]
	delete(c.subs, corrID)
	delete(c.listeners, corrID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	h := transport.NewHeader()
	h.Set("Sid", sub.SID)
	_, err := c.http.Request(ctx, eventURL, &transport.StreamRequest{Method: "UNSUBSCRIBE", Headers: h})
	return err
}
