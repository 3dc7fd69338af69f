// Package event implements the Eventing protocol engine from spec.md
// §4.6 (GENA server and client sides): SUBSCRIBE/UNSUBSCRIBE/renewal,
// initial-event delivery, NOTIFY dispatch with sequence ordering, and
// lease expiry. Not grounded in a single teacher file — no GENA code
// was retrieved for this corpus — so it follows spec.md directly,
// styled after control/control.go's StreamEngine shape and
// transport.HTTPClient's timeout handling (documented in DESIGN.md).
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

// ManagerLookup resolves a (UDN, serviceId) event-URL path into the
// subset of service.Manager the eventing server needs.
type ManagerLookup func(udn, serviceID string) (Source, bool)

// Source is implemented by *service.Manager.
type Source interface {
	InitialEvent(ctx context.Context) ([]gena.Property, error)
}

// Config bundles spec.md §6's minLeaseSec/maxLeaseSec/renewalSlackSec.
type Config struct {
	MinLease      time.Duration
	MaxLease      time.Duration
	RenewalSlack  time.Duration
	DeliveryTimeout time.Duration
}

// Server is the C6 Eventing engine's server side.
type Server struct {
	cfg    Config
	lookup ManagerLookup
	prefix string

	mu   sync.RWMutex
	subs map[string]*gena.Subscription // keyed by SID

	client *transport.HTTPClient
}

// NewServer constructs an Eventing server.
func NewServer(cfg Config, lookup ManagerLookup, prefix string) *Server {
	return &Server{
		cfg:    cfg,
		lookup: lookup,
		prefix: prefix,
		subs:   make(map[string]*gena.Subscription),
		client: transport.NewHTTPClient(transport.Timeouts{Connect: 2 * time.Second, Read: 3 * time.Second, Total: 5 * time.Second}),
	}
}

// Matches implements router.StreamEngine: SUBSCRIBE/UNSUBSCRIBE verbs,
// whatever the path (HandleStream rejects non-event paths with 404).
func (s *Server) Matches(req *transport.StreamRequest) bool {
	return req.Method == "SUBSCRIBE" || req.Method == "UNSUBSCRIBE"
}

// HandleStream implements router.StreamEngine (spec.md §4.6 "Eventing
// (server)").
func (s *Server) HandleStream(ctx context.Context, req *transport.StreamRequest) *transport.StreamResponse {
	udn, serviceID, ok := parseEventPath(s.prefix, req.Path)
	if !ok {
		return transport.NewStreamResponse(404, "text/plain", []byte("not found"))
	}

	switch req.Method {
	case "SUBSCRIBE":
		return s.handleSubscribe(ctx, udn, serviceID, req)
	case "UNSUBSCRIBE":
		return s.handleUnsubscribe(req)
	default:
		return transport.NewStreamResponse(405, "text/plain", []byte("method not allowed"))
	}
}

func (s *Server) handleSubscribe(ctx context.Context, udn, serviceID string, req *transport.StreamRequest) *transport.StreamResponse {
	sid := req.Headers.Get("Sid")
	callback := req.Headers.Get("Callback")
	nt := req.Headers.Get("Nt")

	if sid != "" && callback == "" && nt == "" {
		return s.renew(sid, req)
	}

	if nt != "upnp:event" || callback == "" {
		return transport.NewStreamResponse(400, "text/plain", []byte("bad request"))
	}

	mgr, ok := s.lookup(udn, serviceID)
	if !ok {
		return transport.NewStreamResponse(404, "text/plain", []byte("not found"))
	}

	requested, err := gena.ParseTimeoutHeader(req.Headers.Get("Timeout"))
	if err != nil {
		requested = 0
	}
	actual := gena.ClampTimeout(requested, s.cfg.MinLease, s.cfg.MaxLease)

	sub := &gena.Subscription{
		SID:              gena.NewSID(),
		ServiceID:        serviceID,
		CallbackURLs:     parseCallbacks(callback),
		RequestedTimeout: requested,
		ActualTimeout:    actual,
		ExpiresAt:        time.Now().Add(actual),
	}
	s.mu.Lock()
	s.subs[sub.SID] = sub
	s.mu.Unlock()

	props, err := mgr.InitialEvent(ctx)
	if err != nil {
		upnplog.Warn(ctx, "failed to compute initial event", err, "sid", sub.SID)
	} else {
		go s.deliver(ctx, sub, props, true)
	}

	h := transport.NewHeader()
	h.Set("Sid", sub.SID)
	h.Set("Timeout", gena.FormatTimeoutHeader(actual))
	return &transport.StreamResponse{Status: 200, Headers: h}
}

func (s *Server) renew(sid string, req *transport.StreamRequest) *transport.StreamResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[sid]
	if !ok {
		return transport.NewStreamResponse(412, "text/plain", []byte("precondition failed"))
	}
	requested, err := gena.ParseTimeoutHeader(req.Headers.Get("Timeout"))
	if err != nil {
		requested = 0
	}
	sub.ActualTimeout = gena.ClampTimeout(requested, s.cfg.MinLease, s.cfg.MaxLease)
	sub.ExpiresAt = time.Now().Add(sub.ActualTimeout)

	h := transport.NewHeader()
	h.Set("Sid", sub.SID)
	h.Set("Timeout", gena.FormatTimeoutHeader(sub.ActualTimeout))
	return &transport.StreamResponse{Status: 200, Headers: h}
}

func (s *Server) handleUnsubscribe(req *transport.StreamRequest) *transport.StreamResponse {
	sid := req.Headers.Get("Sid")
	s.mu.Lock()
	_, ok := s.subs[sid]
	delete(s.subs, sid)
	s.mu.Unlock()
	if !ok {
		return transport.NewStreamResponse(412, "text/plain", []byte("precondition failed"))
	}
	return transport.NewStreamResponse(200, "text/plain", nil)
}

// Publish enqueues an event to every live subscription on serviceID,
// incrementing each subscription's own SEQ counter independently
// (spec.md §4.6, §5: "for any one subscription events are delivered
// in SEQ order; across subscriptions no ordering is required").
func (s *Server) Publish(ctx context.Context, serviceID string, props []gena.Property) {
	s.mu.RLock()
	var targets []*gena.Subscription
	for _, sub := range s.subs {
		if sub.ServiceID == serviceID {
			targets = append(targets, sub)
		}
	}
	s.mu.RUnlock()
	for _, sub := range targets {
		go s.deliver(ctx, sub, props, false)
	}
}

// deliver sends one NOTIFY to a subscription's callback URL. The
// initial event carries SEQ 0; every later one takes the subscription's
// next event key. On failure the subscription is treated as stale and
// removed (spec.md §4.6: "on delivery failure the subscription is
// considered stale and removed").
func (s *Server) deliver(ctx context.Context, sub *gena.Subscription, props []gena.Property, initial bool) {
	if len(sub.CallbackURLs) == 0 {
		return
	}
	body, err := gena.EncodePropertySet(props)
	if err != nil {
		upnplog.Warn(ctx, "failed to encode property set", err, "sid", sub.SID)
		return
	}

	seq := upnptype.InitialEventKey
	if !initial {
		seq = sub.NextEventKey()
	}
	h := transport.NewHeader()
	h.Set("Sid", sub.SID)
	h.Set("Seq", fmt.Sprintf("%d", seq))
	h.Set("Nt", "upnp:event")
	h.Set("Nts", "upnp:propchange")
	h.Set("Content-Type", "text/xml")

	_, err = s.client.Request(ctx, sub.CallbackURLs[0], &transport.StreamRequest{Method: "NOTIFY", Headers: h, Body: body})
	if err != nil {
		upnplog.Debug(ctx, "NOTIFY delivery failed, dropping subscription", "sid", sub.SID, "error", err.Error())
		s.mu.Lock()
		delete(s.subs, sub.SID)
		s.mu.Unlock()
	}
}

// RunExpirySweeper removes subscriptions past their lease without
// renewal (spec.md §5 "Subscriptions without successful renewal by
// lease are removed").
func (s *Server) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for sid, sub := range s.subs {
				if sub.Expired(now) {
					delete(s.subs, sid)
				}
			}
			s.mu.Unlock()
		}
	}
}

func parseEventPath(prefix, path string) (udn, serviceID string, ok bool) {
	path = strings.TrimPrefix(path, prefix)
	path = strings.TrimSuffix(path, "/event")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "dev" || parts[2] != "svc" {
		return "", "", false
	}
	return parts[1], parts[3], true
}

func parseCallbacks(header string) []string {
	var out []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "<")
		part = strings.TrimSuffix(part, ">")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
