// Package router implements the transport router from spec.md §4.5:
// binds/unbinds network interfaces, dispatches inbound messages to a
// protocol engine by kind, selects the egress socket, rate-limits
// inbound M-SEARCH traffic, and owns graceful shutdown. Grounded on
// the teacher's server/dlna.Router (interface table, ctx/cancel
// lifecycle, sync.RWMutex) generalized from a single hardcoded
// multicast listener to a set of per-interface transports plus an
// HTTP mux.
package router

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/transport"
)

// Kind classifies an inbound message so the router can pick an engine.
type Kind int

const (
	KindSSDP Kind = iota
	KindSOAP
	KindGENA
)

// Engine is the capability the discovery engine exposes to the router
// (spec.md §4.6): handle one inbound datagram. It is optional
// (nil-checked); Control/Eventing implement StreamEngine instead.
type Engine interface {
	HandleDatagram(ctx context.Context, msg *transport.DatagramMessage)
}

// StreamEngine is implemented by engines that serve HTTP-shaped
// traffic (Control, Eventing).
type StreamEngine interface {
	HandleStream(ctx context.Context, req *transport.StreamRequest) *transport.StreamResponse
	Matches(req *transport.StreamRequest) bool
}

// Router is the C5 component. Exactly one per running UPnP service
// object (spec.md §9 "explicit registry").
type Router struct {
	mu         sync.RWMutex
	interfaces map[string]*boundInterface
	enabled    bool

	discovery Engine
	streams   []StreamEngine

	limiter *Limiter

	group net.UDPAddr
	ttl   int
}

type boundInterface struct {
	iface    net.Interface
	receiver *transport.DatagramIO // joined to the multicast group
	sender   *transport.DatagramIO // unicast response socket
}

// New constructs a disabled Router. Call SetDiscoveryEngine/
// AddStreamEngine before Enable.
func New(groupAddr string, ttl int) (*Router, error) {
	addr, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, fmt.Errorf("router: resolve multicast group: %w", err)
	}
	return &Router{
		interfaces: make(map[string]*boundInterface),
		group:      *addr,
		ttl:        ttl,
		limiter:    NewLimiter(20, 1), // 20 inbound M-SEARCH responses/sec, burst 1 — spec.md §4.5
	}, nil
}

// SetDiscoveryEngine wires the SSDP engine (router.Engine).
func (r *Router) SetDiscoveryEngine(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovery = e
}

// AddStreamEngine registers an HTTP-shaped protocol engine (Control or
// Eventing).
func (r *Router) AddStreamEngine(e StreamEngine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = append(r.streams, e)
}

// Enable brings up sockets on every selected interface. Idempotent:
// calling it twice without an intervening Disable is a no-op.
func (r *Router) Enable(ctx context.Context, ifaces []net.Interface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return nil
	}

	for _, iface := range ifaces {
		bi := &boundInterface{iface: iface}

		recv := transport.NewDatagramIO()
		if err := recv.Init(&iface, &r.group, nil, r.ttl, r.dispatchDatagram); err != nil {
			r.closeAllLocked()
			return fmt.Errorf("router: bind multicast receiver on %s: %w", iface.Name, err)
		}
		bi.receiver = recv

		send := transport.NewDatagramIO()
		if err := send.Init(nil, nil, &net.UDPAddr{}, r.ttl, nil); err != nil {
			r.closeAllLocked()
			return fmt.Errorf("router: bind response socket on %s: %w", iface.Name, err)
		}
		bi.sender = send

		go recv.Run(ctx)

		r.interfaces[iface.Name] = bi
	}

	r.enabled = true
	upnplog.Info(ctx, "router enabled", "interfaces", len(r.interfaces))
	return nil
}

// Disable tears down every bound socket. Idempotent.
func (r *Router) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	r.closeAllLocked()
	r.enabled = false
}

func (r *Router) closeAllLocked() {
	for name, bi := range r.interfaces {
		if bi.receiver != nil {
			bi.receiver.Stop()
		}
		if bi.sender != nil {
			bi.sender.Stop()
		}
		delete(r.interfaces, name)
	}
}

func (r *Router) dispatchDatagram(ctx context.Context, msg *transport.DatagramMessage) {
	if msg.IsResponse() || msg.Method() == "M-SEARCH" {
		if !r.limiter.Allow() {
			upnplog.Debug(ctx, "rate-limited inbound SSDP message", "from", msg.RemoteAddr.String())
			return
		}
	}
	r.mu.RLock()
	engine := r.discovery
	r.mu.RUnlock()
	if engine == nil {
		return
	}
	engine.HandleDatagram(ctx, msg)
}

// Received is the stream-side entry point (spec.md §4.5
// "received(StreamRequestMessage)"): it picks the first registered
// engine whose Matches reports true.
func (r *Router) Received(ctx context.Context, req *transport.StreamRequest) *transport.StreamResponse {
	r.mu.RLock()
	engines := append([]StreamEngine(nil), r.streams...)
	r.mu.RUnlock()
	for _, e := range engines {
		if e.Matches(req) {
			return e.HandleStream(ctx, req)
		}
	}
	return transport.NewStreamResponse(404, "text/plain", []byte("no matching service"))
}

// Send transmits an outgoing datagram on the interface it names,
// falling back to any bound interface's response socket if
// msg.Interface is empty.
func (r *Router) Send(msg *transport.DatagramMessage) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if msg.Interface != "" {
		bi, ok := r.interfaces[msg.Interface]
		if !ok {
			return fmt.Errorf("router: unknown interface %q", msg.Interface)
		}
		return bi.sender.Send(msg)
	}
	for _, bi := range r.interfaces {
		return bi.sender.Send(msg)
	}
	return fmt.Errorf("router: no bound interfaces to send on")
}

// Broadcast sends a datagram to the SSDP multicast group on every
// bound interface (spec.md §4.5 "broadcast(bytes)"). Failures on
// individual interfaces don't stop delivery on the rest; every
// failure is folded into the returned multierror so a caller can
// still inspect per-interface detail.
func (r *Router) Broadcast(msg *transport.DatagramMessage) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result *multierror.Error
	for name, bi := range r.interfaces {
		cp := *msg
		cp.RemoteAddr = &r.group
		cp.Interface = name
		if err := bi.sender.Send(&cp); err != nil {
			result = multierror.Append(result, fmt.Errorf("router: broadcast on %s: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}
