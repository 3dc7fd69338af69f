// Package ssdp implements the Discovery protocol engine from spec.md
// §4.6: local-side alive/byebye advertisement and M-SEARCH response,
// remote-side alive/byebye handling and periodic refresh search.
// Grounded on the teacher's server/dlna/ssdp.go (NOTIFY/M-SEARCH
// framing, periodic announce ticker) and server/sonos_cast/discovery.go
// (remote search + descriptor fetch), generalized from two hardcoded
// service types to an arbitrary device/service tree via the registry.
package ssdp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/navidrome/goupnp-core/description"
	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/registry"
	"github.com/navidrome/goupnp-core/transport"
)

const (
	NTSAlive  = "ssdp:alive"
	NTSByeBye = "ssdp:byebye"
	STAll     = "ssdp:all"
	STRoot    = "upnp:rootdevice"

	// MaxMX is the cap spec.md §4.6/§5 places on M-SEARCH response delay.
	MaxMX = 5 * time.Second
)

// Sender is the egress capability the engine needs from the router,
// kept narrow so ssdp never imports router (the router dispatches
// into ssdp, not the other way around).
type Sender interface {
	Send(msg *transport.DatagramMessage) error
	Broadcast(msg *transport.DatagramMessage) error
}

// DescriptorFetcher retrieves and parses a remote device's descriptor
// tree (device.xml + each service's SCPD). Implemented by the control
// engine's HTTP client in practice; kept as an interface so ssdp has
// no direct HTTP dependency beyond the transport package.
type DescriptorFetcher func(ctx context.Context, location string) (*description.Device, error)

// Config bundles the options spec.md §6 names for the discovery engine.
type Config struct {
	MaxAgeSec         int
	AdvertiseInterval time.Duration
	SearchMX          time.Duration
	ServerString      string
	LocationForIface  func(iface string) string // builds the device.xml URL reachable on that interface
	BootID            int
	ConfigID          int
}

// Engine is the C6 Discovery engine, implementing both local
// advertisement and remote device tracking.
type Engine struct {
	cfg      Config
	sender   Sender
	registry *registry.Registry
	fetch    DescriptorFetcher

	inProgress inProgressGuard
}

// New constructs a Discovery engine bound to a registry and sender.
func New(cfg Config, sender Sender, reg *registry.Registry, fetch DescriptorFetcher) *Engine {
	return &Engine{cfg: cfg, sender: sender, registry: reg, fetch: fetch}
}

// HandleDatagram implements router.Engine.
func (e *Engine) HandleDatagram(ctx context.Context, msg *transport.DatagramMessage) {
	switch {
	case msg.Method() == "M-SEARCH":
		e.handleSearch(ctx, msg)
	case msg.Method() == "NOTIFY":
		e.handleNotify(ctx, msg)
	case msg.IsResponse():
		e.handleSearchResponse(ctx, msg)
	}
}

type target struct {
	udn string
	st  string
	usn string
}

func (e *Engine) matchingLocalTargets(st string) []target {
	var out []target
	for _, ld := range e.registry.LocalDevices() {
		for _, t := range advertisementTriplets(ld) {
			if st == STAll || st == t.st {
				out = append(out, t)
			}
		}
	}
	return out
}

func (e *Engine) allLocalTargets() []target {
	var out []target
	for _, ld := range e.registry.LocalDevices() {
		out = append(out, advertisementTriplets(ld)...)
	}
	return out
}

// advertisementTriplets enumerates every (UDN, search-target, USN)
// triplet UPnP requires advertising for a device tree: the root
// device's own UUID and upnp:rootdevice, then every device's type and
// every service type — repeated for each embedded device.
func advertisementTriplets(d *description.Device) []target {
	var out []target
	var walk func(dev *description.Device, isRoot bool)
	walk = func(dev *description.Device, isRoot bool) {
		if isRoot {
			out = append(out, target{udn: dev.UDN, st: STRoot, usn: dev.UDN + "::" + STRoot})
		}
		out = append(out, target{udn: dev.UDN, st: dev.UDN, usn: dev.UDN})
		out = append(out, target{udn: dev.UDN, st: dev.DeviceType, usn: dev.UDN + "::" + dev.DeviceType})
		for _, svc := range dev.Services {
			out = append(out, target{udn: dev.UDN, st: svc.Type, usn: dev.UDN + "::" + svc.Type})
		}
		for _, child := range dev.EmbeddedDevices {
			walk(child, false)
		}
	}
	walk(d, true)
	return out
}

func parseMX(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return time.Second
	}
	d := time.Duration(secs) * time.Second
	if d > MaxMX {
		return MaxMX
	}
	return d
}

func (e *Engine) serverString() string {
	if e.cfg.ServerString != "" {
		return e.cfg.ServerString
	}
	return "Go/1.25 UPnP/1.1 goupnp-core/1.0"
}

func logEngine(ctx context.Context, msg string, kv ...interface{}) {
	upnplog.Debug(ctx, msg, kv...)
}
