// Package registry implements the device registry from spec.md §4.7:
// local devices (advertise lifecycle) and remote devices (lease
// expiry, refresh, removal), with listener notification. Grounded on
// the teacher's server/sonos_cast DeviceCache (map + mutex + sweep
// goroutine) generalized to hold full description.Device trees instead
// of bare Sonos speaker records, and on server/dlna.Router's
// ctx/cancel lifecycle for the background sweep.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/navidrome/goupnp-core/description"
	"github.com/navidrome/goupnp-core/internal/upnplog"
)

// RemovalReason names why a remote device left the registry (spec.md
// §4.7: "notifies listeners with the reason").
type RemovalReason int

const (
	ReasonExpired RemovalReason = iota
	ReasonByeBye
	ReasonShutdown
)

func (r RemovalReason) String() string {
	switch r {
	case ReasonExpired:
		return "EXPIRED"
	case ReasonByeBye:
		return "BYEBYE"
	case ReasonShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// RemoteIdentity is spec.md §3's RemoteDeviceIdentity: UDN + max-age +
// descriptor URL + discovered interface, with expiresAt derived from
// discoveredAt + maxAge.
type RemoteIdentity struct {
	UDN          string
	MaxAgeSec    int
	Location     string
	DiscoveredAt time.Time
	Interface    string
}

// ExpiresAt returns discoveredAt + maxAge, the invariant spec.md §3
// requires.
func (r RemoteIdentity) ExpiresAt() time.Time {
	return r.DiscoveredAt.Add(time.Duration(r.MaxAgeSec) * time.Second)
}

// RemoteDevice pairs a RemoteIdentity with its parsed descriptor tree.
type RemoteDevice struct {
	RemoteIdentity
	Device *description.Device
}

// Event is delivered to listeners on every registry change.
type Event struct {
	Kind   EventKind
	UDN    string
	Device *description.Device
	Reason RemovalReason // set for EventRemoteRemoved and EventLocalRemoved
}

type EventKind int

const (
	EventLocalAdded EventKind = iota
	EventLocalRemoved
	EventRemoteAdded
	EventRemoteUpdated
	EventRemoteRemoved
)

// Listener receives registry events, dispatched outside the registry's
// lock (spec.md §5 "listener dispatch outside the lock to avoid lock
// inversion against user code").
type Listener func(Event)

// Registry is the C7 component.
type Registry struct {
	mu        sync.RWMutex
	local     map[string]*description.Device
	remote    map[string]*RemoteDevice
	listeners []Listener

	paused bool

	sweepInterval time.Duration
}

// New returns an empty registry with the given expiry sweep interval.
func New(sweepInterval time.Duration) *Registry {
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Second
	}
	return &Registry{
		local:         make(map[string]*description.Device),
		remote:        make(map[string]*RemoteDevice),
		sweepInterval: sweepInterval,
	}
}

// AddListener registers a callback for future registry events.
func (r *Registry) AddListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) notify(ev Event) {
	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, l := range listeners {
		l(ev)
	}
}

// AddLocal registers a local device, created when the host process
// exposes it (spec.md §3).
func (r *Registry) AddLocal(d *description.Device) {
	r.mu.Lock()
	r.local[d.UDN] = d
	r.mu.Unlock()
	r.notify(Event{Kind: EventLocalAdded, UDN: d.UDN, Device: d})
}

// RemoveLocal removes a local device, e.g. on shutdown.
func (r *Registry) RemoveLocal(udn string) {
	r.mu.Lock()
	_, ok := r.local[udn]
	delete(r.local, udn)
	r.mu.Unlock()
	if ok {
		r.notify(Event{Kind: EventLocalRemoved, UDN: udn, Reason: ReasonShutdown})
	}
}

// LocalDevices returns a snapshot of every registered local device.
func (r *Registry) LocalDevices() []*description.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*description.Device, 0, len(r.local))
	for _, d := range r.local {
		out = append(out, d)
	}
	return out
}

// GetRemote looks up a known remote device.
func (r *Registry) GetRemote(udn string) (RemoteDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.remote[udn]
	if !ok {
		return RemoteDevice{}, false
	}
	return *rd, true
}

// UpdateRemote adds or replaces a remote device after a full
// descriptor (re-)read (spec.md §4.7: "adds or refreshes").
func (r *Registry) UpdateRemote(ident RemoteIdentity, dev *description.Device) {
	r.mu.Lock()
	_, existed := r.remote[ident.UDN]
	r.remote[ident.UDN] = &RemoteDevice{RemoteIdentity: ident, Device: dev}
	r.mu.Unlock()

	kind := EventRemoteAdded
	if existed {
		kind = EventRemoteUpdated
	}
	r.notify(Event{Kind: kind, UDN: ident.UDN, Device: dev})
}

// RefreshRemote advances a known remote device's lease without
// re-reading its descriptor (spec.md §8 scenario 6: identical LOCATION
// just extends expiresAt).
func (r *Registry) RefreshRemote(udn string, maxAgeSec int) {
	r.mu.Lock()
	rd, ok := r.remote[udn]
	if ok {
		rd.DiscoveredAt = time.Now()
		rd.MaxAgeSec = maxAgeSec
	}
	r.mu.Unlock()
}

// RemoveRemote removes a remote device immediately, e.g. on byebye.
func (r *Registry) RemoveRemote(ctx context.Context, udn string, reason RemovalReason) {
	r.mu.Lock()
	_, ok := r.remote[udn]
	delete(r.remote, udn)
	r.mu.Unlock()
	if ok {
		logRemoval(ctx, udn, reason)
		r.notify(Event{Kind: EventRemoteRemoved, UDN: udn, Reason: reason})
	}
}

// RemoveAllExpired sweeps expired remote devices once.
func (r *Registry) RemoveAllExpired(ctx context.Context) {
	now := time.Now()
	r.mu.Lock()
	if r.paused {
		r.mu.Unlock()
		return
	}
	var expired []string
	for udn, rd := range r.remote {
		if now.After(rd.ExpiresAt()) {
			expired = append(expired, udn)
			delete(r.remote, udn)
		}
	}
	r.mu.Unlock()
	for _, udn := range expired {
		logRemoval(ctx, udn, ReasonExpired)
		r.notify(Event{Kind: EventRemoteRemoved, UDN: udn, Reason: ReasonExpired})
	}
}

// Pause stops expiry sweeps from removing anything (spec.md §4.7
// "pause()/resume()"). Sweeps keep ticking but are no-ops while paused.
func (r *Registry) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

// Resume re-enables expiry sweeps.
func (r *Registry) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
}

// GetServices returns every remote+local service matching filter.
func (r *Registry) GetServices(filter func(*description.Service) bool) []*description.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*description.Service
	collect := func(d *description.Device) {
		var walk func(*description.Device)
		walk = func(dev *description.Device) {
			for _, svc := range dev.Services {
				if filter == nil || filter(svc) {
					out = append(out, svc)
				}
			}
			for _, child := range dev.EmbeddedDevices {
				walk(child)
			}
		}
		walk(d)
	}
	for _, d := range r.local {
		collect(d)
	}
	for _, rd := range r.remote {
		collect(rd.Device)
	}
	return out
}

// RunSweeper runs RemoveAllExpired on a ticker until ctx is canceled
// (spec.md §4.7 "a background maintainer sweeps expiries at a fixed
// interval").
func (r *Registry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RemoveAllExpired(ctx)
		}
	}
}

func logRemoval(ctx context.Context, udn string, reason RemovalReason) {
	upnplog.Info(ctx, "remote device removed", "udn", udn, "reason", reason.String())
}
