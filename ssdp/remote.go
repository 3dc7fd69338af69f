package ssdp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/registry"
	"github.com/navidrome/goupnp-core/transport"
)

func (e *Engine) handleNotify(ctx context.Context, msg *transport.DatagramMessage) {
	nts := strings.ToLower(msg.Headers.Get("Nts"))
	usn := msg.Headers.Get("Usn")
	udn := udnFromUSN(usn)
	if udn == "" {
		return
	}

	switch nts {
	case NTSByeBye:
		e.registry.RemoveRemote(ctx, udn, registry.ReasonByeBye)
	case NTSAlive:
		e.considerRemoteUpdate(ctx, udn, msg.Headers.Get("Location"), msg.Headers.Get("Cache-Control"))
	}
}

func (e *Engine) handleSearchResponse(ctx context.Context, msg *transport.DatagramMessage) {
	if msg.Headers.Get("St") == "" {
		return
	}
	udn := udnFromUSN(msg.Headers.Get("Usn"))
	if udn == "" {
		return
	}
	e.considerRemoteUpdate(ctx, udn, msg.Headers.Get("Location"), msg.Headers.Get("Cache-Control"))
}

// considerRemoteUpdate implements spec.md §4.6's remote-side rule: if
// the UDN is unknown or its max-age/LOCATION changed, fetch the full
// descriptor tree before publishing to the registry. The in-progress
// guard (spec.md §5) prevents two concurrent fetches for the same UDN.
func (e *Engine) considerRemoteUpdate(ctx context.Context, udn, location, cacheControl string) {
	maxAge := parseMaxAge(cacheControl)
	existing, known := e.registry.GetRemote(udn)
	if known && existing.Location == location && existing.MaxAgeSec == maxAge {
		e.registry.RefreshRemote(udn, maxAge)
		return
	}

	if !e.inProgress.tryStart(udn) {
		return
	}
	go func() {
		defer e.inProgress.finish(udn)
		if location == "" || e.fetch == nil {
			return
		}
		dev, err := e.fetch(ctx, location)
		if err != nil {
			upnplog.Warn(ctx, "failed to fetch remote device descriptor", err, "udn", udn, "location", location)
			return
		}
		ident := registry.RemoteIdentity{
			UDN:        udn,
			MaxAgeSec:  maxAge,
			Location:   location,
			DiscoveredAt: time.Now(),
		}
		e.registry.UpdateRemote(ident, dev)
	}()
}

// Search broadcasts an M-SEARCH for st (ssdp:all by default), per
// spec.md §4.6's periodic remote-side refresh.
func (e *Engine) Search(ctx context.Context, st string) {
	if st == "" {
		st = STAll
	}
	h := transport.NewHeader()
	h.Set("Host", "239.255.255.250:1900")
	h.Set("Man", `"ssdp:discover"`)
	h.Set("Mx", strconv.Itoa(int(e.cfg.SearchMX.Seconds())))
	h.Set("St", st)
	msg := &transport.DatagramMessage{StartLine: "M-SEARCH * HTTP/1.1", Headers: h}
	if err := e.sender.Broadcast(msg); err != nil {
		upnplog.Debug(ctx, "failed to broadcast M-SEARCH", "error", err.Error())
	}
}

// RunSearcher repeats Search every interval until ctx is
// canceled, refreshing knowledge of remote devices that never sent an
// unsolicited alive (spec.md §4.6 "Issue periodic M-SEARCH to refresh").
func (e *Engine) RunSearcher(ctx context.Context, st string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.Search(ctx, st)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Search(ctx, st)
		}
	}
}

func udnFromUSN(usn string) string {
	idx := strings.Index(usn, "::")
	if idx < 0 {
		if strings.HasPrefix(usn, "uuid:") {
			return usn
		}
		return ""
	}
	return usn[:idx]
}

func parseMaxAge(cacheControl string) int {
	const prefix = "max-age="
	idx := strings.Index(strings.ToLower(cacheControl), prefix)
	if idx < 0 {
		return 1800
	}
	rest := cacheControl[idx+len(prefix):]
	end := strings.IndexAny(rest, ", ")
	if end >= 0 {
		rest = rest[:end]
	}
	secs, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || secs <= 0 {
		return 1800
	}
	return secs
}
