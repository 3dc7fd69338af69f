package ssdp

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/navidrome/goupnp-core/internal/upnplog"
	"github.com/navidrome/goupnp-core/transport"
)

// Advertise sends ssdp:alive NOTIFYs for every advertisement triplet
// of every registered local device (spec.md §4.6 "Local side").
func (e *Engine) Advertise(ctx context.Context) {
	for _, t := range e.allLocalTargets() {
		msg := e.buildNotify(t, NTSAlive)
		if err := e.sender.Broadcast(msg); err != nil {
			upnplog.Debug(ctx, "failed to broadcast ssdp:alive", "error", err.Error(), "st", t.st)
		}
	}
}

// ByeBye sends ssdp:byebye NOTIFYs, repeated three times for
// reliability per the teacher's convention and common UPnP practice.
func (e *Engine) ByeBye(ctx context.Context) {
	targets := e.allLocalTargets()
	for i := 0; i < 3; i++ {
		for _, t := range targets {
			msg := e.buildNotify(t, NTSByeBye)
			if err := e.sender.Broadcast(msg); err != nil {
				upnplog.Debug(ctx, "failed to broadcast ssdp:byebye", "error", err.Error(), "st", t.st)
			}
		}
		if i < 2 {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// RunAdvertiser repeats Advertise at max-age/2 with jitter until ctx is
// canceled (spec.md §4.6 "repeat at max-age/2 with jitter").
func (e *Engine) RunAdvertiser(ctx context.Context) {
	base := e.cfg.AdvertiseInterval
	if base <= 0 {
		base = time.Duration(e.cfg.MaxAgeSec/2) * time.Second
	}
	for {
		jitter := time.Duration(rand.Int63n(int64(base) / 10))
		select {
		case <-ctx.Done():
			return
		case <-time.After(base + jitter):
			e.Advertise(ctx)
		}
	}
}

func (e *Engine) buildNotify(t target, nts string) *transport.DatagramMessage {
	h := transport.NewHeader()
	h.Set("Host", "239.255.255.250:1900")
	h.Set("Nt", t.st)
	h.Set("Nts", nts)
	h.Set("Usn", t.usn)
	h.Set("Bootid.Upnp.Org", fmt.Sprintf("%d", e.cfg.BootID))
	h.Set("Configid.Upnp.Org", fmt.Sprintf("%d", e.cfg.ConfigID))
	if nts == NTSAlive {
		h.Set("Cache-Control", fmt.Sprintf("max-age=%d", e.cfg.MaxAgeSec))
		h.Set("Server", e.serverString())
		if e.cfg.LocationForIface != nil {
			h.Set("Location", e.cfg.LocationForIface(t.udn)+deviceDescPath(t.udn))
		}
	}
	return &transport.DatagramMessage{StartLine: "NOTIFY * HTTP/1.1", Headers: h}
}

func (e *Engine) handleSearch(ctx context.Context, msg *transport.DatagramMessage) {
	man := msg.Headers.Get("Man")
	if !strings.Contains(strings.ToLower(man), "ssdp:discover") {
		return
	}
	st := msg.Headers.Get("St")
	if st == "" {
		return
	}
	mx := parseMX(msg.Headers.Get("Mx"))

	targets := e.matchingLocalTargets(st)
	if len(targets) == 0 {
		return
	}

	delay := time.Duration(rand.Int63n(int64(mx) + 1))
	time.AfterFunc(delay, func() {
		for _, t := range targets {
			resp := e.buildSearchResponse(t, msg)
			if err := e.sender.Send(resp); err != nil {
				logEngine(ctx, "failed to send M-SEARCH response", "error", err.Error(), "st", t.st)
			}
		}
	})
}

func (e *Engine) buildSearchResponse(t target, req *transport.DatagramMessage) *transport.DatagramMessage {
	h := transport.NewHeader()
	h.Set("Cache-Control", fmt.Sprintf("max-age=%d", e.cfg.MaxAgeSec))
	h.Set("Date", time.Now().UTC().Format(time.RFC1123))
	h.Set("Ext", "")
	h.Set("Server", e.serverString())
	h.Set("St", t.st)
	h.Set("Usn", t.usn)
	h.Set("Bootid.Upnp.Org", fmt.Sprintf("%d", e.cfg.BootID))
	h.Set("Configid.Upnp.Org", fmt.Sprintf("%d", e.cfg.ConfigID))
	if e.cfg.LocationForIface != nil {
		h.Set("Location", e.cfg.LocationForIface(req.Interface)+deviceDescPath(t.udn))
	}
	return &transport.DatagramMessage{
		StartLine:  "HTTP/1.1 200 OK",
		Headers:    h,
		RemoteAddr: req.RemoteAddr,
		Interface:  req.Interface,
	}
}

func deviceDescPath(udn string) string {
	return "/upnp/dev/" + udn + "/desc.xml"
}
