package gena

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navidrome/goupnp-core/upnptype"
)

// NewSID mints a subscription identifier, "uuid:<UUID>" as spec.md §3
// requires, the same way description.Device.NewUDN mints device ids.
func NewSID() string {
	return "uuid:" + uuid.NewString()
}

// Subscription is one GENA subscription, server- or client-side
// (spec.md §3). Server subscriptions hold a CallbackURLs + ServiceID;
// client subscriptions additionally track the remote SID returned by
// the far end and the renewal deadline.
type Subscription struct {
	SID          string
	ServiceID    string // owning service, local (server) or remote (client)
	CallbackURLs []string
	RequestedTimeout time.Duration
	ActualTimeout    time.Duration
	EventKey     upnptype.UnsignedIntegerFourBytes
	ExpiresAt    time.Time
	Gapped       bool // client-side: a NOTIFY sequence gap was observed
}

// NextEventKey advances and returns the subscription's SEQ counter per
// the wrap rule in spec.md §3: the very first NOTIFY after a server
// has recorded an initial SEQ:0 event uses 1, then increments, wrapping
// from 2^32-1 back to 1, never revisiting 0.
func (s *Subscription) NextEventKey() upnptype.UnsignedIntegerFourBytes {
	s.EventKey = s.EventKey.Next()
	return s.EventKey
}

// Expired reports whether the subscription's lease has elapsed as of now.
func (s *Subscription) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ClampTimeout enforces spec.md §6's minLeaseSec/maxLeaseSec bounds on
// a requested TIMEOUT header value. requested == 0 means "infinite",
// which UPnP devices commonly refuse by clamping to max.
func ClampTimeout(requested, min, max time.Duration) time.Duration {
	switch {
	case requested <= 0:
		return max
	case requested < min:
		return min
	case requested > max:
		return max
	default:
		return requested
	}
}

// ParseTimeoutHeader parses a GENA TIMEOUT header value ("Second-180"
// or "Second-infinite") into a duration, with 0 meaning infinite.
func ParseTimeoutHeader(header string) (time.Duration, error) {
	const prefix = "Second-"
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return 0, fmt.Errorf("gena: malformed TIMEOUT header %q", header)
	}
	rest := header[len(prefix):]
	if rest == "infinite" {
		return 0, nil
	}
	var secs int64
	if _, err := fmt.Sscanf(rest, "%d", &secs); err != nil || secs < 0 {
		return 0, fmt.Errorf("gena: malformed TIMEOUT header %q", header)
	}
	return time.Duration(secs) * time.Second, nil
}

// FormatTimeoutHeader renders a duration back to GENA's TIMEOUT form.
func FormatTimeoutHeader(d time.Duration) string {
	if d <= 0 {
		return "Second-infinite"
	}
	return fmt.Sprintf("Second-%d", int64(d/time.Second))
}
