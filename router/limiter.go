package router

import (
	"sync"
	"time"
)

// Limiter is a simple token-bucket rate limiter for inbound SSDP
// traffic (spec.md §4.5: "applies a rate limit on inbound M-SEARCH
// responses to prevent floods"). go-chi/httprate is used for the same
// concern at the HTTP layer (SOAP/GENA endpoints, wired in NewHTTPMux
// in httpserver.go); it is an HTTP-request middleware and has no hook into raw
// UDP dispatch, so the datagram side uses this standalone bucket
// instead — documented in DESIGN.md.
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      float64
	tokens     float64
	lastRefill time.Time
}

// NewLimiter returns a limiter allowing rate events/sec with the given
// burst capacity.
func NewLimiter(rate float64, burst float64) *Limiter {
	return &Limiter{rate: rate, burst: burst, tokens: burst, lastRefill: time.Now()}
}

// Allow reports whether one event may proceed now, consuming a token
// if so.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
