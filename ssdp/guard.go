package ssdp

import "sync"

// inProgressGuard prevents a double descriptor fetch for the same UDN
// racing with itself (spec.md §5: "an internal discovery in progress
// guard prevents double-fetch").
type inProgressGuard struct {
	mu    sync.Mutex
	udns  map[string]bool
}

func (g *inProgressGuard) tryStart(udn string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.udns == nil {
		g.udns = make(map[string]bool)
	}
	if g.udns[udn] {
		return false
	}
	g.udns[udn] = true
	return true
}

func (g *inProgressGuard) finish(udn string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.udns, udn)
}
