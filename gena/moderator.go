package gena

import (
	"sync"
	"time"
)

// Moderator enforces spec.md §4.6's per-variable eventMaximumRateMilliseconds
// and eventMinimumDelta policy: it never drops a value, only delays or
// coalesces the event that carries it. Admit is called on every write
// to an evented state variable; it reports whether the change should
// fire now, and if not, the moderator remembers the pending value so
// a later flush can deliver it.
type Moderator struct {
	mu      sync.Mutex
	state   map[string]*variableState
}

type variableState struct {
	lastFired    time.Time
	lastValue    float64
	hasLastValue bool
	pending      string
	hasPending   bool
}

// NewModerator returns an empty moderator.
func NewModerator() *Moderator {
	return &Moderator{state: make(map[string]*variableState)}
}

// Admit records a new value for a variable and reports whether it may
// fire immediately given maxRate and minDelta (minDelta is ignored
// unless numeric, in keeping with the eventMinimumDelta no-op rule for
// non-integer types decided in SPEC_FULL.md).
func (m *Moderator) Admit(now time.Time, variable, value string, numeric float64, isNumeric bool, maxRate time.Duration, minDelta float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[variable]
	if !ok {
		st = &variableState{}
		m.state[variable] = st
	}

	if isNumeric && minDelta > 0 && st.hasLastValue {
		delta := numeric - st.lastValue
		if delta < 0 {
			delta = -delta
		}
		if delta < minDelta {
			st.pending = value
			st.hasPending = true
			if isNumeric {
				st.lastValue = numeric
				st.hasLastValue = true
			}
			return false
		}
	}

	if maxRate > 0 && !st.lastFired.IsZero() && now.Sub(st.lastFired) < maxRate {
		st.pending = value
		st.hasPending = true
		if isNumeric {
			st.lastValue = numeric
			st.hasLastValue = true
		}
		return false
	}

	st.lastFired = now
	st.hasPending = false
	if isNumeric {
		st.lastValue = numeric
		st.hasLastValue = true
	}
	return true
}

// Flush returns every variable with a pending, not-yet-delivered value
// whose maxRate window has now elapsed, clearing their pending state.
// Callers invoke this from the periodic maintenance tick described in
// spec.md §5 ("event moderation flush").
func (m *Moderator) Flush(now time.Time, maxRateFor func(variable string) time.Duration) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for name, st := range m.state {
		if !st.hasPending {
			continue
		}
		rate := maxRateFor(name)
		if rate > 0 && !st.lastFired.IsZero() && now.Sub(st.lastFired) < rate {
			continue
		}
		out[name] = st.pending
		st.hasPending = false
		st.lastFired = now
	}
	return out
}
