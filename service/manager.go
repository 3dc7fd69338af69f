// Package service implements the per-service manager from spec.md
// §4.8 (C8): a single coarse, reentrant-emulated lock mediating access
// to the service implementation, action invocation, state-variable
// read/write, and LastChange-aware initial-event construction.
// Grounded on the teacher's server/dlna/control.go dispatch style
// (look up action, invoke, serialize) generalized to an arbitrary
// bound description.Service instead of ContentDirectory/ConnectionManager.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/navidrome/goupnp-core/description"
	"github.com/navidrome/goupnp-core/gena"
	"github.com/navidrome/goupnp-core/soap"
)

// ActionHandler is the host implementation of one action: given parsed
// input values keyed by argument name, it returns output values keyed
// by argument name, or a *soap.Fault for a well-formed UPnP error.
type ActionHandler func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error)

// Implementation is the capability a host-language service object
// exposes to its Manager: an ActionHandler per action name, and
// (optionally) the LastChange capability spec.md §4.8/§9 describes —
// "a service implementation that supplies current instance ids and an
// appendCurrentState hook".
type Implementation interface {
	Handler(action string) (ActionHandler, bool)
}

// LastChangeSource is implemented by AVTransport/RenderingControl-style
// services whose evented state is aggregated through a LastChange
// accumulator rather than per-variable events.
type LastChangeSource interface {
	InstanceIDs() []uint32
	AppendCurrentState(acc *gena.LastChange, instanceID uint32)
}

// lockTokenKey marks, inside a context, that the calling goroutine
// already holds this particular Manager's lock. It emulates the
// reentrant coarse lock spec.md §4.8 requires ("single lock (coarse,
// reentrant)"): an action handler that turns around and writes a
// state variable on the same call chain must not deadlock against
// itself. Reentrancy is scoped to one call chain via ctx, not to the
// whole goroutine, which is a stricter and safer guarantee.
type lockTokenKey struct{ m *Manager }

// withLock runs fn holding the manager lock, unless ctx already proves
// this call chain holds it, in which case it runs fn directly.
func (m *Manager) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	key := lockTokenKey{m}
	if ctx.Value(key) != nil {
		return fn(ctx)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return fn(context.WithValue(ctx, key, struct{}{}))
}

// Manager is the C8 component: one per local service.
type Manager struct {
	svc  *description.Service
	impl Implementation
	lock sync.Mutex // coarse lock; re-entered via withLock's ctx token

	lastChange *gena.LastChange // live accumulator, fired for active subscribers
	moderator  *gena.Moderator

	// pendingInstance remembers which instance id a moderator-held-back
	// value belongs to, since gena.Moderator tracks pending values by
	// variable name only. Read and written only while holding m.lock
	// (via withLock), alongside lastChange and moderator themselves.
	pendingInstance map[string]uint32
}

// NewManager binds a Manager to its service definition and host
// implementation.
func NewManager(svc *description.Service, impl Implementation) *Manager {
	return &Manager{
		svc:             svc,
		impl:            impl,
		lastChange:      gena.NewLastChange(),
		moderator:       gena.NewModerator(),
		pendingInstance: make(map[string]uint32),
	}
}

// Service returns the bound description.
func (m *Manager) Service() *description.Service {
	return m.svc
}

// Invoke parses SOAP request arguments through each input's state
// variable datatype, calls the action handler under the manager lock,
// and serializes the outputs back to soap.Argument form — the full
// contract of spec.md §4.6 "Control (server)".
func (m *Manager) Invoke(ctx context.Context, actionName string, args []soap.Argument) ([]soap.Argument, error) {
	action, ok := m.svc.Action(actionName)
	if !ok {
		return nil, &soap.Fault{Code: soap.ErrInvalidAction, Description: "Invalid Action"}
	}

	inputs := make(map[string]interface{}, len(action.Inputs))
	for _, in := range action.Inputs {
		raw, found := soap.ArgumentValue(args, in.Name)
		if !found {
			return nil, &soap.Fault{Code: soap.ErrInvalidArgs, Description: "Invalid Args"}
		}
		v, ok := m.svc.StateVariable(in.RelatedStateVariable)
		if !ok {
			return nil, &soap.Fault{Code: soap.ErrInvalidArgs, Description: "Invalid Args"}
		}
		parsed, err := v.Datatype.Parse(raw)
		if err != nil {
			return nil, &soap.Fault{Code: soap.ErrInvalidArgs, Description: fmt.Sprintf("Invalid Args: %s", in.Name)}
		}
		inputs[in.Name] = parsed
	}

	handler, ok := m.impl.Handler(actionName)
	if !ok {
		return nil, &soap.Fault{Code: soap.ErrInvalidAction, Description: "Invalid Action"}
	}

	var outputs map[string]interface{}
	err := m.withLock(ctx, func(ctx context.Context) error {
		var handlerErr error
		outputs, handlerErr = handler(ctx, inputs)
		return handlerErr
	})
	if err != nil {
		if f, ok := err.(*soap.Fault); ok {
			return nil, f
		}
		return nil, &soap.Fault{Code: soap.ErrActionFailed, Description: err.Error()}
	}

	result := make([]soap.Argument, 0, len(action.Outputs))
	for _, out := range action.Outputs {
		v, ok := m.svc.StateVariable(out.RelatedStateVariable)
		if !ok {
			return nil, &soap.Fault{Code: soap.ErrActionFailed, Description: "Action Failed"}
		}
		value, ok := outputs[out.Name]
		if !ok {
			return nil, &soap.Fault{Code: soap.ErrActionFailed, Description: fmt.Sprintf("missing output %s", out.Name)}
		}
		formatted, err := v.Datatype.Format(value)
		if err != nil {
			return nil, &soap.Fault{Code: soap.ErrActionFailed, Description: "Action Failed"}
		}
		result = append(result, soap.Argument{Name: out.Name, Value: formatted})
	}
	return result, nil
}

// WriteStateVariable records a new value for an evented state
// variable (spec.md §4.6, §4.8). Safe to call both from outside any
// lock and from inside an action handler already running under
// Invoke's lock — the ctx token makes the reacquire a no-op.
//
// The write is routed through the service's Moderator first, per
// spec.md §4.6 ("a moderation layer enforces per-variable
// eventMaximumRateMilliseconds... and eventMinimumDelta"): a value the
// Moderator admits immediately is set into the live LastChange
// accumulator now; a value it holds back is remembered (with its
// instance id) and only reaches the accumulator on a later
// FlushModeration once the rate window has elapsed. The moderator
// never drops the value, only delays or coalesces it.
func (m *Manager) WriteStateVariable(ctx context.Context, instanceID uint32, name, value string) {
	_ = m.withLock(ctx, func(context.Context) error {
		v, ok := m.svc.StateVariable(name)
		if !ok {
			return nil
		}

		var numeric float64
		var isNumeric bool
		if v.Datatype.Kind.IsIntegral() {
			if parsed, err := v.Datatype.Parse(value); err == nil {
				numeric, isNumeric = floatValue(parsed)
			}
		}
		maxRate := time.Duration(v.Event.MaxRateMilliseconds) * time.Millisecond

		if m.moderator.Admit(time.Now(), name, value, numeric, isNumeric, maxRate, v.Event.MinimumDelta) {
			m.lastChange.Set(instanceID, name, value)
		} else {
			m.pendingInstance[name] = instanceID
		}
		return nil
	})
}

// FlushModeration releases any value the Moderator held back whose
// maxRate window has now elapsed, feeding it into the live LastChange
// accumulator for the next FireLastChange. This is the "event
// moderation flush" maintenance task spec.md §5 requires; callers
// invoke it from a periodic maintenance tick, before FireLastChange.
func (m *Manager) FlushModeration(ctx context.Context, now time.Time) {
	_ = m.withLock(ctx, func(context.Context) error {
		flushed := m.moderator.Flush(now, func(name string) time.Duration {
			v, ok := m.svc.StateVariable(name)
			if !ok {
				return 0
			}
			return time.Duration(v.Event.MaxRateMilliseconds) * time.Millisecond
		})
		for name, value := range flushed {
			m.lastChange.Set(m.pendingInstance[name], name, value)
		}
		return nil
	})
}

// FireLastChange serializes and clears the live LastChange accumulator
// for delivery to subscribers. Per spec.md §4.8 "Lock ordering", it
// acquires the manager lock (via withLock) before touching the
// LastChange monitor, and every other state-variable write follows
// the same ordering through WriteStateVariable.
func (m *Manager) FireLastChange(ctx context.Context) (string, bool) {
	var body string
	var ok bool
	_ = m.withLock(ctx, func(context.Context) error {
		body, ok = m.lastChange.Fire()
		return nil
	})
	return body, ok
}

// floatValue converts a parsed integral datatype value (see
// upnptype.Kind.IsIntegral) to float64 for the Moderator's
// eventMinimumDelta comparison.
func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// InitialEvent computes the full set of evented properties for a new
// subscription's SEQ:0 NOTIFY (spec.md §4.8 "Initial event read").
func (m *Manager) InitialEvent(ctx context.Context) ([]gena.Property, error) {
	if src, ok := m.impl.(LastChangeSource); ok {
		ids := src.InstanceIDs()
		body, err := gena.BuildInitialLastChange(ids, func(acc *gena.LastChange, instanceID uint32) {
			src.AppendCurrentState(acc, instanceID)
		})
		if err != nil {
			return nil, err
		}
		return []gena.Property{{Name: "LastChange", Value: body}}, nil
	}

	var props []gena.Property
	for _, v := range m.svc.EventedVariables() {
		if v.Accessor == nil {
			continue
		}
		value, err := v.Accessor()
		if err != nil {
			return nil, fmt.Errorf("service: read %s for initial event: %w", v.Name, err)
		}
		props = append(props, gena.Property{Name: v.Name, Value: value})
	}
	return props, nil
}
