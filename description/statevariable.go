package description

import (
	"fmt"

	"github.com/navidrome/goupnp-core/upnptype"
)

// EventPolicy controls GENA eventing behavior for a state variable, per
// spec.md §3 ("event policy (sendEvents bool, maximum-event-rate ms,
// minimum numeric delta)").
type EventPolicy struct {
	SendEvents          bool
	MaxRateMilliseconds int64
	MinimumDelta        float64
}

// StateVariable is a bound UPnP state variable (spec.md §3). Actions
// reference a StateVariable by name rather than holding a pointer back
// to it, so the metadata graph has no back-edges (Design Notes §9).
type StateVariable struct {
	Name          string
	Datatype      upnptype.Datatype
	HasDefault    bool
	DefaultValue  string
	AllowedValues upnptype.AllowedValues
	HasRange      bool
	Range         upnptype.Range
	Event         EventPolicy

	// Accessor reads the variable's current value for SOAP/GENA. It is
	// required whenever Event.SendEvents is true (spec.md §4.2: "the
	// service manager must be able to read its current value for the
	// initial GENA event").
	Accessor func() (string, error)
}

// Validate checks the invariants in spec.md §3 and §8:
//   - default (if any) is valid for the datatype and within allowed
//     values/range
//   - range has min <= max and step > 0
//   - evented variables have an accessor
func (v *StateVariable) Validate() error {
	if v.HasRange {
		if !v.Datatype.Kind.IsNumeric() {
			return fmt.Errorf("state variable %s: range only valid for numeric types, got %s", v.Name, v.Datatype)
		}
		if err := v.Range.Validate(); err != nil {
			return fmt.Errorf("state variable %s: %w", v.Name, err)
		}
	}
	if len(v.AllowedValues) > 0 && !v.Datatype.Kind.IsString() {
		return fmt.Errorf("state variable %s: allowed values only valid for string type", v.Name)
	}
	for _, av := range v.AllowedValues {
		if len(av) > 32 {
			return fmt.Errorf("state variable %s: allowed value %q exceeds 32 characters", v.Name, av)
		}
	}
	if v.HasDefault {
		parsed, err := v.Datatype.Parse(v.DefaultValue)
		if err != nil {
			return fmt.Errorf("state variable %s: default value invalid: %w", v.Name, err)
		}
		if len(v.AllowedValues) > 0 && !v.AllowedValues.Contains(v.DefaultValue) {
			return fmt.Errorf("state variable %s: default value %q not in allowed values", v.Name, v.DefaultValue)
		}
		if v.HasRange {
			f, err := numericValue(parsed)
			if err != nil {
				return fmt.Errorf("state variable %s: %w", v.Name, err)
			}
			if !v.Range.InRange(f) {
				return fmt.Errorf("state variable %s: default value %v outside range [%v, %v]", v.Name, f, v.Range.Min, v.Range.Max)
			}
		}
	}
	if v.Event.SendEvents && v.Accessor == nil {
		return fmt.Errorf("state variable %s: sendEvents requires an accessor", v.Name)
	}
	return nil
}

func numericValue(v interface{}) (float64, error) {
	switch n := v.(type) {
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
