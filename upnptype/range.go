package upnptype

import "fmt"

// Range constrains a numeric state variable's value, per spec.md §4.2
// ("Numeric state variables with min > 0 || max > 0 get a range").
// Step is carried for descriptor output only — spec.md's Open Question
// (b) says step is advisory in the source and we preserve that: it is
// never enforced by InRange.
type Range struct {
	Min, Max, Step float64
}

// Validate checks the invariant from spec.md §8: min <= max and step > 0.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("upnptype: range min %v > max %v", r.Min, r.Max)
	}
	if r.Step <= 0 {
		return fmt.Errorf("upnptype: range step %v must be > 0", r.Step)
	}
	return nil
}

// InRange tests min <= v <= max. Step is advisory and not checked.
func (r Range) InRange(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// AllowedValues is the allowed-value list for a string-type state
// variable (spec.md §4.2). UPnP limits enumeration member names to 32
// characters; binding-time validation of that limit lives in the
// description package, which owns bind failures.
type AllowedValues []string

func (a AllowedValues) Contains(v string) bool {
	for _, allowed := range a {
		if allowed == v {
			return true
		}
	}
	return false
}
