// Package upnptype implements the UPnP datatype system: the builtin
// kinds from the Device Architecture spec, locale-independent
// parsing/formatting, and the allowed-value/range validation used by
// bound state variables (UPnP Device Architecture 1.0/1.1, table in
// Annex A of the core spec).
package upnptype

import "fmt"

// Kind enumerates the UPnP builtin datatypes. Modeled as a tagged value
// instead of a class hierarchy: each Kind maps to exactly one parse/format
// pair in datatype.go.
type Kind int

const (
	KindUnknown Kind = iota
	KindUI1
	KindUI2
	KindUI4
	KindI1
	KindI2
	KindI4
	KindInt
	KindR4
	KindR8
	KindNumber
	KindFixed14_4
	KindChar
	KindString
	KindDate
	KindDateTime
	KindDateTimeTZ
	KindTime
	KindTimeTZ
	KindBoolean
	KindBinBase64
	KindBinHex
	KindURI
	KindUUID
)

var kindNames = map[Kind]string{
	KindUI1:       "ui1",
	KindUI2:       "ui2",
	KindUI4:       "ui4",
	KindI1:        "i1",
	KindI2:        "i2",
	KindI4:        "i4",
	KindInt:       "int",
	KindR4:        "r4",
	KindR8:        "r8",
	KindNumber:    "number",
	KindFixed14_4: "fixed.14.4",
	KindChar:      "char",
	KindString:    "string",
	KindDate:      "date",
	KindDateTime:  "dateTime",
	KindDateTimeTZ: "dateTime.tz",
	KindTime:      "time",
	KindTimeTZ:    "time.tz",
	KindBoolean:   "boolean",
	KindBinBase64: "bin.base64",
	KindBinHex:    "bin.hex",
	KindURI:       "uri",
	KindUUID:      "uuid",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the UPnP wire name for the kind (e.g. "ui4").
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind resolves a UPnP dataType element value to a Kind.
func ParseKind(s string) (Kind, error) {
	if k, ok := namesToKind[s]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("upnptype: unknown datatype %q", s)
}

// IsNumeric reports whether the kind supports range validation.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindUI1, KindUI2, KindUI4, KindI1, KindI2, KindI4, KindInt, KindR4, KindR8, KindNumber, KindFixed14_4:
		return true
	default:
		return false
	}
}

// IsIntegral reports whether the kind is a whole-number type (relevant
// to eventMinimumDelta, which spec.md marks a no-op on non-integer types).
func (k Kind) IsIntegral() bool {
	switch k {
	case KindUI1, KindUI2, KindUI4, KindI1, KindI2, KindI4, KindInt:
		return true
	default:
		return false
	}
}

// IsString reports whether the kind supports an allowed-value list.
func (k Kind) IsString() bool {
	return k == KindString
}
