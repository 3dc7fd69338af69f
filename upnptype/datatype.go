package upnptype

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Datatype pairs a Kind with the parse/format capability spec.md §4.1
// requires ("Datatype is polymorphic over parse/format"). It is the
// concrete, non-hierarchical stand-in for the source's datatype classes.
type Datatype struct {
	Kind Kind
}

// New builds a Datatype for a UPnP dataType element value.
func New(kindName string) (Datatype, error) {
	k, err := ParseKind(kindName)
	if err != nil {
		return Datatype{}, err
	}
	return Datatype{Kind: k}, nil
}

// MustNew is New but panics on an unknown kind; only for package-internal
// constant datatypes (A_ARG_TYPE plumbing, tests).
func MustNew(kindName string) Datatype {
	d, err := New(kindName)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Datatype) String() string { return d.Kind.String() }

// Parse converts the wire string representation to a Go value. Numeric
// kinds always use '.' as the decimal separator regardless of host
// locale, per spec.md §4.1 ("Parsers must be locale-independent").
func (d Datatype) Parse(s string) (interface{}, error) {
	switch d.Kind {
	case KindUI1:
		return parseUint(s, 8)
	case KindUI2:
		return parseUint(s, 16)
	case KindUI4:
		return parseUint(s, 32)
	case KindI1:
		return parseInt(s, 8)
	case KindI2:
		return parseInt(s, 16)
	case KindI4, KindInt:
		return parseInt(s, 32)
	case KindR4:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid r4 %q: %w", s, err)
		}
		return float32(v), nil
	case KindR8, KindNumber:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid %s %q: %w", d.Kind, s, err)
		}
		return v, nil
	case KindFixed14_4:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid fixed.14.4 %q: %w", s, err)
		}
		return roundFixed14_4(v), nil
	case KindChar:
		r := []rune(s)
		if len(r) != 1 {
			return nil, fmt.Errorf("upnptype: char must be exactly one rune, got %q", s)
		}
		return r[0], nil
	case KindString:
		return s, nil
	case KindBoolean:
		return parseBoolean(s)
	case KindDate:
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid date %q: %w", s, err)
		}
		return t, nil
	case KindDateTime:
		t, err := time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid dateTime %q: %w", s, err)
		}
		return t, nil
	case KindDateTimeTZ:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid dateTime.tz %q: %w", s, err)
		}
		return t, nil
	case KindTime:
		t, err := time.Parse("15:04:05", s)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid time %q: %w", s, err)
		}
		return t, nil
	case KindTimeTZ:
		t, err := time.Parse("15:04:05Z07:00", s)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid time.tz %q: %w", s, err)
		}
		return t, nil
	case KindBinBase64:
		return base64.StdEncoding.DecodeString(s)
	case KindBinHex:
		return hex.DecodeString(s)
	case KindURI:
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid uri %q: %w", s, err)
		}
		return u, nil
	case KindUUID:
		u, err := uuid.Parse(strings.TrimPrefix(s, "uuid:"))
		if err != nil {
			return nil, fmt.Errorf("upnptype: invalid uuid %q: %w", s, err)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("upnptype: parse: unsupported kind %s", d.Kind)
	}
}

// Format converts a Go value back to its wire string representation.
func (d Datatype) Format(v interface{}) (string, error) {
	switch d.Kind {
	case KindUI1, KindUI2, KindUI4:
		return formatUint(v)
	case KindI1, KindI2, KindI4, KindInt:
		return formatInt(v)
	case KindR4:
		f, ok := v.(float32)
		if !ok {
			return "", fmt.Errorf("upnptype: format r4: want float32, got %T", v)
		}
		return strconv.FormatFloat(float64(f), 'f', -1, 32), nil
	case KindR8, KindNumber, KindFixed14_4:
		f, err := toFloat64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case KindChar:
		r, ok := v.(rune)
		if !ok {
			return "", fmt.Errorf("upnptype: format char: want rune, got %T", v)
		}
		return string(r), nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("upnptype: format string: want string, got %T", v)
		}
		return s, nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("upnptype: format boolean: want bool, got %T", v)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case KindDate:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("upnptype: format date: want time.Time, got %T", v)
		}
		return t.Format("2006-01-02"), nil
	case KindDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("upnptype: format dateTime: want time.Time, got %T", v)
		}
		return t.Format("2006-01-02T15:04:05"), nil
	case KindDateTimeTZ:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("upnptype: format dateTime.tz: want time.Time, got %T", v)
		}
		return t.Format(time.RFC3339), nil
	case KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("upnptype: format time: want time.Time, got %T", v)
		}
		return t.Format("15:04:05"), nil
	case KindTimeTZ:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("upnptype: format time.tz: want time.Time, got %T", v)
		}
		return t.Format("15:04:05Z07:00"), nil
	case KindBinBase64:
		b, ok := v.([]byte)
		if !ok {
			return "", fmt.Errorf("upnptype: format bin.base64: want []byte, got %T", v)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case KindBinHex:
		b, ok := v.([]byte)
		if !ok {
			return "", fmt.Errorf("upnptype: format bin.hex: want []byte, got %T", v)
		}
		return hex.EncodeToString(b), nil
	case KindURI:
		u, ok := v.(*url.URL)
		if !ok {
			return "", fmt.Errorf("upnptype: format uri: want *url.URL, got %T", v)
		}
		return u.String(), nil
	case KindUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return "", fmt.Errorf("upnptype: format uuid: want uuid.UUID, got %T", v)
		}
		return "uuid:" + u.String(), nil
	default:
		return "", fmt.Errorf("upnptype: format: unsupported kind %s", d.Kind)
	}
}

func parseBoolean(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("upnptype: invalid boolean %q", s)
	}
}

func parseUint(s string, bits int) (interface{}, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return nil, fmt.Errorf("upnptype: invalid unsigned integer %q: %w", s, err)
	}
	switch bits {
	case 8:
		return uint8(v), nil
	case 16:
		return uint16(v), nil
	default:
		return uint32(v), nil
	}
}

func parseInt(s string, bits int) (interface{}, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return nil, fmt.Errorf("upnptype: invalid integer %q: %w", s, err)
	}
	switch bits {
	case 8:
		return int8(v), nil
	case 16:
		return int16(v), nil
	default:
		return int32(v), nil
	}
}

func formatUint(v interface{}) (string, error) {
	switch n := v.(type) {
	case uint8:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(n), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), nil
	case int:
		if n < 0 {
			return "", fmt.Errorf("upnptype: negative value %d for unsigned type", n)
		}
		return strconv.Itoa(n), nil
	default:
		return "", fmt.Errorf("upnptype: format unsigned: unsupported type %T", v)
	}
}

func formatInt(v interface{}) (string, error) {
	switch n := v.(type) {
	case int8:
		return strconv.FormatInt(int64(n), 10), nil
	case int16:
		return strconv.FormatInt(int64(n), 10), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case int:
		return strconv.Itoa(n), nil
	default:
		return "", fmt.Errorf("upnptype: format integer: unsupported type %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("upnptype: want float, got %T", v)
	}
}

// roundFixed14_4 rounds to the 4 fractional digits the fixed.14.4
// datatype allows. Rounding mode is unspecified by the UPnP spec; we
// round half away from zero, matching typical vendor implementations.
func roundFixed14_4(v float64) float64 {
	const scale = 10000.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
