package upnptype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatatypeParseFormatRoundTrip(t *testing.T) {
	cases := []struct {
		kind string
		wire string
	}{
		{"ui1", "200"},
		{"ui2", "60000"},
		{"ui4", "4000000000"},
		{"i1", "-100"},
		{"i2", "-30000"},
		{"i4", "-2000000000"},
		{"r4", "3.5"},
		{"r8", "3.141592653589793"},
		{"fixed.14.4", "12.3457"},
		{"char", "x"},
		{"string", "hello world"},
		{"boolean", "1"},
		{"boolean", "0"},
		{"uri", "http://example.org/device.xml"},
	}
	for _, tc := range cases {
		d, err := New(tc.kind)
		require.NoError(t, err, tc.kind)
		v, err := d.Parse(tc.wire)
		require.NoError(t, err, tc.kind)
		out, err := d.Format(v)
		require.NoError(t, err, tc.kind)
		if tc.kind == "boolean" {
			// boolean canonicalizes to "0"/"1"
			assert.Contains(t, []string{"0", "1"}, out)
			continue
		}
		assert.Equal(t, tc.wire, out, tc.kind)
	}
}

func TestDatatypeParseLocaleIndependent(t *testing.T) {
	d, err := New("r8")
	require.NoError(t, err)
	v, err := d.Parse("1234.5")
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, v.(float64), 0.0001)
}

func TestDatatypeParseRejectsGarbage(t *testing.T) {
	d, err := New("ui4")
	require.NoError(t, err)
	_, err = d.Parse("not-a-number")
	assert.Error(t, err)
}

func TestDatatypeCharRejectsMultipleRunes(t *testing.T) {
	d, err := New("char")
	require.NoError(t, err)
	_, err = d.Parse("ab")
	assert.Error(t, err)
}

func TestKindIsNumericIntegralString(t *testing.T) {
	assert.True(t, KindUI4.IsNumeric())
	assert.True(t, KindUI4.IsIntegral())
	assert.False(t, KindUI4.IsString())

	assert.True(t, KindR8.IsNumeric())
	assert.False(t, KindR8.IsIntegral())

	assert.True(t, KindString.IsString())
	assert.False(t, KindString.IsNumeric())
}

func TestUnsignedIntegerFourBytesWrap(t *testing.T) {
	assert.Equal(t, UnsignedIntegerFourBytes(1), UnsignedIntegerFourBytes(0).Next())
	assert.Equal(t, UnsignedIntegerFourBytes(2), UnsignedIntegerFourBytes(1).Next())
	var max UnsignedIntegerFourBytes = 1<<32 - 1
	assert.Equal(t, UnsignedIntegerFourBytes(1), max.Next())
	assert.NotEqual(t, UnsignedIntegerFourBytes(0), max.Next())
}

func TestRangeInRange(t *testing.T) {
	r := Range{Min: 0, Max: 10, Step: 1}
	assert.True(t, r.InRange(5))
	assert.True(t, r.InRange(0))
	assert.True(t, r.InRange(10))
	assert.False(t, r.InRange(-1))
	assert.False(t, r.InRange(11))
}

func TestAllowedValuesContains(t *testing.T) {
	a := AllowedValues{"STOPPED", "PLAYING", "PAUSED_PLAYBACK"}
	assert.True(t, a.Contains("PLAYING"))
	assert.False(t, a.Contains("UNKNOWN_STATE"))
}
