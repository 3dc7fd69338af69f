package upnptype

// UnsignedIntegerFourBytes wraps a ui4 value in [0, 2^32-1] with the
// checked/wrapping arithmetic spec.md §3 requires for GENA event keys:
// the counter wraps from 2^32-1 to 1, skipping 0 (0 is reserved for the
// initial event).
type UnsignedIntegerFourBytes uint32

// Next returns the next event-key value per the wrap rule in spec.md §3
// and §4.6 ("SEQ increments per subscription; wrap as described in §3").
func (u UnsignedIntegerFourBytes) Next() UnsignedIntegerFourBytes {
	if u == ^UnsignedIntegerFourBytes(0) {
		return 1
	}
	if u == 0 {
		return 1
	}
	return u + 1
}

// InitialEventKey is the fixed SEQ value for a subscription's first
// (initial) GENA NOTIFY.
const InitialEventKey UnsignedIntegerFourBytes = 0
