package coil

// StringTable is a NUL-separated string pool. Offset 0 always holds the
// empty string, so a zero offset can double as "no name".
type StringTable struct {
	data    []byte
	offsets map[string]uint32
}

// NewStringTable creates a table containing only the empty string.
func NewStringTable() StringTable {
	return StringTable{
		data:    []byte{0},
		offsets: map[string]uint32{"": 0},
	}
}

// Add interns a string and returns its offset. Repeated adds of the same
// string return the same offset.
func (t *StringTable) Add(s string) uint32 {
	if off, ok := t.offsets[s]; ok {
		return off
	}
	off := uint32(len(t.data))
	t.data = append(t.data, s...)
	t.data = append(t.data, 0)
	t.offsets[s] = off
	return off
}

// Lookup returns the offset of an already-interned string, or 0.
func (t *StringTable) Lookup(s string) uint32 {
	return t.offsets[s]
}

// At returns the NUL-terminated string starting at off.
func (t *StringTable) At(off uint32) string {
	if int(off) >= len(t.data) {
		return ""
	}
	end := int(off)
	for end < len(t.data) && t.data[end] != 0 {
		end++
	}
	return string(t.data[off:end])
}

// Bytes returns the raw table contents.
func (t *StringTable) Bytes() []byte {
	return t.data
}

// Len returns the table size in bytes.
func (t *StringTable) Len() int {
	return len(t.data)
}
