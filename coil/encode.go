package coil

import (
	"encoding/binary"
	"fmt"
)

// Magic is the object-file identification sequence.
var Magic = [4]byte{'C', 'O', 'I', 'L'}

// Format version written by Encode.
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// AppendUint16 appends v little-endian.
func AppendUint16(b []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(b, v)
}

// AppendUint32 appends v little-endian.
func AppendUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendUint64 appends v little-endian.
func AppendUint64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

// PutLE writes the low width bytes of v little-endian into b at off.
func PutLE(b []byte, off int, width int, v uint64) {
	for i := 0; i < width; i++ {
		b[off+i] = byte(v >> (8 * i))
	}
}

// Encode serializes the object into its on-disk form.
func (o *Object) Encode() []byte {
	var out []byte
	out = append(out, Magic[:]...)
	out = append(out, VersionMajor, VersionMinor, VersionPatch, 0)
	out = AppendUint32(out, uint32(len(o.Sections)))
	out = AppendUint32(out, uint32(len(o.Symbols)))
	out = AppendUint32(out, uint32(len(o.Relocations)))
	out = AppendUint16(out, o.SymTabIndex)
	out = AppendUint16(out, 0)

	strtab := o.Strings.Bytes()
	out = AppendUint32(out, uint32(len(strtab)))
	out = append(out, strtab...)

	for _, s := range o.Sections {
		out = AppendUint32(out, o.Strings.Lookup(s.Name))
		out = append(out, byte(s.Kind), byte(s.Flags), 0, 0)
		out = AppendUint64(out, s.Align)
		out = AppendUint64(out, s.Size())
		out = AppendUint64(out, uint64(len(s.Data)))
		out = append(out, s.Data...)
	}

	for _, sym := range o.Symbols {
		out = AppendUint32(out, o.Strings.Lookup(sym.Name))
		out = AppendUint64(out, sym.Value)
		out = AppendUint32(out, o.Strings.Lookup(sym.Section))
		defined := byte(0)
		if sym.Defined {
			defined = 1
		}
		out = append(out, byte(sym.Type), byte(sym.Binding), defined, 0)
	}

	for _, r := range o.Relocations {
		out = AppendUint32(out, o.Strings.Lookup(r.Symbol))
		out = AppendUint32(out, o.Strings.Lookup(r.Section))
		out = AppendUint64(out, r.Offset)
		pcrel := byte(0)
		if r.PCRel {
			pcrel = 1
		}
		out = append(out, byte(r.Width), pcrel, 0, 0)
		out = AppendUint64(out, uint64(r.Addend))
	}

	return out
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("truncated object: need %d bytes at offset %d", n, r.pos)
	}
	return nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.b[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Decode parses a serialized object.
func Decode(b []byte) (*Object, error) {
	r := &reader{b: b}
	magic, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	if [4]byte(magic) != Magic {
		return nil, fmt.Errorf("not a COIL object: bad magic % x", magic)
	}
	ver, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	if ver[0] != VersionMajor {
		return nil, fmt.Errorf("unsupported object version %d.%d.%d", ver[0], ver[1], ver[2])
	}

	numSections, err := r.u32()
	if err != nil {
		return nil, err
	}
	numSymbols, err := r.u32()
	if err != nil {
		return nil, err
	}
	numRelocs, err := r.u32()
	if err != nil {
		return nil, err
	}
	symtabIndex, err := r.u16()
	if err != nil {
		return nil, err
	}
	if _, err := r.u16(); err != nil {
		return nil, err
	}

	strtabLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	strtabData, err := r.bytes(int(strtabLen))
	if err != nil {
		return nil, err
	}
	strtab := NewStringTable()
	// Re-intern so lookups by name work on the decoded object.
	for i := 1; i < len(strtabData); {
		end := i
		for end < len(strtabData) && strtabData[end] != 0 {
			end++
		}
		strtab.Add(string(strtabData[i:end]))
		i = end + 1
	}

	obj := NewObject()
	obj.Strings = strtab
	obj.SymTabIndex = symtabIndex

	for i := uint32(0); i < numSections; i++ {
		nameOff, err := r.u32()
		if err != nil {
			return nil, err
		}
		hdr, err := r.bytes(4)
		if err != nil {
			return nil, err
		}
		align, err := r.u64()
		if err != nil {
			return nil, err
		}
		size, err := r.u64()
		if err != nil {
			return nil, err
		}
		dataLen, err := r.u64()
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(dataLen))
		if err != nil {
			return nil, err
		}
		s := &Section{
			Name:   strtab.At(nameOff),
			Kind:   SectionKind(hdr[0]),
			Flags:  SectionFlags(hdr[1]),
			Align:  align,
			Offset: size,
		}
		if dataLen > 0 {
			s.Data = append([]byte(nil), data...)
		}
		obj.AddSection(s)
	}

	for i := uint32(0); i < numSymbols; i++ {
		nameOff, err := r.u32()
		if err != nil {
			return nil, err
		}
		value, err := r.u64()
		if err != nil {
			return nil, err
		}
		sectionOff, err := r.u32()
		if err != nil {
			return nil, err
		}
		rest, err := r.bytes(4)
		if err != nil {
			return nil, err
		}
		obj.AddSymbol(&Symbol{
			Name:    strtab.At(nameOff),
			Value:   value,
			Section: strtab.At(sectionOff),
			Type:    SymbolType(rest[0]),
			Binding: SymbolBinding(rest[1]),
			Defined: rest[2] != 0,
		})
	}

	for i := uint32(0); i < numRelocs; i++ {
		symOff, err := r.u32()
		if err != nil {
			return nil, err
		}
		sectionOff, err := r.u32()
		if err != nil {
			return nil, err
		}
		offset, err := r.u64()
		if err != nil {
			return nil, err
		}
		hdr, err := r.bytes(4)
		if err != nil {
			return nil, err
		}
		addend, err := r.u64()
		if err != nil {
			return nil, err
		}
		obj.Relocations = append(obj.Relocations, Relocation{
			Symbol:  strtab.At(symOff),
			Section: strtab.At(sectionOff),
			Offset:  offset,
			Width:   int(hdr[0]),
			PCRel:   hdr[1] != 0,
			Addend:  int64(addend),
		})
	}

	return obj, nil
}
