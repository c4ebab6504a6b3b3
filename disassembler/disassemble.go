// Package disassembler renders a COIL object back into CASM text.
package disassembler

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/LowLevelTeam/casm/coil"
)

type relocKey struct {
	section string
	offset  uint64
}

// state carries the lookup tables built once per disassembly.
type state struct {
	obj       *coil.Object
	relocs    map[relocKey]*coil.Relocation
	symbols   map[string]map[uint64][]*coil.Symbol // section -> offset -> symbols
	synthetic map[string]map[uint64]string         // section -> offset -> generated name
	names     map[string]bool
}

// Disassemble renders the object's sections as CASM source. The output
// re-assembles to the same section contents.
func Disassemble(obj *coil.Object) (string, error) {
	st := &state{
		obj:       obj,
		relocs:    make(map[relocKey]*coil.Relocation),
		symbols:   make(map[string]map[uint64][]*coil.Symbol),
		synthetic: make(map[string]map[uint64]string),
		names:     make(map[string]bool),
	}
	for i := range obj.Relocations {
		r := &obj.Relocations[i]
		st.relocs[relocKey{r.Section, r.Offset}] = r
	}
	for _, sym := range obj.Symbols {
		st.names[sym.Name] = true
		if !sym.Defined {
			continue
		}
		bySection := st.symbols[sym.Section]
		if bySection == nil {
			bySection = make(map[uint64][]*coil.Symbol)
			st.symbols[sym.Section] = bySection
		}
		bySection[sym.Value] = append(bySection[sym.Value], sym)
	}

	// First sweep registers synthetic labels for reference targets that
	// have no symbol, so their definitions render in the right place.
	for _, s := range obj.Sections {
		if s.Kind == coil.ProgBits && s.Flags.Has(coil.FlagCode) {
			st.collectTargets(s)
		}
	}

	var out strings.Builder
	for _, sym := range obj.Symbols {
		if sym.Binding == coil.BindGlobal {
			fmt.Fprintf(&out, ".global @%s\n", sym.Name)
		}
	}

	for _, s := range obj.Sections {
		if s.Kind == coil.SymTab || s.Kind == coil.StrTab {
			continue
		}
		st.renderSectionHeader(&out, s)
		switch {
		case s.Kind == coil.NoBits:
			st.renderNoBits(&out, s)
		case s.Flags.Has(coil.FlagCode):
			st.renderCode(&out, s)
		default:
			st.renderData(&out, s)
		}
	}

	return out.String(), nil
}

// syntheticName generates a label for an unnamed offset. Names never
// collide with user symbols: underscores are appended until the name is
// free.
func (st *state) syntheticName(section string, offset uint64) string {
	bySection := st.synthetic[section]
	if bySection == nil {
		bySection = make(map[uint64]string)
		st.synthetic[section] = bySection
	}
	if name, ok := bySection[offset]; ok {
		return name
	}
	name := fmt.Sprintf("L%d", offset)
	for st.names[name] {
		name += "_"
	}
	st.names[name] = true
	bySection[offset] = name
	return name
}

// collectTargets walks a code section's relocations and assigns synthetic
// names to referenced offsets that carry no symbol.
func (st *state) collectTargets(s *coil.Section) {
	for i := range st.obj.Relocations {
		r := &st.obj.Relocations[i]
		if r.Section != s.Name {
			continue
		}
		if st.namedRef(r) {
			continue
		}
		target, ok := st.relocTarget(s, r)
		if !ok {
			continue
		}
		if len(st.symbols[s.Name][target]) > 0 {
			continue
		}
		st.syntheticName(s.Name, target)
	}
}

// namedRef reports whether a relocation renders by its symbol name: the
// symbol is undefined (external) or defined in a section of the object.
func (st *state) namedRef(r *coil.Relocation) bool {
	sym := st.obj.SymbolByName(r.Symbol)
	if sym == nil {
		return false
	}
	return !sym.Defined || st.obj.SectionByName(sym.Section) != nil
}

// relocTarget recovers the referenced section offset from the patched
// bytes at a relocation site.
func (st *state) relocTarget(s *coil.Section, r *coil.Relocation) (uint64, bool) {
	if r.Offset+uint64(r.Width) > uint64(len(s.Data)) || r.Width != 4 {
		return 0, false
	}
	v := int64(int32(binary.LittleEndian.Uint32(s.Data[r.Offset:])))
	if r.PCRel {
		v += int64(r.Offset) + int64(r.Width)
	}
	if v < 0 || uint64(v) > s.Size() {
		return 0, false
	}
	return uint64(v), true
}

// wellKnown sections render without attributes; the assembler recreates
// their defaults.
var wellKnown = map[string]bool{".text": true, ".data": true, ".bss": true, ".rodata": true}

func (st *state) renderSectionHeader(out *strings.Builder, s *coil.Section) {
	if wellKnown[s.Name] {
		fmt.Fprintf(out, ".section %s\n", s.Name)
		return
	}
	fmt.Fprintf(out, ".section %s ^%s", s.Name, s.Kind)
	for _, name := range s.Flags.Names() {
		fmt.Fprintf(out, " ^%s", name)
	}
	out.WriteByte('\n')
}

// renderLabels prints every label defined at an offset, synthetic ones
// included.
func (st *state) renderLabels(out *strings.Builder, section string, offset uint64) {
	for _, sym := range st.symbols[section][offset] {
		fmt.Fprintf(out, "#%s\n", sym.Name)
	}
	if name, ok := st.synthetic[section][offset]; ok {
		fmt.Fprintf(out, "#%s\n", name)
	}
}

// renderCode decodes fixed-layout instructions. Anything that does not
// decode falls back to a byte directive so no data is lost.
func (st *state) renderCode(out *strings.Builder, s *coil.Section) {
	data := s.Data
	pc := uint64(0)
	for pc < uint64(len(data)) {
		st.renderLabels(out, s.Name, pc)

		if uint64(len(data))-pc < 4 {
			st.renderByteRow(out, data[pc:])
			break
		}

		opcode := coil.Opcode(data[pc])
		name := opcode.Name()
		if name == "" {
			st.renderByteRow(out, data[pc:pc+1])
			pc++
			continue
		}

		flag0 := coil.Cond(data[pc+1])
		typeByte := data[pc+2]
		codes := []byte{typeByte >> 4 & 0xF, typeByte >> 2 & 0x3, typeByte & 0x3}
		count := 0
		for _, c := range codes {
			if c == 0 {
				break
			}
			count++
		}
		slots := count
		if slots < 1 {
			slots = 1
		}
		size := uint64(4 + 4*slots)
		if pc+size > uint64(len(data)) {
			st.renderByteRow(out, data[pc:pc+1])
			pc++
			continue
		}

		var ops []string
		for i := 0; i < count; i++ {
			site := pc + 4 + uint64(4*i)
			ops = append(ops, st.renderOperand(s, codes[i], site))
		}

		mn := name
		if flag0 != coil.CondNone && flag0.String() != "" {
			mn += " ^" + flag0.String()
		}
		if len(ops) > 0 {
			fmt.Fprintf(out, "    %-8s %s\n", mn, strings.Join(ops, ", "))
		} else {
			fmt.Fprintf(out, "    %s\n", mn)
		}
		pc += size
	}
}

// renderOperand formats one payload slot. A relocation at the slot always
// wins: the payload is a label reference regardless of its type code.
func (st *state) renderOperand(s *coil.Section, code byte, site uint64) string {
	if r, ok := st.relocs[relocKey{s.Name, site}]; ok {
		if st.namedRef(r) {
			return "@" + r.Symbol
		}
		if target, ok := st.relocTarget(s, r); ok {
			if syms := st.symbols[s.Name][target]; len(syms) > 0 {
				return "@" + syms[0].Name
			}
			return "@" + st.syntheticName(s.Name, target)
		}
		return "@" + r.Symbol
	}

	raw := binary.LittleEndian.Uint32(s.Data[site:])
	switch code {
	case 1: // register
		return fmt.Sprintf("%%r%d", raw)
	case 3: // memory
		base := binary.LittleEndian.Uint16(s.Data[site:])
		off := int16(binary.LittleEndian.Uint16(s.Data[site+2:]))
		switch {
		case off > 0:
			return fmt.Sprintf("[%%r%d+%d]", base, off)
		case off < 0:
			return fmt.Sprintf("[%%r%d%d]", base, off)
		}
		return fmt.Sprintf("[%%r%d]", base)
	}
	// Immediate, and label slots whose relocation is gone.
	return fmt.Sprintf("$id%d", int32(raw))
}

// renderData prints a ProgBits data section as byte directives, sixteen
// per line, with labels interleaved at their offsets.
func (st *state) renderData(out *strings.Builder, s *coil.Section) {
	data := s.Data
	pos := uint64(0)
	for pos < uint64(len(data)) {
		st.renderLabels(out, s.Name, pos)
		end := pos + 16
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		// Break the row early at the next labelled offset.
		for o := pos + 1; o < end; o++ {
			if len(st.symbols[s.Name][o]) > 0 {
				end = o
				break
			}
		}
		st.renderByteRow(out, data[pos:end])
		pos = end
	}
}

func (st *state) renderByteRow(out *strings.Builder, row []byte) {
	if len(row) == 0 {
		return
	}
	parts := make([]string, len(row))
	for i, b := range row {
		parts[i] = fmt.Sprintf("0x%02x", b)
	}
	fmt.Fprintf(out, "    .byte    %s\n", strings.Join(parts, ", "))
}

// renderNoBits prints a NoBits section as zero directives split at
// labelled offsets.
func (st *state) renderNoBits(out *strings.Builder, s *coil.Section) {
	offsets := make([]uint64, 0, len(st.symbols[s.Name]))
	for off := range st.symbols[s.Name] {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	pos := uint64(0)
	for _, off := range offsets {
		if off > pos {
			fmt.Fprintf(out, "    .zero    %d\n", off-pos)
			pos = off
		}
		st.renderLabels(out, s.Name, off)
	}
	if s.Size() > pos {
		fmt.Fprintf(out, "    .zero    %d\n", s.Size()-pos)
	}
}
