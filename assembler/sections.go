package assembler

import (
	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/parser"
	"github.com/LowLevelTeam/casm/source"
)

// wellKnownSections carries the default attributes applied when one of the
// standard sections is first created.
var wellKnownSections = map[string]struct {
	kind  coil.SectionKind
	flags coil.SectionFlags
}{
	".text":   {coil.ProgBits, coil.FlagCode | coil.FlagAlloc},
	".data":   {coil.ProgBits, coil.FlagWrite | coil.FlagAlloc},
	".bss":    {coil.NoBits, coil.FlagWrite | coil.FlagAlloc},
	".rodata": {coil.ProgBits, coil.FlagAlloc},
}

func (a *Assembler) sectionByName(name string) *coil.Section {
	i, ok := a.sectionIdx[name]
	if !ok {
		return nil
	}
	return a.sections[i]
}

// getOrCreateSection returns the named section, creating it with its
// default attributes on first reference.
func (a *Assembler) getOrCreateSection(name string) *coil.Section {
	if s := a.sectionByName(name); s != nil {
		return s
	}
	s := &coil.Section{Name: name, Kind: coil.ProgBits, Align: 1}
	if def, ok := wellKnownSections[name]; ok {
		s.Kind = def.kind
		s.Flags = def.flags
	}
	a.sectionIdx[name] = len(a.sections)
	a.sections = append(a.sections, s)
	return s
}

// ensureCurrent defaults the current section to .text on first emission.
func (a *Assembler) ensureCurrent() {
	if a.current == nil {
		a.current = a.getOrCreateSection(".text")
	}
}

// switchSection handles a section directive: switch the current section,
// creating it if needed, and apply any attribute parameters.
func (a *Assembler) switchSection(dir *parser.Directive, report bool) {
	if len(dir.Operands) < 1 || dir.Operands[0].Kind != parser.OperandLabel {
		if report {
			a.errorf(source.CodeInvalidSection, dir.Loc, "section directive requires a name")
		}
		return
	}
	s := a.getOrCreateSection(dir.Operands[0].Label)
	for _, p := range dir.Parameters {
		if kind, ok := coil.SectionKinds[p]; ok {
			s.Kind = kind
			continue
		}
		if flag, ok := coil.SectionFlagNames[p]; ok {
			s.Flags |= flag
			continue
		}
		if report {
			a.errorf(source.CodeInvalidSection, dir.Loc, "invalid section attribute: %s", p)
		}
	}
	a.current = s
}
