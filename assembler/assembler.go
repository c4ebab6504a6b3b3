// Package assembler drives the two-pass translation of CASM statements
// into a COIL object.
package assembler

import (
	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/parser"
	"github.com/LowLevelTeam/casm/source"
)

// Options configures a driver instance.
type Options struct {
	// AllowUnresolved keeps undefined global symbols in the object instead
	// of reporting them as errors during relocation resolution.
	AllowUnresolved bool
}

// Assembler holds the state of one assembly: section and symbol tables,
// recorded relocations and collected diagnostics. A single instance must
// not be used concurrently; independent assemblies need separate instances.
type Assembler struct {
	opts Options

	sections   []*coil.Section
	sectionIdx map[string]int
	symbols    []*coil.Symbol
	symbolIdx  map[string]int
	relocs     []coil.Relocation
	diags      []source.Diagnostic

	current   *coil.Section
	refreshed map[string]bool
}

// New creates an assembler with default options.
func New() *Assembler {
	return NewWithOptions(Options{})
}

// NewWithOptions creates an assembler.
func NewWithOptions(opts Options) *Assembler {
	return &Assembler{
		opts:       opts,
		sectionIdx: make(map[string]int),
		symbolIdx:  make(map[string]int),
	}
}

// AssembleSource assembles CASM text with default options. The object is
// always returned; callers inspect the diagnostics for errors.
func AssembleSource(src, filename string) (*coil.Object, []source.Diagnostic) {
	return New().Assemble(src, filename)
}

// Assemble lexes, parses and assembles CASM text.
func (a *Assembler) Assemble(src, filename string) (*coil.Object, []source.Diagnostic) {
	stmts, diags := parser.Parse(src, filename)
	a.diags = append(a.diags, diags...)
	return a.AssembleStatements(stmts)
}

// AssembleStatements runs both passes over a statement list, resolves
// relocations and finalizes the object.
func (a *Assembler) AssembleStatements(stmts []parser.Statement) (*coil.Object, []source.Diagnostic) {
	a.sections, a.sectionIdx = nil, make(map[string]int)
	a.symbols, a.symbolIdx = nil, make(map[string]int)
	a.relocs = nil

	a.pass1(stmts)
	a.pass2(stmts)
	a.resolveRelocations()
	return a.finalize(), a.diags
}

func (a *Assembler) errorf(code uint32, loc source.Location, format string, args ...any) {
	a.diags = append(a.diags, source.Errorf(code, loc, format, args...))
}

// instrSize is the encoded size of an instruction: a 4-byte header plus
// one 4-byte payload slot per operand, with a single zero-filled slot for
// operand-less instructions. Both passes use this formula, so symbol
// offsets move between them only when pass 2 skips an instruction that
// does not encode.
func instrSize(operands int) uint64 {
	if operands < 1 {
		operands = 1
	}
	return uint64(4 + 4*operands)
}

// pass1 lays out sections and defines symbols at their final offsets.
func (a *Assembler) pass1(stmts []parser.Statement) {
	a.current = nil
	for i := range stmts {
		stmt := &stmts[i]
		if stmt.Label != "" {
			a.defineLabel(stmt.Label, stmt.Loc, true)
		}
		switch stmt.Kind {
		case parser.StmtInstruction:
			a.ensureCurrent()
			a.current.Offset += instrSize(len(stmt.Instruction.Operands))
		case parser.StmtDirective:
			a.layoutDirective(stmt.Directive)
		}
	}
}

// pass2 re-traverses the statements and emits final bytes. Section data
// and offsets are reset first; symbol values are refreshed as labels are
// passed again.
func (a *Assembler) pass2(stmts []parser.Statement) {
	for _, s := range a.sections {
		s.Data = nil
		s.Offset = 0
	}
	a.current = nil
	a.refreshed = make(map[string]bool)
	for i := range stmts {
		stmt := &stmts[i]
		if stmt.Label != "" {
			a.defineLabel(stmt.Label, stmt.Loc, false)
		}
		switch stmt.Kind {
		case parser.StmtInstruction:
			a.ensureCurrent()
			if a.current.Kind != coil.ProgBits || !a.current.Flags.Has(coil.FlagCode) {
				a.errorf(source.CodeInvalidSection, stmt.Instruction.Loc,
					"instruction in non-code section %s", a.current.Name)
				continue
			}
			a.encodeInstruction(stmt.Instruction)
		case parser.StmtDirective:
			a.emitDirective(stmt.Directive)
		}
	}
}

// resolveRelocations patches recorded label references into section data.
// Unresolved symbols and out-of-range values are diagnosed and left
// zero-filled.
func (a *Assembler) resolveRelocations() {
	for _, rel := range a.relocs {
		sym := a.symbolByName(rel.Symbol)
		if sym == nil || !sym.Defined {
			if !a.opts.AllowUnresolved {
				a.errorf(source.CodeUndefinedSymbol, source.Location{},
					"undefined symbol: %s", rel.Symbol)
			}
			continue
		}

		var value int64
		if rel.PCRel {
			value = int64(sym.Value) - int64(rel.Offset+uint64(rel.Width)) + rel.Addend
		} else {
			value = int64(sym.Value) + rel.Addend
		}

		if rel.Width < 8 {
			bits := uint(rel.Width * 8)
			min := -(int64(1) << (bits - 1))
			max := int64(1)<<(bits-1) - 1
			if value < min || value > max {
				a.errorf(source.CodeRelocationRange, source.Location{},
					"relocation for %s out of range: %d does not fit in %d bytes",
					rel.Symbol, value, rel.Width)
				continue
			}
		}

		sec := a.sectionByName(rel.Section)
		if sec == nil || rel.Offset+uint64(rel.Width) > uint64(len(sec.Data)) {
			a.errorf(source.CodeInternalError, source.Location{},
				"relocation site %s+%d outside section data", rel.Section, rel.Offset)
			continue
		}
		coil.PutLE(sec.Data, int(rel.Offset), rel.Width, uint64(value))
	}
}

// finalize builds the object: sections in insertion order (empty ProgBits
// sections are dropped), then symbols in insertion order, then the symbol
// and string table sections.
func (a *Assembler) finalize() *coil.Object {
	obj := coil.NewObject()

	for _, s := range a.sections {
		if s.Kind == coil.ProgBits && s.Size() == 0 {
			continue
		}
		obj.AddSection(s)
	}

	for _, sym := range a.symbols {
		if sym.Defined {
			if obj.GetSectionIndex(sym.Section) == 0 {
				continue
			}
		} else if sym.Binding != coil.BindGlobal || !a.opts.AllowUnresolved {
			continue
		}
		obj.AddSymbol(sym)
	}

	if len(obj.Symbols) > 0 {
		obj.AddSection(&coil.Section{Name: ".symtab", Kind: coil.SymTab, Align: 1})
		obj.AddSection(&coil.Section{Name: ".strtab", Kind: coil.StrTab, Align: 1})
		obj.SymTabIndex = obj.GetSectionIndex(".symtab")
	}

	obj.Relocations = append(obj.Relocations, a.relocs...)
	return obj
}
