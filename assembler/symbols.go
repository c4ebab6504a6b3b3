package assembler

import (
	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/parser"
	"github.com/LowLevelTeam/casm/source"
)

func (a *Assembler) symbolByName(name string) *coil.Symbol {
	i, ok := a.symbolIdx[name]
	if !ok {
		return nil
	}
	return a.symbols[i]
}

// addSymbol appends a symbol, preserving first-reference order.
func (a *Assembler) addSymbol(sym *coil.Symbol) *coil.Symbol {
	a.symbolIdx[sym.Name] = len(a.symbols)
	a.symbols = append(a.symbols, sym)
	return sym
}

// placeholderSymbol returns the named symbol, creating an undefined entry
// on first reference.
func (a *Assembler) placeholderSymbol(name string) *coil.Symbol {
	if sym := a.symbolByName(name); sym != nil {
		return sym
	}
	return a.addSymbol(&coil.Symbol{Name: name, Binding: coil.BindLocal})
}

// defineLabel binds a label to the current section offset. Pass 1
// diagnoses duplicate definitions; pass 2 refreshes the value of the first
// (defining) occurrence, since pass-1 offsets are advisory.
func (a *Assembler) defineLabel(name string, loc source.Location, pass1 bool) {
	a.ensureCurrent()

	symType := coil.SymNoType
	if a.current.Flags.Has(coil.FlagCode) {
		symType = coil.SymFunc
	}

	sym := a.symbolByName(name)
	if sym == nil {
		sym = a.addSymbol(&coil.Symbol{Name: name, Binding: coil.BindLocal})
	}

	if pass1 {
		if sym.Defined {
			a.errorf(source.CodeDuplicateSymbol, loc, "duplicate symbol definition: %s", name)
			return
		}
		sym.Value = a.current.Offset
		sym.Section = a.current.Name
		sym.Type = symType
		sym.Defined = true
		return
	}

	if a.refreshed[name] {
		// A later duplicate; pass 1 already reported it.
		return
	}
	a.refreshed[name] = true
	sym.Value = a.current.Offset
	sym.Section = a.current.Name
	sym.Type = symType
}

// markGlobal handles a global directive: the named symbol, created as a
// placeholder if unseen, gets global binding.
func (a *Assembler) markGlobal(dir *parser.Directive, report bool) {
	if len(dir.Operands) != 1 || dir.Operands[0].Kind != parser.OperandLabel {
		if report {
			a.errorf(source.CodeMissingOperand, dir.Loc, "global directive requires a symbol name")
		}
		return
	}
	a.placeholderSymbol(dir.Operands[0].Label).Binding = coil.BindGlobal
}
