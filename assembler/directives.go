package assembler

import (
	"math"

	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/parser"
	"github.com/LowLevelTeam/casm/source"
)

// dataDirectives maps data directive names to their element type. byte is
// an alias of u8 so disassembler output re-assembles.
var dataDirectives = map[string]coil.ValueType{
	"i8":   coil.TypeI8,
	"i16":  coil.TypeI16,
	"i32":  coil.TypeI32,
	"i64":  coil.TypeI64,
	"u8":   coil.TypeU8,
	"u16":  coil.TypeU16,
	"u32":  coil.TypeU32,
	"u64":  coil.TypeU64,
	"f32":  coil.TypeF32,
	"f64":  coil.TypeF64,
	"byte": coil.TypeU8,
}

// layoutDirective advances section offsets in pass 1. All directive
// diagnostics are reported here; pass 2 stays silent so each problem is
// reported once.
func (a *Assembler) layoutDirective(dir *parser.Directive) {
	switch dir.Name {
	case "section":
		a.switchSection(dir, true)
	case "global":
		a.markGlobal(dir, true)
	case "ascii", "asciiz":
		a.ensureCurrent()
		a.current.Offset += a.stringDirectiveSize(dir, true)
	case "zero":
		a.ensureCurrent()
		a.current.Offset += a.zeroCount(dir, true)
	case "align":
		a.ensureCurrent()
		if n, ok := a.alignment(dir, true); ok {
			a.current.Offset = (a.current.Offset + n - 1) &^ (n - 1)
		}
	default:
		vt, ok := dataDirectives[dir.Name]
		if !ok {
			a.errorf(source.CodeSyntaxError, dir.Loc, "unknown directive: .%s", dir.Name)
			return
		}
		a.ensureCurrent()
		a.current.Offset += a.dataDirectiveSize(vt, dir, true)
	}
}

// emitDirective appends the encoded bytes in pass 2.
func (a *Assembler) emitDirective(dir *parser.Directive) {
	switch dir.Name {
	case "section":
		a.switchSection(dir, false)
	case "global":
		a.markGlobal(dir, false)
	case "ascii", "asciiz":
		a.ensureCurrent()
		a.emitStrings(dir)
	case "zero":
		a.ensureCurrent()
		a.appendZeros(a.zeroCount(dir, false))
	case "align":
		a.ensureCurrent()
		if n, ok := a.alignment(dir, false); ok {
			aligned := (a.current.Offset + n - 1) &^ (n - 1)
			a.appendZeros(aligned - a.current.Offset)
		}
	default:
		vt, ok := dataDirectives[dir.Name]
		if !ok {
			return
		}
		a.ensureCurrent()
		a.emitData(vt, dir)
	}
}

// appendBytes adds raw bytes to the current section. NoBits sections only
// advance the offset.
func (a *Assembler) appendBytes(b []byte) {
	if a.current.Kind == coil.NoBits {
		a.current.Offset += uint64(len(b))
		return
	}
	a.current.Data = append(a.current.Data, b...)
	a.current.Offset += uint64(len(b))
}

func (a *Assembler) appendZeros(n uint64) {
	if a.current.Kind == coil.NoBits {
		a.current.Offset += n
		return
	}
	a.current.Data = append(a.current.Data, make([]byte, n)...)
	a.current.Offset += n
}

// dataDirectiveSize computes the layout size of a data directive. String
// operands are accepted in byte-width directives and contribute their
// length; invalid operands contribute nothing in either pass.
func (a *Assembler) dataDirectiveSize(vt coil.ValueType, dir *parser.Directive, report bool) uint64 {
	elem := uint64(vt.Size())
	var size uint64
	for i := range dir.Operands {
		op := &dir.Operands[i]
		if !a.validDataOperand(vt, op, report) {
			continue
		}
		if op.Imm.Format == source.FormatString {
			size += uint64(len(op.Imm.Str))
		} else {
			size += elem
		}
	}
	return size
}

// validDataOperand checks one data directive operand; diagnostics are only
// reported when report is set so both passes agree on what is skipped.
func (a *Assembler) validDataOperand(vt coil.ValueType, op *parser.Operand, report bool) bool {
	if op.Kind != parser.OperandImmediate {
		if report {
			a.errorf(source.CodeInvalidOperandType, op.Loc,
				"data directive operand must be an immediate, got %s", op.Kind)
		}
		return false
	}
	if op.Imm.Format == source.FormatString && vt.Size() != 1 {
		if report {
			a.errorf(source.CodeIncompatibleTypes, op.Loc,
				"string literal requires a byte-width directive")
		}
		return false
	}
	return true
}

// emitData appends the little-endian encoding of each operand.
func (a *Assembler) emitData(vt coil.ValueType, dir *parser.Directive) {
	for i := range dir.Operands {
		op := &dir.Operands[i]
		if !a.validDataOperand(vt, op, false) {
			continue
		}
		if op.Imm.Format == source.FormatString {
			a.appendBytes([]byte(op.Imm.Str))
			continue
		}
		buf := make([]byte, vt.Size())
		switch vt {
		case coil.TypeF32:
			coil.PutLE(buf, 0, 4, uint64(math.Float32bits(float32(op.Imm.AsFloat()))))
		case coil.TypeF64:
			coil.PutLE(buf, 0, 8, math.Float64bits(op.Imm.AsFloat()))
		default:
			coil.PutLE(buf, 0, vt.Size(), uint64(op.Imm.AsInt()))
		}
		a.appendBytes(buf)
	}
}

// stringDirectiveSize computes the size of ascii/asciiz: the raw string
// length, plus one per operand for the NUL terminator of asciiz.
func (a *Assembler) stringDirectiveSize(dir *parser.Directive, report bool) uint64 {
	var size uint64
	for i := range dir.Operands {
		op := &dir.Operands[i]
		if op.Kind != parser.OperandImmediate || op.Imm.Format != source.FormatString {
			if report {
				a.errorf(source.CodeInvalidOperandType, op.Loc,
					".%s requires string operands", dir.Name)
			}
			continue
		}
		size += uint64(len(op.Imm.Str))
		if dir.Name == "asciiz" {
			size++
		}
	}
	return size
}

func (a *Assembler) emitStrings(dir *parser.Directive) {
	for i := range dir.Operands {
		op := &dir.Operands[i]
		if op.Kind != parser.OperandImmediate || op.Imm.Format != source.FormatString {
			continue
		}
		a.appendBytes([]byte(op.Imm.Str))
		if dir.Name == "asciiz" {
			a.appendBytes([]byte{0})
		}
	}
}

// zeroCount reads the single count operand of a zero directive.
func (a *Assembler) zeroCount(dir *parser.Directive, report bool) uint64 {
	if len(dir.Operands) != 1 || dir.Operands[0].Kind != parser.OperandImmediate ||
		dir.Operands[0].Imm.Format != source.FormatInteger || dir.Operands[0].Imm.Int < 0 {
		if report {
			a.errorf(source.CodeMissingOperand, dir.Loc, ".zero requires a non-negative count")
		}
		return 0
	}
	return uint64(dir.Operands[0].Imm.Int)
}

// alignment reads and validates the power-of-two operand of align.
func (a *Assembler) alignment(dir *parser.Directive, report bool) (uint64, bool) {
	if len(dir.Operands) != 1 || dir.Operands[0].Kind != parser.OperandImmediate ||
		dir.Operands[0].Imm.Format != source.FormatInteger {
		if report {
			a.errorf(source.CodeMissingOperand, dir.Loc, ".align requires an alignment value")
		}
		return 0, false
	}
	n := dir.Operands[0].Imm.Int
	if n <= 0 || n&(n-1) != 0 {
		if report {
			a.errorf(source.CodeInvalidAlignment, dir.Loc, "alignment must be a power of two: %d", n)
		}
		return 0, false
	}
	if uint64(n) > a.current.Align {
		a.current.Align = uint64(n)
	}
	return uint64(n), true
}
