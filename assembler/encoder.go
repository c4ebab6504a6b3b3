package assembler

import (
	"math"

	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/parser"
	"github.com/LowLevelTeam/casm/source"
)

// Operand type codes packed into byte 2 of the instruction header.
const (
	typeNone  = 0
	typeReg   = 1
	typeImm   = 2
	typeMem   = 3
	typeLabel = 4
)

// operandTypeCode returns the header code for an operand. The source slots
// of the type byte are two bits wide, so label operands outside the dest
// slot are recorded as immediates; their relocation identifies them.
func operandTypeCode(op *parser.Operand, destSlot bool) byte {
	switch op.Kind {
	case parser.OperandRegister:
		return typeReg
	case parser.OperandImmediate:
		return typeImm
	case parser.OperandMemory:
		return typeMem
	case parser.OperandLabel:
		if destSlot {
			return typeLabel
		}
		return typeImm
	}
	return typeNone
}

// inferValueType picks the immediate width for an instruction: the
// mnemonic's .type suffix wins, then a ^type parameter, then I32.
func inferValueType(inst *parser.Instruction) coil.ValueType {
	if s := inst.TypeSuffix(); s != "" {
		if vt, ok := coil.ValueTypes[s]; ok {
			return vt
		}
	}
	for _, p := range inst.Parameters {
		if vt, ok := coil.ValueTypes[p]; ok {
			return vt
		}
	}
	return coil.TypeI32
}

// condition returns the flag0 value from the first condition-code
// parameter, or CondNone.
func condition(inst *parser.Instruction) coil.Cond {
	for _, p := range inst.Parameters {
		if c, ok := coil.Conditions[p]; ok {
			return c
		}
	}
	return coil.CondNone
}

// encodeInstruction translates one instruction into bytes appended to the
// current section, recording relocations for label operands. On any
// operand error the whole statement is skipped.
func (a *Assembler) encodeInstruction(inst *parser.Instruction) {
	opcode, ok := coil.Mnemonics[inst.Base()]
	if !ok {
		a.errorf(source.CodeInvalidOpcode, inst.Loc, "unknown instruction: %s", inst.Base())
		return
	}

	want := coil.OperandCounts[opcode]
	if len(inst.Operands) != want {
		a.errorf(source.CodeInvalidOperandCount, inst.Loc,
			"%s requires %d operands, got %d", inst.Base(), want, len(inst.Operands))
		return
	}

	vt := inferValueType(inst)

	var typeByte byte
	for i := range inst.Operands {
		code := operandTypeCode(&inst.Operands[i], i == 0)
		switch i {
		case 0:
			typeByte |= code << 4
		case 1:
			typeByte |= code << 2
		case 2:
			typeByte |= code
		}
	}

	buf := []byte{byte(opcode), byte(condition(inst)), typeByte, 0}
	var relocs []coil.Relocation

	for i := range inst.Operands {
		op := &inst.Operands[i]
		payload, rel, ok := a.encodeOperand(opcode, op, vt, uint64(len(buf)))
		if !ok {
			return
		}
		buf = append(buf, payload...)
		if rel != nil {
			relocs = append(relocs, *rel)
		}
	}

	// Operand-less instructions still carry one zero-filled payload slot.
	if len(inst.Operands) == 0 {
		buf = append(buf, 0, 0, 0, 0)
	}

	base := a.current.Offset
	for i := range relocs {
		relocs[i].Offset += base
	}
	a.relocs = append(a.relocs, relocs...)
	a.appendBytes(buf)
}

// encodeOperand produces the 4-byte payload for one operand. The returned
// relocation offset is relative to the start of the instruction.
func (a *Assembler) encodeOperand(opcode coil.Opcode, op *parser.Operand, vt coil.ValueType, instOffset uint64) ([]byte, *coil.Relocation, bool) {
	payload := make([]byte, 4)

	switch op.Kind {
	case parser.OperandRegister:
		idx, err := source.RegisterIndex(op.Reg)
		if err != nil {
			a.errorf(source.CodeInvalidOperandType, op.Loc, "%v", err)
			return nil, nil, false
		}
		coil.PutLE(payload, 0, 4, uint64(idx))

	case parser.OperandImmediate:
		if op.Imm.Format == source.FormatString {
			a.errorf(source.CodeInvalidOperandType, op.Loc,
				"string immediates are not valid instruction operands")
			return nil, nil, false
		}
		if vt.IsFloat() {
			// F64 narrows to the F32 bit pattern; payload slots are 4 bytes.
			coil.PutLE(payload, 0, 4, uint64(math.Float32bits(float32(op.Imm.AsFloat()))))
		} else {
			width := vt.Size()
			if width > 4 {
				width = 4
			}
			coil.PutLE(payload, 0, width, uint64(op.Imm.AsInt()))
		}

	case parser.OperandMemory:
		idx, err := source.RegisterIndex(op.Mem.Base)
		if err != nil {
			a.errorf(source.CodeInvalidOperandType, op.Loc, "%v", err)
			return nil, nil, false
		}
		if idx > math.MaxUint16 {
			a.errorf(source.CodeValueOutOfRange, op.Loc,
				"memory base register index out of range: %d", idx)
			return nil, nil, false
		}
		if op.Mem.Offset < math.MinInt16 || op.Mem.Offset > math.MaxInt16 {
			a.errorf(source.CodeValueOutOfRange, op.Loc,
				"memory offset out of range: %d", op.Mem.Offset)
			return nil, nil, false
		}
		coil.PutLE(payload, 0, 2, uint64(idx))
		coil.PutLE(payload, 2, 2, uint64(uint16(op.Mem.Offset)))

	case parser.OperandLabel:
		a.placeholderSymbol(op.Label)
		rel := &coil.Relocation{
			Symbol:  op.Label,
			Section: a.current.Name,
			Offset:  instOffset,
			Width:   4,
			PCRel:   opcode.IsBranch(),
		}
		return payload, rel, true
	}

	return payload, nil, true
}
