package coil

// Opcode is the first byte of every encoded instruction. The values are
// fixed; the disassembler depends on them staying stable across versions.
type Opcode uint8

// Opcodes for the CASM instruction set.
const (
	// No operation
	OpNop Opcode = 0x00

	// Control flow (0x01-0x0F)
	OpBr   Opcode = 0x02 // BR
	OpCall Opcode = 0x03 // CALL
	OpRet  Opcode = 0x04 // RET
	OpCmp  Opcode = 0x05 // CMP
	OpTest Opcode = 0x06 // TEST
	OpJmp  Opcode = 0x07 // JMP

	// Memory operations (0x10-0x2F)
	OpMov   Opcode = 0x10 // MOV
	OpPush  Opcode = 0x11 // PUSH
	OpPop   Opcode = 0x12 // POP
	OpLoad  Opcode = 0x1C // LOAD
	OpStore Opcode = 0x1D // STORE

	// Bit manipulation (0x50-0x5F)
	OpAnd Opcode = 0x50 // AND
	OpOr  Opcode = 0x51 // OR
	OpXor Opcode = 0x52 // XOR
	OpNot Opcode = 0x53 // NOT
	OpShl Opcode = 0x54 // SHL
	OpShr Opcode = 0x55 // SHR
	OpSar Opcode = 0x56 // SAR

	// Arithmetic (0x60-0x8F)
	OpAdd Opcode = 0x60 // ADD
	OpSub Opcode = 0x61 // SUB
	OpMul Opcode = 0x62 // MUL
	OpDiv Opcode = 0x63 // DIV
	OpRem Opcode = 0x64 // REM
	OpInc Opcode = 0x65 // INC
	OpDec Opcode = 0x66 // DEC
	OpNeg Opcode = 0x67 // NEG

	// Type instructions (0xA0-0xAF)
	OpCvt Opcode = 0xA3 // CVT
)

// Mnemonics maps instruction names to their opcodes.
var Mnemonics = map[string]Opcode{
	"nop":   OpNop,
	"br":    OpBr,
	"call":  OpCall,
	"ret":   OpRet,
	"cmp":   OpCmp,
	"test":  OpTest,
	"jmp":   OpJmp,
	"mov":   OpMov,
	"push":  OpPush,
	"pop":   OpPop,
	"load":  OpLoad,
	"store": OpStore,
	"and":   OpAnd,
	"or":    OpOr,
	"xor":   OpXor,
	"not":   OpNot,
	"shl":   OpShl,
	"shr":   OpShr,
	"sar":   OpSar,
	"add":   OpAdd,
	"sub":   OpSub,
	"mul":   OpMul,
	"div":   OpDiv,
	"rem":   OpRem,
	"inc":   OpInc,
	"dec":   OpDec,
	"neg":   OpNeg,
	"cvt":   OpCvt,
}

// OperandCounts gives the number of operands each opcode requires.
var OperandCounts = map[Opcode]int{
	OpNop:   0,
	OpRet:   0,
	OpJmp:   1,
	OpBr:    1,
	OpCall:  1,
	OpPush:  1,
	OpPop:   1,
	OpInc:   1,
	OpDec:   1,
	OpNeg:   1,
	OpNot:   1,
	OpMov:   2,
	OpLoad:  2,
	OpStore: 2,
	OpCmp:   2,
	OpTest:  2,
	OpCvt:   2,
	OpAdd:   3,
	OpSub:   3,
	OpMul:   3,
	OpDiv:   3,
	OpRem:   3,
	OpAnd:   3,
	OpOr:    3,
	OpXor:   3,
	OpShl:   3,
	OpShr:   3,
	OpSar:   3,
}

var opcodeNames = map[Opcode]string{}

func init() {
	for name, op := range Mnemonics {
		opcodeNames[op] = name
	}
}

// Name returns the mnemonic for an opcode, or "" if the opcode is not part
// of the instruction set.
func (o Opcode) Name() string {
	return opcodeNames[o]
}

// IsBranch reports whether the opcode transfers control. Label operands of
// branching instructions are encoded PC-relative.
func (o Opcode) IsBranch() bool {
	switch o {
	case OpJmp, OpBr, OpCall:
		return true
	}
	return false
}

// Cond is the conditional-execution code stored in flag0 of the
// instruction header.
type Cond uint8

// Condition codes.
const (
	CondNone Cond = iota
	CondEq
	CondNeq
	CondGt
	CondGte
	CondLt
	CondLte
)

// Conditions maps condition-code parameter names to flag0 values.
var Conditions = map[string]Cond{
	"eq":  CondEq,
	"neq": CondNeq,
	"gt":  CondGt,
	"gte": CondGte,
	"lt":  CondLt,
	"lte": CondLte,
}

var condNames = [...]string{"", "eq", "neq", "gt", "gte", "lt", "lte"}

// String returns the parameter name for a condition code. CondNone yields
// the empty string.
func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return ""
}
