// Package parser turns the token stream into a statement list.
package parser

import (
	"strings"

	"github.com/LowLevelTeam/casm/source"
)

// OperandKind selects the variant of an Operand.
type OperandKind int

// Operand kinds.
const (
	OperandRegister OperandKind = iota
	OperandImmediate
	OperandMemory
	OperandLabel
)

func (k OperandKind) String() string {
	switch k {
	case OperandRegister:
		return "register"
	case OperandImmediate:
		return "immediate"
	case OperandMemory:
		return "memory"
	case OperandLabel:
		return "label"
	}
	return "unknown"
}

// Operand is one instruction or directive operand. Kind selects which
// field is meaningful.
type Operand struct {
	Kind  OperandKind
	Reg   string // register name without the % prefix
	Imm   source.Immediate
	Mem   source.MemoryRef
	Label string // label or section name without the @ prefix
	Loc   source.Location
}

// Instruction is a parsed instruction statement body. The mnemonic keeps
// any .type suffix; Base and TypeSuffix split it.
type Instruction struct {
	Mnemonic   string
	Parameters []string
	Operands   []Operand
	Loc        source.Location
}

// Base returns the mnemonic without its type suffix.
func (i *Instruction) Base() string {
	if dot := strings.IndexByte(i.Mnemonic, '.'); dot >= 0 {
		return i.Mnemonic[:dot]
	}
	return i.Mnemonic
}

// TypeSuffix returns the .type suffix of the mnemonic, or "".
func (i *Instruction) TypeSuffix() string {
	if dot := strings.IndexByte(i.Mnemonic, '.'); dot >= 0 {
		return i.Mnemonic[dot+1:]
	}
	return ""
}

// Directive is a parsed directive statement body. Parameters carry any
// ^attribute names that appeared among the operands.
type Directive struct {
	Name       string
	Parameters []string
	Operands   []Operand
	Loc        source.Location
}

// StatementKind selects the variant of a Statement.
type StatementKind int

// Statement kinds.
const (
	StmtEmpty StatementKind = iota
	StmtLabelOnly
	StmtInstruction
	StmtDirective
)

// Statement is one source line. Label is the optional #name preceding the
// body ("" if absent); exactly one of Instruction and Directive is non-nil
// for the corresponding kinds.
type Statement struct {
	Kind        StatementKind
	Label       string
	Instruction *Instruction
	Directive   *Directive
	Loc         source.Location
}
