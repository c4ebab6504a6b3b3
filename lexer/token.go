// Package lexer turns CASM source text into a token stream.
package lexer

import (
	"fmt"

	"github.com/LowLevelTeam/casm/source"
)

// TokenType identifies a lexical class.
type TokenType int

// Token types.
const (
	TokenError TokenType = iota
	TokenLabel
	TokenInstruction
	TokenDirective
	TokenRegister
	TokenImmediate
	TokenMemory
	TokenLabelRef
	TokenParameter
	TokenComma
	TokenComment
	TokenEOL
	TokenEOF
)

var tokenTypeNames = [...]string{
	"error", "label", "instruction", "directive", "register", "immediate",
	"memory", "label-ref", "parameter", "comma", "comment", "end-of-line",
	"end-of-file",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "unknown"
}

// Token is one lexical element. Text holds the name, mnemonic or message
// depending on the type; Imm and Mem are populated for immediate and memory
// tokens respectively.
type Token struct {
	Type TokenType
	Text string
	Imm  source.Immediate
	Mem  source.MemoryRef
	Loc  source.Location
}

func (t Token) String() string {
	if t.Text == "" {
		return t.Type.String()
	}
	return fmt.Sprintf("%s(%s)", t.Type, t.Text)
}
