package lexer_test

import (
	"testing"

	"github.com/LowLevelTeam/casm/lexer"
	"github.com/LowLevelTeam/casm/source"
)

// Scans all tokens of src, dropping the trailing EOF.
func scanAll(t *testing.T, src string) []lexer.Token {
	t.Helper()
	lex := lexer.New(src, "test.casm")
	var toks []lexer.Token
	for {
		tok := lex.Next()
		if tok.Type == lexer.TokenEOF {
			return toks
		}
		toks = append(toks, tok)
		if len(toks) > 1000 {
			t.Fatal("lexer did not terminate")
		}
	}
}

func expectSingle(t *testing.T, src string, typ lexer.TokenType, text string) lexer.Token {
	t.Helper()
	toks := scanAll(t, src)
	if len(toks) != 1 {
		t.Fatalf("%q: expected 1 token, got %d: %v", src, len(toks), toks)
	}
	if toks[0].Type != typ {
		t.Fatalf("%q: expected %v, got %v", src, typ, toks[0])
	}
	if text != "" && toks[0].Text != text {
		t.Fatalf("%q: expected text %q, got %q", src, text, toks[0].Text)
	}
	return toks[0]
}

func TestTokenPrefixes(t *testing.T) {
	tests := []struct {
		src  string
		typ  lexer.TokenType
		text string
	}{
		{"#start", lexer.TokenLabel, "start"},
		{".section", lexer.TokenDirective, "section"},
		{".asciiz", lexer.TokenDirective, "asciiz"},
		{"%r12", lexer.TokenRegister, "r12"},
		{"@done", lexer.TokenLabelRef, "done"},
		{"^eq", lexer.TokenParameter, "eq"},
		{"^NOBITS", lexer.TokenParameter, "nobits"},
		{"; a comment", lexer.TokenComment, "; a comment"},
		{"mov", lexer.TokenInstruction, "mov"},
		{"MOV.I64", lexer.TokenInstruction, "mov.i64"},
		{",", lexer.TokenComma, ""},
	}
	for _, tc := range tests {
		expectSingle(t, tc.src, tc.typ, tc.text)
	}
}

func TestIntegerImmediates(t *testing.T) {
	tests := []struct {
		src  string
		want int64
		base source.NumberBase
	}{
		{"$id42", 42, source.BaseDecimal},
		{"$id-5", -5, source.BaseDecimal},
		{"$ix1F", 31, source.BaseHex},
		{"$ixdead", 0xdead, source.BaseHex},
		{"$ib101", 5, source.BaseBinary},
		{"$io17", 15, source.BaseOctal},
		{"$7", 7, source.BaseDecimal},
		{"$-3", -3, source.BaseDecimal},
		{"42", 42, source.BaseDecimal},
		{"0x1F", 31, source.BaseHex},
		{"-9", -9, source.BaseDecimal},
	}
	for _, tc := range tests {
		tok := expectSingle(t, tc.src, lexer.TokenImmediate, "")
		if tok.Imm.Format != source.FormatInteger {
			t.Errorf("%q: expected integer format, got %v", tc.src, tok.Imm.Format)
			continue
		}
		if tok.Imm.Int != tc.want {
			t.Errorf("%q: expected %d, got %d", tc.src, tc.want, tok.Imm.Int)
		}
		if tok.Imm.Base != tc.base {
			t.Errorf("%q: expected base %d, got %d", tc.src, tc.base, tok.Imm.Base)
		}
	}
}

func TestFloatImmediates(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"$fd3.5", 3.5},
		{"$fd-1.25", -1.25},
		{"$fd2", 2},
		{"$3.25", 3.25},
	}
	for _, tc := range tests {
		tok := expectSingle(t, tc.src, lexer.TokenImmediate, "")
		if tok.Imm.Format != source.FormatFloat {
			t.Errorf("%q: expected float format, got %v", tc.src, tok.Imm.Format)
			continue
		}
		if tok.Imm.Float != tc.want {
			t.Errorf("%q: expected %g, got %g", tc.src, tc.want, tok.Imm.Float)
		}
	}
}

func TestCharacterImmediates(t *testing.T) {
	tests := []struct {
		src  string
		want rune
	}{
		{"$'A'", 'A'},
		{"$'\\n'", '\n'},
		{"$'\\t'", '\t'},
		{"$'\\0'", 0},
		{"$'\\\\'", '\\'},
		{"$'\\''", '\''},
	}
	for _, tc := range tests {
		tok := expectSingle(t, tc.src, lexer.TokenImmediate, "")
		if tok.Imm.Format != source.FormatCharacter {
			t.Errorf("%q: expected character format, got %v", tc.src, tok.Imm.Format)
			continue
		}
		if tok.Imm.Char != tc.want {
			t.Errorf("%q: expected %q, got %q", tc.src, tc.want, tok.Imm.Char)
		}
	}
}

func TestStringImmediates(t *testing.T) {
	tests := []struct {
		src, want string
	}{
		{`$"Hi"`, "Hi"},
		{`$"a\tb"`, "a\tb"},
		{`$"quote \" here"`, `quote " here`},
		{`$""`, ""},
	}
	for _, tc := range tests {
		tok := expectSingle(t, tc.src, lexer.TokenImmediate, "")
		if tok.Imm.Format != source.FormatString {
			t.Errorf("%q: expected string format, got %v", tc.src, tok.Imm.Format)
			continue
		}
		if tok.Imm.Str != tc.want {
			t.Errorf("%q: expected %q, got %q", tc.src, tc.want, tok.Imm.Str)
		}
	}
}

func TestMemoryReferences(t *testing.T) {
	tests := []struct {
		src    string
		base   string
		offset int64
	}{
		{"[%r2]", "r2", 0},
		{"[%r2+8]", "r2", 8},
		{"[%r2-4]", "r2", -4},
		{"[ %r10 + 100 ]", "r10", 100},
	}
	for _, tc := range tests {
		tok := expectSingle(t, tc.src, lexer.TokenMemory, "")
		if tok.Mem.Base != tc.base || tok.Mem.Offset != tc.offset {
			t.Errorf("%q: expected %s%+d, got %s%+d", tc.src, tc.base, tc.offset, tok.Mem.Base, tok.Mem.Offset)
		}
	}
}

func TestSectionNameOperand(t *testing.T) {
	toks := scanAll(t, ".section .data")
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %v", toks)
	}
	if toks[0].Type != lexer.TokenDirective || toks[0].Text != "section" {
		t.Fatalf("expected section directive, got %v", toks[0])
	}
	if toks[1].Type != lexer.TokenLabelRef || toks[1].Text != ".data" {
		t.Fatalf("expected section name operand, got %v", toks[1])
	}
}

func TestErrors(t *testing.T) {
	tests := []string{
		"$ix",      // no digits
		`$"abc`,    // unterminated string
		"$'a",      // unterminated character
		".bogus",   // unknown directive
		"frobnicate", // unknown instruction
		"%rx",      // register name must be r<digits>
		"%",        // empty register
		"#",        // empty label
		"^wat",     // unknown parameter
		"[%r1",     // unterminated memory reference
		"[%r1*2]",  // malformed offset
		"$fx10",    // float immediates are decimal only
		"!",        // stray character
	}
	for _, src := range tests {
		toks := scanAll(t, src)
		if len(toks) == 0 || toks[0].Type != lexer.TokenError {
			t.Errorf("%q: expected an error token, got %v", src, toks)
		}
	}
}

func TestLexingContinuesAfterError(t *testing.T) {
	toks := scanAll(t, "! nop")
	if len(toks) != 2 {
		t.Fatalf("expected error then instruction, got %v", toks)
	}
	if toks[0].Type != lexer.TokenError || toks[1].Type != lexer.TokenInstruction {
		t.Fatalf("expected [error instruction], got %v", toks)
	}
}

func TestLineTracking(t *testing.T) {
	lex := lexer.New("nop\n  ret\n", "test.casm")
	first := lex.Next()
	if first.Loc.Line != 1 || first.Loc.Column != 1 {
		t.Errorf("nop at 1:1, got %v", first.Loc)
	}
	lex.Next() // EOL
	second := lex.Next()
	if second.Loc.Line != 2 || second.Loc.Column != 3 {
		t.Errorf("ret at 2:3, got %v", second.Loc)
	}
}

func TestPeek(t *testing.T) {
	lex := lexer.New("nop ret", "test.casm")
	if p := lex.Peek(); p.Type != lexer.TokenInstruction || p.Text != "nop" {
		t.Fatalf("peek: expected nop, got %v", p)
	}
	if n := lex.Next(); n.Text != "nop" {
		t.Fatalf("next after peek: expected nop, got %v", n)
	}
	if n := lex.Next(); n.Text != "ret" {
		t.Fatalf("expected ret, got %v", n)
	}
}
