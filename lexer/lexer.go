package lexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LowLevelTeam/casm/coil"
	"github.com/LowLevelTeam/casm/source"
)

// Directives is the closed set of directive names.
var Directives = map[string]bool{
	"section": true,
	"global":  true,
	"i8":      true,
	"i16":     true,
	"i32":     true,
	"i64":     true,
	"u8":      true,
	"u16":     true,
	"u32":     true,
	"u64":     true,
	"f32":     true,
	"f64":     true,
	"ascii":   true,
	"asciiz":  true,
	"zero":    true,
	"align":   true,
	"byte":    true,
}

// Parameters is the closed set of ^name parameters: condition codes,
// section attributes and value-type names.
var Parameters = map[string]bool{
	"eq": true, "neq": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"progbits": true, "nobits": true, "symtab": true, "strtab": true,
	"write": true, "code": true, "alloc": true, "merge": true, "tls": true,
	"i8": true, "i16": true, "i32": true, "i64": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"f32": true, "f64": true,
}

// Lexer scans CASM source left to right in a single pass. A one-token peek
// is supported through a single-element buffer; the cursor never moves
// backwards.
type Lexer struct {
	src      string
	filename string
	pos      int
	line     int
	col      int

	peeked *Token

	// afterSection is set while the token following a section directive is
	// scanned, so its .name operand is not mistaken for a directive.
	afterSection bool
}

// New creates a lexer over src. The filename is only used for locations.
func New(src, filename string) *Lexer {
	return &Lexer{src: src, filename: filename, line: 1, col: 1}
}

// Next returns the next token, consuming it.
func (l *Lexer) Next() Token {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t
	}
	return l.scan()
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	if l.peeked == nil {
		t := l.scan()
		l.peeked = &t
	}
	return *l.peeked
}

func (l *Lexer) loc() source.Location {
	return source.Location{Filename: l.filename, Line: l.line, Column: l.col}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) cur() byte {
	return l.src[l.pos]
}

// advance moves the cursor one byte forward, tracking line and column.
func (l *Lexer) advance() {
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) scan() Token {
	t := l.scanToken()
	if t.Type == TokenDirective && t.Text == "section" {
		l.afterSection = true
	} else if t.Type != TokenComment {
		l.afterSection = false
	}
	return t
}

func (l *Lexer) scanToken() Token {
	for !l.eof() && (l.cur() == ' ' || l.cur() == '\t' || l.cur() == '\r') {
		l.advance()
	}
	loc := l.loc()
	if l.eof() {
		return Token{Type: TokenEOF, Loc: loc}
	}

	c := l.cur()
	switch {
	case c == '\n':
		l.advance()
		return Token{Type: TokenEOL, Loc: loc}

	case c == ';':
		start := l.pos
		for !l.eof() && l.cur() != '\n' {
			l.advance()
		}
		return Token{Type: TokenComment, Text: l.src[start:l.pos], Loc: loc}

	case c == ',':
		l.advance()
		return Token{Type: TokenComma, Loc: loc}

	case c == '#':
		l.advance()
		name := l.scanName()
		if name == "" {
			return l.errorToken(loc, "empty label name")
		}
		return Token{Type: TokenLabel, Text: name, Loc: loc}

	case c == '.':
		l.advance()
		name := l.scanName()
		if name == "" {
			return l.errorToken(loc, "empty directive name")
		}
		lower := strings.ToLower(name)
		if l.afterSection {
			// Operand position of a section directive: a section name.
			return Token{Type: TokenLabelRef, Text: "." + name, Loc: loc}
		}
		if !Directives[lower] {
			return l.errorToken(loc, "unknown directive: .%s", name)
		}
		return Token{Type: TokenDirective, Text: lower, Loc: loc}

	case c == '%':
		l.advance()
		name := l.scanName()
		if name == "" {
			return l.errorToken(loc, "empty register name")
		}
		if !isRegisterName(name) {
			return l.errorToken(loc, "invalid register name: %%%s", name)
		}
		return Token{Type: TokenRegister, Text: name, Loc: loc}

	case c == '@':
		l.advance()
		name := l.scanName()
		if name == "" {
			return l.errorToken(loc, "empty label reference")
		}
		return Token{Type: TokenLabelRef, Text: name, Loc: loc}

	case c == '^':
		l.advance()
		name := l.scanName()
		if name == "" {
			return l.errorToken(loc, "empty parameter name")
		}
		lower := strings.ToLower(name)
		if !Parameters[lower] {
			return l.errorToken(loc, "unknown parameter: ^%s", name)
		}
		return Token{Type: TokenParameter, Text: lower, Loc: loc}

	case c == '$':
		return l.scanImmediate(loc)

	case c == '[':
		return l.scanMemory(loc)

	case isNameStart(c):
		return l.scanInstruction(loc)

	case c >= '0' && c <= '9', c == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]):
		// Bare numeric literal, accepted as an immediate fallback.
		return l.scanRawNumber(loc)
	}

	l.advance()
	return l.errorToken(loc, "unexpected character %q", rune(c))
}

func (l *Lexer) errorToken(loc source.Location, format string, args ...any) Token {
	return Token{Type: TokenError, Text: fmt.Sprintf(format, args...), Loc: loc}
}

// scanName consumes [A-Za-z_][A-Za-z0-9_]* and returns it, or "" if the
// cursor is not at a name.
func (l *Lexer) scanName() string {
	if l.eof() || !isNameStart(l.cur()) {
		return ""
	}
	start := l.pos
	for !l.eof() && isNameChar(l.cur()) {
		l.advance()
	}
	return l.src[start:l.pos]
}

// scanInstruction reads a mnemonic, including an optional .type suffix
// which is kept as part of the mnemonic text.
func (l *Lexer) scanInstruction(loc source.Location) Token {
	name := l.scanName()
	lower := strings.ToLower(name)
	if _, ok := coil.Mnemonics[lower]; !ok {
		return l.errorToken(loc, "unknown instruction: %s", name)
	}
	if !l.eof() && l.cur() == '.' {
		l.advance()
		suffix := strings.ToLower(l.scanName())
		if _, ok := coil.ValueTypes[suffix]; !ok {
			return l.errorToken(loc, "invalid type suffix on %s: .%s", name, suffix)
		}
		lower += "." + suffix
	}
	return Token{Type: TokenInstruction, Text: lower, Loc: loc}
}

// scanImmediate handles all $-prefixed literal forms.
func (l *Lexer) scanImmediate(loc source.Location) Token {
	l.advance() // consume $
	if l.eof() {
		return l.errorToken(loc, "malformed immediate: missing value")
	}

	switch l.cur() {
	case '\'':
		return l.scanCharLiteral(loc)
	case '"':
		return l.scanStringLiteral(loc)
	}

	// Format-prefixed number: $Xb... where X selects integer or float and b
	// the base. Floats accept only the decimal base.
	if c := l.cur(); (c == 'i' || c == 'f') && l.pos+1 < len(l.src) {
		if base, ok := baseFor(l.src[l.pos+1]); ok {
			isFloat := c == 'f'
			if isFloat && base != source.BaseDecimal {
				return l.errorToken(loc, "float immediates accept only the decimal base")
			}
			l.advance()
			l.advance()
			return l.scanNumberBody(loc, base, isFloat)
		}
	}

	// Raw fallback: decimal, float when a '.' appears.
	return l.scanNumberBody(loc, source.BaseDecimal, false)
}

func baseFor(c byte) (source.NumberBase, bool) {
	switch c {
	case 'd':
		return source.BaseDecimal, true
	case 'x':
		return source.BaseHex, true
	case 'b':
		return source.BaseBinary, true
	case 'o':
		return source.BaseOctal, true
	}
	return 0, false
}

// scanNumberBody reads the digits of a numeric literal in the given base.
// A leading '-' is permitted. In decimal, a '.' switches to float parsing.
func (l *Lexer) scanNumberBody(loc source.Location, base source.NumberBase, wantFloat bool) Token {
	start := l.pos
	if !l.eof() && l.cur() == '-' {
		l.advance()
	}
	digits := 0
	isFloat := wantFloat
	sawDot := false
	for !l.eof() {
		c := l.cur()
		if isBaseDigit(c, base) {
			digits++
			l.advance()
			continue
		}
		if c == '.' && base == source.BaseDecimal && !sawDot {
			sawDot = true
			isFloat = true
			l.advance()
			continue
		}
		break
	}
	body := l.src[start:l.pos]
	if digits == 0 {
		return l.errorToken(loc, "malformed immediate: no digits")
	}
	if isFloat || wantFloat {
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return l.errorToken(loc, "malformed float immediate: %s", body)
		}
		return Token{Type: TokenImmediate, Text: body, Imm: source.Float(f), Loc: loc}
	}
	n, err := strconv.ParseInt(body, int(base), 64)
	if err != nil {
		return l.errorToken(loc, "malformed integer immediate: %s", body)
	}
	return Token{Type: TokenImmediate, Text: body, Imm: source.Integer(n, base), Loc: loc}
}

// scanRawNumber handles a bare literal with no $ prefix: decimal, 0x-hex,
// or float when a '.' appears.
func (l *Lexer) scanRawNumber(loc source.Location) Token {
	start := l.pos
	if l.cur() == '-' {
		l.advance()
	}
	if l.pos+1 < len(l.src) && l.cur() == '0' && (l.src[l.pos+1] == 'x' || l.src[l.pos+1] == 'X') {
		l.advance()
		l.advance()
		digits := 0
		for !l.eof() && isBaseDigit(l.cur(), source.BaseHex) {
			digits++
			l.advance()
		}
		body := l.src[start:l.pos]
		if digits == 0 {
			return l.errorToken(loc, "malformed integer immediate: %s", body)
		}
		neg := body[0] == '-'
		hex := strings.TrimPrefix(strings.TrimPrefix(body, "-"), "0x")
		hex = strings.TrimPrefix(hex, "0X")
		n, err := strconv.ParseInt(hex, 16, 64)
		if err != nil {
			return l.errorToken(loc, "malformed integer immediate: %s", body)
		}
		if neg {
			n = -n
		}
		return Token{Type: TokenImmediate, Text: body, Imm: source.Integer(n, source.BaseHex), Loc: loc}
	}
	// The sign was consumed above; apply it to the decimal body.
	tok := l.scanNumberBody(loc, source.BaseDecimal, false)
	if tok.Type == TokenImmediate && l.src[start] == '-' {
		tok.Text = "-" + tok.Text
		if tok.Imm.Format == source.FormatFloat {
			tok.Imm.Float = -tok.Imm.Float
		} else {
			tok.Imm.Int = -tok.Imm.Int
		}
	}
	return tok
}

// scanCharLiteral parses $'c' with the escape set \n \t \r \0 \\ \' \".
func (l *Lexer) scanCharLiteral(loc source.Location) Token {
	l.advance() // consume opening quote
	if l.eof() || l.cur() == '\n' {
		return l.errorToken(loc, "unterminated character literal")
	}
	var c rune
	if l.cur() == '\\' {
		l.advance()
		if l.eof() || l.cur() == '\n' {
			return l.errorToken(loc, "unterminated character literal")
		}
		esc, ok := unescape(l.cur())
		if !ok {
			return l.errorToken(loc, "invalid escape sequence: \\%c", l.cur())
		}
		c = esc
		l.advance()
	} else {
		c = rune(l.cur())
		l.advance()
	}
	if l.eof() || l.cur() != '\'' {
		return l.errorToken(loc, "unterminated character literal")
	}
	l.advance()
	return Token{Type: TokenImmediate, Imm: source.Character(c), Loc: loc}
}

// scanStringLiteral parses $"..." with the same escape set as characters.
func (l *Lexer) scanStringLiteral(loc source.Location) Token {
	l.advance() // consume opening quote
	var sb strings.Builder
	for {
		if l.eof() || l.cur() == '\n' {
			return l.errorToken(loc, "unterminated string literal")
		}
		c := l.cur()
		if c == '"' {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			if l.eof() || l.cur() == '\n' {
				return l.errorToken(loc, "unterminated string literal")
			}
			esc, ok := unescape(l.cur())
			if !ok {
				return l.errorToken(loc, "invalid escape sequence: \\%c", l.cur())
			}
			sb.WriteRune(esc)
			l.advance()
			continue
		}
		sb.WriteByte(c)
		l.advance()
	}
	s := sb.String()
	return Token{Type: TokenImmediate, Text: s, Imm: source.String(s), Loc: loc}
}

// scanMemory parses [%reg], [%reg+N] and [%reg-N]. Brackets are counted
// only to find the close; nesting is not supported.
func (l *Lexer) scanMemory(loc source.Location) Token {
	l.advance() // consume [
	start := l.pos
	for !l.eof() && l.cur() != ']' && l.cur() != '\n' {
		l.advance()
	}
	if l.eof() || l.cur() != ']' {
		return l.errorToken(loc, "unterminated memory reference")
	}
	inner := strings.TrimSpace(l.src[start:l.pos])
	l.advance() // consume ]

	if !strings.HasPrefix(inner, "%") {
		return l.errorToken(loc, "memory reference must start with a register: [%s]", inner)
	}
	rest := inner[1:]
	end := 0
	for end < len(rest) && isNameChar(rest[end]) {
		end++
	}
	reg := rest[:end]
	if !isRegisterName(reg) {
		return l.errorToken(loc, "invalid register in memory reference: %%%s", reg)
	}
	rest = strings.TrimSpace(rest[end:])

	var offset int64
	if rest != "" {
		sign := rest[0]
		if sign != '+' && sign != '-' {
			return l.errorToken(loc, "malformed memory offset: [%s]", inner)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(rest[1:]), 10, 64)
		if err != nil {
			return l.errorToken(loc, "malformed memory offset: [%s]", inner)
		}
		offset = n
		if sign == '-' {
			offset = -n
		}
	}
	return Token{Type: TokenMemory, Text: inner, Mem: source.MemoryRef{Base: reg, Offset: offset}, Loc: loc}
}

func unescape(c byte) (rune, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	}
	return 0, false
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isRegisterName(name string) bool {
	if len(name) < 2 || name[0] != 'r' {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isDigit(name[i]) {
			return false
		}
	}
	return true
}

func isBaseDigit(c byte, base source.NumberBase) bool {
	switch base {
	case source.BaseDecimal:
		return isDigit(c)
	case source.BaseHex:
		return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	case source.BaseBinary:
		return c == '0' || c == '1'
	case source.BaseOctal:
		return c >= '0' && c <= '7'
	}
	return false
}
