package parser

import (
	"github.com/LowLevelTeam/casm/lexer"
	"github.com/LowLevelTeam/casm/source"
)

// Parser consumes tokens line by line. Parsing always completes; problems
// are collected as diagnostics and the parser resumes at the next line.
type Parser struct {
	lex   *lexer.Lexer
	diags []source.Diagnostic
}

// New creates a parser over a lexer.
func New(lex *lexer.Lexer) *Parser {
	return &Parser{lex: lex}
}

// Parse reads the whole token stream and returns the statement list and
// any diagnostics.
func Parse(src, filename string) ([]Statement, []source.Diagnostic) {
	p := New(lexer.New(src, filename))
	return p.ParseAll()
}

// ParseAll parses statements until end of file.
func (p *Parser) ParseAll() ([]Statement, []source.Diagnostic) {
	var stmts []Statement
	for {
		stmt, last := p.parseStatement()
		stmts = append(stmts, stmt)
		if last {
			break
		}
	}
	return stmts, p.diags
}

// next returns the next token, skipping comments.
func (p *Parser) next() lexer.Token {
	for {
		t := p.lex.Next()
		if t.Type != lexer.TokenComment {
			return t
		}
	}
}

// peek returns the next non-comment token without consuming it.
func (p *Parser) peek() lexer.Token {
	for {
		t := p.lex.Peek()
		if t.Type != lexer.TokenComment {
			return t
		}
		p.lex.Next()
	}
}

func (p *Parser) errorf(code uint32, loc source.Location, format string, args ...any) {
	p.diags = append(p.diags, source.Errorf(code, loc, format, args...))
}

// skipToEOL discards tokens up to and including the next end of line.
func (p *Parser) skipToEOL() bool {
	for {
		t := p.next()
		switch t.Type {
		case lexer.TokenEOL:
			return false
		case lexer.TokenEOF:
			return true
		}
	}
}

// parseStatement parses one line. The second result is true when the end
// of file was reached.
func (p *Parser) parseStatement() (Statement, bool) {
	t := p.next()
	stmt := Statement{Kind: StmtEmpty, Loc: t.Loc}

	// Lexical errors surface here; report and resynchronize.
	if t.Type == lexer.TokenError {
		p.errorf(source.CodeSyntaxError, t.Loc, "%s", t.Text)
		return stmt, p.skipToEOL()
	}

	switch t.Type {
	case lexer.TokenEOF:
		return stmt, true
	case lexer.TokenEOL:
		return stmt, false
	}

	if t.Type == lexer.TokenLabel {
		stmt.Label = t.Text
		stmt.Kind = StmtLabelOnly
		t = p.next()
		switch t.Type {
		case lexer.TokenEOF:
			return stmt, true
		case lexer.TokenEOL:
			return stmt, false
		case lexer.TokenError:
			p.errorf(source.CodeSyntaxError, t.Loc, "%s", t.Text)
			return stmt, p.skipToEOL()
		}
	}

	switch t.Type {
	case lexer.TokenInstruction:
		inst, eof, ok := p.parseInstruction(t)
		if !ok {
			stmt.Kind = StmtEmpty
			stmt.Label = ""
			return stmt, eof
		}
		stmt.Kind = StmtInstruction
		stmt.Instruction = inst
		return stmt, eof

	case lexer.TokenDirective:
		dir, eof, ok := p.parseDirective(t)
		if !ok {
			stmt.Kind = StmtEmpty
			stmt.Label = ""
			return stmt, eof
		}
		stmt.Kind = StmtDirective
		stmt.Directive = dir
		return stmt, eof
	}

	p.errorf(source.CodeUnexpectedToken, t.Loc, "unexpected %s at start of statement", t.Type)
	stmt.Kind = StmtEmpty
	stmt.Label = ""
	return stmt, p.skipToEOL()
}

// parseInstruction parses parameters and operands after a mnemonic token.
func (p *Parser) parseInstruction(mn lexer.Token) (*Instruction, bool, bool) {
	inst := &Instruction{Mnemonic: mn.Text, Loc: mn.Loc}

	// Parameters are consumed greedily between the mnemonic and the first
	// operand.
	for p.peek().Type == lexer.TokenParameter {
		t := p.next()
		inst.Parameters = append(inst.Parameters, t.Text)
	}

	ops, eof, ok := p.parseOperands()
	if !ok {
		return nil, eof, false
	}
	inst.Operands = ops
	return inst, eof, true
}

// parseDirective parses the operand list after a directive token.
// ^attribute parameters may be mixed into the list; they are collected
// separately.
func (p *Parser) parseDirective(d lexer.Token) (*Directive, bool, bool) {
	dir := &Directive{Name: d.Text, Loc: d.Loc}

	for {
		t := p.peek()
		switch t.Type {
		case lexer.TokenEOL:
			p.next()
			return dir, false, true
		case lexer.TokenEOF:
			p.next()
			return dir, true, true
		case lexer.TokenComma:
			p.next()
			continue
		case lexer.TokenParameter:
			p.next()
			dir.Parameters = append(dir.Parameters, t.Text)
			continue
		case lexer.TokenError:
			p.next()
			p.errorf(source.CodeSyntaxError, t.Loc, "%s", t.Text)
			return nil, p.skipToEOL(), false
		}

		op, ok := p.operandFrom(p.next())
		if !ok {
			return nil, p.skipToEOL(), false
		}
		dir.Operands = append(dir.Operands, op)
	}
}

// parseOperands parses a comma-separated operand list up to end of line.
func (p *Parser) parseOperands() ([]Operand, bool, bool) {
	var ops []Operand
	first := true
	for {
		t := p.next()
		switch t.Type {
		case lexer.TokenEOL:
			return ops, false, true
		case lexer.TokenEOF:
			return ops, true, true
		case lexer.TokenError:
			p.errorf(source.CodeSyntaxError, t.Loc, "%s", t.Text)
			return nil, p.skipToEOL(), false
		}

		if !first {
			if t.Type != lexer.TokenComma {
				p.errorf(source.CodeUnexpectedToken, t.Loc, "expected comma between operands, got %s", t.Type)
				return nil, p.skipToEOL(), false
			}
			t = p.next()
			if t.Type == lexer.TokenEOL || t.Type == lexer.TokenEOF {
				p.errorf(source.CodeMissingOperand, t.Loc, "expected operand after comma")
				return nil, t.Type == lexer.TokenEOF, false
			}
		}

		op, ok := p.operandFrom(t)
		if !ok {
			return nil, p.skipToEOL(), false
		}
		ops = append(ops, op)
		first = false
	}
}

// operandFrom converts an operand token. Reports a diagnostic and returns
// false for anything that is not an operand.
func (p *Parser) operandFrom(t lexer.Token) (Operand, bool) {
	op := Operand{Loc: t.Loc}
	switch t.Type {
	case lexer.TokenRegister:
		op.Kind = OperandRegister
		op.Reg = t.Text
	case lexer.TokenImmediate:
		op.Kind = OperandImmediate
		op.Imm = t.Imm
	case lexer.TokenMemory:
		op.Kind = OperandMemory
		op.Mem = t.Mem
	case lexer.TokenLabelRef:
		op.Kind = OperandLabel
		op.Label = t.Text
	case lexer.TokenError:
		p.errorf(source.CodeSyntaxError, t.Loc, "%s", t.Text)
		return op, false
	default:
		p.errorf(source.CodeUnexpectedToken, t.Loc, "expected operand, got %s", t.Type)
		return op, false
	}
	return op, true
}
