package parser

import (
	"fmt"

	"github.com/xplshn/cppillr/pkg/ast"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/keyword"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/token"
	"github.com/xplshn/cppillr/pkg/util"
)

// Result holds the functions found in one file. LexIndex is the index of the
// file's lex result in the program store.
type Result struct {
	Filename  string
	LexIndex  int
	Functions []*ast.Function
}

// Parser holds the state for the parsing process
type Parser struct {
	lex      *lexer.Result
	cfg      *config.Config
	lexIndex int
	end      int // tokens at or after end are never looked at
	pos      int
	current  token.Token
	previous token.Token
}

// bailout unwinds the recursive descent on the first error. It never escapes
// the package: Parse and ParseBody turn it back into an error.
type bailout struct{ err *util.ParseError }

func newParser(lex *lexer.Result, lexIndex int, cfg *config.Config, begin, end int) *Parser {
	if end > len(lex.Tokens) {
		end = len(lex.Tokens)
	}
	p := &Parser{lex: lex, cfg: cfg, lexIndex: lexIndex, end: end}
	p.goTo(begin)
	return p
}

// Parse runs the first phase over a whole file: it collects the function
// definitions at file scope, keeping each body as an unparsed token span.
// Parsing stops at the first top-level declaration that is not a function
// definition with a builtin return type.
func Parse(lex *lexer.Result, lexIndex int, cfg *config.Config) (*Result, error) {
	p := newParser(lex, lexIndex, cfg, 0, len(lex.Tokens))
	res := &Result{Filename: lex.Filename, LexIndex: lexIndex}
	if err := p.run(func() { res.Functions = p.declarationSequence() }); err != nil {
		return nil, err
	}
	return res, nil
}

// ParseBody runs the second phase for fn, whose body must come from lex. The
// resulting block is stored in the body; later calls return it unchanged.
func ParseBody(lex *lexer.Result, fn *ast.Function, cfg *config.Config) (*ast.Node, error) {
	return fn.Body.Parse(func() (*ast.Node, error) {
		p := newParser(lex, fn.Body.LexIndex, cfg, fn.Body.Begin, fn.Body.End)
		var block *ast.Node
		if err := p.run(func() { block = p.compoundStatement() }); err != nil {
			return nil, err
		}
		return block, nil
	})
}

func (p *Parser) run(parse func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = b.err
		}
	}()
	parse()
	return nil
}

func (p *Parser) fail(format string, args ...interface{}) {
	panic(bailout{&util.ParseError{
		File: p.lex.Filename,
		Pos:  p.current.Pos,
		Msg:  fmt.Sprintf(format, args...),
	}})
}

// Parser helpers

// goTo moves to the first significant token at or after index i. Comments and
// whole preprocessor lines are not significant.
func (p *Parser) goTo(i int) {
	toks := p.lex.Tokens
	for i < p.end {
		switch toks[i].Kind {
		case token.Comment:
			i++
			continue
		case token.PPBegin:
			for i < p.end && toks[i].Kind != token.PPEnd {
				i++
			}
			i++
			continue
		}
		break
	}
	p.pos = i
	if i < p.end {
		p.current = toks[i]
	} else {
		// Running off the span yields a position-less EOF
		p.current = token.Token{Kind: token.EOF}
	}
}

func (p *Parser) advance() {
	p.previous = p.current
	p.goTo(p.pos + 1)
}

func (p *Parser) check(kind token.Kind) bool { return p.current.Kind == kind }

func (p *Parser) checkPunct(ch byte) bool { return p.current.IsPunct(ch) }

func (p *Parser) matchPunct(ch byte) bool {
	if !p.checkPunct(ch) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(kind token.Kind, message string) token.Token {
	if !p.check(kind) {
		p.fail("%s, found %s", message, p.describe(p.current))
	}
	tok := p.current
	p.advance()
	return tok
}

func (p *Parser) expectPunct(ch byte) {
	if !p.matchPunct(ch) {
		p.fail("expecting '%c', found %s", ch, p.describe(p.current))
	}
}

func (p *Parser) isBuiltinType() bool {
	return p.check(token.Keyword) && keyword.IsBuiltinType(keyword.Keyword(p.current.I))
}

// describe names a token for diagnostics
func (p *Parser) describe(tok token.Token) string {
	switch tok.Kind {
	case token.Keyword:
		return fmt.Sprintf("keyword '%s'", tok.Spelling())
	case token.Punctuator:
		return fmt.Sprintf("'%s'", tok.Spelling())
	case token.EOF:
		return "end of file"
	}
	if tok.HasText() {
		return fmt.Sprintf("%s '%s'", tok.Kind, p.lex.Text(tok))
	}
	return tok.Kind.String()
}

// Phase 1

func (p *Parser) declarationSequence() []*ast.Function {
	var fns []*ast.Function
	for !p.check(token.EOF) {
		if !p.isBuiltinType() {
			util.Warn(p.cfg, config.WarnUnparsedDecl, p.lex.Filename, p.current.Pos,
				"declarations from %s on are not parsed", p.describe(p.current))
			break
		}
		fns = append(fns, p.functionDefinition())
	}
	return fns
}

func (p *Parser) functionDefinition() *ast.Function {
	fn := &ast.Function{ReturnType: keyword.Keyword(p.current.I)}
	p.advance()

	name := p.expect(token.Identifier, "expecting identifier for function")
	fn.Name = p.lex.Text(name)
	fn.Pos = name.Pos
	fn.Params = p.functionParams()
	fn.Body = p.fastBody()
	return fn
}

func (p *Parser) functionParams() []ast.Param {
	var params []ast.Param

	p.expectPunct('(')
	if p.matchPunct(')') {
		return params
	}
	for {
		if p.check(token.EOF) {
			p.fail("expecting ')' before end of file")
		}
		if !p.isBuiltinType() {
			p.fail("expecting ')' or type, found %s", p.describe(p.current))
		}
		param := ast.Param{Type: keyword.Keyword(p.current.I)}
		p.advance()
		for p.matchPunct('*') {
			param.Pointers++
		}
		if p.check(token.Identifier) {
			param.Name = p.lex.Text(p.current)
			p.advance()
		}
		params = append(params, param)

		if p.matchPunct(')') {
			return params
		}
		if !p.checkPunct(',') {
			if param.Name == "" {
				p.fail("expecting ',', ')', or param name after param type")
			}
			p.fail("expecting ',' or ')' after param name")
		}
		if param.Name == "" {
			p.fail("only the last parameter may omit its name")
		}
		p.advance()
	}
}

// fastBody records the token span of a function body without parsing it,
// matching braces by depth only.
func (p *Parser) fastBody() *ast.Body {
	if !p.checkPunct('{') {
		p.fail("expecting '{' to start the function body, found %s", p.describe(p.current))
	}
	begin := p.pos
	depth := 0
	for {
		p.advance()
		switch {
		case p.check(token.EOF):
			p.fail("expecting '}' before end of file")
		case p.checkPunct('{'):
			depth++
		case p.checkPunct('}'):
			if depth == 0 {
				end := p.pos + 1
				p.advance()
				return ast.NewBody(p.lexIndex, begin, end)
			}
			depth--
		}
	}
}

// Phase 2

func (p *Parser) compoundStatement() *ast.Node {
	pos := p.current.Pos
	if !p.checkPunct('{') {
		p.fail("expecting '{' to start a block")
	}
	p.advance()

	var stmts []*ast.Node
	for !p.check(token.EOF) {
		if p.matchPunct('}') {
			return ast.NewCompoundStmt(pos, stmts)
		}
		if s := p.statement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.fail("expecting '}' before end of file")
	return nil
}

// statement returns nil for the empty statement.
func (p *Parser) statement() *ast.Node {
	switch {
	case p.matchPunct(';'):
		return nil
	case p.checkPunct('{'):
		if !p.cfg.IsFeatureEnabled(config.FeatNestedBlocks) {
			p.fail("nested blocks are disabled (-Fnested-blocks)")
		}
		return p.compoundStatement()
	case p.check(token.Keyword):
		if p.current.IsKeyword(keyword.Return) {
			return p.returnStatement()
		}
		p.fail("not supported keyword %s", p.current.Spelling())
	}
	p.fail("expecting '}' or statement, found %s", p.describe(p.current))
	return nil
}

func (p *Parser) returnStatement() *ast.Node {
	pos := p.current.Pos
	p.advance()
	if p.check(token.EOF) {
		p.fail("expecting ';' or expression for return statement")
	}
	var expr *ast.Node
	if !p.checkPunct(';') {
		expr = p.expression()
	}
	if !p.matchPunct(';') {
		p.fail("expecting ';' after return statement, found %s", p.describe(p.current))
	}
	return ast.NewReturn(pos, expr)
}

func (p *Parser) expression() *ast.Node {
	return p.additiveExpression()
}

func (p *Parser) additiveExpression() *ast.Node {
	expr := p.multiplicativeExpression()
	for p.checkPunct('+') || p.checkPunct('-') {
		op := p.current
		p.advance()
		rhs := p.multiplicativeExpression()
		expr = ast.NewBinExpr(op.Pos, byte(op.I), expr, rhs)
	}
	return expr
}

func (p *Parser) multiplicativeExpression() *ast.Node {
	expr := p.primaryExpression()
	for p.checkPunct('*') || p.checkPunct('/') || p.checkPunct('%') {
		op := p.current
		p.advance()
		rhs := p.primaryExpression()
		expr = ast.NewBinExpr(op.Pos, byte(op.I), expr, rhs)
	}
	return expr
}

func (p *Parser) primaryExpression() *ast.Node {
	tok := p.current
	switch {
	case p.matchPunct('('):
		expr := p.expression()
		if !p.matchPunct(')') {
			p.fail("expected ')' to finish expression, found %s", p.describe(p.current))
		}
		return expr
	case tok.IsPunct('*'), tok.IsPunct('&'), tok.IsPunct('+'),
		tok.IsPunct('-'), tok.IsPunct('!'), tok.IsPunct('~'):
		p.advance()
		return ast.NewUnaryExpr(tok.Pos, byte(tok.I), p.primaryExpression())
	case p.check(token.NumericConstant):
		p.advance()
		return ast.NewLiteral(tok.Pos, p.lex.Text(tok))
	}
	if p.previous.Kind == token.Punctuator {
		p.fail("expecting expression after '%s', found %s", p.previous.Spelling(), p.describe(tok))
	}
	p.fail("expecting expression, found %s", p.describe(tok))
	return nil
}
