package parser

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xplshn/cppillr/pkg/ast"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/keyword"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/token"
	"github.com/xplshn/cppillr/pkg/util"
)

func quietConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	return cfg
}

func lex(t *testing.T, src string) *lexer.Result {
	t.Helper()
	res, err := lexer.New("test.c", strings.NewReader(src), quietConfig()).Lex()
	require.NoError(t, err)
	return res
}

func parse(t *testing.T, src string) (*lexer.Result, *Result) {
	t.Helper()
	l := lex(t, src)
	res, err := Parse(l, 3, quietConfig())
	require.NoError(t, err)
	return l, res
}

func parseErr(t *testing.T, src string) *util.ParseError {
	t.Helper()
	_, err := Parse(lex(t, src), 0, quietConfig())
	var perr *util.ParseError
	require.True(t, errors.As(err, &perr), "expected a ParseError, got %v", err)
	return perr
}

func body(t *testing.T, src string) (*ast.Node, error) {
	t.Helper()
	l, res := parse(t, src)
	require.Len(t, res.Functions, 1)
	return ParseBody(l, res.Functions[0], quietConfig())
}

func TestParseFunctions(t *testing.T) {
	src := `#include <stdio.h>
// entry point
int main(int argc, char** argv) {
  { nested(); }
  return 0;
}
void helper(void) {}
unsigned f(int a, double) { return 1; }
`
	l, res := parse(t, src)
	assert.Equal(t, "test.c", res.Filename)
	assert.Equal(t, 3, res.LexIndex)
	require.Len(t, res.Functions, 3)

	main := res.Functions[0]
	assert.Equal(t, keyword.Int, main.ReturnType)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, token.Pos{Line: 3, Col: 5}, main.Pos)
	assert.Equal(t, []ast.Param{
		{Type: keyword.Int, Name: "argc"},
		{Type: keyword.Char, Name: "argv", Pointers: 2},
	}, main.Params)
	assert.Equal(t, "int main(int argc, char** argv)", main.Signature())

	// The span covers the braces and nothing else
	b := main.Body
	assert.Equal(t, 3, b.LexIndex)
	assert.True(t, l.Tokens[b.Begin].IsPunct('{'))
	assert.True(t, l.Tokens[b.End-1].IsPunct('}'))
	assert.True(t, l.Tokens[b.End].IsKeyword(keyword.Void))
	assert.Nil(t, b.Block())

	assert.Equal(t, []ast.Param{{Type: keyword.Void}}, res.Functions[1].Params)
	assert.Equal(t, keyword.Unsigned, res.Functions[2].ReturnType)
	assert.Equal(t, []ast.Param{{Type: keyword.Int, Name: "a"}, {Type: keyword.Double}}, res.Functions[2].Params)
}

func TestParseStopsAtUnsupportedDeclaration(t *testing.T) {
	_, res := parse(t, "int a() {}\nstruct S { int x; };\nint b() {}\n")
	require.Len(t, res.Functions, 1)
	assert.Equal(t, "a", res.Functions[0].Name)

	_, res = parse(t, "")
	assert.Empty(t, res.Functions)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		pos  token.Pos
	}{
		{"missing name", "int (void) {}", "expecting identifier for function", token.Pos{Line: 1, Col: 5}},
		{"missing paren", "int f {}", "expecting '('", token.Pos{Line: 1, Col: 7}},
		{"unclosed body", "int f() { {", "expecting '}' before end of file", token.Pos{Line: 1, Col: 12}},
		{"unclosed params", "int f(int a,", "expecting ')' before end of file", token.Pos{Line: 1, Col: 13}},
		{"bad param type", "int f(S s) {}", "expecting ')' or type", token.Pos{Line: 1, Col: 7}},
		{"unnamed middle param", "int f(int, int b) {}", "only the last parameter may omit its name", token.Pos{Line: 1, Col: 10}},
		{"garbage after param", "int f(int a b) {}", "expecting ',' or ')' after param name", token.Pos{Line: 1, Col: 13}},
		{"no body", "int f();", "expecting '{' to start the function body", token.Pos{Line: 1, Col: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := parseErr(t, tt.src)
			assert.Contains(t, perr.Msg, tt.msg)
			assert.Equal(t, tt.pos, perr.Pos)
			assert.Equal(t, "test.c", perr.File)
		})
	}
}

func TestParseBody(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"int main() { return 2+3; }", "{ (return (+ 2 3)) }"},
		{"int main() { return 1+2*3; }", "{ (return (+ 1 (* 2 3))) }"},
		{"int main() { return 10-4-3; }", "{ (return (- (- 10 4) 3)) }"},
		{"int main() { return (1+2)*(3+3); }", "{ (return (* (+ 1 2) (+ 3 3))) }"},
		{"int main() { return -~!0; }", "{ (return (- (~ (! 0)))) }"},
		{"int main() { return *&+7; }", "{ (return (* (& (+ 7)))) }"},
		{"int main() { ;; return; }", "{ (return) }"},
		{"int main() { }", "{ }"},
		{"int main() { /* c */ return 0x1F; // x\n }", "{ (return 0x1F) }"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			block, err := body(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, ast.CompoundStmt, block.Type)
			assert.Equal(t, tt.want, block.String())
		})
	}
}

func TestParseBodyErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"int main() { if; }", "not supported keyword if"},
		{"int main() { x = 1; }", "expecting '}' or statement"},
		{"int main() { return 1 }", "expecting ';' after return statement"},
		{"int main() { return 1 +; }", "expecting expression after '+'"},
		{"int main() { return (1; }", "expected ')' to finish expression"},
		{"int main() { return x; }", "expecting expression, found Identifier 'x'"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := body(t, tt.src)
			var perr *util.ParseError
			require.True(t, errors.As(err, &perr), "expected a ParseError, got %v", err)
			assert.Contains(t, perr.Msg, tt.msg)
		})
	}
}

func TestParseBodyRejectsNestedBlocksByDefault(t *testing.T) {
	l, res := parse(t, "int main(){ { return 1; } }")
	_, err := ParseBody(l, res.Functions[0], config.NewConfig())
	var perr *util.ParseError
	require.True(t, errors.As(err, &perr), "expected a ParseError, got %v", err)
	assert.Contains(t, perr.Msg, "nested blocks are disabled")
	assert.Equal(t, token.Pos{Line: 1, Col: 13}, perr.Pos)
	assert.Nil(t, res.Functions[0].Body.Block())
}

func TestParseBodyNestedBlocksEnabled(t *testing.T) {
	cfg := quietConfig()
	cfg.SetFeature(config.FeatNestedBlocks, true)
	l, res := parse(t, "int main() { { return 4; } return 5; }")
	block, err := ParseBody(l, res.Functions[0], cfg)
	require.NoError(t, err)
	assert.Equal(t, "{ { (return 4) } (return 5) }", block.String())
}

func TestParseBodyIdempotent(t *testing.T) {
	l, res := parse(t, "int main() { return 7; }")
	fn := res.Functions[0]

	var wg sync.WaitGroup
	blocks := make([]*ast.Node, 8)
	for i := range blocks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := ParseBody(l, fn, quietConfig())
			assert.NoError(t, err)
			blocks[i] = b
		}(i)
	}
	wg.Wait()
	for _, b := range blocks {
		assert.Same(t, blocks[0], b)
	}
	assert.Same(t, blocks[0], fn.Body.Block())
}

func TestParseBodyErrorLeavesBodyUnparsed(t *testing.T) {
	l, res := parse(t, "int main() { while; }")
	fn := res.Functions[0]
	_, err := ParseBody(l, fn, quietConfig())
	require.Error(t, err)
	assert.Nil(t, fn.Body.Block())
}
