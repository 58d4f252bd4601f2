package eval

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xplshn/cppillr/pkg/ast"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/parser"
	"github.com/xplshn/cppillr/pkg/program"
	"github.com/xplshn/cppillr/pkg/token"
	"github.com/xplshn/cppillr/pkg/util"
)

func quietConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	return cfg
}

// build lexes and parses every source into a fresh store, the way the
// pipeline would.
func build(t *testing.T, cfg *config.Config, files map[string]string) *program.Store {
	t.Helper()
	store := program.NewStore()
	for name, src := range files {
		l, err := lexer.New(name, strings.NewReader(src), cfg).Lex()
		require.NoError(t, err)
		i := store.AddLex(l)
		c, err := store.Lex(i)
		require.NoError(t, err)
		res, err := parser.Parse(c, i, cfg)
		require.NoError(t, err)
		store.AddParse(res)
	}
	return store
}

func run(t *testing.T, cfg *config.Config, src string) (int, error) {
	t.Helper()
	return Run(build(t, cfg, map[string]string{"main.c": src}), cfg)
}

func TestRunEndToEnd(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"int main() { return 2+3; }", 5},
		{"int main() { return 10-4-3; }", 3},
		{"int main() { return (1+2)*(3+3); }", 18},
		{"int main() { return 1+2*3; }", 7},
		{"int main() { return 17%5; }", 2},
		{"int main() { return 7/2; }", 3},
		{"int main() { return -7/2+5; }", 2},
		{"int main() { return -(-4); }", 4},
		{"int main() { return !0+!5; }", 1},
		{"int main() { return ~-3; }", 2},
		{"int main() { return +*&9; }", 9},
		{"int main() { return 0x10 + 010; }", 24},
		{"int main() { return 0b101; }", 5},
		{"int main() { return 2.9f + .5; }", 2},
		{"int main() { return; }", 0},
		{"int main() { }", 0},
		{"int main() { return 1; return 2; }", 1},
		{"int helper() { return 9; }\nint main(int argc, char** argv) { return 3; }", 3},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := run(t, quietConfig(), tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunNestedBlocks(t *testing.T) {
	_, err := run(t, quietConfig(), "int main(){ { return 1; } }")
	var perr *util.ParseError
	require.True(t, errors.As(err, &perr), "expected a ParseError, got %v", err)
	assert.Contains(t, perr.Msg, "nested blocks are disabled")

	cfg := quietConfig()
	cfg.SetFeature(config.FeatNestedBlocks, true)
	for src, want := range map[string]int{
		"int main() { { return 4; } return 5; }": 4,
		"int main() { { } ; return 6; }":         6,
	} {
		got, err := run(t, cfg, src)
		require.NoError(t, err, src)
		assert.Equal(t, want, got, src)
	}
}

func TestRunParsesBodyOnce(t *testing.T) {
	cfg := quietConfig()
	store := build(t, cfg, map[string]string{"a.c": "int main() { return 5; }"})
	fn := store.ParseResults()[0].Functions[0]
	require.Nil(t, fn.Body.Block())

	got, err := Run(store, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	block := fn.Body.Block()
	require.NotNil(t, block)

	got, err = Run(store, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Same(t, block, fn.Body.Block())
}

func TestRunNoMain(t *testing.T) {
	status, err := run(t, quietConfig(), "int f() { return 1; }")
	assert.NotZero(t, status)
	assert.True(t, errors.Is(err, util.ErrNoMain))

	status, err = Run(program.NewStore(), quietConfig())
	assert.NotZero(t, status)
	assert.True(t, errors.Is(err, util.ErrNoMain))
}

func TestRunMultipleMain(t *testing.T) {
	cfg := quietConfig()
	store := build(t, cfg, map[string]string{
		"b.c": "int main() { return 1; }",
		"a.c": "\nint main() { return 2; }",
	})
	status, err := Run(store, cfg)
	assert.NotZero(t, status)

	var everr *util.EvaluatorError
	require.True(t, errors.As(err, &everr))
	assert.Equal(t, util.ErrMultipleMain, everr.Kind)
	assert.Equal(t, []util.Location{
		{File: "a.c", Pos: token.Pos{Line: 2, Col: 5}},
		{File: "b.c", Pos: token.Pos{Line: 1, Col: 5}},
	}, everr.Locations)
	assert.Contains(t, err.Error(), "a.c:2:5")

	// Nothing was executed
	for _, res := range store.ParseResults() {
		assert.Nil(t, res.Functions[0].Body.Block())
	}
}

func TestRunDivisionByZero(t *testing.T) {
	for _, src := range []string{
		"int main() { return 1/0; }",
		"int main() { return 5%(2-2); }",
	} {
		status, err := run(t, quietConfig(), src)
		assert.NotZero(t, status)
		var everr *util.EvaluatorError
		require.True(t, errors.As(err, &everr), src)
		assert.True(t, errors.Is(err, util.ErrDivisionByZero))
		require.Len(t, everr.Locations, 1)
		assert.Equal(t, "main.c", everr.Locations[0].File)
	}
}

func TestRunParseError(t *testing.T) {
	status, err := run(t, quietConfig(), "int main() { while (1); }")
	assert.NotZero(t, status)
	var perr *util.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestLiteralValue(t *testing.T) {
	var buf bytes.Buffer
	util.SetOutput(&buf)
	defer util.SetOutput(os.Stderr)

	cfg := config.NewConfig()
	pos := token.Pos{Line: 1, Col: 1}
	assert.Equal(t, int64(255), LiteralValue(cfg, "x.c", pos, "0xff"))
	assert.Equal(t, int64(8), LiteralValue(cfg, "x.c", pos, "010"))
	assert.Equal(t, int64(0), LiteralValue(cfg, "x.c", pos, "0"))
	assert.Equal(t, int64(0), LiteralValue(cfg, "x.c", pos, "0x"))
	assert.Empty(t, buf.String())

	assert.Equal(t, int64(3), LiteralValue(cfg, "x.c", pos, "3.75"))
	assert.Contains(t, buf.String(), "x.c:1:1: warning: floating constant 3.75 truncated to integer [-Wtruncated-literal]")
	buf.Reset()

	assert.Equal(t, int64(2), LiteralValue(cfg, "x.c", pos, "2.0f"))
	assert.Empty(t, buf.String())

	assert.Equal(t, int64(9223372036854775807), LiteralValue(cfg, "x.c", pos, "99999999999999999999"))
	assert.Contains(t, buf.String(), "[-Woverflow]")
	buf.Reset()

	cfg.SetWarning(config.WarnOverflow, false)
	LiteralValue(cfg, "x.c", pos, "99999999999999999999")
	assert.Empty(t, buf.String())
}

func TestBinaryLiteralsFeature(t *testing.T) {
	cfg := quietConfig()
	cfg.SetFeature(config.FeatBinaryLiterals, false)
	got, err := run(t, cfg, "int main() { return 0b101 + 1; }")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestMachineStatus(t *testing.T) {
	m := NewMachine(quietConfig(), "m.c")
	assert.Equal(t, 0, m.Status())

	pos := token.Pos{Line: 1, Col: 1}
	expr := ast.NewBinExpr(pos, '*', ast.NewLiteral(pos, "6"), ast.NewUnaryExpr(pos, '-', ast.NewLiteral(pos, "7")))
	require.NoError(t, m.Exec(ast.NewReturn(pos, expr)))
	assert.Equal(t, -42, m.Status())

	// Statements after a return are skipped
	require.NoError(t, m.Exec(ast.NewReturn(pos, ast.NewLiteral(pos, "1"))))
	assert.Equal(t, -42, m.Status())
}
