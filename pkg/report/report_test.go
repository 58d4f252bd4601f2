package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/parser"
	"github.com/xplshn/cppillr/pkg/program"
)

func lex(t *testing.T, name, src string) *lexer.Result {
	t.Helper()
	res, err := lexer.New(name, strings.NewReader(src), config.NewConfig()).Lex()
	require.NoError(t, err)
	return res
}

func store(t *testing.T, files ...[2]string) *program.Store {
	t.Helper()
	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	s := program.NewStore()
	for _, f := range files {
		i := s.AddLex(lex(t, f[0], f[1]))
		l, err := s.Lex(i)
		require.NoError(t, err)
		res, err := parser.Parse(l, i, cfg)
		require.NoError(t, err)
		s.AddParse(res)
	}
	return s
}

func lines(s string) []string { return strings.Split(strings.TrimSuffix(s, "\n"), "\n") }

func TestTokens(t *testing.T) {
	var buf bytes.Buffer
	Tokens(&buf, lex(t, "a.c", "#include <x.h>\n// hi\nint a = 'c' + 1.5;"))
	want := []string{
		"a.c: tokens=13",
		"a.c:1:1: PP {",
		"a.c:1:2: PPKEY include",
		"a.c:1:10: PP.H <x.h>",
		"a.c:1:15: } PP",
		"a.c:2:1: COMMENT hi",
		"a.c:3:1: KEY int",
		"a.c:3:5: ID a",
		"a.c:3:7: OP =",
		"a.c:3:9: CHR c",
		"a.c:3:13: OP +",
		"a.c:3:15: NUM 1.5",
		"a.c:3:18: OP ;",
		"a.c:3:19: EOF",
	}
	if diff := cmp.Diff(want, lines(buf.String())); diff != "" {
		t.Errorf("token dump mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludes(t *testing.T) {
	src := `#include <a.h>
#ifdef WIN32
#include "win.h"
#else
#ifndef NO_POSIX
#include <unistd.h>
#endif
#endif
#if defined(X) && Y > 2
#include <x.h>
#endif
#include HDR
`
	var buf bytes.Buffer
	Includes(&buf, lex(t, "inc.c", src))
	want := []string{
		"inc.c: includes",
		"  <a.h>",
		`  "win.h" (WIN32)`,
		"  <unistd.h> (WIN32 && !NO_POSIX)",
		"  <x.h> (#if (defined X Y 2))",
	}
	if diff := cmp.Diff(want, lines(buf.String())); diff != "" {
		t.Errorf("include list mismatch (-want +got):\n%s", diff)
	}
}

func TestFunctions(t *testing.T) {
	s := store(t,
		[2]string{"b.c", "void g(char* p, int) {}"},
		[2]string{"a.c", "int main() { return 0; }\nint f(int x) {}"},
	)
	var buf bytes.Buffer
	Functions(&buf, s.ParseResults())
	assert.Equal(t, []string{
		"a.c:1:5: int main()",
		"a.c:2:5: int f(int x)",
		"b.c:1:6: void g(char* p, int)",
	}, lines(buf.String()))
}

func TestCountLinesAndKeywordStats(t *testing.T) {
	a := lex(t, "a.c", "int a;\n\n\nint b; return\n")
	assert.Equal(t, 2, CountLines(a))
	assert.Equal(t, 0, CountLines(lex(t, "e.c", "")))

	var buf bytes.Buffer
	KeywordStats(&buf, []*lexer.Result{a, lex(t, "b.c", "void f() { return; }")})
	assert.Equal(t, []string{"2\tint", "2\treturn", "1\tvoid"}, lines(buf.String()))
}

func TestSummary(t *testing.T) {
	s := store(t,
		[2]string{"b.c", "// x\nint main() { return 0; }\n"},
		[2]string{"a.c", "int f() {}\nint g() {}\n"},
	)
	files, err := Summarize(context.Background(), s, 2)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, FileSummary{File: "a.c", Bytes: 22, Tokens: 13, Lines: 2, Functions: 2}, files[0])
	assert.Equal(t, "b.c", files[1].File)
	assert.Equal(t, 1, files[1].Comments)
	assert.Equal(t, 1, files[1].Functions)

	var buf bytes.Buffer
	Summary(&buf, files, 1500*time.Millisecond)
	out := lines(buf.String())
	require.Len(t, out, 3)
	assert.Equal(t, "a.c: 22 B, 13 tokens, 2 lines, 2 functions", out[0])
	assert.True(t, strings.HasPrefix(out[2], "total: 2 files, "), out[2])
	assert.True(t, strings.HasSuffix(out[2], " in 1.5s"), out[2])
}

func TestSummarizeCancelled(t *testing.T) {
	s := store(t, [2]string{"a.c", "int f() {}"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Summarize(ctx, s, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
