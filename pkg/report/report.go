// Package report prints human-readable views of a quiesced program store.
// Files are always reported in file name order so that the output does not
// depend on the order in which workers finished.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/xplshn/cppillr/pkg/keyword"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/parser"
	"github.com/xplshn/cppillr/pkg/program"
	"github.com/xplshn/cppillr/pkg/token"
	"github.com/xplshn/cppillr/pkg/util"
)

// Sorted returns the lex results of store ordered by file name.
func Sorted(store *program.Store) []*lexer.Result {
	res := store.LexResults()
	sort.SliceStable(res, func(i, j int) bool { return res[i].Filename < res[j].Filename })
	return res
}

// Tokens dumps every token of r, one per line.
func Tokens(w io.Writer, r *lexer.Result) {
	name := util.DisplayName(r.Filename)
	fmt.Fprintf(w, "%s: tokens=%d\n", name, len(r.Tokens))
	for _, t := range r.Tokens {
		fmt.Fprintf(w, "%s:%d:%d: ", name, t.Pos.Line, t.Pos.Col)
		switch t.Kind {
		case token.PPBegin:
			fmt.Fprintln(w, "PP {")
		case token.PPKeyword:
			fmt.Fprintf(w, "PPKEY %s\n", keyword.PPKeyword(t.I))
		case token.PPHeaderName:
			fmt.Fprintf(w, "PP.H %s\n", r.Text(t))
		case token.PPEnd:
			fmt.Fprintln(w, "} PP")
		case token.Comment:
			fmt.Fprintf(w, "COMMENT %s\n", r.CommentText(t))
		case token.Identifier:
			fmt.Fprintf(w, "ID %s\n", r.Text(t))
		case token.Literal:
			fmt.Fprintf(w, "LIT %s\n", r.Text(t))
		case token.CharConstant:
			fmt.Fprintf(w, "CHR %s\n", r.Text(t))
		case token.NumericConstant:
			fmt.Fprintf(w, "NUM %s\n", r.Text(t))
		case token.Keyword:
			fmt.Fprintf(w, "KEY %s\n", keyword.Keyword(t.I))
		case token.Punctuator:
			fmt.Fprintf(w, "OP %s\n", t.Spelling())
		case token.EOF:
			fmt.Fprintln(w, "EOF")
		}
	}
}

type condition struct {
	expr    string
	defined bool
}

// Includes lists the header names included by r. Each include is followed by
// the #if, #ifdef and #ifndef conditions it is nested in.
func Includes(w io.Writer, r *lexer.Result) {
	fmt.Fprintf(w, "%s: includes\n", util.DisplayName(r.Filename))

	var stack []condition
	toks := r.Tokens
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].Kind != token.PPBegin || toks[i+1].Kind != token.PPKeyword {
			continue
		}
		arg := toks[i+2]
		switch keyword.PPKeyword(toks[i+1].I) {
		case keyword.PPIf:
			var words []string
			j := i + 2
			for ; j < len(toks) && toks[j].Kind != token.PPEnd; j++ {
				if toks[j].Kind == token.Identifier || toks[j].Kind == token.NumericConstant {
					words = append(words, r.Text(toks[j]))
				}
			}
			stack = append(stack, condition{expr: "#if (" + strings.Join(words, " ") + ")", defined: true})
			i = j
		case keyword.PPIfdef, keyword.PPIfndef:
			c := condition{defined: toks[i+1].IsPPKeyword(keyword.PPIfdef)}
			if arg.Kind == token.Identifier {
				c.expr = r.Text(arg)
			}
			stack = append(stack, c)
		case keyword.PPEndif:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case keyword.PPInclude, keyword.PPIncludeNext, keyword.PPImport:
			if arg.Kind != token.PPHeaderName {
				continue
			}
			fmt.Fprintf(w, "  %s", r.Text(arg))
			if len(stack) > 0 {
				conds := make([]string, len(stack))
				for k, c := range stack {
					if !c.defined {
						conds[k] = "!"
					}
					conds[k] += c.expr
				}
				fmt.Fprintf(w, " (%s)", strings.Join(conds, " && "))
			}
			fmt.Fprintln(w)
		}
	}
}

// Functions lists the functions found in every parse result.
func Functions(w io.Writer, results []*parser.Result) {
	results = append([]*parser.Result(nil), results...)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Filename < results[j].Filename })
	for _, res := range results {
		for _, fn := range res.Functions {
			fmt.Fprintf(w, "%s:%d:%d: %s\n", util.DisplayName(res.Filename), fn.Pos.Line, fn.Pos.Col, fn.Signature())
		}
	}
}

// CountLines returns the number of distinct lines holding at least one token.
func CountLines(r *lexer.Result) int {
	n, line := 0, 0
	for _, t := range r.Tokens {
		if t.Kind == token.EOF {
			continue
		}
		if t.Pos.Line != line {
			line = t.Pos.Line
			n++
		}
	}
	return n
}

// KeywordStats prints how many times each keyword appears, in keyword order.
func KeywordStats(w io.Writer, results []*lexer.Result) {
	var counts [keyword.MaxKeyword]int
	for _, r := range results {
		for _, t := range r.Tokens {
			if t.Kind == token.Keyword {
				counts[t.I]++
			}
		}
	}
	for k, n := range counts {
		if n > 0 {
			fmt.Fprintf(w, "%d\t%s\n", n, keyword.Keyword(k))
		}
	}
}

// FileSummary describes one lexed file.
type FileSummary struct {
	File      string
	Bytes     int
	Tokens    int
	Lines     int
	Comments  int
	Functions int
}

// Summarize computes a FileSummary per lexed file, in file name order.
func Summarize(ctx context.Context, store *program.Store, workers int) ([]FileSummary, error) {
	lexes := Sorted(store)
	functions := make(map[string]int)
	for _, res := range store.ParseResults() {
		functions[res.Filename] += len(res.Functions)
	}

	out := make([]FileSummary, len(lexes))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, r := range lexes {
		i, r := i, r
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := FileSummary{
				File:      r.Filename,
				Bytes:     r.BytesRead,
				Tokens:    len(r.Tokens),
				Lines:     CountLines(r),
				Functions: functions[r.Filename],
			}
			for _, t := range r.Tokens {
				if t.Kind == token.Comment {
					s.Comments++
				}
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary prints one line per file and a total line.
func Summary(w io.Writer, files []FileSummary, elapsed time.Duration) {
	var total FileSummary
	for _, s := range files {
		fmt.Fprintf(w, "%s: %s, %s tokens, %s lines, %d functions\n",
			util.DisplayName(s.File), humanize.Bytes(uint64(s.Bytes)),
			humanize.Comma(int64(s.Tokens)), humanize.Comma(int64(s.Lines)), s.Functions)
		total.Bytes += s.Bytes
		total.Tokens += s.Tokens
		total.Lines += s.Lines
		total.Comments += s.Comments
		total.Functions += s.Functions
	}
	fmt.Fprintf(w, "total: %d files, %s, %s tokens, %s lines, %s comments, %d functions",
		len(files), humanize.Bytes(uint64(total.Bytes)), humanize.Comma(int64(total.Tokens)),
		humanize.Comma(int64(total.Lines)), humanize.Comma(int64(total.Comments)), total.Functions)
	if elapsed > 0 {
		fmt.Fprintf(w, " in %s", elapsed.Round(time.Microsecond))
	}
	fmt.Fprintln(w)
}
