// Package eval executes the main function of a parsed program. Only integer
// arithmetic on constants inside return statements is supported: the value
// left on top of the stack becomes the exit status.
package eval

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/xplshn/cppillr/pkg/ast"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/parser"
	"github.com/xplshn/cppillr/pkg/program"
	"github.com/xplshn/cppillr/pkg/token"
	"github.com/xplshn/cppillr/pkg/util"
)

// Run finds the only function named main in store, parses its body if it
// was not parsed yet, and executes it. The store must be quiesced.
func Run(store *program.Store, cfg *config.Config) (int, error) {
	type candidate struct {
		fn   *ast.Function
		file string
	}
	var mains []candidate
	for _, res := range store.ParseResults() {
		for _, fn := range res.Functions {
			if fn.Name == "main" {
				mains = append(mains, candidate{fn, res.Filename})
			}
		}
	}

	switch len(mains) {
	case 0:
		return 1, &util.EvaluatorError{Kind: util.ErrNoMain}
	case 1:
	default:
		locs := make([]util.Location, len(mains))
		for i, c := range mains {
			locs[i] = util.Location{File: c.file, Pos: c.fn.Pos}
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].File != locs[j].File {
				return locs[i].File < locs[j].File
			}
			return locs[i].Pos.Line < locs[j].Pos.Line
		})
		return 1, &util.EvaluatorError{Kind: util.ErrMultipleMain, Locations: locs}
	}

	main := mains[0]
	lex, err := store.Lex(main.fn.Body.LexIndex)
	if err != nil {
		return 1, err
	}
	block, err := parser.ParseBody(lex, main.fn, cfg)
	if err != nil {
		return 1, err
	}

	m := NewMachine(cfg, main.file)
	if err := m.Exec(block); err != nil {
		return 1, err
	}
	return m.Status(), nil
}

// Machine is a stack machine walking statement trees.
type Machine struct {
	cfg      *config.Config
	file     string
	stack    []int64
	returned bool
}

func NewMachine(cfg *config.Config, file string) *Machine {
	return &Machine{cfg: cfg, file: file}
}

// Status is the value on top of the stack, or 0 for an empty stack.
func (m *Machine) Status() int {
	if len(m.stack) == 0 {
		return 0
	}
	return int(m.stack[len(m.stack)-1])
}

// Exec runs a statement. After a return statement has run, the remaining
// statements of every enclosing block are skipped.
func (m *Machine) Exec(n *ast.Node) error {
	if m.returned {
		return nil
	}
	switch d := n.Data.(type) {
	case ast.CompoundStmtNode:
		for _, s := range d.Stmts {
			if err := m.Exec(s); err != nil {
				return err
			}
			if m.returned {
				break
			}
		}
		return nil
	case ast.ReturnNode:
		if d.Expr != nil {
			if err := m.eval(d.Expr); err != nil {
				return err
			}
		}
		m.returned = true
		return nil
	}
	return m.eval(n)
}

func (m *Machine) push(v int64) { m.stack = append(m.stack, v) }

func (m *Machine) eval(n *ast.Node) error {
	switch d := n.Data.(type) {
	case ast.LiteralNode:
		m.push(LiteralValue(m.cfg, m.file, n.Pos, d.Text))

	case ast.UnaryExprNode:
		if err := m.eval(d.Expr); err != nil {
			return err
		}
		if len(m.stack) == 0 {
			return nil
		}
		top := &m.stack[len(m.stack)-1]
		switch d.Op {
		case '-':
			*top = -*top
		case '!':
			if *top == 0 {
				*top = 1
			} else {
				*top = 0
			}
		case '~':
			*top = ^*top
		}
		// '+' leaves the value as is; '*' and '&' have no runtime meaning here

	case ast.BinExprNode:
		if err := m.eval(d.Left); err != nil {
			return err
		}
		if err := m.eval(d.Right); err != nil {
			return err
		}
		if len(m.stack) < 2 {
			return nil
		}
		x, y := m.stack[len(m.stack)-2], m.stack[len(m.stack)-1]
		switch d.Op {
		case '+':
			x += y
		case '-':
			x -= y
		case '*':
			x *= y
		case '/', '%':
			if y == 0 {
				return &util.EvaluatorError{
					Kind:      util.ErrDivisionByZero,
					Locations: []util.Location{{File: m.file, Pos: n.Pos}},
				}
			}
			if d.Op == '/' {
				x /= y
			} else {
				x %= y
			}
		}
		m.stack = m.stack[:len(m.stack)-1]
		m.stack[len(m.stack)-1] = x
	}
	return nil
}

// LiteralValue converts the text of a numeric constant. A fractional part is
// truncated, a value out of range saturates. Both cases warn when enabled.
func LiteralValue(cfg *config.Config, file string, pos token.Pos, text string) int64 {
	s, frac, isFloat := strings.Cut(text, ".")
	if isFloat && strings.TrimRight(frac, "0f") != "" {
		util.Warn(cfg, config.WarnTruncatedLiteral, file, pos, "floating constant %s truncated to integer", text)
	}
	if s == "" {
		return 0
	}
	if len(s) > 1 && s[0] == '0' && (s[1] == 'b' || s[1] == 'B') && !cfg.IsFeatureEnabled(config.FeatBinaryLiterals) {
		// Like strtol: the leading 0 is read and the rest ignored
		return 0
	}

	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			util.Warn(cfg, config.WarnOverflow, file, pos, "integer constant %s is too large", text)
			return v
		}
		// A prefix without digits, e.g. 0x
		return 0
	}
	return v
}
