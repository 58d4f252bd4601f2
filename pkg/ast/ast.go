// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xplshn/cppillr/pkg/keyword"
	"github.com/xplshn/cppillr/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Literal NodeType = iota
	UnaryExpr
	BinExpr

	// Statements
	Return
	CompoundStmt
)

var nodeTypeStrings = [...]string{
	Literal:      "Literal",
	UnaryExpr:    "UnaryExpr",
	BinExpr:      "BinExpr",
	Return:       "Return",
	CompoundStmt: "CompoundStmt",
}

func (t NodeType) String() string {
	if t < 0 || int(t) >= len(nodeTypeStrings) {
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
	return nodeTypeStrings[t]
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Pos    token.Pos
	Parent *Node
	Data   interface{}
}

// --- Node Data Structs ---
type LiteralNode struct{ Text string }
type UnaryExprNode struct {
	Op   byte
	Expr *Node
}
type BinExprNode struct {
	Op          byte
	Left, Right *Node
}
type ReturnNode struct{ Expr *Node } // Expr is nil for a bare return
type CompoundStmtNode struct{ Stmts []*Node }

// --- Node Constructors ---

func newNode(pos token.Pos, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Pos: pos, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewLiteral(pos token.Pos, text string) *Node {
	return newNode(pos, Literal, LiteralNode{Text: text})
}
func NewUnaryExpr(pos token.Pos, op byte, expr *Node) *Node {
	return newNode(pos, UnaryExpr, UnaryExprNode{Op: op, Expr: expr}, expr)
}
func NewBinExpr(pos token.Pos, op byte, left, right *Node) *Node {
	return newNode(pos, BinExpr, BinExprNode{Op: op, Left: left, Right: right}, left, right)
}
func NewReturn(pos token.Pos, expr *Node) *Node {
	return newNode(pos, Return, ReturnNode{Expr: expr}, expr)
}
func NewCompoundStmt(pos token.Pos, stmts []*Node) *Node {
	return newNode(pos, CompoundStmt, CompoundStmtNode{Stmts: stmts}, stmts...)
}

// String renders the subtree as an s-expression, e.g. (return (+ 2 3)).
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("nil")
		return
	}
	switch d := n.Data.(type) {
	case LiteralNode:
		sb.WriteString(d.Text)
	case UnaryExprNode:
		fmt.Fprintf(sb, "(%c ", d.Op)
		d.Expr.write(sb)
		sb.WriteByte(')')
	case BinExprNode:
		fmt.Fprintf(sb, "(%c ", d.Op)
		d.Left.write(sb)
		sb.WriteByte(' ')
		d.Right.write(sb)
		sb.WriteByte(')')
	case ReturnNode:
		sb.WriteString("(return")
		if d.Expr != nil {
			sb.WriteByte(' ')
			d.Expr.write(sb)
		}
		sb.WriteByte(')')
	case CompoundStmtNode:
		sb.WriteString("{")
		for _, s := range d.Stmts {
			sb.WriteByte(' ')
			s.write(sb)
		}
		sb.WriteString(" }")
	}
}

// Param is a function parameter. Name is empty for an unnamed parameter.
type Param struct {
	Type     keyword.Keyword
	Name     string
	Pointers int
}

func (p Param) String() string {
	s := p.Type.String() + strings.Repeat("*", p.Pointers)
	if p.Name != "" {
		s += " " + p.Name
	}
	return s
}

// Body is the body of a function definition. It starts out as the token
// span [Begin,End) of its braces inside the lex result LexIndex and is
// turned into a Block at most once, on demand.
type Body struct {
	LexIndex   int
	Begin, End int

	mu    sync.Mutex
	block *Node
}

func NewBody(lexIndex, begin, end int) *Body {
	return &Body{LexIndex: lexIndex, Begin: begin, End: end}
}

// Block returns the parsed body, or nil if it was not parsed yet.
func (b *Body) Block() *Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.block
}

// Parse runs parse unless the body already has a block, and keeps its result.
// Concurrent callers are serialized; only the first successful call runs.
func (b *Body) Parse(parse func() (*Node, error)) (*Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.block != nil {
		return b.block, nil
	}
	block, err := parse()
	if err != nil {
		return nil, err
	}
	b.block = block
	return block, nil
}

// Function is a function definition found by the first parsing phase.
type Function struct {
	ReturnType keyword.Keyword
	Name       string
	Pos        token.Pos
	Params     []Param
	Body       *Body
}

// Signature returns the function's declaration, e.g. "int main(int argc, char** argv)".
func (f *Function) Signature() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("%s %s(%s)", f.ReturnType, f.Name, strings.Join(params, ", "))
}
