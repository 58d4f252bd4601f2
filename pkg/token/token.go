package token

import (
	"fmt"

	"github.com/xplshn/cppillr/pkg/keyword"
)

type Kind int

const (
	PPBegin Kind = iota
	PPKeyword
	PPHeaderName
	PPEnd
	Comment
	Identifier
	Keyword
	CharConstant
	Literal
	NumericConstant
	Punctuator
	EOF
)

var kindStrings = [...]string{
	PPBegin:         "PPBegin",
	PPKeyword:       "PPKeyword",
	PPHeaderName:    "PPHeaderName",
	PPEnd:           "PPEnd",
	Comment:         "Comment",
	Identifier:      "Identifier",
	Keyword:         "Keyword",
	CharConstant:    "CharConstant",
	Literal:         "Literal",
	NumericConstant: "NumericConstant",
	Punctuator:      "Punctuator",
	EOF:             "EOF",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindStrings) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindStrings[k]
}

// Pos is a 1-based line and column. The zero Pos means "no position".
type Pos struct {
	Line int
	Col  int
}

func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Token is a classified unit of source text. The meaning of I and J depends
// on Kind:
//   - Identifier, Literal, NumericConstant, CharConstant, PPHeaderName:
//     [I,J) is a byte range in the owning lex result's IDs arena
//   - Comment: [I,J) is a byte range in the Comments arena
//   - Keyword: I is a keyword.Keyword
//   - PPKeyword: I is a keyword.PPKeyword
//   - Punctuator: I is the first character, J the second one or 0
type Token struct {
	Kind Kind
	Pos  Pos
	I, J int
}

// HasText reports whether the token's payload is a range into the IDs arena.
func (t Token) HasText() bool {
	switch t.Kind {
	case Identifier, Literal, NumericConstant, CharConstant, PPHeaderName:
		return true
	}
	return false
}

func (t Token) IsKeyword(k keyword.Keyword) bool {
	return t.Kind == Keyword && t.I == int(k)
}

func (t Token) IsPPKeyword(k keyword.PPKeyword) bool {
	return t.Kind == PPKeyword && t.I == int(k)
}

// IsPunct reports whether t is the single-character punctuator ch.
func (t Token) IsPunct(ch byte) bool {
	return t.Kind == Punctuator && t.I == int(ch) && t.J == 0
}

// Spelling returns the source spelling of keyword and punctuator tokens, and
// the kind name for everything else.
func (t Token) Spelling() string {
	switch t.Kind {
	case Keyword:
		return keyword.Keyword(t.I).String()
	case PPKeyword:
		return keyword.PPKeyword(t.I).String()
	case Punctuator:
		if t.J != 0 {
			return string([]byte{byte(t.I), byte(t.J)})
		}
		return string([]byte{byte(t.I)})
	case EOF:
		return "end of file"
	}
	return t.Kind.String()
}
