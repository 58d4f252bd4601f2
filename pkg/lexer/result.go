package lexer

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/cppillr/pkg/token"
)

// Result is the output of lexing one file. Token text lives in two byte
// arenas referenced by [I,J) ranges, so a Result holds no per-token
// allocations.
type Result struct {
	Filename  string
	IDs       []byte
	Comments  []byte
	Tokens    []token.Token
	BytesRead int
}

// Text returns the text of an identifier, literal, constant or header name.
func (r *Result) Text(t token.Token) string {
	if !t.HasText() {
		return ""
	}
	return string(r.IDs[t.I:t.J])
}

func (r *Result) CommentText(t token.Token) string {
	if t.Kind != token.Comment {
		return ""
	}
	return string(r.Comments[t.I:t.J])
}

// Lines returns the number of source lines the file spans.
func (r *Result) Lines() int {
	if len(r.Tokens) == 0 {
		return 0
	}
	eof := r.Tokens[len(r.Tokens)-1]
	if eof.Pos.Col == 1 {
		return eof.Pos.Line - 1
	}
	return eof.Pos.Line
}

// Clone returns a deep copy of r that shares no memory with it.
func (r *Result) Clone() *Result {
	return &Result{
		Filename:  r.Filename,
		IDs:       append([]byte(nil), r.IDs...),
		Comments:  append([]byte(nil), r.Comments...),
		Tokens:    append([]token.Token(nil), r.Tokens...),
		BytesRead: r.BytesRead,
	}
}

// Sum64 hashes the tokens and both arenas. Two results of the same input
// hash to the same value.
func (r *Result) Sum64() uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		d.Write(buf[:])
	}
	put(len(r.Tokens))
	for _, t := range r.Tokens {
		put(int(t.Kind))
		put(t.Pos.Line)
		put(t.Pos.Col)
		put(t.I)
		put(t.J)
	}
	put(len(r.IDs))
	d.Write(r.IDs)
	put(len(r.Comments))
	d.Write(r.Comments)
	return d.Sum64()
}
