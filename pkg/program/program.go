// Package program holds everything collected from the input files: one lex
// result per file and one parse result per successfully lexed file.
package program

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/cppillr/pkg/lexer"
	"github.com/xplshn/cppillr/pkg/parser"
)

// Store is shared by all pipeline workers. Each collection has its own
// mutex, held only while appending or copying.
type Store struct {
	lexMu sync.Mutex
	lexes []*lexer.Result

	parseMu sync.Mutex
	parses  []*parser.Result
}

func NewStore() *Store { return &Store{} }

// AddLex stores a lex result and returns its index. Indexes are stable for
// the lifetime of the store.
func (s *Store) AddLex(r *lexer.Result) int {
	s.lexMu.Lock()
	defer s.lexMu.Unlock()
	s.lexes = append(s.lexes, r)
	return len(s.lexes) - 1
}

// Lex returns a private copy of the lex result at index i.
func (s *Store) Lex(i int) (*lexer.Result, error) {
	s.lexMu.Lock()
	defer s.lexMu.Unlock()
	if i < 0 || i >= len(s.lexes) {
		return nil, fmt.Errorf("lex result %d out of range [0,%d)", i, len(s.lexes))
	}
	return s.lexes[i].Clone(), nil
}

func (s *Store) AddParse(r *parser.Result) {
	s.parseMu.Lock()
	defer s.parseMu.Unlock()
	s.parses = append(s.parses, r)
}

// LexResults returns the stored lex results in insertion order. It is meant
// for use after the pipeline has drained; the results must not be modified.
func (s *Store) LexResults() []*lexer.Result {
	s.lexMu.Lock()
	defer s.lexMu.Unlock()
	return append([]*lexer.Result(nil), s.lexes...)
}

// ParseResults returns the stored parse results in insertion order.
func (s *Store) ParseResults() []*parser.Result {
	s.parseMu.Lock()
	defer s.parseMu.Unlock()
	return append([]*parser.Result(nil), s.parses...)
}

// Sum64 digests the lex results by file name, independently of the order
// in which they were stored.
func (s *Store) Sum64() uint64 {
	var sum uint64
	for _, r := range s.LexResults() {
		d := xxhash.New()
		d.WriteString(r.Filename)
		var buf [8]byte
		v := r.Sum64()
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		d.Write(buf[:])
		sum ^= d.Sum64()
	}
	return sum
}
