package lexer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/keyword"
	"github.com/xplshn/cppillr/pkg/token"
	"github.com/xplshn/cppillr/pkg/util"
)

// The lexer is a finite-state machine. It spends most of its time in
// readingWhitespace, discarding insignificant bytes; when the start of a
// construct is found it switches to the state that reads it and goes back
// to readingWhitespace once the token is complete.
type state int

const (
	readingWhitespace state = iota
	readingWhitespaceToEOL
	readingDirectiveName
	readingIdentifier
	readingLineComment
	readingBlockComment
	readingBeforeHeaderName
	readingSysHeaderName
	readingUserHeaderName
	readingErrorText
	readingString
	readingChar
	readingHexadecimal
	readingBinary
	readingOctal
	readingIntegerPart
	readingDecimalPart
)

type action int

const (
	// Read the next byte from the input and process it
	nextChr action = iota
	// Process the current byte again, in the (possibly new) current state
	processChr
)

const eof = -1

type Lexer struct {
	r    *bufio.Reader
	cfg  *config.Config
	data *Result

	state     state
	ch        int       // byte being processed, or eof
	pos       token.Pos // position of ch
	line, col int       // position of the next byte to read
	start     token.Pos // position of the first byte of the current token
	text      []byte    // text of the current token
	prepro    bool      // inside a preprocessor line
	directive bool      // the identifier being read is a directive name

	readErr error
	err     error
}

// New returns a lexer reading from r. name is recorded as the Filename of
// the result; the empty name stands for the standard input.
func New(name string, r io.Reader, cfg *config.Config) *Lexer {
	return &Lexer{
		r:    bufio.NewReaderSize(r, 4096),
		cfg:  cfg,
		data: &Result{Filename: name},
		line: 1,
		col:  1,
	}
}

// LexFile lexes the file at path, or the standard input if path is empty.
func LexFile(path string, cfg *config.Config) (*Result, error) {
	if path == "" {
		return New("", os.Stdin, cfg).Lex()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &util.FileOpenError{File: path, Err: err}
	}
	defer f.Close()
	return New(path, f, cfg).Lex()
}

// Lex consumes the whole input. The returned error is a *util.LexError for
// malformed input or a *util.FileOpenError if the input could not be read.
func (l *Lexer) Lex() (*Result, error) {
	l.state = readingWhitespace
	for {
		l.ch = l.next()
		for l.process() == processChr && l.err == nil {
		}
		if l.err != nil {
			return nil, l.err
		}
		if l.ch == eof {
			break
		}
	}
	if l.readErr != nil {
		return nil, &util.FileOpenError{File: l.data.Filename, Err: l.readErr}
	}
	end := token.Pos{Line: l.line, Col: l.col}
	if l.prepro {
		l.addToken(token.PPEnd, end, 0, 0)
		l.prepro = false
	}
	l.addToken(token.EOF, end, 0, 0)
	return l.data, nil
}

func (l *Lexer) next() int {
	c, err := l.r.ReadByte()
	if err != nil {
		if err != io.EOF && l.readErr == nil {
			l.readErr = err
		}
		l.pos = token.Pos{Line: l.line, Col: l.col}
		return eof
	}
	l.data.BytesRead++
	l.pos = token.Pos{Line: l.line, Col: l.col}
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return int(c)
}

func (l *Lexer) fail(format string, args ...interface{}) action {
	if l.err == nil {
		l.err = &util.LexError{File: l.data.Filename, Pos: l.pos, Char: l.ch, Msg: fmt.Sprintf(format, args...)}
	}
	return nextChr
}

func (l *Lexer) failAt(pos token.Pos, format string, args ...interface{}) action {
	l.pos = pos
	return l.fail(format, args...)
}

func (l *Lexer) addToken(kind token.Kind, pos token.Pos, i, j int) {
	l.data.Tokens = append(l.data.Tokens, token.Token{Kind: kind, Pos: pos, I: i, J: j})
}

// addText appends the current token text to the IDs arena and emits a token
// referencing it.
func (l *Lexer) addText(kind token.Kind) {
	i := len(l.data.IDs)
	l.data.IDs = append(l.data.IDs, l.text...)
	l.addToken(kind, l.start, i, len(l.data.IDs))
	l.text = l.text[:0]
}

// addComment appends the trimmed comment text to the Comments arena. A
// comment that directly follows another comment extends it instead of
// creating a new token.
func (l *Lexer) addComment() {
	text := bytes.TrimSpace(l.text)
	l.text = l.text[:0]
	if len(text) == 0 {
		return
	}
	i := len(l.data.Comments)
	l.data.Comments = append(l.data.Comments, text...)
	if n := len(l.data.Tokens); n > 0 && l.data.Tokens[n-1].Kind == token.Comment {
		l.data.Tokens[n-1].J = len(l.data.Comments)
		return
	}
	l.addToken(token.Comment, l.start, i, len(l.data.Comments))
}

func (l *Lexer) keepComments() bool { return l.cfg.IsFeatureEnabled(config.FeatComments) }

func (l *Lexer) begin(s state) {
	l.state = s
	l.start = l.pos
	l.text = l.text[:0]
}

// punct emits the punctuator ch, or the two-character punctuator ch+c2 when
// the following byte c2 is one of seconds. A byte that does not extend the
// operator is reprocessed from the dispatch state.
func (l *Lexer) punct(ch int, seconds string) action {
	start := l.pos
	c2 := l.next()
	if c2 != eof && bytes.IndexByte([]byte(seconds), byte(c2)) >= 0 {
		l.addToken(token.Punctuator, start, ch, c2)
		return nextChr
	}
	l.addToken(token.Punctuator, start, ch, 0)
	l.ch = c2
	return processChr
}

// escape reads the byte after a backslash and appends its translation.
func (l *Lexer) escape() bool {
	c := l.next()
	switch c {
	case eof:
		return false
	case 'n':
		l.text = append(l.text, '\n')
	case 'r':
		l.text = append(l.text, '\r')
	case 't':
		l.text = append(l.text, '\t')
	default:
		l.text = append(l.text, byte(c))
	}
	return true
}

func isIdentStart(c int) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isIdentChar(c int) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c int) bool { return c >= '0' && c <= '9' }

func isHexDigit(c int) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isBlank(c int) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v' }

func (l *Lexer) process() action {
	switch l.state {
	case readingWhitespace:
		return l.dispatch()

	case readingWhitespaceToEOL:
		switch {
		case l.ch == eof:
		case isBlank(l.ch):
		case l.ch == '\n':
			l.state = readingWhitespace
		default:
			return l.fail("unexpected char '%c' after '\\'", l.ch)
		}

	case readingDirectiveName:
		switch {
		case l.ch == ' ' || l.ch == '\t':
		case isIdentStart(l.ch):
			l.begin(readingIdentifier)
			l.directive = true
			l.text = append(l.text, byte(l.ch))
		default:
			// Null directive, or something that is not a name
			l.state = readingWhitespace
			return processChr
		}

	case readingIdentifier:
		if isIdentChar(l.ch) {
			l.text = append(l.text, byte(l.ch))
			return nextChr
		}
		return l.endIdentifier()

	case readingLineComment:
		if l.ch == '\n' || l.ch == eof {
			if l.keepComments() {
				l.addComment()
			}
			l.state = readingWhitespace
			return processChr
		}
		if l.keepComments() {
			l.text = append(l.text, byte(l.ch))
		}

	case readingBlockComment:
		switch l.ch {
		case eof:
			return l.failAt(l.start, "unterminated comment")
		case '*':
			c2 := l.next()
			if c2 == '/' {
				if l.keepComments() {
					l.addComment()
				}
				l.state = readingWhitespace
				return nextChr
			}
			if l.keepComments() {
				l.text = append(l.text, '*')
			}
			l.ch = c2
			return processChr
		default:
			if l.keepComments() {
				l.text = append(l.text, byte(l.ch))
			}
		}

	case readingBeforeHeaderName:
		switch {
		case l.ch == ' ' || l.ch == '\t':
		case l.ch == '<':
			l.begin(readingSysHeaderName)
			l.text = append(l.text, '<')
		case l.ch == '"':
			l.begin(readingUserHeaderName)
			l.text = append(l.text, '"')
		case isIdentStart(l.ch):
			// A macro name, e.g. #include HEADER
			l.begin(readingIdentifier)
			l.text = append(l.text, byte(l.ch))
		case l.ch == eof:
			return l.fail("expecting header name after #include")
		default:
			return l.fail("unexpected char '%c' after #include", l.ch)
		}

	case readingSysHeaderName:
		return l.quoted('>', token.PPHeaderName, true)

	case readingUserHeaderName:
		return l.quoted('"', token.PPHeaderName, true)

	case readingErrorText:
		switch {
		case l.ch == '\n' || l.ch == eof:
			l.text = bytes.TrimRight(l.text, " \t\r")
			l.addText(token.Literal)
			l.addToken(token.PPEnd, l.pos, 0, 0)
			l.prepro = false
			l.state = readingWhitespace
		case len(l.text) == 0 && (l.ch == ' ' || l.ch == '\t'):
		default:
			if len(l.text) == 0 {
				l.start = l.pos
			}
			l.text = append(l.text, byte(l.ch))
		}

	case readingString:
		return l.quoted('"', token.Literal, false)

	case readingChar:
		return l.quoted('\'', token.CharConstant, false)

	case readingHexadecimal:
		if isHexDigit(l.ch) {
			l.text = append(l.text, byte(l.ch))
			return nextChr
		}
		return l.endNumber()

	case readingBinary:
		if l.ch == '0' || l.ch == '1' {
			l.text = append(l.text, byte(l.ch))
			return nextChr
		}
		return l.endNumber()

	case readingOctal:
		switch {
		case l.ch >= '0' && l.ch <= '7':
			l.text = append(l.text, byte(l.ch))
			return nextChr
		case l.ch == '8' || l.ch == '9':
			return l.fail("invalid digit '%c' in octal constant", l.ch)
		}
		return l.endNumber()

	case readingIntegerPart:
		switch {
		case isDigit(l.ch):
			l.text = append(l.text, byte(l.ch))
			return nextChr
		case l.ch == '.':
			l.text = append(l.text, '.')
			l.state = readingDecimalPart
			return nextChr
		}
		return l.endNumber()

	case readingDecimalPart:
		switch {
		case isDigit(l.ch):
			l.text = append(l.text, byte(l.ch))
			return nextChr
		case l.ch == 'f':
			// Float-flavoured constant
			l.text = append(l.text, 'f')
			l.addText(token.NumericConstant)
			l.state = readingWhitespace
			return nextChr
		}
		return l.endNumber()
	}
	return nextChr
}

func (l *Lexer) dispatch() action {
	ch := l.ch
	switch ch {
	case eof, ' ', '\t', '\r', '\f', '\v':
		return nextChr
	case '\n':
		if l.prepro {
			l.addToken(token.PPEnd, l.pos, 0, 0)
			l.prepro = false
		}
		return nextChr
	case '\\':
		l.state = readingWhitespaceToEOL
		return nextChr
	case '#':
		if l.prepro {
			// Stringizing and token pasting inside a directive
			return l.punct(ch, "#")
		}
		l.addToken(token.PPBegin, l.pos, 0, 0)
		l.prepro = true
		l.begin(readingDirectiveName)
		return nextChr
	case '"':
		l.begin(readingString)
		return nextChr
	case '\'':
		l.begin(readingChar)
		return nextChr
	case '{', '}', '(', ')', '[', ']', ',', ';', '?', '@':
		l.addToken(token.Punctuator, l.pos, ch, 0)
		return nextChr
	case '.':
		start := l.pos
		c2 := l.next()
		if isDigit(c2) {
			l.start = start
			l.text = append(l.text[:0], '.', byte(c2))
			l.state = readingDecimalPart
			return nextChr
		}
		l.addToken(token.Punctuator, start, ch, 0)
		l.ch = c2
		return processChr
	case '+':
		return l.punct(ch, "+=")
	case '-':
		return l.punct(ch, "-=>")
	case '/':
		start := l.pos
		c2 := l.next()
		switch c2 {
		case '/':
			l.begin(readingLineComment)
			l.start = start
			return nextChr
		case '*':
			l.begin(readingBlockComment)
			l.start = start
			return nextChr
		case '=':
			l.addToken(token.Punctuator, start, ch, c2)
			return nextChr
		}
		l.addToken(token.Punctuator, start, ch, 0)
		l.ch = c2
		return processChr
	case '&':
		return l.punct(ch, "&=")
	case '|':
		return l.punct(ch, "|=")
	case ':':
		return l.punct(ch, ":")
	case '^', '%', '*', '!', '~':
		return l.punct(ch, "=")
	case '<':
		return l.punct(ch, "<=")
	case '>':
		return l.punct(ch, ">=")
	case '=':
		return l.punct(ch, "=")
	case '0':
		return l.zero()
	}

	switch {
	case isIdentStart(ch):
		l.begin(readingIdentifier)
		l.text = append(l.text, byte(ch))
	case ch >= '1' && ch <= '9':
		l.begin(readingIntegerPart)
		l.text = append(l.text, byte(ch))
	default:
		return l.fail("unexpected char: %d '%c'", ch, ch)
	}
	return nextChr
}

// zero decides between octal, hexadecimal, binary and decimal constants
// starting with '0'.
func (l *Lexer) zero() action {
	l.begin(readingIntegerPart)
	l.text = append(l.text, '0')
	c2 := l.next()
	switch {
	case c2 == 'x' || c2 == 'X':
		l.state = readingHexadecimal
	case c2 == 'b' || c2 == 'B':
		l.state = readingBinary
	case c2 >= '0' && c2 <= '7':
		l.state = readingOctal
	case c2 == '8' || c2 == '9':
		l.ch = c2
		return l.fail("invalid digit '%c' in octal constant", c2)
	case c2 == '.':
		l.state = readingDecimalPart
	default:
		l.addText(token.NumericConstant)
		l.state = readingWhitespace
		l.ch = c2
		return processChr
	}
	l.text = append(l.text, byte(c2))
	return nextChr
}

func (l *Lexer) endNumber() action {
	l.addText(token.NumericConstant)
	l.state = readingWhitespace
	return processChr
}

func (l *Lexer) endIdentifier() action {
	s := string(l.text)
	l.state = readingWhitespace

	if l.directive {
		l.directive = false
		if k, ok := keyword.LookupPP(s); ok {
			l.addToken(token.PPKeyword, l.start, int(k), 0)
			l.text = l.text[:0]
			switch k {
			case keyword.PPInclude, keyword.PPIncludeNext, keyword.PPImport:
				l.state = readingBeforeHeaderName
			case keyword.PPError, keyword.PPWarning:
				l.begin(readingErrorText)
			}
			return processChr
		}
		l.addText(token.Identifier)
		return processChr
	}

	// Language keywords are not recognized inside directives, where they
	// are plain macro text.
	if !l.prepro {
		if k, ok := keyword.Lookup(s); ok {
			l.addToken(token.Keyword, l.start, int(k), 0)
			l.text = l.text[:0]
			return processChr
		}
	}
	l.addText(token.Identifier)
	return processChr
}

// quoted reads the body of a string, character constant or header name
// until the closing delimiter.
func (l *Lexer) quoted(closing byte, kind token.Kind, keepDelims bool) action {
	switch l.ch {
	case int(closing):
		if keepDelims {
			l.text = append(l.text, closing)
		}
		l.addText(kind)
		l.state = readingWhitespace
	case '\\':
		if !l.escape() {
			return l.failAt(l.start, "missing terminating %c character", closing)
		}
	case '\n', eof:
		return l.failAt(l.start, "missing terminating %c character", closing)
	default:
		l.text = append(l.text, byte(l.ch))
	}
	return nextChr
}
