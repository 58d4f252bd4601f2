package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/token"
)

var (
	ErrNoMain         = errors.New("no main() function found")
	ErrMultipleMain   = errors.New("multiple main() functions found")
	ErrDivisionByZero = errors.New("division by zero")
)

// DisplayName returns the name used in diagnostics for a lexed file. The
// empty filename is the standard input.
func DisplayName(file string) string {
	if file == "" {
		return "<stdin>"
	}
	return file
}

func location(file string, pos token.Pos) string {
	if !pos.IsValid() {
		return DisplayName(file)
	}
	return fmt.Sprintf("%s:%d:%d", DisplayName(file), pos.Line, pos.Col)
}

// FileOpenError is reported when an input file cannot be read. It is not
// fatal: the remaining files are still processed.
type FileOpenError struct {
	File string
	Err  error
}

func (e *FileOpenError) Error() string {
	return fmt.Sprintf("%s: could not open file: %v", DisplayName(e.File), e.Err)
}

func (e *FileOpenError) Unwrap() error { return e.Err }

// LexError is a fatal lexer error.
type LexError struct {
	File string
	Pos  token.Pos
	Char int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s", location(e.File, e.Pos), e.Msg)
}

// ParseError is a fatal parser error. Pos is zero when there was no current
// token, and the diagnostic then names the file only.
type ParseError struct {
	File string
	Pos  token.Pos
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", location(e.File, e.Pos), e.Msg)
}

// Location names a function definition in a diagnostic.
type Location struct {
	File string
	Pos  token.Pos
}

func (l Location) String() string { return location(l.File, l.Pos) }

// EvaluatorError is reported when the program cannot be executed. Kind is one
// of the Err* sentinels, so errors.Is(err, ErrNoMain) works.
type EvaluatorError struct {
	Kind      error
	Locations []Location
}

func (e *EvaluatorError) Error() string {
	if len(e.Locations) == 0 {
		return e.Kind.Error()
	}
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	sb.WriteString(":")
	for _, loc := range e.Locations {
		sb.WriteString("\n  ")
		sb.WriteString(loc.String())
	}
	return sb.String()
}

func (e *EvaluatorError) Unwrap() error { return e.Kind }

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
	color            = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	exit             = os.Exit
)

// SetOutput redirects diagnostics. Colour is disabled for anything that is
// not the process's standard error.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	} else {
		color = false
	}
}

func paint(code, s string) string {
	if !color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Report prints err as a diagnostic without terminating.
func Report(err error) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(output, paint("1", err.Error()))
}

// Fatal prints err and exits the process with status 1.
func Fatal(err error) {
	Report(err)
	exit(1)
}

// Warn prints a formatted warning if the corresponding warning is enabled.
func Warn(cfg *config.Config, wt config.Warning, file string, pos token.Pos, format string, args ...interface{}) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, "%s: %s ", location(file, pos), paint("33", "warning:"))
	fmt.Fprintf(output, format, args...)
	fmt.Fprintf(output, " [-W%s]\n", cfg.Warnings[wt].Name)
}
