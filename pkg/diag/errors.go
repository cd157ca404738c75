// Package diag defines the single error type shared by every stage of the
// front end, and renders it with a caret pointing at the offending column.
//
// Every error renders as
//
//	<kind> at line <L>, column <C>, near "<text>"
//
// optionally followed by ": <detail>". Lines are 1-based, columns 0-based.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	LexError          Kind = iota // tokenizer matched no alternative
	TokenStreamEnded              // parser needed a token, none left
	UnexpectedToken               // token not valid in this position
	MissingCloseParen             // list or vector opened, never closed
	SyntaxError                   // AST or macro rule violated
	IOError                       // underlying line source failed
)

var kindNames = [...]string{
	LexError:          "lexical error",
	TokenStreamEnded:  "token stream ended",
	UnexpectedToken:   "unexpected token",
	MissingCloseParen: "missing close paren",
	SyntaxError:       "syntax error",
	IOError:           "I/O error",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a positioned front-end diagnostic.
type Error struct {
	Kind      Kind
	Line      int    // 1-based; 0 when unknown
	Column    int    // 0-based
	Near      string // offending text
	Remainder string // unconsumed rest of the line (lexical errors)
	Msg       string // optional detail
	Err       error  // wrapped cause (I/O errors)
}

// maxNear bounds the "near" excerpt so a long line does not flood the message.
const maxNear = 24

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d, column %d", e.Line, e.Column)
	}
	if e.Near != "" {
		near := e.Near
		if len(near) > maxNear {
			near = near[:maxNear] + "..."
		}
		fmt.Fprintf(&b, ", near %q", near)
	}
	switch {
	case e.Msg != "":
		b.WriteString(": ")
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an unpositioned Error of the given kind.
func Errorf(kind Kind, near string, format string, args ...any) *Error {
	return &Error{Kind: kind, Near: near, Msg: fmt.Sprintf(format, args...)}
}

// At returns e stamped with a position unless it already carries one.
func (e *Error) At(line, column int) *Error {
	if e.Line == 0 {
		e.Line = line
		e.Column = column
	}
	return e
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries a diagnostic of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// WrapWithSource returns an error whose message is a caret snippet of src,
// or err unchanged when it carries no position.
func WrapWithSource(err error, name, src string) error {
	var de *Error
	if !errors.As(err, &de) || de.Line == 0 {
		return err
	}
	return &snippetError{err: err, text: Snippet(de, name, src)}
}

type snippetError struct {
	err  error
	text string
}

func (s *snippetError) Error() string { return s.text }
func (s *snippetError) Unwrap() error { return s.err }

// Snippet renders e with up to one line of context either side and a caret
// under the offending column.
//
//	syntax error in prog.scm at 3:5: set! takes exactly two operands
//
//	   2 | (define x 1)
//	   3 | (set! x)
//	     | ^
func Snippet(e *Error, name, src string) string {
	lines := strings.Split(src, "\n")
	line := e.Line
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	col := e.Column
	if col < 0 {
		col = 0
	}

	detail := e.Msg
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" && e.Near != "" {
		detail = fmt.Sprintf("near %q", e.Near)
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", e.Kind, name, line, col+1, detail)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", e.Kind, line, col+1, detail)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
