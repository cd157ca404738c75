package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "Positioned",
			err:  &Error{Kind: UnexpectedToken, Line: 3, Column: 7, Near: ")"},
			want: `unexpected token at line 3, column 7, near ")"`,
		},
		{
			name: "WithMessage",
			err:  &Error{Kind: SyntaxError, Line: 1, Column: 0, Near: "(set! x)", Msg: "set! takes exactly two operands"},
			want: `syntax error at line 1, column 0, near "(set! x)": set! takes exactly two operands`,
		},
		{
			name: "Unpositioned",
			err:  &Error{Kind: TokenStreamEnded, Msg: "stream ended"},
			want: "token stream ended: stream ended",
		},
		{
			name: "LongNearIsTruncated",
			err:  &Error{Kind: LexError, Line: 2, Column: 4, Near: strings.Repeat("x", 40)},
			want: fmt.Sprintf(`lexical error at line 2, column 4, near "%s..."`, strings.Repeat("x", maxNear)),
		},
		{
			name: "Cause",
			err:  &Error{Kind: IOError, Line: 5, Err: io.ErrUnexpectedEOF},
			want: "I/O error at line 5, column 0: unexpected EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := &Error{Kind: MissingCloseParen, Line: 1}
	wrapped := fmt.Errorf("compiling prog.scm: %w", base)
	if k, ok := KindOf(wrapped); !ok || k != MissingCloseParen {
		t.Errorf("KindOf: got %v, %v", k, ok)
	}
	if IsKind(errors.New("plain"), SyntaxError) {
		t.Errorf("plain error must not report a kind")
	}
}

func TestAtKeepsExistingPosition(t *testing.T) {
	e := Errorf(SyntaxError, "x", "bad")
	e.At(4, 2).At(9, 9)
	if e.Line != 4 || e.Column != 2 {
		t.Errorf("expected 4:2, got %d:%d", e.Line, e.Column)
	}
}

func TestSnippet(t *testing.T) {
	src := "(define x 1)\n(set! x)\n(display x)"
	e := &Error{Kind: SyntaxError, Line: 2, Column: 0, Near: "(set! x)", Msg: "set! takes exactly two operands"}
	got := Snippet(e, "prog.scm", src)
	want := "syntax error in prog.scm at 2:1: set! takes exactly two operands\n\n" +
		"   1 | (define x 1)\n" +
		"   2 | (set! x)\n" +
		"     | ^\n" +
		"   3 | (display x)\n"
	if got != want {
		t.Errorf("snippet mismatch:\n%s\nwant:\n%s", got, want)
	}

	wrapped := WrapWithSource(e, "prog.scm", src)
	if wrapped.Error() != want || !errors.Is(wrapped, e) {
		t.Errorf("WrapWithSource: got %q", wrapped.Error())
	}

	plain := errors.New("plain")
	if WrapWithSource(plain, "", src) != plain {
		t.Errorf("errors without a position must pass through")
	}
}
