package syntax

import (
	"errors"
	"io"

	"goscheme/pkg/diag"
)

// Reader turns a LineSource into a stream of positioned tokens. It stops for
// good at the first lexical or I/O error; later calls return the same error.
type Reader struct {
	src    LineSource
	rest   string // unconsumed text of the current line
	line   int    // 1-based number of the current line
	column int    // 0-based byte offset of rest within the line
	err    error  // sticky terminal error, io.EOF included
}

func NewReader(src LineSource) *Reader {
	return &Reader{src: src}
}

// Next returns the next token, trivia included. It returns io.EOF when the
// source is exhausted.
func (r *Reader) Next() (PositionedToken, error) {
	if r.err != nil {
		return PositionedToken{}, r.err
	}
	for r.rest == "" {
		text, err := r.src.NextLine()
		if errors.Is(err, io.EOF) {
			r.err = io.EOF
			return PositionedToken{}, r.err
		}
		if err != nil {
			r.err = &diag.Error{Kind: diag.IOError, Line: r.line + 1, Err: err}
			return PositionedToken{}, r.err
		}
		r.line++
		r.column = 0
		r.rest = text
	}

	before := r.rest
	tok, after, err := Tokenize(before)
	if err != nil {
		var de *diag.Error
		if !errors.As(err, &de) {
			de = &diag.Error{Kind: diag.LexError, Near: before, Remainder: before, Err: err}
		}
		r.err = de.At(r.line, r.column)
		return PositionedToken{}, r.err
	}

	pt := PositionedToken{Token: tok, Line: r.line, Column: r.column}
	r.column += len(before) - len(after)
	r.rest = after
	return pt, nil
}

// ReadAll drains r, returning the tokens read before the first error.
func ReadAll(r *Reader) ([]PositionedToken, error) {
	var out []PositionedToken
	for {
		tok, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, tok)
	}
}
