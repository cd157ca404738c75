package syntax

import (
	"errors"
	"io"

	"goscheme/pkg/diag"
)

// TokenSource is anything that yields positioned tokens; *Reader is one.
// Next returns io.EOF when no tokens remain.
type TokenSource interface {
	Next() (PositionedToken, error)
}

// DefaultMaxDepth bounds list/vector/abbreviation nesting.
const DefaultMaxDepth = 10000

// Parser builds data from a token stream by recursive descent with a single
// token of lookahead.
//
// Grammar:
//
//	datum  = simple | list | vector | abbrev
//	simple = BOOLEAN | NUMBER | CHARACTER | STRING | IDENTIFIER
//	list   = "(" datum* ")" | "(" datum+ "." datum ")"
//	vector = "#(" datum* ")"
//	abbrev = ("'" | "`" | "," | ",@") datum
type Parser struct {
	src      TokenSource
	peeked   *PositionedToken
	err      error
	depth    int
	MaxDepth int
}

func NewParser(src TokenSource) *Parser {
	return &Parser{src: src, MaxDepth: DefaultMaxDepth}
}

// fill loads the lookahead token, skipping trivia.
func (p *Parser) fill() error {
	if p.peeked != nil {
		return nil
	}
	if p.err != nil {
		return p.err
	}
	for {
		tok, err := p.src.Next()
		if err != nil {
			p.err = err
			return err
		}
		if tok.IsTrivia() {
			continue
		}
		p.peeked = &tok
		return nil
	}
}

// peek returns the next significant token without consuming it.
func (p *Parser) peek() (PositionedToken, error) {
	if err := p.fill(); err != nil {
		return PositionedToken{}, err
	}
	return *p.peeked, nil
}

// advance consumes and returns the next significant token.
func (p *Parser) advance() (PositionedToken, error) {
	tok, err := p.peek()
	if err == nil {
		p.peeked = nil
	}
	return tok, err
}

// AtEnd reports whether only trivia remains. A lexical or I/O error is
// returned instead of being treated as the end.
func (p *Parser) AtEnd() (bool, error) {
	_, err := p.peek()
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

func unexpected(tok PositionedToken, msg string) error {
	return &diag.Error{
		Kind:   diag.UnexpectedToken,
		Line:   tok.Line,
		Column: tok.Column,
		Near:   tok.Lexeme,
		Msg:    msg,
	}
}

func missingClose(open PositionedToken) error {
	return &diag.Error{
		Kind:   diag.MissingCloseParen,
		Line:   open.Line,
		Column: open.Column,
		Near:   open.Lexeme,
		Msg:    "input ended before the closing )",
	}
}

// ParseDatum parses exactly one datum.
func (p *Parser) ParseDatum() (Datum, error) {
	tok, err := p.peek()
	if errors.Is(err, io.EOF) {
		return nil, &diag.Error{Kind: diag.TokenStreamEnded, Msg: "stream ended"}
	}
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case BOOLEAN:
		p.advance()
		return Boolean(tok.Bool), nil
	case NUMBER:
		p.advance()
		return Number{Value: tok.Num}, nil
	case CHARACTER:
		p.advance()
		return Character(tok.Char), nil
	case STRING:
		p.advance()
		return String(tok.Text), nil
	case IDENTIFIER:
		p.advance()
		return Identifier(tok.Text), nil
	case PUNCTUATOR:
		switch tok.Text {
		case "(":
			return p.nested(tok, p.parseList)
		case "#(":
			return p.nested(tok, p.parseVector)
		case "'", "`", ",", ",@":
			return p.nested(tok, p.parseAbbrev)
		}
	}
	return nil, unexpected(tok, "")
}

// nested guards recursion depth around one compound datum.
func (p *Parser) nested(open PositionedToken, parse func(PositionedToken) (Datum, error)) (Datum, error) {
	if p.depth >= p.MaxDepth {
		return nil, unexpected(open, "nesting too deep")
	}
	p.depth++
	defer func() { p.depth-- }()
	p.advance()
	return parse(open)
}

// element parses one datum inside a compound opened by open; running out of
// tokens there means the close paren is missing.
func (p *Parser) element(open PositionedToken) (Datum, error) {
	d, err := p.ParseDatum()
	if diag.IsKind(err, diag.TokenStreamEnded) {
		return nil, missingClose(open)
	}
	return d, err
}

// peekInside peeks within a compound opened by open.
func (p *Parser) peekInside(open PositionedToken) (PositionedToken, error) {
	tok, err := p.peek()
	if errors.Is(err, io.EOF) {
		return tok, missingClose(open)
	}
	return tok, err
}

func (p *Parser) parseList(open PositionedToken) (Datum, error) {
	var car List
	for {
		tok, err := p.peekInside(open)
		if err != nil {
			return nil, err
		}
		switch {
		case tok.IsPunct(")"):
			p.advance()
			if car == nil {
				car = List{}
			}
			return car, nil
		case tok.IsPunct("."):
			if len(car) == 0 {
				return nil, unexpected(tok, "dotted list needs a datum before the dot")
			}
			p.advance()
			return p.parseCdr(open, car)
		}
		d, err := p.element(open)
		if err != nil {
			return nil, err
		}
		car = append(car, d)
	}
}

func (p *Parser) parseCdr(open PositionedToken, car []Datum) (Datum, error) {
	cdr, err := p.element(open)
	if err != nil {
		return nil, err
	}
	tok, err := p.peekInside(open)
	if err != nil {
		return nil, err
	}
	if !tok.IsPunct(")") {
		return nil, unexpected(tok, "expected ) after the tail of a dotted list")
	}
	p.advance()
	return NewDottedPair(car, cdr), nil
}

func (p *Parser) parseVector(open PositionedToken) (Datum, error) {
	vec := Vector{}
	for {
		tok, err := p.peekInside(open)
		if err != nil {
			return nil, err
		}
		if tok.IsPunct(")") {
			p.advance()
			return vec, nil
		}
		d, err := p.element(open)
		if err != nil {
			return nil, err
		}
		vec = append(vec, d)
	}
}

func (p *Parser) parseAbbrev(open PositionedToken) (Datum, error) {
	d, err := p.ParseDatum()
	if err != nil {
		return nil, err
	}
	switch open.Text {
	case "'":
		return &Quote{d}, nil
	case "`":
		return &Backquote{d}, nil
	case ",":
		return &Unquote{d}, nil
	}
	return &UnquoteSplice{d}, nil
}

// Stream is the datum-level stream: one top-level datum per Next call, io.EOF
// when only trivia remains, and a sticky first error.
type Stream struct {
	p         *Parser
	err       error
	line, col int
}

// NewStream reads data from src.
func NewStream(src TokenSource) *Stream {
	return &Stream{p: NewParser(src)}
}

// NewSourceStream reads data from the lines of src.
func NewSourceStream(src LineSource) *Stream {
	return NewStream(NewReader(src))
}

func (s *Stream) Next() (Datum, error) {
	if s.err != nil {
		return nil, s.err
	}
	end, err := s.p.AtEnd()
	if err == nil && end {
		err = io.EOF
	}
	if err != nil {
		s.err = err
		return nil, err
	}
	tok, _ := s.p.peek()
	s.line, s.col = tok.Line, tok.Column
	d, err := s.p.ParseDatum()
	if err != nil {
		s.err = err
		return nil, err
	}
	return d, nil
}

// Pos returns the position of the first token of the datum most recently
// returned by Next.
func (s *Stream) Pos() (line, column int) { return s.line, s.col }

// ParseAll drains s.
func ParseAll(s *Stream) ([]Datum, error) {
	var out []Datum
	for {
		d, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
}

// ParseString parses every datum in src.
func ParseString(src string) ([]Datum, error) {
	return ParseAll(NewSourceStream(NewStringSource(src)))
}
