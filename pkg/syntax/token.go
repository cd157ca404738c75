package syntax

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	STRING     TokenType = iota // "..." with escapes decoded into Text
	CHARACTER                   // #\a, #\space, #\newline
	BOOLEAN                     // #t, #f
	NUMBER                      // 32-bit integer or float
	IDENTIFIER                  // symbol name
	PUNCTUATOR                  // ( ) #( ' ` ,@ , .
	WHITESPACE                  // run of blanks, no payload
	COMMENT                     // ; to end of line, no payload
)

var tokenNames = [...]string{
	STRING:     "STRING",
	CHARACTER:  "CHARACTER",
	BOOLEAN:    "BOOLEAN",
	NUMBER:     "NUMBER",
	IDENTIFIER: "IDENTIFIER",
	PUNCTUATOR: "PUNCTUATOR",
	WHITESPACE: "WHITESPACE",
	COMMENT:    "COMMENT",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Num is a Scheme number: exactly one of a signed 32-bit integer or a
// 32-bit float.
type Num struct {
	IsFloat bool
	Int     int32
	Float   float32
}

// Int returns the integer Num i.
func Int(i int32) Num { return Num{Int: i} }

// Float returns the float Num f.
func Float(f float32) Num { return Num{IsFloat: true, Float: f} }

func (n Num) String() string {
	if !n.IsFloat {
		return strconv.FormatInt(int64(n.Int), 10)
	}
	s := strconv.FormatFloat(float64(n.Float), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// Token is a single lexical unit produced by Tokenize.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Text   string // decoded string, identifier name or punctuator
	Char   rune
	Bool   bool
	Num    Num
}

func (t Token) String() string {
	switch t.Type {
	case STRING:
		return fmt.Sprintf("%-10s %q", t.Type, t.Text)
	case CHARACTER:
		return fmt.Sprintf("%-10s %q", t.Type, t.Char)
	case BOOLEAN:
		return fmt.Sprintf("%-10s %t", t.Type, t.Bool)
	case NUMBER:
		kind := "int"
		if t.Num.IsFloat {
			kind = "float"
		}
		return fmt.Sprintf("%-10s %s (%s)", t.Type, t.Num, kind)
	case IDENTIFIER, PUNCTUATOR:
		return fmt.Sprintf("%-10s %s", t.Type, t.Text)
	}
	return t.Type.String()
}

// IsTrivia reports whether t is whitespace or a comment.
func (t Token) IsTrivia() bool { return t.Type == WHITESPACE || t.Type == COMMENT }

// IsPunct reports whether t is the punctuator p.
func (t Token) IsPunct(p string) bool { return t.Type == PUNCTUATOR && t.Text == p }

// PositionedToken is a Token tagged with the position of its first character.
type PositionedToken struct {
	Token
	Line   int // 1-based
	Column int // 0-based, in bytes
}

func (p PositionedToken) String() string {
	return fmt.Sprintf("%s  line %d col %d", p.Token, p.Line, p.Column)
}
