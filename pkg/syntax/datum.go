package syntax

import (
	"fmt"
	"strings"
)

// Datum is an untyped syntax tree node. Data are values: once built they
// are never mutated, only read to build new trees.
type Datum interface {
	datumNode()
	String() string
}

// Boolean is #t or #f.
type Boolean bool

// Number wraps a Num.
type Number struct {
	Value Num
}

// Character is a #\ literal.
type Character rune

// String is a decoded string literal.
type String string

// Identifier is a symbol.
type Identifier string

// List is a proper list; elements keep source order.
//
//	(a b c)  →  List{a, b, c}
type List []Datum

// DottedPair is a list with a single non-list tail.
//
//	(a b . c)  →  DottedPair{Car: {a, b}, Cdr: c}
//
// Car is never empty and Cdr is never a List or DottedPair; NewDottedPair
// folds those shapes into the canonical one.
type DottedPair struct {
	Car []Datum
	Cdr Datum
}

// Quote is 'd.
type Quote struct{ Datum Datum }

// Backquote is `d.
type Backquote struct{ Datum Datum }

// Unquote is ,d.
type Unquote struct{ Datum Datum }

// UnquoteSplice is ,@d.
type UnquoteSplice struct{ Datum Datum }

// Vector is #(...).
type Vector []Datum

func (Boolean) datumNode()        {}
func (Number) datumNode()         {}
func (Character) datumNode()      {}
func (String) datumNode()         {}
func (Identifier) datumNode()     {}
func (List) datumNode()           {}
func (*DottedPair) datumNode()    {}
func (*Quote) datumNode()         {}
func (*Backquote) datumNode()     {}
func (*Unquote) datumNode()       {}
func (*UnquoteSplice) datumNode() {}
func (Vector) datumNode()         {}

// NewDottedPair builds (car... . cdr) in canonical form: a List cdr is
// spliced into a List, a DottedPair cdr is merged, an empty car yields cdr.
func NewDottedPair(car []Datum, cdr Datum) Datum {
	switch t := cdr.(type) {
	case List:
		return append(append(List{}, car...), t...)
	case *DottedPair:
		return NewDottedPair(append(append([]Datum{}, car...), t.Car...), t.Cdr)
	}
	if len(car) == 0 {
		return cdr
	}
	return &DottedPair{Car: car, Cdr: cdr}
}

func (b Boolean) String() string {
	if b {
		return "#t"
	}
	return "#f"
}

func (n Number) String() string { return n.Value.String() }

func (c Character) String() string {
	switch c {
	case ' ':
		return `#\space`
	case '\n':
		return `#\newline`
	}
	return `#\` + string(rune(c))
}

func (s String) String() string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(string(s)) + `"`
}

func (i Identifier) String() string { return string(i) }

func writeSeq(sb *strings.Builder, items []Datum) {
	for i, d := range items {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(d.String())
	}
}

func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	writeSeq(&sb, l)
	sb.WriteByte(')')
	return sb.String()
}

func (p *DottedPair) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	writeSeq(&sb, p.Car)
	sb.WriteString(" . ")
	sb.WriteString(p.Cdr.String())
	sb.WriteByte(')')
	return sb.String()
}

func (q *Quote) String() string         { return "'" + q.Datum.String() }
func (q *Backquote) String() string     { return "`" + q.Datum.String() }
func (q *Unquote) String() string       { return "," + q.Datum.String() }
func (q *UnquoteSplice) String() string { return ",@" + q.Datum.String() }

func (v Vector) String() string {
	var sb strings.Builder
	sb.WriteString("#(")
	writeSeq(&sb, v)
	sb.WriteByte(')')
	return sb.String()
}

// Equal reports whether a and b are structurally identical. Numbers compare
// by representation: 1 and 1.0 differ.
func Equal(a, b Datum) bool {
	switch x := a.(type) {
	case Boolean, Number, Character, String, Identifier:
		return a == b
	case List:
		y, ok := b.(List)
		return ok && equalSeq(x, y)
	case Vector:
		y, ok := b.(Vector)
		return ok && equalSeq(x, y)
	case *DottedPair:
		y, ok := b.(*DottedPair)
		return ok && equalSeq(x.Car, y.Car) && Equal(x.Cdr, y.Cdr)
	case *Quote:
		y, ok := b.(*Quote)
		return ok && Equal(x.Datum, y.Datum)
	case *Backquote:
		y, ok := b.(*Backquote)
		return ok && Equal(x.Datum, y.Datum)
	case *Unquote:
		y, ok := b.(*Unquote)
		return ok && Equal(x.Datum, y.Datum)
	case *UnquoteSplice:
		y, ok := b.(*UnquoteSplice)
		return ok && Equal(x.Datum, y.Datum)
	case nil:
		return b == nil
	}
	panic(fmt.Sprintf("syntax.Equal: unknown datum %T", a))
}

func equalSeq(a, b []Datum) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// AbbrevName returns the keyword an abbreviation stands for ("quote",
// "quasiquote", "unquote", "unquote-splicing") and the wrapped datum.
func AbbrevName(d Datum) (string, Datum, bool) {
	switch t := d.(type) {
	case *Quote:
		return "quote", t.Datum, true
	case *Backquote:
		return "quasiquote", t.Datum, true
	case *Unquote:
		return "unquote", t.Datum, true
	case *UnquoteSplice:
		return "unquote-splicing", t.Datum, true
	}
	return "", nil, false
}

// Abbrev wraps d in the abbreviation named by keyword, the inverse of
// AbbrevName. It returns nil for any other keyword.
func Abbrev(keyword string, d Datum) Datum {
	switch keyword {
	case "quote":
		return &Quote{d}
	case "quasiquote":
		return &Backquote{d}
	case "unquote":
		return &Unquote{d}
	case "unquote-splicing":
		return &UnquoteSplice{d}
	}
	return nil
}

// Map rebuilds d bottom-up, replacing each identifier with f(name).
func Map(d Datum, f func(Identifier) Datum) Datum {
	mapSeq := func(items []Datum) []Datum {
		out := make([]Datum, len(items))
		for i, it := range items {
			out[i] = Map(it, f)
		}
		return out
	}
	switch t := d.(type) {
	case Identifier:
		return f(t)
	case List:
		return List(mapSeq(t))
	case Vector:
		return Vector(mapSeq(t))
	case *DottedPair:
		return NewDottedPair(mapSeq(t.Car), Map(t.Cdr, f))
	case *Quote:
		return &Quote{Map(t.Datum, f)}
	case *Backquote:
		return &Backquote{Map(t.Datum, f)}
	case *Unquote:
		return &Unquote{Map(t.Datum, f)}
	case *UnquoteSplice:
		return &UnquoteSplice{Map(t.Datum, f)}
	}
	return d
}
