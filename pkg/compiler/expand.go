package compiler

import (
	"strconv"
	"strings"

	"goscheme/pkg/diag"
	"goscheme/pkg/syntax"
)

// Gensym hands out fresh identifiers. Fresh names have the form name#N;
// '#' never occurs in a source identifier, so they cannot clash with one.
type Gensym struct {
	next int
}

// Fresh returns a new name derived from name.
func (g *Gensym) Fresh(name string) string {
	g.next++
	return BaseName(name) + "#" + strconv.Itoa(g.next)
}

// BaseName strips the renaming suffix from a fresh name.
func BaseName(name string) string {
	if i := strings.IndexByte(name, '#'); i > 0 {
		return name[:i]
	}
	return name
}

// Expansion is the result of expanding one macro use.
type Expansion struct {
	Rule    int          // index of the rule that matched
	Datum   syntax.Datum // the instantiated template
	Renamed map[string]string
}

// Expander applies syntax-rules transformers.
type Expander struct {
	Gensym *Gensym

	// Original maps an identifier to the name it was renamed from, if any.
	// Literals match when both sides map to the same name.
	Original func(string) string
}

// NewExpander returns an expander drawing fresh names from g.
func NewExpander(g *Gensym) *Expander {
	if g == nil {
		g = &Gensym{}
	}
	return &Expander{Gensym: g}
}

// SameIdentifier reports whether input matches the literal lit.
func (e *Expander) SameIdentifier(lit, input string) bool {
	if e.Original == nil {
		return BaseName(lit) == BaseName(input)
	}
	return e.Original(lit) == e.Original(input)
}

// Expand rewrites the macro use form with the first matching rule of m.
// Every identifier the template introduces is renamed; Renamed maps each
// fresh name back to the template identifier.
func (e *Expander) Expand(m *Macro, form syntax.Datum) (*Expansion, error) {
	args, ok := dropKeyword(form)
	if !ok {
		return nil, syntaxErr(form, "malformed use of macro %s", m.Name)
	}
	for i, rule := range m.Transformer.Rules {
		env := bindings{}
		if !match(rule.Pattern, args, env, e.SameIdentifier) {
			continue
		}
		in := &instance{
			keyword: m.Name,
			form:    form,
			gensym:  e.Gensym,
			fresh:   make(map[string]string),
			renamed: make(map[string]string),
		}
		d, err := in.instantiate(rule.Template, env)
		if err != nil {
			return nil, err
		}
		tracer().Debugf("expand %s with rule %d: %s", m.Name, i, d)
		return &Expansion{Rule: i, Datum: d, Renamed: in.renamed}, nil
	}
	return nil, diag.Errorf(diag.SyntaxError, form.String(), "no syntax-rules pattern of %s matches", m.Name)
}
