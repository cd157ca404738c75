package compiler

import (
	"goscheme/pkg/syntax"
)

type formKind int

const (
	exprForm formKind = iota
	defineForm
	defineSyntaxForm
	beginForm
)

// classify expands macro uses at the head of d until it is no longer one
// and reports what kind of form remains.
func (b *Builder) classify(d syntax.Datum, scope ScopeID) (formKind, syntax.Datum, error) {
	for i := 0; ; i++ {
		kw, m := b.keywordOf(d, scope)
		switch {
		case m != nil && !b.opts.KeepMacroUses:
			if i >= b.opts.MaxExpansions {
				return 0, nil, syntaxErr(d, "macro expansion of %s does not terminate after %d steps", m.Name, i)
			}
			next, err := b.expand(m, d)
			if err != nil {
				return 0, nil, err
			}
			d = next
			continue
		case kw == "define":
			return defineForm, d, nil
		case kw == "define-syntax":
			return defineSyntaxForm, d, nil
		case kw == "begin":
			return beginForm, d, nil
		}
		return exprForm, d, nil
	}
}

// splitDefine returns the name and value datum of a define form.
// (define (f . formals) body...) becomes f and (lambda formals body...).
func splitDefine(d syntax.Datum) (syntax.Identifier, syntax.Datum, error) {
	list, ok := d.(syntax.List)
	if !ok || len(list) < 2 {
		return "", nil, syntaxErr(d, "malformed define")
	}
	switch target := list[1].(type) {
	case syntax.Identifier:
		if len(list) != 3 {
			return "", nil, syntaxErr(d, "define of a variable takes exactly one value")
		}
		return target, list[2], nil
	case syntax.List, *syntax.DottedPair:
		items, tail, _ := seqView(target)
		if len(items) == 0 {
			return "", nil, syntaxErr(d, "define needs a procedure name")
		}
		name, ok := items[0].(syntax.Identifier)
		if !ok {
			return "", nil, syntaxErr(d, "procedure name must be an identifier")
		}
		if len(list) < 3 {
			return "", nil, syntaxErr(d, "procedure definition of %s has no body", name)
		}
		var formals syntax.Datum = syntax.List(items[1:])
		if tail != nil {
			formals = syntax.NewDottedPair(items[1:], tail)
		}
		lambda := append(syntax.List{syntax.Identifier("lambda"), formals}, list[2:]...)
		return name, lambda, nil
	}
	return "", nil, syntaxErr(d, "define target must be an identifier or a procedure header")
}

// defineSyntax binds the keyword of a define-syntax form in scope.
func (b *Builder) defineSyntax(d syntax.Datum, scope ScopeID) (*Macro, error) {
	list, ok := d.(syntax.List)
	if !ok || len(list) != 3 {
		return nil, syntaxErr(d, "define-syntax takes a keyword and a transformer")
	}
	id, ok := list[1].(syntax.Identifier)
	if !ok {
		return nil, syntaxErr(d, "define-syntax keyword is not an identifier")
	}
	m, err := b.transformer(string(id), list[2], scope, scope)
	if err != nil {
		return nil, err
	}
	if err := b.scopes.BindMacro(scope, string(id), m); err != nil {
		return nil, err
	}
	return m, nil
}

type pendingDef struct {
	name  string
	value syntax.Datum
}

// body builds the body of a lambda or syntax block in scope. Definitions
// are collected and bound first, so every value and command sees all of
// them. whole is the enclosing form, for error messages.
func (b *Builder) body(forms []syntax.Datum, scope ScopeID, whole syntax.Datum) (*Body, error) {
	var defs []pendingDef
	var commands []syntax.Datum
	defined := make(map[string]bool)

	queue := append([]syntax.Datum{}, forms...)
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		kind, d, err := b.classify(d, scope)
		if err != nil {
			return nil, err
		}
		switch kind {
		case beginForm:
			list, ok := d.(syntax.List)
			if !ok {
				return nil, syntaxErr(d, "malformed begin")
			}
			queue = append(append([]syntax.Datum{}, list[1:]...), queue...)
		case defineForm, defineSyntaxForm:
			if len(commands) > 0 {
				return nil, syntaxErr(d, "definition after an expression in a body")
			}
			if kind == defineSyntaxForm {
				if _, err := b.defineSyntax(d, scope); err != nil {
					return nil, err
				}
				continue
			}
			name, value, err := splitDefine(d)
			if err != nil {
				return nil, err
			}
			if defined[string(name)] {
				return nil, syntaxErr(d, "duplicate definition of %s in a body", name)
			}
			defined[string(name)] = true
			if err := b.scopes.BindVariable(scope, string(name)); err != nil {
				return nil, err
			}
			defs = append(defs, pendingDef{name: string(name), value: value})
		default:
			commands = append(commands, d)
		}
	}
	if len(commands) == 0 {
		return nil, syntaxErr(whole, "body has no expression")
	}

	body := &Body{}
	for _, pd := range defs {
		v, err := b.expr(pd.value, scope)
		if err != nil {
			return nil, err
		}
		body.Definitions = append(body.Definitions, &Definition{
			Variable: &Variable{Name: pd.name, Scope: scope},
			Value:    v,
		})
	}
	exprs, err := b.exprs(commands, scope)
	if err != nil {
		return nil, err
	}
	body.Commands = exprs[:len(exprs)-1]
	body.Return = exprs[len(exprs)-1]
	return body, nil
}

// BuildTopLevel builds one top-level datum. A begin at the top level
// splices its forms, so one datum may yield several forms.
func (b *Builder) BuildTopLevel(d syntax.Datum) ([]Form, error) {
	kind, d, err := b.classify(d, RootScope)
	if err != nil {
		return nil, err
	}
	switch kind {
	case beginForm:
		list, ok := d.(syntax.List)
		if !ok {
			return nil, syntaxErr(d, "malformed begin")
		}
		var out []Form
		for _, sub := range list[1:] {
			forms, err := b.BuildTopLevel(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, forms...)
		}
		return out, nil

	case defineSyntaxForm:
		m, err := b.defineSyntax(d, RootScope)
		if err != nil {
			return nil, err
		}
		return []Form{&SyntaxDefinition{Keyword: m.Name, Macro: m}}, nil

	case defineForm:
		name, value, err := splitDefine(d)
		if err != nil {
			return nil, err
		}
		if err := b.scopes.BindVariable(RootScope, string(name)); err != nil {
			return nil, err
		}
		v, err := b.expr(value, RootScope)
		if err != nil {
			return nil, err
		}
		def := &Definition{Variable: &Variable{Name: string(name), Scope: RootScope}, Value: v}
		return []Form{def}, nil
	}

	e, err := b.expr(d, RootScope)
	if err != nil {
		return nil, err
	}
	return []Form{e}, nil
}

// Predeclare binds the names of the top-level defines among data in the
// root scope, so that strict building accepts forward references. Defines
// inside a top-level begin or produced by a macro use count too, and a
// top-level define-syntax of a new name is bound so that later data can be
// expanded.
//
// Macro uses are expanded with a private gensym, so building afterwards
// draws the same fresh names it would have without predeclaration. A name
// introduced by a template is not predeclared. Expansion errors are left
// for building to report.
func (b *Builder) Predeclare(data []syntax.Datum) error {
	p := &predeclarer{
		b:       b,
		ex:      NewExpander(&Gensym{next: b.expander.Gensym.next}),
		renamed: make(map[string]string),
	}
	p.ex.Original = p.original
	for _, d := range data {
		if err := p.form(d, false, 0); err != nil {
			return err
		}
	}
	return nil
}

type predeclarer struct {
	b       *Builder
	ex      *Expander
	renamed map[string]string // fresh name → template name
}

func (p *predeclarer) original(name string) string {
	if t, ok := p.renamed[name]; ok {
		return p.b.original(t)
	}
	return p.b.original(name)
}

// head is keywordOf for data that may hold names from private expansions.
func (p *predeclarer) head(d syntax.Datum) (string, *Macro) {
	var first syntax.Datum
	switch t := d.(type) {
	case syntax.List:
		if len(t) == 0 {
			return "", nil
		}
		first = t[0]
	case *syntax.DottedPair:
		first = t.Car[0]
	}
	id, ok := first.(syntax.Identifier)
	if !ok {
		return "", nil
	}
	name := string(id)
	if t, ok := p.renamed[name]; ok {
		name = t
	}
	r := p.b.resolve(name, RootScope)
	switch r.kind {
	case resKeyword:
		return r.name, nil
	case resMacro:
		return "", r.macro
	}
	return "", nil
}

// form predeclares d. expanded is set once d came out of a macro use.
func (p *predeclarer) form(d syntax.Datum, expanded bool, depth int) error {
	if depth > p.b.opts.MaxExpansions {
		return nil
	}
	for i := 0; ; i++ {
		kw, m := p.head(d)
		if m != nil {
			if p.b.opts.KeepMacroUses || i >= p.b.opts.MaxExpansions {
				return nil
			}
			exp, err := p.ex.Expand(m, d)
			if err != nil {
				return nil
			}
			for fresh, name := range exp.Renamed {
				p.renamed[fresh] = name
			}
			d, expanded = exp.Datum, true
			continue
		}
		switch kw {
		case "define":
			name, _, err := splitDefine(d)
			if err != nil {
				return err
			}
			if _, fresh := p.renamed[string(name)]; fresh {
				return nil
			}
			return p.b.scopes.BindVariable(RootScope, string(name))
		case "define-syntax":
			// a name already bound keeps its binding until the form is built
			list, ok := d.(syntax.List)
			if expanded || !ok || len(list) < 2 {
				return nil
			}
			if id, ok := list[1].(syntax.Identifier); ok && !p.b.scopes.BoundHere(RootScope, string(id)) {
				_, _ = p.b.defineSyntax(d, RootScope)
			}
		case "begin":
			if list, ok := d.(syntax.List); ok {
				for _, sub := range list[1:] {
					if err := p.form(sub, expanded, depth+1); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
}
