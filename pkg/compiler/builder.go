package compiler

import (
	"goscheme/pkg/syntax"
)

// DefaultMaxExpansions bounds how deeply macro expansions may nest.
const DefaultMaxExpansions = 1000

// Options configures a Builder. The zero value is usable.
type Options struct {
	// Strict rejects references to names that are bound nowhere. When
	// false, free names build as Variables of the root scope and are left
	// for the evaluator to check.
	Strict bool

	// Globals are names bound in the root scope before building starts.
	Globals []string

	// KeepMacroUses leaves macro uses unexpanded as MacroUse nodes.
	KeepMacroUses bool

	// MaxExpansions bounds the nesting of macro expansions (0 means
	// DefaultMaxExpansions).
	MaxExpansions int

	// Keywords is the reserved-word set (nil means DefaultKeywords()).
	Keywords Keywords

	// Gensym supplies fresh names; sharing one between builders keeps
	// their renamed identifiers distinct.
	Gensym *Gensym
}

// alias records where a renamed identifier came from: the template name
// and the scope of the macro whose template introduced it.
type alias struct {
	Original string
	Scope    ScopeID
}

// Builder turns data into forms. It owns the scope arena, so one Builder
// should be used for one program.
type Builder struct {
	opts      Options
	keywords  Keywords
	scopes    *Scopes
	aliases   map[string]alias
	expander  *Expander
	expanding int
}

// NewBuilder returns a Builder whose root scope binds opts.Globals.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Keywords == nil {
		opts.Keywords = DefaultKeywords()
	}
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = DefaultMaxExpansions
	}
	b := &Builder{
		opts:     opts,
		keywords: opts.Keywords,
		scopes:   NewScopes(opts.Keywords),
		aliases:  make(map[string]alias),
		expander: NewExpander(opts.Gensym),
	}
	b.expander.Original = b.original
	for _, g := range opts.Globals {
		if err := b.scopes.BindVariable(RootScope, g); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Scopes returns the scope arena the builder binds into.
func (b *Builder) Scopes() *Scopes { return b.scopes }

//  Name resolution

type resolutionKind int

const (
	resVariable resolutionKind = iota
	resMacro
	resKeyword
	resFree
)

type resolution struct {
	kind  resolutionKind
	name  string
	scope ScopeID
	macro *Macro
}

// resolve looks name up from scope outwards. A renamed identifier that is
// not bound under its fresh name resolves as its original in the scope of
// the macro that introduced it.
func (b *Builder) resolve(name string, scope ScopeID) resolution {
	for {
		if bd, ok := b.scopes.Lookup(scope, name); ok {
			if bd.Kind == MacroBinding {
				return resolution{kind: resMacro, name: name, scope: bd.Scope, macro: bd.Macro}
			}
			return resolution{kind: resVariable, name: name, scope: bd.Scope}
		}
		a, ok := b.aliases[name]
		if !ok {
			break
		}
		name, scope = a.Original, a.Scope
	}
	if b.keywords.Has(name) {
		return resolution{kind: resKeyword, name: name}
	}
	return resolution{kind: resFree, name: name, scope: RootScope}
}

// original strips every level of renaming from name.
func (b *Builder) original(name string) string {
	for {
		a, ok := b.aliases[name]
		if !ok {
			return name
		}
		name = a.Original
	}
}

// strip replaces renamed identifiers in quoted data by their originals.
func (b *Builder) strip(d syntax.Datum) syntax.Datum {
	return syntax.Map(d, func(id syntax.Identifier) syntax.Datum {
		return syntax.Identifier(b.original(string(id)))
	})
}

// keywordOf returns the reserved word a list form starts with, or "".
func (b *Builder) keywordOf(d syntax.Datum, scope ScopeID) (string, *Macro) {
	var head syntax.Datum
	switch t := d.(type) {
	case syntax.List:
		if len(t) == 0 {
			return "", nil
		}
		head = t[0]
	case *syntax.DottedPair:
		head = t.Car[0]
	default:
		return "", nil
	}
	id, ok := head.(syntax.Identifier)
	if !ok {
		return "", nil
	}
	r := b.resolve(string(id), scope)
	switch r.kind {
	case resKeyword:
		return r.name, nil
	case resMacro:
		return "", r.macro
	}
	return "", nil
}

//  Expressions

// BuildExpr builds d as an expression in scope.
func (b *Builder) BuildExpr(d syntax.Datum, scope ScopeID) (Expr, error) {
	return b.expr(d, scope)
}

func (b *Builder) expr(d syntax.Datum, scope ScopeID) (Expr, error) {
	switch t := d.(type) {
	case syntax.Identifier:
		return b.variable(t, scope)
	case syntax.Boolean, syntax.Number, syntax.Character, syntax.String:
		return &SelfEvaluating{Datum: d}, nil
	case *syntax.Quote:
		return &Quotation{Datum: b.strip(t.Datum)}, nil
	case *syntax.Backquote:
		return &QuasiQuotation{Template: b.strip(t.Datum)}, nil
	case *syntax.Unquote, *syntax.UnquoteSplice:
		return nil, syntaxErr(d, "unquote outside of quasiquote")
	case syntax.Vector:
		return nil, syntaxErr(d, "vector in expression position must be quoted")
	case *syntax.DottedPair:
		if _, m := b.keywordOf(d, scope); m != nil {
			return b.macroUse(m, d, scope)
		}
		return nil, syntaxErr(d, "dotted list in expression position")
	case syntax.List:
		if len(t) == 0 {
			return nil, syntaxErr(d, "empty combination")
		}
		kw, m := b.keywordOf(t, scope)
		switch {
		case m != nil:
			return b.macroUse(m, t, scope)
		case kw != "":
			return b.special(kw, t, scope)
		}
		return b.call(t, scope)
	}
	return nil, syntaxErr(d, "cannot build expression")
}

func (b *Builder) variable(id syntax.Identifier, scope ScopeID) (*Variable, error) {
	r := b.resolve(string(id), scope)
	switch r.kind {
	case resKeyword:
		return nil, syntaxErr(id, "reserved keyword %s used as a variable", r.name)
	case resMacro:
		return nil, syntaxErr(id, "macro keyword %s used as a variable", r.name)
	case resFree:
		if b.opts.Strict {
			return nil, syntaxErr(id, "unbound variable %s", r.name)
		}
	}
	return &Variable{Name: r.name, Scope: r.scope}, nil
}

func (b *Builder) call(list syntax.List, scope ScopeID) (Expr, error) {
	op, err := b.expr(list[0], scope)
	if err != nil {
		return nil, err
	}
	c := &ProcedureCall{Operator: op}
	for _, a := range list[1:] {
		e, err := b.expr(a, scope)
		if err != nil {
			return nil, err
		}
		c.Operands = append(c.Operands, e)
	}
	return c, nil
}

func (b *Builder) special(kw string, list syntax.List, scope ScopeID) (Expr, error) {
	switch kw {
	case "quote":
		if len(list) != 2 {
			return nil, syntaxErr(list, "quote takes exactly one operand")
		}
		return &Quotation{Datum: b.strip(list[1])}, nil

	case "if":
		if len(list) != 3 && len(list) != 4 {
			return nil, syntaxErr(list, "if takes two or three operands")
		}
		exprs, err := b.exprs(list[1:], scope)
		if err != nil {
			return nil, err
		}
		c := &Conditional{Test: exprs[0], Consequent: exprs[1]}
		if len(exprs) == 3 {
			c.Alternate = exprs[2]
		}
		return c, nil

	case "set!":
		if len(list) != 3 {
			return nil, syntaxErr(list, "set! takes exactly two operands")
		}
		id, ok := list[1].(syntax.Identifier)
		if !ok {
			return nil, syntaxErr(list, "set! target must be an identifier")
		}
		target, err := b.variable(id, scope)
		if err != nil {
			return nil, err
		}
		value, err := b.expr(list[2], scope)
		if err != nil {
			return nil, err
		}
		return &Assignment{Target: target, Value: value}, nil

	case "lambda":
		if len(list) < 3 {
			return nil, syntaxErr(list, "lambda needs formals and a body")
		}
		inner := b.scopes.Push(scope)
		args, err := b.formals(list[1], inner)
		if err != nil {
			return nil, err
		}
		body, err := b.body(list[2:], inner, list)
		if err != nil {
			return nil, err
		}
		return &Lambda{Args: args, Scope: inner, Body: body}, nil

	case "begin":
		if len(list) < 2 {
			return nil, syntaxErr(list, "begin needs at least one expression")
		}
		exprs, err := b.exprs(list[1:], scope)
		if err != nil {
			return nil, err
		}
		return &Sequence{Exprs: exprs}, nil

	case "let-syntax", "letrec-syntax":
		return b.macroBlock(kw == "letrec-syntax", list, scope)

	case "define", "define-syntax":
		return nil, syntaxErr(list, "%s is only allowed at the top level or at the start of a body", kw)

	case "syntax-rules":
		return nil, syntaxErr(list, "syntax-rules is only valid as a macro transformer")
	}
	return nil, syntaxErr(list, "unsupported special form %s", kw)
}

func (b *Builder) exprs(items []syntax.Datum, scope ScopeID) ([]Expr, error) {
	out := make([]Expr, 0, len(items))
	for _, it := range items {
		e, err := b.expr(it, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// formals binds the parameters of a lambda in scope.
func (b *Builder) formals(d syntax.Datum, scope ScopeID) (LambdaArgs, error) {
	var args LambdaArgs
	seen := make(map[string]bool)
	bind := func(x syntax.Datum) (string, error) {
		id, ok := x.(syntax.Identifier)
		if !ok {
			return "", syntaxErr(d, "formal parameter %s is not an identifier", x)
		}
		name := string(id)
		if seen[name] {
			return "", syntaxErr(d, "duplicate formal parameter %s", name)
		}
		seen[name] = true
		return name, b.scopes.BindVariable(scope, name)
	}

	switch t := d.(type) {
	case syntax.Identifier:
		name, err := bind(t)
		if err != nil {
			return args, err
		}
		return LambdaArgs{Kind: RestArgs, Rest: name}, nil
	case syntax.List:
		args.Kind = FixedArgs
		for _, x := range t {
			name, err := bind(x)
			if err != nil {
				return args, err
			}
			args.Fixed = append(args.Fixed, name)
		}
		return args, nil
	case *syntax.DottedPair:
		args.Kind = PairArgs
		for _, x := range t.Car {
			name, err := bind(x)
			if err != nil {
				return args, err
			}
			args.Fixed = append(args.Fixed, name)
		}
		rest, err := bind(t.Cdr)
		if err != nil {
			return args, err
		}
		args.Rest = rest
		return args, nil
	}
	return args, syntaxErr(d, "malformed lambda formals")
}

// transformer builds a macro from a (syntax-rules ...) form whose head must
// resolve to the syntax-rules keyword.
func (b *Builder) transformer(name string, spec syntax.Datum, scope, defScope ScopeID) (*Macro, error) {
	list, ok := spec.(syntax.List)
	if !ok || len(list) < 2 {
		return nil, syntaxErr(spec, "macro %s needs a (syntax-rules (literal...) rule...) transformer", name)
	}
	if kw, _ := b.keywordOf(list, scope); kw != "syntax-rules" {
		return nil, syntaxErr(spec, "macro %s needs a syntax-rules transformer", name)
	}
	t, err := ParseTransformer(list[1], list[2:])
	if err != nil {
		return nil, err
	}
	tracer().Debugf("macro %s: %d rules, scope %d", name, len(t.Rules), defScope)
	return &Macro{Name: name, Transformer: t, Scope: defScope}, nil
}

func (b *Builder) macroBlock(recursive bool, list syntax.List, scope ScopeID) (Expr, error) {
	if len(list) < 3 {
		return nil, syntaxErr(list, "%s needs bindings and a body", list[0])
	}
	specs, ok := list[1].(syntax.List)
	if !ok {
		return nil, syntaxErr(list, "%s bindings must be a list", list[0])
	}
	inner := b.scopes.Push(scope)
	defScope := scope
	if recursive {
		defScope = inner
	}
	block := &MacroBlock{Recursive: recursive, Scope: inner}
	for _, s := range specs {
		pair, ok := s.(syntax.List)
		if !ok || len(pair) != 2 {
			return nil, syntaxErr(s, "syntax binding must be (keyword transformer)")
		}
		id, ok := pair[0].(syntax.Identifier)
		if !ok {
			return nil, syntaxErr(s, "syntax binding keyword is not an identifier")
		}
		name := string(id)
		if b.scopes.BoundHere(inner, name) {
			return nil, syntaxErr(s, "duplicate syntax binding %s", name)
		}
		m, err := b.transformer(name, pair[1], scope, defScope)
		if err != nil {
			return nil, err
		}
		if err := b.scopes.BindMacro(inner, name, m); err != nil {
			return nil, err
		}
		block.Keywords = append(block.Keywords, name)
	}
	body, err := b.body(list[2:], inner, list)
	if err != nil {
		return nil, err
	}
	block.Body = body
	return block, nil
}

//  Macros

// expand rewrites one macro use and records the aliases it introduced.
func (b *Builder) expand(m *Macro, form syntax.Datum) (syntax.Datum, error) {
	exp, err := b.expander.Expand(m, form)
	if err != nil {
		return nil, err
	}
	for fresh, orig := range exp.Renamed {
		b.aliases[fresh] = alias{Original: orig, Scope: m.Scope}
	}
	return exp.Datum, nil
}

func (b *Builder) macroUse(m *Macro, form syntax.Datum, scope ScopeID) (Expr, error) {
	if b.opts.KeepMacroUses {
		return newMacroUse(m, form, scope), nil
	}
	if b.expanding >= b.opts.MaxExpansions {
		return nil, syntaxErr(form, "macro expansion of %s nests deeper than %d", m.Name, b.opts.MaxExpansions)
	}
	b.expanding++
	defer func() { b.expanding-- }()

	d, err := b.expand(m, form)
	if err != nil {
		return nil, err
	}
	return b.expr(d, scope)
}

func newMacroUse(m *Macro, form syntax.Datum, scope ScopeID) *MacroUse {
	u := &MacroUse{Keyword: m.Name, Form: form, macro: m, scope: scope}
	if args, ok := dropKeyword(form); ok {
		if items, tail, ok := seqView(args); ok && tail == nil {
			u.Args = items
		} else {
			u.Args = []syntax.Datum{args}
		}
	}
	return u
}

// Resolve expands u until the result is no longer a macro use, then builds
// it in the scope where u occurred. Macro uses nested inside the result are
// left alone when the builder keeps macro uses.
func (b *Builder) Resolve(u *MacroUse) (Expr, error) {
	form, m := u.Form, u.macro
	for i := 0; ; i++ {
		if i >= b.opts.MaxExpansions {
			return nil, syntaxErr(u.Form, "macro expansion of %s does not terminate after %d steps", u.Keyword, i)
		}
		d, err := b.expand(m, form)
		if err != nil {
			return nil, err
		}
		kw, next := b.keywordOf(d, u.scope)
		if next == nil {
			if kw == "define" || kw == "define-syntax" {
				return nil, syntaxErr(d, "%s is only allowed at the top level or at the start of a body", kw)
			}
			return b.expr(d, u.scope)
		}
		form, m = d, next
	}
}
