package compiler

import (
	"goscheme/pkg/diag"
	"goscheme/pkg/syntax"
)

// Ellipsis is the identifier that marks a repeated pattern or template.
const Ellipsis = "..."

// Transformer is a parsed (syntax-rules (literal...) rule...).
type Transformer struct {
	Literals []string
	Rules    []*SyntaxRule

	literal map[string]bool
}

// SyntaxRule is one (pattern template) pair. The keyword position of the
// pattern is dropped; Pattern matches the operands of a use.
type SyntaxRule struct {
	Pattern  Pattern
	Template Template

	depth map[string]int // pattern variable → number of enclosing ellipses
}

//  Patterns

// Pattern is implemented by every pattern node.
type Pattern interface {
	patternNode()
}

// PatIdent is a pattern variable, or a literal when the name is listed in
// the transformer's literals.
type PatIdent struct {
	Name    string
	Literal bool
}

// PatDatum is a constant matched by structural equality.
type PatDatum struct {
	Datum syntax.Datum
}

// PatList matches a proper list of exactly len(Items) elements.
type PatList struct {
	Items []Pattern
}

// PatPair matches at least len(Items) elements, Tail matches the rest.
type PatPair struct {
	Items []Pattern
	Tail  Pattern
}

// PatEllipsisList is (prefix... repeat ... suffix...).
type PatEllipsisList struct {
	Prefix []Pattern
	Repeat Pattern
	Suffix []Pattern
}

// PatVector matches a vector of exactly len(Items) elements.
type PatVector struct {
	Items []Pattern
}

// PatEllipsisVector is #(prefix... repeat ... suffix...).
type PatEllipsisVector struct {
	Prefix []Pattern
	Repeat Pattern
	Suffix []Pattern
}

func (*PatIdent) patternNode()          {}
func (*PatDatum) patternNode()          {}
func (*PatList) patternNode()           {}
func (*PatPair) patternNode()           {}
func (*PatEllipsisList) patternNode()   {}
func (*PatVector) patternNode()         {}
func (*PatEllipsisVector) patternNode() {}

//  Templates

// Template is implemented by every template node.
type Template interface {
	templateNode()
}

// TmplIdent is a pattern variable (Var) or an identifier the template
// introduces.
type TmplIdent struct {
	Name string
	Var  bool
}

// TmplAbbrev is a template written under 'x, `x, ,x or ,@x. Keyword is the
// abbreviation's name ("quote", "quasiquote", ...).
type TmplAbbrev struct {
	Keyword  string
	Template Template
}

// TmplDatum is a constant copied into the output.
type TmplDatum struct {
	Datum syntax.Datum
}

// TemplateElem is an element of a list or vector template followed by
// Ellipses ellipsis markers. Ellipses > 0 repeats the element once per
// item of the sequences bound to the variables inside it.
type TemplateElem struct {
	Template Template
	Ellipses int

	vars []string
}

// TmplList is a proper list template.
type TmplList struct {
	Items []TemplateElem
}

// TmplPair is a dotted list template.
type TmplPair struct {
	Items []TemplateElem
	Tail  Template
}

// TmplVector is a vector template.
type TmplVector struct {
	Items []TemplateElem
}

func (*TmplIdent) templateNode()  {}
func (*TmplDatum) templateNode()  {}
func (*TmplAbbrev) templateNode() {}
func (*TmplList) templateNode()   {}
func (*TmplPair) templateNode()   {}
func (*TmplVector) templateNode() {}

func syntaxErr(near syntax.Datum, format string, args ...any) *diag.Error {
	n := ""
	if near != nil {
		n = near.String()
	}
	return diag.Errorf(diag.SyntaxError, n, format, args...)
}

// ParseTransformer parses the literal list and the rules of a
// syntax-rules form.
func ParseTransformer(literals syntax.Datum, rules []syntax.Datum) (*Transformer, error) {
	t := &Transformer{literal: make(map[string]bool)}
	lits, ok := literals.(syntax.List)
	if !ok {
		return nil, syntaxErr(literals, "syntax-rules literals must be a list of identifiers")
	}
	for _, l := range lits {
		id, ok := l.(syntax.Identifier)
		if !ok {
			return nil, syntaxErr(l, "syntax-rules literal is not an identifier")
		}
		if id == Ellipsis {
			return nil, syntaxErr(l, "ellipsis cannot be a literal")
		}
		t.Literals = append(t.Literals, string(id))
		t.literal[string(id)] = true
	}
	for _, r := range rules {
		rule, err := t.parseRule(r)
		if err != nil {
			return nil, err
		}
		t.Rules = append(t.Rules, rule)
	}
	return t, nil
}

// IsLiteral reports whether name is in the literal list.
func (t *Transformer) IsLiteral(name string) bool { return t.literal[name] }

func (t *Transformer) parseRule(r syntax.Datum) (*SyntaxRule, error) {
	pair, ok := r.(syntax.List)
	if !ok || len(pair) != 2 {
		return nil, syntaxErr(r, "syntax rule must be (pattern template)")
	}
	operands, ok := dropKeyword(pair[0])
	if !ok {
		return nil, syntaxErr(pair[0], "pattern must be a list headed by the macro keyword")
	}
	rule := &SyntaxRule{depth: make(map[string]int)}
	pat, err := t.parsePattern(operands, 0, rule.depth)
	if err != nil {
		return nil, err
	}
	tmpl, err := parseTemplate(pair[1], rule.depth)
	if err != nil {
		return nil, err
	}
	rule.Pattern, rule.Template = pat, tmpl
	return rule, nil
}

// dropKeyword returns the operands of a pattern or use, i.e. everything
// after the first element.
func dropKeyword(d syntax.Datum) (syntax.Datum, bool) {
	switch t := d.(type) {
	case syntax.List:
		if len(t) == 0 {
			return nil, false
		}
		return t[1:], true
	case *syntax.DottedPair:
		return syntax.NewDottedPair(t.Car[1:], t.Cdr), true
	}
	return nil, false
}

// expandAbbrev rewrites 'x and friends into (quote x) lists.
func expandAbbrev(d syntax.Datum) syntax.Datum {
	if name, inner, ok := syntax.AbbrevName(d); ok {
		return syntax.List{syntax.Identifier(name), inner}
	}
	return d
}

// splitEllipsis finds the single ellipsis in items. It returns -1 when
// there is none.
func splitEllipsis(items []syntax.Datum, whole syntax.Datum) (int, error) {
	at := -1
	for i, it := range items {
		if id, ok := it.(syntax.Identifier); ok && id == Ellipsis {
			if i == 0 {
				return 0, syntaxErr(whole, "ellipsis must follow a pattern")
			}
			if at >= 0 {
				return 0, syntaxErr(whole, "more than one ellipsis in a pattern list")
			}
			at = i
		}
	}
	return at, nil
}

func (t *Transformer) parsePatterns(items []syntax.Datum, depth int, vars map[string]int) ([]Pattern, error) {
	out := make([]Pattern, 0, len(items))
	for _, it := range items {
		p, err := t.parsePattern(it, depth, vars)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (t *Transformer) parseEllipsis(items []syntax.Datum, at, depth int, vars map[string]int) (prefix []Pattern, repeat Pattern, suffix []Pattern, err error) {
	if prefix, err = t.parsePatterns(items[:at-1], depth, vars); err != nil {
		return
	}
	if repeat, err = t.parsePattern(items[at-1], depth+1, vars); err != nil {
		return
	}
	suffix, err = t.parsePatterns(items[at+1:], depth, vars)
	return
}

func (t *Transformer) parsePattern(d syntax.Datum, depth int, vars map[string]int) (Pattern, error) {
	d = expandAbbrev(d)
	switch p := d.(type) {
	case syntax.Identifier:
		name := string(p)
		if name == Ellipsis {
			return nil, syntaxErr(p, "misplaced ellipsis in pattern")
		}
		if t.literal[name] {
			return &PatIdent{Name: name, Literal: true}, nil
		}
		if _, dup := vars[name]; dup {
			return nil, syntaxErr(p, "duplicate pattern variable %s", name)
		}
		vars[name] = depth
		return &PatIdent{Name: name}, nil

	case syntax.List:
		at, err := splitEllipsis(p, p)
		if err != nil {
			return nil, err
		}
		if at < 0 {
			items, err := t.parsePatterns(p, depth, vars)
			if err != nil {
				return nil, err
			}
			return &PatList{Items: items}, nil
		}
		prefix, repeat, suffix, err := t.parseEllipsis(p, at, depth, vars)
		if err != nil {
			return nil, err
		}
		return &PatEllipsisList{Prefix: prefix, Repeat: repeat, Suffix: suffix}, nil

	case *syntax.DottedPair:
		for _, it := range append(append([]syntax.Datum{}, p.Car...), p.Cdr) {
			if id, ok := it.(syntax.Identifier); ok && id == Ellipsis {
				return nil, syntaxErr(p, "ellipsis is not allowed in a dotted pattern")
			}
		}
		items, err := t.parsePatterns(p.Car, depth, vars)
		if err != nil {
			return nil, err
		}
		tail, err := t.parsePattern(p.Cdr, depth, vars)
		if err != nil {
			return nil, err
		}
		return &PatPair{Items: items, Tail: tail}, nil

	case syntax.Vector:
		at, err := splitEllipsis(p, p)
		if err != nil {
			return nil, err
		}
		if at < 0 {
			items, err := t.parsePatterns(p, depth, vars)
			if err != nil {
				return nil, err
			}
			return &PatVector{Items: items}, nil
		}
		prefix, repeat, suffix, err := t.parseEllipsis(p, at, depth, vars)
		if err != nil {
			return nil, err
		}
		return &PatEllipsisVector{Prefix: prefix, Repeat: repeat, Suffix: suffix}, nil
	}
	return &PatDatum{Datum: d}, nil
}

// parseTemplate parses d against the pattern variables of its rule.
func parseTemplate(d syntax.Datum, vars map[string]int) (Template, error) {
	if name, inner, ok := syntax.AbbrevName(d); ok {
		sub, err := parseTemplate(inner, vars)
		if err != nil {
			return nil, err
		}
		return &TmplAbbrev{Keyword: name, Template: sub}, nil
	}
	switch t := d.(type) {
	case syntax.Identifier:
		name := string(t)
		if name == Ellipsis {
			return nil, syntaxErr(t, "misplaced ellipsis in template")
		}
		_, isVar := vars[name]
		return &TmplIdent{Name: name, Var: isVar}, nil
	case syntax.List:
		items, err := parseTemplateElems(t, t, vars)
		if err != nil {
			return nil, err
		}
		return &TmplList{Items: items}, nil
	case *syntax.DottedPair:
		items, err := parseTemplateElems(t.Car, t, vars)
		if err != nil {
			return nil, err
		}
		tail, err := parseTemplate(t.Cdr, vars)
		if err != nil {
			return nil, err
		}
		return &TmplPair{Items: items, Tail: tail}, nil
	case syntax.Vector:
		items, err := parseTemplateElems(t, t, vars)
		if err != nil {
			return nil, err
		}
		return &TmplVector{Items: items}, nil
	}
	return &TmplDatum{Datum: d}, nil
}

func parseTemplateElems(items []syntax.Datum, whole syntax.Datum, vars map[string]int) ([]TemplateElem, error) {
	var out []TemplateElem
	for i := 0; i < len(items); i++ {
		if isEllipsis(items[i]) {
			return nil, syntaxErr(whole, "ellipsis must follow a template element")
		}
		sub, err := parseTemplate(items[i], vars)
		if err != nil {
			return nil, err
		}
		elem := TemplateElem{Template: sub}
		for i+1 < len(items) && isEllipsis(items[i+1]) {
			elem.Ellipses++
			i++
		}
		if elem.Ellipses > 0 {
			elem.vars = templateVars(sub, nil)
			if len(elem.vars) == 0 {
				return nil, syntaxErr(whole, "no pattern variable before ellipsis in template")
			}
		}
		out = append(out, elem)
	}
	return out, nil
}

func isEllipsis(d syntax.Datum) bool {
	id, ok := d.(syntax.Identifier)
	return ok && id == Ellipsis
}

// templateVars appends the pattern variables used in t to acc, once each.
func templateVars(t Template, acc []string) []string {
	switch x := t.(type) {
	case *TmplIdent:
		if !x.Var {
			return acc
		}
		for _, v := range acc {
			if v == x.Name {
				return acc
			}
		}
		return append(acc, x.Name)
	case *TmplAbbrev:
		acc = templateVars(x.Template, acc)
	case *TmplList:
		for _, it := range x.Items {
			acc = templateVars(it.Template, acc)
		}
	case *TmplPair:
		for _, it := range x.Items {
			acc = templateVars(it.Template, acc)
		}
		acc = templateVars(x.Tail, acc)
	case *TmplVector:
		for _, it := range x.Items {
			acc = templateVars(it.Template, acc)
		}
	}
	return acc
}

// patternVars appends the variables bound by p to acc.
func patternVars(p Pattern, acc []string) []string {
	switch x := p.(type) {
	case *PatIdent:
		if !x.Literal {
			acc = append(acc, x.Name)
		}
	case *PatList:
		for _, it := range x.Items {
			acc = patternVars(it, acc)
		}
	case *PatPair:
		for _, it := range x.Items {
			acc = patternVars(it, acc)
		}
		acc = patternVars(x.Tail, acc)
	case *PatEllipsisList:
		acc = ellipsisVars(x.Prefix, x.Repeat, x.Suffix, acc)
	case *PatVector:
		for _, it := range x.Items {
			acc = patternVars(it, acc)
		}
	case *PatEllipsisVector:
		acc = ellipsisVars(x.Prefix, x.Repeat, x.Suffix, acc)
	}
	return acc
}

func ellipsisVars(prefix []Pattern, repeat Pattern, suffix []Pattern, acc []string) []string {
	for _, it := range prefix {
		acc = patternVars(it, acc)
	}
	acc = patternVars(repeat, acc)
	for _, it := range suffix {
		acc = patternVars(it, acc)
	}
	return acc
}
