package compiler

import (
	"goscheme/pkg/syntax"
)

// instance holds the state of one expansion: the macro being expanded and
// the fresh name given to each identifier its template introduces.
type instance struct {
	keyword string
	form    syntax.Datum
	gensym  *Gensym
	fresh   map[string]string // template name → fresh name
	renamed map[string]string // fresh name → template name
}

func (in *instance) rename(name string) string {
	if f, ok := in.fresh[name]; ok {
		return f
	}
	f := in.gensym.Fresh(name)
	in.fresh[name] = f
	in.renamed[f] = name
	return f
}

func (in *instance) instantiate(t Template, env bindings) (syntax.Datum, error) {
	switch x := t.(type) {
	case *TmplIdent:
		if !x.Var {
			return syntax.Identifier(in.rename(x.Name)), nil
		}
		b := env[x.Name]
		if b.Seq {
			return nil, syntaxErr(in.form, "in expansion of %s: pattern variable %s needs an ellipsis in the template", in.keyword, x.Name)
		}
		return b.Datum, nil
	case *TmplDatum:
		return x.Datum, nil
	case *TmplAbbrev:
		d, err := in.instantiate(x.Template, env)
		if err != nil {
			return nil, err
		}
		return syntax.Abbrev(x.Keyword, d), nil
	case *TmplList:
		items, err := in.elems(x.Items, env)
		if err != nil {
			return nil, err
		}
		return syntax.List(items), nil
	case *TmplPair:
		items, err := in.elems(x.Items, env)
		if err != nil {
			return nil, err
		}
		tail, err := in.instantiate(x.Tail, env)
		if err != nil {
			return nil, err
		}
		return syntax.NewDottedPair(items, tail), nil
	case *TmplVector:
		items, err := in.elems(x.Items, env)
		if err != nil {
			return nil, err
		}
		return syntax.Vector(items), nil
	}
	panic("instantiate: unknown template node")
}

func (in *instance) elems(elems []TemplateElem, env bindings) ([]syntax.Datum, error) {
	out := make([]syntax.Datum, 0, len(elems))
	for _, e := range elems {
		if e.Ellipses == 0 {
			d, err := in.instantiate(e.Template, env)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
			continue
		}
		ds, err := in.repeat(e.Template, e.vars, env, e.Ellipses)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	return out, nil
}

// repeat instantiates t once per item of the sequences bound to its
// controlling variables. depth > 1 flattens nested repetitions.
func (in *instance) repeat(t Template, vars []string, env bindings, depth int) ([]syntax.Datum, error) {
	var control []string
	for _, v := range vars {
		if env[v].Seq {
			control = append(control, v)
		}
	}
	if len(control) == 0 {
		return nil, syntaxErr(in.form, "in expansion of %s: too many ellipses after %s", in.keyword, vars[0])
	}
	n := len(env[control[0]].Items)
	for _, v := range control[1:] {
		if len(env[v].Items) != n {
			return nil, syntaxErr(in.form, "in expansion of %s: mismatched ellipsis counts for %s (%d) and %s (%d)",
				in.keyword, control[0], n, v, len(env[v].Items))
		}
	}

	var out []syntax.Datum
	for i := 0; i < n; i++ {
		sub := make(bindings, len(env))
		for k, b := range env {
			sub[k] = b
		}
		for _, v := range control {
			sub[v] = env[v].Items[i]
		}
		if depth > 1 {
			ds, err := in.repeat(t, vars, sub, depth-1)
			if err != nil {
				return nil, err
			}
			out = append(out, ds...)
			continue
		}
		d, err := in.instantiate(t, sub)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
