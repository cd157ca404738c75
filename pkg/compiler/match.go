package compiler

import "goscheme/pkg/syntax"

// binding is what a pattern variable captured: one datum, or, under an
// ellipsis, one binding per repetition.
type binding struct {
	Datum syntax.Datum
	Items []*binding
	Seq   bool
}

type bindings map[string]*binding

// sameFunc reports whether an input identifier matches a literal.
type sameFunc func(literal, input string) bool

// seqView returns the elements and tail of a list-shaped datum. tail is nil
// for a proper list.
func seqView(d syntax.Datum) (items []syntax.Datum, tail syntax.Datum, ok bool) {
	d = expandAbbrev(d)
	switch t := d.(type) {
	case syntax.List:
		return t, nil, true
	case *syntax.DottedPair:
		return t.Car, t.Cdr, true
	}
	return nil, nil, false
}

// match reports whether d matches p, recording captures in out. out may
// hold partial captures after a failed match.
func match(p Pattern, d syntax.Datum, out bindings, same sameFunc) bool {
	switch x := p.(type) {
	case *PatIdent:
		if x.Literal {
			id, ok := d.(syntax.Identifier)
			return ok && same(x.Name, string(id))
		}
		out[x.Name] = &binding{Datum: d}
		return true

	case *PatDatum:
		return syntax.Equal(x.Datum, expandAbbrev(d))

	case *PatList:
		items, tail, ok := seqView(d)
		if !ok || tail != nil || len(items) != len(x.Items) {
			return false
		}
		return matchSeq(x.Items, items, out, same)

	case *PatPair:
		var items []syntax.Datum
		var tail syntax.Datum
		if len(x.Items) > 0 {
			var ok bool
			if items, tail, ok = seqView(d); !ok || len(items) < len(x.Items) {
				return false
			}
		}
		if !matchSeq(x.Items, items[:len(x.Items)], out, same) {
			return false
		}
		rest := items[len(x.Items):]
		var remainder syntax.Datum
		switch {
		case len(x.Items) == 0:
			remainder = d
		case tail == nil:
			remainder = syntax.List(rest)
		default:
			remainder = syntax.NewDottedPair(rest, tail)
		}
		return match(x.Tail, remainder, out, same)

	case *PatEllipsisList:
		items, tail, ok := seqView(d)
		if !ok || tail != nil {
			return false
		}
		return matchEllipsis(x.Prefix, x.Repeat, x.Suffix, items, out, same)

	case *PatVector:
		v, ok := d.(syntax.Vector)
		if !ok || len(v) != len(x.Items) {
			return false
		}
		return matchSeq(x.Items, v, out, same)

	case *PatEllipsisVector:
		v, ok := d.(syntax.Vector)
		if !ok {
			return false
		}
		return matchEllipsis(x.Prefix, x.Repeat, x.Suffix, v, out, same)
	}
	return false
}

func matchSeq(ps []Pattern, items []syntax.Datum, out bindings, same sameFunc) bool {
	for i, p := range ps {
		if !match(p, items[i], out, same) {
			return false
		}
	}
	return true
}

// matchEllipsis matches the prefix, then as many repetitions as leave room
// for the suffix, then the suffix. Every variable under the ellipsis gets a
// sequence binding, empty when nothing repeats.
func matchEllipsis(prefix []Pattern, repeat Pattern, suffix []Pattern, items []syntax.Datum, out bindings, same sameFunc) bool {
	if len(items) < len(prefix)+len(suffix) {
		return false
	}
	if !matchSeq(prefix, items[:len(prefix)], out, same) {
		return false
	}
	vars := patternVars(repeat, nil)
	seqs := make(map[string]*binding, len(vars))
	for _, v := range vars {
		seqs[v] = &binding{Seq: true}
		out[v] = seqs[v]
	}
	end := len(items) - len(suffix)
	for _, it := range items[len(prefix):end] {
		one := bindings{}
		if !match(repeat, it, one, same) {
			return false
		}
		for _, v := range vars {
			seqs[v].Items = append(seqs[v].Items, one[v])
		}
	}
	return matchSeq(suffix, items[end:], out, same)
}
