package compiler

import "sort"

// Keywords is the set of reserved words naming core special forms. A set is
// built once, before any parsing, and only read afterwards.
type Keywords map[string]struct{}

// DefaultKeywords returns the reserved words of the supported Scheme subset.
func DefaultKeywords() Keywords {
	kw := Keywords{}
	for _, name := range []string{
		"lambda",
		"if",
		"quote",
		"begin",
		"set!",
		"let-syntax",
		"letrec-syntax",
		"syntax-rules",
		"define",
		"define-syntax",
	} {
		kw[name] = struct{}{}
	}
	return kw
}

// Has reports whether name is reserved.
func (k Keywords) Has(name string) bool {
	_, ok := k[name]
	return ok
}

// Names returns the reserved words in sorted order.
func (k Keywords) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
