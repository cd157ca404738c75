package compiler

import (
	"fmt"
	"sort"
	"strings"

	"goscheme/pkg/diag"
)

// ScopeID addresses a Scope inside a Scopes arena.
type ScopeID int

const (
	// NoScope is the parent of the root scope.
	NoScope ScopeID = -1
	// RootScope is the top-level scope every arena starts with.
	RootScope ScopeID = 0
)

// Macro is a syntax-rules transformer together with the scope it was
// defined in; identifiers its templates introduce resolve there.
type Macro struct {
	Name        string
	Transformer *Transformer
	Scope       ScopeID
}

// Scope holds the variables and macro keywords bound by one lexical
// construct (the top level, a lambda, a let-syntax body).
type Scope struct {
	Parent    ScopeID
	Variables map[string]bool
	Macros    map[string]*Macro
}

// BindingKind says what a name resolved to.
type BindingKind int

const (
	VariableBinding BindingKind = iota
	MacroBinding
)

// Binding is the result of a successful Lookup.
type Binding struct {
	Kind  BindingKind
	Scope ScopeID // scope that binds the name
	Macro *Macro  // set for MacroBinding
}

// Scopes is an arena of scopes linked by parent index. A scope is never
// removed, so a ScopeID stays valid for the life of the arena.
type Scopes struct {
	arena    []Scope
	keywords Keywords
}

// NewScopes returns an arena holding only the root scope.
func NewScopes(kw Keywords) *Scopes {
	s := &Scopes{keywords: kw}
	s.arena = append(s.arena, newScope(NoScope))
	return s
}

func newScope(parent ScopeID) Scope {
	return Scope{
		Parent:    parent,
		Variables: make(map[string]bool),
		Macros:    make(map[string]*Macro),
	}
}

// Push opens a child of parent and returns its id.
func (s *Scopes) Push(parent ScopeID) ScopeID {
	if parent < 0 || int(parent) >= len(s.arena) {
		panic(fmt.Sprintf("Push: no scope %d", parent))
	}
	s.arena = append(s.arena, newScope(parent))
	return ScopeID(len(s.arena) - 1)
}

// Len returns the number of scopes in the arena.
func (s *Scopes) Len() int { return len(s.arena) }

// Parent returns the parent of id, or NoScope for the root.
func (s *Scopes) Parent(id ScopeID) ScopeID { return s.arena[id].Parent }

// BindVariable adds name to the variables of scope id. Reserved words can
// never be bound, renamed or not. A macro of the same name in that scope is
// replaced.
func (s *Scopes) BindVariable(id ScopeID, name string) error {
	if s.keywords.Has(BaseName(name)) {
		return diag.Errorf(diag.SyntaxError, name, "cannot bind reserved keyword %s", name)
	}
	sc := &s.arena[id]
	delete(sc.Macros, name)
	sc.Variables[name] = true
	return nil
}

// BindMacro adds keyword name to scope id.
func (s *Scopes) BindMacro(id ScopeID, name string, m *Macro) error {
	if s.keywords.Has(BaseName(name)) {
		return diag.Errorf(diag.SyntaxError, name, "cannot redefine reserved keyword %s", name)
	}
	sc := &s.arena[id]
	delete(sc.Variables, name)
	sc.Macros[name] = m
	return nil
}

// BoundHere reports whether scope id itself binds name.
func (s *Scopes) BoundHere(id ScopeID, name string) bool {
	sc := s.arena[id]
	return sc.Variables[name] || sc.Macros[name] != nil
}

// Lookup resolves name from scope id outwards; the innermost binding wins.
func (s *Scopes) Lookup(id ScopeID, name string) (Binding, bool) {
	for id != NoScope {
		sc := s.arena[id]
		if sc.Variables[name] {
			return Binding{Kind: VariableBinding, Scope: id}, true
		}
		if m := sc.Macros[name]; m != nil {
			return Binding{Kind: MacroBinding, Scope: id, Macro: m}, true
		}
		id = sc.Parent
	}
	return Binding{}, false
}

// String returns a deterministically ordered dump of the arena.
func (s *Scopes) String() string {
	var sb strings.Builder
	for i, sc := range s.arena {
		if i == int(RootScope) {
			sb.WriteString("Scope 0 (root):\n")
		} else {
			fmt.Fprintf(&sb, "Scope %d (parent %d):\n", i, sc.Parent)
		}
		vars := make([]string, 0, len(sc.Variables))
		for name := range sc.Variables {
			vars = append(vars, name)
		}
		sort.Strings(vars)
		for _, name := range vars {
			fmt.Fprintf(&sb, "  var   %s\n", name)
		}
		macros := make([]string, 0, len(sc.Macros))
		for name := range sc.Macros {
			macros = append(macros, name)
		}
		sort.Strings(macros)
		for _, name := range macros {
			fmt.Fprintf(&sb, "  macro %-20s  (%d rules, defined in scope %d)\n",
				name, len(sc.Macros[name].Transformer.Rules), sc.Macros[name].Scope)
		}
	}
	return sb.String()
}
