package compiler

import (
	"fmt"
	"strings"

	"goscheme/pkg/syntax"
)

// Form is anything that may appear at the top level or in a body: an
// expression or a definition.
type Form interface {
	formNode()
	String() string
}

// Expr is implemented by every node that produces a value.
type Expr interface {
	Form
	exprNode()
}

//  Expression nodes

// Variable is a reference to a name. Scope is the scope that binds it, or
// RootScope when the name is free.
//
//	(f x)
//	   ^  Variable{Name: "x", Scope: 3}
type Variable struct {
	Name  string
	Scope ScopeID
}

func (*Variable) formNode() {}
func (*Variable) exprNode() {}
func (v *Variable) String() string {
	if v.Scope == RootScope {
		return v.Name
	}
	return fmt.Sprintf("%s@%d", v.Name, v.Scope)
}

// SelfEvaluating is a boolean, number, character or string constant.
type SelfEvaluating struct {
	Datum syntax.Datum
}

func (*SelfEvaluating) formNode()        {}
func (*SelfEvaluating) exprNode()        {}
func (s *SelfEvaluating) String() string { return s.Datum.String() }

// Quotation is (quote D). D is kept verbatim.
type Quotation struct {
	Datum syntax.Datum
}

func (*Quotation) formNode()        {}
func (*Quotation) exprNode()        {}
func (q *Quotation) String() string { return "(quote " + q.Datum.String() + ")" }

// QuasiQuotation is `D. The template is carried as a datum and not expanded.
type QuasiQuotation struct {
	Template syntax.Datum
}

func (*QuasiQuotation) formNode()        {}
func (*QuasiQuotation) exprNode()        {}
func (q *QuasiQuotation) String() string { return "(quasiquote " + q.Template.String() + ")" }

// ProcedureCall is (operator operand...).
type ProcedureCall struct {
	Operator Expr
	Operands []Expr
}

func (*ProcedureCall) formNode() {}
func (*ProcedureCall) exprNode() {}
func (c *ProcedureCall) String() string {
	parts := []string{c.Operator.String()}
	for _, o := range c.Operands {
		parts = append(parts, o.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// ArgsKind is the shape of a lambda parameter list.
type ArgsKind int

const (
	FixedArgs ArgsKind = iota // (a b c)
	RestArgs                  // args
	PairArgs                  // (a b . rest)
)

// LambdaArgs holds the formals of a lambda. Rest is empty for FixedArgs,
// Fixed is empty for RestArgs.
type LambdaArgs struct {
	Kind  ArgsKind
	Fixed []string
	Rest  string
}

func (a LambdaArgs) String() string {
	switch a.Kind {
	case RestArgs:
		return a.Rest
	case PairArgs:
		return "(" + strings.Join(a.Fixed, " ") + " . " + a.Rest + ")"
	}
	return "(" + strings.Join(a.Fixed, " ") + ")"
}

// Names returns every name the formals bind, in order.
func (a LambdaArgs) Names() []string {
	names := append([]string{}, a.Fixed...)
	if a.Kind != FixedArgs {
		names = append(names, a.Rest)
	}
	return names
}

// Lambda is (lambda formals body...). Scope is the scope opened for the
// formals and the body.
type Lambda struct {
	Args  LambdaArgs
	Scope ScopeID
	Body  *Body
}

func (*Lambda) formNode() {}
func (*Lambda) exprNode() {}
func (l *Lambda) String() string {
	return "(lambda " + l.Args.String() + " " + l.Body.String() + ")"
}

// Conditional is (if test consequent [alternate]). Alternate may be nil.
type Conditional struct {
	Test       Expr
	Consequent Expr
	Alternate  Expr
}

func (*Conditional) formNode() {}
func (*Conditional) exprNode() {}
func (c *Conditional) String() string {
	if c.Alternate == nil {
		return fmt.Sprintf("(if %s %s)", c.Test, c.Consequent)
	}
	return fmt.Sprintf("(if %s %s %s)", c.Test, c.Consequent, c.Alternate)
}

// Assignment is (set! variable value).
type Assignment struct {
	Target *Variable
	Value  Expr
}

func (*Assignment) formNode() {}
func (*Assignment) exprNode() {}
func (a *Assignment) String() string {
	return fmt.Sprintf("(set! %s %s)", a.Target, a.Value)
}

// MacroUse is a use of a syntax-rules keyword that has not been expanded
// yet. Builder.Resolve expands it.
type MacroUse struct {
	Keyword string
	Args    []syntax.Datum
	Form    syntax.Datum

	macro *Macro
	scope ScopeID
}

func (*MacroUse) formNode()        {}
func (*MacroUse) exprNode()        {}
func (m *MacroUse) String() string { return m.Form.String() }

// Sequence is (begin expr...) in expression position.
type Sequence struct {
	Exprs []Expr
}

func (*Sequence) formNode() {}
func (*Sequence) exprNode() {}
func (s *Sequence) String() string {
	parts := []string{"begin"}
	for _, e := range s.Exprs {
		parts = append(parts, e.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// MacroBlock is let-syntax (Recursive false) or letrec-syntax. Keywords are
// bound in Scope, which also encloses the body.
type MacroBlock struct {
	Recursive bool
	Keywords  []string
	Scope     ScopeID
	Body      *Body
}

func (*MacroBlock) formNode() {}
func (*MacroBlock) exprNode() {}
func (m *MacroBlock) String() string {
	head := "let-syntax"
	if m.Recursive {
		head = "letrec-syntax"
	}
	return fmt.Sprintf("(%s (%s) %s)", head, strings.Join(m.Keywords, " "), m.Body)
}

//  Definitions

// Definition is (define variable value) at the top level or at the start
// of a body. (define (f . formals) body...) arrives here as a Lambda value.
type Definition struct {
	Variable *Variable
	Value    Expr
}

func (*Definition) formNode() {}
func (d *Definition) String() string {
	return fmt.Sprintf("(define %s %s)", d.Variable, d.Value)
}

// SyntaxDefinition records a top-level define-syntax. The macro itself
// lives in the scope arena.
type SyntaxDefinition struct {
	Keyword string
	Macro   *Macro
}

func (*SyntaxDefinition) formNode() {}
func (s *SyntaxDefinition) String() string {
	return fmt.Sprintf("(define-syntax %s)", s.Keyword)
}

// Body is the body of a lambda or a syntax block: definitions, then
// commands, then exactly one return expression.
type Body struct {
	Definitions []*Definition
	Commands    []Expr
	Return      Expr
}

func (b *Body) String() string {
	var parts []string
	for _, d := range b.Definitions {
		parts = append(parts, d.String())
	}
	for _, c := range b.Commands {
		parts = append(parts, c.String())
	}
	parts = append(parts, b.Return.String())
	return strings.Join(parts, " ")
}
