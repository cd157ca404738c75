package compiler

import (
	"strings"
	"testing"

	"goscheme/pkg/diag"
)

// compileLast compiles src and returns its last top-level form.
func compileLast(t *testing.T, src string, opts Options) Form {
	t.Helper()
	prog, err := CompileString(src, opts)
	if err != nil {
		t.Fatalf("CompileString(%q): %v", src, err)
	}
	if len(prog.Forms) == 0 {
		t.Fatalf("CompileString(%q): no forms", src)
	}
	return prog.Forms[len(prog.Forms)-1]
}

func TestBuildExpressions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Number", "42", "42"},
		{"String", `"hi"`, `"hi"`},
		{"QuoteAbbrev", "'(a b)", "(quote (a b))"},
		{"QuoteForm", "(quote x)", "(quote x)"},
		{"QuasiQuote", "`(a ,b)", "(quasiquote (a ,b))"},
		{"Call", `(f 1 "s")`, `(f 1 "s")`},
		{"IfTwo", "(if a b)", "(if a b)"},
		{"IfThree", "(if a b c)", "(if a b c)"},
		{"LambdaFixed", "(lambda (x y) (f x y))", "(lambda (x y) (f x@1 y@1))"},
		{"LambdaRest", "(lambda args args)", "(lambda args args@1)"},
		{"LambdaPair", "(lambda (a . r) r)", "(lambda (a . r) r@1)"},
		{"Begin", "(begin 1 2)", "(begin 1 2)"},
		{"SetFree", "(set! x 1)", "(set! x 1)"},
		{"Body", "(lambda (x) (define y x) (set! x y) y)", "(lambda (x) (define y@1 x@1) (set! x@1 y@1) y@1)"},
		{"DefineProcedure", "(define (f a) a)", "(define f (lambda (a) a@1))"},
		{"DefineVariadic", "(define (f . xs) xs)", "(define f (lambda xs xs@1))"},
		{"Shadowing", "(lambda (x) (lambda (x) x))", "(lambda (x) (lambda (x) x@2))"},
		{"LetSyntax", "(let-syntax ((k (syntax-rules () ((_ v) v)))) (k 1))", "(let-syntax (k) 1)"},
		{"MacroShadowedByFormal", "(define-syntax k (syntax-rules () ((_) 1))) (lambda (k) (k))", "(lambda (k) (k@1))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileLast(t, tt.input, Options{})
			if got.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"QuoteNoOperand", "(quote)", "quote takes exactly one operand"},
		{"QuoteTwoOperands", "(quote a b)", "quote takes exactly one operand"},
		{"IfOneOperand", "(if a)", "if takes two or three operands"},
		{"SetOneOperand", "(set! x)", "set! takes exactly two operands"},
		{"SetNonIdentifier", "(set! 1 2)", "set! target must be an identifier"},
		{"EmptyCombination", "()", "empty combination"},
		{"DuplicateFormal", "(lambda (x x) x)", "duplicate formal parameter x"},
		{"ReservedFormal", "(lambda (if) 1)", "cannot bind reserved keyword if"},
		{"LambdaNoBody", "(lambda (x))", "lambda needs formals and a body"},
		{"BodyWithoutExpression", "(lambda (x) (define y 1))", "body has no expression"},
		{"DefinitionAfterExpression", "(lambda (x) x (define y 1) y)", "definition after an expression"},
		{"DefineInExpression", "(f (define x 1))", "only allowed at the top level"},
		{"KeywordAsVariable", "if", "reserved keyword if used as a variable"},
		{"BareSyntaxRules", "(syntax-rules () ())", "syntax-rules is only valid"},
		{"BareVector", "#(1 2)", "vector in expression position"},
		{"DottedExpression", "(a . b)", "dotted list in expression position"},
		{"MacroAsVariable", "(define-syntax k (syntax-rules () ((_) 1))) k", "macro keyword k used as a variable"},
		{"NonSyntaxRulesTransformer", "(define-syntax k (lambda (x) x))", "needs a syntax-rules transformer"},
		{"UnquoteOutside", ",x", "unquote outside of quasiquote"},
		{"DuplicateInternalDefine", "(lambda () (define a 1) (define a 2) a)", "duplicate definition of a"},
		{"DefineReserved", "(define if 1)", "cannot bind reserved keyword if"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.input, Options{})
			if !diag.IsKind(err, diag.SyntaxError) {
				t.Fatalf("expected syntax error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected message containing %q, got %q", tt.msg, err.Error())
			}
		})
	}
}

func TestUnboundPolicy(t *testing.T) {
	t.Run("DeferredAcceptsFreeSetTarget", func(t *testing.T) {
		got := compileLast(t, "(set! x 1)", Options{})
		a, ok := got.(*Assignment)
		if !ok {
			t.Fatalf("expected *Assignment, got %T", got)
		}
		if a.Target.Name != "x" || a.Target.Scope != RootScope {
			t.Errorf("target: expected free x in root scope, got %+v", a.Target)
		}
	})

	t.Run("StrictRejectsFreeSetTarget", func(t *testing.T) {
		_, err := CompileString("(set! x 1)", Options{Strict: true})
		if !diag.IsKind(err, diag.SyntaxError) || !strings.Contains(err.Error(), "unbound variable x") {
			t.Fatalf("expected unbound variable error, got %v", err)
		}
	})

	t.Run("StrictRejectsFreeReference", func(t *testing.T) {
		_, err := CompileString("(lambda (y) (+ y z))", Options{Strict: true, Globals: []string{"+"}})
		if err == nil || !strings.Contains(err.Error(), "unbound variable z") {
			t.Fatalf("expected unbound variable z, got %v", err)
		}
	})

	t.Run("StrictAcceptsDefinedAndGlobals", func(t *testing.T) {
		for _, src := range []string{
			"(define x 0) (set! x 1)",
			"(define (f) (g)) (define (g) 1)",
			"(lambda () (define (even? n) (odd? n)) (define (odd? n) (even? n)) (even? 1))",
			"(display (car xs))",
			"(define (f) x) (begin (define x 1))",
			"(define (f) x) (begin (begin (define x 1)) (define y x))",
			"(define-syntax def (syntax-rules () ((_ n v) (define n v)))) (define (f) z) (def z 1)",
		} {
			if _, err := CompileString(src, Options{Strict: true, Globals: []string{"display", "car", "xs"}}); err != nil {
				t.Errorf("%s: unexpected error %v", src, err)
			}
		}
	})
}

func TestStrictMacroTemplates(t *testing.T) {
	src := "(define-syntax m (syntax-rules () ((_ v) `(tmp ,v))))\n(m 1)"
	got := compileLast(t, src, Options{Strict: true})
	q, ok := got.(*QuasiQuotation)
	if !ok {
		t.Fatalf("expected *QuasiQuotation, got %T (%s)", got, got)
	}
	if q.Template.String() != "(tmp ,1)" {
		t.Errorf("expected template (tmp ,1), got %s", q.Template)
	}

	// a template name is not predeclared under its source spelling
	src = "(define-syntax def-hidden (syntax-rules () ((_ v) (define hidden v)))) (define (f) hidden) (def-hidden 1)"
	if _, err := CompileString(src, Options{Strict: true}); err == nil || !strings.Contains(err.Error(), "unbound variable hidden") {
		t.Errorf("expected unbound variable hidden, got %v", err)
	}
}

func TestBuildExprInScope(t *testing.T) {
	b, err := NewBuilder(Options{Strict: true})
	if err != nil {
		t.Fatal(err)
	}
	inner := b.Scopes().Push(RootScope)
	if err := b.Scopes().BindVariable(inner, "x"); err != nil {
		t.Fatal(err)
	}
	e, err := b.BuildExpr(mustParse(t, "(lambda (y . r) x)"), inner)
	if err != nil {
		t.Fatalf("BuildExpr: %v", err)
	}
	l := e.(*Lambda)
	if names := l.Args.Names(); len(names) != 2 || names[0] != "y" || names[1] != "r" {
		t.Errorf("formals: expected [y r], got %v", names)
	}
	v := l.Body.Return.(*Variable)
	if v.Name != "x" || v.Scope != inner {
		t.Errorf("expected x bound in scope %d, got %s", inner, v)
	}
	if _, err := b.BuildExpr(mustParse(t, "x"), RootScope); err == nil {
		t.Errorf("expected x to be unbound in the root scope")
	}
}

func TestBodySplicingAndMacroDefinitions(t *testing.T) {
	t.Run("BeginSplicesDefinitions", func(t *testing.T) {
		got := compileLast(t, "(lambda () (begin (define a 1) (define b 2)) (+ a b))", Options{})
		l := got.(*Lambda)
		if len(l.Body.Definitions) != 2 || len(l.Body.Commands) != 0 {
			t.Fatalf("expected 2 definitions and no commands, got %s", l.Body)
		}
		if l.Body.Return.String() != "(+ a@1 b@1)" {
			t.Errorf("return: expected (+ a@1 b@1), got %s", l.Body.Return)
		}
	})

	t.Run("MacroExpandingToDefine", func(t *testing.T) {
		src := "(define-syntax def (syntax-rules () ((_ n v) (define n v))))\n(lambda () (def a 1) a)"
		l := compileLast(t, src, Options{}).(*Lambda)
		if len(l.Body.Definitions) != 1 || l.Body.Definitions[0].Variable.Name != "a" {
			t.Fatalf("expected one definition of a, got %s", l.Body)
		}
		if l.Body.Return.String() != "a@1" {
			t.Errorf("return: expected a@1, got %s", l.Body.Return)
		}
	})

	t.Run("InternalDefineSyntax", func(t *testing.T) {
		src := "(lambda (x) (define-syntax twice (syntax-rules () ((_ e) (begin e e)))) (twice (f x)))"
		l := compileLast(t, src, Options{}).(*Lambda)
		// the expansion is a begin at body level, so it splices
		if len(l.Body.Commands) != 1 || l.Body.String() != "(f x@1) (f x@1)" {
			t.Errorf("expected body (f x@1) (f x@1), got %s", l.Body)
		}
	})

	t.Run("TopLevelBeginSplices", func(t *testing.T) {
		prog, err := CompileString("(begin (define a 1) (define b a))", Options{Strict: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(prog.Forms) != 2 {
			t.Fatalf("expected 2 forms, got %d", len(prog.Forms))
		}
		if prog.Forms[1].String() != "(define b a)" {
			t.Errorf("expected (define b a), got %s", prog.Forms[1])
		}
	})
}
