package compiler

import (
	"strings"
	"testing"

	"goscheme/pkg/diag"
	"goscheme/pkg/syntax"
)

func mustParse(t *testing.T, src string) syntax.Datum {
	t.Helper()
	data, err := syntax.ParseString(src)
	if err != nil || len(data) != 1 {
		t.Fatalf("ParseString(%q): %v (%d data)", src, err, len(data))
	}
	return data[0]
}

// mustTransformer parses a whole (syntax-rules ...) form.
func mustTransformer(t *testing.T, src string) (*Transformer, error) {
	t.Helper()
	list := mustParse(t, src).(syntax.List)
	return ParseTransformer(list[1], list[2:])
}

func TestEllipsisCaptureCount(t *testing.T) {
	tr, err := mustTransformer(t, "(syntax-rules () ((_ name ...) (list name ...)))")
	if err != nil {
		t.Fatal(err)
	}
	e := NewExpander(nil)
	for k := 0; k <= 5; k++ {
		args := syntax.List{}
		for i := 0; i < k; i++ {
			args = append(args, syntax.Identifier("v"))
		}
		env := bindings{}
		if !match(tr.Rules[0].Pattern, args, env, e.SameIdentifier) {
			t.Fatalf("k=%d: expected a match", k)
		}
		b := env["name"]
		if b == nil || !b.Seq || len(b.Items) != k {
			t.Errorf("k=%d: expected %d captured items, got %+v", k, k, b)
		}
	}
}

func TestHygieneAtTwoUseSites(t *testing.T) {
	src := `
(define-syntax my-or
  (syntax-rules ()
    ((_ a b) ((lambda (tmp) (if tmp tmp b)) a))))
(define tmp 5)
(my-or #f tmp)
(my-or tmp 1)`

	for _, strict := range []bool{false, true} {
		prog, err := CompileString(src, Options{Strict: strict})
		if err != nil {
			t.Fatalf("strict=%v: %v", strict, err)
		}
		if len(prog.Forms) != 4 {
			t.Fatalf("expected 4 forms, got %d", len(prog.Forms))
		}

		var bound []string
		for i, f := range prog.Forms[2:] {
			call, ok := f.(*ProcedureCall)
			if !ok {
				t.Fatalf("use %d: expected *ProcedureCall, got %T", i, f)
			}
			l, ok := call.Operator.(*Lambda)
			if !ok {
				t.Fatalf("use %d: expected lambda operator, got %T", i, call.Operator)
			}
			name := l.Args.Fixed[0]
			if name == "tmp" || BaseName(name) != "tmp" {
				t.Errorf("use %d: expected a renamed tmp, got %s", i, name)
			}
			bound = append(bound, name)

			cond := l.Body.Return.(*Conditional)
			test := cond.Test.(*Variable)
			if test.Name != name || test.Scope != l.Scope {
				t.Errorf("use %d: test should reference the lambda's own parameter, got %s", i, test)
			}
		}
		if bound[0] == bound[1] {
			t.Errorf("both expansions bound the same name %s", bound[0])
		}

		// the use-site tmp passed as b still refers to the top-level tmp
		first := prog.Forms[2].(*ProcedureCall).Operator.(*Lambda)
		alt := first.Body.Return.(*Conditional).Alternate.(*Variable)
		if alt.Name != "tmp" || alt.Scope != RootScope {
			t.Errorf("alternate: expected top-level tmp, got %s", alt)
		}
		second := prog.Forms[3].(*ProcedureCall)
		if v := second.Operands[0].(*Variable); v.Name != "tmp" || v.Scope != RootScope {
			t.Errorf("operand: expected top-level tmp, got %s", v)
		}
	}
}

func TestHygieneFreeIdentifierResolvesAtDefinition(t *testing.T) {
	src := `
(define x 'outer)
(define-syntax get-x (syntax-rules () ((_) x)))
((lambda (x) (get-x)) 'inner)`
	call := compileLast(t, src, Options{Strict: true}).(*ProcedureCall)
	l := call.Operator.(*Lambda)
	v, ok := l.Body.Return.(*Variable)
	if !ok {
		t.Fatalf("expected *Variable, got %T", l.Body.Return)
	}
	if v.Name != "x" || v.Scope != RootScope {
		t.Errorf("expected top-level x, got %s", v)
	}
}

func TestMacroExpansion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name: "Literals",
			input: `(define-syntax my-if (syntax-rules (then else) ((_ c then t else e) (if c t e))))
(my-if #t then 1 else 2)`,
			expected: "(if #t 1 2)",
		},
		{
			name: "SuffixAfterEllipsis",
			input: `(define-syntax last-first (syntax-rules () ((_ a ... z) (list z a ...))))
(last-first 1 2 3)`,
			expected: "(list 3 1 2)",
		},
		{
			name: "SuffixOnly",
			input: `(define-syntax last-first (syntax-rules () ((_ a ... z) (list z a ...))))
(last-first 9)`,
			expected: "(list 9)",
		},
		{
			name: "NestedEllipsis",
			input: `(define-syntax quote-all (syntax-rules () ((_ (a b ...) ...) (list '(a b ...) ...))))
(quote-all (1 2 3) (4))`,
			expected: "(list (quote (1 2 3)) (quote (4)))",
		},
		{
			name: "FlattenedEllipsis",
			input: `(define-syntax flat (syntax-rules () ((_ (a ...) ...) (list a ... ...))))
(flat (1 2) (3))`,
			expected: "(list 1 2 3)",
		},
		{
			name: "Pairs",
			input: `(define-syntax pairs (syntax-rules () ((_ (a ...) (b ...)) (list (cons a b) ...))))
(pairs (1 2) (3 4))`,
			expected: "(list (cons 1 3) (cons 2 4))",
		},
		{
			name: "Recursive",
			input: `(define-syntax my-or (syntax-rules () ((_) #f) ((_ e) e) ((_ e r ...) (if e e (my-or r ...)))))
(my-or a b c)`,
			expected: "(if a a (if b b c))",
		},
		{
			name: "DottedPattern",
			input: `(define-syntax rest (syntax-rules () ((_ a . r) (quote r))))
(rest 1 2 3)`,
			expected: "(quote (2 3))",
		},
		{
			name: "VectorPattern",
			input: `(define-syntax vec (syntax-rules () ((_ #(a b ...)) (list b ... a))))
(vec #(1 2 3))`,
			expected: "(list 2 3 1)",
		},
		{
			name: "DatumPattern",
			input: `(define-syntax zero? (syntax-rules () ((_ 0) #t) ((_ x) #f)))
(list (zero? 0) (zero? 1))`,
			expected: "(list #t #f)",
		},
		{
			name: "QuotedTemplateIdentifierIsNotRenamed",
			input: `(define-syntax name-of (syntax-rules () ((_) 'secret)))
(name-of)`,
			expected: "(quote secret)",
		},
		{
			name: "LetrecSyntax",
			input: `(letrec-syntax ((ev? (syntax-rules () ((_) #t) ((_ x . r) (od? . r))))
                 (od? (syntax-rules () ((_) #f) ((_ x . r) (ev? . r)))))
  (ev? 1 2 3))`,
			expected: "(letrec-syntax (ev? od?) #f)",
		},
		{
			name:     "BackquotedTemplate",
			input:    "(define-syntax m (syntax-rules () ((_ v) `(tmp ,v))))\n(m 1)",
			expected: "(quasiquote (tmp ,1))",
		},
		{
			name:     "BackquotedEllipsis",
			input:    "(define-syntax m (syntax-rules () ((_ v ...) `(,v ... ,@rest))))\n(m a b)",
			expected: "(quasiquote (,a ,b ,@rest))",
		},
		{
			name:     "NestedLetSyntaxSeesOuterKeyword",
			input:    "(let-syntax ((k (syntax-rules () ((_) 1)))) (let-syntax ((j (syntax-rules () ((_) (k))))) (j)))",
			expected: "(let-syntax (k) (let-syntax (j) 1))",
		},
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

func TestMacroErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{
			name: "MismatchedCounts",
			input: `(define-syntax pairs (syntax-rules () ((_ (a ...) (b ...)) (list (cons a b) ...))))
(pairs (1 2) (3))`,
			msg: "mismatched ellipsis counts for a (2) and b (1)",
		},
		{
			name: "NoRuleMatches",
			input: `(define-syntax two (syntax-rules () ((_ a b) a)))
(two 1)`,
			msg: "no syntax-rules pattern of two matches",
		},
		{
			name: "LiteralMismatch",
			input: `(define-syntax my-if (syntax-rules (then) ((_ c then t) (if c t #f))))
(my-if #t else 1)`,
			msg: "no syntax-rules pattern of my-if matches",
		},
		{
			name: "SequenceWithoutEllipsis",
			input: `(define-syntax bad (syntax-rules () ((_ a ...) (list a))))
(bad 1 2)`,
			msg: "pattern variable a needs an ellipsis",
		},
		{
			name: "TooManyEllipses",
			input: `(define-syntax bad (syntax-rules () ((_ a b) (list (f a b) ...))))
(bad 1 2)`,
			msg: "too many ellipses",
		},
		{
			name: "NonTerminatingAtTopLevel",
			input: `(define-syntax forever (syntax-rules () ((_ x) (forever x))))
(forever 1)`,
			msg: "macro expansion of forever does not terminate",
		},
		{
			name: "NonTerminatingInExpression",
			input: `(define-syntax forever (syntax-rules () ((_ x) (forever x))))
(f (forever 1))`,
			msg: "macro expansion of forever nests deeper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.input, Options{MaxExpansions: 20})
			if !diag.IsKind(err, diag.SyntaxError) {
				t.Fatalf("expected syntax error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected message containing %q, got %q", tt.msg, err.Error())
			}
		})
	}
}

func TestTransformerDefinitionErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"EllipsisFirst", "(syntax-rules () ((_ ... a) a))", "ellipsis must follow a pattern"},
		{"TwoEllipses", "(syntax-rules () ((_ a ... b ...) a))", "more than one ellipsis"},
		{"EllipsisInDotted", "(syntax-rules () ((_ a ... . r) a))", "ellipsis is not allowed in a dotted pattern"},
		{"DuplicateVariable", "(syntax-rules () ((_ a a) a))", "duplicate pattern variable a"},
		{"EllipsisLiteral", "(syntax-rules (...) ((_ a) a))", "ellipsis cannot be a literal"},
		{"EllipsisWithoutVariable", "(syntax-rules () ((_ a) (f ...)))", "no pattern variable before ellipsis"},
		{"PatternNotList", "(syntax-rules () (_ a))", "pattern must be a list"},
		{"RuleShape", "(syntax-rules () ((_ a)))", "syntax rule must be (pattern template)"},
		{"LiteralsNotList", "(syntax-rules x ((_ a) a))", "literals must be a list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustTransformer(t, tt.input)
			if err == nil || !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("expected error containing %q, got %v", tt.msg, err)
			}
		})
	}
}

func TestExpansionRule(t *testing.T) {
	tr, err := mustTransformer(t, "(syntax-rules (else) ((_) #f) ((_ else e) e) ((_ e r ...) (if e e (my-or r ...))))")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.IsLiteral("else") || tr.IsLiteral("e") {
		t.Errorf("literals: expected only else, got %v", tr.Literals)
	}
	m := &Macro{Name: "my-or", Transformer: tr}
	e := NewExpander(nil)

	tests := []struct {
		use  string
		rule int
	}{
		{"(my-or)", 0},
		{"(my-or else 1)", 1},
		{"(my-or a b c)", 2},
		{"(my-or a)", 2},
	}
	for _, tt := range tests {
		exp, err := e.Expand(m, mustParse(t, tt.use))
		if err != nil {
			t.Fatalf("%s: %v", tt.use, err)
		}
		if exp.Rule != tt.rule {
			t.Errorf("%s: expected rule %d, got %d", tt.use, tt.rule, exp.Rule)
		}
	}
}

func TestExpanderRenamesConsistently(t *testing.T) {
	tr, err := mustTransformer(t, "(syntax-rules () ((_ v) (let ((tmp v)) (f tmp tmp))))")
	if err != nil {
		t.Fatal(err)
	}
	m := &Macro{Name: "m", Transformer: tr}
	e := NewExpander(&Gensym{})

	first, err := e.Expand(m, mustParse(t, "(m tmp)"))
	if err != nil {
		t.Fatal(err)
	}
	if got := first.Datum.String(); got != "(let#1 ((tmp#2 tmp)) (f#3 tmp#2 tmp#2))" {
		t.Errorf("first expansion: got %s", got)
	}
	if first.Renamed["tmp#2"] != "tmp" || len(first.Renamed) != 3 {
		t.Errorf("renamed: got %v", first.Renamed)
	}

	second, err := e.Expand(m, mustParse(t, "(m 1)"))
	if err != nil {
		t.Fatal(err)
	}
	if got := second.Datum.String(); got != "(let#4 ((tmp#5 1)) (f#6 tmp#5 tmp#5))" {
		t.Errorf("second expansion: got %s", got)
	}
}

func TestKeepMacroUses(t *testing.T) {
	b, err := NewBuilder(Options{KeepMacroUses: true})
	if err != nil {
		t.Fatal(err)
	}
	data, err := syntax.ParseString("(define-syntax id (syntax-rules () ((_ x) x))) (id (id 5))")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.BuildTopLevel(data[0]); err != nil {
		t.Fatal(err)
	}
	forms, err := b.BuildTopLevel(data[1])
	if err != nil {
		t.Fatal(err)
	}
	u, ok := forms[0].(*MacroUse)
	if !ok {
		t.Fatalf("expected *MacroUse, got %T", forms[0])
	}
	if u.Keyword != "id" || len(u.Args) != 1 || u.Args[0].String() != "(id 5)" {
		t.Errorf("unexpected macro use %+v", u)
	}
	e, err := b.Resolve(u)
	if err != nil {
		t.Fatal(err)
	}
	if e.String() != "5" {
		t.Errorf("Resolve: expected 5, got %s", e)
	}
}
