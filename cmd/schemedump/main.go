package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"goscheme/pkg/compiler"
	"goscheme/pkg/syntax"
	"goscheme/pkg/utils"
)

const testSource = `(define-syntax swap!
  (syntax-rules ()
    ((_ a b) ((lambda (tmp) (set! a b) (set! b tmp)) a))))
(define (f x y)
  (swap! x y)
  (list x y))
`

func main() {
	stage := flag.String("stage", "all", "stage to print: tokens, datums, ast or all")
	strict := flag.Bool("strict", false, "reject references to unbound variables")
	flag.Parse()

	switch *stage {
	case "all", "tokens", "datums", "ast":
	default:
		fmt.Fprintf(os.Stderr, "unknown stage %q\n", *stage)
		os.Exit(2)
	}

	src := testSource
	name := "<builtin>"
	if flag.NArg() > 0 {
		fullPath, _, err := utils.GetPathInfo(flag.Arg(0))
		if err != nil {
			log.Fatalf("bad path %q: %v", flag.Arg(0), err)
		}
		data, err := os.ReadFile(fullPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
		name = fullPath
	}
	all := *stage == "all"

	fmt.Printf("Source (%s):\n%s\n", name, src)

	// Tokens
	if all || *stage == "tokens" {
		tokens, err := syntax.ReadAll(syntax.NewReader(syntax.NewStringSource(src)))
		fmt.Printf("Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			if tok.IsTrivia() {
				continue
			}
			fmt.Printf("  %3d:%-3d %s\n", tok.Line, tok.Column, tok.Token)
		}
		fmt.Println()
		if err != nil {
			fmt.Fprintln(os.Stderr, "lex error:", err)
			os.Exit(1)
		}
	}

	// Data
	if all || *stage == "datums" {
		stream := syntax.NewSourceStream(syntax.NewStringSource(src))
		fmt.Println("Data")
		for {
			d, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, "parse error:", err)
				os.Exit(1)
			}
			line, col := stream.Pos()
			fmt.Printf("  %3d:%-3d %s\n", line, col, d)
		}
		fmt.Println()
	}

	// AST
	if all || *stage == "ast" {
		prog, err := compiler.CompileString(src, compiler.Options{Strict: *strict})
		if err != nil {
			fmt.Fprintln(os.Stderr, "compile error:", err)
			os.Exit(1)
		}
		fmt.Println("AST")
		for _, f := range prog.Forms {
			fmt.Println(" ", f)
		}
		fmt.Println()
		fmt.Print(prog.Scopes)
	}
}
