package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"goscheme/pkg/compiler"
	"goscheme/pkg/diag"
	"goscheme/pkg/syntax"
	"goscheme/pkg/utils"
)

type result struct {
	path string
	prog *compiler.Program
	err  error
}

func main() {
	strict := flag.Bool("strict", false, "reject references to unbound variables at compile time")
	keepMacros := flag.Bool("keep-macros", false, "leave macro uses unexpanded")
	globals := flag.String("globals", "", "comma-separated names bound at the top level (with -strict)")
	jobs := flag.Int("j", runtime.NumCPU(), "number of files compiled concurrently")
	verbose := flag.Bool("v", false, "print the compiled forms of each file")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "nothing to do: provide one or more Scheme source files or directories")
		flag.Usage()
		os.Exit(2)
	}

	paths, err := utils.ExpandSources(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to collect sources: %v\n", err)
		os.Exit(1)
	}

	opts := compiler.Options{
		Strict:        *strict,
		KeepMacroUses: *keepMacros,
		Keywords:      compiler.DefaultKeywords(),
	}
	if *globals != "" {
		opts.Globals = strings.Split(*globals, ",")
	}

	results := checkFiles(paths, opts, *jobs)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintln(os.Stderr, r.err)
			failed++
			continue
		}
		fmt.Printf("%s: ok (%d forms, %d scopes)\n", r.path, len(r.prog.Forms), r.prog.Scopes.Len())
		if *verbose {
			fmt.Print(r.prog)
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed\n", failed, len(results))
		os.Exit(1)
	}
}

// checkFiles compiles every path with its own pipeline, at most jobs at a
// time. Results keep the order of paths.
func checkFiles(paths []string, opts compiler.Options, jobs int) []result {
	results := make([]result, len(paths))
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = checkFile(path, opts)
			return nil
		})
	}
	g.Wait()
	return results
}

func checkFile(path string, opts compiler.Options) result {
	src, err := syntax.OpenFile(path)
	if err != nil {
		return result{path: path, err: fmt.Errorf("%s: %w", path, err)}
	}
	defer src.Close()

	prog, err := compiler.Compile(src, opts)
	if err != nil {
		text, rerr := os.ReadFile(path)
		if rerr != nil {
			return result{path: path, err: fmt.Errorf("%s: %w", path, err)}
		}
		return result{path: path, err: diag.WrapWithSource(err, path, string(text))}
	}
	return result{path: path, prog: prog}
}
