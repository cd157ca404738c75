package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"goscheme/pkg/compiler"
	"goscheme/pkg/syntax"
)

const (
	banner      = "goscheme front end. Enter data to see their expressions; :scopes, :quit."
	promptMain  = "scheme> "
	promptCont  = "   ...> "
	historyFile = ".goscheme_history"
)

// linerSource feeds terminal lines to the reader. The main prompt is shown
// for the first line of each datum, the continuation prompt afterwards.
type linerSource struct {
	ln    *liner.State
	fresh bool
}

func (s *linerSource) NextLine() (string, error) {
	prompt := promptCont
	if s.fresh {
		prompt = promptMain
		s.fresh = false
	}
	line, err := s.ln.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		s.ln.AppendHistory(line)
	}
	return line, nil
}

func main() {
	strict := flag.Bool("strict", false, "reject references to unbound variables")
	flag.Parse()

	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	b, err := compiler.NewBuilder(compiler.Options{Strict: *strict})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	src := &linerSource{ln: ln}
	stream := syntax.NewSourceStream(src)
	for {
		src.fresh = true
		d, err := stream.Next()
		switch {
		case errors.Is(err, io.EOF):
			fmt.Println()
			return
		case errors.Is(err, liner.ErrPromptAborted):
			stream = syntax.NewSourceStream(src)
			continue
		case err != nil:
			// a failed stream stays failed; start over on the next line
			fmt.Fprintln(os.Stderr, err)
			stream = syntax.NewSourceStream(src)
			continue
		}

		if id, ok := d.(syntax.Identifier); ok && strings.HasPrefix(string(id), ":") {
			switch id {
			case ":quit":
				return
			case ":scopes":
				fmt.Print(b.Scopes())
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}

		forms, err := b.BuildTopLevel(d)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		for _, f := range forms {
			fmt.Println(f)
		}
	}
}
