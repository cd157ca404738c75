package compiler

import (
	"errors"
	"io"
	"strings"

	"goscheme/pkg/diag"
	"goscheme/pkg/syntax"
)

// Program is a compiled source: its top-level forms in source order and the
// scopes they were built in.
type Program struct {
	Forms  []Form
	Scopes *Scopes
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, f := range p.Forms {
		sb.WriteString(f.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

type positioned struct {
	datum     syntax.Datum
	line, col int
}

// Compile reads every datum from src and builds the program. Syntax errors
// carry the position of the top-level datum they occurred in.
func Compile(src syntax.LineSource, opts Options) (*Program, error) {
	stream := syntax.NewSourceStream(src)
	var data []positioned
	for {
		d, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, col := stream.Pos()
		data = append(data, positioned{d, line, col})
	}
	return compile(data, opts)
}

// CompileString compiles Scheme source text.
func CompileString(src string, opts Options) (*Program, error) {
	return Compile(syntax.NewStringSource(src), opts)
}

// CompileProgram builds already parsed data. Errors are not positioned.
func CompileProgram(data []syntax.Datum, opts Options) (*Program, error) {
	ps := make([]positioned, len(data))
	for i, d := range data {
		ps[i] = positioned{datum: d}
	}
	return compile(ps, opts)
}

func compile(data []positioned, opts Options) (*Program, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	for _, p := range data {
		if err := b.Predeclare([]syntax.Datum{p.datum}); err != nil {
			return nil, stamp(err, p.line, p.col)
		}
	}

	prog := &Program{Scopes: b.Scopes()}
	for _, p := range data {
		forms, err := b.BuildTopLevel(p.datum)
		if err != nil {
			return nil, stamp(err, p.line, p.col)
		}
		prog.Forms = append(prog.Forms, forms...)
	}
	tracer().Infof("compiled %d top-level forms into %d scopes", len(prog.Forms), b.Scopes().Len())
	return prog, nil
}

// stamp positions an unpositioned diagnostic at line:col.
func stamp(err error, line, col int) error {
	var de *diag.Error
	if line > 0 && errors.As(err, &de) {
		de.At(line, col)
	}
	return err
}
