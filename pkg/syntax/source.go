package syntax

import (
	"bufio"
	"io"
	"os"
	"strings"

	"goscheme/pkg/diag"
)

// LineSource yields source text one line at a time, without line
// terminators. NextLine returns io.EOF once the source is exhausted.
type LineSource interface {
	NextLine() (string, error)
}

// ScannerSource reads lines from an io.Reader.
type ScannerSource struct {
	sc *bufio.Scanner
}

// NewScannerSource wraps r; lines may be up to 1 MiB long.
func NewScannerSource(r io.Reader) *ScannerSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScannerSource{sc: sc}
}

func (s *ScannerSource) NextLine() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// FileSource is a ScannerSource over an open file.
type FileSource struct {
	*ScannerSource
	f *os.File
}

// OpenFile opens path immediately, so a missing or unreadable file is
// reported here rather than on the first read.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &diag.Error{Kind: diag.IOError, Near: path, Err: err}
	}
	return &FileSource{ScannerSource: NewScannerSource(f), f: f}, nil
}

func (s *FileSource) Close() error { return s.f.Close() }

// StringSource serves the lines of an in-memory string.
type StringSource struct {
	lines []string
	next  int
}

func NewStringSource(src string) *StringSource {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return &StringSource{lines: lines}
}

func (s *StringSource) NextLine() (string, error) {
	if s.next >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}
