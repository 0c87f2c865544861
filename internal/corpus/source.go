// Package corpus supplies the ordered text lines a positional index is built
// from. Every Source yields trimmed, non-blank lines and fails with
// ErrEmptyCorpus when none remain.
package corpus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/errors"
)

// maxLineSize bounds a single corpus line.
const maxLineSize = 1 << 20

// Source loads corpus lines.
type Source interface {
	Lines(ctx context.Context) ([]string, error)
	// Describe names the source for logs, e.g. "file:data/Docs.txt".
	Describe() string
}

// LoadLines reads r line by line, trimming surrounding whitespace and dropping
// blank lines.
func LoadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var lines []string
	for scanner.Scan() {
		lines = appendTrimmed(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no non-blank lines: %w", apperrors.ErrEmptyCorpus)
	}
	return lines, nil
}

func appendTrimmed(lines []string, raw string) []string {
	if line := strings.TrimSpace(raw); line != "" {
		lines = append(lines, line)
	}
	return lines
}

// FileSource reads lines from a text file, one document per line.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Lines(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file %s: %w", s.Path, err)
	}
	defer f.Close()
	lines, err := LoadLines(f)
	if err != nil {
		return nil, fmt.Errorf("loading corpus file %s: %w", s.Path, err)
	}
	return lines, nil
}

func (s *FileSource) Describe() string { return "file:" + s.Path }

// StaticSource serves a fixed set of lines, mostly for tests and embedding.
type StaticSource struct {
	lines []string
}

func NewStaticSource(lines ...string) *StaticSource {
	return &StaticSource{lines: lines}
}

func (s *StaticSource) Lines(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []string
	for _, line := range s.lines {
		out = appendTrimmed(out, line)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("static corpus: %w", apperrors.ErrEmptyCorpus)
	}
	return out, nil
}

func (s *StaticSource) Describe() string { return fmt.Sprintf("static:%d", len(s.lines)) }
