// Package transcript implements the durable append-only text log for model
// output, with read-back rendering of the completed turn.
package transcript

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const renderWidth = 100

// Sink appends transcribed model text to a single file. It is single-writer:
// only the inbound demultiplexer appends. Persistence failures are logged
// and the operation no-ops; they never take down the session.
type Sink struct {
	path string
	log  *slog.Logger
}

// New creates a sink backed by the file at path.
func New(path string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{path: path, log: log}
}

// Path returns the backing file location.
func (s *Sink) Path() string { return s.path }

// Truncate resets the backing file to zero length, creating parent
// directories as needed.
func (s *Sink) Truncate() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.log.Warn("transcript: create output dir failed", "path", s.path, "err", err)
		return
	}
	if err := os.WriteFile(s.path, nil, 0o644); err != nil {
		s.log.Warn("transcript: truncate failed", "path", s.path, "err", err)
		return
	}
	s.log.Debug("transcript: cleared", "path", s.path)
}

// Append writes text to the log. Empty or whitespace-only input is a no-op.
// A separating space is inserted when the file's last byte is not itself
// whitespace, so words never join across append boundaries. A trailing
// newline is appended only when the text ends a sentence (. ? or !).
func (s *Sink) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	var b strings.Builder
	if s.needsSpace() {
		b.WriteByte(' ')
	}
	b.WriteString(text)
	switch text[len(text)-1] {
	case '.', '?', '!':
		b.WriteByte('\n')
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn("transcript: open for append failed", "path", s.path, "err", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		s.log.Warn("transcript: append failed", "path", s.path, "err", err)
	}
}

// needsSpace inspects the single last byte of the existing file. Reading one
// byte avoids re-reading the whole log on every append.
func (s *Sink) needsSpace() bool {
	f, err := os.Open(s.path)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil {
		return false
	}
	switch buf[0] {
	case ' ', '\n', '\t':
		return false
	}
	return true
}

// RenderAll reads the full log, writes a bordered, centered rendering of it
// to w, and returns the raw lines (trailing newlines stripped). A missing
// file yields an empty slice and a logged diagnostic.
func (s *Sink) RenderAll(w io.Writer) []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("transcript: no output file", "path", s.path, "err", err)
		return nil
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}

	const cyan, reset = "\033[36m", "\033[0m"
	fmt.Fprintf(w, "\n%s%s%s\n\n", cyan, center("------ Start of Response ------", renderWidth), reset)
	for n, line := range lines {
		fmt.Fprintf(w, "%s%3d. %s%s\n", cyan, n+1, center(line, renderWidth-7), reset)
	}
	fmt.Fprintf(w, "\n%s%s%s\n\n", cyan, center("------- End of Response -------", renderWidth), reset)
	return lines
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
