// Package logger caps log files to a fixed number of trailing lines.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// lineRing keeps the most recent lines written to a log file.
type lineRing struct {
	lines   []string
	next    int
	size    int
	pending int // Lines added since the file was last rewritten
}

func newLineRing(capacity int) *lineRing {
	return &lineRing{lines: make([]string, max(capacity, 1))}
}

func (r *lineRing) add(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	r.size = min(r.size+1, len(r.lines))
	r.pending++
}

// ordered returns the kept lines oldest first.
func (r *lineRing) ordered() []string {
	result := make([]string, 0, r.size)

	start := (r.next - r.size + len(r.lines)) % len(r.lines)
	for i := range r.size {
		result = append(result, r.lines[(start+i)%len(r.lines)])
	}

	return result
}

// LogRotator wraps a log file and rewrites it to its last maxLines lines
// once twice that many lines have been written.
type LogRotator struct {
	mu       sync.Mutex
	writer   io.Writer
	ring     *lineRing
	filePath string
}

// NewLogRotator creates a new LogRotator.
func NewLogRotator(writer io.Writer, maxLines int, filePath string) *LogRotator {
	return &LogRotator{
		writer:   writer,
		ring:     newLineRing(maxLines),
		filePath: filePath,
	}
}

// Write implements io.Writer.
func (w *LogRotator) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.writer.Write(p)
	if err != nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		w.ring.add(line)
	}

	if w.ring.pending >= 2*len(w.ring.lines) {
		if err := w.rotate(); err != nil {
			return n, fmt.Errorf("failed to rotate log file: %w", err)
		}

		w.ring.pending = w.ring.size
	}

	return n, nil
}

// rotate replaces the file with the kept lines and reopens it for appending.
func (w *LogRotator) rotate() error {
	var buf bytes.Buffer
	for _, line := range w.ring.ordered() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	temp, err := os.CreateTemp(filepath.Dir(w.filePath), "temp-log-")
	if err != nil {
		return err
	}

	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if closer, ok := w.writer.(io.Closer); ok {
		closer.Close()
	}

	if err := os.Rename(tempPath, w.filePath); err != nil {
		os.Remove(tempPath)
		return err
	}

	file, err := os.OpenFile(w.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w.writer = file

	return nil
}
