package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogDir is the directory, relative to the build directory, holding run logs.
const LogDir = "logs"

// FileName is the run log file name.
const FileName = "fpgaflow.log"

// File appends timestamped lines to <build>/logs/fpgaflow.log so users can
// inspect a run after the terminal output is gone.
type File struct {
	file *os.File
	now  func() time.Time
	// pending holds a partial line written through Write.
	pending []byte
}

// Open creates (or reuses) the log file for the build directory.
func Open(buildDir string) (*File, error) {
	logDir := filepath.Join(buildDir, LogDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &File{file: f, now: time.Now}, nil
}

// Path returns the location of the log file.
func (l *File) Path() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close flushes any partial line and releases the file handle.
func (l *File) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	if len(l.pending) > 0 {
		l.Printf("%s", l.pending)
		l.pending = nil
	}
	return l.file.Close()
}

// Printf writes a single timestamped line to the log file.
func (l *File) Printf(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := l.now().Format(time.RFC3339)
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, line)
}

// Write implements io.Writer, timestamping each complete line. It lets the
// file sit behind an io.MultiWriter next to the terminal.
func (l *File) Write(p []byte) (int, error) {
	if l == nil || l.file == nil {
		return len(p), nil
	}
	l.pending = append(l.pending, p...)
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}
		l.Printf("%s", l.pending[:idx])
		l.pending = l.pending[idx+1:]
	}
	return len(p), nil
}
