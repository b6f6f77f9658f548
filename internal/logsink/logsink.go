// Package logsink provides the output sink for a run. In headless mode every
// line the orchestrator or a child process writes is duplicated to a log file
// under the install directory, so a desktop-icon launch stays debuggable.
package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink is where all run output goes. Child processes are attached to Out/Err,
// so their output flows through the same duplication.
type Sink struct {
	Out io.Writer
	Err io.Writer

	file *os.File
}

// Passthrough returns a sink that writes straight to the process streams.
// Used in interactive mode.
func Passthrough() *Sink {
	return &Sink{Out: os.Stdout, Err: os.Stderr}
}

// Tee returns a sink that duplicates both streams into the given log file.
// The file is truncated: each headless run keeps exactly one log.
func Tee(logPath string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &Sink{
		Out:  io.MultiWriter(os.Stdout, f),
		Err:  io.MultiWriter(os.Stderr, f),
		file: f,
	}, nil
}

// Close flushes and closes the log file, if any. Must run before process
// exit so the log is complete even on a fatal path.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
