package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileRotator is an io.Writer that rotates the log file when it exceeds
// the configured size. One rotated generation is kept alongside the
// active file.
type FileRotator struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	file    *os.File
	size    int64
}

// NewFileRotator opens (or creates) the log file at path.
func NewFileRotator(path string, maxSizeMB int64) (*FileRotator, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	r := &FileRotator{
		path:    path,
		maxSize: maxSizeMB << 20,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate renames the active file with a timestamp suffix and starts a
// fresh one, removing any previous generation.
func (r *FileRotator) rotate() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	rotated := r.path + "." + time.Now().Format("20060102-150405")
	if err := os.Rename(r.path, rotated); err != nil && !os.IsNotExist(err) {
		return err
	}

	// Keep a single old generation.
	matches, _ := filepath.Glob(r.path + ".*")
	for i := 0; i < len(matches)-1; i++ {
		os.Remove(matches[i])
	}

	return r.openFile()
}

// Close closes the active log file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
