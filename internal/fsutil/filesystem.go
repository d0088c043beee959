// Package fsutil abstracts the file operations the command-line tools use
// for session logs and reports so they can run against memory in tests.
package fsutil

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSystem is the file access the tools need.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (io.ReadCloser, error)

	// Create creates or truncates the named file.
	Create(name string) (io.WriteCloser, error)

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// Stat describes the named file or directory.
	Stat(name string) (fs.FileInfo, error)
}

// OSFileSystem implements FileSystem with the os package.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (io.ReadCloser, error)      { return os.Open(name) }
func (OSFileSystem) Create(name string) (io.WriteCloser, error)   { return os.Create(name) }
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) Stat(name string) (fs.FileInfo, error)        { return os.Stat(name) }

// MemoryFileSystem is an in-memory FileSystem. A file becomes visible when
// its writer is closed.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryFileSystem returns an empty filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// Open returns a reader over a copy of the named file.
func (m *MemoryFileSystem) Open(name string) (io.ReadCloser, error) {
	data, err := m.ReadFile(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create starts a new file. Writing into a directory that was never made
// with MkdirAll fails, as it would on disk.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	name = filepath.Clean(name)
	m.mu.RLock()
	dir := filepath.Dir(name)
	ok := dir == "." || dir == "/" || m.dirs[dir]
	m.mu.RUnlock()
	if !ok {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrNotExist}
	}
	return &memWriter{fs: m, name: name}, nil
}

// MkdirAll records path and its parents as directories.
func (m *MemoryFileSystem) MkdirAll(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := filepath.Clean(path); p != "." && p != "/"; p = filepath.Dir(p) {
		m.dirs[p] = true
	}
	return nil
}

// Stat describes a file or directory.
func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if m.dirs[name] {
		return memInfo{name: filepath.Base(name), dir: true}, nil
	}
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return memInfo{name: filepath.Base(name), size: int64(len(data))}, nil
}

// ReadFile returns a copy of the named file.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[filepath.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(data), nil
}

// Files lists every file path, sorted.
func (m *MemoryFileSystem) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for name := range m.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type memWriter struct {
	fs     *MemoryFileSystem
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true
	w.fs.mu.Lock()
	w.fs.files[w.name] = bytes.Clone(w.buf.Bytes())
	w.fs.mu.Unlock()
	return nil
}

type memInfo struct {
	name string
	size int64
	dir  bool
}

func (i memInfo) Name() string { return i.name }
func (i memInfo) Size() int64  { return i.size }
func (i memInfo) Mode() os.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.dir }
func (i memInfo) Sys() any           { return nil }
