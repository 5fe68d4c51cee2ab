// Package fileprovider abstracts filesystem access for the evaluator so the
// core can run against the host filesystem, an in-memory tree in tests, or
// any other path namespace.
package fileprovider

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// FileProvider is the only way user code (indirectly, via load resolution)
// touches a filesystem.
type FileProvider interface {
	// ReadFile returns the contents of the file at path.
	ReadFile(path string) (string, error)

	// Exists reports whether path exists.
	Exists(path string) bool

	// IsDirectory reports whether path is a directory.
	IsDirectory(path string) bool

	// ListDirectory returns the immediate children of path, sorted.
	ListDirectory(path string) ([]string, error)

	// Canonicalize makes path absolute and resolves . and .. components.
	// The path must exist.
	Canonicalize(path string) (string, error)
}

// NotFoundError reports a missing file or directory.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("file not found: %s", e.Path) }

// PermissionError reports an access-denied failure.
type PermissionError struct {
	Path string
}

func (e *PermissionError) Error() string { return fmt.Sprintf("permission denied: %s", e.Path) }

// IOError wraps any other filesystem failure.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("io error: %s: %v", e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

func wrapErr(path string, err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return &NotFoundError{Path: path}
	case os.IsPermission(err):
		return &PermissionError{Path: path}
	default:
		return &IOError{Path: path, Err: err}
	}
}

// OS is a FileProvider backed by the host filesystem.
type OS struct {
	fs afero.Fs
}

// NewOS returns a FileProvider over the host filesystem.
func NewOS() *OS {
	return &OS{fs: afero.NewOsFs()}
}

func (p *OS) ReadFile(path string) (string, error) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return "", wrapErr(path, err)
	}
	return string(data), nil
}

func (p *OS) Exists(path string) bool {
	ok, err := afero.Exists(p.fs, path)
	return err == nil && ok
}

func (p *OS) IsDirectory(path string) bool {
	ok, err := afero.IsDir(p.fs, path)
	return err == nil && ok
}

func (p *OS) ListDirectory(path string) ([]string, error) {
	infos, err := afero.ReadDir(p.fs, path)
	if err != nil {
		return nil, wrapErr(path, err)
	}
	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		paths = append(paths, filepath.Join(path, info.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (p *OS) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", wrapErr(path, err)
	}
	return resolved, nil
}

// Mem is an in-memory FileProvider used by tests and sandboxed contexts.
// Paths are rooted at "/".
type Mem struct {
	fs afero.Fs
}

// NewMem returns an empty in-memory FileProvider.
func NewMem() *Mem {
	return &Mem{fs: afero.NewMemMapFs()}
}

// NewMemWithFiles returns an in-memory FileProvider pre-populated with the
// given path → contents map. Parent directories are created implicitly.
func NewMemWithFiles(files map[string]string) *Mem {
	m := NewMem()
	for path, contents := range files {
		m.WriteFile(path, contents)
	}
	return m
}

// WriteFile adds or replaces a file, creating parent directories.
func (p *Mem) WriteFile(path, contents string) {
	path = p.abs(path)
	_ = p.fs.MkdirAll(filepath.Dir(path), 0o755)
	_ = afero.WriteFile(p.fs, path, []byte(contents), 0o644)
}

// Mkdir creates a directory (and parents).
func (p *Mem) Mkdir(path string) {
	_ = p.fs.MkdirAll(p.abs(path), 0o755)
}

func (p *Mem) abs(path string) string {
	if !filepath.IsAbs(path) {
		path = "/" + path
	}
	return filepath.Clean(path)
}

func (p *Mem) ReadFile(path string) (string, error) {
	data, err := afero.ReadFile(p.fs, p.abs(path))
	if err != nil {
		return "", wrapErr(path, err)
	}
	return string(data), nil
}

func (p *Mem) Exists(path string) bool {
	ok, err := afero.Exists(p.fs, p.abs(path))
	return err == nil && ok
}

func (p *Mem) IsDirectory(path string) bool {
	ok, err := afero.IsDir(p.fs, p.abs(path))
	return err == nil && ok
}

func (p *Mem) ListDirectory(path string) ([]string, error) {
	abs := p.abs(path)
	infos, err := afero.ReadDir(p.fs, abs)
	if err != nil {
		return nil, wrapErr(path, err)
	}
	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		paths = append(paths, filepath.Join(abs, info.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (p *Mem) Canonicalize(path string) (string, error) {
	abs := p.abs(path)
	if ok, err := afero.Exists(p.fs, abs); err != nil || !ok {
		return "", &NotFoundError{Path: path}
	}
	return abs, nil
}

// Walk visits every file below root in lexical order. Used by tooling that
// wants to enumerate workspace sources without reaching around the provider.
func (p *Mem) Walk(root string, fn func(path string, isDir bool) error) error {
	return afero.Walk(p.fs, p.abs(root), func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return fn(path, info.IsDir())
	})
}
