package plugins

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FS is the read-only view of a plugin's files. Names are slash separated and
// relative to Base; a leading slash is allowed and ignored.
type FS interface {
	Base() string
	Files() []string
	Exists(name string) bool
	Open(name string) (fs.File, error)
	Read(name string) ([]byte, error)
	FullPath(name string) (string, bool)
}

// LocalFS serves plugin files from a directory on disk
type LocalFS struct {
	basePath string
}

// NewLocalFS creates a LocalFS rooted at basePath
func NewLocalFS(basePath string) LocalFS {
	return LocalFS{basePath: basePath}
}

// Base returns the root directory
func (f LocalFS) Base() string {
	return f.basePath
}

// Files returns every regular file below the root as slash separated relative paths,
// in lexical order. Unreadable subtrees are skipped.
func (f LocalFS) Files() []string {
	var files []string
	_ = filepath.WalkDir(f.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(f.basePath, p)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files
}

// Exists reports whether name is a regular file below the root
func (f LocalFS) Exists(name string) bool {
	p, err := f.resolve("stat", name)
	if err != nil {
		return false
	}
	fi, err := os.Stat(p)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}

// Open opens name for reading
func (f LocalFS) Open(name string) (fs.File, error) {
	if rooted(name) == "" {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	p, err := f.resolve("open", name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Read returns the full content of name
func (f LocalFS) Read(name string) ([]byte, error) {
	if rooted(name) == "" {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	p, err := f.resolve("read", name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// FullPath returns the absolute on-disk path of name and whether it exists
func (f LocalFS) FullPath(name string) (string, bool) {
	p := f.abs(name)
	return p, f.Exists(name)
}

// resolve follows symlinks in name and fails with fs.ErrPermission when the target
// lies outside the root
func (f LocalFS) resolve(op, name string) (string, error) {
	target, err := filepath.EvalSymlinks(f.abs(name))
	if err != nil {
		return "", err
	}
	base, err := filepath.EvalSymlinks(f.basePath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrPermission}
	}
	return target, nil
}

func (f LocalFS) abs(name string) string {
	return filepath.Join(f.basePath, filepath.FromSlash(rooted(name)))
}

// rooted cleans name against "/" so ".." segments can never climb above the root,
// then drops the leading slash.
func rooted(name string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}
