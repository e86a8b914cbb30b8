// Package security confines user-supplied file names to a directory.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned for a path that resolves outside its directory.
var ErrOutsideDir = errors.New("path escapes directory")

// canonical resolves symlinks in p. For a path that does not exist yet, the
// deepest existing ancestor is resolved and the rest is appended, so a link
// in a parent directory cannot be used to escape.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, _ := filepath.Rel(dir, p)
			return filepath.Join(resolved, rel)
		}
		if dir == filepath.Dir(dir) {
			return p
		}
	}
}

// WithinDir reports an error unless name, taken relative to dir when not
// absolute, stays inside dir after cleaning and symlink resolution. It
// returns the joined path on success.
func WithinDir(dir, name string) (string, error) {
	full := name
	if !filepath.IsAbs(name) {
		full = filepath.Join(dir, name)
	}
	absPath, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	baseDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	rel, err := filepath.Rel(baseDir, canonical(absPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrOutsideDir, name, dir)
	}
	return full, nil
}
