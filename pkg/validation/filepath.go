package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// PathValidator confines file-touching nodes to one root directory.
// Symbolic links are resolved before the containment check. Safe for
// concurrent use.
type PathValidator struct {
	root         string
	resolvedRoot string
	maxPathLen   int
	validations  atomic.Uint64
	rejections   atomic.Uint64
}

// PathError reports a rejected path.
type PathError struct {
	Path     string
	Reason   string
	Resolved string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	if e.Resolved != "" {
		return fmt.Sprintf("path rejected: %s (input: %s, resolved: %s)", e.Reason, e.Path, e.Resolved)
	}
	return fmt.Sprintf("path rejected: %s (input: %s)", e.Reason, e.Path)
}

// NewPathValidator creates a validator for root, which must be an existing
// directory. Relative roots are made absolute.
func NewPathValidator(root string) (*PathValidator, error) {
	if root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cannot make root absolute: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot access root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", abs)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve symbolic links in root path: %w", err)
	}
	return &PathValidator{root: abs, resolvedRoot: resolved, maxPathLen: 1024}, nil
}

// Root returns the absolute root directory.
func (v *PathValidator) Root() string {
	return v.root
}

// Validate returns the resolved absolute form of p when it stays inside the
// root. Relative paths are taken from the root; absolute paths must already
// point inside it. Paths that do not exist yet are resolved through their
// nearest existing ancestor, so files can be created.
func (v *PathValidator) Validate(p string) (string, error) {
	v.validations.Add(1)

	switch {
	case p == "":
		return "", v.reject(p, "path cannot be empty", "")
	case len(p) > v.maxPathLen:
		return "", v.reject(p, fmt.Sprintf("path length exceeds maximum of %d bytes", v.maxPathLen), "")
	}

	full := p
	if !filepath.IsAbs(full) {
		if !filepath.IsLocal(p) {
			return "", v.reject(p, "path escapes root directory", "")
		}
		full = filepath.Join(v.root, p)
	}
	full = filepath.Clean(full)

	resolved, err := resolveExisting(full)
	if err != nil {
		return "", v.reject(p, "cannot resolve path", "")
	}

	rel, err := filepath.Rel(v.resolvedRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", v.reject(p, "resolved path escapes root directory", resolved)
	}
	return resolved, nil
}

// Stats returns the number of Validate calls and rejections.
func (v *PathValidator) Stats() (validations, rejections uint64) {
	return v.validations.Load(), v.rejections.Load()
}

func (v *PathValidator) reject(p, reason, resolved string) error {
	v.rejections.Add(1)
	return &PathError{Path: p, Reason: reason, Resolved: resolved}
}

// resolveExisting evaluates symlinks on the longest existing prefix of p and
// re-appends the missing tail.
func resolveExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}
