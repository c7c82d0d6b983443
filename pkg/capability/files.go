package capability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/nodeflow/pkg/validation"
)

// OSFiles accesses the local filesystem, optionally confined under a root.
type OSFiles struct {
	validator *validation.PathValidator
}

// NewOSFiles creates a filesystem backend. An empty root leaves paths unconfined.
func NewOSFiles(root string) (*OSFiles, error) {
	if root == "" {
		return &OSFiles{}, nil
	}
	v, err := validation.NewPathValidator(root)
	if err != nil {
		return nil, fmt.Errorf("invalid files root: %w", err)
	}
	return &OSFiles{validator: v}, nil
}

// Resolve returns the path used for p.
func (f *OSFiles) Resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if f.validator == nil {
		return filepath.Clean(p), nil
	}
	return f.validator.Validate(p)
}

// Read returns the content of p.
func (f *OSFiles) Read(_ context.Context, p string) ([]byte, error) {
	resolved, err := f.Resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Write replaces the content of p, creating parent directories.
func (f *OSFiles) Write(_ context.Context, p string, data []byte) error {
	resolved, err := f.Resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
