package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/nodeflow/pkg/storage"
	"github.com/dshills/nodeflow/pkg/workflow"
)

// graphRepository opens the graphs directory of the config dir
func graphRepository() (*storage.FilesystemGraphRepository, error) {
	repo, err := storage.NewFilesystemGraphRepositoryWithPath(GetConfigDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open graphs directory: %w", err)
	}
	return repo, nil
}

// historyRepository opens the run history database
func historyRepository() (*storage.SQLiteExecutionRepository, error) {
	repo, err := storage.NewSQLiteExecutionRepositoryWithPath(GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return repo, nil
}

// isGraphPath reports whether ref names a file rather than a stored graph
func isGraphPath(ref string) bool {
	if strings.ContainsRune(ref, os.PathSeparator) || strings.Contains(ref, "/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// graphSource returns the document bytes and location of a graph given by
// name or path
func graphSource(ref string) ([]byte, string, error) {
	path := ref
	if !isGraphPath(ref) {
		path = filepath.Join(GetGraphsDir(), ref+".yaml")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if isGraphPath(ref) {
			return nil, path, fmt.Errorf("graph file not found: %s", path)
		}
		return nil, path, fmt.Errorf("graph not found: %s\n\nLooked in: %s", ref, path)
	}
	if err != nil {
		return nil, path, fmt.Errorf("failed to read graph: %w", err)
	}
	return data, path, nil
}

// loadGraph reads a graph by name or path without validating it
func loadGraph(ref string) (*workflow.Graph, error) {
	if !isGraphPath(ref) {
		repo, err := graphRepository()
		if err != nil {
			return nil, err
		}
		g, err := repo.Load(ref)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("graph not found: %s\n\nLooked in: %s", ref, repo.Dir())
		}
		return g, err
	}

	data, path, err := graphSource(ref)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return workflow.ParseJSON(data)
	}
	return workflow.Decode(data)
}
