package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrSourceNotFound is returned when a named corpus file does not exist.
var ErrSourceNotFound = errors.New("corpus source not found")

// CorpusSource provides per-customer corpus files.
type CorpusSource interface {
	// List returns file names in lexical order.
	List(ctx context.Context) ([]string, error)

	// Read returns the contents of a file returned by List.
	Read(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads *.json files from a directory tree.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// List walks the root and returns .json files relative to it, slash separated.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list corpus %s: %w", s.root, err)
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the contents of name.
func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return data, err
}

// MemorySource serves files from a map. Used for tests and generated corpora.
type MemorySource map[string][]byte

// List returns the map keys in lexical order.
func (m MemorySource) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the contents of name.
func (m MemorySource) Read(_ context.Context, name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return data, nil
}

// customerFromName derives a customer id from a file name: "a/cust_42.json" -> "cust_42".
func customerFromName(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
