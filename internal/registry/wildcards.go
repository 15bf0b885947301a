package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/do49/swarminput/internal/promptlang"
)

// wildcardFileConfig is the on-disk YAML shape a *.yml/*.yaml wildcard file
// parses into. Plain *.txt files are treated as one option per line with no
// frontmatter.
type wildcardFileConfig struct {
	Options []string `yaml:"options"`
}

// FileWildcardStore is a promptlang.WildcardStore loaded once from a
// directory tree of wildcard files and held read-only afterward, following
// the load-into-memory-then-serve pattern directory-backed registries in
// this codebase use.
type FileWildcardStore struct {
	mu    sync.RWMutex
	files map[string]promptlang.WildcardFile
}

// LoadWildcardsFromDir walks dir recursively, treating every *.txt file as a
// newline-delimited option list and every *.yml/*.yaml file as a
// wildcardFileConfig. A file's wildcard name is its path relative to dir,
// without extension, with path separators normalized to '/'.
func LoadWildcardsFromDir(dir string) (*FileWildcardStore, error) {
	store := &FileWildcardStore{files: make(map[string]promptlang.WildcardFile)}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".yml" && ext != ".yaml" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("registry: computing wildcard name for %s: %w", path, err)
		}
		name := strings.TrimSuffix(rel, ext)
		name = strings.ReplaceAll(name, string(filepath.Separator), "/")

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("registry: reading wildcard %s: %w", path, err)
		}

		var options []string
		if ext == ".txt" {
			options = splitLines(data)
		} else {
			var cfg wildcardFileConfig
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("registry: parsing wildcard %s: %w", path, err)
			}
			options = cfg.Options
		}
		if len(options) == 0 {
			return nil
		}

		store.files[strings.ToLower(name)] = promptlang.WildcardFile{Options: options}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func splitLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ListFiles returns every loaded wildcard name.
func (s *FileWildcardStore) ListFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names
}

// Get returns the wildcard file registered under name.
func (s *FileWildcardStore) Get(name string) (promptlang.WildcardFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[normalize(name)]
	return f, ok
}

// BestMatch fuzzy-resolves query against candidates.
func (s *FileWildcardStore) BestMatch(query string, candidates []string) (string, bool) {
	return FuzzyBestMatch(query, candidates)
}
