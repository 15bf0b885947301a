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

// presetFileConfig is the on-disk YAML shape a preset file parses into.
type presetFileConfig struct {
	ParamMap map[string]string `yaml:"param_map"`
	Template string            `yaml:"template"`
}

// FilePresetStore is a promptlang.PresetStore loaded once from a directory
// of *.yml/*.yaml preset files and held read-only afterward.
type FilePresetStore struct {
	mu      sync.RWMutex
	presets map[string]*promptlang.Preset
}

// LoadPresetsFromDir walks dir recursively, parsing every *.yml/*.yaml file
// as a preset named after its path relative to dir, without extension.
func LoadPresetsFromDir(dir string) (*FilePresetStore, error) {
	store := &FilePresetStore{presets: make(map[string]*promptlang.Preset)}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("registry: computing preset name for %s: %w", path, err)
		}
		name := strings.TrimSuffix(rel, ext)
		name = strings.ReplaceAll(name, string(filepath.Separator), "/")

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("registry: reading preset %s: %w", path, err)
		}
		var cfg presetFileConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("registry: parsing preset %s: %w", path, err)
		}

		store.presets[strings.ToLower(name)] = &promptlang.Preset{
			ParamMap: cfg.ParamMap,
			Template: cfg.Template,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Get returns the preset registered under name.
func (s *FilePresetStore) Get(name string) (*promptlang.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presets[normalize(name)]
	return p, ok
}
