package swarminput

import (
	"go.uber.org/zap"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/promptlang"
	"github.com/do49/swarminput/internal/registry"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithRegistry overrides the default parameter descriptor registry.
func WithRegistry(reg *paramdef.Registry) Option {
	return func(r *Runtime) { r.registry = reg }
}

// WithLogger sets the logger tag-expansion warnings are mirrored to.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithModelRegistry sets an arbitrary promptlang.ModelRegistry collaborator.
func WithModelRegistry(m promptlang.ModelRegistry) Option {
	return func(r *Runtime) { r.models = m }
}

// WithMemoryModelRegistry configures an empty in-memory model registry,
// useful for tests and small deployments that register models at startup.
func WithMemoryModelRegistry() Option {
	return func(r *Runtime) { r.models = registry.NewMemoryModelRegistry() }
}

// WithSQLiteModelRegistry configures a SQLite-backed model registry at
// path, creating the database if needed. A failure to open or migrate the
// database leaves the Runtime's model registry unset rather than aborting
// construction, matching how this package's other WithX options degrade.
func WithSQLiteModelRegistry(path string) Option {
	return func(r *Runtime) {
		m, err := registry.NewSQLiteModelRegistry(path)
		if err != nil {
			return
		}
		r.models = m
		r.closers = append(r.closers, m.Close)
	}
}

// WithWildcardStore sets an arbitrary promptlang.WildcardStore collaborator.
func WithWildcardStore(w promptlang.WildcardStore) Option {
	return func(r *Runtime) { r.wildcards = w }
}

// WithWildcardDir loads every wildcard file under dir into an in-memory
// store. A load failure leaves the Runtime's wildcard store unset.
func WithWildcardDir(dir string) Option {
	return func(r *Runtime) {
		w, err := registry.LoadWildcardsFromDir(dir)
		if err != nil {
			return
		}
		r.wildcards = w
	}
}

// WithPresetStore sets an arbitrary promptlang.PresetStore collaborator.
func WithPresetStore(p promptlang.PresetStore) Option {
	return func(r *Runtime) { r.presets = p }
}

// WithPresetDir loads every preset file under dir into an in-memory store.
// A load failure leaves the Runtime's preset store unset.
func WithPresetDir(dir string) Option {
	return func(r *Runtime) {
		p, err := registry.LoadPresetsFromDir(dir)
		if err != nil {
			return
		}
		r.presets = p
	}
}
