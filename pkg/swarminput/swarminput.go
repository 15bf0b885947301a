// Package swarminput is the public API for the prompt tag interpreter and
// typed parameter map: construct a Runtime with the collaborators a
// deployment needs (a model registry, wildcard and preset stores, a
// logger), then drive requests through it with NewInput/Prepare.
package swarminput

import (
	"go.uber.org/zap"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/paraminput"
	"github.com/do49/swarminput/internal/promptlang"
)

// Runtime wires a parameter registry and a tag interpreter together with
// whatever model/wildcard/preset collaborators a deployment configures.
type Runtime struct {
	registry *paramdef.Registry
	interp   *promptlang.Interpreter

	models    promptlang.ModelRegistry
	wildcards promptlang.WildcardStore
	presets   promptlang.PresetStore
	logger    *zap.Logger

	closers []func() error
}

// New builds a Runtime from opts. With no options it uses the stand-alone
// default parameter registry and a no-op logger, and has no model,
// wildcard, or preset collaborators configured (lookups against them
// simply miss).
func New(opts ...Option) *Runtime {
	r := &Runtime{
		registry: paramdef.DefaultRegistry(),
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	interpOpts := []promptlang.Option{}
	if r.models != nil {
		interpOpts = append(interpOpts, promptlang.WithModelRegistry(r.models))
	}
	if r.wildcards != nil {
		interpOpts = append(interpOpts, promptlang.WithWildcardStore(r.wildcards))
	}
	if r.presets != nil {
		interpOpts = append(interpOpts, promptlang.WithPresetStore(r.presets))
	}
	interpOpts = append(interpOpts, promptlang.WithLogger(r.logger))

	r.interp = promptlang.New(interpOpts...)
	return r
}

// Registry exposes the descriptor table new Input values are built against.
func (r *Runtime) Registry() *paramdef.Registry { return r.registry }

// Interpreter exposes the tag interpreter directly, for callers that need
// EstimateLength or a collaborator accessor the Runtime does not wrap.
func (r *Runtime) Interpreter() *promptlang.Interpreter { return r.interp }

// NewInput builds an empty typed parameter map bound to this Runtime's
// registry. seed seeds the request's wildcard RNG before ApplySpecialLogic
// has a chance to reseed it from a resolved wildcard_seed/seed parameter.
func (r *Runtime) NewInput(seed int64) *paraminput.Input {
	in := paraminput.New(r.registry, seed)
	in.SetModelRegistry(r.models)
	return in
}

// Prepare runs a request's parameter map through the special-logic passes
// (seed materialization, resolution splitting, LoRA alignment, early preset
// extraction) and then expands its prompt-like parameters. Callers must
// have finished assigning raw parameter text via in.SetRawText before
// calling this.
func (r *Runtime) Prepare(in *paraminput.Input) error {
	if err := paraminput.ApplySpecialLogic(in, r.presets); err != nil {
		return err
	}
	return paraminput.PreparsePrompts(r.interp, in)
}

// EstimateLength runs the side-effect-free length estimation pass over text,
// without mutating any Input or advancing any sequence cursor.
func (r *Runtime) EstimateLength(text string) string {
	return r.interp.EstimateLength(text)
}

// Metadata builds the sui_image_params envelope body for a prepared Input.
func (r *Runtime) Metadata(in *paraminput.Input) map[string]any {
	return paraminput.GenerateMetadata(in)
}

// MetadataJSON renders Metadata wrapped in its envelope as indented JSON.
func (r *Runtime) MetadataJSON(in *paraminput.Input) ([]byte, error) {
	return paraminput.RawMetadataJSON(in)
}

// Close releases any resources collaborators configured through options
// (currently, a SQLite-backed model registry's database handle).
func (r *Runtime) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
