package promptlang

import "math/rand"

// ModelInfo is what the interpreter needs to know about a resolved model,
// LoRA, or embedding: its canonical name and, if any, the trigger phrase
// associated with it.
type ModelInfo struct {
	Canonical     string
	TriggerPhrase string
}

// ModelRegistry is the external collaborator the lora and embed tags, and
// MODEL-typed parameters in internal/paraminput, fuzzy-resolve names
// against. The preset and trigger tags do not consult it.
// internal/registry supplies concrete adapters.
type ModelRegistry interface {
	// BestMatch fuzzy-resolves query against candidates, honoring path
	// separators normalized to '/' and lowercase.
	BestMatch(query string, candidates []string) (canonical string, ok bool)
	// ListNames returns every canonical name known for subtype (e.g. "model",
	// "lora", "embedding").
	ListNames(subtype string) []string
	// Get returns trigger-phrase metadata for a canonical name.
	Get(canonical string) (ModelInfo, bool)
}

// WildcardFile is a named external option list.
type WildcardFile struct {
	Options []string
}

// WildcardStore is the external collaborator the wildcard/wildcardseq tags
// draw options from.
type WildcardStore interface {
	ListFiles() []string
	Get(name string) (WildcardFile, bool)
	// BestMatch fuzzy-resolves query against candidates, the same contract
	// ModelRegistry.BestMatch honors, so a misspelled wildcard name still
	// resolves to the file the caller meant.
	BestMatch(query string, candidates []string) (canonical string, ok bool)
}

// Preset is a named bundle of parameter assignments, optionally carrying a
// prompt template containing one `{value}` placeholder.
type Preset struct {
	ParamMap map[string]string
	Template string
}

// ApplyTo assigns every entry of p.ParamMap onto sink, in the order given by
// order (callers should pass a stable iteration order since ParamMap is a
// plain map).
func (p *Preset) ApplyTo(sink ParamSink, order []string) error {
	for _, id := range order {
		text, ok := p.ParamMap[id]
		if !ok {
			continue
		}
		if err := sink.SetRawText(id, text); err != nil {
			return err
		}
	}
	return nil
}

// PresetStore is the external collaborator the preset tag and the early-
// preset-extraction special-logic pass resolve names against.
type PresetStore interface {
	Get(name string) (*Preset, bool)
}

// ParamSink is the narrow slice of the parameter map a preset's ApplyTo
// needs: the ability to assign raw text to a parameter id. The typed
// parameter map (internal/paraminput.Input) implements this.
type ParamSink interface {
	SetRawText(id, text string) error
}

// Host is the full adapter the interpreter needs from the owning parameter
// map while expanding one prompt-like parameter: side-effect recording
// (warnings, used wildcards/embeddings), the request-scoped wildcard RNG,
// and LoRA registration. internal/paraminput.Input implements this.
type Host interface {
	ParamSink

	WildcardRandom() *rand.Rand
	AddUsedWildcard(canonical string)
	AddUsedEmbedding(canonical string)
	AddWarning(message string)

	// CurrentModelCanonical returns the canonical name of the "model"
	// parameter's current value, if one is set.
	CurrentModelCanonical() (string, bool)
	// BoundLoraCanonicals returns the canonical names already registered by
	// prior lora tags in this parse, in encounter order.
	BoundLoraCanonicals() []string
	// RegisterLora appends a resolved LoRA to the parameter map's parallel
	// arrays, confining it to sectionID.
	RegisterLora(canonical, strength string, sectionID int)
}
