package registry

import (
	"sync"

	"github.com/do49/swarminput/internal/promptlang"
)

// entry is one registered model/LoRA/embedding.
type entry struct {
	subtype string
	info    promptlang.ModelInfo
}

// MemoryModelRegistry is an in-memory promptlang.ModelRegistry, modeled on
// the same RWMutex-guarded map shape used elsewhere in this codebase for
// small, frequently-read registries.
type MemoryModelRegistry struct {
	mu      sync.RWMutex
	entries map[string]entry // keyed by canonical name
}

// NewMemoryModelRegistry builds an empty in-memory registry.
func NewMemoryModelRegistry() *MemoryModelRegistry {
	return &MemoryModelRegistry{entries: make(map[string]entry)}
}

// Register adds or replaces a canonical name's entry.
func (r *MemoryModelRegistry) Register(subtype, canonical, triggerPhrase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[canonical] = entry{
		subtype: subtype,
		info:    promptlang.ModelInfo{Canonical: canonical, TriggerPhrase: triggerPhrase},
	}
}

// BestMatch fuzzy-resolves query against candidates.
func (r *MemoryModelRegistry) BestMatch(query string, candidates []string) (string, bool) {
	return FuzzyBestMatch(query, candidates)
}

// ListNames returns every canonical name registered under subtype.
func (r *MemoryModelRegistry) ListNames(subtype string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for canonical, e := range r.entries {
		if e.subtype == subtype {
			names = append(names, canonical)
		}
	}
	return names
}

// Get returns the registered info for canonical.
func (r *MemoryModelRegistry) Get(canonical string) (promptlang.ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[canonical]
	return e.info, ok
}
