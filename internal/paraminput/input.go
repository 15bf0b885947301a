// Package paraminput implements the typed parameter map: per-request
// storage for parameter values, keyed and shaped by a paramdef.Registry,
// plus the bookkeeping (used wildcards/embeddings, parser warnings, bound
// LoRAs, refusal reasons) a generation request accumulates as its prompt-
// like parameters are expanded.
package paraminput

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/promptlang"
	"github.com/do49/swarminput/internal/value"
)

// Input is one request's typed parameter map. The zero value is not usable;
// construct with New.
type Input struct {
	registry *paramdef.Registry
	models   promptlang.ModelRegistry

	mu        sync.Mutex
	values    map[string]value.Value
	rawText   map[string]string
	extraMeta map[string]string

	requiredFlags  map[string]bool
	refusalReasons []string

	wildcardRandom *rand.Rand
	sourceSession  string
	interruptToken string
	requestID      uuid.UUID

	usedWildcards  map[string]bool
	usedEmbeddings map[string]bool
	parserWarnings []string

	loraCanonicals []string
	loraStrengths  []string
	loraSections   []int
}

// New builds an empty Input bound to reg, seeding its wildcard RNG from
// seed exactly as given (-1 included). ApplySpecialLogic later reseeds it
// from the resolved wildcard_seed, or from seed and variation_seed.
func New(reg *paramdef.Registry, seed int64) *Input {
	return &Input{
		registry:       reg,
		values:         make(map[string]value.Value),
		rawText:        make(map[string]string),
		extraMeta:      make(map[string]string),
		requiredFlags:  make(map[string]bool),
		wildcardRandom: rand.New(rand.NewSource(seed)),
		usedWildcards:  make(map[string]bool),
		usedEmbeddings: make(map[string]bool),
		requestID:      uuid.New(),
	}
}

// RequestID returns the per-request identifier generated at construction.
func (in *Input) RequestID() uuid.UUID { return in.requestID }

// Registry exposes the descriptor table Input was built against.
func (in *Input) Registry() *paramdef.Registry { return in.registry }

// SetModelRegistry wires the collaborator MODEL-typed set_raw calls
// fuzzy-resolve against. With none set, MODEL values pass through as given,
// unresolved.
func (in *Input) SetModelRegistry(m promptlang.ModelRegistry) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.models = m
}

// SetRawText assigns text to id's raw textual form, running the
// descriptor's Clean hook (if any) against the previous raw value. If the
// cleaned result equals the descriptor's IgnoreIf sentinel, the key is
// deleted instead of stored. Otherwise the text is coerced to id's declared
// typed value, and id's FeatureFlag (if any) is added to required_flags.
// Implements promptlang.ParamSink so preset application and CLI/API
// ingestion share one entry point.
func (in *Input) SetRawText(id, text string) error {
	desc, ok := in.registry.Get(id)
	if !ok {
		return fmt.Errorf("paraminput: unknown parameter %q", id)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	var prev *string
	if old, ok := in.rawText[id]; ok {
		prev = &old
	}
	if desc.Clean != nil {
		text = desc.Clean(prev, text)
	}

	if desc.IgnoreIf != nil && text == *desc.IgnoreIf {
		delete(in.rawText, id)
		delete(in.values, id)
		return nil
	}

	v, err := coerce(desc, text, in.models)
	if err != nil {
		return fmt.Errorf("paraminput: %q: %w", id, err)
	}
	in.rawText[id] = text
	in.values[id] = v
	if desc.FeatureFlag != nil {
		in.requiredFlags[*desc.FeatureFlag] = true
	}
	return nil
}

// RawText returns id's stored raw textual form, if any.
func (in *Input) RawText(id string) (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	s, ok := in.rawText[id]
	return s, ok
}

// Get returns id's current typed value. If id is unset and its descriptor
// declares a non-empty Default, the default is coerced and returned without
// being persisted, so a descriptor's textual default only ever needs to be
// declared once.
func (in *Input) Get(id string) (value.Value, bool) {
	in.mu.Lock()
	if v, ok := in.values[id]; ok {
		in.mu.Unlock()
		return v, true
	}
	models := in.models
	in.mu.Unlock()

	desc, ok := in.registry.Get(id)
	if !ok || desc.Default == nil || *desc.Default == "" {
		return nil, false
	}
	v, err := coerce(desc, *desc.Default, models)
	if err != nil {
		return nil, false
	}
	return v, true
}

// setRawTextOnly stores text as id's raw form without running Clean or
// coercion, for callers (the original_* snapshot taken before expansion)
// that already hold a matching typed value to assign separately.
func (in *Input) setRawTextOnly(id, text string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rawText[id] = text
}

// SetTyped assigns a pre-built typed value directly, bypassing cleaning and
// coercion. Used by special-logic passes that compute a value outright
// (seed materialization, resolution splitting) rather than parsing text.
func (in *Input) SetTyped(id string, v value.Value) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.values[id] = v
}

// Remove drops id's stored raw text and typed value.
func (in *Input) Remove(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.rawText, id)
	delete(in.values, id)
}

// IDs returns every parameter id currently holding a typed value.
func (in *Input) IDs() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	ids := make([]string, 0, len(in.values))
	for id := range in.values {
		ids = append(ids, id)
	}
	return ids
}

// Clone makes an independent copy of in, sharing the registry but copying
// every other field, so a dry-run (length estimation, validation) can
// mutate freely without disturbing the original request.
func (in *Input) Clone() *Input {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := &Input{
		registry:       in.registry,
		models:         in.models,
		values:         make(map[string]value.Value, len(in.values)),
		rawText:        make(map[string]string, len(in.rawText)),
		extraMeta:      make(map[string]string, len(in.extraMeta)),
		requiredFlags:  make(map[string]bool, len(in.requiredFlags)),
		wildcardRandom: rand.New(rand.NewSource(in.wildcardRandom.Int63())),
		sourceSession:  in.sourceSession,
		interruptToken: in.interruptToken,
		requestID:      in.requestID,
		usedWildcards:  make(map[string]bool, len(in.usedWildcards)),
		usedEmbeddings: make(map[string]bool, len(in.usedEmbeddings)),
	}
	for k, v := range in.values {
		out.values[k] = v
	}
	for k, v := range in.rawText {
		out.rawText[k] = v
	}
	for k, v := range in.extraMeta {
		out.extraMeta[k] = v
	}
	for k, v := range in.requiredFlags {
		out.requiredFlags[k] = v
	}
	for k, v := range in.usedWildcards {
		out.usedWildcards[k] = v
	}
	for k, v := range in.usedEmbeddings {
		out.usedEmbeddings[k] = v
	}
	out.parserWarnings = append(out.parserWarnings, in.parserWarnings...)
	out.refusalReasons = append(out.refusalReasons, in.refusalReasons...)
	out.loraCanonicals = append(out.loraCanonicals, in.loraCanonicals...)
	out.loraStrengths = append(out.loraStrengths, in.loraStrengths...)
	out.loraSections = append(out.loraSections, in.loraSections...)
	return out
}

// --- extra_meta / required_flags / refusal_reasons -------------------------

// SetExtraMeta assigns an out-of-band metadata string, surfaced verbatim by
// the metadata emission pass.
func (in *Input) SetExtraMeta(key, val string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.extraMeta[key] = val
}

// ExtraMeta returns a snapshot of the accumulated extra metadata map.
func (in *Input) ExtraMeta() map[string]string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make(map[string]string, len(in.extraMeta))
	for k, v := range in.extraMeta {
		out[k] = v
	}
	return out
}

// RequireFlag marks name as a backend feature flag this request depends on.
func (in *Input) RequireFlag(name string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.requiredFlags[name] = true
}

// RequiredFlags returns every flag recorded by RequireFlag or by SetRawText
// for a descriptor declaring a FeatureFlag.
func (in *Input) RequiredFlags() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.requiredFlags))
	for f := range in.requiredFlags {
		out = append(out, f)
	}
	return out
}

// AddRefusalReason records why a request cannot proceed (e.g. an unresolved
// required model). A non-empty RefusalReasons list means the request must
// be rejected before generation starts.
func (in *Input) AddRefusalReason(reason string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.refusalReasons = append(in.refusalReasons, reason)
}

// RefusalReasons returns every reason recorded so far.
func (in *Input) RefusalReasons() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, len(in.refusalReasons))
	copy(out, in.refusalReasons)
	return out
}

// --- session / interrupt plumbing ------------------------------------------

func (in *Input) SetSourceSession(id string) { in.mu.Lock(); in.sourceSession = id; in.mu.Unlock() }
func (in *Input) SourceSession() string       { in.mu.Lock(); defer in.mu.Unlock(); return in.sourceSession }

func (in *Input) SetInterruptToken(tok string) { in.mu.Lock(); in.interruptToken = tok; in.mu.Unlock() }
func (in *Input) InterruptToken() string       { in.mu.Lock(); defer in.mu.Unlock(); return in.interruptToken }

// --- promptlang.Host -------------------------------------------------------

// WildcardRandom returns the request-scoped RNG every random/wildcard tag
// draws from, so a fixed wildcard_seed makes a whole request reproducible.
func (in *Input) WildcardRandom() *rand.Rand { return in.wildcardRandom }

// ReseedWildcardRandom replaces the wildcard RNG's source, used once the
// special-logic pass has resolved wildcard_seed to a concrete value.
func (in *Input) ReseedWildcardRandom(seed int64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.wildcardRandom = rand.New(rand.NewSource(seed))
}

// AddUsedWildcard records that canonical was drawn from during expansion.
func (in *Input) AddUsedWildcard(canonical string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.usedWildcards[canonical] = true
}

// AddUsedEmbedding records that canonical was referenced during expansion.
func (in *Input) AddUsedEmbedding(canonical string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.usedEmbeddings[canonical] = true
}

// AddWarning records a non-fatal parser warning.
func (in *Input) AddWarning(message string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.parserWarnings = append(in.parserWarnings, message)
}

// UsedWildcards returns every wildcard canonical name drawn from so far.
func (in *Input) UsedWildcards() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.usedWildcards))
	for w := range in.usedWildcards {
		out = append(out, w)
	}
	return out
}

// UsedEmbeddings returns every embedding canonical name referenced so far.
func (in *Input) UsedEmbeddings() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.usedEmbeddings))
	for w := range in.usedEmbeddings {
		out = append(out, w)
	}
	return out
}

// ParserWarnings returns every warning recorded so far.
func (in *Input) ParserWarnings() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, len(in.parserWarnings))
	copy(out, in.parserWarnings)
	return out
}

// CurrentModelCanonical returns the canonical name bound to the model
// parameter, if one has been resolved.
func (in *Input) CurrentModelCanonical() (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	v, ok := in.values[paramdef.IDModel]
	if !ok {
		return "", false
	}
	m, ok := v.(value.Model)
	if !ok || m.Canonical == "" {
		return "", false
	}
	return m.Canonical, true
}

// BoundLoraCanonicals returns every LoRA canonical name registered so far,
// in encounter order.
func (in *Input) BoundLoraCanonicals() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, len(in.loraCanonicals))
	copy(out, in.loraCanonicals)
	return out
}

// RegisterLora appends a resolved LoRA to the parallel loras/lora_weights/
// lora_section_confinement arrays and mirrors them into the typed values
// for the corresponding LIST parameters.
func (in *Input) RegisterLora(canonical, strength string, sectionID int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.loraCanonicals = append(in.loraCanonicals, canonical)
	in.loraStrengths = append(in.loraStrengths, strength)
	in.loraSections = append(in.loraSections, sectionID)

	in.values[paramdef.IDLoras] = value.StringList{Items: append([]string{}, in.loraCanonicals...)}
	in.values[paramdef.IDLoraWeights] = value.StringList{Items: append([]string{}, in.loraStrengths...)}

	sections := make([]string, len(in.loraSections))
	for i, s := range in.loraSections {
		sections[i] = strconv.Itoa(s)
	}
	in.values[paramdef.IDLoraSectionConfinement] = value.StringList{Items: sections}
}

// --- coercion ---------------------------------------------------------------

// coerce converts text into desc's declared typed representation. models is
// the optional ModelRegistry MODEL-typed parameters fuzzy-resolve against.
func coerce(desc *paramdef.Descriptor, text string, models promptlang.ModelRegistry) (value.Value, error) {
	switch desc.Type {
	case paramdef.INTEGER:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %w", err)
		}
		if desc.Width == 32 {
			return value.Int32{V: int32(n)}, nil
		}
		return value.Int64{V: n}, nil
	case paramdef.DECIMAL:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("not a decimal: %w", err)
		}
		if desc.Width == 32 {
			return value.Float32{V: float32(f)}, nil
		}
		return value.Float64{V: f}, nil
	case paramdef.BOOLEAN:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %w", err)
		}
		return value.Bool{V: b}, nil
	case paramdef.TEXT, paramdef.DROPDOWN:
		return value.String{V: text}, nil
	case paramdef.MODEL:
		return coerceModel(desc, text, models)
	case paramdef.IMAGE:
		return value.Image{Ref: text}, nil
	case paramdef.IMAGE_LIST:
		return value.ImageList{Refs: splitNonEmpty(text)}, nil
	case paramdef.LIST:
		return value.StringList{Items: splitNonEmpty(text)}, nil
	}
	return nil, fmt.Errorf("unhandled data type %s", desc.Type)
}

// coerceModel fuzzy-resolves text against models' known canonical names for
// desc.Subtype, storing the canonical handle. With no registry wired, text
// passes through unresolved, for callers (and tests) with no model
// collaborator configured.
func coerceModel(desc *paramdef.Descriptor, text string, models promptlang.ModelRegistry) (value.Value, error) {
	text = strings.TrimSpace(text)
	if models == nil {
		return value.Model{Canonical: text, Subtype: desc.Subtype}, nil
	}
	canonical, ok := models.BestMatch(text, models.ListNames(desc.Subtype))
	if !ok {
		return nil, fmt.Errorf("no known %s matches %q", desc.Subtype, text)
	}
	return value.Model{Canonical: canonical, Subtype: desc.Subtype}, nil
}

func splitNonEmpty(text string) []string {
	raw := strings.Split(text, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
