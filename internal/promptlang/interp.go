// Package promptlang implements the prompt-template interpreter: tag
// tokenization (scanner.go), the tag handler registry (tags.go), and the
// recursive expansion engine (this file). Tags are dispatched in three
// disjoint phases (basic, main, post) keyed by prefix, and all parse-time
// state (recursion depth, section id, variable bindings) is threaded
// explicitly through a ParseContext rather than held on the interpreter, so
// one Interpreter can safely expand many prompts concurrently.
package promptlang

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/do49/swarminput/internal/sequence"
)

// maxDepth caps recursive tag expansion so a cyclic wildcard or preset
// cannot grow a prompt without bound.
const maxDepth = 1000

// TagResult is the outcome of invoking a tag handler, expressed as an
// explicit variant rather than an in-band sentinel: Literal, Text, and
// Splice are mutually exclusive outcomes.
type TagResult struct {
	// Literal, when true, means the handler declined to produce a value and
	// the original tag text should be re-emitted unchanged.
	Literal bool
	// Text is the replacement text, used when Literal and HasSplice are
	// both false.
	Text string
	// HasSplice marks a preset-value splice: Before is prepended to the
	// whole parameter's final result, After is appended to it, and the tag
	// itself contributes nothing at its own position.
	HasSplice bool
	Before    string
	After     string
}

// Keep builds the "leave tag intact" result.
func Keep() TagResult { return TagResult{Literal: true} }

// Replace builds a plain text-replacement result.
func Replace(s string) TagResult { return TagResult{Text: s} }

// Erase builds the "erase the tag" result (Replace("")).
func Erase() TagResult { return TagResult{} }

// Splice builds a preset-value splice result.
func Splice(before, after string) TagResult {
	return TagResult{HasSplice: true, Before: before, After: after}
}

// TagHandler is the signature every basic/main/post tag handler implements.
type TagHandler func(data string, ctx *ParseContext) (TagResult, error)

// LengthEstimator is the signature for the side-effect-free length
// estimation pass's handlers.
type LengthEstimator func(data string, ctx *LengthContext) string

// ParseContext carries everything one parameter's expansion needs: the
// owning parameter id, variable bindings, the section counter, the
// recursion depth, the current tag's predata/raw text, and the
// trigger-phrase accumulator. Threaded explicitly through every recursive
// Parse call rather than held on the interpreter.
type ParseContext struct {
	interp *Interpreter
	host   Host

	Param     string
	variables map[string]string
	sectionID int

	depth       int
	depthWarned bool

	preData      string
	hasPreData   bool
	rawCurrentTag string

	triggerExtra strings.Builder

	addBefore []string
	addAfter  []string
}

// newParseContext creates the per-parameter parse state.
func newParseContext(interp *Interpreter, host Host, param string) *ParseContext {
	return &ParseContext{
		interp:    interp,
		host:      host,
		Param:     param,
		variables: make(map[string]string),
	}
}

// Host exposes the owning parameter map adapter to tag handlers.
func (c *ParseContext) Host() Host { return c.host }

// Interp exposes the owning interpreter to tag handlers, for collaborator
// lookups (model registry, wildcard store, preset store, sequence store).
func (c *ParseContext) Interp() *Interpreter { return c.interp }

// PreData returns the current tag's bracketed prefix, if any.
func (c *ParseContext) PreData() (string, bool) { return c.preData, c.hasPreData }

// SetVariable stores a setvar binding.
func (c *ParseContext) SetVariable(name, value string) { c.variables[name] = value }

// Variable looks up a var binding.
func (c *ParseContext) Variable(name string) (string, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// NextSectionID increments and returns the section counter, used by the
// segment/object/region post-pass tag.
func (c *ParseContext) NextSectionID() int {
	c.sectionID++
	return c.sectionID
}

// SectionID returns the current section counter without advancing it, used
// by lora to confine itself to the section a segment tag just opened.
func (c *ParseContext) SectionID() int { return c.sectionID }

// CurrentTagPrefix returns the prefix of the tag currently being dispatched
// (e.g. "segment", "object", "region"), for handlers that need to re-emit
// their own tag syntax rather than replace it with plain text.
func (c *ParseContext) CurrentTagPrefix() string {
	inner := strings.TrimSuffix(strings.TrimPrefix(c.rawCurrentTag, "<"), ">")
	prefix, _, _, _, _ := SplitTagInner(inner)
	return prefix
}

// AddWarning records a parser warning through both the owning Host and the
// interpreter's logger. internal/paraminput.Input keeps it in the list
// ParserWarnings returns; it is not written into extra_meta.
func (c *ParseContext) AddWarning(message string) {
	c.host.AddWarning(message)
	if c.interp.logger != nil {
		c.interp.logger.Warn("prompt tag warning",
			zap.String("param", c.Param),
			zap.String("tag", c.rawCurrentTag),
			zap.String("reason", message),
		)
	}
}

// AddTriggerPhrase appends a bound asset's trigger phrase onto the shared
// accumulator that later gets substituted in for every triggerextra
// sentinel in the fully expanded prompt.
func (c *ParseContext) AddTriggerPhrase(phrase string) {
	if phrase == "" {
		return
	}
	c.triggerExtra.WriteString(phrase)
	c.triggerExtra.WriteString(", ")
}

// Parse recursively expands s through the three-phase pipeline, enforcing
// the depth cap. Handlers that recurse into tag data must call this instead
// of re-implementing the pipeline.
func (c *ParseContext) Parse(s string) (string, error) {
	c.depth++
	defer func() { c.depth-- }()

	if c.depth > maxDepth {
		if !c.depthWarned {
			c.depthWarned = true
			c.AddWarning(fmt.Sprintf("recursive prompt tags exceeded depth cap of %s", humanize.Comma(int64(maxDepth))))
		}
		return s, nil
	}

	out := s
	var err error
	for _, phase := range []Phase{PhaseBasic, PhaseMain, PhasePost} {
		out, err = c.interp.runPhase(c, phase, out)
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

// Interpreter runs the tag handler registry over parameter strings. It
// holds the three disjoint handler maps, the length-estimator map, and the
// external collaborators tag handlers need: a ModelRegistry, a
// WildcardStore, a PresetStore, and a process-wide sequence cursor table.
type Interpreter struct {
	basic  map[string]TagHandler
	main   map[string]TagHandler
	post   map[string]TagHandler
	length map[string]LengthEstimator

	models    ModelRegistry
	wildcards WildcardStore
	presets   PresetStore
	sequences *sequence.Store

	logger *zap.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithModelRegistry sets the ModelRegistry collaborator.
func WithModelRegistry(r ModelRegistry) Option {
	return func(ip *Interpreter) { ip.models = r }
}

// WithWildcardStore sets the WildcardStore collaborator.
func WithWildcardStore(s WildcardStore) Option {
	return func(ip *Interpreter) { ip.wildcards = s }
}

// WithPresetStore sets the PresetStore collaborator.
func WithPresetStore(s PresetStore) Option {
	return func(ip *Interpreter) { ip.presets = s }
}

// WithSequenceStore sets the process-wide sequence cursor table. If unset,
// New creates a private one.
func WithSequenceStore(s *sequence.Store) Option {
	return func(ip *Interpreter) { ip.sequences = s }
}

// WithLogger sets the logger warnings are mirrored to.
func WithLogger(l *zap.Logger) Option {
	return func(ip *Interpreter) { ip.logger = l }
}

// New builds an Interpreter with the built-in tag handler registry plus any
// collaborators supplied through options.
func New(opts ...Option) *Interpreter {
	ip := &Interpreter{
		sequences: sequence.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ip)
	}
	ip.basic, ip.main, ip.post, ip.length = buildRegistry()
	return ip
}

// Sequences exposes the interpreter's sequence store, so callers can clear
// and GC it around a parameter-map re-parse.
func (ip *Interpreter) Sequences() *sequence.Store { return ip.sequences }

// Models exposes the model registry collaborator.
func (ip *Interpreter) Models() ModelRegistry { return ip.models }

// Wildcards exposes the wildcard store collaborator.
func (ip *Interpreter) Wildcards() WildcardStore { return ip.wildcards }

// Presets exposes the preset store collaborator.
func (ip *Interpreter) Presets() PresetStore { return ip.presets }

// ProcessPromptLike runs the full pipeline over text for the named
// parameter, applying the trigger-phrase substitution and the preset-splice
// join exactly once, at the end, so nested recursive Parse calls never
// re-apply them.
func (ip *Interpreter) ProcessPromptLike(host Host, param, text string) (string, error) {
	ctx := newParseContext(ip, host, param)
	result, err := ctx.Parse(text)
	if err != nil {
		return "", err
	}

	trigger := strings.TrimSuffix(ctx.triggerExtra.String(), ", ")
	result = strings.ReplaceAll(result, "\x00triggerextra", trigger)

	if len(ctx.addBefore) > 0 || len(ctx.addAfter) > 0 {
		result = strings.Join(ctx.addBefore, "") + result + strings.Join(ctx.addAfter, "")
	}

	return result, nil
}

// runPhase scans text for tags and dispatches every one whose prefix is
// registered in phase's handler map; tags belonging to other phases (or to
// no phase at all) are re-emitted verbatim, to be picked up by a later pass
// or left untouched.
func (ip *Interpreter) runPhase(ctx *ParseContext, phase Phase, text string) (string, error) {
	var out strings.Builder
	remaining := text

	for {
		start, end, found := FindTag(remaining)
		if !found {
			out.WriteString(remaining)
			break
		}
		out.WriteString(remaining[:start])
		inner := remaining[start+1 : end]

		replacement, err := ip.dispatch(ctx, phase, inner)
		if err != nil {
			return "", err
		}
		out.WriteString(replacement)
		remaining = remaining[end+1:]
	}

	return out.String(), nil
}

func (ip *Interpreter) handlerMap(phase Phase) map[string]TagHandler {
	switch phase {
	case PhaseBasic:
		return ip.basic
	case PhaseMain:
		return ip.main
	case PhasePost:
		return ip.post
	}
	return nil
}

// dispatch resolves one tag's prefix against phase's handler map and either
// runs the handler or re-emits the tag literally.
func (ip *Interpreter) dispatch(ctx *ParseContext, phase Phase, inner string) (string, error) {
	prefix, predata, hasPredata, data, hasData := SplitTagInner(inner)
	literal := "<" + inner + ">"

	handler, ok := ip.handlerMap(phase)[prefix]
	if !ok {
		return literal, nil
	}

	if phase != PhaseBasic && !hasData {
		ctx.rawCurrentTag = literal
		ctx.AddWarning(fmt.Sprintf("tag %q requires data after ':' but had none", prefix))
		return literal, nil
	}

	ctx.preData = predata
	ctx.hasPreData = hasPredata
	ctx.rawCurrentTag = literal

	result, err := handler(data, ctx)
	if err != nil {
		return "", fmt.Errorf("tag %q in param %q: %w", prefix, ctx.Param, err)
	}

	if result.Literal {
		return literal, nil
	}
	if result.HasSplice {
		ctx.addBefore = append(ctx.addBefore, result.Before)
		ctx.addAfter = append(ctx.addAfter, result.After)
		return "", nil
	}
	return result.Text, nil
}

// LengthContext is the read-only, side-effect-free counterpart to
// ParseContext used by the length-estimation pass.
type LengthContext struct {
	interp *Interpreter
	depth  int

	preData    string
	hasPreData bool
}

// PreData returns the current tag's bracketed prefix, if any.
func (c *LengthContext) PreData() (string, bool) { return c.preData, c.hasPreData }

// Interp exposes the owning interpreter to length estimators.
func (c *LengthContext) Interp() *Interpreter { return c.interp }

// Estimate recursively estimates s's expanded length, enforcing the same
// depth cap as Parse (returning s unchanged past the cap, silently — the
// estimation pass has no warning channel).
func (c *LengthContext) Estimate(s string) string {
	c.depth++
	defer func() { c.depth-- }()
	if c.depth > maxDepth {
		return s
	}
	return c.interp.runLengthPass(c, s)
}

// EstimateLength runs the side-effect-free length estimation pass over
// text: no mutation, no RNG draws beyond picking the longest candidate, no
// sequence advances (peek only).
func (ip *Interpreter) EstimateLength(text string) string {
	ctx := &LengthContext{interp: ip}
	return ctx.Estimate(text)
}

func (ip *Interpreter) runLengthPass(ctx *LengthContext, text string) string {
	var out strings.Builder
	remaining := text

	for {
		start, end, found := FindTag(remaining)
		if !found {
			out.WriteString(remaining)
			break
		}
		out.WriteString(remaining[:start])
		inner := remaining[start+1 : end]
		prefix, predata, hasPredata, data, _ := SplitTagInner(inner)

		if est, ok := ip.length[prefix]; ok {
			savedPre, savedHas := ctx.currentPre()
			ctx.setPre(predata, hasPredata)
			out.WriteString(est(data, ctx))
			ctx.setPre(savedPre, savedHas)
		} else {
			out.WriteString("<" + inner + ">")
		}
		remaining = remaining[end+1:]
	}

	return out.String()
}

// currentPre/setPre let length estimators read the current tag's predata
// without widening LengthContext's exported surface.
func (c *LengthContext) currentPre() (string, bool) { return c.preData, c.hasPreData }
func (c *LengthContext) setPre(p string, has bool)  { c.preData, c.hasPreData = p, has }
