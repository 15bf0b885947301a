package promptlang

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"

	"github.com/do49/swarminput/internal/sequence"
)

// buildRegistry constructs the three phase-keyed handler tables plus the
// parallel length-estimator table. Called once from New.
func buildRegistry() (basic, main, post map[string]TagHandler, length map[string]LengthEstimator) {
	basic = map[string]TagHandler{
		"break":   handleBreak,
		"trigger": handleTrigger,
	}

	main = map[string]TagHandler{
		"random":      handleRandom,
		"alternate":   handleAlternate,
		"alt":         handleAlternate,
		"fromto":      handleFromTo,
		"wildcard":    handleWildcard,
		"wc":          handleWildcard,
		"wildcardseq": handleWildcardSeq,
		"wcs":         handleWildcardSeq,
		"repeat":      handleRepeat,
		"preset":      handlePreset,
		"p":           handlePreset,
		"embed":       handleEmbed,
		"embedding":   handleEmbed,
		"setvar":      handleSetVar,
		"var":         handleVar,
		"seq":         handleSeq,
	}

	post = map[string]TagHandler{
		"lora":    handleLora,
		"segment": handleSegment,
		"object":  handleSegment,
		"region":  handleSegment,
	}

	length = map[string]LengthEstimator{
		"random":      lengthLongestOf,
		"alternate":   lengthLongestOf,
		"alt":         lengthLongestOf,
		"fromto":      lengthLongestOf,
		"wildcard":    lengthWildcard,
		"wc":          lengthWildcard,
		"wildcardseq": lengthWildcardSeq,
		"wcs":         lengthWildcardSeq,
		"repeat":      lengthRepeat,
		"preset":      lengthEmpty,
		"p":           lengthEmpty,
		"embed":       lengthEmpty,
		"embedding":   lengthEmpty,
		"setvar":      lengthSetVar,
		"var":         lengthEmpty,
		"seq":         lengthSeq,
		"break":       lengthBreak,
		"trigger":     lengthEmpty,
		"lora":        lengthEmpty,
		"segment":     lengthLongestOf, // single body, same machinery as a one-item choice
		"object":      lengthLongestOf,
		"region":      lengthLongestOf,
	}
	return
}

// --- basic phase -----------------------------------------------------------

// handleBreak leaves <break> untouched; it is meaningful to the image
// backend's own prompt grammar, not to this interpreter.
func handleBreak(data string, ctx *ParseContext) (TagResult, error) {
	return Keep(), nil
}

// handleTrigger emits the sentinel later substituted with every trigger
// phrase accumulated by lora and embed side effects during this
// parameter's expansion. Preset tags add no trigger phrase.
func handleTrigger(data string, ctx *ParseContext) (TagResult, error) {
	return Replace("\x00triggerextra"), nil
}

// --- main phase -------------------------------------------------------------

// parseCountRange parses a `<random[N]:...>`, `<random[N-M]:...>`, or
// `<random[N,]:...>` predata bracket into an inclusive draw count range. A
// trailing comma selects handleRandom's join separator and carries no
// numeric meaning itself, so it is stripped before parsing the count. Absent
// or malformed predata falls back to exactly one draw.
func parseCountRange(predata string, numOptions int) (min, max int) {
	predata = strings.TrimSpace(predata)
	predata = strings.TrimSpace(strings.TrimSuffix(predata, ","))
	if predata == "" {
		return 1, 1
	}
	if lo, hi, ok := strings.Cut(predata, "-"); ok {
		loN, errLo := strconv.Atoi(strings.TrimSpace(lo))
		hiN, errHi := strconv.Atoi(strings.TrimSpace(hi))
		if errLo == nil && errHi == nil && loN > 0 && hiN >= loN {
			return loN, hiN
		}
	}
	if n, err := strconv.Atoi(predata); err == nil && n > 0 {
		return n, n
	}
	return 1, 1
}

func handleRandom(data string, ctx *ParseContext) (TagResult, error) {
	options := SplitSmartNonEmpty(data)
	if len(options) == 0 {
		return Erase(), nil
	}
	predata, _ := ctx.PreData()
	min, max := parseCountRange(predata, len(options))
	sep := " "
	if strings.HasSuffix(strings.TrimSpace(predata), ",") {
		sep = ", "
	}

	rng := ctx.Host().WildcardRandom()
	count := min
	if max > min {
		count = min + rng.Intn(max-min+1)
	}

	picked := drawWithRefill(rng, options, count)
	chosen := make([]string, len(picked))
	for i, p := range picked {
		out, err := expandRandomPick(p, rng, ctx)
		if err != nil {
			return TagResult{}, err
		}
		chosen[i] = out
	}
	return Replace(strings.Join(chosen, sep)), nil
}

// drawWithRefill draws count elements from options without replacement
// within each pass, refilling the pool and drawing again once a pass
// exhausts it, so requesting more picks than len(options) still returns
// exactly count results instead of silently truncating to len(options).
func drawWithRefill(rng interface{ Intn(int) int }, options []string, count int) []string {
	if count <= 0 {
		return nil
	}
	out := make([]string, 0, count)
	for len(out) < count {
		batch := count - len(out)
		if batch > len(options) {
			batch = len(options)
		}
		out = append(out, pickDistinct(rng, options, batch)...)
	}
	return out
}

// expandRandomPick parses a chosen random option normally, unless it is
// itself a numeric range "lo-hi", in which case it draws a uniformly
// distributed value in [lo, hi] instead of being parsed as template text.
func expandRandomPick(pick string, rng *rand.Rand, ctx *ParseContext) (string, error) {
	if lo, hi, ok := parseNumericRange(pick); ok {
		v := lo + rng.Float64()*(hi-lo)
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	}
	return ctx.Parse(pick)
}

// parseNumericRange parses s as a "lo-hi" numeric range, reporting ok=false
// if it does not have exactly that shape.
func parseNumericRange(s string) (lo, hi float64, ok bool) {
	loStr, hiStr, cut := strings.Cut(strings.TrimSpace(s), "-")
	if !cut {
		return 0, 0, false
	}
	lo, errLo := strconv.ParseFloat(strings.TrimSpace(loStr), 64)
	hi, errHi := strconv.ParseFloat(strings.TrimSpace(hiStr), 64)
	if errLo != nil || errHi != nil {
		return 0, 0, false
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// handleAlternate picks exactly one option at random, the single-draw case
// random generalizes.
func handleAlternate(data string, ctx *ParseContext) (TagResult, error) {
	options := SplitSmartNonEmpty(data)
	if len(options) == 0 {
		return Erase(), nil
	}
	rng := ctx.Host().WildcardRandom()
	chosen := options[rng.Intn(len(options))]
	parsed, err := ctx.Parse(chosen)
	if err != nil {
		return TagResult{}, err
	}
	return Replace(parsed), nil
}

// handleFromTo picks a uniformly distributed number between two numeric
// bounds, or falls back to a plain alternate pick when either side does not
// parse as a number.
func handleFromTo(data string, ctx *ParseContext) (TagResult, error) {
	parts := SplitSmart(data)
	if len(parts) != 2 {
		return handleAlternate(data, ctx)
	}
	lo, errLo := strconv.ParseFloat(parts[0], 64)
	hi, errHi := strconv.ParseFloat(parts[1], 64)
	if errLo != nil || errHi != nil {
		return handleAlternate(data, ctx)
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	rng := ctx.Host().WildcardRandom()
	v := lo + rng.Float64()*(hi-lo)
	return Replace(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// resolveWildcardFile fuzzy-resolves name against store's known file list the
// same way lora/embed resolve against a ModelRegistry, so a misspelled
// wildcard name still finds the file the caller meant.
func resolveWildcardFile(store WildcardStore, name string) (WildcardFile, string, bool) {
	canonical, ok := store.BestMatch(name, store.ListFiles())
	if !ok {
		return WildcardFile{}, "", false
	}
	file, ok := store.Get(canonical)
	return file, canonical, ok
}

func handleWildcard(data string, ctx *ParseContext) (TagResult, error) {
	store := ctx.Interp().Wildcards()
	if store == nil {
		ctx.AddWarning(fmt.Sprintf("wildcard %q requested but no wildcard store is configured", data))
		return Keep(), nil
	}
	name := strings.TrimSpace(data)
	file, canonical, ok := resolveWildcardFile(store, name)
	if !ok || len(file.Options) == 0 {
		ctx.AddWarning(fmt.Sprintf("wildcard %q not found", name))
		return Keep(), nil
	}

	rng := ctx.Host().WildcardRandom()
	chosen := file.Options[rng.Intn(len(file.Options))]
	ctx.Host().AddUsedWildcard(canonical)

	parsed, err := ctx.Parse(chosen)
	if err != nil {
		return TagResult{}, err
	}
	return Replace(parsed), nil
}

func handleWildcardSeq(data string, ctx *ParseContext) (TagResult, error) {
	store := ctx.Interp().Wildcards()
	if store == nil {
		ctx.AddWarning(fmt.Sprintf("wildcardseq %q requested but no wildcard store is configured", data))
		return Keep(), nil
	}
	name := strings.TrimSpace(data)
	file, canonical, ok := resolveWildcardFile(store, name)
	if !ok || len(file.Options) == 0 {
		ctx.AddWarning(fmt.Sprintf("wildcardseq %q not found", name))
		return Keep(), nil
	}

	key := seqKey("wc", canonical, file.Options)
	chosen := ctx.Interp().Sequences().Advance(key, file.Options)
	ctx.Host().AddUsedWildcard(canonical)

	parsed, err := ctx.Parse(chosen)
	if err != nil {
		return TagResult{}, err
	}
	return Replace(parsed), nil
}

// seqKey builds a sequence.Key whose discriminant is stable across calls
// with the same option list so repeated uses of the same wildcard or inline
// list advance the same cursor. A named (wildcard) key also carries a hash
// of the options, so a changed wildcard file starts a fresh cursor.
func seqKey(kind, name string, options []string) sequence.Key {
	joined := strings.Join(options, "\x1f")
	if name == "" {
		return sequence.Key{Kind: kind, Discriminant: joined}
	}
	h := fnv.New64a()
	h.Write([]byte(joined))
	return sequence.Key{Kind: kind, Discriminant: name + "_" + strconv.FormatUint(h.Sum64(), 16)}
}

// handleRepeat implements <repeat:N,text>: N and text are comma-separated
// inside data itself, not a bracket predata. A fractional N truncates toward
// zero.
func handleRepeat(data string, ctx *ParseContext) (TagResult, error) {
	n, text, ok := parseRepeatCount(data)
	if !ok {
		return Erase(), nil
	}
	pieces := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parsed, err := ctx.Parse(text)
		if err != nil {
			return TagResult{}, err
		}
		pieces = append(pieces, strings.TrimSpace(parsed))
	}
	return Replace(strings.Join(pieces, " ")), nil
}

// parseRepeatCount splits a repeat tag's "N,text" data into a truncated
// draw count and the text to repeat, reporting false if N does not parse.
func parseRepeatCount(data string) (n int, text string, ok bool) {
	nStr, rest, found := strings.Cut(data, ",")
	if !found {
		return 0, "", false
	}
	countVal, err := strconv.ParseFloat(strings.TrimSpace(nStr), 64)
	if err != nil || countVal <= 0 {
		return 0, "", false
	}
	return int(countVal), strings.TrimSpace(rest), true
}

func handlePreset(data string, ctx *ParseContext) (TagResult, error) {
	store := ctx.Interp().Presets()
	if store == nil {
		ctx.AddWarning(fmt.Sprintf("preset %q requested but no preset store is configured", data))
		return Keep(), nil
	}
	name := strings.TrimSpace(data)
	preset, ok := store.Get(name)
	if !ok {
		ctx.AddWarning(fmt.Sprintf("preset %q not found", name))
		return Keep(), nil
	}

	for id, text := range preset.ParamMap {
		if err := ctx.Host().SetRawText(id, text); err != nil {
			return TagResult{}, fmt.Errorf("applying preset %q to %q: %w", name, id, err)
		}
	}

	if before, after, ok := strings.Cut(preset.Template, "{value}"); ok {
		return Splice(before, after), nil
	}
	return Erase(), nil
}

func handleEmbed(data string, ctx *ParseContext) (TagResult, error) {
	models := ctx.Interp().Models()
	if models == nil {
		ctx.AddWarning(fmt.Sprintf("embedding %q requested but no model registry is configured", data))
		return Keep(), nil
	}
	name := strings.TrimSpace(data)
	canonical, ok := models.BestMatch(name, models.ListNames("embedding"))
	if !ok {
		ctx.AddWarning(fmt.Sprintf("embedding %q did not match any known embedding", name))
		return Keep(), nil
	}
	ctx.Host().AddUsedEmbedding(canonical)
	if info, ok := models.Get(canonical); ok {
		ctx.AddTriggerPhrase(info.TriggerPhrase)
	}
	return Replace("\x00swarmembed:" + canonical + "\x00end"), nil
}

func handleSetVar(data string, ctx *ParseContext) (TagResult, error) {
	name, has := ctx.PreData()
	if !has || name == "" {
		ctx.AddWarning("setvar requires a variable name, e.g. <setvar[name]:value>")
		return Keep(), nil
	}
	value, err := ctx.Parse(data)
	if err != nil {
		return TagResult{}, err
	}
	ctx.SetVariable(name, value)
	return Erase(), nil
}

func handleVar(data string, ctx *ParseContext) (TagResult, error) {
	name := strings.TrimSpace(data)
	value, ok := ctx.Variable(name)
	if !ok {
		ctx.AddWarning(fmt.Sprintf("var %q referenced before it was set", name))
		return Keep(), nil
	}
	return Replace(value), nil
}

func handleSeq(data string, ctx *ParseContext) (TagResult, error) {
	options := SplitSmartNonEmpty(data)
	if len(options) == 0 {
		return Erase(), nil
	}
	key := seqKey("seq", "", options)
	chosen := ctx.Interp().Sequences().Advance(key, options)
	parsed, err := ctx.Parse(chosen)
	if err != nil {
		return TagResult{}, err
	}
	return Replace(parsed), nil
}

// --- post phase ---------------------------------------------------------

func handleLora(data string, ctx *ParseContext) (TagResult, error) {
	models := ctx.Interp().Models()
	if models == nil {
		ctx.AddWarning(fmt.Sprintf("lora %q requested but no model registry is configured", data))
		return Keep(), nil
	}
	name, strength, hasStrength := strings.Cut(data, ":")
	name = strings.TrimSpace(name)
	if !hasStrength || strings.TrimSpace(strength) == "" {
		strength = "1"
	} else {
		strength = strings.TrimSpace(strength)
	}

	canonical, ok := models.BestMatch(name, models.ListNames("lora"))
	if !ok {
		ctx.AddWarning(fmt.Sprintf("lora %q did not match any known LoRA", name))
		return Keep(), nil
	}

	ctx.Host().RegisterLora(canonical, strength, ctx.SectionID())
	if info, ok := models.Get(canonical); ok {
		ctx.AddTriggerPhrase(info.TriggerPhrase)
	}
	return Erase(), nil
}

// handleSegment opens a new section, then parses its body inside it so any
// lora tags nested in data confine themselves to this section rather than
// the whole prompt. The tag itself is re-emitted around the parsed body with
// a //cid=<section_id> suffix (replacing any previous one), since downstream
// image backends consume that marker to confine the region it delimits.
func handleSegment(data string, ctx *ParseContext) (TagResult, error) {
	sectionID := ctx.NextSectionID()
	prefix := ctx.CurrentTagPrefix()
	predata, hasPredata := ctx.PreData()

	body := stripCidSuffix(data)
	parsed, err := ctx.Parse(body)
	if err != nil {
		return TagResult{}, err
	}

	if hasPredata {
		return Replace(fmt.Sprintf("<%s[%s]:%s//cid=%d>", prefix, predata, parsed, sectionID)), nil
	}
	return Replace(fmt.Sprintf("<%s:%s//cid=%d>", prefix, parsed, sectionID)), nil
}

// stripCidSuffix removes a trailing "//cid=N" marker from data, if present,
// so a re-expanded segment/object/region tag never accumulates more than one.
func stripCidSuffix(data string) string {
	if idx := strings.LastIndex(data, "//cid="); idx >= 0 {
		return data[:idx]
	}
	return data
}

// --- length estimation ----------------------------------------------------

func lengthLongestOf(data string, ctx *LengthContext) string {
	options := SplitSmartNonEmpty(data)
	longest := ""
	for _, o := range options {
		est := ctx.Estimate(o)
		if len(est) > len(longest) {
			longest = est
		}
	}
	return longest
}

func lengthWildcard(data string, ctx *LengthContext) string {
	store := ctx.Interp().Wildcards()
	if store == nil {
		return ""
	}
	file, _, ok := resolveWildcardFile(store, strings.TrimSpace(data))
	if !ok {
		return ""
	}
	longest := ""
	for _, o := range file.Options {
		est := ctx.Estimate(o)
		if len(est) > len(longest) {
			longest = est
		}
	}
	return longest
}

func lengthWildcardSeq(data string, ctx *LengthContext) string {
	store := ctx.Interp().Wildcards()
	if store == nil {
		return ""
	}
	file, canonical, ok := resolveWildcardFile(store, strings.TrimSpace(data))
	if !ok || len(file.Options) == 0 {
		return ""
	}
	key := seqKey("wc", canonical, file.Options)
	peeked := ctx.Interp().Sequences().Peek(key, file.Options)
	return ctx.Estimate(peeked)
}

func lengthRepeat(data string, ctx *LengthContext) string {
	n, text, ok := parseRepeatCount(data)
	if !ok {
		return ""
	}
	one := ctx.Estimate(text)
	pieces := make([]string, n)
	for i := range pieces {
		pieces[i] = one
	}
	return strings.Join(pieces, " ")
}

func lengthSetVar(data string, ctx *LengthContext) string {
	return ctx.Estimate(data)
}

func lengthSeq(data string, ctx *LengthContext) string {
	options := SplitSmartNonEmpty(data)
	if len(options) == 0 {
		return ""
	}
	key := seqKey("seq", "", options)
	peeked := ctx.Interp().Sequences().Peek(key, options)
	return ctx.Estimate(peeked)
}

func lengthBreak(data string, ctx *LengthContext) string { return "<break>" }

func lengthEmpty(data string, ctx *LengthContext) string { return "" }

// pickDistinct draws count distinct elements from options without
// replacement, returned in the order they were drawn. When count is at
// least len(options), every option is returned in its original order.
func pickDistinct(rng interface{ Intn(int) int }, options []string, count int) []string {
	if count >= len(options) {
		out := make([]string, len(options))
		copy(out, options)
		return out
	}
	idx := rng.Intn(len(options))
	used := map[int]bool{idx: true}
	order := []int{idx}
	for len(order) < count {
		c := rng.Intn(len(options))
		if used[c] {
			continue
		}
		used[c] = true
		order = append(order, c)
	}
	out := make([]string, len(order))
	for i, o := range order {
		out[i] = options[o]
	}
	return out
}
