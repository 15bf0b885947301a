package paraminput

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/promptlang"
	"github.com/do49/swarminput/internal/value"
)

// max31Bit masks a 63-bit draw down into [0, 2^31), the fresh-seed range
// both seed and variation_seed materialize within.
const max31Bit = (int64(1) << 31) - 1

// processSeed materializes a -1 "randomize" sentinel into a concrete 31-bit
// draw, writing the resolved value back so later stages (and metadata) see
// the seed that was actually used, not the sentinel.
func processSeed(in *Input, id string, src *rand.Rand) error {
	v, ok := in.Get(id)
	if !ok {
		return nil
	}
	iv, ok := v.(value.Int64)
	if !ok {
		return nil
	}
	if iv.V != -1 {
		return nil
	}
	resolved := src.Int63() & max31Bit
	in.SetTyped(id, value.Int64{V: resolved})
	in.setRawTextOnly(id, strconv.FormatInt(resolved, 10))
	return nil
}

// snapshotRawOriginalSeed records seed's value before processSeed has a
// chance to randomize it away, so metadata can always report what the
// caller actually asked for.
func snapshotRawOriginalSeed(in *Input) {
	v, ok := in.Get(paramdef.IDSeed)
	if !ok {
		return
	}
	iv, ok := v.(value.Int64)
	if !ok {
		return
	}
	in.SetTyped(paramdef.IDRawOriginalSeed, value.Int64{V: iv.V})
	in.setRawTextOnly(paramdef.IDRawOriginalSeed, strconv.FormatInt(iv.V, 10))
}

// parseResolutionPair splits a "WxH" string into its two integer
// components, reporting ok=false if it is not of that form.
func parseResolutionPair(raw string) (w, h int, ok bool) {
	ws, hs, cut := strings.Cut(raw, "x")
	if !cut {
		return 0, 0, false
	}
	wn, errW := strconv.Atoi(strings.TrimSpace(ws))
	hn, errH := strconv.Atoi(strings.TrimSpace(hs))
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return wn, hn, true
}

// applyHeightMult scales h by alt_resolution_height_mult when that
// parameter is set and positive, otherwise returns h unchanged.
func applyHeightMult(in *Input, h int) int {
	if mult, ok := in.Get(paramdef.IDAltResolutionHeightMult); ok {
		if fv, ok := mult.(value.Float64); ok && fv.V > 0 {
			return int(float64(h) * fv.V)
		}
	}
	return h
}

// splitRawResolution parses "WxH" out of raw_resolution and assigns width
// and height from it, when raw_resolution is present and well formed.
// Absent raw_resolution leaves width/height at whatever they were already
// set to; malformed raw_resolution leaves them unchanged and returns an
// error.
func splitRawResolution(in *Input) error {
	raw, ok := in.RawText(paramdef.IDRawResolution)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	wn, hn, ok := parseResolutionPair(raw)
	if !ok {
		return fmt.Errorf("raw_resolution %q is not of the form WxH with integer dimensions", raw)
	}
	in.SetTyped(paramdef.IDWidth, value.Int32{V: int32(wn)})
	hn = applyHeightMult(in, hn)
	in.SetTyped(paramdef.IDHeight, value.Int32{V: int32(hn)})
	return nil
}

// alignLoraWeights pads lora_weights up to len(loras) with "1" so every
// bound LoRA has a corresponding strength, and truncates any surplus
// weights that have no matching LoRA.
func alignLoraWeights(in *Input) {
	lorasV, ok := in.Get(paramdef.IDLoras)
	if !ok {
		return
	}
	loras, ok := lorasV.(value.StringList)
	if !ok {
		return
	}
	weightsV, _ := in.Get(paramdef.IDLoraWeights)
	weights, _ := weightsV.(value.StringList)

	items := append([]string{}, weights.Items...)
	for len(items) < len(loras.Items) {
		items = append(items, "1")
	}
	if len(items) > len(loras.Items) {
		items = items[:len(loras.Items)]
	}
	in.SetTyped(paramdef.IDLoraWeights, value.StringList{Items: items})
}

// extractEarlyPresets scans prompt and negativeprompt's raw text for
// <preset:name> / <p:name> tags without running the full interpreter
// pipeline, and immediately applies the subset of each such preset's
// assignments that fall within paramdef.EarlyLoadAllowlist (model, images,
// internalbackendtype, exactbackendid). Any other parameters a preset also
// assigns are left in place for the main parse pass, where their
// trigger-phrase and splice side effects are handled in position.
func extractEarlyPresets(in *Input, presets promptlang.PresetStore) error {
	if presets == nil {
		return nil
	}
	for _, id := range []string{paramdef.IDPrompt, paramdef.IDNegativePrompt} {
		raw, ok := in.RawText(id)
		if !ok {
			continue
		}
		names := findPresetNames(raw)
		for _, name := range names {
			preset, ok := presets.Get(name)
			if !ok {
				continue
			}
			for pid, text := range preset.ParamMap {
				if !paramdef.EarlyLoadAllowlist[pid] {
					continue
				}
				if err := in.SetRawText(pid, text); err != nil {
					return fmt.Errorf("early preset %q: %w", name, err)
				}
			}
		}
	}
	return nil
}

// findPresetNames returns every preset/p tag's data found in raw, without
// recursing into nested tags.
func findPresetNames(raw string) []string {
	var names []string
	remaining := raw
	for {
		start, end, found := promptlang.FindTag(remaining)
		if !found {
			break
		}
		inner := remaining[start+1 : end]
		prefix, _, _, data, hasData := promptlang.SplitTagInner(inner)
		if (prefix == "preset" || prefix == "p") && hasData {
			names = append(names, strings.TrimSpace(data))
		}
		remaining = remaining[end+1:]
	}
	return names
}

// ApplySpecialLogic runs the ordered special-logic passes a request's
// parameter map goes through before its prompt-like parameters are parsed:
// seed and variation_seed materialization, wildcard_seed derivation,
// raw_resolution splitting, LoRA/weight array alignment, and early preset
// extraction.
func ApplySpecialLogic(in *Input, presets promptlang.PresetStore) error {
	master := rand.New(rand.NewSource(time.Now().UnixNano()))

	snapshotRawOriginalSeed(in)
	if err := processSeed(in, paramdef.IDSeed, master); err != nil {
		return err
	}
	if err := processSeed(in, paramdef.IDVariationSeed, master); err != nil {
		return err
	}

	var seedV, variationV int64
	if sv, ok := in.Get(paramdef.IDSeed); ok {
		if iv, ok := sv.(value.Int64); ok {
			seedV = iv.V
		}
	}
	if vv, ok := in.Get(paramdef.IDVariationSeed); ok {
		if iv, ok := vv.(value.Int64); ok {
			variationV = iv.V
		}
	}

	wildcardSeed, hasWildcardSeed := in.Get(paramdef.IDWildcardSeed)
	if iv, ok := wildcardSeed.(value.Int64); hasWildcardSeed && ok && iv.V != -1 {
		in.ReseedWildcardRandom(iv.V)
	} else {
		in.ReseedWildcardRandom((seedV + variationV + 17) & max31Bit)
	}

	if err := splitRawResolution(in); err != nil {
		return err
	}
	alignLoraWeights(in)

	if err := extractEarlyPresets(in, presets); err != nil {
		return err
	}
	return nil
}
