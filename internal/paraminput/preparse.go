package paraminput

import (
	"fmt"
	"strings"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/promptlang"
	"github.com/do49/swarminput/internal/value"
)

// promptLikeParams lists the text parameters whose raw value is a prompt
// template rather than plain text, in the order they should be expanded.
// prompt and negativeprompt share one sequence-cursor lifetime per request,
// so they are always reparsed together.
var promptLikeParams = []string{paramdef.IDPrompt, paramdef.IDNegativePrompt}

// PreparsePrompts runs the tag interpreter over every prompt-like
// parameter's raw text, replacing each one's typed value with the fully
// expanded result. It clears and garbage-collects the interpreter's
// sequence cursor table around the call, so a seq or wildcardseq cursor
// that this request's prompts stop referencing (e.g. because a preset
// removed the tag) does not leak forever.
func PreparsePrompts(interp *promptlang.Interpreter, in *Input) error {
	interp.Sequences().ClearRanFlags()
	defer interp.Sequences().GCStale()

	for _, id := range promptLikeParams {
		raw, ok := in.RawText(id)
		if !ok {
			continue
		}
		if _, hasOriginal := in.RawText(originalIDFor(id)); !hasOriginal {
			in.setRawTextOnly(originalIDFor(id), raw)
			in.SetTyped(originalIDFor(id), value.String{V: raw})
		}

		expanded, err := interp.ProcessPromptLike(in, id, raw)
		if err != nil {
			return fmt.Errorf("paraminput: expanding %q: %w", id, err)
		}
		expanded = RewriteEmbedSentinels(expanded)
		in.SetTyped(id, value.String{V: expanded})
	}
	return nil
}

func originalIDFor(id string) string {
	switch id {
	case paramdef.IDPrompt:
		return paramdef.IDOriginalPrompt
	case paramdef.IDNegativePrompt:
		return paramdef.IDOriginalNegativePrompt
	}
	return id
}

// GetImageWidth returns width decoded from raw_resolution if present and
// well formed, else the width parameter (defaulting to 512 when unset).
func GetImageWidth(in *Input) int32 {
	if w, _, ok := decodeRawResolution(in); ok {
		return w
	}
	return getInt32(in, paramdef.IDWidth)
}

// GetImageHeight returns height decoded from raw_resolution (scaled by
// alt_resolution_height_mult) if present and well formed, else the height
// parameter (defaulting to 512 when unset).
func GetImageHeight(in *Input) int32 {
	if _, h, ok := decodeRawResolution(in); ok {
		return h
	}
	return getInt32(in, paramdef.IDHeight)
}

// decodeRawResolution parses raw_resolution's "WxH" form directly, without
// requiring that splitRawResolution has already run and written width/height.
func decodeRawResolution(in *Input) (width, height int32, ok bool) {
	raw, present := in.RawText(paramdef.IDRawResolution)
	if !present || strings.TrimSpace(raw) == "" {
		return 0, 0, false
	}
	w, h, parsed := parseResolutionPair(raw)
	if !parsed {
		return 0, 0, false
	}
	return int32(w), int32(applyHeightMult(in, h)), true
}

func getInt32(in *Input, id string) int32 {
	v, ok := in.Get(id)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case value.Int32:
		return n.V
	case value.Int64:
		return int32(n.V)
	}
	return 0
}
