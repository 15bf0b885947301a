package paraminput

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/value"
)

// embedSentinelPrefix and embedSentinelSuffix bracket an embedding
// reference while it travels through tag expansion, so a later phase never
// mistakes it for a literal <...> tag of its own. RewriteEmbedSentinels
// turns it back into the <embed:name> form external consumers expect.
const (
	embedSentinelPrefix = "\x00swarmembed:"
	embedSentinelSuffix = "\x00end"
)

// RewriteEmbedSentinels replaces every in-band embedding sentinel left by
// the embed/embedding tag with the <embed:name> form a downstream image
// backend understands.
func RewriteEmbedSentinels(text string) string {
	var out strings.Builder
	remaining := text
	for {
		idx := strings.Index(remaining, embedSentinelPrefix)
		if idx < 0 {
			out.WriteString(remaining)
			break
		}
		out.WriteString(remaining[:idx])
		rest := remaining[idx+len(embedSentinelPrefix):]
		end := strings.Index(rest, embedSentinelSuffix)
		if end < 0 {
			// Unterminated sentinel; emit the rest verbatim rather than drop it.
			out.WriteString(rest)
			break
		}
		name := rest[:end]
		out.WriteString("<embed:")
		out.WriteString(name)
		out.WriteString(">")
		remaining = rest[end+len(embedSentinelSuffix):]
	}
	return out.String()
}

// GenerateMetadata builds the sui_image_params envelope body: every
// parameter whose descriptor does not set HideFromMetadata, formatted
// through MetadataFormat when the descriptor supplies one, plus the
// accumulated extra_meta entries. original_prompt and
// original_negativeprompt are omitted whenever they are textually identical
// to prompt and negativeprompt, so a request that never rewrote its prompt
// does not carry a redundant duplicate in its metadata. Image and image-list
// values are skipped outright: metadata is a textual sidecar, not a place to
// inline raw image blob references.
func GenerateMetadata(in *Input) map[string]any {
	params := make(map[string]any)

	for _, id := range in.Registry().IDs() {
		desc, ok := in.Registry().Get(id)
		if !ok || desc.HideFromMetadata {
			continue
		}
		if isRedundantOriginal(in, id) {
			continue
		}
		v, ok := in.Get(id)
		if !ok {
			continue
		}
		if v.Kind() == value.KindImage || v.Kind() == value.KindImageList {
			continue
		}
		text := v.String()
		if desc.MetadataFormat != nil {
			text = desc.MetadataFormat(text)
		}
		params[id] = text
	}

	for k, v := range in.ExtraMeta() {
		params[k] = v
	}

	return params
}

func isRedundantOriginal(in *Input, id string) bool {
	var pairID string
	switch id {
	case paramdef.IDOriginalPrompt:
		pairID = paramdef.IDPrompt
	case paramdef.IDOriginalNegativePrompt:
		pairID = paramdef.IDNegativePrompt
	default:
		return false
	}
	orig, ok := in.RawText(id)
	if !ok {
		return true
	}
	current, ok := in.Get(pairID)
	if !ok {
		return false
	}
	return orig == current.String()
}

// RawMetadataJSON renders GenerateMetadata's result wrapped in the
// sui_image_params envelope every stored generation's metadata sidecar
// uses.
func RawMetadataJSON(in *Input) ([]byte, error) {
	envelope := map[string]any{
		"sui_image_params": GenerateMetadata(in),
	}
	b, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("paraminput: marshaling metadata: %w", err)
	}
	return b, nil
}
