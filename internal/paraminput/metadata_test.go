package paraminput

import (
	"strings"
	"testing"

	"github.com/do49/swarminput/internal/paramdef"
)

func TestRewriteEmbedSentinelsProducesEmbedTag(t *testing.T) {
	text := "a cat " + embedSentinelPrefix + "my-embed" + embedSentinelSuffix + " in a hat"
	got := RewriteEmbedSentinels(text)
	want := "a cat <embed:my-embed> in a hat"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRewriteEmbedSentinelsHandlesMultiple(t *testing.T) {
	text := embedSentinelPrefix + "a" + embedSentinelSuffix + " and " + embedSentinelPrefix + "b" + embedSentinelSuffix
	got := RewriteEmbedSentinels(text)
	if got != "<embed:a> and <embed:b>" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateMetadataSkipsHiddenParameters(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDRawResolution, "1024x768"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	meta := GenerateMetadata(in)
	if _, ok := meta[paramdef.IDRawResolution]; ok {
		t.Fatal("expected raw_resolution (HideFromMetadata) to be omitted")
	}
}

func TestGenerateMetadataOmitsRedundantOriginalPrompt(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDPrompt, "a cat"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if err := in.SetRawText(paramdef.IDOriginalPrompt, "a cat"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	meta := GenerateMetadata(in)
	if _, ok := meta[paramdef.IDOriginalPrompt]; ok {
		t.Fatal("expected original_prompt to be omitted when identical to prompt")
	}
}

func TestGenerateMetadataKeepsDivergentOriginalPrompt(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDPrompt, "a cat, <preset:hires>"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if err := in.SetRawText(paramdef.IDOriginalPrompt, "a cat, <preset:hires>"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if err := in.SetRawText(paramdef.IDPrompt, "a cat, ultra quality hires"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	meta := GenerateMetadata(in)
	if _, ok := meta[paramdef.IDOriginalPrompt]; !ok {
		t.Fatal("expected original_prompt to survive once it diverges from the expanded prompt")
	}
}

func TestGenerateMetadataSkipsImageValues(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDImages, "blob-a,blob-b"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	meta := GenerateMetadata(in)
	if _, ok := meta[paramdef.IDImages]; ok {
		t.Fatal("expected images (IMAGE_LIST) to be skipped from metadata")
	}
}

func TestRawMetadataJSONWrapsInEnvelope(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDPrompt, "a cat"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	b, err := RawMetadataJSON(in)
	if err != nil {
		t.Fatalf("RawMetadataJSON failed: %v", err)
	}
	if !strings.Contains(string(b), "sui_image_params") {
		t.Fatalf("got %s, expected sui_image_params envelope key", b)
	}
}
