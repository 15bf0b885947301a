package paraminput

import (
	"testing"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/registry"
	"github.com/do49/swarminput/internal/value"
)

func TestSetRawTextCoercesByDeclaredType(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)

	if err := in.SetRawText(paramdef.IDWidth, "768"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	v, ok := in.Get(paramdef.IDWidth)
	if !ok {
		t.Fatal("expected width to be set")
	}
	iv, ok := v.(value.Int32)
	if !ok || iv.V != 768 {
		t.Fatalf("got %#v, want Int32{768}", v)
	}
}

func strPtrForTest(s string) *string { return &s }

func TestSetRawTextDeletesKeyWhenTextMatchesIgnoreIf(t *testing.T) {
	reg := paramdef.NewRegistry(&paramdef.Descriptor{
		ID:       "thing",
		Type:     paramdef.INTEGER,
		Width:    64,
		IgnoreIf: strPtrForTest("-1"),
	})
	in := New(reg, 1)

	if err := in.SetRawText("thing", "5"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if err := in.SetRawText("thing", "-1"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if _, ok := in.Get("thing"); ok {
		t.Fatal("expected the key to be absent once its value matched ignore_if")
	}
	if _, ok := in.RawText("thing"); ok {
		t.Fatal("expected raw text to be removed along with the typed value")
	}
}

func TestSetRawTextAddsFeatureFlagToRequiredFlags(t *testing.T) {
	reg := paramdef.NewRegistry(&paramdef.Descriptor{
		ID:          "hires_fix",
		Type:        paramdef.BOOLEAN,
		FeatureFlag: strPtrForTest("hires"),
	})
	in := New(reg, 1)

	if err := in.SetRawText("hires_fix", "true"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	flags := in.RequiredFlags()
	if len(flags) != 1 || flags[0] != "hires" {
		t.Fatalf("got %v, want [\"hires\"]", flags)
	}
}

func TestGetMaterializesDescriptorDefaultWithoutPersisting(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)

	v, ok := in.Get(paramdef.IDSeed)
	if !ok {
		t.Fatal("expected seed's default to be returned")
	}
	if iv, ok := v.(value.Int64); !ok || iv.V != -1 {
		t.Fatalf("got %#v, want Int64{-1} from the descriptor default", v)
	}
	if _, ok := in.RawText(paramdef.IDSeed); ok {
		t.Fatal("expected the default materialization to leave the key unset")
	}
}

func TestSetRawTextRejectsUnknownParameter(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText("nonexistent", "x"); err == nil {
		t.Fatal("expected an error for an unknown parameter id")
	}
}

func TestSetRawTextRunsCleanHookWithPreviousValue(t *testing.T) {
	reg := paramdef.NewRegistry(&paramdef.Descriptor{
		ID:   "thing",
		Type: paramdef.TEXT,
		Clean: func(prev *string, next string) string {
			if prev == nil {
				return next
			}
			return *prev + "+" + next
		},
	})
	in := New(reg, 1)

	if err := in.SetRawText("thing", "a"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if err := in.SetRawText("thing", "b"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	raw, _ := in.RawText("thing")
	if raw != "a+b" {
		t.Fatalf("got %q, want %q", raw, "a+b")
	}
}

func TestRegisterLoraMirrorsIntoListValues(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)

	in.RegisterLora("my-lora", "0.8", 0)
	in.RegisterLora("other-lora", "1", 1)

	loras, ok := in.Get(paramdef.IDLoras)
	if !ok {
		t.Fatal("expected loras to be set")
	}
	list, ok := loras.(value.StringList)
	if !ok || len(list.Items) != 2 || list.Items[0] != "my-lora" || list.Items[1] != "other-lora" {
		t.Fatalf("got %#v", loras)
	}

	weights, _ := in.Get(paramdef.IDLoraWeights)
	wl, ok := weights.(value.StringList)
	if !ok || wl.Items[0] != "0.8" || wl.Items[1] != "1" {
		t.Fatalf("got %#v", weights)
	}

	canonicals := in.BoundLoraCanonicals()
	if len(canonicals) != 2 {
		t.Fatalf("got %v", canonicals)
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDPrompt, "a cat"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	clone := in.Clone()
	if err := clone.SetRawText(paramdef.IDPrompt, "a dog"); err != nil {
		t.Fatalf("SetRawText on clone failed: %v", err)
	}

	origRaw, _ := in.RawText(paramdef.IDPrompt)
	cloneRaw, _ := clone.RawText(paramdef.IDPrompt)
	if origRaw != "a cat" {
		t.Fatalf("original mutated: got %q", origRaw)
	}
	if cloneRaw != "a dog" {
		t.Fatalf("clone not updated: got %q", cloneRaw)
	}
}

func TestCurrentModelCanonicalReadsBoundModel(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDModel, "realistic_vision"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	canonical, ok := in.CurrentModelCanonical()
	if !ok || canonical != "realistic_vision" {
		t.Fatalf("got %q, %v", canonical, ok)
	}
}

func TestSetRawTextFuzzyResolvesModelAgainstRegistry(t *testing.T) {
	models := registry.NewMemoryModelRegistry()
	models.Register("model", "realistic_vision_v5", "")

	in := New(paramdef.DefaultRegistry(), 1)
	in.SetModelRegistry(models)

	if err := in.SetRawText(paramdef.IDModel, "realistic vision v5"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	canonical, ok := in.CurrentModelCanonical()
	if !ok || canonical != "realistic_vision_v5" {
		t.Fatalf("got %q, %v, want fuzzy-resolved realistic_vision_v5", canonical, ok)
	}
}

func TestSetRawTextRefusesUnmatchedModel(t *testing.T) {
	models := registry.NewMemoryModelRegistry() // no "model" subtype entries registered

	in := New(paramdef.DefaultRegistry(), 1)
	in.SetModelRegistry(models)

	if err := in.SetRawText(paramdef.IDModel, "anything"); err == nil {
		t.Fatal("expected an error when the registry has no candidates to match against")
	}
}
