package paraminput

import (
	"math/rand"
	"testing"

	"github.com/do49/swarminput/internal/paramdef"
	"github.com/do49/swarminput/internal/promptlang"
	"github.com/do49/swarminput/internal/value"
)

type fakePresetStore struct {
	presets map[string]*promptlang.Preset
}

func (s *fakePresetStore) Get(name string) (*promptlang.Preset, bool) {
	p, ok := s.presets[name]
	return p, ok
}

func TestApplySpecialLogicMaterializesRandomSeed(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDSeed, "-1"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := ApplySpecialLogic(in, nil); err != nil {
		t.Fatalf("ApplySpecialLogic failed: %v", err)
	}

	v, ok := in.Get(paramdef.IDSeed)
	if !ok {
		t.Fatal("expected seed to be set")
	}
	iv, ok := v.(value.Int64)
	if !ok || iv.V == -1 {
		t.Fatalf("expected seed to be materialized away from -1, got %#v", v)
	}
}

func TestApplySpecialLogicMaterializesSeedWithin31Bits(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDSeed, "-1"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := ApplySpecialLogic(in, nil); err != nil {
		t.Fatalf("ApplySpecialLogic failed: %v", err)
	}

	v, _ := in.Get(paramdef.IDSeed)
	iv := v.(value.Int64)
	if iv.V < 0 || iv.V >= 1<<31 {
		t.Fatalf("expected a fresh 31-bit seed, got %d", iv.V)
	}
}

func TestApplySpecialLogicSnapshotsRawOriginalSeed(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDSeed, "-1"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := ApplySpecialLogic(in, nil); err != nil {
		t.Fatalf("ApplySpecialLogic failed: %v", err)
	}

	orig, ok := in.Get(paramdef.IDRawOriginalSeed)
	if !ok {
		t.Fatal("expected raw_original_seed to be set")
	}
	if orig.(value.Int64).V != -1 {
		t.Fatalf("expected raw_original_seed to snapshot the pre-randomization value -1, got %v", orig)
	}
}

func TestApplySpecialLogicDerivesWildcardRandomFromWildcardSeed(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDSeed, "5"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if err := in.SetRawText(paramdef.IDWildcardSeed, "99"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := ApplySpecialLogic(in, nil); err != nil {
		t.Fatalf("ApplySpecialLogic failed: %v", err)
	}

	want := rand.New(rand.NewSource(99)).Int63()
	got := in.WildcardRandom().Int63()
	if got != want {
		t.Fatalf("expected wildcard_random seeded from wildcard_seed=99, got a draw of %d, want %d", got, want)
	}
}

func TestApplySpecialLogicDerivesWildcardRandomFromSeedPlusVariationPlus17(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDSeed, "5"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	if err := in.SetRawText(paramdef.IDVariationSeed, "3"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := ApplySpecialLogic(in, nil); err != nil {
		t.Fatalf("ApplySpecialLogic failed: %v", err)
	}

	want := rand.New(rand.NewSource(5 + 3 + 17)).Int63()
	got := in.WildcardRandom().Int63()
	if got != want {
		t.Fatalf("expected wildcard_random seeded from seed+variation_seed+17=25, got a draw of %d, want %d", got, want)
	}
}

func TestApplySpecialLogicLeavesConcreteSeedAlone(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDSeed, "12345"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := ApplySpecialLogic(in, nil); err != nil {
		t.Fatalf("ApplySpecialLogic failed: %v", err)
	}

	v, _ := in.Get(paramdef.IDSeed)
	iv := v.(value.Int64)
	if iv.V != 12345 {
		t.Fatalf("got %d, want 12345", iv.V)
	}
}

func TestSplitRawResolutionSetsWidthAndHeight(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDRawResolution, "1024x768"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := splitRawResolution(in); err != nil {
		t.Fatalf("splitRawResolution failed: %v", err)
	}

	w, _ := in.Get(paramdef.IDWidth)
	h, _ := in.Get(paramdef.IDHeight)
	if w.(value.Int32).V != 1024 {
		t.Fatalf("got width %#v", w)
	}
	if h.(value.Int32).V != 768 {
		t.Fatalf("got height %#v", h)
	}
}

func TestSplitRawResolutionAppliesHeightMultiplier(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDRawResolution, "1024x768"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}
	in.SetTyped(paramdef.IDAltResolutionHeightMult, value.Float64{V: 1.5})

	if err := splitRawResolution(in); err != nil {
		t.Fatalf("splitRawResolution failed: %v", err)
	}

	h, _ := in.Get(paramdef.IDHeight)
	if h.(value.Int32).V != 1152 {
		t.Fatalf("got height %#v, want 1152", h)
	}
}

func TestAlignLoraWeightsPadsMissingWeights(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	in.SetTyped(paramdef.IDLoras, value.StringList{Items: []string{"a", "b", "c"}})
	in.SetTyped(paramdef.IDLoraWeights, value.StringList{Items: []string{"0.5"}})

	alignLoraWeights(in)

	weights, _ := in.Get(paramdef.IDLoraWeights)
	wl := weights.(value.StringList)
	if len(wl.Items) != 3 || wl.Items[0] != "0.5" || wl.Items[1] != "1" || wl.Items[2] != "1" {
		t.Fatalf("got %v", wl.Items)
	}
}

func TestAlignLoraWeightsTruncatesSurplusWeights(t *testing.T) {
	in := New(paramdef.DefaultRegistry(), 1)
	in.SetTyped(paramdef.IDLoras, value.StringList{Items: []string{"a"}})
	in.SetTyped(paramdef.IDLoraWeights, value.StringList{Items: []string{"0.5", "0.7", "0.9"}})

	alignLoraWeights(in)

	weights, _ := in.Get(paramdef.IDLoraWeights)
	wl := weights.(value.StringList)
	if len(wl.Items) != 1 || wl.Items[0] != "0.5" {
		t.Fatalf("got %v", wl.Items)
	}
}

func TestExtractEarlyPresetsAppliesOnlyAllowlistedFields(t *testing.T) {
	presets := &fakePresetStore{presets: map[string]*promptlang.Preset{
		"backend_pick": {ParamMap: map[string]string{paramdef.IDModel: "sdxl_base"}},
		"mixed":        {ParamMap: map[string]string{paramdef.IDModel: "sdxl_base", "steps": "40"}},
	}}
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDPrompt, "<preset:backend_pick> <preset:mixed> a cat"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := extractEarlyPresets(in, presets); err != nil {
		t.Fatalf("extractEarlyPresets failed: %v", err)
	}

	model, ok := in.Get(paramdef.IDModel)
	if !ok || model.String() != "sdxl_base" {
		t.Fatalf("got model %#v, want sdxl_base applied early from the allowlisted model field", model)
	}
	if _, ok := in.RawText("steps"); ok {
		t.Fatal("expected the non-allowlisted steps field to be left for the main parse pass")
	}
}

func TestExtractEarlyPresetsAppliesAllowlistedFieldsOfAMixedPreset(t *testing.T) {
	presets := &fakePresetStore{presets: map[string]*promptlang.Preset{
		"mixed": {ParamMap: map[string]string{paramdef.IDModel: "only_mixed_model", "steps": "40"}},
	}}
	in := New(paramdef.DefaultRegistry(), 1)
	if err := in.SetRawText(paramdef.IDPrompt, "<preset:mixed> a cat"); err != nil {
		t.Fatalf("SetRawText failed: %v", err)
	}

	if err := extractEarlyPresets(in, presets); err != nil {
		t.Fatalf("extractEarlyPresets failed: %v", err)
	}

	model, ok := in.Get(paramdef.IDModel)
	if !ok || model.String() != "only_mixed_model" {
		t.Fatalf("got model %#v, want the mixed preset's allowlisted model field applied early", model)
	}
	if _, ok := in.RawText("steps"); ok {
		t.Fatal("expected the mixed preset's non-allowlisted steps field to be left for the main parse pass")
	}
}
