package paramdef

// Well-known parameter ids the core's special-logic handlers (internal/paraminput's
// special.go) and the parameter map's LoRA/model bookkeeping (input.go) reference
// by name.
const (
	IDSeed                      = "seed"
	IDRawOriginalSeed            = "raw_original_seed"
	IDVariationSeed              = "variation_seed"
	IDWildcardSeed               = "wildcard_seed"
	IDRawResolution              = "raw_resolution"
	IDWidth                      = "width"
	IDHeight                     = "height"
	IDAltResolutionHeightMult    = "alt_resolution_height_mult"
	IDLoras                      = "loras"
	IDLoraWeights                = "lora_weights"
	IDLoraSectionConfinement     = "lora_section_confinement"
	IDModel                      = "model"
	IDImages                     = "images"
	IDInternalBackendType        = "internalbackendtype"
	IDExactBackendID             = "exactbackendid"
	IDPrompt                     = "prompt"
	IDNegativePrompt             = "negativeprompt"
	IDOriginalPrompt             = "original_prompt"
	IDOriginalNegativePrompt     = "original_negativeprompt"
)

// EarlyLoadAllowlist is the set of parameter ids a preset discovered by the
// early-preset-extraction pass is permitted to assign before the rest of the
// parameter map has been parsed.
var EarlyLoadAllowlist = map[string]bool{
	IDModel:               true,
	IDImages:              true,
	IDInternalBackendType: true,
	IDExactBackendID:      true,
}

func strPtr(s string) *string { return &s }

// DefaultRegistry builds the descriptor set a stand-alone run of this module
// (the CLI, and most tests) uses as its ready-to-go starting point.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&Descriptor{ID: IDSeed, Type: INTEGER, Width: 64, Default: strPtr("-1")},
		&Descriptor{ID: IDRawOriginalSeed, Type: INTEGER, Width: 64, HideFromMetadata: true},
		&Descriptor{ID: IDVariationSeed, Type: INTEGER, Width: 64, Default: strPtr("-1")},
		&Descriptor{ID: IDWildcardSeed, Type: INTEGER, Width: 64, IgnoreIf: strPtr("-1")},
		&Descriptor{ID: IDRawResolution, Type: TEXT, HideFromMetadata: true},
		&Descriptor{ID: IDWidth, Type: INTEGER, Width: 32, Default: strPtr("512")},
		&Descriptor{ID: IDHeight, Type: INTEGER, Width: 32, Default: strPtr("512")},
		&Descriptor{ID: IDAltResolutionHeightMult, Type: DECIMAL, Width: 64},
		&Descriptor{ID: IDLoras, Type: LIST},
		&Descriptor{ID: IDLoraWeights, Type: LIST},
		&Descriptor{ID: IDLoraSectionConfinement, Type: LIST, HideFromMetadata: true},
		&Descriptor{ID: IDModel, Type: MODEL, Subtype: "model"},
		&Descriptor{ID: IDImages, Type: IMAGE_LIST},
		&Descriptor{ID: IDInternalBackendType, Type: TEXT, HideFromMetadata: true},
		&Descriptor{ID: IDExactBackendID, Type: TEXT, HideFromMetadata: true},
		&Descriptor{ID: IDPrompt, Type: TEXT, Default: strPtr("")},
		&Descriptor{ID: IDNegativePrompt, Type: TEXT, Default: strPtr("")},
		&Descriptor{ID: IDOriginalPrompt, Type: TEXT, HideFromMetadata: false},
		&Descriptor{ID: IDOriginalNegativePrompt, Type: TEXT, HideFromMetadata: false},
		&Descriptor{ID: "steps", Type: INTEGER, Width: 32, Default: strPtr("20")},
		&Descriptor{ID: "cfgscale", Type: DECIMAL, Width: 64, Default: strPtr("7.0")},
	)
}
