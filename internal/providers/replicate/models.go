package replicate

import (
	"encoding/base64"

	"easel/internal/providers"
)

// modelSpec ties a variation key to the hosted model version, its per-output
// cost, and the input payload shape the model expects.
type modelSpec struct {
	version                string
	unitCost               float64
	contentType            string
	supportsNegativePrompt bool
	buildInput             func(req providers.Request) map[string]any
}

// Variation keys are stable dedup/compatibility identifiers; never reuse one
// across incompatible model schemas.
const (
	VariationFluxSchnell = "replicate_flux_schnell"
	VariationSDXL        = "replicate_sdxl"
	VariationBLIP        = "replicate_blip"
)

var catalog = map[string]modelSpec{
	VariationFluxSchnell: {
		version:     "f2ab8a5569fcf1a7bc7c28a9fd5a2c2b4d1a7e1c8f8c7b9a0a1b2c3d4e5f6f7a",
		unitCost:    0.003,
		contentType: "image/jpeg",
		buildInput: func(req providers.Request) map[string]any {
			input := map[string]any{
				"prompt":              req.Prompt,
				"num_outputs":         1,
				"aspect_ratio":        "1:1",
				"output_format":       "jpg",
				"output_quality":      90,
				"num_inference_steps": 4,
			}
			mergeParameters(input, req.Parameters)
			return input
		},
	},
	VariationSDXL: {
		version:                "39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b",
		unitCost:               0.0055,
		contentType:            "image/png",
		supportsNegativePrompt: true,
		buildInput: func(req providers.Request) map[string]any {
			input := map[string]any{
				"prompt":      req.Prompt,
				"width":       1024,
				"height":      1024,
				"num_outputs": 1,
			}
			mergeParameters(input, req.Parameters)
			return input
		},
	},
	VariationBLIP: {
		version:     "2e1dddc8621f72155f24cf2e0adbde548458d3cab9f00c0139eea840d0ac4746",
		unitCost:    0.0005,
		contentType: "text/plain",
		buildInput: func(req providers.Request) map[string]any {
			input := map[string]any{
				"image":    dataURI(req.Image),
				"caption":  true,
				"question": "Describe this image in detail, focusing on the subject, style, colors, and artistic elements.",
			}
			mergeParameters(input, req.Parameters)
			return input
		},
	},
}

// Variations returns the variation keys this client can serve.
func Variations() []string {
	keys := make([]string, 0, len(catalog))
	for key := range catalog {
		keys = append(keys, key)
	}
	return keys
}

// Supports reports whether a variation key is backed by a catalog entry.
func Supports(variation string) bool {
	_, ok := catalog[variation]
	return ok
}

// SupportsNegativePrompt reports whether the variation's model accepts a
// negative_prompt input. Unknown variations do not.
func SupportsNegativePrompt(variation string) bool {
	spec, ok := catalog[variation]
	return ok && spec.supportsNegativePrompt
}

func mergeParameters(input map[string]any, params map[string]any) {
	for key, value := range params {
		input[key] = value
	}
}

func dataURI(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}
