package chat

import "os"

// Gemini Model IDs
//
// | Model Name             | API Model ID               | Use Case                    |
// |------------------------|----------------------------|-----------------------------|
// | Gemini 3 Pro Image     | gemini-3-pro-image-preview | Try-on image generation     |
// | Gemini 3 Flash Preview | gemini-3-flash-preview     | API key validation (cheap)  |
const (
	// ModelGemini3ProImage is for advanced image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"
)

// DefaultModelName is the model used for try-on generation.
// Can be overridden via GEMINI_MODEL environment variable.
const DefaultModelName = ModelGemini3ProImage

// Output shape requested for every try-on image.
const (
	OutputAspectRatio = "4:5"
	OutputImageSize   = "2K"
)

// GetModelName returns the Gemini model to use, resolved from:
// 1. GEMINI_MODEL environment variable (if set)
// 2. Default: gemini-3-pro-image-preview
func GetModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}
