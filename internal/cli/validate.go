package cli

import (
	"errors"

	"github.com/fpang/virtual-tryon/internal/auth"
	"github.com/fpang/virtual-tryon/internal/chat"
)

// ValidationHint turns an API key check failure into an operator-facing
// next step.
func ValidationHint(err error) string {
	if errors.Is(err, auth.ErrNoKey) {
		return "No API key configured. Set GEMINI_API_KEY or write it to ~/.virtual-tryon/gemini-api-key"
	}
	var genErr *chat.GenerationError
	if !errors.As(err, &genErr) {
		return "Unexpected error during API key validation"
	}
	switch genErr.Type {
	case chat.ErrTypeInvalidKey:
		return "Invalid API key. Please check your API key and try again"
	case chat.ErrTypeNetwork:
		return "Network error. Please check your internet connection"
	case chat.ErrTypeRateLimited:
		return "API quota exceeded. Please try again later or check your usage limits"
	default:
		return "API key validation failed"
	}
}
