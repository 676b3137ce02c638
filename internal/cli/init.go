// Package cli holds helpers shared by the command-line binaries: Gemini
// client setup, operator prompts and report formatting.
package cli

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/virtual-tryon/internal/auth"
	"github.com/fpang/virtual-tryon/internal/chat"
)

// InitGeminiClient resolves the API key, creates a client and, if validate
// is set, checks the key with a minimal call.
func InitGeminiClient(ctx context.Context, validate bool) (*genai.Client, error) {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		return nil, err
	}

	client, err := chat.NewGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	log.Debug().Msg("Gemini client initialized")

	if !validate {
		return client, nil
	}
	if err := auth.ValidateAPIKey(ctx, client.Models); err != nil {
		log.Error().Err(err).Msg(ValidationHint(err))
		return nil, err
	}
	log.Info().Msg("API key validation complete")
	return client, nil
}
