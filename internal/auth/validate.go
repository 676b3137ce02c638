package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/virtual-tryon/internal/chat"
	"github.com/fpang/virtual-tryon/internal/metrics"
)

// ValidateAPIKey verifies the key behind models by making a minimal text
// call against the cheap Flash model. Failures are returned as
// *chat.GenerationError so callers can map them like generation failures.
func ValidateAPIKey(ctx context.Context, models chat.ContentGenerator) error {
	log.Debug().Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := models.GenerateContent(ctx, chat.ModelGemini3FlashPreview, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	result := "success"
	var outErr error
	switch {
	case err != nil:
		genErr := chat.ClassifyError(err)
		result = genErr.Type.String()
		outErr = genErr
	case resp == nil || len(resp.Candidates) == 0:
		log.Warn().Msg("API key validation returned empty response")
		result = "empty_response"
		outErr = &chat.GenerationError{
			Type:    chat.ErrTypeUnknown,
			Message: "API returned empty response",
			Status:  502,
		}
	}

	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	log.Debug().
		Str("result", result).
		Dur("duration", elapsed).
		Msg("API key validation result")

	if outErr != nil {
		return outErr
	}
	log.Info().Msg("API key validated successfully")
	return nil
}
