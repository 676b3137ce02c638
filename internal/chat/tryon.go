package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/virtual-tryon/internal/garment"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// responsePreviewLen is how much of the model's text is kept on a
// no-image-generated flag.
const responsePreviewLen = 200

// TryOnRequest is one generation call.
type TryOnRequest struct {
	Instruction string
	ModelImage  garment.Payload
	// Fabrics are sent after the model image in the order given.
	Fabrics []garment.Payload
}

// InputImages is the number of images sent, used for usage accounting.
func (r TryOnRequest) InputImages() int {
	return 1 + len(r.Fabrics)
}

// TryOnResult is the parsed response. When the model returned no image,
// Image is the original model photo, ImageGenerated is false and
// QualityFlags carries a no-image-generated flag.
type TryOnResult struct {
	Image          garment.Payload
	ImageGenerated bool
	Text           string
	QualityFlags   []workflow.QualityFlag
	InputTokens    int
	OutputTokens   int
	Model          string
	Elapsed        time.Duration
}

// Generator sends try-on requests to Gemini.
type Generator struct {
	models ContentGenerator
	model  string
}

// NewGenerator returns a Generator calling model through models. An empty
// model resolves via GetModelName.
func NewGenerator(models ContentGenerator, model string) *Generator {
	if model == "" {
		model = GetModelName()
	}
	return &Generator{models: models, model: model}
}

// Model returns the model ID requests are sent to.
func (g *Generator) Model() string {
	return g.model
}

// Generate sends the instruction, the model photo and the fabric images, in
// that order, and parses the response. Errors are *GenerationError. The
// caller owns the deadline on ctx.
func (g *Generator) Generate(ctx context.Context, req TryOnRequest) (*TryOnResult, error) {
	if req.ModelImage.Empty() {
		return nil, &GenerationError{Type: ErrTypeUnknown, Message: "Generation failed: no model image", Status: http.StatusBadRequest}
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Instruction)}
	parts = append(parts, genai.NewPartFromBytes(req.ModelImage.Data, req.ModelImage.MIMEType))
	for _, f := range req.Fabrics {
		parts = append(parts, genai.NewPartFromBytes(f.Data, f.MIMEType))
	}

	log.Info().
		Str("model", g.model).
		Int("inputImages", req.InputImages()).
		Int("instructionLength", len(req.Instruction)).
		Msg("Sending try-on request to Gemini")

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig: &genai.ImageConfig{
				AspectRatio: OutputAspectRatio,
				ImageSize:   OutputImageSize,
			},
		},
	)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		genErr := ClassifyError(err)
		log.Error().
			Err(err).
			Str("model", g.model).
			Str("errorType", genErr.Type.String()).
			Dur("duration", elapsed).
			Msg("Gemini try-on request failed")
		return nil, genErr
	}

	result := parseResponse(resp, req.ModelImage)
	result.Model = g.model
	result.Elapsed = elapsed

	log.Info().
		Bool("imageGenerated", result.ImageGenerated).
		Int("inputTokens", result.InputTokens).
		Int("outputTokens", result.OutputTokens).
		Dur("duration", elapsed).
		Msg("Gemini try-on response received")
	return result, nil
}

// parseResponse picks the first non-thought image part and concatenates
// the non-thought text parts. Without an image it falls back to original.
func parseResponse(resp *genai.GenerateContentResponse, original garment.Payload) *TryOnResult {
	result := &TryOnResult{}
	if resp == nil {
		result.Image = original
		result.QualityFlags = []workflow.QualityFlag{noImageFlag("")}
		return result
	}

	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				if !result.ImageGenerated {
					result.Image = garment.Payload{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}
					result.ImageGenerated = true
				}
				continue
			}
			text.WriteString(part.Text)
		}
	}
	result.Text = text.String()

	if !result.ImageGenerated {
		result.Image = original
		result.QualityFlags = []workflow.QualityFlag{noImageFlag(result.Text)}
		log.Warn().
			Int("textLength", len(result.Text)).
			Msg("Gemini returned no image, falling back to the model photo")
	}
	return result
}

func noImageFlag(text string) workflow.QualityFlag {
	msg := "No response from model"
	if t := strings.TrimSpace(text); t != "" {
		msg = "Model response: " + truncateRunes(t, responsePreviewLen)
	}
	return workflow.QualityFlag{
		Type:     workflow.FlagNoImageGenerated,
		Severity: workflow.FlagError,
		Message:  msg,
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
