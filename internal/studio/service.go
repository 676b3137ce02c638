// Package studio runs a generation end to end: it reads the session under
// its lock, builds the instruction, calls the image model, records usage and
// stores the result back on the session.
package studio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/virtual-tryon/internal/chat"
	"github.com/fpang/virtual-tryon/internal/designnumber"
	"github.com/fpang/virtual-tryon/internal/garment"
	"github.com/fpang/virtual-tryon/internal/metrics"
	"github.com/fpang/virtual-tryon/internal/prompt"
	"github.com/fpang/virtual-tryon/internal/render"
	"github.com/fpang/virtual-tryon/internal/usage"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// ErrResultDiscarded is returned when the session was reset while its
// generation was in flight. The call is still recorded in the ledger.
var ErrResultDiscarded = errors.New("generation result discarded: session was reset")

// DefaultGenerationTimeout bounds one call to the image model.
const DefaultGenerationTimeout = 180 * time.Second

// Generator produces try-on images. *chat.Generator implements it.
type Generator interface {
	Generate(ctx context.Context, req chat.TryOnRequest) (*chat.TryOnResult, error)
	Model() string
}

// UsageRecorder records one generation attempt. *usage.Ledger implements it.
type UsageRecorder interface {
	RecordGeneration(ctx context.Context, a usage.Attempt) usage.Record
}

// Service orchestrates generations for the sessions in a registry.
type Service struct {
	sessions *workflow.Registry
	gen      Generator
	ledger   UsageRecorder
	timeout  time.Duration
	now      func() time.Time
}

// NewService wires a Service. A non-positive timeout uses
// DefaultGenerationTimeout.
func NewService(sessions *workflow.Registry, gen Generator, ledger UsageRecorder, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}
	return &Service{
		sessions: sessions,
		gen:      gen,
		ledger:   ledger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// job is the snapshot of session inputs taken when a generation starts.
type job struct {
	token        uint64
	request      chat.TryOnRequest
	garments     garment.Set
	designNumber string
	dnConfig     designnumber.Config
}

// Generate runs a generation for the session. The session must be at the
// review step with every input bound. The session lock is released while
// the model call runs, so state reads during generation see the generating
// step.
//
// A failed call returns a *chat.GenerationError. The session is moved back
// to review with the error message set, and a failed attempt with zero
// counts is recorded.
//
// If the session was reset while the call ran, its outcome is recorded in
// the ledger but never written to the session, even when a newer generation
// has started since.
func (s *Service) Generate(ctx context.Context, sessionID string) (*workflow.GenerationResult, error) {
	j, err := s.begin(sessionID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	// The call is billed once it returns, whether or not the client is
	// still connected.
	recordCtx := context.WithoutCancel(ctx)

	start := s.now()
	res, genErr := s.gen.Generate(callCtx, j.request)
	elapsed := s.now().Sub(start)

	if genErr != nil {
		classified := chat.ClassifyError(genErr)
		rec := s.ledger.RecordGeneration(recordCtx, usage.Attempt{Model: s.gen.Model(), Success: false})
		s.emit(sessionID, j, classified.Type.String(), elapsed, rec)

		err := s.sessions.Update(sessionID, func(sess *workflow.Session) error {
			if !sess.Owns(j.token) {
				return nil
			}
			if err := sess.GoToStep(workflow.StepReview); err != nil {
				return err
			}
			sess.SetError(classified.Message)
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("Session gone before generation error could be stored")
		}
		return nil, classified
	}

	outputImages := 0
	if res.ImageGenerated {
		outputImages = 1
	}
	rec := s.ledger.RecordGeneration(recordCtx, usage.Attempt{
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		InputImages:  j.request.InputImages(),
		OutputImages: outputImages,
		Model:        res.Model,
		Success:      res.ImageGenerated,
	})

	resultLabel := "success"
	if !res.ImageGenerated {
		resultLabel = "no_image"
	}
	s.emit(sessionID, j, resultLabel, elapsed, rec)

	result := workflow.GenerationResult{
		Image:         res.Image,
		DesignNumber:  j.designNumber,
		CreatedAt:     s.now(),
		QualityFlags:  res.QualityFlags,
		Model:         res.Model,
		ModelResponse: res.Text,
		Usage: workflow.UsageSummary{
			InputTokens:  rec.InputTokens,
			OutputTokens: rec.OutputTokens,
			TotalTokens:  rec.InputTokens + rec.OutputTokens,
			Cost:         rec.TotalCost,
			RecordID:     rec.ID,
		},
	}
	if j.designNumber != "" && res.ImageGenerated {
		numbered, err := render.OverlayDesignNumber(res.Image, j.designNumber, j.dnConfig.Position, j.dnConfig.Style, j.dnConfig.FontSize)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("Design number overlay failed, returning image without number")
		} else {
			result.Numbered = &numbered
		}
	}

	err = s.sessions.Update(sessionID, func(sess *workflow.Session) error {
		if !sess.Owns(j.token) {
			return fmt.Errorf("%w (session %s)", ErrResultDiscarded, sessionID)
		}
		sess.SetGenerationResult(result)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Generation result discarded")
		return nil, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("garments", j.garments.Key()).
		Str("designNumber", j.designNumber).
		Bool("imageGenerated", res.ImageGenerated).
		Float64("costUsd", rec.TotalCost).
		Dur("duration", elapsed).
		Msg("Generation complete")
	return &result, nil
}

// begin checks the session and marks it as generating. The design number is
// resolved here, from the counter before SetGenerationResult advances it.
func (s *Service) begin(sessionID string) (job, error) {
	var j job
	err := s.sessions.Update(sessionID, func(sess *workflow.Session) error {
		if sess.Generating {
			return workflow.ErrAlreadyGenerating
		}
		if sess.CurrentStep != workflow.StepReview {
			return fmt.Errorf("%w: generation starts from %s, session is at %s", workflow.ErrNotReady, workflow.StepReview, sess.CurrentStep)
		}
		if err := sess.ReadyForReview(); err != nil {
			return err
		}

		kinds := sess.Garments.Kinds()
		fabrics := make([]garment.Payload, 0, len(kinds))
		for _, k := range kinds {
			fabrics = append(fabrics, sess.Fabrics[k].Payload())
		}

		j = job{
			request: chat.TryOnRequest{
				Instruction: prompt.BuildInstruction(sess.Garments, sess.Fabrics, sess.Options.CustomPrompt),
				ModelImage:  sess.Model.Image,
				Fabrics:     fabrics,
			},
			garments:     sess.Garments,
			designNumber: designnumber.Resolve(sess.Options.DesignNumber, sess.AutoDesignCounter),
			dnConfig:     sess.Options.DesignNumber,
		}
		j.token = sess.StartGeneration()
		return nil
	})
	if err != nil {
		return job{}, err
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("garments", j.garments.Key()).
		Int("inputImages", j.request.InputImages()).
		Str("estimate", prompt.EstimateDuration(j.garments)).
		Msg("Generation started")
	return j, nil
}

func (s *Service) emit(sessionID string, j job, result string, elapsed time.Duration, rec usage.Record) {
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Dimension("Garments", j.garments.Key()).
		Metric("GenerationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("GenerationCostUsd", rec.TotalCost, metrics.UnitNone).
		Metric("GeminiInputTokens", float64(rec.InputTokens), metrics.UnitCount).
		Metric("GeminiOutputTokens", float64(rec.OutputTokens), metrics.UnitCount).
		Count("GenerationCount").
		Property("sessionId", sessionID).
		Property("recordId", rec.ID).
		Flush()
}
