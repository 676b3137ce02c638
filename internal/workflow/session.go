// Package workflow holds the step-gated state of a try-on session: which
// inputs the operator has supplied, which step is current, and the result of
// the last generation.
package workflow

import (
	"fmt"
	"time"

	"github.com/fpang/virtual-tryon/internal/garment"
)

// ModelImage is the photo whose garments are retextured.
type ModelImage struct {
	Name       string
	Image      garment.Payload
	PreviewRef string
}

// Session is one operator's workflow state. It is not safe for concurrent
// use; Registry serializes access per session.
type Session struct {
	ID                string
	CurrentStep       Step
	Model             *ModelImage
	Garments          garment.Set
	Fabrics           garment.Sources
	Options           AdvancedOptions
	Result            *GenerationResult
	Generating        bool
	LastError         string
	AutoDesignCounter int
	CreatedAt         time.Time

	// Generation identifies the in-flight generation. StartGeneration
	// advances it and every reset advances it again, so a call that
	// started before a reset can no longer claim the session.
	Generation uint64
}

// NewSession returns a session in the initial state.
func NewSession(id string) *Session {
	s := &Session{ID: id, CreatedAt: time.Now()}
	s.Reset()
	return s
}

// Reset returns the session to the initial state, keeping its id.
func (s *Session) Reset() {
	created := s.CreatedAt
	gen := s.Generation + 1
	*s = Session{
		ID:                s.ID,
		CurrentStep:       StepUploadModel,
		Fabrics:           garment.Sources{},
		Options:           DefaultOptions(),
		AutoDesignCounter: 1,
		CreatedAt:         created,
		Generation:        gen,
	}
}

// GoToStep jumps to step and clears the last error. It does not check
// CanProceed; see Advance.
func (s *Session) GoToStep(step Step) error {
	if step.Index() < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	s.CurrentStep = step
	s.LastError = ""
	return nil
}

// Advance navigates to a navigable step after checking that every earlier
// step can proceed. Moving backwards is always allowed.
func (s *Session) Advance(step Step) error {
	if step.Index() < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	if !step.Navigable() {
		return fmt.Errorf("%w: %s", ErrNotNavigable, step)
	}
	for _, prior := range StepOrder[:step.Index()] {
		if !s.CanProceed(prior) {
			return fmt.Errorf("%w: %s", ErrNotReady, prior)
		}
	}
	return s.GoToStep(step)
}

// CanProceed reports whether the requirements of step are satisfied.
func (s *Session) CanProceed(step Step) bool {
	switch step {
	case StepUploadModel:
		return s.Model != nil
	case StepSelectGarments:
		return !s.Garments.Empty()
	case StepUploadFabrics:
		for _, k := range s.Garments.Kinds() {
			if s.Fabrics[k] == nil {
				return false
			}
		}
		return true
	case StepAdvancedOptions, StepReview:
		return true
	default:
		return false
	}
}

// ReadyForReview reports whether review (and therefore generation) is
// reachable: a model image is bound and every selected kind has a fabric.
func (s *Session) ReadyForReview() error {
	for _, step := range []Step{StepUploadModel, StepSelectGarments, StepUploadFabrics} {
		if !s.CanProceed(step) {
			return fmt.Errorf("%w: %s", ErrNotReady, step)
		}
	}
	return nil
}

// SetModelImage binds the model photo and clears the last error.
func (s *Session) SetModelImage(img ModelImage) {
	s.Model = &img
	s.LastError = ""
}

// ClearModelImage unbinds the model photo. Later steps are left as they are.
func (s *Session) ClearModelImage() {
	s.Model = nil
}

// ToggleGarment flips membership of k. Deselecting k also removes its fabric.
func (s *Session) ToggleGarment(k garment.Kind) {
	s.Garments = s.Garments.Toggle(k)
	if !s.Garments.Has(k) {
		delete(s.Fabrics, k)
	}
}

// SetFabric binds src to k, replacing any previous source. k need not be selected.
func (s *Session) SetFabric(k garment.Kind, src garment.Source) {
	if src == nil {
		delete(s.Fabrics, k)
		return
	}
	s.Fabrics[k] = src
}

// ClearFabric unbinds the fabric for k.
func (s *Session) ClearFabric(k garment.Kind) {
	delete(s.Fabrics, k)
}

// SetAdvancedOptions merges p into the current options.
func (s *Session) SetAdvancedOptions(p OptionsPatch) {
	s.Options = s.Options.Merge(p)
}

// StartGeneration marks a generation as in flight and returns its token.
// The caller performs the call and must then invoke SetGenerationResult or
// SetError, after checking Owns with the token.
func (s *Session) StartGeneration() uint64 {
	s.Generation++
	s.Generating = true
	s.CurrentStep = StepGenerating
	s.LastError = ""
	return s.Generation
}

// Owns reports whether token belongs to the generation still in flight.
func (s *Session) Owns(token uint64) bool {
	return s.Generating && s.Generation == token
}

// SetGenerationResult stores r, moves to the result step and advances the
// auto design-number counter.
func (s *Session) SetGenerationResult(r GenerationResult) {
	s.Generating = false
	s.Result = &r
	s.CurrentStep = StepResult
	s.AutoDesignCounter++
}

// SetError records a failed generation. The current step is unchanged.
func (s *Session) SetError(msg string) {
	s.Generating = false
	s.LastError = msg
}

// ResetToStep discards the result and any error and moves to step. It is
// used to regenerate from review.
func (s *Session) ResetToStep(step Step) error {
	if step.Index() < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	s.Result = nil
	s.Generating = false
	s.Generation++
	s.LastError = ""
	s.CurrentStep = step
	return nil
}
