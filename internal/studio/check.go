package studio

import (
	"github.com/fpang/virtual-tryon/internal/prompt"
	"github.com/fpang/virtual-tryon/internal/validation"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

// PromptCheck is the pre-generation preview shown on the review step.
type PromptCheck struct {
	Warnings          []validation.Warning `json:"warnings"`
	Blocked           bool                 `json:"blocked"`
	SanitizedText     string               `json:"sanitizedText"`
	Instruction       string               `json:"instruction"`
	EstimatedDuration string               `json:"estimatedDuration"`
}

// CheckPrompt runs the risk check on the session's custom text and returns
// the instruction that would be sent.
func (s *Service) CheckPrompt(sessionID string) (PromptCheck, error) {
	var pc PromptCheck
	err := s.sessions.View(sessionID, func(sess *workflow.Session) {
		pc = Check(sess)
	})
	return pc, err
}

// Check builds a PromptCheck for sess.
func Check(sess *workflow.Session) PromptCheck {
	text := sess.Options.CustomPrompt
	pc := PromptCheck{
		Warnings:          validation.CheckPromptForRisk(text),
		SanitizedText:     validation.SanitizeFreeText(text),
		Instruction:       prompt.BuildInstruction(sess.Garments, sess.Fabrics, text),
		EstimatedDuration: prompt.EstimateDuration(sess.Garments),
	}
	for _, w := range pc.Warnings {
		if w.Severity == validation.SeverityBlocked {
			pc.Blocked = true
			break
		}
	}
	return pc
}
