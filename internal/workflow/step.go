package workflow

import "fmt"

// Step is a stage of the try-on workflow.
type Step string

const (
	StepUploadModel     Step = "upload-model"
	StepSelectGarments  Step = "select-garments"
	StepUploadFabrics   Step = "upload-fabrics"
	StepAdvancedOptions Step = "advanced-options"
	StepReview          Step = "review"
	StepGenerating      Step = "generating"
	StepResult          Step = "result"
)

// StepOrder lists every step in workflow order.
var StepOrder = []Step{
	StepUploadModel,
	StepSelectGarments,
	StepUploadFabrics,
	StepAdvancedOptions,
	StepReview,
	StepGenerating,
	StepResult,
}

// ParseStep converts a string into a Step.
func ParseStep(s string) (Step, error) {
	for _, st := range StepOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

// Index returns the position of s in StepOrder, or -1.
func (s Step) Index() int {
	for i, st := range StepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Navigable reports whether s can be reached by forward/back navigation.
// generating and result are entered only through generation.
func (s Step) Navigable() bool {
	switch s {
	case StepUploadModel, StepSelectGarments, StepUploadFabrics, StepAdvancedOptions, StepReview:
		return true
	}
	return false
}
