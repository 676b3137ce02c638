package workflow

import (
	"time"

	"github.com/fpang/virtual-tryon/internal/garment"
)

// QualityFlagType names a way a result may deviate from the request.
type QualityFlagType string

const (
	FlagGeometryChanged  QualityFlagType = "geometry-changed"
	FlagBorderShifted    QualityFlagType = "border-shifted"
	FlagFabricBleed      QualityFlagType = "fabric-bleed"
	FlagTextInterference QualityFlagType = "text-interference"
	FlagPromptDrift      QualityFlagType = "prompt-drift"
	FlagNoImageGenerated QualityFlagType = "no-image-generated"
)

// FlagSeverity grades a quality flag.
type FlagSeverity string

const (
	FlagWarning FlagSeverity = "warning"
	FlagError   FlagSeverity = "error"
)

// QualityFlag annotates a result the service may not have produced faithfully.
type QualityFlag struct {
	Type     QualityFlagType `json:"type"`
	Severity FlagSeverity    `json:"severity"`
	Message  string          `json:"message"`
}

// UsageSummary is the ledger cost attached to a result.
type UsageSummary struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	TotalTokens  int     `json:"totalTokens"`
	Cost         float64 `json:"cost"`
	RecordID     string  `json:"recordId"`
}

// GenerationResult is the output of one generation. It is not modified after
// it is stored on a Session.
type GenerationResult struct {
	Image garment.Payload
	// Numbered is Image with the design number drawn on it, if enabled.
	Numbered *garment.Payload
	// DesignNumber is the formatted number baked into Numbered. Display code
	// reads it from here rather than recomputing it from the counter.
	DesignNumber  string
	CreatedAt     time.Time
	QualityFlags  []QualityFlag
	Model         string
	ModelResponse string
	Usage         UsageSummary
}

// HasError reports whether any flag has error severity.
func (r GenerationResult) HasError() bool {
	for _, f := range r.QualityFlags {
		if f.Severity == FlagError {
			return true
		}
	}
	return false
}
