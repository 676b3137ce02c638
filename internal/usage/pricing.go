package usage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pricing holds per-unit rates in US dollars.
type Pricing struct {
	InputTextPerToken   float64 `yaml:"inputTextPerToken" json:"inputTextPerToken"`
	OutputTextPerToken  float64 `yaml:"outputTextPerToken" json:"outputTextPerToken"`
	InputImagePerImage  float64 `yaml:"inputImagePerImage" json:"inputImagePerImage"`
	OutputImagePerImage float64 `yaml:"outputImagePerImage" json:"outputImagePerImage"`
}

// DefaultPricing returns the published Gemini 3 Pro Image Preview rates.
func DefaultPricing() Pricing {
	return Pricing{
		InputTextPerToken:   1.25 / 1_000_000,
		OutputTextPerToken:  5.00 / 1_000_000,
		InputImagePerImage:  0.0032,
		OutputImagePerImage: 0.0320,
	}
}

// Validate rejects negative rates.
func (p Pricing) Validate() error {
	for name, v := range map[string]float64{
		"inputTextPerToken":   p.InputTextPerToken,
		"outputTextPerToken":  p.OutputTextPerToken,
		"inputImagePerImage":  p.InputImagePerImage,
		"outputImagePerImage": p.OutputImagePerImage,
	} {
		if v < 0 {
			return fmt.Errorf("pricing %s must not be negative (got %g)", name, v)
		}
	}
	return nil
}

// Cost returns the input, output and total cost of an attempt.
func (p Pricing) Cost(a Attempt) (input, output, total float64) {
	input = float64(a.InputTokens)*p.InputTextPerToken + float64(a.InputImages)*p.InputImagePerImage
	output = float64(a.OutputTokens)*p.OutputTextPerToken + float64(a.OutputImages)*p.OutputImagePerImage
	return input, output, input + output
}

// LoadPricingFile reads rate overrides from a YAML file. Rates missing from
// the file keep their default values.
//
//	inputTextPerToken: 0.00000125
//	outputImagePerImage: 0.04
func LoadPricingFile(path string) (Pricing, error) {
	p := DefaultPricing()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read pricing file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
