package workflow

import (
	"fmt"

	"github.com/fpang/virtual-tryon/internal/designnumber"
	"github.com/fpang/virtual-tryon/internal/validation"
)

// AdvancedOptions are the optional settings collected before review.
type AdvancedOptions struct {
	CustomPrompt string              `json:"customPrompt"`
	DesignNumber designnumber.Config `json:"designNumber"`
}

// DefaultOptions returns empty custom text and the default design-number settings.
func DefaultOptions() AdvancedOptions {
	return AdvancedOptions{DesignNumber: designnumber.DefaultConfig()}
}

// DesignNumberPatch holds the design-number fields to overwrite. Nil fields
// are left unchanged.
type DesignNumberPatch struct {
	Enabled      *bool                  `json:"enabled,omitempty"`
	Number       *string                `json:"number,omitempty"`
	Format       *designnumber.Format   `json:"format,omitempty"`
	CustomFormat *string                `json:"customFormat,omitempty"`
	Position     *designnumber.Position `json:"position,omitempty"`
	Style        *designnumber.Style    `json:"style,omitempty"`
	FontSize     *designnumber.Size     `json:"fontSize,omitempty"`
}

// OptionsPatch is a partial update to AdvancedOptions.
type OptionsPatch struct {
	CustomPrompt *string            `json:"customPrompt,omitempty"`
	DesignNumber *DesignNumberPatch `json:"designNumber,omitempty"`
}

// Validate checks the patched values. An empty design number is allowed and
// means "auto-number".
func (p OptionsPatch) Validate() error {
	if p.CustomPrompt != nil {
		if err := validation.CheckCustomText(*p.CustomPrompt); err != nil {
			return err
		}
	}
	dn := p.DesignNumber
	if dn == nil {
		return nil
	}
	if dn.Number != nil && *dn.Number != "" {
		if err := validation.CheckDesignNumberText(*dn.Number); err != nil {
			return err
		}
	}
	if dn.CustomFormat != nil && *dn.CustomFormat != "" {
		if err := validation.CheckDesignNumberText(*dn.CustomFormat); err != nil {
			return &validation.Error{Field: validation.FieldDesignNumber, Message: "Custom prefix: " + err.Error()}
		}
	}
	switch {
	case dn.Format != nil && !designnumber.ValidFormat(*dn.Format):
		return fmt.Errorf("invalid design number format %q", *dn.Format)
	case dn.Position != nil && !designnumber.ValidPosition(*dn.Position):
		return fmt.Errorf("invalid design number position %q", *dn.Position)
	case dn.Style != nil && !designnumber.ValidStyle(*dn.Style):
		return fmt.Errorf("invalid design number style %q", *dn.Style)
	case dn.FontSize != nil && !designnumber.ValidSize(*dn.FontSize):
		return fmt.Errorf("invalid design number size %q", *dn.FontSize)
	}
	return nil
}

// Merge returns o with every non-nil field of p applied, including the
// nested design-number settings.
func (o AdvancedOptions) Merge(p OptionsPatch) AdvancedOptions {
	if p.CustomPrompt != nil {
		o.CustomPrompt = *p.CustomPrompt
	}
	if dn := p.DesignNumber; dn != nil {
		c := &o.DesignNumber
		if dn.Enabled != nil {
			c.Enabled = *dn.Enabled
		}
		if dn.Number != nil {
			c.Number = *dn.Number
		}
		if dn.Format != nil {
			c.Format = *dn.Format
		}
		if dn.CustomFormat != nil {
			c.CustomFormat = *dn.CustomFormat
		}
		if dn.Position != nil {
			c.Position = *dn.Position
		}
		if dn.Style != nil {
			c.Style = *dn.Style
		}
		if dn.FontSize != nil {
			c.FontSize = *dn.FontSize
		}
	}
	return o
}
