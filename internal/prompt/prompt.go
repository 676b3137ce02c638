// Package prompt assembles the instruction sent to the image model from a
// session's garment selection, its bound fabrics and the user's custom text.
//
// Base templates are stored as text files under templates/ and embedded at
// compile time, one per non-empty garment combination.
package prompt

import (
	"embed"
	"strings"

	"github.com/fpang/virtual-tryon/internal/garment"
	"github.com/fpang/virtual-tryon/internal/validation"
)

//go:embed templates/*.txt
var templateFS embed.FS

// hardLocks forbids pose, geometry and cross-garment changes. It closes every
// instruction.
//
//go:embed templates/hard-locks.txt
var hardLocks string

// fallbackKey is used when a selection has no template of its own.
const fallbackKey = "top+bottom+chunni"

// baseTemplates is keyed by garment.Set.Key().
var baseTemplates = loadTemplates()

func loadTemplates() map[string]string {
	out := make(map[string]string, 7)
	for mask := garment.Set(1); mask <= garment.NewSet(garment.AllKinds()...); mask++ {
		key := mask.Key()
		name := "templates/" + strings.ReplaceAll(key, "+", "-") + ".txt"
		data, err := templateFS.ReadFile(name)
		if err != nil {
			panic("prompt: missing template " + name)
		}
		out[key] = strings.TrimRight(string(data), "\n")
	}
	return out
}

// baseTemplate returns the template for sel, or the three-garment template.
func baseTemplate(sel garment.Set) string {
	if t, ok := baseTemplates[sel.Key()]; ok {
		return t
	}
	return baseTemplates[fallbackKey]
}

// BuildInstruction returns the full instruction text: the base template for
// the selection, one source line per selected and bound garment, the
// sanitized custom text (if any) and the hard-lock suffix.
func BuildInstruction(sel garment.Set, fabrics garment.Sources, customText string) string {
	var b strings.Builder
	b.WriteString(baseTemplate(sel))

	var lines []string
	for _, k := range sel.Kinds() {
		src, ok := fabrics[k]
		if !ok || src == nil {
			continue
		}
		lines = append(lines, k.Label()+" fabric source: "+src.Describe())
	}
	if len(lines) > 0 {
		b.WriteString("\n\nFabric sources:\n")
		b.WriteString(strings.Join(lines, "\n"))
	}

	if strings.TrimSpace(customText) != "" {
		if sanitized := validation.SanitizeFreeText(customText); sanitized != "" {
			b.WriteString("\n\nAdditional instructions:\n")
			b.WriteString(sanitized)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(hardLocks, "\n"))
	return b.String()
}

// EstimateDuration returns an illustrative wait time for the number of
// selected garments.
func EstimateDuration(sel garment.Set) string {
	switch sel.Len() {
	case 1:
		return "30-45 seconds"
	case 2:
		return "45-60 seconds"
	default:
		return "60-90 seconds"
	}
}
