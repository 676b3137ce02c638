package validation

import (
	"fmt"
	"strings"
)

// Severity grades a prompt warning.
type Severity string

const (
	SeverityBlocked Severity = "blocked"
	SeverityWarning Severity = "warning"
)

// Warning is an advisory about custom text. It never prevents submission.
type Warning struct {
	Keyword  string   `json:"keyword"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// blockedKeywords imply a change to garment geometry.
var blockedKeywords = []string{
	"redesign", "reshape", "change silhouette", "make longer", "make shorter",
	"different neckline", "alter sleeves", "different style", "modern style",
	"western style", "replace with", "swap to", "change to different",
	"change neckline", "lengthen", "shorten", "resize", "restructure",
	"add sleeves", "remove sleeves", "change collar", "add collar",
}

// warningKeywords are ambiguous and may cause drift.
var warningKeywords = []string{
	"change", "modify", "alter", "different", "transform", "convert",
	"restyle", "remodel", "adjust shape", "wider", "narrower", "tighter",
	"looser", "bigger", "smaller",
}

// allowedKeywords only touch texture or color.
var allowedKeywords = []string{
	"brighter", "darker", "vibrant", "warmer", "cooler", "shimmer",
	"matte", "sheen", "softer", "contrast", "shadow", "highlight",
	"flowing", "lighter fabric", "transparency", "sheer", "golden",
	"silver", "metallic", "embroidery", "texture", "color", "tone",
	"saturation", "luminous", "glossy", "silk", "satin",
}

// AllowedKeywords returns example words that are safe in custom instructions.
func AllowedKeywords() []string {
	out := make([]string, len(allowedKeywords))
	copy(out, allowedKeywords)
	return out
}

type span struct{ start, end int }

func (s span) within(o span) bool {
	return s.start >= o.start && s.end <= o.end
}

// occurrences returns every (possibly overlapping) match of kw in text.
func occurrences(text, kw string) []span {
	var out []span
	for i := 0; i+len(kw) <= len(text); {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			break
		}
		start := i + j
		out = append(out, span{start, start + len(kw)})
		i = start + 1
	}
	return out
}

// CheckPromptForRisk scans text case-insensitively for geometry-changing
// phrases. Blocked hits come first, in list order, followed by warnings.
//
// A warning keyword is reported only if at least one of its occurrences lies
// outside every blocked occurrence, so "change neckline" does not also warn
// about "change" but "change neckline, change color" does.
func CheckPromptForRisk(text string) []Warning {
	warnings := []Warning{}
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return warnings
	}

	var blockedSpans []span
	for _, kw := range blockedKeywords {
		spans := occurrences(lower, kw)
		if len(spans) == 0 {
			continue
		}
		blockedSpans = append(blockedSpans, spans...)
		warnings = append(warnings, Warning{
			Keyword:  kw,
			Message:  fmt.Sprintf("Your prompt contains %q which may override geometry preservation rules. Consider rewording to focus on texture/color only.", kw),
			Severity: SeverityBlocked,
		})
	}

	for _, kw := range warningKeywords {
		free := false
		for _, s := range occurrences(lower, kw) {
			covered := false
			for _, b := range blockedSpans {
				if s.within(b) {
					covered = true
					break
				}
			}
			if !covered {
				free = true
				break
			}
		}
		if free {
			warnings = append(warnings, Warning{
				Keyword:  kw,
				Message:  fmt.Sprintf("%q may cause unintended changes. Ensure it refers to color/texture, not geometry.", kw),
				Severity: SeverityWarning,
			})
		}
	}
	return warnings
}
