package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxCustomTextLen bounds custom instructions, before and after sanitizing.
const MaxCustomTextLen = 500

// injectionPatterns are stripped from free text, in order.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<[^>]*>`),
	regexp.MustCompile(`\{[^}]*\}`),
	regexp.MustCompile(`\$\{[^}]*\}`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`\\`),
}

// SanitizeFreeText strips markup, template placeholders, script URLs, inline
// event handlers and backslashes, then trims and truncates to 500 characters.
//
// Stripping repeats until nothing matches: removing the backslash from
// "on\click=" exposes an event handler. Repeating to a fixed point is what
// makes the function idempotent.
func SanitizeFreeText(text string) string {
	s := text
	for {
		prev := s
		for _, re := range injectionPatterns {
			s = re.ReplaceAllString(s, "")
		}
		if s == prev {
			break
		}
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxCustomTextLen {
		s = strings.TrimSpace(string([]rune(s)[:MaxCustomTextLen]))
	}
	return s
}

// CheckCustomText rejects custom instructions longer than MaxCustomTextLen.
func CheckCustomText(text string) error {
	if utf8.RuneCountInString(text) > MaxCustomTextLen {
		return invalid(FieldCustomText, "Custom instructions must be 500 characters or fewer.")
	}
	return nil
}
