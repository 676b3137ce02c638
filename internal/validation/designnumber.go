package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxDesignNumberLen is the longest design number a user may enter.
const MaxDesignNumberLen = 15

var (
	designNumberAllowed = regexp.MustCompile(`^[A-Za-z0-9\-_ ]+$`)
	designNumberBlocked = regexp.MustCompile("[<>{}()\\[\\]@#$%^&*+=|\\\\/\"'`;:!?~]")
)

// CheckDesignNumberText validates a user-entered design number. The
// forbidden-character check runs before the allow pattern so the more
// specific message wins.
func CheckDesignNumberText(value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(FieldDesignNumber, "Design number cannot be empty.")
	}
	if utf8.RuneCountInString(value) > MaxDesignNumberLen {
		return invalid(FieldDesignNumber, "Maximum 15 characters allowed.")
	}
	if designNumberBlocked.MatchString(value) {
		return invalid(FieldDesignNumber, "Special characters are not allowed.")
	}
	if !designNumberAllowed.MatchString(value) {
		return invalid(FieldDesignNumber, "Only letters, numbers, hyphens, and underscores allowed.")
	}
	return nil
}
