// Package validation checks user-supplied files and text before they enter a
// try-on session, and sanitizes free text before it reaches the generation
// service.
package validation

// Field names reported on Error.
const (
	FieldImage        = "image"
	FieldDocument     = "document"
	FieldDesignNumber = "designNumber"
	FieldCustomText   = "customText"
)

// Error is an input-constraint violation. Message is safe to show to the user.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalid(field, msg string) *Error {
	return &Error{Field: field, Message: msg}
}
