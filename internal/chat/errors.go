package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GenerationErrorType categorizes a failed generation call.
type GenerationErrorType int

const (
	// ErrTypeUnknown is any failure not matched below.
	ErrTypeUnknown GenerationErrorType = iota
	// ErrTypeInvalidKey indicates the API key was rejected.
	ErrTypeInvalidKey
	// ErrTypeSafety indicates the request or output was blocked by safety filters.
	ErrTypeSafety
	// ErrTypeRateLimited indicates quota or rate limits were hit.
	ErrTypeRateLimited
	// ErrTypeNetwork indicates a transport failure or deadline.
	ErrTypeNetwork
)

func (t GenerationErrorType) String() string {
	switch t {
	case ErrTypeInvalidKey:
		return "invalid_key"
	case ErrTypeSafety:
		return "safety"
	case ErrTypeRateLimited:
		return "rate_limited"
	case ErrTypeNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// GenerationError is a classified generation failure. Message is safe to
// show to the operator; Status is the HTTP status the API layer returns.
type GenerationError struct {
	Type    GenerationErrorType
	Message string
	Status  int
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// User-facing messages.
const (
	msgInvalidKey  = "Invalid API key. Check the GEMINI_API_KEY configuration."
	msgSafety      = "Image was blocked by safety filters. Try adjusting your prompt or using a different image."
	msgRateLimited = "Rate limit reached. Please wait a moment and try again."
	msgNetwork     = "Generation failed: could not reach the image service. Check your connection and try again."
)

// ClassifyError maps an error from the generation call to a GenerationError.
// An error that is already a GenerationError is returned unchanged.
func ClassifyError(err error) *GenerationError {
	if err == nil {
		return nil
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}

	// The SDK has returned APIError both by value and by pointer.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if ge := classifyAPIError(apiErr.Code, err); ge != nil {
			return ge
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		if ge := classifyAPIError(apiErrPtr.Code, err); ge != nil {
			return ge
		}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "API_KEY") || strings.Contains(lower, "api key not valid"):
		return &GenerationError{Type: ErrTypeInvalidKey, Message: msgInvalidKey, Status: http.StatusUnauthorized, Err: err}

	case strings.Contains(msg, "SAFETY") || strings.Contains(lower, "blocked"):
		return &GenerationError{Type: ErrTypeSafety, Message: msgSafety, Status: http.StatusUnprocessableEntity, Err: err}

	case strings.Contains(msg, "RATE_LIMIT") || strings.Contains(msg, "429") ||
		strings.Contains(lower, "resource exhausted") || strings.Contains(lower, "quota"):
		return &GenerationError{Type: ErrTypeRateLimited, Message: msgRateLimited, Status: http.StatusTooManyRequests, Err: err}

	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(lower, "connection") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "dial") ||
		strings.Contains(lower, "no such host"):
		return &GenerationError{Type: ErrTypeNetwork, Message: msgNetwork, Status: http.StatusBadGateway, Err: err}

	default:
		return &GenerationError{
			Type:    ErrTypeUnknown,
			Message: "Generation failed: " + msg,
			Status:  http.StatusInternalServerError,
			Err:     err,
		}
	}
}

// classifyAPIError handles the status codes that map unambiguously. Other
// codes fall through to message matching.
func classifyAPIError(code int, err error) *GenerationError {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &GenerationError{Type: ErrTypeInvalidKey, Message: msgInvalidKey, Status: http.StatusUnauthorized, Err: err}
	case http.StatusTooManyRequests:
		return &GenerationError{Type: ErrTypeRateLimited, Message: msgRateLimited, Status: http.StatusTooManyRequests, Err: err}
	}
	return nil
}
