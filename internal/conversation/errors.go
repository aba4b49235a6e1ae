package conversation

import "fmt"

// Kind classifies orchestration failures; the API layer maps each kind
// onto an HTTP status.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindSessionNotFound    Kind = "session_not_found"
	KindUnknownField       Kind = "unknown_field"
	KindValidationFailed   Kind = "validation_failed"
	KindIncompleteDocument Kind = "incomplete_document"
	KindProcessingFailed   Kind = "processing_failed"
	KindGenerationFailed   Kind = "generation_failed"
)

// Error is a typed orchestration failure. Message is always safe to show
// to the user; Cause carries internal detail for logs only.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Populated for KindIncompleteDocument.
	UnfilledCount int
	UnfilledNames []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError returns err as an orchestration *Error when it is one.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

func validationErr(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func sessionNotFoundErr() *Error {
	return &Error{
		Kind:    KindSessionNotFound,
		Message: "Your session has expired or does not exist. Please upload the document again.",
	}
}

func unknownFieldErr(key string) *Error {
	return &Error{
		Kind:    KindUnknownField,
		Message: "The specified field does not exist.",
		Cause:   fmt.Errorf("unknown field key %q", key),
	}
}

func processingFailedErr(cause error) *Error {
	return &Error{
		Kind:    KindProcessingFailed,
		Message: "Unable to read the document. Please ensure it's a valid .docx file.",
		Cause:   cause,
	}
}

func generationFailedErr(cause error) *Error {
	return &Error{
		Kind:    KindGenerationFailed,
		Message: "Unable to generate the final document. Please try again.",
		Cause:   cause,
	}
}
