package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the HTTP layer can map them to status codes.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindIngestion    Kind = "INGESTION"
	KindRetrieval    Kind = "RETRIEVAL"
	KindCompletion   Kind = "COMPLETION"
	KindRateLimited  Kind = "RATE_LIMITED"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Message so sentinels can be compared with errors.Is
// even after being wrapped.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message && t.Err == nil
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Ingestion(message string, err error) *Error {
	return Wrap(KindIngestion, message, err)
}

func Retrieval(message string, err error) *Error {
	return Wrap(KindRetrieval, message, err)
}

func Completion(message string, err error) *Error {
	return Wrap(KindCompletion, message, err)
}

// KindOf returns the Kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

var (
	ErrEmptyQuestion   = Validation("Question cannot be empty.")
	ErrEmptySession    = Validation("session_id cannot be empty.")
	ErrEmptyFilename   = Validation("Filename cannot be empty.")
	ErrEmptyFile       = Validation("Uploaded file is empty")
	ErrInvalidFileType = Validation("Invalid file type. Only PDF allowed.")
	ErrFileTooLarge    = Validation("Uploaded file exceeds the size limit")
)
