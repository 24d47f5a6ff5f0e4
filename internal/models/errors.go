package models

import (
	"errors"
	"fmt"
)

// Error kinds of the pipeline. Match them with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrPasswordProtected = errors.New("password protected")
	ErrExtraction        = errors.New("extraction failure")
	ErrDecode            = errors.New("decode failure")
	ErrEnrichment        = errors.New("enrichment failure")
	ErrRender            = errors.New("render failure")
	ErrConversion        = errors.New("conversion failure")
)

// Pipeline stages reported in StageError.
const (
	StageValidation = "validation"
	StageText       = "text-extraction"
	StageImages     = "image-extraction"
	StageStructure  = "structuring"
	StageRender     = "rendering"
	StageConversion = "conversion"
)

// StageError is a failure tagged with the stage it happened in and its kind.
type StageError struct {
	Stage   string
	Kind    error
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError creates a new StageError.
func NewStageError(stage string, kind error, message string, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Message: message, Err: err}
}

// InvalidInputError reports malformed, empty or undersized input.
func InvalidInputError(message string) *StageError {
	return NewStageError(StageValidation, ErrInvalidInput, message, nil)
}

// PasswordProtectedError reports an encrypted document that needs a password.
func PasswordProtectedError(err error) *StageError {
	return NewStageError(StageText, ErrPasswordProtected, "the PDF is password protected; upload an unlocked copy", err)
}

// RenderError reports a renderer failure that prevented any output.
func RenderError(message string, err error) *StageError {
	return NewStageError(StageRender, ErrRender, message, err)
}

// ConversionError reports a failed rasterization attempt.
func ConversionError(message string, err error) *StageError {
	return NewStageError(StageConversion, ErrConversion, message, err)
}

// UserMessage renders an error for callers: the failing stage, the message and,
// when present, the collaborator's message. It never contains stack detail.
func UserMessage(err error) (stage, message string) {
	var se *StageError
	if errors.As(err, &se) {
		message = se.Message
		if se.Err != nil {
			message = fmt.Sprintf("%s: %v", se.Message, se.Err)
		}
		return se.Stage, message
	}
	return "", err.Error()
}
