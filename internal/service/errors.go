package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrDecode
	ErrOCR
	ErrTranslation
	ErrMux
	ErrStorage
	ErrPersistence
	ErrConfig
	ErrValidation
	ErrUnknown
)

// PipelineError is a categorized pipeline failure
type PipelineError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *PipelineError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrDecode:
		return "Decode"
	case ErrOCR:
		return "OCR"
	case ErrTranslation:
		return "Translation"
	case ErrMux:
		return "Mux"
	case ErrStorage:
		return "Storage"
	case ErrPersistence:
		return "Persistence"
	case ErrConfig:
		return "Config"
	case ErrValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Advice returns an operator hint for a failed job
func Advice(err error) string {
	var pErr *PipelineError
	if !errors.As(err, &pErr) {
		return "Please review detailed error information"
	}
	switch pErr.Type {
	case ErrFileNotFound:
		return "Please check that the video path is correct and readable by the service"
	case ErrDecode:
		return "The video could not be decoded; check that ffmpeg supports its container and codec"
	case ErrOCR:
		return "Check that the OCR engine and its language data are installed"
	case ErrFileWrite:
		return "Please ensure the working and output directories exist and are writable"
	case ErrMux:
		return "Burning or compressing failed; check ffmpeg has libx264 and the subtitles filter"
	case ErrStorage:
		return "Check object storage endpoint, credentials and bucket names"
	case ErrPersistence:
		return "Check the database DSN and that migrations ran"
	case ErrConfig:
		return "Please check that configuration files or environment variables are set correctly"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

// LogError logs err with its advice
func LogError(err error) {
	log.Error("Error Detail: %v\n advice: %s", err, Advice(err))
}

func IsErrorType(err error, errorType ErrorType) bool {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *PipelineError {
	return NewErrorWithCause(errorType, message, err)
}

// SafeExecute turns a panic in fn into an ErrUnknown error
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
