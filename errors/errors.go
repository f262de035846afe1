package errors

import (
	"fmt"
)

// Error categories for structured error handling
const (
	CategoryConfig       = "config"
	CategoryLibrary      = "library"
	CategorySettings     = "settings"
	CategoryStatistics   = "statistics"
	CategoryIntelligence = "intelligence"
	CategoryManager      = "manager"
	CategoryMetadata     = "metadata"
	CategoryRemote       = "remote"
	CategoryServer       = "server"
	CategoryValidation   = "validation"
)

// NocturneError represents a structured error with category and context
type NocturneError struct {
	Category string
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
}

func (e *NocturneError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

func (e *NocturneError) Unwrap() error {
	return e.Cause
}

func (e *NocturneError) WithContext(key string, value interface{}) *NocturneError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new NocturneError
func New(category, code, message string) *NocturneError {
	return &NocturneError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with NocturneError
func Wrap(err error, category, code, message string) *NocturneError {
	return &NocturneError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    err,
		Context:  make(map[string]interface{}),
	}
}

// Config errors
var (
	ErrInvalidLogLevel    = New(CategoryConfig, "INVALID_LOG_LEVEL", "invalid log level")
	ErrInvalidLibraryPath = New(CategoryConfig, "INVALID_LIBRARY_PATH", "invalid library path")
	ErrExclusiveActions   = New(CategoryConfig, "EXCLUSIVE_ACTIONS", "only one playback action may be given")
)

// Library errors
var (
	ErrLibraryRead      = New(CategoryLibrary, "READ_FAILED", "library file read failed")
	ErrLibraryWrite     = New(CategoryLibrary, "WRITE_FAILED", "library file write failed")
	ErrLibraryVersion   = New(CategoryLibrary, "VERSION_TOO_NEW", "library file is written by a newer version of the software")
	ErrSongNotUnique    = New(CategoryLibrary, "SONG_NOT_UNIQUE", "song already exists in library")
	ErrSongNotFound     = New(CategoryLibrary, "SONG_NOT_FOUND", "song not found")
	ErrSongNotInLibrary = New(CategoryLibrary, "SONG_NOT_IN_LIBRARY", "song is not a library member")
)

// Settings errors
var (
	ErrSettingsRead      = New(CategorySettings, "READ_FAILED", "settings file read failed")
	ErrSettingsWrite     = New(CategorySettings, "WRITE_FAILED", "settings file write failed")
	ErrSettingsVersion   = New(CategorySettings, "VERSION_TOO_NEW", "settings file is written by a newer version of the software")
	ErrSettingOutOfRange = New(CategorySettings, "OUT_OF_RANGE", "setting value out of range")
)

// Statistics errors
var (
	ErrStatOutOfRange  = New(CategoryStatistics, "OUT_OF_RANGE", "statistic value out of range")
	ErrInvalidFraction = New(CategoryStatistics, "INVALID_FRACTION", "played fraction out of range")
)

// Metadata errors
var (
	ErrMetadataTimeout = New(CategoryMetadata, "TIMEOUT", "metadata extraction timed out")
	ErrMetadataParse   = New(CategoryMetadata, "PARSE_FAILED", "metadata extraction failed")
)

// Remote errors
var (
	ErrRemoteUnavailable = New(CategoryRemote, "UNAVAILABLE", "no running instance on the session bus")
	ErrRemoteCall        = New(CategoryRemote, "CALL_FAILED", "remote call failed")
)

// Server errors
var (
	ErrServerStart    = New(CategoryServer, "START_FAILED", "server failed to start")
	ErrServerShutdown = New(CategoryServer, "SHUTDOWN_FAILED", "server shutdown failed")
)

// Validation errors
var (
	ErrValidationFailed = New(CategoryValidation, "VALIDATION_FAILED", "validation failed")
	ErrInvalidInput     = New(CategoryValidation, "INVALID_INPUT", "invalid input")
	ErrMissingParameter = New(CategoryValidation, "MISSING_PARAMETER", "missing required parameter")
)

// Helper functions for common error patterns
func IsCategory(err error, category string) bool {
	var nerr *NocturneError
	if !As(err, &nerr) {
		return false
	}
	return nerr.Category == category
}

func GetErrorCode(err error) string {
	var nerr *NocturneError
	if !As(err, &nerr) {
		return ""
	}
	return nerr.Code
}

func GetErrorContext(err error) map[string]interface{} {
	var nerr *NocturneError
	if !As(err, &nerr) {
		return nil
	}
	return nerr.Context
}

// As is a wrapper around errors.As
func As(err error, target interface{}) bool {
	if err == nil {
		return false
	}
	// Simple type assertion for our use case
	if nerr, ok := err.(*NocturneError); ok {
		if targetPtr, ok := target.(**NocturneError); ok {
			*targetPtr = nerr
			return true
		}
	}
	return false
}
