package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeStatus represents an unexpected HTTP status code
	ErrorTypeStatus ErrorType = "status"
	// ErrorTypeParsing represents HTML and price parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeRobots represents exclusion policy errors
	ErrorTypeRobots ErrorType = "robots"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlerError represents a crawler-specific error
type CrawlerError struct {
	Type       ErrorType
	Source     string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient: a network failure or a 5xx answer.
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeStatus:
		return e.StatusCode >= 500 && e.StatusCode < 600
	default:
		return false
	}
}

// New creates a new CrawlerError
func New(errType ErrorType, source, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *CrawlerError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewStatus creates an error for an unexpected HTTP status code
func NewStatus(source string, statusCode int) *CrawlerError {
	e := New(ErrorTypeStatus, source, fmt.Sprintf("unexpected status code: %d", statusCode), nil)
	e.StatusCode = statusCode
	return e
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	e := New(ErrorTypeRateLimit, source, message, nil)
	e.StatusCode = 429
	return e
}

// NewRobots creates a new exclusion policy error
func NewRobots(source, message string, err error) *CrawlerError {
	return New(ErrorTypeRobots, source, message, err)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *CrawlerError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsRetryable reports whether err carries a retryable CrawlerError.
// Errors that are not CrawlerErrors are treated as transport failures and are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := As(err); ok {
		return ce.IsRetryable()
	}
	return true
}

// As unwraps err looking for a CrawlerError
func As(err error) (*CrawlerError, bool) {
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsType reports whether err carries a CrawlerError of the given type
func IsType(err error, errType ErrorType) bool {
	ce, ok := As(err)
	return ok && ce.Type == errType
}
