package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrAlreadySettled     = errors.New("assignment is already settled")
	ErrExceedsBalance     = errors.New("payment exceeds balance due")
	ErrPartialNotAllowed  = errors.New("partial payment not allowed")
	ErrDuplicateSuspected = errors.New("duplicate payment suspected")
	ErrConflict           = errors.New("conflicting state")
	ErrValidationFailed   = errors.New("validation failed")
	ErrBatchFailed        = errors.New("no batch item could be applied")
	ErrProcessingFailed   = errors.New("processing failed")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadySettled     = "ALREADY_SETTLED"
	ErrCodeExceedsBalance     = "EXCEEDS_BALANCE"
	ErrCodePartialNotAllowed  = "PARTIAL_NOT_ALLOWED"
	ErrCodeDuplicateSuspected = "DUPLICATE_SUSPECTED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeBatchFailed        = "BATCH_FAILED"
	ErrCodeProcessingFailed   = "PROCESSING_FAILED"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
	ErrCodeCacheError         = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapNotFound(kind, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with ID %s not found", kind, id),
		ErrNotFound,
	)
}

func WrapAlreadySettled(assignmentID string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadySettled,
		fmt.Sprintf("Assignment %s is already fully paid", assignmentID),
		ErrAlreadySettled,
	)
}

func WrapExceedsBalance(amount, balance string) *BusinessError {
	return NewBusinessError(
		ErrCodeExceedsBalance,
		fmt.Sprintf("Payment amount %s exceeds balance due %s", amount, balance),
		ErrExceedsBalance,
	)
}

func WrapPartialNotAllowed(amount, balance string) *BusinessError {
	return NewBusinessError(
		ErrCodePartialNotAllowed,
		fmt.Sprintf("Payment amount %s is less than balance due %s and partial payments are not allowed", amount, balance),
		ErrPartialNotAllowed,
	)
}

func WrapDuplicateSuspected(assignmentID, amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateSuspected,
		fmt.Sprintf("A payment of %s on assignment %s was just recorded", amount, assignmentID),
		ErrDuplicateSuspected,
	)
}

func WrapConflict(message string) *BusinessError {
	return NewBusinessError(ErrCodeConflict, message, ErrConflict)
}

func WrapValidation(message string) *BusinessError {
	return NewBusinessError(ErrCodeValidationFailed, message, ErrValidationFailed)
}

func WrapBatchFailed(failed int) *BusinessError {
	return NewBusinessError(
		ErrCodeBatchFailed,
		fmt.Sprintf("All %d batch items failed; nothing was recorded", failed),
		ErrBatchFailed,
	)
}

// WrapProcessingFailed hides infrastructure detail from callers but keeps the cause.
func WrapProcessingFailed(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeProcessingFailed,
		"processing failed",
		err,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// AsBusiness extracts a BusinessError from err
func AsBusiness(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsRuleViolation reports whether err is a recoverable business-rule failure
// as opposed to an infrastructure fault.
func IsRuleViolation(err error) bool {
	be, ok := AsBusiness(err)
	if !ok {
		return false
	}
	switch be.Code {
	case ErrCodeProcessingFailed, ErrCodeDatabaseError, ErrCodeCacheError:
		return false
	}
	return true
}

// Code returns the business code carried by err, or PROCESSING_FAILED
func Code(err error) string {
	if be, ok := AsBusiness(err); ok {
		return be.Code
	}
	return ErrCodeProcessingFailed
}

// HTTPStatus maps an error to the status code the API answers with
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadySettled, ErrCodeConflict, ErrCodeDuplicateSuspected:
		return http.StatusConflict
	case ErrCodeExceedsBalance, ErrCodePartialNotAllowed, ErrCodeBatchFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
