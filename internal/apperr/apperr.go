// Package apperr defines the service's domain error taxonomy. Each error
// carries a stable machine-readable code and an HTTP status class, so
// handlers can map errors to responses without string matching.
package apperr

import (
	"errors"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	// Application
	CodeNotEligible         Code = "APP_NOT_ELIGIBLE"
	CodePeriodClosed        Code = "APP_PERIOD_CLOSED"
	CodeAlreadyApplied      Code = "APP_ALREADY_APPLIED"
	CodeInvalidPreference   Code = "APP_INVALID_PREFERENCE"
	CodeApplicationNotFound Code = "APP_NOT_FOUND"

	// Payment
	CodePaymentAlreadyVerified Code = "PAY_ALREADY_VERIFIED"

	// Allocation
	CodeAlreadyAllocated   Code = "ALLOC_ALREADY_ALLOCATED"
	CodeGenderMismatch     Code = "ALLOC_GENDER_MISMATCH"
	CodeRoomFull           Code = "ALLOC_ROOM_FULL"
	CodeAllocationNotFound Code = "ALLOC_NOT_FOUND"

	// Ballot
	CodeBallotNoConfig        Code = "BALLOT_NO_CONFIG"
	CodeBallotNotFound        Code = "BALLOT_NOT_FOUND"
	CodeBallotAlreadyApproved Code = "BALLOT_ALREADY_APPROVED"
	CodeBallotInProgress      Code = "BALLOT_IN_PROGRESS"

	// Hostel / Room / Session
	CodeHostelNotFound   Code = "HOSTEL_NOT_FOUND"
	CodeRoomNotFound     Code = "ROOM_NOT_FOUND"
	CodeStudentNotFound  Code = "STUDENT_NOT_FOUND"
	CodeSessionNotFound  Code = "SESSION_NOT_FOUND"
	CodeSessionNotActive Code = "SESSION_NOT_ACTIVE"

	// General
	CodeValidation Code = "VALIDATION_ERROR"
	CodeConflict   Code = "CONFLICT"
	CodeDB         Code = "DB_ERROR"
)

// Error is a domain error with an HTTP status class.
type Error struct {
	Status  int
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two apperr values by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func BadRequest(code Code, message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Message: message}
}

func NotFound(code Code, message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Message: message}
}

func Conflict(code Code, message string) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Message: message}
}

func Validation(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

// DB wraps a persistence failure.
func DB(message string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeDB, Message: message, Err: err}
}

// CodeOf extracts the code from err, or CodeDB for unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeDB
}

// StatusOf extracts the HTTP status from err, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
