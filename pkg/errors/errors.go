package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the API error envelope. Code is stable for clients; Status is the HTTP status it maps to.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err == nil:
		return e.Message
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code, so a clone or a wrap of a sentinel satisfies errors.Is against it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.Code == t.Code
}

// New builds an error with no cause.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds an error that keeps err as its cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WithCause copies a sentinel and attaches err, keeping the sentinel's message.
func WithCause(sentinel *Error, err error) *Error {
	return Wrap(err, sentinel.Code, sentinel.Status, sentinel.Message)
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) string {
	if appErr := FromError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}

// Sentinels. Services return clones of these; handlers map them through response.Error.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrNoPermission       = New("NO_PERMISSION", http.StatusForbidden, "you do not have permission to perform this action")
	ErrClassroomLocked    = New("CLASSROOM_LOCKED", http.StatusForbidden, "classroom is locked")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInvalidTotal       = New("INVALID_TOTAL", http.StatusBadRequest, "grade structure total must be a number greater than or equal to 1")
	ErrInvalidPercent     = New("INVALID_PERCENT", http.StatusBadRequest, "composition percent must be a number greater than or equal to 1")
	ErrPercentMismatch    = New("PERCENT_MISMATCH", http.StatusBadRequest, "composition percents must sum to 100")
	ErrStudentIDRequired  = New("STUDENT_ID_REQUIRED", http.StatusBadRequest, "a student id is required in this classroom")
	ErrAlreadyFinal       = New("ALREADY_FINAL", http.StatusConflict, "grade review is already final")
	ErrDuplicateReview    = New("DUPLICATE_REVIEW", http.StatusConflict, "an open grade review already exists for this composition")
	ErrStructureMissing   = New("GRADE_STRUCTURE_MISSING", http.StatusPreconditionFailed, "classroom has no grade structure")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrServiceUnavailable = New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable")
)

// FromError finds the first *Error in err's chain. Anything else becomes ErrInternal with err as cause.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return WithCause(ErrInternal, err)
}

// Clone copies a sentinel. A non-empty message replaces the sentinel's text.
func Clone(sentinel *Error, message string) *Error {
	if sentinel == nil {
		return nil
	}
	out := *sentinel
	if message != "" {
		out.Message = message
	}
	return &out
}
