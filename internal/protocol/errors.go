package protocol

import "fmt"

// ErrorCode classifies every failure a client can see in an Ack.
type ErrorCode string

const (
	// CodeAuthFailed rejects a connection before any room state is touched.
	CodeAuthFailed ErrorCode = "AUTH_FAILED"
	// CodeUnauthorized rejects an event whose capability check failed.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// CodeValidation rejects a malformed or over-limit payload.
	CodeValidation ErrorCode = "VALIDATION"
	// CodeRateLimited rejects an event that exceeded its action window.
	CodeRateLimited ErrorCode = "RATE_LIMITED"
	// CodeNotFound rejects a reference to a missing room/message/alert.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeRoomFull rejects a join that would exceed room capacity.
	CodeRoomFull ErrorCode = "ROOM_FULL"
	// CodeBanned rejects a join by a banned user.
	CodeBanned ErrorCode = "BANNED"
	// CodeInternal reports a downstream failure. The in-memory operation
	// still completed when this code accompanies a success=true ack path;
	// as an ack error it means the operation itself could not run.
	CodeInternal ErrorCode = "INTERNAL"
)

// Error is the structured error carried in acks and returned by hub
// operations. RetryAfterSeconds is set for CodeRateLimited; Fallback
// carries the emergency-services text when a crisis action was denied.
type Error struct {
	Code              ErrorCode `json:"code"`
	Message           string    `json:"message"`
	Field             string    `json:"field,omitempty"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
	Fallback          string    `json:"fallback,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func ValidationError(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

// AsError extracts a *Error from any error, wrapping unknown errors as
// CodeInternal so clients always see the structured form.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
