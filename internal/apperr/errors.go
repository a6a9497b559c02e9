package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindUnauthorized
	KindForbidden
	KindStorageFailure
	KindUnavailable
	KindIntegrityViolation
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindStorageFailure:
		return "STORAGE_FAILURE"
	case KindUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindIntegrityViolation:
		return "INTEGRITY_VIOLATION"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "INTERNAL"
	}
}

// Retryable reports whether a caller may safely try the same request again.
func (k Kind) Retryable() bool {
	return k == KindStorageFailure || k == KindUnavailable || k == KindRateLimited
}

// Error carries a Kind, a stable Code for administrators and a Message that
// is safe to show to voters.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Code so sentinels survive wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// With returns a copy of a sentinel that carries the underlying cause.
func (e *Error) With(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

func Storage(op string, err error) *Error {
	return Wrap(KindStorageFailure, "STORAGE_FAILURE", "storage operation failed: "+op, err)
}

func Invalid(message string) *Error {
	return New(KindInvalidInput, "INVALID_INPUT", message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// PublicMessage never exposes wrapped causes.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindIntegrityViolation || e.Kind == KindInternal {
			return "internal error, an operator has been notified"
		}
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(err error) int {
	if errors.Is(err, ErrAlreadyVoted) {
		return http.StatusForbidden
	}
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrTicketNotFound     = New(KindNotFound, "TICKET_NOT_FOUND", "invalid ticket code")
	ErrAlreadyVoted       = New(KindConflict, "ALREADY_VOTED", "this ticket has already been used to vote")
	ErrInvalidClub        = New(KindNotFound, "INVALID_CLUB", "the selected club does not exist")
	ErrClubNotFound       = New(KindNotFound, "CLUB_NOT_FOUND", "club not found")
	ErrStandNotFound      = New(KindNotFound, "STAND_NOT_FOUND", "stand not found")
	ErrStudentNotFound    = New(KindNotFound, "STUDENT_NOT_FOUND", "student not found")
	ErrClubHasVotes       = New(KindConflict, "CLUB_HAS_VOTES", "club already holds votes")
	ErrVotesRecorded      = New(KindConflict, "VOTES_RECORDED", "votes are recorded, reset votes first")
	ErrStandBusy          = New(KindUnavailable, "STAND_BUSY", "stand is being reassigned, try again")
	ErrMaintenance        = New(KindUnavailable, "MAINTENANCE", "voting is paused for maintenance, try again shortly")
	ErrUnauthorized       = New(KindUnauthorized, "UNAUTHORIZED", "authentication required")
	ErrInvalidCredentials = New(KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	ErrSuperadminRequired = New(KindForbidden, "SUPERADMIN_REQUIRED", "only a superadmin can perform this operation")
	ErrForbidden          = New(KindForbidden, "FORBIDDEN", "insufficient role")
	ErrRateLimited        = New(KindRateLimited, "RATE_LIMITED", "too many requests, please slow down")
)
