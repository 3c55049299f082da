package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const retryAfterSeconds = "1"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST       ErrCode = "REQUEST_FAILED"
	BAD_REQUEST          ErrCode = "FAILED_TO_DECODE"
	VALIDATION           ErrCode = "VALIDATION_ERROR"
	UNAUTHORIZED         ErrCode = "UNAUTHORIZED"
	FORBIDDEN            ErrCode = "FORBIDDEN"
	NOT_FOUND            ErrCode = "NOT_FOUND"
	NOT_ELIGIBLE         ErrCode = "NOT_ELIGIBLE"
	INVALID_SUBJECT      ErrCode = "INVALID_SUBJECT"
	OUTSIDE_AVAILABILITY ErrCode = "OUTSIDE_AVAILABILITY"
	SLOT_CONFLICT        ErrCode = "SLOT_CONFLICT"
	INVALID_TRANSITION   ErrCode = "INVALID_STATE_TRANSITION"
	INVALID_ACTION       ErrCode = "INVALID_ACTION"
	ALREADY_PAST         ErrCode = "ALREADY_PAST"
	ALREADY_EXISTS       ErrCode = "ALREADY_EXISTS"
	LOCKED               ErrCode = "LOCKED"
	SERVER_UNAVAILABLE   ErrCode = "SERVER_UNAVAILABLE"
)

var (
	ErrBadRequest             = errors.New("bad request")
	ErrValidation             = errors.New("validation failed")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("resource not found")
	ErrNotEligible            = errors.New("tutor is not eligible for booking")
	ErrInvalidSubject         = errors.New("subject is not taught by tutor")
	ErrOutsideAvailability    = errors.New("requested interval is outside tutor availability")
	ErrSlotConflict           = errors.New("requested interval overlaps an existing booking")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidAction          = errors.New("invalid action")
	ErrAlreadyPast            = errors.New("booking start time has already passed")
	ErrAlreadyExists          = errors.New("resource already exists")
	ErrLocked                 = errors.New("resource is locked")
	ErrServer                 = errors.New("server unavailable")
)

// ValidationError lists every missing or malformed field of a request.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsRetryable reports whether the failure is an infrastructure one that a client may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServer) || errors.Is(err, ErrLocked)
}

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

type mapping struct {
	target error
	status int
	code   ErrCode
}

var mappings = []mapping{
	{ErrValidation, http.StatusBadRequest, VALIDATION},
	{ErrBadRequest, http.StatusBadRequest, BAD_REQUEST},
	{ErrInvalidSubject, http.StatusBadRequest, INVALID_SUBJECT},
	{ErrInvalidAction, http.StatusBadRequest, INVALID_ACTION},
	{ErrUnauthorized, http.StatusUnauthorized, UNAUTHORIZED},
	{ErrForbidden, http.StatusForbidden, FORBIDDEN},
	{ErrNotFound, http.StatusNotFound, NOT_FOUND},
	{ErrNotEligible, http.StatusUnprocessableEntity, NOT_ELIGIBLE},
	{ErrOutsideAvailability, http.StatusConflict, OUTSIDE_AVAILABILITY},
	{ErrSlotConflict, http.StatusConflict, SLOT_CONFLICT},
	{ErrInvalidStateTransition, http.StatusConflict, INVALID_TRANSITION},
	{ErrAlreadyPast, http.StatusConflict, ALREADY_PAST},
	{ErrAlreadyExists, http.StatusConflict, ALREADY_EXISTS},
	{ErrLocked, http.StatusLocked, LOCKED},
	{ErrServer, http.StatusServiceUnavailable, SERVER_UNAVAILABLE},
}

// FromError maps a service error to an HTTP status and a stable error body.
func FromError(err error) (int, Response) {
	for _, m := range mappings {
		if !errors.Is(err, m.target) {
			continue
		}

		resp := Error(string(m.code), m.target.Error())

		var vErr *ValidationError
		if errors.As(err, &vErr) {
			resp.Fields = vErr.Fields
		}

		return m.status, resp
	}

	return http.StatusInternalServerError, Error(string(FAILED_REQUEST), "internal error")
}

func ValidationFromValidator(errs validator.ValidationErrors) *ValidationError {
	var fields []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			fields = append(fields, fmt.Sprintf("field '%s' is required", err.Field()))
		case "min":
			fields = append(fields, fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param()))
		case "max":
			fields = append(fields, fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param()))
		case "oneof":
			fields = append(fields, fmt.Sprintf("field '%s' must be one of [%s]", err.Field(), err.Param()))
		default:
			fields = append(fields, fmt.Sprintf("field '%s' is invalid", err.Field()))
		}
	}

	return &ValidationError{Fields: fields}
}

// WriteError renders err as an error body with its mapped status.
// Retryable failures also carry a Retry-After header.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := FromError(err)

	if IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
