package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	goerrors "github.com/go-errors/errors"
)

type ErrorType string

const (
	ErrTypeUnauthenticated ErrorType = "UNAUTHENTICATED"
	ErrTypeForbidden       ErrorType = "FORBIDDEN"
	ErrTypeNotFound        ErrorType = "NOT_FOUND"
	ErrTypeInvalidInput    ErrorType = "INVALID_INPUT"
	ErrTypeConflict        ErrorType = "CONFLICT"
	ErrTypeInternal        ErrorType = "INTERNAL"
	ErrTypeUnavailable     ErrorType = "UNAVAILABLE"
)

// DomainError is the error returned by every transport-facing call. Status is
// the HTTP status when the failure came from a server response, zero otherwise.
// ServerMessage holds the human readable message from the response body, if
// any, and Fields the per-field validation messages.
type DomainError struct {
	Type          ErrorType
	Message       string
	Status        int
	ServerMessage string
	Fields        map[string]string
	Err           error
	Stack         []byte
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) StackTrace() []byte {
	return e.Stack
}

func New(errType ErrorType, message string, err error) *DomainError {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

// FromStatus maps an HTTP response status to a DomainError.
func FromStatus(status int, serverMessage string) *DomainError {
	message := serverMessage
	if message == "" {
		message = fmt.Sprintf("unexpected status code: %d", status)
	}

	e := New(TypeForStatus(status), message, nil)
	e.Status = status
	e.ServerMessage = serverMessage
	return e
}

func TypeForStatus(status int) ErrorType {
	switch status {
	case http.StatusUnauthorized:
		return ErrTypeUnauthenticated
	case http.StatusForbidden:
		return ErrTypeForbidden
	case http.StatusNotFound:
		return ErrTypeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrTypeInvalidInput
	case http.StatusConflict:
		return ErrTypeConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrTypeUnavailable
	default:
		return ErrTypeInternal
	}
}

// FieldErrors returns the per-field validation messages of a failed response.
func FieldErrors(err error) map[string]string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// TypeOf returns the type of the first DomainError in err's chain, or
// ErrTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Type
	}
	return ErrTypeInternal
}

func Is(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	return TypeOf(err) == errType
}

// ServerMessage returns the message the server attached to a failed response.
func ServerMessage(err error) (string, bool) {
	var de *DomainError
	if stderrors.As(err, &de) && de.ServerMessage != "" {
		return de.ServerMessage, true
	}
	return "", false
}

func Internal(message string, err error) *DomainError {
	return New(ErrTypeInternal, message, err)
}

func Unavailable(message string, err error) *DomainError {
	return New(ErrTypeUnavailable, message, err)
}
