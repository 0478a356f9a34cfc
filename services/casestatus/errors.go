package casestatus

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure a case-status operation can surface. A
// Kind is itself an error so errors.Is(err, ErrTimeout) matches any *Error
// of that kind.
type Kind string

const (
	// ErrDriverUnavailable means no browser session could be started after
	// retrying, the caller should try again later.
	ErrDriverUnavailable Kind = "DriverUnavailable"
	// ErrInvalidSelection means a caller supplied option is not one the
	// current stage offers.
	ErrInvalidSelection Kind = "InvalidSelection"
	// ErrValidationFailed means the portal rejected the captcha, the
	// submission can be retried with the fresh captcha attached.
	ErrValidationFailed Kind = "ValidationFailed"
	// ErrExtractionFailed means the portal's markup did not have the
	// expected shape.
	ErrExtractionFailed Kind = "ExtractionFailed"
	// ErrUpstreamFetchFailed means the order pdf could not be downloaded.
	ErrUpstreamFetchFailed Kind = "UpstreamFetchFailed"
	// ErrNotFound means there is no order pdf to download.
	ErrNotFound Kind = "NotFound"
	// ErrTimeout means a wait on the portal ran past its ceiling, the
	// session is kept.
	ErrTimeout Kind = "Timeout"
	// ErrSessionReset means the browser session behind the flow was lost,
	// the caller has to start over by listing states.
	ErrSessionReset Kind = "SessionReset"
	// ErrBadRequest means the call was malformed or out of order.
	ErrBadRequest Kind = "BadRequest"
)

func (k Kind) Error() string {
	return string(k)
}

func (k Kind) HTTPStatus() int {
	switch k {
	case ErrDriverUnavailable:
		return http.StatusServiceUnavailable
	case ErrInvalidSelection, ErrBadRequest:
		return http.StatusBadRequest
	case ErrValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrExtractionFailed, ErrUpstreamFetchFailed:
		return http.StatusBadGateway
	case ErrNotFound:
		return http.StatusNotFound
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrSessionReset:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured failure of a case-status operation.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error

	// UpstreamStatus is the status the portal answered a pdf download
	// with, 0 when not applicable.
	UpstreamStatus int
	// Captcha is the freshly captured captcha image attached to a
	// ValidationFailed error.
	Captcha []byte
}

func newError(kind Kind, stage Stage, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%s): %s", e.Kind, e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.Kind
}

// AsError extracts the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var out *Error
	ok := errors.As(err, &out)
	return out, ok
}
