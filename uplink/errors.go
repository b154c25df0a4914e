package uplink

import "fmt"

// Kind identifies the taxonomy of errors this package can return. Callers
// should compare against these values with errors.As and Error.Kind, not
// with string matching against Error().
type Kind string

const (
	// UplinkOffline is returned when the circuit breaker is open at preflight.
	UplinkOffline Kind = "UplinkOffline"
	// TokenRequired is returned when auth is configured but no token resolves.
	TokenRequired Kind = "TokenRequired"
	// AuthInvalid is returned when the auth config names an unsupported type.
	AuthInvalid Kind = "AuthInvalid"
	// BadInterval is returned when a duration literal cannot be parsed.
	BadInterval Kind = "BadInterval"
	// NotFoundUplink is returned on a 404 from a metadata fetch.
	NotFoundUplink Kind = "NotFoundUplink"
	// NotFileUplink is returned on a 404 from a tarball fetch.
	NotFileUplink Kind = "NotFileUplink"
	// NotModifiedNoData is returned on a 304 from a metadata fetch.
	NotModifiedNoData Kind = "NotModifiedNoData"
	// BadStatusCode is returned for any other non-2xx response.
	BadStatusCode Kind = "BadStatusCode"
	// ContentMismatch is returned when a tarball's observed length diverges
	// from its advertised Content-Length.
	ContentMismatch Kind = "ContentMismatch"
)

// Error is the error type this package uses for the classified failures
// named by Kind. It carries a stable Kind plus the upname of the uplink that
// produced it, and wraps an underlying cause when there is one. Transport
// errors are returned as they come, not wrapped in an Error, and a manifest
// decode failure is returned as a plain wrapped error.
type Error struct {
	Kind Kind
	// Upname is the logical name of the uplink that produced the error.
	Upname string
	// RemoteStatus carries the numeric HTTP status for BadStatusCode errors.
	RemoteStatus int
	// Err is the underlying cause, if any (for example a number or URL parse
	// error). Nil for errors that originate in this package itself.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case BadStatusCode:
		return fmt.Sprintf("%s: %s (status %d)", e.Upname, e.Kind, e.RemoteStatus)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Upname, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Upname, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(upname string, kind Kind) *Error {
	return &Error{Kind: kind, Upname: upname}
}

func wrapError(upname string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Upname: upname, Err: err}
}

func statusError(upname string, status int) *Error {
	return &Error{Kind: BadStatusCode, Upname: upname, RemoteStatus: status}
}
