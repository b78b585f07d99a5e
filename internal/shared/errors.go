package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies every failure a relay can produce. The kind alone
// decides the status code sent back to the caller.
type ErrorKind int

const (
	KindUpstream ErrorKind = iota
	KindBadRequest
	KindUnauthenticated
	KindConfiguration
)

var kindStatus = map[ErrorKind]int{
	KindUpstream:        http.StatusInternalServerError,
	KindBadRequest:      http.StatusBadRequest,
	KindUnauthenticated: http.StatusUnauthorized,
	KindConfiguration:   http.StatusInternalServerError,
}

var kindNames = map[ErrorKind]string{
	KindUpstream:        "upstream_error",
	KindBadRequest:      "bad_request",
	KindUnauthenticated: "unauthenticated",
	KindConfiguration:   "configuration_error",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// StatusCode returns the HTTP status for the kind
func (k ErrorKind) StatusCode() int {
	if code, ok := kindStatus[k]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// RequestError is used when we want a specific error message and kind.
// Err is the short message that is safe to hand back to the caller. Any
// detail meant only for operators should be joined next to the RequestError
// with errors.Join so it shows up in logs but never in the response.
type RequestError struct {
	Kind ErrorKind
	Err  error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", r.Kind, r.Err)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

func (r *RequestError) StatusCode() int {
	return r.Kind.StatusCode()
}

// Message is what the caller gets to see. Configuration problems are
// reported generically so secrets and env names do not leak.
func (r *RequestError) Message() string {
	if r.Kind == KindConfiguration {
		return ErrMisconfigured.Err.Error()
	}
	if r.Err == nil {
		return http.StatusText(r.StatusCode())
	}
	return r.Err.Error()
}

func NewBadRequest(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindBadRequest, Err: fmt.Errorf(format, args...)}
}

func NewUnauthenticated(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindUnauthenticated, Err: fmt.Errorf(format, args...)}
}

func NewUpstream(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindUpstream, Err: fmt.Errorf(format, args...)}
}

func NewConfiguration(format string, args ...any) *RequestError {
	return &RequestError{Kind: KindConfiguration, Err: fmt.Errorf(format, args...)}
}

// AsRequestError finds the first RequestError in the chain
func AsRequestError(err error) (*RequestError, bool) {
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

var (
	ErrMissingAuth   = &RequestError{Kind: KindUnauthenticated, Err: errors.New("missing authorization header")}
	ErrInvalidFormat = &RequestError{Kind: KindUnauthenticated, Err: errors.New("invalid authentication format")}
	ErrUnauthorized  = &RequestError{Kind: KindUnauthenticated, Err: errors.New("unauthorized")}

	ErrInvalidRequest = &RequestError{Kind: KindBadRequest, Err: errors.New("invalid request body")}
	ErrMalformedURI   = &RequestError{Kind: KindBadRequest, Err: errors.New("malformed data uri")}

	ErrNoContent      = &RequestError{Kind: KindUpstream, Err: errors.New("no content in response")}
	ErrModelRequest   = &RequestError{Kind: KindUpstream, Err: errors.New("failed to reach model api")}
	ErrModelResponse  = &RequestError{Kind: KindUpstream, Err: errors.New("failed to read model api response")}
	ErrMisconfigured  = &RequestError{Kind: KindConfiguration, Err: errors.New("server misconfigured")}
	ErrInternalServer = &RequestError{Kind: KindUpstream, Err: errors.New("internal server error")}
)
