package gateway

import "net/http"

// ErrorKind classifies why a gateway request was rejected
type ErrorKind int

const (
	// MissingKey: the caller sent no access key. Detected before any Generator call.
	MissingKey ErrorKind = iota + 1
	// MissingImage: the caller sent no image. Detected before any Generator call.
	MissingImage
	// InvalidKey: the Generator refused the key. The cause is never shown to the caller.
	InvalidKey
	// BackendFailure: the vision call failed. The cause is shown to the caller as is.
	BackendFailure
)

const (
	msgEmptyKey      = "Empty Access Key"
	msgImageNotFound = "Image Not Found"
	msgInvalidKey    = "Invalid Access Key"
	msgValidKey      = "Valid Access Key"
)

func (k ErrorKind) String() string {
	switch k {
	case MissingKey:
		return "MissingKey"
	case MissingImage:
		return "MissingImage"
	case InvalidKey:
		return "InvalidKey"
	case BackendFailure:
		return "BackendFailure"
	default:
		return "Unknown"
	}
}

// StatusCode maps the kind to its HTTP status
func (k ErrorKind) StatusCode() int {
	if k == InvalidKey {
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}

// RejectedError is returned when a request cannot be served.
// Error() is the exact text sent to the caller.
type RejectedError struct {
	Kind  ErrorKind
	Cause error
}

func (e *RejectedError) Error() string {
	switch e.Kind {
	case MissingKey:
		return msgEmptyKey
	case MissingImage:
		return msgImageNotFound
	case InvalidKey:
		return msgInvalidKey
	}

	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *RejectedError) Unwrap() error {
	return e.Cause
}

func reject(kind ErrorKind, cause error) *RejectedError {
	return &RejectedError{Kind: kind, Cause: cause}
}
