package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed API call.
type Kind string

const (
	KindAuthExpired Kind = "auth_expired"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindServer      Kind = "server"
	KindRequest     Kind = "request"
	KindTransport   Kind = "transport"
)

// FieldError is a per-field message reported by the server on 422.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned for every non-2xx response and for network failures.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Notice is the text shown to the user for this failure.
func (e *Error) Notice() string {
	switch e.Kind {
	case KindAuthExpired:
		return "Session expired. Please login again."
	case KindForbidden:
		return "You do not have permission to perform this action."
	case KindNotFound:
		return "Resource not found."
	case KindValidation:
		if len(e.Fields) > 0 {
			msgs := make([]string, 0, len(e.Fields))
			for _, f := range e.Fields {
				msgs = append(msgs, f.Message)
			}
			return strings.Join(msgs, "; ")
		}
		if e.Message != "" {
			return e.Message
		}
		return "Validation failed."
	case KindServer:
		return "Server error. Please try again later."
	case KindTransport:
		return "Network error. Please check your connection."
	default:
		if e.Message != "" {
			return e.Message
		}
		return "An error occurred"
	}
}

func kindFor(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthExpired
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindRequest
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == kind
}
