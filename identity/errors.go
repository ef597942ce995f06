package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies identity API failures. The API reports errors in
// several ad-hoc shapes (sometimes "detail", sometimes "errors", sometimes
// "message"); they are normalized here, at the client boundary, so the session
// manager only ever sees one tagged type.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"      // The request never completed
	KindUnauthorized ErrorKind = "unauthorized" // 401 - credentials rejected
	KindValidation   ErrorKind = "validation"   // 4xx with field-level messages
	KindUnknown      ErrorKind = "unknown"      // Anything else
)

// Sentinel errors for errors.Is checks.
var (
	ErrNetwork      = errors.New("network error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrUnknown      = errors.New("unknown error")
)

// Error is the normalized identity API error.
type Error struct {
	Kind    ErrorKind
	Status  int // HTTP status, 0 for network errors
	Message string
	Fields  []string // Per-field validation messages, when the API supplied them
	cause   error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindNetwork:
		return ErrNetwork
	case KindUnauthorized:
		return ErrUnauthorized
	case KindValidation:
		return ErrValidation
	}
	return ErrUnknown
}

// Cause returns the underlying transport error, if any.
func (e *Error) Cause() error {
	return e.cause
}

func networkError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: "identity API unreachable",
		cause:   err,
	}
}

// apiErrorBody covers the error shapes the identity API has been observed to
// produce: "detail" as a plain string, "detail" as an array of {msg} objects,
// an "errors" map, or a bare "message".
type apiErrorBody struct {
	Detail  json.RawMessage   `json:"detail,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Message string            `json:"message,omitempty"`
}

type detailItem struct {
	Msg string `json:"msg"`
}

func errorFromResponse(status int, body []byte) *Error {
	apiErr := &Error{
		Kind:    KindUnknown,
		Status:  status,
		Message: http.StatusText(status),
	}
	if status == http.StatusUnauthorized {
		apiErr.Kind = KindUnauthorized
		apiErr.Message = "credentials rejected"
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}

	if parsed.Message != "" {
		apiErr.Message = parsed.Message
	}

	if len(parsed.Errors) > 0 {
		apiErr.Kind = KindValidation
		apiErr.Message = "validation failed"
		for field, msg := range parsed.Errors {
			apiErr.Fields = append(apiErr.Fields, fmt.Sprintf("%s: %s", field, msg))
		}
		return apiErr
	}

	if len(parsed.Detail) == 0 {
		return apiErr
	}

	// "detail" is either a string or an array of {msg} objects
	var detailStr string
	if err := json.Unmarshal(parsed.Detail, &detailStr); err == nil {
		apiErr.Message = detailStr
		return apiErr
	}

	var items []detailItem
	if err := json.Unmarshal(parsed.Detail, &items); err == nil {
		if apiErr.Kind == KindUnknown {
			apiErr.Kind = KindValidation
			apiErr.Message = "validation failed"
		}
		for _, item := range items {
			if item.Msg != "" {
				apiErr.Fields = append(apiErr.Fields, item.Msg)
			}
		}
	}

	return apiErr
}
