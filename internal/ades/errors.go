package ades

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a normalized execution-engine error. Status is the HTTP
// status the API layer should surface.
type Error struct {
	Status int
	Code   string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("execution engine: %s (%d): %s", e.Code, e.Status, e.Detail)
}

// AsEngineError extracts a normalized engine error from err.
func AsEngineError(err error) (*Error, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// IsTransient reports whether the error is a transient engine status
// worth retrying.
func IsTransient(err error) bool {
	engineErr, ok := AsEngineError(err)
	if !ok {
		return false
	}
	switch engineErr.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// IsNotFound reports whether the error means the resource does not
// exist on the engine.
func IsNotFound(err error) bool {
	engineErr, ok := AsEngineError(err)
	return ok && engineErr.Status == http.StatusNotFound
}

// IsConflict reports whether the error is a duplicate-registration
// conflict.
func IsConflict(err error) bool {
	engineErr, ok := AsEngineError(err)
	return ok && engineErr.Status == http.StatusConflict
}

// resourceKind tells the error normalizer which entity an endpoint
// addresses, so 403 responses can name it.
type resourceKind string

const (
	kindProcess resourceKind = "Process"
	kindJob     resourceKind = "Job"
	kindNone    resourceKind = ""
)

// engineDetail is the engine's error body, either a bare detail or an
// OGC exception document.
type engineDetail struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// normalizeError maps an engine response to an Error. A 403 on a job or
// process endpoint means the resource belongs to someone else; it is
// reported as missing rather than forbidden.
func normalizeError(status int, body []byte, kind resourceKind, id string) *Error {
	detail := extractDetail(body)

	switch status {
	case http.StatusBadRequest:
		return &Error{Status: status, Code: "invalid_request", Detail: orDefault(detail, "invalid payload")}
	case http.StatusUnauthorized:
		return &Error{Status: status, Code: "not_authorized", Detail: "not authorized"}
	case http.StatusForbidden:
		if kind != kindNone {
			return &Error{
				Status: http.StatusNotFound,
				Code:   "not_found",
				Detail: fmt.Sprintf("%s '%s' does not exist.", kind, id),
			}
		}
		return &Error{Status: status, Code: "forbidden", Detail: orDefault(detail, "forbidden")}
	case http.StatusNotFound:
		if kind != kindNone {
			return &Error{
				Status: status,
				Code:   "not_found",
				Detail: fmt.Sprintf("%s '%s' does not exist.", kind, id),
			}
		}
		return &Error{Status: status, Code: "not_found", Detail: orDefault(detail, "not found")}
	case http.StatusConflict:
		return &Error{Status: status, Code: "conflict", Detail: "Process with identical identifier already exists."}
	case http.StatusTooManyRequests:
		return &Error{Status: status, Code: "too_many_requests", Detail: orDefault(detail, "too many requests")}
	case http.StatusNotImplemented:
		return &Error{Status: status, Code: "not_implemented", Detail: orDefault(detail, "not implemented")}
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return &Error{Status: status, Code: "engine_unavailable", Detail: orDefault(detail, "execution engine unavailable")}
	case http.StatusInternalServerError:
		return &Error{Status: status, Code: "internal_error", Detail: "internal server error"}
	default:
		return &Error{Status: status, Code: "engine_error", Detail: orDefault(detail, http.StatusText(status))}
	}
}

func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var d engineDetail
	if err := json.Unmarshal(body, &d); err != nil {
		return ""
	}
	if d.Detail != "" {
		return d.Detail
	}
	return d.Title
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
