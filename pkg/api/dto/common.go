package dto

import (
	"github.com/eodatahub/action-creator/internal/apperr"
)

// ErrorDetail is one entry of the error envelope.
type ErrorDetail struct {
	Loc  []string       `json:"loc"`
	Type string         `json:"type"`
	Msg  string         `json:"msg"`
	Ctx  map[string]any `json:"ctx,omitempty"`
}

// ErrorEnvelope is the error body of every non-2xx JSON response.
type ErrorEnvelope struct {
	Detail []ErrorDetail `json:"detail"`
}

// NewErrorEnvelope builds a single-entry envelope.
func NewErrorEnvelope(loc []string, errType, msg string, ctx map[string]any) ErrorEnvelope {
	return ErrorEnvelope{Detail: []ErrorDetail{{Loc: loc, Type: errType, Msg: msg, Ctx: ctx}}}
}

// FromAppError converts a typed application error to an envelope entry.
func FromAppError(loc []string, err *apperr.Error) ErrorEnvelope {
	return NewErrorEnvelope(loc, err.Type(), err.Message, err.Context())
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string `json:"status"`
}
