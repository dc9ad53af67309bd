// Package httputil centralizes JSON encoding and domain error translation for handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "cashdesk/pkg/domain-errors"
)

// ComplianceReviewMessage is the only description a client sees for compliance
// rejections; the precise reason stays in server logs.
const ComplianceReviewMessage = "Transaction requires additional review. Please visit a branch."

// maxBodyBytes bounds request bodies read by DecodeAndPrepare.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request DTOs that validate and normalize themselves.
type Validatable interface {
	Validate() error
}

// envelope is the JSON error body.
type envelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into an HTTP status and envelope.
// Internal errors never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, external, expose := translate(code)

	body := envelope{Error: external}
	if external != string(code) && expose {
		body.Reason = string(code)
	}
	switch {
	case expose:
		body.ErrorDescription = dErrors.MessageOf(err)
	case status == http.StatusForbidden && isCompliance(code):
		body.ErrorDescription = ComplianceReviewMessage
	}
	WriteJSON(w, status, body)
}

// StatusFor returns the HTTP status WriteError would use for err.
func StatusFor(err error) int {
	status, _, _ := translate(dErrors.CodeOf(err))
	return status
}

func translate(code dErrors.Code) (status int, external string, exposeMessage bool) {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest, string(code), true
	case dErrors.CodeValidation, dErrors.CodeChannelLimitExceeded, dErrors.CodeAggregateLimitExceeded:
		return http.StatusBadRequest, string(dErrors.CodeValidation), true
	case dErrors.CodeKYCFailed, dErrors.CodeAMLFlagged:
		return http.StatusForbidden, "compliance_error", false
	case dErrors.CodeForbidden:
		return http.StatusForbidden, string(code), true
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, string(code), true
	case dErrors.CodeNotFound:
		return http.StatusNotFound, string(code), true
	case dErrors.CodeConflict:
		return http.StatusConflict, string(code), true
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests, string(code), true
	default:
		return http.StatusInternalServerError, string(dErrors.CodeInternal), false
	}
}

func isCompliance(code dErrors.Code) bool {
	return code == dErrors.CodeKYCFailed || code == dErrors.CodeAMLFlagged
}

// DecodeAndPrepare decodes a JSON body into T, runs its validation and writes a
// 400 on failure. The second return value is false when a response was written.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		msg := "invalid JSON body"
		var syntaxErr *json.SyntaxError
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		} else if !errors.As(err, &syntaxErr) {
			msg = "invalid request body: " + err.Error()
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}

	if err := PT(&req).Validate(); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
