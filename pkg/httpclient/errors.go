package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "github.com/utafrali/RentMarket/pkg/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// messagePaths lists where upstream services put a human-readable message,
// most specific first. Backends in this marketplace disagree on the envelope:
// `{"error":{"code","message"}}`, `{"message"}`, `{"error":"..."}`, `{"msg"}`.
var messagePaths = []string{"error.message", "message", "error", "msg", "detail"}

// codePaths lists where upstream services put a machine-readable code.
var codePaths = []string{"error.code", "code"}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an *apperrors.AppError. The upstream message is kept verbatim in
// AppError.Message (empty when the body carried none) so callers can surface
// it to the user unchanged.
//
// The caller should only invoke this when resp.StatusCode indicates an error
// (i.e., not 2xx). The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	return errorFromBody(resp.StatusCode, bodyBytes, serviceName)
}

func errorFromBody(status int, body []byte, serviceName string) error {
	code, message := extractError(body)

	appErr := mapStatus(status, message)
	if code != "" {
		appErr.Code = code
	}
	appErr.Status = status
	if appErr.Err == nil {
		appErr.Err = fmt.Errorf("%s returned status %d", serviceName, status)
	}
	return appErr
}

// extractError pulls a code and message out of an error body. Plain-text
// bodies are used as the message when they are short enough to be one.
func extractError(body []byte) (code, message string) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", ""
	}

	if !gjson.Valid(trimmed) {
		if len(trimmed) <= 200 && !strings.HasPrefix(trimmed, "<") {
			return "", trimmed
		}
		return "", ""
	}

	parsed := gjson.Parse(trimmed)
	if parsed.Type == gjson.String {
		return "", parsed.String()
	}

	for _, p := range codePaths {
		if v := parsed.Get(p); v.Type == gjson.String && v.String() != "" {
			code = v.String()
			break
		}
	}
	for _, p := range messagePaths {
		if v := parsed.Get(p); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			message = strings.TrimSpace(v.String())
			break
		}
	}
	return code, message
}

// mapStatus translates an upstream status into the matching AppError kind.
func mapStatus(status int, message string) *apperrors.AppError {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(message)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(message)
	case status == http.StatusNotFound:
		e := apperrors.NotFound("resource", "")
		e.Message = message
		return e
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(message)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(message)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return apperrors.Timeout(message)
	case status == http.StatusServiceUnavailable:
		return apperrors.Unavailable(message)
	case status >= 500:
		return &apperrors.AppError{Code: "UPSTREAM_ERROR", Message: message, Err: apperrors.ErrInternal}
	default:
		return &apperrors.AppError{Code: "UPSTREAM_ERROR", Message: message}
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

// IsSuccess returns true for 2xx status codes.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
