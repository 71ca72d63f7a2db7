package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/councilflow/councilflow/council"
	"github.com/councilflow/councilflow/llm"
	"github.com/councilflow/councilflow/storage"
)

// =============================================================================
// Response envelope
// =============================================================================

// Response is the unified API response envelope.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorInfo carries the serialized error.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError maps err to an HTTP status and writes the error envelope.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, info := classify(err)

	if logger != nil {
		logger.Error("API error",
			zap.String("code", info.Code),
			zap.String("message", info.Message),
			zap.Int("status", status),
		)
	}

	WriteJSON(w, status, Response{
		Success:   false,
		Error:     info,
		Timestamp: time.Now(),
	})
}

// WriteErrorMessage writes a plain error envelope without mapping.
func WriteErrorMessage(w http.ResponseWriter, status int, code, message string, logger *zap.Logger) {
	if logger != nil {
		logger.Warn("API error",
			zap.String("code", code),
			zap.String("message", message),
			zap.Int("status", status),
		)
	}
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// classify maps domain errors onto HTTP statuses.
func classify(err error) (int, *ErrorInfo) {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmStatus(llmErr), &ErrorInfo{
			Code:      string(llmErr.Code),
			Message:   llmErr.Message,
			Retryable: llmErr.Retryable,
		}
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, &ErrorInfo{Code: "NOT_FOUND", Message: "conversation not found"}
	case errors.Is(err, council.ErrNoMembers):
		return http.StatusServiceUnavailable, &ErrorInfo{Code: "NO_MEMBERS", Message: err.Error()}
	case errors.Is(err, council.ErrAllMembersFailed):
		return http.StatusBadGateway, &ErrorInfo{Code: "ALL_MEMBERS_FAILED", Message: err.Error(), Retryable: true}
	case errors.Is(err, council.ErrChairmanUnavailable):
		return http.StatusBadGateway, &ErrorInfo{Code: "CHAIRMAN_UNAVAILABLE", Message: err.Error(), Retryable: true}
	}

	return http.StatusInternalServerError, &ErrorInfo{Code: "INTERNAL_ERROR", Message: err.Error()}
}

func llmStatus(err *llm.Error) int {
	if err.HTTPStatus != 0 {
		return err.HTTPStatus
	}
	switch err.Code {
	case llm.ErrInvalidRequest:
		return http.StatusBadRequest
	case llm.ErrUnauthorized:
		return http.StatusUnauthorized
	case llm.ErrForbidden:
		return http.StatusForbidden
	case llm.ErrRateLimited:
		return http.StatusTooManyRequests
	case llm.ErrQuotaExceeded:
		return http.StatusPaymentRequired
	case llm.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case llm.ErrModelOverloaded, llm.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case llm.ErrUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes the request body into dst. On failure it writes the
// error response and returns the error so callers can just return.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := errors.New("request body is empty")
		WriteErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body", logger)
		return err
	}
	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w, defaulting the status to 200.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
