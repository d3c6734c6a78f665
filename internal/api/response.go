package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/surplus/internal/safety"
)

// Error codes outside the safety rejections.
const (
	codeInvalidArgument  = "INVALID_ARGUMENT"
	codeInvalidStatus    = "INVALID_STATUS"
	codeNotFound         = "NOT_FOUND"
	codeUnauthorized     = "UNAUTHORIZED"
	codeForbidden        = "FORBIDDEN"
	codeConflict         = "CONFLICT"
	codeTooLarge         = "PAYLOAD_TOO_LARGE"
	codeUnsupportedMedia = "UNSUPPORTED_MEDIA_TYPE"
	codeStoreUnavailable = "STORE_UNAVAILABLE"
	codeInternal         = "INTERNAL_ERROR"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success    bool           `json:"success"`
	Data       any            `json:"data,omitempty"`
	Message    string         `json:"message,omitempty"`
	Meta       *listMeta      `json:"meta,omitempty"`
	Error      string         `json:"error,omitempty"`
	Code       string         `json:"code,omitempty"`
	HTTPStatus int            `json:"httpStatus,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Degraded   bool           `json:"degraded,omitempty"`
	Note       string         `json:"note,omitempty"`
}

type listMeta struct {
	TotalActive   int       `json:"totalActive"`
	ExpiredMarked int64     `json:"expiredMarked"`
	Timestamp     time.Time `json:"timestamp"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonOK wraps data in a successful envelope.
func jsonOK(w http.ResponseWriter, status int, data any) {
	jsonResponse(w, status, envelope{Success: true, Data: data})
}

// jsonError writes an error envelope with the default code for status.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonErrorCode(w, status, defaultCode(status), message, nil)
}

// jsonErrorCode writes an error envelope with an explicit code and details.
func jsonErrorCode(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	jsonResponse(w, status, envelope{
		Error:      message,
		Code:       code,
		HTTPStatus: status,
		Details:    details,
	})
}

// jsonRejection writes a safety rejection.
func jsonRejection(w http.ResponseWriter, d safety.Decision) {
	jsonErrorCode(w, d.HTTPStatus(), d.Code(), d.Message(), d.Details())
}

func defaultCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeInvalidArgument
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusConflict:
		return codeConflict
	case http.StatusRequestEntityTooLarge:
		return codeTooLarge
	case http.StatusUnsupportedMediaType:
		return codeUnsupportedMedia
	case http.StatusServiceUnavailable:
		return codeStoreUnavailable
	default:
		return codeInternal
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
