package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
)

// ErrorResponse - тело любого ответа с ошибкой.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeEmptyText     = "EMPTY_TEXT"
	CodeTextTooLong   = "TEXT_TOO_LONG"
	CodeInvalidReason = "INVALID_REASON"
	CodeNestedReply   = "NESTED_REPLY"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeNotOwner      = "NOT_OWNER"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL"
)

// errorCodes связывает ошибки domain с HTTP-статусом и кодом на проводе.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrEmptyText, http.StatusBadRequest, CodeEmptyText},
	{domain.ErrTextTooLong, http.StatusBadRequest, CodeTextTooLong},
	{domain.ErrInvalidReason, http.StatusBadRequest, CodeInvalidReason},
	{domain.ErrNestedReply, http.StatusBadRequest, CodeNestedReply},
	{domain.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
	{domain.ErrNotOwner, http.StatusForbidden, CodeNotOwner},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
}

// ErrorForCode восстанавливает ошибку domain по коду из ответа.
// Неизвестный код - nil.
func ErrorForCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: APIError{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// handleStoreError переводит ошибку хранилища в ответ.
// Детали внутренних ошибок наружу не отдаются.
func (h *Handler) handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			writeError(w, r, ec.status, ec.code, ec.err.Error())
			return
		}
	}
	h.logger.Error("store call failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
}
