package dto

import (
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

// ErrorResponse represents a standard error response.
// Error holds code, message, optional guidance and action, plus error details flattened in.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   map[string]any `json:"error"`
}

// NewErrorResponse builds the response body from an application error
func NewErrorResponse(err *apperror.AppError) ErrorResponse {
	body := make(map[string]any, len(err.Details)+4)
	for k, v := range err.Details {
		body[k] = v
	}
	body["code"] = err.Code
	body["message"] = err.Message
	if len(err.Guidance) > 0 {
		body["guidance"] = err.Guidance
	}
	if err.Action != "" {
		body["action"] = err.Action
	}
	return ErrorResponse{Error: body}
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JobRunResponse is returned by the manual job trigger
type JobRunResponse struct {
	Job    string `json:"job"`
	Result any    `json:"result"`
}
