package apierr

import (
	"errors"
	"net/http"

	"github.com/zhouzirui/course-advisor/backend/internal/memory"
	"github.com/zhouzirui/course-advisor/backend/internal/service/advisor"
	chatService "github.com/zhouzirui/course-advisor/backend/internal/service/chat"
)

// Status maps service errors to HTTP status codes.
func Status(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrUsernameRequired),
		errors.Is(err, chatService.ErrPasswordRequired),
		errors.Is(err, chatService.ErrInvalidMode),
		errors.Is(err, chatService.ErrModelNotAllowed),
		errors.Is(err, memory.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, advisor.ErrContextUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
