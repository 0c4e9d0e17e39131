package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	customerrors "github.com/inboxlab/warmstack/internal/errors"
)

// Response is the JSON envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), Response{Success: false, Error: err.Error()})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
}

// statusForError maps domain errors to HTTP codes: 400 for rejected state
// transitions and validation, 404 for unknown ids, 409 for duplicate email.
func statusForError(err error) int {
	switch {
	case errors.Is(err, customerrors.ErrDomainAccountNotFound),
		errors.Is(err, customerrors.ErrLeadAccountNotFound),
		errors.Is(err, customerrors.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, customerrors.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, customerrors.ErrAlreadyRunning),
		errors.Is(err, customerrors.ErrCompletedToday),
		errors.Is(err, customerrors.ErrNoLeads),
		errors.Is(err, customerrors.ErrNoActiveOrchestra):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
