package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserve/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError translates error kinds into transport codes:
// validation 400, conflict 409, not-found 404, everything else 500.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.IsCode(err, errors.ErrBadRequest):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.IsCode(err, errors.ErrConflict):
		status = http.StatusConflict
		message = err.Error()
	case errors.IsCode(err, errors.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.IsCode(err, errors.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "unauthorized"
	}

	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Message: message,
		},
	})
}
