package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// WriteError maps the application error taxonomy onto HTTP status codes.
// Validation errors on state transitions use 400; field validation uses 422.
func WriteError(c *gin.Context, err error) {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))
	case apperrors.ErrValidation:
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	case apperrors.ErrBadRequest:
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
	}
}

// WriteTransitionError is WriteError with validation mapped to 400, for
// id-addressed state transitions (launch/pause/resume).
func WriteTransitionError(c *gin.Context, err error) {
	if apperrors.IsValidation(err) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	WriteError(c, err)
}
