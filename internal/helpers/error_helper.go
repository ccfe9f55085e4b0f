package helpers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func kindFromStatus(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "gateway_unavailable"
	default:
		return "internal"
	}
}

func RespondWithError(c *gin.Context, statusCode int, customMessage string) {
	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Message: customMessage,
		Kind:    kindFromStatus(statusCode),
	})
}
