package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"transit/internal/domain"
	"transit/internal/middleware"
	"transit/internal/service"
)

// Response is the envelope of every API response.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, Response{Status: false, Error: service.Message(err)})
}

// respondBadRequest sends a 400 for malformed input.
func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Status: false, Error: msg})
}

// respondJSON sends a successful response with the given status code.
func respondJSON(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Response{Status: true, Message: message, Data: data})
}

// mapErrorToHTTPStatus maps a service error kind to an HTTP status code.
func mapErrorToHTTPStatus(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// mustCaller returns the authenticated caller or writes a 401.
func mustCaller(c *gin.Context) (domain.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Status: false, Error: "authentication required"})
	}
	return caller, ok
}

// requestMetadata captures the client context stored on payments.
func requestMetadata(c *gin.Context) service.RequestMetadata {
	return service.RequestMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: middleware.RequestIDFrom(c),
	}
}

// pageParams reads page and limit query parameters. Unparseable values fall
// back to the service defaults.
func pageParams(c *gin.Context) (int, int) {
	return cast.ToInt(c.Query("page")), cast.ToInt(c.Query("limit"))
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
