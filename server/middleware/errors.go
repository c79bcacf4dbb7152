package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "erisextract/server/errors"
)

// HTTPError is an error that knows its HTTP status and caller-facing message.
type HTTPError interface {
	error
	StatusCode() int
	UserMessage() string
	Detail() string
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	Output    string `json:"output,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError logs err and writes it as an ErrorResponse. Errors that are not
// HTTPError are reported as internal errors.
func WriteError(c *gin.Context, logger *slog.Logger, err error, output string) {
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = apperrors.NewInternalError("unhandled error", err)
	}

	reqID := GetRequestIDFromGin(c)
	logger.Error("[WriteError] HTTP error",
		"error", err,
		"user_message", httpErr.UserMessage(),
		"status_code", httpErr.StatusCode(),
		"request_id", reqID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)

	c.JSON(httpErr.StatusCode(), ErrorResponse{
		Status:    "error",
		Message:   httpErr.UserMessage(),
		Error:     httpErr.Detail(),
		Output:    output,
		Timestamp: time.Now().Format(time.RFC3339),
		RequestID: reqID,
	})
}
