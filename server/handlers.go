package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"erisextract/pipeline"
	apperrors "erisextract/server/errors"
	"erisextract/server/middleware"
)

// ExtractResponse is the body of a finished trigger.
type ExtractResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Output   string `json:"output"`
	RunID    string `json:"run_id,omitempty"`
	UploadID int64  `json:"upload_id,omitempty"`
}

type runResult struct {
	report *pipeline.Report
	err    error
}

// handleExtract runs one extraction. A run that outlives the timeout keeps
// the busy flag until it actually returns.
func (s *Server) handleExtract(c *gin.Context) {
	if !s.running.CompareAndSwap(false, true) {
		middleware.WriteError(c, s.logger, apperrors.NewConflictError("extraction already in progress", nil), "")
		return
	}
	if !s.limiter.Allow() {
		s.running.Store(false)
		middleware.WriteError(c, s.logger, apperrors.NewTooManyRequestsError("too many extraction requests", nil), "")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.ExtractTimeout)
	defer cancel()

	logger, output := captureLogger(s.base, s.config.SlogLevel())
	logger = logger.With("request_id", middleware.GetRequestIDFromGin(c))

	done := make(chan runResult, 1)
	go func() {
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				done <- runResult{err: fmt.Errorf("extraction panicked: %v", r)}
			}
		}()
		report, err := s.run(ctx, logger)
		done <- runResult{report: report, err: err}
	}()

	var res runResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = runResult{err: ctx.Err()}
	}

	switch {
	case res.err == nil:
		c.JSON(http.StatusOK, ExtractResponse{
			Status:   "success",
			Message:  fmt.Sprintf("extraction completed for %s", res.report.File),
			Output:   output.String(),
			RunID:    res.report.RunID,
			UploadID: res.report.UploadID,
		})
	case errors.Is(res.err, pipeline.ErrNoPendingFile):
		c.JSON(http.StatusOK, ExtractResponse{
			Status:  "skipped",
			Message: "no pending file to extract",
			Output:  output.String(),
		})
	case errors.Is(res.err, context.DeadlineExceeded):
		middleware.WriteError(c, s.logger,
			apperrors.NewTimeoutError(fmt.Sprintf("extraction exceeded %s", s.config.ExtractTimeout), res.err),
			output.String())
	default:
		middleware.WriteError(c, s.logger, apperrors.NewInternalError("extraction failed", res.err), output.String())
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "ok",
		"running":   s.Running(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if s.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.logger.Warn("[handleHealth] Store unreachable", "error", err)
			body["status"] = "degraded"
			body["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}

	c.JSON(http.StatusOK, body)
}
