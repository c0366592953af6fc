package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"insightsnap/internal/automl"
	"insightsnap/internal/chart"
	"insightsnap/internal/ocr"
	"insightsnap/internal/service/insight"
	"insightsnap/internal/service/modeling"
	"insightsnap/internal/service/recognition"
	"insightsnap/internal/table"
	"insightsnap/internal/worker"
)

// statusFor maps a service error to its HTTP status. Input problems are
// checked before engine failures since engine errors may wrap them.
func statusFor(err error) int {
	var engineErr *automl.EngineError
	var providerErr *insight.ProviderError
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrFileRequired),
		errors.Is(err, errInvalidUpload),
		errors.Is(err, recognition.ErrUnsupportedLanguage),
		errors.Is(err, recognition.ErrUnsupportedImage),
		errors.Is(err, recognition.ErrEmptyImage),
		errors.Is(err, table.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, recognition.ErrImageDecode),
		errors.Is(err, table.ErrEmptyTable),
		errors.Is(err, table.ErrMalformed),
		errors.Is(err, table.ErrInvalidTarget),
		errors.Is(err, automl.ErrInsufficientRows),
		errors.Is(err, chart.ErrNoPoints):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoTable),
		errors.Is(err, insight.ErrInsightUnavailable),
		errors.Is(err, worker.ErrSessionCancelled):
		return http.StatusConflict
	case errors.Is(err, ocr.ErrUnavailable),
		errors.Is(err, worker.ErrManagerStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.As(err, &engineErr),
		errors.As(err, &providerErr),
		errors.Is(err, automl.ErrBadPredictions),
		errors.Is(err, recognition.ErrEngine),
		errors.Is(err, modeling.ErrEngine),
		errors.Is(err, worker.ErrTaskPanicked):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	} else if status >= http.StatusBadGateway {
		h.logger.Warn("upstream failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}
