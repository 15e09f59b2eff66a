package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ark/internal/blob"
	"github.com/therealutkarshpriyadarshi/ark/internal/catalog"
	"github.com/therealutkarshpriyadarshi/ark/internal/database"
	"github.com/therealutkarshpriyadarshi/ark/internal/media"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/internal/notes"
	"github.com/therealutkarshpriyadarshi/ark/internal/selector"
	"github.com/therealutkarshpriyadarshi/ark/internal/session"
)

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var unsupported *media.UnsupportedTypeError
	var loadErr *media.LoadError
	var camErr *session.CameraError
	var modelErr *session.ModelInitError

	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, catalog.ErrRoutineNotFound),
		errors.Is(err, blob.ErrNotFound),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &unsupported), errors.Is(err, session.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, selector.ErrInvalidTransition),
		errors.Is(err, session.ErrWrongMode),
		errors.Is(err, session.ErrNoMedia),
		errors.Is(err, session.ErrUnplayableMedia),
		errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNoSelector),
		errors.Is(err, media.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidOverlay),
		errors.Is(err, notes.ErrUnknownFormat),
		errors.Is(err, catalog.ErrUnknownStyle):
		return http.StatusBadRequest
	case errors.As(err, &camErr), errors.As(err, &modelErr), errors.Is(err, session.ErrTooManySessions):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": message} with the mapped status
func (api *API) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		api.logger.WithContext(c.Request.Context()).ErrorWithErr("Request failed", err)
		metrics.RecordError("api", "internal")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
