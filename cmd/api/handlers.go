package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ark/internal/blob"
	"github.com/therealutkarshpriyadarshi/ark/internal/catalog"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/session"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// HistoryStore reads persisted practice sessions
type HistoryStore interface {
	ListPracticeSessions(ctx context.Context, limit, offset int) ([]*models.PracticeSession, error)
	GetPracticeSession(ctx context.Context, id string) (*models.PracticeSession, error)
	ListEvents(ctx context.Context, sessionID string) ([]*models.SessionEvent, error)
}

// API holds the handler dependencies
type API struct {
	catalog  *catalog.Catalog
	blobs    *blob.Registry
	sessions *session.Manager
	history  HistoryStore
	checks   map[string]func(context.Context) error
	logger   *logging.Logger
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true
	for name, check := range api.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			healthy = false
			continue
		}
		components[name] = "ok"
	}

	body := gin.H{
		"status":     "healthy",
		"sessions":   api.sessions.Len(),
		"blobs_live": api.blobs.Live(),
		"components": components,
	}
	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}

// List routines, optionally filtered by style
func (api *API) listRoutines(c *gin.Context) {
	style := models.DanceStyle(c.Query("style"))
	if style == "" {
		c.JSON(http.StatusOK, gin.H{"routines": api.catalog.All()})
		return
	}
	if !style.IsValid() {
		api.respondError(c, fmt.Errorf("%w %q", catalog.ErrUnknownStyle, style))
		return
	}

	routines := api.catalog.ByStyle(style)
	if routines == nil {
		routines = []models.Routine{}
	}
	c.JSON(http.StatusOK, gin.H{"style": style, "routines": routines})
}

// Get routine endpoint
func (api *API) getRoutine(c *gin.Context) {
	routine, err := api.catalog.ByID(c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, routine)
}

// List styles with their routine counts
func (api *API) listStyles(c *gin.Context) {
	groups := api.catalog.GroupByStyle()

	styles := make([]gin.H, 0, len(models.DanceStyles))
	for _, style := range api.catalog.Styles() {
		styles = append(styles, gin.H{
			"style": style,
			"label": style.Label(),
			"count": len(groups[style]),
		})
	}

	c.JSON(http.StatusOK, gin.H{"styles": styles})
}

// Stream the content behind a blob URL
func (api *API) getBlob(c *gin.Context) {
	body, handle, err := api.blobs.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}
	defer body.Close()

	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, handle.Size(), handle.ContentType(), body, nil)
}

// List persisted sessions
func (api *API) listHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	sessions, err := api.history.ListPracticeSessions(c.Request.Context(), limit, offset)
	if err != nil {
		api.respondError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*models.PracticeSession{}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

// Get a persisted session
func (api *API) getHistory(c *gin.Context) {
	s, err := api.history.GetPracticeSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

// Get a persisted session's events
func (api *API) getHistoryEvents(c *gin.Context) {
	events, err := api.history.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return
	}
	if events == nil {
		events = []*models.SessionEvent{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
