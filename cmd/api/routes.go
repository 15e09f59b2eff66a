package main

import (
	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ark/internal/middleware"
)

func setupRouter(api *API, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(api.logger))
	if limiter != nil {
		router.Use(middleware.RateLimit(limiter))
	}

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	{
		// Routine library
		v1.GET("/routines", api.listRoutines)
		v1.GET("/routines/:id", api.getRoutine)
		v1.GET("/styles", api.listStyles)

		// Blob URLs
		v1.GET("/blobs/:id", api.getBlob)

		// Sessions
		v1.POST("/sessions", api.createSession)
		v1.GET("/sessions/:id", api.getSession)
		v1.DELETE("/sessions/:id", api.closeSession)

		sessions := v1.Group("/sessions/:id")
		{
			// Selection flow
			sessions.POST("/selector", api.openSelector)
			sessions.GET("/selector", api.getSelector)
			sessions.PUT("/selector/view", api.setSelectorView)
			sessions.GET("/selector/routines", api.selectorRoutines)
			sessions.POST("/selector/routines/:routineId", api.selectRoutine)
			sessions.GET("/selector/upload", api.uploadStatus)
			sessions.PUT("/selector/dragging", api.setDragging)
			sessions.POST("/selector/upload", api.uploadMedia)
			sessions.DELETE("/selector", api.cancelSelector)

			// Practice
			sessions.DELETE("/selection", api.clearSelection)
			sessions.POST("/start", api.startComparison)
			sessions.POST("/stop", api.stopComparison)
			sessions.POST("/tracking/toggle", api.toggleTracking)
			sessions.GET("/view", api.getViewInputs)
			sessions.PATCH("/overlay", api.updateOverlay)
			sessions.PUT("/notes", api.updateNotes)
			sessions.POST("/notes/format", api.formatNotes)
			sessions.GET("/countdown", api.countdown)
		}

		// Session history, only with a database
		if api.history != nil {
			v1.GET("/history", api.listHistory)
			v1.GET("/history/:id", api.getHistory)
			v1.GET("/history/:id/events", api.getHistoryEvents)
		}
	}

	return router
}
