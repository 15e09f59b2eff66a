package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ark/internal/countdown"
	"github.com/therealutkarshpriyadarshi/ark/internal/media"
	"github.com/therealutkarshpriyadarshi/ark/internal/notes"
	"github.com/therealutkarshpriyadarshi/ark/internal/selector"
	"github.com/therealutkarshpriyadarshi/ark/internal/session"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

func (api *API) controller(c *gin.Context) (*session.Controller, bool) {
	ctrl, err := api.sessions.Get(c.Param("id"))
	if err != nil {
		api.respondError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (api *API) coordinator(c *gin.Context) (*session.Controller, *selector.Coordinator, bool) {
	ctrl, ok := api.controller(c)
	if !ok {
		return nil, nil, false
	}
	coord, err := ctrl.Selector()
	if err != nil {
		api.respondError(c, err)
		return nil, nil, false
	}
	return ctrl, coord, true
}

func selectorState(coord *selector.Coordinator) gin.H {
	return gin.H{"view": coord.View(), "done": coord.Done()}
}

// Create session endpoint
func (api *API) createSession(c *gin.Context) {
	ctrl, err := api.sessions.Create()
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ctrl.State())
}

// Get session endpoint
func (api *API) getSession(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, ctrl.State())
}

// Close session endpoint, releasing its camera and media
func (api *API) closeSession(c *gin.Context) {
	if err := api.sessions.Close(c.Param("id")); err != nil {
		api.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Open a new selection flow on the main view
func (api *API) openSelector(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	coord, err := ctrl.OpenSelector()
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, selectorState(coord))
}

// Get the selection flow's view
func (api *API) getSelector(c *gin.Context) {
	_, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, selectorState(coord))
}

// Switch between the main, preloaded and upload views
func (api *API) setSelectorView(c *gin.Context) {
	_, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	var req struct {
		View selector.View `json:"view" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	switch req.View {
	case selector.ViewPreloaded:
		err = coord.ChoosePreloaded()
	case selector.ViewUpload:
		err = coord.ChooseUpload()
	case selector.ViewMain:
		err = coord.Back()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "view must be main, preloaded or upload"})
		return
	}
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, selectorState(coord))
}

// List the preloaded view's tiles, switching style when asked
func (api *API) selectorRoutines(c *gin.Context) {
	_, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	if style := c.Query("style"); style != "" {
		if err := coord.SetStyle(models.DanceStyle(style)); err != nil {
			api.respondError(c, err)
			return
		}
	}

	lib, err := coord.Library()
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lib)
}

// Choose a routine from the library
func (api *API) selectRoutine(c *gin.Context) {
	ctrl, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	sel, err := coord.SelectRoutine(c.Request.Context(), c.Param("routineId"))
	if err != nil {
		api.respondError(c, err)
		return
	}

	body := gin.H{"session": ctrl.State()}
	if sel.Err != nil {
		body["warning"] = sel.Err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// Report the upload view's state
func (api *API) uploadStatus(c *gin.Context) {
	_, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	status, err := coord.UploadStatus()
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Mark a file as dragged over the drop zone
func (api *API) setDragging(c *gin.Context) {
	_, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	var req struct {
		Dragging bool `json:"dragging"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := coord.SetDragging(req.Dragging); err != nil {
		api.respondError(c, err)
		return
	}

	status, _ := coord.UploadStatus()
	c.JSON(http.StatusOK, status)
}

// Upload reference media
func (api *API) uploadMedia(c *gin.Context) {
	ctrl, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer f.Close()

	_, err = coord.Upload(c.Request.Context(), media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Reader:      f,
	})
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.State())
}

// Abandon the selection flow
func (api *API) cancelSelector(c *gin.Context) {
	_, coord, ok := api.coordinator(c)
	if !ok {
		return
	}

	if err := coord.Cancel(); err != nil {
		api.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Clear the selected media
func (api *API) clearSelection(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	if err := ctrl.ClearSelection(); err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.State())
}

// Start comparison endpoint
func (api *API) startComparison(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	if err := ctrl.StartComparison(c.Request.Context()); err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.State())
}

// Stop comparison endpoint
func (api *API) stopComparison(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	if err := ctrl.StopAndReturnToSelect(); err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.State())
}

// Toggle pose tracking
func (api *API) toggleTracking(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	tracking, err := ctrl.ToggleTracking()
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_tracking": tracking})
}

// Get what the comparison view renders
func (api *API) getViewInputs(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	in, err := ctrl.ViewInputs()
	if err != nil {
		api.respondError(c, err)
		return
	}

	tracks := make([]gin.H, 0, len(in.Stream.Tracks()))
	for _, t := range in.Stream.Tracks() {
		tracks = append(tracks, gin.H{"kind": t.Kind(), "stopped": t.Stopped()})
	}

	c.JSON(http.StatusOK, gin.H{
		"stream":                  gin.H{"id": in.Stream.ID(), "tracks": tracks},
		"is_tracking":             in.IsTracking,
		"confidence_threshold":    in.ConfidenceThreshold,
		"media":                   in.Media,
		"show_user_skeleton":      in.ShowUserSkeleton,
		"show_reference_skeleton": in.ShowReferenceSkeleton,
	})
}

// Update the overlay toggles; omitted fields keep their value
func (api *API) updateOverlay(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	var req struct {
		ShowUserSkeleton      *bool    `json:"show_user_skeleton"`
		ShowReferenceSkeleton *bool    `json:"show_reference_skeleton"`
		ConfidenceThreshold   *float64 `json:"confidence_threshold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	overlay, err := ctrl.UpdateOverlay(func(o *models.Overlay) {
		if req.ShowUserSkeleton != nil {
			o.ShowUserSkeleton = *req.ShowUserSkeleton
		}
		if req.ShowReferenceSkeleton != nil {
			o.ShowReferenceSkeleton = *req.ShowReferenceSkeleton
		}
		if req.ConfidenceThreshold != nil {
			o.ConfidenceThreshold = *req.ConfidenceThreshold
		}
	})
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, overlay)
}

// Replace the routine notes
func (api *API) updateNotes(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctrl.SetNotes(req.Notes); err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notes": req.Notes})
}

// Apply a toolbar format to a selection of the notes
func (api *API) formatNotes(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	var req struct {
		Start  int          `json:"start"`
		End    int          `json:"end"`
		Format notes.Format `json:"format" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, err := ctrl.ApplyNoteFormat(req.Start, req.End, req.Format)
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notes": text})
}

// Stream the pre-practice countdown as server-sent events
func (api *API) countdown(c *gin.Context) {
	ctrl, ok := api.controller(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	err := countdown.Run(c.Request.Context(), ctrl.Config().CountdownSeconds, func(remaining int) {
		label := strconv.Itoa(remaining)
		if remaining == 0 {
			label = "GO!"
		}
		c.SSEvent("countdown", gin.H{"remaining": remaining, "label": label})
		c.Writer.Flush()
	})
	if err != nil {
		api.logger.WithSessionID(ctrl.ID()).Debugf("Countdown interrupted: %v", err)
	}
}
