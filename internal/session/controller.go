// Package session runs practice sessions: reference media selection, camera
// and pose model start-up, and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/internal/notes"
	"github.com/therealutkarshpriyadarshi/ark/internal/selector"
	"github.com/therealutkarshpriyadarshi/ark/internal/tracing"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

const eventTimeout = 5 * time.Second

// Config holds controller settings
type Config struct {
	ModelName        string
	CountdownSeconds int
}

// SelectorFactory builds a fresh selection flow reporting to listener
type SelectorFactory func(listener selector.Listener) *selector.Coordinator

// Controller is one practice session
type Controller struct {
	id          string
	camera      Camera
	pose        PoseEngine
	events      EventSink
	newSelector SelectorFactory
	cfg         Config
	logger      *logging.Logger

	mu           sync.Mutex
	mode         models.ViewMode
	media        *models.SelectedMedia
	stream       Stream
	facing       models.CameraFacing
	tracking     bool
	initializing bool
	closed       bool
	overlay      models.Overlay
	notes        string
	lastErr      error
	selector     *selector.Coordinator
	createdAt    time.Time
}

// NewController creates a controller in select mode. events and newSelector may be nil.
func NewController(id string, camera Camera, pose PoseEngine, events EventSink, newSelector SelectorFactory, cfg Config, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Controller{
		id:          id,
		camera:      camera,
		pose:        pose,
		events:      events,
		newSelector: newSelector,
		cfg:         cfg,
		logger:      logger.WithComponent("session").WithSessionID(id),
		mode:        models.ViewModeSelect,
		overlay:     models.DefaultOverlay(),
		createdAt:   time.Now(),
	}
}

// ID returns the session id
func (c *Controller) ID() string {
	return c.id
}

// Config returns the controller settings
func (c *Controller) Config() Config {
	return c.cfg
}

// SelectVideo stores video media, releasing any media it replaces
func (c *Controller) SelectVideo(m *models.SelectedMedia) error {
	return c.selectMedia(nil, m, models.MediaKindVideo)
}

// SelectImage stores image media, releasing any media it replaces
func (c *Controller) SelectImage(m *models.SelectedMedia) error {
	return c.selectMedia(nil, m, models.MediaKindImage)
}

// selectMedia stores m. A non-nil from must still be the open selection flow.
func (c *Controller) selectMedia(from *selector.Coordinator, m *models.SelectedMedia, kind models.MediaKind) error {
	if m == nil || m.Kind != kind {
		return ErrUnsupportedMedia
	}

	c.mu.Lock()
	if err := c.requireIdleSelectLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if from != nil && from != c.selector {
		c.mu.Unlock()
		return fmt.Errorf("%w: selection flow was replaced", ErrNoSelector)
	}
	previous := c.media
	c.media = m
	c.lastErr = nil
	c.mu.Unlock()

	if previous != nil && previous != m {
		c.release(previous)
	}

	evt := c.newEvent(models.EventMediaSelected)
	evt.MediaKind = string(m.Kind)
	if m.Routine != nil {
		evt.RoutineID = m.Routine.ID
	}
	c.emit(evt)
	return nil
}

// ClearSelection drops and releases the stored media
func (c *Controller) ClearSelection() error {
	c.mu.Lock()
	if err := c.requireIdleSelectLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	previous := c.media
	c.media = nil
	c.mu.Unlock()

	if previous == nil {
		return nil
	}
	c.release(previous)
	c.emit(c.newEvent(models.EventMediaCleared))
	return nil
}

// ImageSelected receives an uploaded image from the selection flow
func (c *Controller) ImageSelected(m *models.SelectedMedia) error {
	return c.SelectImage(m)
}

// VideoSelected receives a video from the selection flow
func (c *Controller) VideoSelected(m *models.SelectedMedia) error {
	return c.SelectVideo(m)
}

// Cancelled is called when the user abandons the selection flow
func (c *Controller) Cancelled() {
	c.logger.Debug("Selection cancelled")
}

// OpenSelector starts a fresh selection flow on the main view. Any flow
// still open is retired and can no longer change the selection.
func (c *Controller) OpenSelector() (*selector.Coordinator, error) {
	if c.newSelector == nil {
		return nil, fmt.Errorf("selection flow not configured")
	}

	c.mu.Lock()
	if err := c.requireIdleSelectLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	previous := c.selector
	l := &flowListener{c: c}
	l.coord = c.newSelector(l)
	c.selector = l.coord
	c.mu.Unlock()

	if previous != nil {
		previous.Retire()
	}
	return l.coord, nil
}

// flowListener binds selection results to the flow that produced them
type flowListener struct {
	c     *Controller
	coord *selector.Coordinator
}

func (l *flowListener) ImageSelected(m *models.SelectedMedia) error {
	return l.c.selectMedia(l.coord, m, models.MediaKindImage)
}

func (l *flowListener) VideoSelected(m *models.SelectedMedia) error {
	return l.c.selectMedia(l.coord, m, models.MediaKindVideo)
}

func (l *flowListener) Cancelled() {
	l.c.Cancelled()
}

// Selector returns the open selection flow
func (c *Controller) Selector() (*selector.Coordinator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.selector == nil || c.selector.Done() {
		return nil, ErrNoSelector
	}
	return c.selector, nil
}

// StartComparison requests the camera, loads the pose model and switches to
// comparison mode. A call while a start is already running does nothing.
func (c *Controller) StartComparison(ctx context.Context) error {
	c.mu.Lock()
	if err := c.requireSelectLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.initializing {
		c.mu.Unlock()
		c.logger.Debug("Start already in progress")
		return nil
	}
	if c.media == nil {
		c.mu.Unlock()
		return ErrNoMedia
	}
	if !c.media.Playable() {
		c.mu.Unlock()
		return ErrUnplayableMedia
	}
	c.initializing = true
	c.lastErr = nil
	c.mu.Unlock()

	span, ctx := tracing.StartSpan(ctx, "session.start_comparison")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "session_id", c.id)

	start := time.Now()
	stream, err := c.acquire(ctx)

	c.mu.Lock()
	c.initializing = false
	if err == nil && c.closed {
		err = ErrClosed
	}
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()

		if stream != nil {
			stream.Stop()
		}
		tracing.LogError(span, err)
		metrics.RecordComparisonStart("failed")
		c.logger.WarnWithErr("Comparison start failed", err)

		evt := c.newEvent(models.EventComparisonFailed)
		evt.Error = err.Error()
		c.emit(evt)
		return err
	}
	c.stream = stream
	c.facing = models.FacingUser
	c.mode = models.ViewModeComparison
	c.tracking = true
	c.mu.Unlock()

	metrics.RecordComparisonStart("success")
	c.logger.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Comparison started")

	evt := c.newEvent(models.EventComparisonStarted)
	evt.Tracking = true
	c.emit(evt)
	return nil
}

// stage is one step of the start pipeline. undo compensates a completed run.
type stage struct {
	name string
	run  func(ctx context.Context) error
	undo func()
}

// acquire runs the start stages in order. When a stage fails, the completed
// stages are undone in reverse before the error is returned.
func (c *Controller) acquire(ctx context.Context) (Stream, error) {
	var stream Stream

	stages := []stage{
		{
			name: "permission",
			run: func(ctx context.Context) error {
				if !c.camera.RequestPermission(ctx) {
					return &CameraError{Reason: CameraPermissionDenied}
				}
				return nil
			},
		},
		{
			name: "stream",
			run: func(ctx context.Context) error {
				s, err := c.camera.GetStream(ctx, models.FacingUser)
				if err != nil {
					return &CameraError{Reason: CameraStreamFailed, Err: err}
				}
				stream = s
				return nil
			},
			undo: func() {
				stream.Stop()
				stream = nil
			},
		},
		{
			name: "model",
			run: func(ctx context.Context) error {
				if err := c.pose.Initialize(ctx, c.cfg.ModelName); err != nil {
					return &ModelInitError{Model: c.cfg.ModelName, Err: err}
				}
				return nil
			},
		},
	}

	for i, s := range stages {
		err := c.runStage(ctx, s)
		if err == nil && c.isClosed() {
			err = ErrClosed
			i++
		}
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				if stages[j].undo != nil {
					stages[j].undo()
				}
			}
			return nil, err
		}
	}
	return stream, nil
}

func (c *Controller) runStage(ctx context.Context, s stage) error {
	span, stageCtx := tracing.StartSpan(ctx, "session.stage."+s.name)
	defer tracing.FinishSpan(span)

	if err := ctx.Err(); err != nil {
		tracing.LogError(span, err)
		return err
	}

	start := time.Now()
	err := s.run(stageCtx)
	duration := time.Since(start)

	metrics.RecordStage(s.name, duration.Seconds())
	c.logger.LogStage(c.id, s.name, duration, err)
	if err != nil {
		tracing.LogError(span, err)
	}
	return err
}

// StopAndReturnToSelect stops the camera and returns to select mode.
// It does nothing when no stream is held.
func (c *Controller) StopAndReturnToSelect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	stream := c.detachStreamLocked()
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	c.logger.Info("Comparison stopped")
	c.emit(c.newEvent(models.EventComparisonStopped))
	return nil
}

// detachStreamLocked stops the held stream before leaving comparison mode
func (c *Controller) detachStreamLocked() Stream {
	stream := c.stream
	if stream != nil {
		stream.Stop()
	}
	c.stream = nil
	c.tracking = false
	c.mode = models.ViewModeSelect
	return stream
}

// ToggleTracking pauses or resumes pose comparison with the camera kept open
func (c *Controller) ToggleTracking() (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.mode != models.ViewModeComparison {
		c.mu.Unlock()
		return false, ErrWrongMode
	}
	c.tracking = !c.tracking
	tracking := c.tracking
	c.mu.Unlock()

	evt := c.newEvent(models.EventTrackingToggled)
	evt.Tracking = tracking
	c.emit(evt)
	return tracking, nil
}

// SetOverlay replaces the comparison view toggles
func (c *Controller) SetOverlay(o models.Overlay) error {
	_, err := c.UpdateOverlay(func(current *models.Overlay) { *current = o })
	return err
}

// UpdateOverlay applies edit to the current overlay settings atomically and
// returns the result
func (c *Controller) UpdateOverlay(edit func(*models.Overlay)) (models.Overlay, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Overlay{}, ErrClosed
	}
	o := c.overlay
	edit(&o)
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		c.mu.Unlock()
		return models.Overlay{}, ErrInvalidOverlay
	}
	c.overlay = o
	c.mu.Unlock()

	evt := c.newEvent(models.EventOverlayUpdated)
	evt.Overlay = &o
	c.emit(evt)
	return o, nil
}

// SetNotes replaces the routine notes
func (c *Controller) SetNotes(text string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.notes = text
	c.mu.Unlock()

	evt := c.newEvent(models.EventNotesUpdated)
	evt.Notes = text
	c.emit(evt)
	return nil
}

// ApplyNoteFormat formats a selection of the notes and returns the new text
func (c *Controller) ApplyNoteFormat(start, end int, format notes.Format) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	text, err := notes.ApplyFormat(c.notes, start, end, format)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.notes = text
	c.mu.Unlock()

	evt := c.newEvent(models.EventNotesUpdated)
	evt.Notes = text
	c.emit(evt)
	return text, nil
}

// ViewInputs returns what the comparison view needs to render
func (c *Controller) ViewInputs() (*ViewInputs, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.mode != models.ViewModeComparison {
		return nil, ErrWrongMode
	}
	return &ViewInputs{
		Stream:                c.stream,
		IsTracking:            c.tracking,
		ConfidenceThreshold:   c.overlay.ConfidenceThreshold,
		Media:                 c.media,
		ShowUserSkeleton:      c.overlay.ShowUserSkeleton,
		ShowReferenceSkeleton: c.overlay.ShowReferenceSkeleton,
	}, nil
}

// State returns a snapshot of the session
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := models.SessionState{
		ID:             c.id,
		ViewMode:       c.mode,
		SelectedMedia:  c.media,
		IsTracking:     c.tracking,
		IsInitializing: c.initializing,
		Overlay:        c.overlay,
		Notes:          c.notes,
		CreatedAt:      c.createdAt,
	}
	if c.stream != nil {
		state.CameraStream = &models.StreamInfo{
			ID:     c.stream.ID(),
			Facing: c.facing,
			Tracks: len(c.stream.Tracks()),
		}
	}
	if c.lastErr != nil {
		state.LastError = c.lastErr.Error()
	}
	return state
}

// LastError returns the error from the most recent failed start
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close stops any held stream and releases the selected media. A start
// still running when Close is called releases its stream instead of
// committing it.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.detachStreamLocked()
	m := c.media
	c.media = nil
	flow := c.selector
	c.selector = nil
	c.mu.Unlock()

	if flow != nil {
		flow.Retire()
	}
	if m != nil {
		c.release(m)
	}
	c.logger.Info("Session closed")
	c.emit(c.newEvent(models.EventSessionClosed))
	return nil
}

// Closed reports whether Close has been called
func (c *Controller) Closed() bool {
	return c.isClosed()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) requireSelectLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.mode != models.ViewModeSelect {
		return ErrWrongMode
	}
	return nil
}

// requireIdleSelectLocked also refuses while a start is running
func (c *Controller) requireIdleSelectLocked() error {
	if err := c.requireSelectLocked(); err != nil {
		return err
	}
	if c.initializing {
		return ErrBusy
	}
	return nil
}

func (c *Controller) release(m *models.SelectedMedia) {
	if err := m.Release(); err != nil {
		c.logger.WarnWithErr("Failed to release media", err)
	}
}

func (c *Controller) newEvent(eventType string) *models.SessionEvent {
	return &models.SessionEvent{
		ID:         uuid.New().String(),
		SessionID:  c.id,
		Type:       eventType,
		OccurredAt: time.Now(),
	}
}

func (c *Controller) emit(evt *models.SessionEvent) {
	c.logger.LogSessionEvent(c.id, evt.Type, map[string]interface{}{
		"routine_id": evt.RoutineID,
		"media_kind": evt.MediaKind,
	})
	if c.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if err := c.events.Record(ctx, evt); err != nil {
		c.logger.WarnWithErr("Failed to record session event", err)
	}
}

var _ selector.Listener = (*Controller)(nil)

// IsUserError reports whether err should be shown to the user as a recoverable failure
func IsUserError(err error) bool {
	var camErr *CameraError
	var modelErr *ModelInitError
	return errors.As(err, &camErr) || errors.As(err, &modelErr)
}
