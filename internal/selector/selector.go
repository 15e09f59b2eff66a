// Package selector coordinates the reference media selection views.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/therealutkarshpriyadarshi/ark/internal/catalog"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/media"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// ErrInvalidTransition is returned for an action the current view does not offer
var ErrInvalidTransition = errors.New("invalid selector transition")

// View is the visible selector screen
type View string

// View constants
const (
	ViewMain      View = "main"
	ViewPreloaded View = "preloaded"
	ViewUpload    View = "upload"
)

// Listener receives the outcome of the selection flow. A nil error
// transfers ownership of the media to the listener.
type Listener interface {
	ImageSelected(m *models.SelectedMedia) error
	VideoSelected(m *models.SelectedMedia) error
	Cancelled()
}

// RoutinePicker browses and loads catalog routines
type RoutinePicker interface {
	SetStyle(style models.DanceStyle) error
	ActiveStyle() models.DanceStyle
	Tiles() []catalog.Tile
	Select(ctx context.Context, routineID string) (*catalog.Selection, error)
}

// MediaLoader loads an uploaded file
type MediaLoader interface {
	Load(ctx context.Context, f media.File) (*models.SelectedMedia, error)
	Status() media.Status
	SetDragging(dragging bool)
	Abort()
}

// Library is what the preloaded view shows
type Library struct {
	ActiveStyle models.DanceStyle `json:"active_style"`
	Tiles       []catalog.Tile    `json:"tiles"`
}

// Coordinator drives the main, preloaded and upload views
type Coordinator struct {
	picker   RoutinePicker
	loader   MediaLoader
	listener Listener
	logger   *logging.Logger

	mu   sync.Mutex
	view View
	done bool
}

// New creates a coordinator on the main view
func New(picker RoutinePicker, loader MediaLoader, listener Listener, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		picker:   picker,
		loader:   loader,
		listener: listener,
		logger:   logger.WithComponent("selector"),
		view:     ViewMain,
	}
}

// View returns the current view
func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Done reports whether the flow has finished
func (c *Coordinator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// ChoosePreloaded opens the routine library
func (c *Coordinator) ChoosePreloaded() error {
	return c.transition(ViewMain, ViewPreloaded)
}

// ChooseUpload opens the upload view
func (c *Coordinator) ChooseUpload() error {
	return c.transition(ViewMain, ViewUpload)
}

// Back returns from a sub-view to the main view
func (c *Coordinator) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done || c.view == ViewMain {
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, c.view)
	}
	c.view = ViewMain
	return nil
}

// Cancel abandons the whole flow from the main view. Sub-views go Back first.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	if c.done || c.view != ViewMain {
		current := c.view
		c.mu.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, current)
	}
	c.done = true
	c.mu.Unlock()

	c.listener.Cancelled()
	return nil
}

// Retire ends the flow without notifying the listener and aborts any upload
// still loading. Results that arrive afterwards are released, not forwarded.
func (c *Coordinator) Retire() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()

	if c.loader != nil {
		c.loader.Abort()
	}
}

// Library returns the style tiles of the preloaded view
func (c *Coordinator) Library() (*Library, error) {
	if err := c.require(ViewPreloaded); err != nil {
		return nil, err
	}
	return &Library{ActiveStyle: c.picker.ActiveStyle(), Tiles: c.picker.Tiles()}, nil
}

// SetStyle switches the preloaded view's style filter
func (c *Coordinator) SetStyle(style models.DanceStyle) error {
	if err := c.require(ViewPreloaded); err != nil {
		return err
	}
	return c.picker.SetStyle(style)
}

// UploadStatus reports the upload view's load state
func (c *Coordinator) UploadStatus() (media.Status, error) {
	if err := c.require(ViewUpload); err != nil {
		return media.Status{}, err
	}
	return c.loader.Status(), nil
}

// SetDragging marks a file as hovering over the drop zone
func (c *Coordinator) SetDragging(dragging bool) error {
	if err := c.require(ViewUpload); err != nil {
		return err
	}
	c.loader.SetDragging(dragging)
	return nil
}

// SelectRoutine loads a routine and forwards it to the listener. A routine
// whose video failed to load is still forwarded, with a nil video.
func (c *Coordinator) SelectRoutine(ctx context.Context, routineID string) (*catalog.Selection, error) {
	if err := c.require(ViewPreloaded); err != nil {
		return nil, err
	}

	sel, err := c.picker.Select(ctx, routineID)
	if err != nil {
		return nil, err
	}

	if err := c.finish(ViewPreloaded, sel.Media()); err != nil {
		return nil, err
	}
	return sel, nil
}

// Upload loads a file and forwards it to the listener
func (c *Coordinator) Upload(ctx context.Context, f media.File) (*models.SelectedMedia, error) {
	if err := c.require(ViewUpload); err != nil {
		return nil, err
	}

	m, err := c.loader.Load(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := c.finish(ViewUpload, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Coordinator) transition(from, to View) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done || c.view != from {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.view, to)
	}
	c.view = to
	return nil
}

func (c *Coordinator) require(view View) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done || c.view != view {
		return fmt.Errorf("%w: expected %s view, on %s", ErrInvalidTransition, view, c.view)
	}
	return nil
}

// finish hands m to the listener if the flow is still on view
func (c *Coordinator) finish(view View, m *models.SelectedMedia) error {
	c.mu.Lock()
	if c.done || c.view != view {
		current := c.view
		c.mu.Unlock()
		c.discard(m)
		return fmt.Errorf("%w: view changed to %s while loading", ErrInvalidTransition, current)
	}
	c.done = true
	c.mu.Unlock()

	var err error
	if m.Kind == models.MediaKindImage {
		err = c.listener.ImageSelected(m)
	} else {
		err = c.listener.VideoSelected(m)
	}

	if err != nil {
		c.discard(m)
		c.mu.Lock()
		c.done = false
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Coordinator) discard(m *models.SelectedMedia) {
	if err := m.Release(); err != nil {
		c.logger.WarnWithErr("Failed to release discarded media", err)
	}
}
