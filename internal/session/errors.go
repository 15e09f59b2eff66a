package session

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrWrongMode        = errors.New("operation not available in the current view")
	ErrNoMedia          = errors.New("select reference media first")
	ErrClosed           = errors.New("session closed")
	ErrBusy             = errors.New("comparison is starting")
	ErrNotFound         = errors.New("session not found")
	ErrTooManySessions  = errors.New("too many active sessions")
	ErrNoSelector       = errors.New("no selection in progress")
	ErrInvalidOverlay   = errors.New("confidence threshold must be between 0 and 1")
	ErrUnsupportedMedia = errors.New("media kind does not match the selection")
	ErrUnplayableMedia  = errors.New("the selected reference video could not be loaded")
)

// CameraReason says which camera step failed
type CameraReason string

// CameraReason constants
const (
	CameraPermissionDenied CameraReason = "permission_denied"
	CameraStreamFailed     CameraReason = "stream_failed"
)

// CameraError reports a denied permission or a failed stream acquisition.
// The user may retry.
type CameraError struct {
	Reason CameraReason
	Err    error
}

func (e *CameraError) Error() string {
	if e.Reason == CameraPermissionDenied {
		return "Camera access was denied. Please allow camera access and try again."
	}
	if e.Err != nil {
		return fmt.Sprintf("Could not start the camera: %v", e.Err)
	}
	return "Could not start the camera."
}

func (e *CameraError) Unwrap() error {
	return e.Err
}

// ModelInitError reports a pose model that failed to load. The user may retry.
type ModelInitError struct {
	Model string
	Err   error
}

func (e *ModelInitError) Error() string {
	return fmt.Sprintf("Could not load pose model %s: %v", e.Model, e.Err)
}

func (e *ModelInitError) Unwrap() error {
	return e.Err
}
