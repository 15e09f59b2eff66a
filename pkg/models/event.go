package models

import "time"

// SessionEvent types
const (
	EventSessionCreated    = "session.created"
	EventMediaSelected     = "media.selected"
	EventMediaCleared      = "media.cleared"
	EventComparisonStarted = "comparison.started"
	EventComparisonFailed  = "comparison.failed"
	EventComparisonStopped = "comparison.stopped"
	EventTrackingToggled   = "tracking.toggled"
	EventNotesUpdated      = "notes.updated"
	EventOverlayUpdated    = "overlay.updated"
	EventSessionClosed     = "session.closed"
)

// SessionEvent records a practice session transition
type SessionEvent struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	Type       string    `json:"type" db:"type"`
	RoutineID  string    `json:"routine_id,omitempty" db:"routine_id"`
	MediaKind  string    `json:"media_kind,omitempty" db:"media_kind"`
	Tracking   bool      `json:"tracking" db:"tracking"`
	Error      string    `json:"error,omitempty" db:"error"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	Overlay    *Overlay  `json:"overlay,omitempty" db:"overlay"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}
