package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ViewMode is the practice session screen
type ViewMode string

// ViewMode constants
const (
	ViewModeSelect     ViewMode = "select"
	ViewModeComparison ViewMode = "comparison"
)

// CameraFacing selects the front or rear camera
type CameraFacing string

// CameraFacing constants
const (
	FacingUser        CameraFacing = "user"
	FacingEnvironment CameraFacing = "environment"
)

// Overlay holds the comparison view toggles
type Overlay struct {
	ShowUserSkeleton      bool    `json:"show_user_skeleton"`
	ShowReferenceSkeleton bool    `json:"show_reference_skeleton"`
	ConfidenceThreshold   float64 `json:"confidence_threshold"`
}

// DefaultOverlay returns the toggles a new session starts with
func DefaultOverlay() Overlay {
	return Overlay{
		ShowUserSkeleton:      true,
		ShowReferenceSkeleton: true,
		ConfidenceThreshold:   0.3,
	}
}

// Value implements driver.Valuer for database storage
func (o Overlay) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner for database retrieval
func (o *Overlay) Scan(value interface{}) error {
	if value == nil {
		*o = DefaultOverlay()
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// StreamInfo is the externally visible part of a held camera stream
type StreamInfo struct {
	ID     string       `json:"id"`
	Facing CameraFacing `json:"facing"`
	Tracks int          `json:"tracks"`
}

// SessionState is a snapshot of a practice session
type SessionState struct {
	ID             string         `json:"id"`
	ViewMode       ViewMode       `json:"view_mode"`
	SelectedMedia  *SelectedMedia `json:"selected_media,omitempty"`
	CameraStream   *StreamInfo    `json:"camera_stream,omitempty"`
	IsTracking     bool           `json:"is_tracking"`
	IsInitializing bool           `json:"is_initializing"`
	Overlay        Overlay        `json:"overlay"`
	Notes          string         `json:"notes"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// PracticeSession is the persisted record of a session
type PracticeSession struct {
	ID        string     `json:"id" db:"id"`
	RoutineID string     `json:"routine_id,omitempty" db:"routine_id"`
	MediaKind string     `json:"media_kind,omitempty" db:"media_kind"`
	Notes     string     `json:"notes" db:"notes"`
	Overlay   Overlay    `json:"overlay" db:"overlay"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}
