package session

import (
	"context"

	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// Track is one hardware track of a camera stream
type Track interface {
	Kind() string
	Stop()
	Stopped() bool
}

// Stream is a live camera capture. Stop stops every track and is idempotent.
type Stream interface {
	ID() string
	Tracks() []Track
	Stop()
}

// Camera grants access to capture hardware
type Camera interface {
	RequestPermission(ctx context.Context) bool
	GetStream(ctx context.Context, facing models.CameraFacing) (Stream, error)
}

// PoseEngine loads the pose detection model
type PoseEngine interface {
	Initialize(ctx context.Context, modelName string) error
}

// EventSink receives session lifecycle events
type EventSink interface {
	Record(ctx context.Context, event *models.SessionEvent) error
}

// ViewInputs is what the comparison view renders
type ViewInputs struct {
	Stream                Stream
	IsTracking            bool
	ConfidenceThreshold   float64
	Media                 *models.SelectedMedia
	ShowUserSkeleton      bool
	ShowReferenceSkeleton bool
}
