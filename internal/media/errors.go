package media

import (
	"errors"

	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// User-facing messages
const (
	MsgUnsupportedType = "Please upload an image (JPG, PNG, WEBP) or video (MP4, WEBM)."
	MsgImageLoadFailed = "Failed to load image. Please try another file."
	MsgVideoLoadFailed = "Failed to load video. Please try another file."
	MsgFileTooLarge    = "File is too large. Please choose a smaller file."
)

// ErrSuperseded is returned by a load that a newer load replaced
var ErrSuperseded = errors.New("upload superseded by a newer file")

// UnsupportedTypeError reports a MIME type outside both allow-lists
type UnsupportedTypeError struct {
	ContentType string
}

func (e *UnsupportedTypeError) Error() string {
	return MsgUnsupportedType
}

// LoadError reports an accepted file that failed to decode or load
type LoadError struct {
	Kind    models.MediaKind
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(kind models.MediaKind, err error) *LoadError {
	msg := MsgVideoLoadFailed
	if kind == models.MediaKindImage {
		msg = MsgImageLoadFailed
	}
	return &LoadError{Kind: kind, Message: msg, Err: err}
}
