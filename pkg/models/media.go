package models

import "sync"

// MediaKind discriminates SelectedMedia
type MediaKind string

// MediaKind constants
const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// ImageInfo describes a decoded reference image
type ImageInfo struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
}

// VideoInfo describes a reference video whose metadata has loaded
type VideoInfo struct {
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Codec       string  `json:"codec"`
	FrameRate   float64 `json:"frame_rate"`
	ContentType string  `json:"content_type,omitempty"`
	Muted       bool    `json:"muted"`
	PlaysInline bool    `json:"plays_inline"`
	CrossOrigin string  `json:"cross_origin,omitempty"`
}

// Releaser frees the resource behind a media source URL
type Releaser interface {
	Release() error
}

// SelectedMedia is reference media handed from the selection flow to a session.
// Exactly one of Image or Video is set for uploads; catalog selections may carry
// a nil Video when the routine could not be loaded.
type SelectedMedia struct {
	Kind      MediaKind  `json:"kind"`
	Image     *ImageInfo `json:"image,omitempty"`
	Video     *VideoInfo `json:"video,omitempty"`
	SourceURL string     `json:"source_url"`
	Routine   *Routine   `json:"routine,omitempty"`

	releaser Releaser
	once     sync.Once
	err      error
}

// NewImageMedia builds image media owning the given releaser
func NewImageMedia(info *ImageInfo, sourceURL string, releaser Releaser) *SelectedMedia {
	return &SelectedMedia{
		Kind:      MediaKindImage,
		Image:     info,
		SourceURL: sourceURL,
		releaser:  releaser,
	}
}

// NewVideoMedia builds video media. routine is nil for uploads.
func NewVideoMedia(info *VideoInfo, sourceURL string, routine *Routine, releaser Releaser) *SelectedMedia {
	return &SelectedMedia{
		Kind:      MediaKindVideo,
		Video:     info,
		SourceURL: sourceURL,
		Routine:   routine,
		releaser:  releaser,
	}
}

// Playable reports whether the media has a loaded element
func (m *SelectedMedia) Playable() bool {
	switch m.Kind {
	case MediaKindImage:
		return m.Image != nil
	case MediaKindVideo:
		return m.Video != nil
	}
	return false
}

// Release frees the source URL. Safe to call more than once.
func (m *SelectedMedia) Release() error {
	if m == nil {
		return nil
	}
	m.once.Do(func() {
		if m.releaser != nil {
			m.err = m.releaser.Release()
		}
	})
	return m.err
}
