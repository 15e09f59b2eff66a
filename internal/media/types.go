package media

import (
	"mime"
	"strings"

	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var videoTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

// Classify maps a declared MIME type onto a media kind
func Classify(contentType string) (models.MediaKind, bool) {
	mediaType := normalize(contentType)
	switch {
	case imageTypes[mediaType]:
		return models.MediaKindImage, true
	case videoTypes[mediaType]:
		return models.MediaKindVideo, true
	}
	return "", false
}

func normalize(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
