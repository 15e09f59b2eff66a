package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"

	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// DecodeImage fully decodes r so truncated files fail here, not in the view
func DecodeImage(r io.Reader, contentType string) (*models.ImageInfo, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	return &models.ImageInfo{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Format:      format,
		ContentType: normalize(contentType),
	}, nil
}
