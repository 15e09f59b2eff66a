//go:build gocv

package camera

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/internal/session"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// GoCV captures through OpenCV
type GoCV struct {
	cfg    Config
	logger *logging.Logger
}

// NewGoCV creates an OpenCV camera
func NewGoCV(cfg Config, logger *logging.Logger) *GoCV {
	if logger == nil {
		logger = logging.Nop()
	}
	return &GoCV{cfg: cfg, logger: logger.WithComponent("camera")}
}

func (g *GoCV) open(facing models.CameraFacing) (*gocv.VideoCapture, error) {
	path, err := devicePath(g.cfg, facing)
	if err != nil {
		return nil, err
	}
	id, err := deviceIndex(path)
	if err != nil {
		return nil, err
	}
	return gocv.VideoCaptureDevice(id)
}

// RequestPermission reports whether the front device opens
func (g *GoCV) RequestPermission(ctx context.Context) bool {
	capture, err := g.open(models.FacingUser)
	if err != nil {
		g.logger.WarnWithErr("Camera permission check failed", err)
		return false
	}
	defer capture.Close()
	return capture.IsOpened()
}

// GetStream opens the device facing the given way
func (g *GoCV) GetStream(ctx context.Context, facing models.CameraFacing) (session.Stream, error) {
	capture, err := g.open(facing)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("capture device for %s camera did not open", facing)
	}

	if g.cfg.Width > 0 && g.cfg.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(g.cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(g.cfg.Height))
	}
	if g.cfg.FrameRate > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(g.cfg.FrameRate))
	}

	metrics.CameraStreamsHeld.Inc()
	return NewStream(&captureTrack{capture: capture}), nil
}

// captureTrack is a video track backed by an OpenCV capture
type captureTrack struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	stopped bool
}

func (t *captureTrack) Kind() string { return "video" }

// Read grabs the next frame into mat
func (t *captureTrack) Read(mat *gocv.Mat) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	return t.capture.Read(mat)
}

func (t *captureTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.capture.Close()
	metrics.CameraStreamsHeld.Dec()
}

func (t *captureTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// deviceIndex maps "/dev/video2" or "2" to 2
func deviceIndex(path string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(path, "/dev/video"))
	if err != nil {
		return 0, fmt.Errorf("invalid capture device %q", path)
	}
	return id, nil
}
