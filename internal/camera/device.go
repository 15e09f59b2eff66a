// Package camera captures from local video devices.
package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/internal/session"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// Config holds capture settings
type Config struct {
	FFmpegPath  string
	FrontDevice string
	RearDevice  string
	Width       int
	Height      int
	FrameRate   int
}

// Device captures from v4l2 nodes through ffmpeg
type Device struct {
	cfg    Config
	logger *logging.Logger
}

// NewDevice creates a v4l2 camera
func NewDevice(cfg Config, logger *logging.Logger) *Device {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Device{cfg: cfg, logger: logger.WithComponent("camera")}
}

func devicePath(cfg Config, facing models.CameraFacing) (string, error) {
	switch facing {
	case models.FacingUser, "":
		if cfg.FrontDevice != "" {
			return cfg.FrontDevice, nil
		}
	case models.FacingEnvironment:
		if cfg.RearDevice != "" {
			return cfg.RearDevice, nil
		}
	}
	return "", fmt.Errorf("no %s-facing camera configured", facing)
}

// RequestPermission reports whether the front device node can be opened
func (d *Device) RequestPermission(ctx context.Context) bool {
	path, err := devicePath(d.cfg, models.FacingUser)
	if err != nil {
		return false
	}

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		d.logger.WarnWithErr("Camera permission check failed", err)
		return false
	}
	f.Close()
	return true
}

// GetStream starts capturing raw RGB frames from the device facing the given way
func (d *Device) GetStream(ctx context.Context, facing models.CameraFacing) (session.Stream, error) {
	path, err := devicePath(d.cfg, facing)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
	}
	if d.cfg.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(d.cfg.FrameRate))
	}
	if d.cfg.Width > 0 && d.cfg.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", d.cfg.Width, d.cfg.Height))
	}
	args = append(args,
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	// the stream outlives the request, so it is not bound to ctx
	cmd := exec.Command(d.cfg.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start capture on %s: %w", path, err)
	}

	track := newProcessTrack(cmd, stdout)
	metrics.CameraStreamsHeld.Inc()
	d.logger.WithFields(map[string]interface{}{
		"device": path,
		"facing": string(facing),
		"pid":    cmd.Process.Pid,
	}).Info("Camera stream started")

	return &Stream{id: uuid.New().String(), tracks: []session.Track{track}}, nil
}

// Stream is a set of capture tracks
type Stream struct {
	id     string
	tracks []session.Track
}

// NewStream groups tracks into a stream
func NewStream(tracks ...session.Track) *Stream {
	return &Stream{id: uuid.New().String(), tracks: tracks}
}

// ID returns the stream id
func (s *Stream) ID() string { return s.id }

// Tracks returns the stream's tracks
func (s *Stream) Tracks() []session.Track { return s.tracks }

// Stop stops every track
func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

// processTrack is a video track backed by an ffmpeg process
type processTrack struct {
	cmd    *exec.Cmd
	frames io.ReadCloser
	done   chan struct{}
	once   sync.Once
}

func newProcessTrack(cmd *exec.Cmd, frames io.ReadCloser) *processTrack {
	t := &processTrack{cmd: cmd, frames: frames, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(t.done)
	}()
	return t
}

func (t *processTrack) Kind() string { return "video" }

// Frames returns the raw frame pipe
func (t *processTrack) Frames() io.Reader { return t.frames }

func (t *processTrack) Stop() {
	t.once.Do(func() {
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		<-t.done
		metrics.CameraStreamsHeld.Dec()
	})
}

func (t *processTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
