// Package media turns a user-supplied file into loaded reference media bound
// to a blob URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ark/internal/blob"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// State is the observable state of the uploader
type State string

// State constants
const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateError   State = "error"
)

// Status is reported to the upload view
type Status struct {
	State    State  `json:"state"`
	Message  string `json:"message,omitempty"`
	Dragging bool   `json:"dragging"`
}

// File is a single picked or dropped file
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// BlobAllocator mints blob URLs
type BlobAllocator interface {
	Create(ctx context.Context, body io.Reader, size int64, contentType string) (*blob.Handle, error)
}

// VideoProber loads video metadata from a local path
type VideoProber interface {
	VideoInfo(ctx context.Context, input string) (*models.VideoInfo, error)
}

// Config holds uploader settings
type Config struct {
	TempDir     string
	MaxFileSize int64
}

// Uploader validates files and loads them as image or video media.
// A new Load supersedes any load still in flight.
type Uploader struct {
	blobs  BlobAllocator
	prober VideoProber
	cfg    Config
	logger *logging.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	state      State
	message    string
	dragging   bool
}

// NewUploader creates an uploader
func NewUploader(blobs BlobAllocator, prober VideoProber, cfg Config, logger *logging.Logger) *Uploader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Uploader{
		blobs:  blobs,
		prober: prober,
		cfg:    cfg,
		logger: logger.WithComponent("media"),
		state:  StateIdle,
	}
}

// MaxFileSize returns the configured upload limit in bytes
func (u *Uploader) MaxFileSize() int64 {
	return u.cfg.MaxFileSize
}

// SetDragging records whether a drag is over the drop zone
func (u *Uploader) SetDragging(dragging bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dragging = dragging
}

// Abort cancels the attempt in flight. It finishes with ErrSuperseded and
// releases any blob it allocated.
func (u *Uploader) Abort() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
	u.generation++
	u.state = StateIdle
	u.message = ""
}

// State returns the current state
func (u *Uploader) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Status returns state, error message and drag flag
func (u *Uploader) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Status{State: u.state, Message: u.message, Dragging: u.dragging}
}

// Load validates f and returns media owning a fresh blob URL.
// The caller owns the returned media and must Release it.
func (u *Uploader) Load(ctx context.Context, f File) (*models.SelectedMedia, error) {
	gen, attemptCtx, cancel := u.begin(ctx)
	defer cancel()

	start := time.Now()
	kind, ok := Classify(f.ContentType)
	if !ok {
		err := &UnsupportedTypeError{ContentType: f.ContentType}
		u.fail(gen, err.Error())
		metrics.RecordMediaLoad("upload", "unknown", "unsupported", time.Since(start).Seconds())
		u.logger.LogMediaLoad("upload", f.ContentType, f.Size, time.Since(start), err)
		return nil, err
	}

	media, err := u.load(attemptCtx, gen, kind, f)
	status := "success"
	switch {
	case errors.Is(err, ErrSuperseded):
		status = "superseded"
	case err != nil:
		status = "error"
	}
	metrics.RecordMediaLoad("upload", string(kind), status, time.Since(start).Seconds())
	u.logger.LogMediaLoad("upload", f.ContentType, f.Size, time.Since(start), err)

	return media, err
}

func (u *Uploader) load(ctx context.Context, gen uint64, kind models.MediaKind, f File) (*models.SelectedMedia, error) {
	if u.cfg.MaxFileSize > 0 && f.Size > u.cfg.MaxFileSize {
		return nil, u.reject(gen, &LoadError{Kind: kind, Message: MsgFileTooLarge})
	}

	tmp, size, err := u.spool(f.Reader)
	if err != nil {
		return nil, u.reject(gen, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	metrics.MediaUploadSizeBytes.Observe(float64(size))

	if u.cfg.MaxFileSize > 0 && size > u.cfg.MaxFileSize {
		return nil, u.reject(gen, &LoadError{Kind: kind, Message: MsgFileTooLarge})
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, u.reject(gen, newLoadError(kind, err))
	}

	contentType := normalize(f.ContentType)
	handle, err := u.blobs.Create(ctx, tmp, size, contentType)
	if err != nil {
		return nil, u.reject(gen, newLoadError(kind, err))
	}

	var media *models.SelectedMedia
	switch kind {
	case models.MediaKindImage:
		var info *models.ImageInfo
		if _, err = tmp.Seek(0, io.SeekStart); err == nil {
			info, err = DecodeImage(tmp, contentType)
		}
		if err == nil {
			media = models.NewImageMedia(info, handle.URL(), handle)
		}
	case models.MediaKindVideo:
		var info *models.VideoInfo
		info, err = u.prober.VideoInfo(ctx, tmp.Name())
		if err == nil {
			info.ContentType = contentType
			media = models.NewVideoMedia(info, handle.URL(), nil, handle)
		}
	}

	if err != nil {
		if releaseErr := handle.Release(); releaseErr != nil {
			u.logger.WarnWithErr("Failed to release blob after load error", releaseErr)
		}
		return nil, u.reject(gen, newLoadError(kind, err))
	}

	if !u.complete(gen) {
		if releaseErr := media.Release(); releaseErr != nil {
			u.logger.WarnWithErr("Failed to release superseded blob", releaseErr)
		}
		return nil, ErrSuperseded
	}

	u.logger.WithBlobID(handle.ID()).Infof("Loaded %s %s", kind, f.Name)
	return media, nil
}

func (u *Uploader) spool(r io.Reader) (*os.File, int64, error) {
	if r == nil {
		return nil, 0, fmt.Errorf("no file content")
	}
	if u.cfg.TempDir != "" {
		if err := os.MkdirAll(u.cfg.TempDir, 0755); err != nil {
			return nil, 0, fmt.Errorf("failed to create temp directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(u.cfg.TempDir, "upload-*")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	src := r
	if u.cfg.MaxFileSize > 0 {
		src = io.LimitReader(r, u.cfg.MaxFileSize+1)
	}

	n, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, fmt.Errorf("failed to read file: %w", err)
	}
	return tmp, n, nil
}

// begin starts a new attempt and cancels the previous one
func (u *Uploader) begin(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	attemptCtx, cancel := context.WithCancel(ctx)

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.cancel != nil {
		u.cancel()
	}
	u.generation++
	u.cancel = cancel
	u.state = StateLoading
	u.message = ""

	return u.generation, attemptCtx, cancel
}

// complete commits a successful attempt if it is still the latest
func (u *Uploader) complete(gen uint64) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if gen != u.generation {
		return false
	}
	u.cancel = nil
	u.state = StateIdle
	u.message = ""
	return true
}

// reject records err for the latest attempt, or maps it to ErrSuperseded
func (u *Uploader) reject(gen uint64, err error) error {
	if !u.fail(gen, err.Error()) {
		return ErrSuperseded
	}
	return err
}

func (u *Uploader) fail(gen uint64, message string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if gen != u.generation {
		return false
	}
	u.cancel = nil
	u.state = StateError
	u.message = message
	return true
}
