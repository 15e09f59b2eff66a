// Package blob allocates process-local blob URLs for uploaded reference media.
//
// A blob URL has the form "blob:<origin>/<uuid>". Every allocated URL has
// exactly one owner, and only that owner calls Release. Released URLs stop
// resolving immediately and their bytes are deleted from the backend.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
)

// Scheme prefixes every blob URL
const Scheme = "blob:"

const keyPrefix = "blobs/"

// ErrNotFound is returned for unknown or released blobs
var ErrNotFound = errors.New("blob not found")

// Backend stores blob bytes. *storage.Storage satisfies it.
type Backend interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Sweeper lists and bulk-deletes stored objects. *storage.Storage satisfies it.
type Sweeper interface {
	List(ctx context.Context, prefix string) ([]string, error)
	BatchDelete(ctx context.Context, keys []string) error
}

// Sweep deletes blob objects stored by an earlier process. Blob URLs die
// with the process that minted them, so nothing under the prefix is reachable
// at startup. It returns the number of objects removed.
func Sweep(ctx context.Context, s Sweeper) (int, error) {
	keys, err := s.List(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list orphaned blobs: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.BatchDelete(ctx, keys); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned blobs: %w", err)
	}
	return len(keys), nil
}

// Registry tracks live blob URLs
type Registry struct {
	origin  string
	backend Backend
	logger  *logging.Logger

	mu   sync.RWMutex
	live map[string]*Handle
}

// NewRegistry creates a registry minting URLs under origin
func NewRegistry(origin string, backend Backend, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		origin:  strings.TrimRight(origin, "/"),
		backend: backend,
		logger:  logger.WithComponent("blob"),
		live:    make(map[string]*Handle),
	}
}

// Create stores body and returns a handle owning the new URL
func (r *Registry) Create(ctx context.Context, body io.Reader, size int64, contentType string) (*Handle, error) {
	id := uuid.New().String()
	key := keyPrefix + id

	start := time.Now()
	err := r.backend.Upload(ctx, key, body, size, contentType)
	r.logger.LogStorageOperation("blob_create", "", key, size, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	h := &Handle{
		id:          id,
		url:         fmt.Sprintf("%s%s/%s", Scheme, r.origin, id),
		contentType: contentType,
		size:        size,
		createdAt:   time.Now(),
		registry:    r,
	}

	r.mu.Lock()
	r.live[id] = h
	r.mu.Unlock()
	metrics.BlobsLive.Inc()

	return h, nil
}

// Lookup returns the live handle for id
func (r *Registry) Lookup(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.live[id]
	return h, ok
}

// Resolve returns the live handle behind a blob URL
func (r *Registry) Resolve(url string) (*Handle, bool) {
	id, ok := r.ParseURL(url)
	if !ok {
		return nil, false
	}
	return r.Lookup(id)
}

// ParseURL extracts the blob id from a URL minted by this registry
func (r *Registry) ParseURL(url string) (string, bool) {
	prefix := Scheme + r.origin + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(url, prefix)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// Open streams the bytes of a live blob
func (r *Registry) Open(ctx context.Context, id string) (io.ReadCloser, *Handle, error) {
	h, ok := r.Lookup(id)
	if !ok {
		return nil, nil, ErrNotFound
	}
	rc, err := r.backend.Download(ctx, keyPrefix+id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return rc, h, nil
}

// Live returns the number of allocated, unreleased blobs
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// ReleaseAll releases every live blob; used on shutdown
func (r *Registry) ReleaseAll() error {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.live))
	for _, h := range r.live {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	var errs []error
	for _, h := range handles {
		if err := h.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) revoke(h *Handle) error {
	r.mu.Lock()
	_, ok := r.live[h.id]
	delete(r.live, h.id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	metrics.BlobsLive.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := keyPrefix + h.id
	start := time.Now()
	err := r.backend.Delete(ctx, key)
	r.logger.LogStorageOperation("blob_release", "", key, h.size, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", h.id, err)
	}
	return nil
}

// Handle owns one blob URL
type Handle struct {
	id          string
	url         string
	contentType string
	size        int64
	createdAt   time.Time
	registry    *Registry

	once sync.Once
	err  error
}

// ID returns the blob id
func (h *Handle) ID() string { return h.id }

// URL returns the blob URL
func (h *Handle) URL() string { return h.url }

// ContentType returns the declared MIME type
func (h *Handle) ContentType() string { return h.contentType }

// Size returns the stored size in bytes
func (h *Handle) Size() int64 { return h.size }

// CreatedAt returns the allocation time
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Release revokes the URL and deletes the bytes. Only the first call has effect.
func (h *Handle) Release() error {
	h.once.Do(func() {
		h.err = h.registry.revoke(h)
	})
	return h.err
}
