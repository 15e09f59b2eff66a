// Package pose prepares pose detection model weights for the comparison view.
package pose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
)

// ErrUnknownModel is returned for model names with no published weights
var ErrUnknownModel = errors.New("unknown pose model")

const fetchTimeout = 5 * time.Minute

// knownModels lists the weight files published for each model
var knownModels = map[string][]string{
	"movenet-lightning": {"model.json", "group1-shard1of2.bin", "group1-shard2of2.bin"},
	"movenet-thunder":   {"model.json", "group1-shard1of3.bin", "group1-shard2of3.bin", "group1-shard3of3.bin"},
	"blazepose-lite":    {"model.json", "group1-shard1of1.bin"},
	"blazepose-full":    {"model.json", "group1-shard1of2.bin", "group1-shard2of2.bin"},
}

// Downloader fetches objects to local files. *storage.Storage satisfies it.
type Downloader interface {
	DownloadFile(ctx context.Context, objectName, filePath string) error
}

// Model is a model whose weights are on local disk
type Model struct {
	Name     string
	Dir      string
	Files    []string
	Size     int64
	LoadedAt time.Time
}

// Engine downloads and caches model weights
type Engine struct {
	store    Downloader
	prefix   string
	cacheDir string
	logger   *logging.Logger

	group singleflight.Group

	mu     sync.RWMutex
	loaded map[string]*Model
}

// NewEngine creates an engine reading weights under prefix in store
func NewEngine(store Downloader, prefix, cacheDir string, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		store:    store,
		prefix:   prefix,
		cacheDir: cacheDir,
		logger:   logger.WithComponent("pose"),
		loaded:   make(map[string]*Model),
	}
}

// Models returns the names of all known models
func Models() []string {
	names := make([]string, 0, len(knownModels))
	for name := range knownModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Initialize makes sure the named model's weights are available
func (e *Engine) Initialize(ctx context.Context, modelName string) error {
	_, err := e.Load(ctx, modelName)
	return err
}

// Loaded reports whether a model has been initialized
func (e *Engine) Loaded(modelName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.loaded[modelName]
	return ok
}

// Load returns the named model, downloading its weights once.
// Concurrent callers share a single download.
func (e *Engine) Load(ctx context.Context, modelName string) (*Model, error) {
	e.mu.RLock()
	m, ok := e.loaded[modelName]
	e.mu.RUnlock()
	if ok {
		return m, nil
	}

	files, ok := knownModels[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}

	ch := e.group.DoChan(modelName, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return e.fetch(fetchCtx, modelName, files)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}

func (e *Engine) fetch(ctx context.Context, modelName string, files []string) (*Model, error) {
	start := time.Now()
	dir := filepath.Join(e.cacheDir, modelName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create model cache: %w", err)
	}

	model := &Model{Name: modelName, Dir: dir, Files: files}
	for _, file := range files {
		dest := filepath.Join(dir, file)
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			model.Size += info.Size()
			continue
		}

		object := path.Join(e.prefix, modelName, file)
		tmp := dest + ".part"
		if err := e.store.DownloadFile(ctx, object, tmp); err != nil {
			os.Remove(tmp)
			return nil, fmt.Errorf("failed to download %s: %w", object, err)
		}

		info, err := os.Stat(tmp)
		if err != nil || info.Size() == 0 {
			os.Remove(tmp)
			return nil, fmt.Errorf("weights file %s is empty", object)
		}
		if err := os.Rename(tmp, dest); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", object, err)
		}
		model.Size += info.Size()
	}
	model.LoadedAt = time.Now()

	e.mu.Lock()
	e.loaded[modelName] = model
	e.mu.Unlock()

	e.logger.WithFields(map[string]interface{}{
		"model":       modelName,
		"size_bytes":  model.Size,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Pose model ready")

	return model, nil
}
