package catalog

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// EmptyMessage is shown for a style with no routines
const EmptyMessage = "No routines yet"

// CatalogMediaError reports a routine whose video failed to load.
// The selection still completes with no video.
type CatalogMediaError struct {
	RoutineID string
	URL       string
	Err       error
}

func (e *CatalogMediaError) Error() string {
	return fmt.Sprintf("failed to load routine %s video %s: %v", e.RoutineID, e.URL, e.Err)
}

func (e *CatalogMediaError) Unwrap() error {
	return e.Err
}

// VideoProber loads video metadata from a path or URL
type VideoProber interface {
	VideoInfo(ctx context.Context, input string) (*models.VideoInfo, error)
}

// ProbeCache stores probe results by routine id. *cache.Cache satisfies it.
type ProbeCache interface {
	GetRoutineVideo(ctx context.Context, routineID string) (*models.VideoInfo, error)
	SetRoutineVideo(ctx context.Context, routineID string, info *models.VideoInfo, ttl time.Duration) error
}

// PickerConfig controls where routine videos are read from
type PickerConfig struct {
	MediaRoot    string
	MediaBaseURL string
	CacheTTL     time.Duration
}

// Tile is one style's grid in the picker
type Tile struct {
	Style    models.DanceStyle `json:"style"`
	Label    string            `json:"label"`
	Routines []models.Routine  `json:"routines"`
	Empty    bool              `json:"empty"`
	Message  string            `json:"message,omitempty"`
}

// Selection is the outcome of choosing a routine
type Selection struct {
	Video   *models.VideoInfo
	URL     string
	Routine *models.Routine
	Err     *CatalogMediaError
}

// Media converts the selection into session media. Catalog URLs are static
// and have nothing to release.
func (s *Selection) Media() *models.SelectedMedia {
	return models.NewVideoMedia(s.Video, s.URL, s.Routine, nil)
}

// Picker browses the catalog by style and loads a chosen routine
type Picker struct {
	catalog *Catalog
	prober  VideoProber
	cache   ProbeCache
	cfg     PickerConfig
	logger  *logging.Logger

	mu     sync.RWMutex
	active models.DanceStyle
}

// NewPicker creates a picker. cache may be nil.
func NewPicker(c *Catalog, prober VideoProber, cache ProbeCache, cfg PickerConfig, logger *logging.Logger) *Picker {
	if logger == nil {
		logger = logging.Nop()
	}

	p := &Picker{
		catalog: c,
		prober:  prober,
		cache:   cache,
		cfg:     cfg,
		logger:  logger.WithComponent("catalog"),
		active:  models.StyleFoundations,
	}

	// open on the first style that has something to show
	for _, style := range c.Styles() {
		if len(c.ByStyle(style)) > 0 {
			p.active = style
			break
		}
	}
	return p
}

// Catalog returns the underlying catalog
func (p *Picker) Catalog() *Catalog {
	return p.catalog
}

// SetStyle switches the active style filter
func (p *Picker) SetStyle(style models.DanceStyle) error {
	if !style.IsValid() {
		return fmt.Errorf("%w %q", ErrUnknownStyle, style)
	}
	p.mu.Lock()
	p.active = style
	p.mu.Unlock()
	return nil
}

// ActiveStyle returns the active style filter
func (p *Picker) ActiveStyle() models.DanceStyle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Active returns the tile for the active style
func (p *Picker) Active() Tile {
	return p.tile(p.ActiveStyle())
}

// Tiles returns one tile per declared style
func (p *Picker) Tiles() []Tile {
	styles := p.catalog.Styles()
	tiles := make([]Tile, 0, len(styles))
	for _, style := range styles {
		tiles = append(tiles, p.tile(style))
	}
	return tiles
}

func (p *Picker) tile(style models.DanceStyle) Tile {
	routines := p.catalog.ByStyle(style)
	t := Tile{
		Style:    style,
		Label:    style.Label(),
		Routines: routines,
	}
	if len(routines) == 0 {
		t.Routines = []models.Routine{}
		t.Empty = true
		t.Message = EmptyMessage
	}
	return t
}

// Select loads the routine's video metadata. A load failure is reported in
// Selection.Err; only an unknown id fails the call.
func (p *Picker) Select(ctx context.Context, routineID string) (*Selection, error) {
	routine, err := p.catalog.ByID(routineID)
	if err != nil {
		return nil, err
	}

	sel := &Selection{
		URL:     routine.VideoURL,
		Routine: routine,
	}

	start := time.Now()
	info, err := p.loadMetadata(ctx, routine)
	if err != nil {
		sel.Err = &CatalogMediaError{RoutineID: routine.ID, URL: routine.VideoURL, Err: err}
		metrics.RecordMediaLoad("catalog", string(models.MediaKindVideo), "error", time.Since(start).Seconds())
		p.logger.WithRoutineID(routine.ID).WarnWithErr("Failed to load routine video", err)
		return sel, nil
	}

	info.Muted = true
	info.PlaysInline = true
	info.CrossOrigin = "anonymous"
	sel.Video = info

	metrics.RecordMediaLoad("catalog", string(models.MediaKindVideo), "success", time.Since(start).Seconds())
	p.logger.LogMediaLoad("catalog", "video/mp4", 0, time.Since(start), nil)
	return sel, nil
}

func (p *Picker) loadMetadata(ctx context.Context, routine *models.Routine) (*models.VideoInfo, error) {
	if p.cache != nil {
		cached, err := p.cache.GetRoutineVideo(ctx, routine.ID)
		if err != nil {
			p.logger.WarnWithErr("Probe cache read failed", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	info, err := p.prober.VideoInfo(ctx, p.Resolve(routine.VideoURL))
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetRoutineVideo(ctx, routine.ID, info, p.cfg.CacheTTL); err != nil {
			p.logger.WarnWithErr("Probe cache write failed", err)
		}
	}
	return info, nil
}

// Resolve maps a stored video URL onto something the prober can open
func (p *Picker) Resolve(videoURL string) string {
	if strings.HasPrefix(videoURL, "http://") || strings.HasPrefix(videoURL, "https://") {
		return videoURL
	}
	if p.cfg.MediaBaseURL != "" {
		escaped := (&url.URL{Path: videoURL}).EscapedPath()
		return strings.TrimRight(p.cfg.MediaBaseURL, "/") + escaped
	}
	rel := filepath.FromSlash(strings.TrimPrefix(videoURL, "/"))
	return filepath.Join(p.cfg.MediaRoot, rel)
}
