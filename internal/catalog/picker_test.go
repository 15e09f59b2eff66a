package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ark/internal/cache"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

type recordingProber struct {
	mu     sync.Mutex
	inputs []string
	err    error
}

func (p *recordingProber) VideoInfo(ctx context.Context, input string) (*models.VideoInfo, error) {
	p.mu.Lock()
	p.inputs = append(p.inputs, input)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &models.VideoInfo{Width: 1280, Height: 720, Duration: 150, Codec: "h264"}, nil
}

func (p *recordingProber) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inputs)
}

func TestSelectFoundationWave(t *testing.T) {
	prober := &recordingProber{}
	p := NewPicker(Default(), prober, nil, PickerConfig{MediaRoot: "/srv/public"}, nil)

	sel, err := p.Select(context.Background(), "foundation-wave")
	require.NoError(t, err)

	assert.Nil(t, sel.Err)
	require.NotNil(t, sel.Video)
	assert.True(t, sel.Video.Muted)
	assert.True(t, sel.Video.PlaysInline)
	assert.Equal(t, "anonymous", sel.Video.CrossOrigin)
	assert.Equal(t, "/videos/taekwondo/Taegeuk 1 Il Jang.mp4", sel.URL)
	assert.Equal(t, "foundation-wave", sel.Routine.ID)

	require.Len(t, prober.inputs, 1)
	assert.Equal(t, filepath.Join("/srv/public", "videos", "taekwondo", "Taegeuk 1 Il Jang.mp4"), prober.inputs[0])

	media := sel.Media()
	assert.Equal(t, models.MediaKindVideo, media.Kind)
	assert.Equal(t, sel.URL, media.SourceURL)
	assert.NoError(t, media.Release())
}

func TestSelectProbeFailureStillCompletes(t *testing.T) {
	prober := &recordingProber{err: errors.New("connection refused")}
	p := NewPicker(Default(), prober, nil, PickerConfig{}, nil)

	sel, err := p.Select(context.Background(), "latin-bloom")
	require.NoError(t, err)

	assert.Nil(t, sel.Video)
	require.NotNil(t, sel.Err)
	assert.Equal(t, "latin-bloom", sel.Err.RoutineID)
	assert.Equal(t, "latin-bloom", sel.Routine.ID)
	assert.False(t, sel.Media().Playable())

	var mediaErr *CatalogMediaError
	assert.True(t, errors.As(error(sel.Err), &mediaErr))
}

func TestSelectUnknownRoutine(t *testing.T) {
	p := NewPicker(Default(), &recordingProber{}, nil, PickerConfig{}, nil)

	_, err := p.Select(context.Background(), "moonwalk")
	assert.True(t, errors.Is(err, ErrRoutineNotFound))
}

func TestResolve(t *testing.T) {
	p := NewPicker(Default(), &recordingProber{}, nil, PickerConfig{MediaBaseURL: "https://cdn.example.com/"}, nil)

	assert.Equal(t,
		"https://cdn.example.com/videos/karate/Heian%20Nidan%20June%2018%202025.mp4",
		p.Resolve("/videos/karate/Heian Nidan June 18 2025.mp4"))
	assert.Equal(t, "https://other.example/v.mp4", p.Resolve("https://other.example/v.mp4"))
}

func TestSelectUsesProbeCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := cache.NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	require.NoError(t, err)
	defer c.Close()

	prober := &recordingProber{}
	p := NewPicker(Default(), prober, c, PickerConfig{CacheTTL: time.Hour}, nil)
	ctx := context.Background()

	first, err := p.Select(ctx, "story-arc")
	require.NoError(t, err)
	second, err := p.Select(ctx, "story-arc")
	require.NoError(t, err)

	assert.Equal(t, 1, prober.calls())
	assert.Equal(t, first.Video.Width, second.Video.Width)
	assert.True(t, second.Video.Muted)
}

func TestPickerStyles(t *testing.T) {
	routines := []models.Routine{
		{ID: "a", Style: models.StyleHipHop, Energy: models.EnergyGroove},
		{ID: "b", Style: models.StyleHipHop, Energy: models.EnergyGroove},
	}
	c, err := New(routines)
	require.NoError(t, err)

	p := NewPicker(c, &recordingProber{}, nil, PickerConfig{}, nil)
	assert.Equal(t, models.StyleHipHop, p.ActiveStyle())
	assert.Len(t, p.Active().Routines, 2)

	require.NoError(t, p.SetStyle(models.StyleBallet))
	active := p.Active()
	assert.True(t, active.Empty)
	assert.Equal(t, EmptyMessage, active.Message)
	assert.Empty(t, active.Routines)

	assert.Error(t, p.SetStyle("tap"))
	assert.Equal(t, models.StyleBallet, p.ActiveStyle())

	tiles := p.Tiles()
	require.Len(t, tiles, len(models.DanceStyles))
	for _, tile := range tiles {
		assert.Equal(t, tile.Style != models.StyleHipHop, tile.Empty, "style %s", tile.Style)
	}
	assert.Equal(t, "hip hop", tiles[2].Label)
}
