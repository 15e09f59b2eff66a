package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/therealutkarshpriyadarshi/ark/internal/notes"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTrack struct {
	stopped atomic.Bool
}

func (t *fakeTrack) Kind() string  { return "video" }
func (t *fakeTrack) Stop()         { t.stopped.Store(true) }
func (t *fakeTrack) Stopped() bool { return t.stopped.Load() }

type fakeStream struct {
	id     string
	tracks []Track
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{id: id, tracks: []Track{&fakeTrack{}, &fakeTrack{}}}
}

func (s *fakeStream) ID() string      { return s.id }
func (s *fakeStream) Tracks() []Track { return s.tracks }
func (s *fakeStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

func (s *fakeStream) allStopped() bool {
	for _, t := range s.tracks {
		if !t.Stopped() {
			return false
		}
	}
	return true
}

type fakeCamera struct {
	denied    bool
	streamErr error
	entered   chan struct{}
	release   chan struct{}

	mu      sync.Mutex
	streams []*fakeStream
}

func (c *fakeCamera) RequestPermission(ctx context.Context) bool {
	return !c.denied
}

func (c *fakeCamera) GetStream(ctx context.Context, facing models.CameraFacing) (Stream, error) {
	if c.entered != nil {
		close(c.entered)
		<-c.release
	}
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := newFakeStream(string(facing))
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCamera) acquired() []*fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeStream(nil), c.streams...)
}

type fakePose struct {
	err     error
	entered chan struct{}
	release chan struct{}
	models  []string
}

func (p *fakePose) Initialize(ctx context.Context, modelName string) error {
	p.models = append(p.models, modelName)
	if p.entered != nil {
		close(p.entered)
		<-p.release
	}
	return p.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Record(ctx context.Context, evt *models.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt.Type)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type countingReleaser struct {
	n atomic.Int32
}

func (r *countingReleaser) Release() error {
	r.n.Add(1)
	return nil
}

func videoMedia(r *countingReleaser) *models.SelectedMedia {
	return models.NewVideoMedia(&models.VideoInfo{Width: 640, Height: 480}, "blob:http://localhost/1", nil, r)
}

func newTestController(cam *fakeCamera, pose *fakePose, sink *recordingSink) *Controller {
	var events EventSink
	if sink != nil {
		events = sink
	}
	return NewController("s1", cam, pose, events, nil, Config{ModelName: "movenet-lightning"}, nil)
}

func TestNewControllerState(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)
	state := c.State()

	assert.Equal(t, models.ViewModeSelect, state.ViewMode)
	assert.Nil(t, state.SelectedMedia)
	assert.Nil(t, state.CameraStream)
	assert.False(t, state.IsTracking)
	assert.False(t, state.IsInitializing)
	assert.Equal(t, models.DefaultOverlay(), state.Overlay)
}

func TestStartWithoutMedia(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)
	assert.ErrorIs(t, c.StartComparison(context.Background()), ErrNoMedia)
}

func TestStartUnplayableSelection(t *testing.T) {
	cam := &fakeCamera{}
	c := newTestController(cam, &fakePose{}, nil)

	routine := &models.Routine{ID: "edge-lines", VideoURL: "/videos/edge.mp4"}
	require.NoError(t, c.SelectVideo(models.NewVideoMedia(nil, routine.VideoURL, routine, nil)))

	assert.ErrorIs(t, c.StartComparison(context.Background()), ErrUnplayableMedia)
	assert.Empty(t, cam.acquired())
	assert.Equal(t, models.ViewModeSelect, c.State().ViewMode)
	assert.False(t, c.State().IsInitializing)
}

func TestStartComparison(t *testing.T) {
	cam := &fakeCamera{}
	pose := &fakePose{}
	sink := &recordingSink{}
	c := newTestController(cam, pose, sink)

	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))
	require.NoError(t, c.StartComparison(context.Background()))

	state := c.State()
	assert.Equal(t, models.ViewModeComparison, state.ViewMode)
	assert.True(t, state.IsTracking)
	assert.False(t, state.IsInitializing)
	require.NotNil(t, state.CameraStream)
	assert.Equal(t, models.FacingUser, state.CameraStream.Facing)
	assert.Equal(t, 2, state.CameraStream.Tracks)
	assert.Equal(t, []string{"movenet-lightning"}, pose.models)

	inputs, err := c.ViewInputs()
	require.NoError(t, err)
	assert.True(t, inputs.IsTracking)
	assert.InDelta(t, 0.3, inputs.ConfidenceThreshold, 1e-9)
	assert.NotNil(t, inputs.Media)
	assert.True(t, inputs.ShowUserSkeleton)

	assert.Equal(t, []string{models.EventMediaSelected, models.EventComparisonStarted}, sink.types())
}

func TestStartPermissionDenied(t *testing.T) {
	cam := &fakeCamera{denied: true}
	c := newTestController(cam, &fakePose{}, nil)
	require.NoError(t, c.SelectImage(models.NewImageMedia(&models.ImageInfo{Width: 1, Height: 1}, "blob:x", nil)))

	err := c.StartComparison(context.Background())

	var camErr *CameraError
	require.True(t, errors.As(err, &camErr))
	assert.Equal(t, CameraPermissionDenied, camErr.Reason)

	state := c.State()
	assert.Equal(t, models.ViewModeSelect, state.ViewMode)
	assert.False(t, state.IsInitializing)
	assert.Nil(t, state.CameraStream)
	assert.NotEmpty(t, state.LastError)
	assert.ErrorAs(t, c.LastError(), &camErr)
	assert.Empty(t, cam.acquired())
}

func TestStartStreamFailure(t *testing.T) {
	c := newTestController(&fakeCamera{streamErr: errors.New("device busy")}, &fakePose{}, nil)
	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))

	err := c.StartComparison(context.Background())

	var camErr *CameraError
	require.True(t, errors.As(err, &camErr))
	assert.Equal(t, CameraStreamFailed, camErr.Reason)
	assert.Equal(t, models.ViewModeSelect, c.State().ViewMode)
}

func TestStartModelFailureReleasesStream(t *testing.T) {
	cam := &fakeCamera{}
	c := newTestController(cam, &fakePose{err: errors.New("weights missing")}, nil)
	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))

	err := c.StartComparison(context.Background())

	var modelErr *ModelInitError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "movenet-lightning", modelErr.Model)

	streams := cam.acquired()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].allStopped())

	state := c.State()
	assert.Equal(t, models.ViewModeSelect, state.ViewMode)
	assert.Nil(t, state.CameraStream)
	assert.False(t, state.IsInitializing)

	// recoverable
	c.pose = &fakePose{}
	require.NoError(t, c.StartComparison(context.Background()))
	assert.Equal(t, models.ViewModeComparison, c.State().ViewMode)
}

func TestConcurrentStartHoldsOneStream(t *testing.T) {
	cam := &fakeCamera{entered: make(chan struct{}), release: make(chan struct{})}
	c := newTestController(cam, &fakePose{}, nil)
	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))

	done := make(chan error, 1)
	go func() { done <- c.StartComparison(context.Background()) }()

	<-cam.entered
	assert.True(t, c.State().IsInitializing)
	assert.NoError(t, c.StartComparison(context.Background()))
	assert.ErrorIs(t, c.ClearSelection(), ErrBusy)

	close(cam.release)
	require.NoError(t, <-done)

	assert.Len(t, cam.acquired(), 1)
	assert.Equal(t, models.ViewModeComparison, c.State().ViewMode)
}

func TestStopAndReturnToSelect(t *testing.T) {
	cam := &fakeCamera{}
	sink := &recordingSink{}
	c := newTestController(cam, &fakePose{}, sink)
	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))
	require.NoError(t, c.StartComparison(context.Background()))

	require.NoError(t, c.StopAndReturnToSelect())

	streams := cam.acquired()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].allStopped())

	state := c.State()
	assert.Equal(t, models.ViewModeSelect, state.ViewMode)
	assert.Nil(t, state.CameraStream)
	assert.False(t, state.IsTracking)
	assert.NotNil(t, state.SelectedMedia)

	// no stream held: no-op
	require.NoError(t, c.StopAndReturnToSelect())
	assert.Equal(t, 1, countOf(sink.types(), models.EventComparisonStopped))
}

func TestToggleTracking(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)

	_, err := c.ToggleTracking()
	assert.ErrorIs(t, err, ErrWrongMode)

	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))
	require.NoError(t, c.StartComparison(context.Background()))

	tracking, err := c.ToggleTracking()
	require.NoError(t, err)
	assert.False(t, tracking)

	state := c.State()
	assert.Equal(t, models.ViewModeComparison, state.ViewMode)
	assert.NotNil(t, state.CameraStream)

	tracking, err = c.ToggleTracking()
	require.NoError(t, err)
	assert.True(t, tracking)
}

func TestSelectionOnlyInSelectMode(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)
	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))
	require.NoError(t, c.StartComparison(context.Background()))

	assert.ErrorIs(t, c.SelectVideo(videoMedia(&countingReleaser{})), ErrWrongMode)
	assert.ErrorIs(t, c.ClearSelection(), ErrWrongMode)
	assert.ErrorIs(t, c.StartComparison(context.Background()), ErrWrongMode)
}

func TestSelectKindMismatch(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)
	assert.ErrorIs(t, c.SelectImage(videoMedia(&countingReleaser{})), ErrUnsupportedMedia)
	assert.ErrorIs(t, c.SelectVideo(nil), ErrUnsupportedMedia)
}

func TestReplacingMediaReleasesPrevious(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)

	first := &countingReleaser{}
	second := &countingReleaser{}
	firstMedia := videoMedia(first)

	require.NoError(t, c.SelectVideo(firstMedia))
	require.NoError(t, c.SelectVideo(firstMedia))
	assert.Equal(t, int32(0), first.n.Load())

	require.NoError(t, c.SelectVideo(videoMedia(second)))
	assert.Equal(t, int32(1), first.n.Load())
	assert.Equal(t, int32(0), second.n.Load())

	require.NoError(t, c.ClearSelection())
	assert.Equal(t, int32(1), second.n.Load())
	assert.Nil(t, c.State().SelectedMedia)

	require.NoError(t, c.ClearSelection())
}

func TestCloseStopsStreamAndReleasesMedia(t *testing.T) {
	cam := &fakeCamera{}
	r := &countingReleaser{}
	sink := &recordingSink{}
	c := newTestController(cam, &fakePose{}, sink)
	require.NoError(t, c.SelectVideo(videoMedia(r)))
	require.NoError(t, c.StartComparison(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.True(t, cam.acquired()[0].allStopped())
	assert.Equal(t, int32(1), r.n.Load())
	assert.True(t, c.Closed())
	assert.ErrorIs(t, c.StopAndReturnToSelect(), ErrClosed)
	assert.ErrorIs(t, c.SelectVideo(videoMedia(&countingReleaser{})), ErrClosed)
	assert.Equal(t, 1, countOf(sink.types(), models.EventSessionClosed))
}

func TestCloseDuringStartReleasesStream(t *testing.T) {
	cam := &fakeCamera{}
	pose := &fakePose{entered: make(chan struct{}), release: make(chan struct{})}
	c := newTestController(cam, pose, nil)
	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))

	done := make(chan error, 1)
	go func() { done <- c.StartComparison(context.Background()) }()

	<-pose.entered
	require.NoError(t, c.Close())
	close(pose.release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("start did not finish")
	}

	streams := cam.acquired()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].allStopped())
	assert.Nil(t, c.State().CameraStream)
	assert.Equal(t, models.ViewModeSelect, c.State().ViewMode)
}

func TestStartCancelledContext(t *testing.T) {
	cam := &fakeCamera{}
	c := newTestController(cam, &fakePose{}, nil)
	require.NoError(t, c.SelectVideo(videoMedia(&countingReleaser{})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.StartComparison(ctx), context.Canceled)
	assert.Empty(t, cam.acquired())
	assert.False(t, c.State().IsInitializing)
}

func TestOverlayAndNotes(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(&fakeCamera{}, &fakePose{}, sink)

	assert.ErrorIs(t, c.SetOverlay(models.Overlay{ConfidenceThreshold: 1.5}), ErrInvalidOverlay)
	require.NoError(t, c.SetOverlay(models.Overlay{ShowUserSkeleton: false, ShowReferenceSkeleton: true, ConfidenceThreshold: 0.6}))
	assert.InDelta(t, 0.6, c.State().Overlay.ConfidenceThreshold, 1e-9)

	require.NoError(t, c.SetNotes("watch the knees"))
	text, err := c.ApplyNoteFormat(10, 15, notes.Bold)
	require.NoError(t, err)
	assert.Equal(t, "watch the **knees**", text)
	assert.Equal(t, text, c.State().Notes)

	_, err = c.ApplyNoteFormat(0, 1, "strike")
	assert.Error(t, err)

	assert.Equal(t, []string{models.EventOverlayUpdated, models.EventNotesUpdated, models.EventNotesUpdated}, sink.types())
}

func TestUpdateOverlayMergesConcurrentEdits(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.UpdateOverlay(func(o *models.Overlay) { o.ShowUserSkeleton = false })
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := c.UpdateOverlay(func(o *models.Overlay) { o.ConfidenceThreshold = 0.7 })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	o := c.State().Overlay
	assert.False(t, o.ShowUserSkeleton)
	assert.True(t, o.ShowReferenceSkeleton)
	assert.InDelta(t, 0.7, o.ConfidenceThreshold, 1e-9)

	_, err := c.UpdateOverlay(func(o *models.Overlay) { o.ConfidenceThreshold = -0.1 })
	assert.ErrorIs(t, err, ErrInvalidOverlay)
	assert.InDelta(t, 0.7, c.State().Overlay.ConfidenceThreshold, 1e-9)
}

func TestViewInputsRequiresComparison(t *testing.T) {
	c := newTestController(&fakeCamera{}, &fakePose{}, nil)
	_, err := c.ViewInputs()
	assert.ErrorIs(t, err, ErrWrongMode)
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(&CameraError{Reason: CameraPermissionDenied}))
	assert.True(t, IsUserError(&ModelInitError{Model: "m", Err: errors.New("x")}))
	assert.False(t, IsUserError(ErrNoMedia))
}

func countOf(events []string, eventType string) int {
	n := 0
	for _, e := range events {
		if e == eventType {
			n++
		}
	}
	return n
}
