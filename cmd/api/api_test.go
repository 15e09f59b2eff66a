package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ark/internal/blob"
	"github.com/therealutkarshpriyadarshi/ark/internal/camera"
	"github.com/therealutkarshpriyadarshi/ark/internal/catalog"
	"github.com/therealutkarshpriyadarshi/ark/internal/database"
	"github.com/therealutkarshpriyadarshi/ark/internal/logging"
	"github.com/therealutkarshpriyadarshi/ark/internal/media"
	"github.com/therealutkarshpriyadarshi/ark/internal/notes"
	"github.com/therealutkarshpriyadarshi/ark/internal/selector"
	"github.com/therealutkarshpriyadarshi/ark/internal/session"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

type stubProber struct{}

func (stubProber) VideoInfo(ctx context.Context, input string) (*models.VideoInfo, error) {
	return &models.VideoInfo{Width: 1280, Height: 720, Codec: "h264", Duration: 150}, nil
}

type testTrack struct {
	stopped atomic.Bool
}

func (t *testTrack) Kind() string  { return "video" }
func (t *testTrack) Stop()         { t.stopped.Store(true) }
func (t *testTrack) Stopped() bool { return t.stopped.Load() }

type testCamera struct {
	denied bool
}

func (c *testCamera) RequestPermission(ctx context.Context) bool { return !c.denied }

func (c *testCamera) GetStream(ctx context.Context, facing models.CameraFacing) (session.Stream, error) {
	return camera.NewStream(&testTrack{}), nil
}

type testPose struct {
	err error
}

func (p testPose) Initialize(ctx context.Context, modelName string) error { return p.err }

type testHistory struct {
	sessions []*models.PracticeSession
}

func (h *testHistory) ListPracticeSessions(ctx context.Context, limit, offset int) ([]*models.PracticeSession, error) {
	return h.sessions, nil
}

func (h *testHistory) GetPracticeSession(ctx context.Context, id string) (*models.PracticeSession, error) {
	for _, s := range h.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: practice session %s", database.ErrNotFound, id)
}

func (h *testHistory) ListEvents(ctx context.Context, sessionID string) ([]*models.SessionEvent, error) {
	return []*models.SessionEvent{{ID: "e1", SessionID: sessionID, Type: models.EventSessionCreated}}, nil
}

type testServer struct {
	api    *API
	router *gin.Engine
}

func newTestServer(t *testing.T, cam session.Camera, pose session.PoseEngine) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := catalog.Default()
	blobs := blob.NewRegistry("http://localhost:8080", blob.NewMemoryBackend(), nil)
	tempDir := t.TempDir()

	newSelector := func(l selector.Listener) *selector.Coordinator {
		picker := catalog.NewPicker(cat, stubProber{}, nil, catalog.PickerConfig{MediaRoot: "/srv/public"}, nil)
		uploader := media.NewUploader(blobs, stubProber{}, media.Config{TempDir: tempDir, MaxFileSize: 1 << 20}, nil)
		return selector.New(picker, uploader, l, nil)
	}

	mgr := session.NewManager(cam, pose, nil, newSelector, session.Config{ModelName: "movenet-lightning"}, 4, nil)
	t.Cleanup(mgr.CloseAll)

	api := &API{
		catalog:  cat,
		blobs:    blobs,
		sessions: mgr,
		history:  &testHistory{sessions: []*models.PracticeSession{{ID: "s1", Overlay: models.DefaultOverlay()}}},
		checks:   map[string]func(context.Context) error{},
		logger:   logging.Nop(),
	}
	return &testServer{api: api, router: setupRouter(api, nil)}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, path, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var state models.SessionState
	decode(t, w, &state)
	return state.ID
}

// openSelector opens the selection flow on the given view
func (s *testServer) openSelector(t *testing.T, id string, view selector.View) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/selector", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	if view != selector.ViewMain {
		w = s.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/selector/view", gin.H{"view": view})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func (s *testServer) selectRoutine(t *testing.T, id, routineID string) {
	t.Helper()
	s.openSelector(t, id, selector.ViewPreloaded)
	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/selector/routines/"+routineID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	s.api.checks["database"] = func(context.Context) error { return nil }

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.api.checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestListRoutines(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})

	w := s.do(t, http.MethodGet, "/api/v1/routines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Routines []models.Routine `json:"routines"`
	}
	decode(t, w, &all)
	assert.Len(t, all.Routines, s.api.catalog.Len())

	w = s.do(t, http.MethodGet, "/api/v1/routines?style=ballet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ballet struct {
		Routines []models.Routine `json:"routines"`
	}
	decode(t, w, &ballet)
	for _, r := range ballet.Routines {
		assert.Equal(t, models.StyleBallet, r.Style)
	}

	w = s.do(t, http.MethodGet, "/api/v1/routines?style=polka", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoutine(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})

	w := s.do(t, http.MethodGet, "/api/v1/routines/foundation-wave", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var r models.Routine
	decode(t, w, &r)
	assert.Equal(t, "/videos/taekwondo/Taegeuk 1 Il Jang.mp4", r.VideoURL)

	w = s.do(t, http.MethodGet, "/api/v1/routines/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListStyles(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})

	w := s.do(t, http.MethodGet, "/api/v1/styles", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Styles []struct {
			Style models.DanceStyle `json:"style"`
			Label string            `json:"label"`
			Count int               `json:"count"`
		} `json:"styles"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Styles, len(models.DanceStyles))
	assert.Equal(t, models.StyleFoundations, resp.Styles[0].Style)
	assert.Equal(t, "hip hop", resp.Styles[2].Label)
}

func TestSessionComparisonFlow(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id

	// starting without media is refused
	w := s.do(t, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	s.selectRoutine(t, id, "foundation-wave")

	w = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state models.SessionState
	decode(t, w, &state)
	require.NotNil(t, state.SelectedMedia)
	assert.Equal(t, "foundation-wave", state.SelectedMedia.Routine.ID)

	w = s.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &state)
	assert.Equal(t, models.ViewModeComparison, state.ViewMode)
	require.NotNil(t, state.CameraStream)
	assert.False(t, state.IsInitializing)

	w = s.do(t, http.MethodGet, base+"/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"confidence_threshold":0.3`)

	w = s.do(t, http.MethodPost, base+"/tracking/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_tracking":true}`, w.Body.String())

	// selection is locked during comparison
	w = s.do(t, http.MethodDelete, base+"/selection", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, base+"/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &state)
	assert.Equal(t, models.ViewModeSelect, state.ViewMode)
	assert.Nil(t, state.CameraStream)
	assert.False(t, state.IsTracking)

	w = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartCameraDenied(t *testing.T) {
	s := newTestServer(t, &testCamera{denied: true}, testPose{})
	id := s.createSession(t)
	s.selectRoutine(t, id, "foundation-wave")

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Camera access was denied")

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	var state models.SessionState
	decode(t, w, &state)
	assert.Equal(t, models.ViewModeSelect, state.ViewMode)
	assert.NotEmpty(t, state.LastError)
}

func TestStartModelFailure(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{err: errors.New("weights missing")})
	id := s.createSession(t)
	s.selectRoutine(t, id, "foundation-wave")

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "movenet-lightning")
}

func TestSelectorViews(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id

	w := s.do(t, http.MethodGet, base+"/selector", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	s.openSelector(t, id, selector.ViewMain)

	// the library is only listed on the preloaded view
	w = s.do(t, http.MethodGet, base+"/selector/routines", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, base+"/selector/view", gin.H{"view": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, base+"/selector/view", gin.H{"view": "preloaded"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, base+"/selector/routines?style=latin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lib selector.Library
	decode(t, w, &lib)
	assert.Equal(t, models.StyleLatin, lib.ActiveStyle)
	assert.Len(t, lib.Tiles, len(models.DanceStyles))

	w = s.do(t, http.MethodGet, base+"/selector/routines?style=polka", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/selector/routines/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, base+"/selector/view", gin.H{"view": "main"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, base+"/selector", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, base+"/selector", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id
	s.openSelector(t, id, selector.ViewUpload)

	w := s.do(t, http.MethodPut, base+"/selector/dragging", gin.H{"dragging": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dragging":true`)

	content := pngBytes(t)
	w = s.upload(t, base+"/selector/upload", "pose.png", "image/png", content)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var state models.SessionState
	decode(t, w, &state)
	require.NotNil(t, state.SelectedMedia)
	assert.Equal(t, models.MediaKindImage, state.SelectedMedia.Kind)
	assert.Equal(t, 8, state.SelectedMedia.Image.Width)
	assert.Equal(t, 1, s.api.blobs.Live())

	blobID, ok := s.api.blobs.ParseURL(state.SelectedMedia.SourceURL)
	require.True(t, ok)

	w = s.do(t, http.MethodGet, "/api/v1/blobs/"+blobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, content, w.Body.Bytes())

	// clearing releases the blob URL
	w = s.do(t, http.MethodDelete, base+"/selection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, s.api.blobs.Live())

	w = s.do(t, http.MethodGet, "/api/v1/blobs/"+blobID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadUnsupportedType(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id
	s.openSelector(t, id, selector.ViewUpload)

	w := s.upload(t, base+"/selector/upload", "notes.pdf", "application/pdf", []byte("%PDF-1.4"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Body.String(), media.MsgUnsupportedType)
	assert.Equal(t, 0, s.api.blobs.Live())

	w = s.do(t, http.MethodGet, base+"/selector/upload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status media.Status
	decode(t, w, &status)
	assert.Equal(t, media.StateError, status.State)
	assert.Equal(t, media.MsgUnsupportedType, status.Message)
}

func TestUploadCorruptImage(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	s.openSelector(t, id, selector.ViewUpload)

	w := s.upload(t, "/api/v1/sessions/"+id+"/selector/upload", "broken.png", "image/png", []byte("not a png"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), media.MsgImageLoadFailed)
	assert.Equal(t, 0, s.api.blobs.Live())
}

func TestUploadMissingFile(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	s.openSelector(t, id, selector.ViewUpload)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/selector/upload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOverlay(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id

	w := s.do(t, http.MethodPatch, base+"/overlay", gin.H{"show_user_skeleton": false})
	require.Equal(t, http.StatusOK, w.Code)
	var overlay models.Overlay
	decode(t, w, &overlay)
	assert.False(t, overlay.ShowUserSkeleton)
	assert.True(t, overlay.ShowReferenceSkeleton)
	assert.Equal(t, 0.3, overlay.ConfidenceThreshold)

	w = s.do(t, http.MethodPatch, base+"/overlay", gin.H{"confidence_threshold": 1.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotes(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id

	w := s.do(t, http.MethodPut, base+"/notes", gin.H{"notes": "keep knees soft"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, base+"/notes/format", gin.H{"start": 5, "end": 10, "format": notes.Bold})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notes":"keep **knees** soft"}`, w.Body.String())

	w = s.do(t, http.MethodPost, base+"/notes/format", gin.H{"start": 0, "end": 4, "format": "underline"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCountdown(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	id := s.createSession(t)

	// the test manager is configured without a countdown, so only GO! is sent
	w := s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/countdown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event:countdown")
	assert.Contains(t, w.Body.String(), "GO!")

	w = s.do(t, http.MethodGet, "/api/v1/sessions/unknown/countdown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTooManySessions(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	for i := 0; i < 4; i++ {
		s.createSession(t)
	}

	w := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})

	w := s.do(t, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"s1"`)

	w = s.do(t, http.MethodGet, "/api/v1/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/history/s1/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.EventSessionCreated)

	w = s.do(t, http.MethodGet, "/api/v1/history/s2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", session.ErrNotFound), http.StatusNotFound},
		{catalog.ErrRoutineNotFound, http.StatusNotFound},
		{&media.UnsupportedTypeError{ContentType: "text/plain"}, http.StatusUnsupportedMediaType},
		{&media.LoadError{Kind: models.MediaKindVideo, Message: media.MsgVideoLoadFailed}, http.StatusUnprocessableEntity},
		{media.ErrSuperseded, http.StatusConflict},
		{selector.ErrInvalidTransition, http.StatusConflict},
		{session.ErrBusy, http.StatusConflict},
		{session.ErrUnplayableMedia, http.StatusConflict},
		{session.ErrInvalidOverlay, http.StatusBadRequest},
		{&session.CameraError{Reason: session.CameraStreamFailed}, http.StatusServiceUnavailable},
		{&session.ModelInitError{Model: "m", Err: errors.New("x")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, &testCamera{}, testPose{})
	w := s.do(t, http.MethodGet, "/api/v1/styles", nil)
	assert.True(t, strings.Count(w.Header().Get("X-Request-ID"), "-") == 4)
}
