package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/ark/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the database connection
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Record stores a session event and applies it to the session row.
// Redelivered events are ignored.
func (r *Repository) Record(ctx context.Context, evt *models.SessionEvent) error {
	if evt.Type == models.EventSessionCreated {
		if err := r.CreatePracticeSession(ctx, &models.PracticeSession{
			ID:        evt.SessionID,
			Overlay:   models.DefaultOverlay(),
			CreatedAt: evt.OccurredAt,
		}); err != nil {
			return err
		}
	}

	inserted, err := r.InsertEvent(ctx, evt)
	if err != nil || !inserted {
		return err
	}

	query, args, ok := sessionUpdate(evt)
	if !ok {
		return nil
	}

	_, err = r.db.Pool.Exec(ctx, query, args...)
	observe("apply_event", err)
	if err != nil {
		return fmt.Errorf("failed to apply %s event: %w", evt.Type, err)
	}
	return nil
}

// sessionUpdate maps an event onto the practice_sessions change it implies
func sessionUpdate(evt *models.SessionEvent) (string, []interface{}, bool) {
	switch evt.Type {
	case models.EventMediaSelected:
		return `UPDATE practice_sessions SET routine_id = $2, media_kind = $3, updated_at = $4 WHERE id = $1`,
			[]interface{}{evt.SessionID, nullable(evt.RoutineID), nullable(evt.MediaKind), evt.OccurredAt}, true
	case models.EventMediaCleared:
		return `UPDATE practice_sessions SET routine_id = NULL, media_kind = NULL, updated_at = $2 WHERE id = $1`,
			[]interface{}{evt.SessionID, evt.OccurredAt}, true
	case models.EventNotesUpdated:
		return `UPDATE practice_sessions SET notes = $2, updated_at = $3 WHERE id = $1`,
			[]interface{}{evt.SessionID, evt.Notes, evt.OccurredAt}, true
	case models.EventOverlayUpdated:
		if evt.Overlay == nil {
			return "", nil, false
		}
		return `UPDATE practice_sessions SET overlay = $2, updated_at = $3 WHERE id = $1`,
			[]interface{}{evt.SessionID, *evt.Overlay, evt.OccurredAt}, true
	case models.EventSessionClosed:
		return `UPDATE practice_sessions SET closed_at = $2, updated_at = $2 WHERE id = $1 AND closed_at IS NULL`,
			[]interface{}{evt.SessionID, evt.OccurredAt}, true
	}
	return "", nil, false
}

// CreatePracticeSession inserts a session row if it does not exist
func (r *Repository) CreatePracticeSession(ctx context.Context, s *models.PracticeSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO practice_sessions (id, notes, overlay, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, s.ID, s.Notes, s.Overlay, s.CreatedAt)
	observe("create_session", err)
	if err != nil {
		return fmt.Errorf("failed to create practice session: %w", err)
	}
	return nil
}

// InsertEvent stores an event; it reports false if the event was already stored
func (r *Repository) InsertEvent(ctx context.Context, evt *models.SessionEvent) (bool, error) {
	query := `
		INSERT INTO session_events (id, session_id, type, routine_id, media_kind, tracking, error, notes, overlay, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		evt.ID, evt.SessionID, evt.Type, nullable(evt.RoutineID), nullable(evt.MediaKind),
		evt.Tracking, nullable(evt.Error), nullable(evt.Notes), evt.Overlay, evt.OccurredAt,
	)
	observe("insert_event", err)
	if err != nil {
		return false, fmt.Errorf("failed to insert session event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetPracticeSession retrieves a session by ID
func (r *Repository) GetPracticeSession(ctx context.Context, id string) (*models.PracticeSession, error) {
	var s models.PracticeSession
	var routineID, mediaKind *string

	query := `
		SELECT id, routine_id, media_kind, notes, overlay, created_at, updated_at, closed_at
		FROM practice_sessions
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &routineID, &mediaKind, &s.Notes, &s.Overlay,
		&s.CreatedAt, &s.UpdatedAt, &s.ClosedAt,
	)
	observe("get_session", err)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: practice session %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get practice session: %w", err)
	}

	s.RoutineID = deref(routineID)
	s.MediaKind = deref(mediaKind)
	return &s, nil
}

// ListPracticeSessions lists sessions, newest first
func (r *Repository) ListPracticeSessions(ctx context.Context, limit, offset int) ([]*models.PracticeSession, error) {
	query := `
		SELECT id, routine_id, media_kind, notes, overlay, created_at, updated_at, closed_at
		FROM practice_sessions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	observe("list_sessions", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list practice sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.PracticeSession
	for rows.Next() {
		var s models.PracticeSession
		var routineID, mediaKind *string
		if err := rows.Scan(
			&s.ID, &routineID, &mediaKind, &s.Notes, &s.Overlay,
			&s.CreatedAt, &s.UpdatedAt, &s.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan practice session: %w", err)
		}
		s.RoutineID = deref(routineID)
		s.MediaKind = deref(mediaKind)
		sessions = append(sessions, &s)
	}

	return sessions, rows.Err()
}

// ListEvents returns a session's events in order
func (r *Repository) ListEvents(ctx context.Context, sessionID string) ([]*models.SessionEvent, error) {
	query := `
		SELECT id, session_id, type, routine_id, media_kind, tracking, error, notes, overlay, occurred_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY occurred_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, sessionID)
	observe("list_events", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer rows.Close()

	var events []*models.SessionEvent
	for rows.Next() {
		var evt models.SessionEvent
		var routineID, mediaKind, errMsg, notes *string
		if err := rows.Scan(
			&evt.ID, &evt.SessionID, &evt.Type, &routineID, &mediaKind,
			&evt.Tracking, &errMsg, &notes, &evt.Overlay, &evt.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		evt.RoutineID = deref(routineID)
		evt.MediaKind = deref(mediaKind)
		evt.Error = deref(errMsg)
		evt.Notes = deref(notes)
		events = append(events, &evt)
	}

	return events, rows.Err()
}

func observe(operation string, err error) {
	status := "success"
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		status = "error"
	}
	metrics.RecordDatabaseOperation(operation, status)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
