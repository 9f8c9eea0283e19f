package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an analysis session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusCanceled  SessionStatus = "canceled"
)

// Done reports whether the status is final.
func (s SessionStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Session is one analyzed clip.
type Session struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Source     string        `json:"source"`
	FPS        float64       `json:"fps"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FrameCount int           `json:"frame_count"`
	Status     SessionStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, name, source, fps, width, height, frame_count, status, error, created_at, updated_at`

// Create inserts a new session. An empty ID is filled with a new UUID and an
// empty status defaults to pending.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = StatusPending
	}
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Source, sess.FPS, sess.Width, sess.Height, sess.FrameCount,
		string(sess.Status), sess.Error, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// SetVideoInfo records the properties of the session's source.
func (r *SessionRepository) SetVideoInfo(id string, fps float64, width, height int) error {
	return r.exec(
		`UPDATE sessions SET fps = ?, width = ?, height = ?, updated_at = ? WHERE id = ?`,
		fps, width, height, time.Now(), id,
	)
}

// SetStatus updates the session status, its frame count and error message.
func (r *SessionRepository) SetStatus(id string, status SessionStatus, frameCount int, errMsg string) error {
	return r.exec(
		`UPDATE sessions SET status = ?, frame_count = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), frameCount, errMsg, time.Now(), id,
	)
}

// Delete removes a session and its records.
func (r *SessionRepository) Delete(id string) error {
	return r.exec(`DELETE FROM sessions WHERE id = ?`, id)
}

func (r *SessionRepository) exec(query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var status string
	err := row.Scan(&sess.ID, &sess.Name, &sess.Source, &sess.FPS, &sess.Width, &sess.Height,
		&sess.FrameCount, &status, &sess.Error, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.Status = SessionStatus(status)
	return sess, nil
}
