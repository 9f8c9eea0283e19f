package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/handtrace/internal/record"
)

// RecordRepository stores the flat frame records of a session.
type RecordRepository struct {
	db *sql.DB
}

// Records returns the record repository for this store.
func (s *Store) Records() *RecordRepository {
	return &RecordRepository{db: s.db}
}

// Append inserts rows for a session in a single transaction. A row whose
// frame already exists replaces it.
func (r *RecordRepository) Append(sessionID string, rows []record.Row) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO frame_records (session_id, frame_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		frame, ok := row.Frame()
		if !ok {
			return fmt.Errorf("row %d has no frame index", i)
		}
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode frame %d: %w", frame, err)
		}
		if _, err := stmt.Exec(sessionID, frame, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// List returns every row of a session ordered by frame index.
func (r *RecordRepository) List(sessionID string) ([]record.Row, error) {
	return r.query(
		`SELECT data FROM frame_records WHERE session_id = ? ORDER BY frame_index`,
		sessionID,
	)
}

// Range returns rows with start <= frame_index <= end, ordered by frame index.
func (r *RecordRepository) Range(sessionID string, start, end int) ([]record.Row, error) {
	return r.query(
		`SELECT data FROM frame_records
		 WHERE session_id = ? AND frame_index BETWEEN ? AND ?
		 ORDER BY frame_index`,
		sessionID, start, end,
	)
}

// Get returns the row of a single frame.
func (r *RecordRepository) Get(sessionID string, frame int) (record.Row, error) {
	var data string
	err := r.db.QueryRow(
		`SELECT data FROM frame_records WHERE session_id = ? AND frame_index = ?`,
		sessionID, frame,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var row record.Row
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", frame, err)
	}
	return row, nil
}

// Count returns the number of stored rows of a session.
func (r *RecordRepository) Count(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM frame_records WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

// DeleteBySession removes all rows of a session.
func (r *RecordRepository) DeleteBySession(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM frame_records WHERE session_id = ?`, sessionID)
	return err
}

func (r *RecordRepository) query(query string, args ...any) ([]record.Row, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var row record.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
