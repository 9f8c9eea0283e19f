package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/record"
)

// newTestStore creates a Store backed by a file in a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func newTestSession(t *testing.T, s *Store) *Session {
	t.Helper()

	sess := &Session{Name: "clip", Source: "clip.mp4"}
	require.NoError(t, s.Sessions().Create(sess))
	return sess
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	_, err := os.Stat(dbPath)
	require.True(t, os.IsNotExist(err), "database file should not exist before creating store")

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist after creating store")
	assert.Equal(t, dbPath, s.Path())
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"sessions", "frame_records", "settings"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q should exist after migrations", table)
	}

	var idx string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_sessions_created_at",
	).Scan(&idx)
	assert.NoError(t, err)
}

func TestNewStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Sessions().Create(&Session{ID: "keep", Name: "keep"}))
	require.NoError(t, s.Close())

	s, err = New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Sessions().GetByID("keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Name)
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	assert.NoError(t, s.Close())

	_, err = s.DB().Exec("SELECT 1")
	assert.Error(t, err, "DB operations should fail after close")
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	require.NoError(t, s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled))
	assert.Equal(t, 1, fkEnabled, "foreign keys should be enabled")
}

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Name: "clip", Source: "/videos/clip.mp4"}
	require.NoError(t, repo.Create(sess))

	assert.NotEmpty(t, sess.ID, "ID should be generated")
	assert.Equal(t, StatusPending, sess.Status)
	assert.False(t, sess.CreatedAt.IsZero())

	got, err := repo.GetByID(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "clip", got.Name)
	assert.Equal(t, "/videos/clip.mp4", got.Source)
	assert.Equal(t, StatusPending, got.Status)
}

func TestSessionRepository_CreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	require.NoError(t, repo.Create(&Session{ID: "dup", Name: "a"}))
	assert.Error(t, repo.Create(&Session{ID: "dup", Name: "b"}))
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Sessions().GetByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sessions, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(&Session{Name: name}))
	}

	sessions, err = repo.List()
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestSessionRepository_Updates(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()
	sess := newTestSession(t, s)

	require.NoError(t, repo.SetVideoInfo(sess.ID, 29.97, 1920, 1080))
	require.NoError(t, repo.SetStatus(sess.ID, StatusFailed, 42, "decoder exploded"))

	got, err := repo.GetByID(sess.ID)
	require.NoError(t, err)
	assert.InDelta(t, 29.97, got.FPS, 1e-9)
	assert.Equal(t, 1920, got.Width)
	assert.Equal(t, 1080, got.Height)
	assert.Equal(t, 42, got.FrameCount)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "decoder exploded", got.Error)

	assert.ErrorIs(t, repo.SetStatus("missing", StatusCompleted, 0, ""), ErrNotFound)
	assert.ErrorIs(t, repo.SetVideoInfo("missing", 30, 1, 1), ErrNotFound)
}

func TestSessionRepository_RejectsUnknownStatus(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	err := s.Sessions().SetStatus(sess.ID, SessionStatus("exploded"), 0, "")
	assert.Error(t, err)
}

func TestSessionStatus_Done(t *testing.T) {
	tests := []struct {
		status SessionStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCanceled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Done())
		})
	}
}

func testRows(frames ...int) []record.Row {
	rows := make([]record.Row, 0, len(frames))
	for _, f := range frames {
		row := record.New(f).Row()
		rows = append(rows, row)
	}
	return rows
}

func TestRecordRepository_AppendAndList(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	repo := s.Records()

	require.NoError(t, repo.Append(sess.ID, testRows(2, 0, 1)))

	rows, err := repo.List(sess.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		frame, ok := row.Frame()
		require.True(t, ok)
		assert.Equal(t, i, frame, "rows should be ordered by frame")
	}

	want := testRows(1)[0]
	if diff := cmp.Diff(want, rows[1]); diff != "" {
		t.Errorf("stored row mismatch (-want +got):\n%s", diff)
	}

	n, err := repo.Count(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecordRepository_AppendReplaces(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	repo := s.Records()

	require.NoError(t, repo.Append(sess.ID, testRows(0)))

	row := testRows(0)[0]
	row[record.StatKey(record.Left, record.StatSpeed)] = "0.5"
	require.NoError(t, repo.Append(sess.ID, []record.Row{row}))

	got, err := repo.Get(sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "0.5", got[record.StatKey(record.Left, record.StatSpeed)])

	n, err := repo.Count(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordRepository_AppendRejectsRowWithoutFrame(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	repo := s.Records()

	rows := append(testRows(0), record.Row{"left_speed": "1"})
	assert.Error(t, repo.Append(sess.ID, rows))

	n, err := repo.Count(sess.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "failed batch should be rolled back")
}

func TestRecordRepository_AppendUnknownSession(t *testing.T) {
	s := newTestStore(t)

	assert.Error(t, s.Records().Append("missing", testRows(0)), "foreign key should reject unknown session")
}

func TestRecordRepository_Range(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	repo := s.Records()
	require.NoError(t, repo.Append(sess.ID, testRows(0, 1, 2, 3, 4, 5)))

	tests := []struct {
		name       string
		start, end int
		want       []int
	}{
		{"middle", 1, 3, []int{1, 2, 3}},
		{"single", 4, 4, []int{4}},
		{"past end", 4, 100, []int{4, 5}},
		{"empty", 10, 20, nil},
		{"inverted", 3, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := repo.Range(sess.ID, tt.start, tt.end)
			require.NoError(t, err)

			var got []int
			for _, row := range rows {
				f, _ := row.Frame()
				got = append(got, f)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordRepository_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)

	_, err := s.Records().Get(sess.ID, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRepository_CascadeOnSessionDelete(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	require.NoError(t, s.Records().Append(sess.ID, testRows(0, 1)))

	require.NoError(t, s.Sessions().Delete(sess.ID))

	n, err := s.Records().Count(sess.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.Sessions().Delete(sess.ID), ErrNotFound)
}

func TestRecordRepository_DeleteBySession(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s)
	require.NoError(t, s.Records().Append(sess.ID, testRows(0, 1)))

	require.NoError(t, s.Records().DeleteBySession(sess.ID))

	n, err := s.Records().Count(sess.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSettingsRepository_GetSet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	_, err := repo.Get("theme")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Set("theme", "dark"))
	require.NoError(t, repo.Set("theme", "light"))

	got, err := repo.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", got)
}

func TestSettingsRepository_Visualization(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()
	defaults := config.DefaultVisualization()

	got, err := repo.Visualization(defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, got, "nothing stored should return fallback")

	v := defaults
	v.TrailLength = 60
	v.HeatmapColormap = config.ColormapHot
	require.NoError(t, repo.SetVisualization(v))

	got, err = repo.Visualization(defaults)
	require.NoError(t, err)
	if diff := cmp.Diff(v, got); diff != "" {
		t.Errorf("visualization mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsRepository_VisualizationPartial(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()
	defaults := config.DefaultVisualization()

	require.NoError(t, repo.Set(keyVisualization, `{"trail_length": 12}`))

	got, err := repo.Visualization(defaults)
	require.NoError(t, err)

	want := defaults
	want.TrailLength = 12
	assert.Equal(t, want, got)
}

func TestSettingsRepository_SetVisualizationInvalid(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	v := config.DefaultVisualization()
	v.Opacity = 2
	assert.Error(t, repo.SetVisualization(v))

	_, err := repo.Get(keyVisualization)
	assert.ErrorIs(t, err, ErrNotFound, "invalid settings should not be stored")
}
