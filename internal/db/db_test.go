package db

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/ingest"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/session"
	"github.com/banshee-data/riggy/internal/window"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "riggy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSummary(id string, start time.Time) *session.Summary {
	tilt := window.Describe([]float64{1, 2, 90})
	vib := window.Describe([]float64{0.1, 0.4, 0.2})
	return &session.Summary{
		ID:        id,
		StartedAt: start,
		StoppedAt: start.Add(90 * time.Second),
		Config: config.SessionConfig{
			TiltThreshold: config.Float64(75),
			VibrationUnit: config.String("mps2"),
		},
		Samples:     3,
		Tilt:        tilt,
		Vibration:   vib,
		AlertCounts: map[alert.Kind]int{alert.Tilt: 1, alert.Vibration: 0},
		Alerts: []alert.Event{
			{Kind: alert.Tilt, Time: start.Add(10 * time.Second), Value: 76.5},
		},
		Datagrams: ingest.DatagramCounts{Received: 30, Accepted: 23, Malformed: 2, NotApplicable: 5},
	}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	db := openTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	assert.NoError(t, db.MigrateUp())
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('sessions') WHERE name = 'datagrams_received'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveAndLoadSession(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	want := testSummary("a1", start)

	require.NoError(t, db.SaveSession(ctx, want))

	got, err := db.Session(ctx, "a1")
	require.NoError(t, err)
	// Datagrams.Accepted is derived, not stored.
	want.Datagrams.Accepted = 0
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveSession_ReplacesExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveSession(ctx, testSummary("a1", start)))
	s := testSummary("a1", start)
	s.Alerts = nil
	s.Samples = 7
	require.NoError(t, db.SaveSession(ctx, s))

	got, err := db.Session(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Samples)
	assert.Empty(t, got.Alerts)
}

func TestSessions_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, db.SaveSession(ctx, testSummary(id, base.Add(time.Duration(i)*time.Hour))))
	}

	list, err := db.Sessions(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
		assert.Nil(t, s.Alerts)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)

	list, err = db.Sessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSession_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Session(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteSession(context.Background(), "missing"), ErrNotFound)
}

func TestDeleteSession_CascadesAlerts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.SaveSession(ctx, testSummary("gone", time.Now())))
	require.NoError(t, db.DeleteSession(ctx, "gone"))

	evs, err := db.SessionAlerts(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveSession(context.Background(), testSummary("b1", time.Now())))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, len(b) > 16 && string(b[:15]) == "SQLite format 3")
}

func TestMigrateLogger_Prefixes(t *testing.T) {
	var got []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	migrateLogger{}.Printf("applied %d", 2)

	assert.Equal(t, []string{"[migrate] applied 2"}, got)
	assert.False(t, migrateLogger{}.Verbose())
}
