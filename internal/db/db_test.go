package db

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPragmasApplied verifies that essential PRAGMAs are set on new databases
func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var synchronous int
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	assert.Equal(t, 1, synchronous) // NORMAL

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestNewDB_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
}

func TestGetDatabaseStats(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.GetDatabaseStats()
	require.NoError(t, err)
	assert.Greater(t, stats.TotalSizeMB, 0.0)

	names := map[string]bool{}
	for _, tbl := range stats.Tables {
		names[tbl.Name] = true
	}
	assert.True(t, names["risk_analyses"])
	assert.True(t, names["risk_violations"])
	assert.True(t, names["schema_migrations"])
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)

	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	for _, path := range []string{"/debug/db-stats", "/debug/backup", "/debug/tailsql/"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			// Debug routes may refuse non-local callers, but must be registered.
			assert.NotEqual(t, http.StatusNotFound, w.Code)

			if path == "/debug/db-stats" && w.Code == http.StatusOK {
				var stats DatabaseStats
				require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
				assert.NotEmpty(t, stats.Tables)
			}
		})
	}
}

func TestServeBackup(t *testing.T) {
	db := newTestDB(t)

	w := httptest.NewRecorder()
	db.serveBackup(w, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "riskreport-backup-")
	assert.NotZero(t, w.Body.Len())
}
