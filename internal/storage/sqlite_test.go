package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/storage"
)

func openTemp(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "confcheck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRun(id string, at time.Time) *ir.Run {
	return &ir.Run{
		ID:        id,
		StartedAt: at,
		Source:    "src",
		IRVersion: ir.Version,
		Files:     []ir.FileStat{{Path: "a.js", Lines: 3, Bytes: 20}},
		Findings: []ir.Finding{
			{RuleID: "no-eval", Path: "a.js", Line: 1, Column: 1, Severity: ir.SeverityError, Message: "avoid eval", Match: "eval("},
			{RuleID: "no-var", Path: "a.js", Line: 3, Column: 1, Severity: ir.SeverityWarning, Message: "use let/const", Match: "var"},
			{RuleID: "final-newline", Path: "a.js", Severity: ir.SeverityInfo, Message: "no newline"},
		},
		Errors: []ir.FileFailure{{Path: "big.bin", Error: "too large"}},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTemp(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, db.SaveRun(sampleRun("run-1", at)))

	got, err := db.LoadRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.True(t, got.StartedAt.Equal(at))
	assert.Len(t, got.Findings, 3)
	assert.Equal(t, []ir.FileFailure{{Path: "big.bin", Error: "too large"}}, got.Errors)

	// Saving again replaces findings instead of duplicating them.
	require.NoError(t, db.SaveRun(sampleRun("run-1", at)))
	fs, err := db.ListFindings("run-1", ir.SeverityInfo)
	require.NoError(t, err)
	assert.Len(t, fs, 3)
	assert.Equal(t, "no-eval", fs[0].RuleID)
	assert.Equal(t, "eval(", fs[0].Match)
}

func TestLoadRun_NotFound(t *testing.T) {
	db := openTemp(t)
	_, err := db.LoadRun("missing")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
	_, err = db.LoadLatestRun()
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestListRunsAndLatest(t *testing.T) {
	db := openTemp(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveRun(sampleRun("run-old", base)))
	require.NoError(t, db.SaveRun(sampleRun("run-new", base.Add(time.Hour))))

	rows, err := db.ListRuns(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run-new", rows[0].ID)
	assert.Equal(t, 3, rows[0].Findings)

	latest, err := db.LoadLatestRun()
	require.NoError(t, err)
	assert.Equal(t, "run-new", latest.ID)

	page, err := db.ListRuns(1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "run-old", page[0].ID)
}

func TestListFindings_MinSeverity(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.SaveRun(sampleRun("run-1", time.Now())))

	fs, err := db.ListFindings("run-1", ir.SeverityWarning)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, ir.SeverityError, fs[0].Severity)
	assert.Equal(t, ir.SeverityWarning, fs[1].Severity)

	fs, err = db.ListFindings("run-1", ir.SeverityError)
	require.NoError(t, err)
	assert.Len(t, fs, 1)
}

func TestWaivers(t *testing.T) {
	db := openTemp(t)
	active, err := db.CreateWaiver("no-var", "src/*.js", "", "legacy code", "ana", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = db.CreateWaiver("no-eval", "", "", "expired", "ana", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	ws, err := db.ListWaivers(true)
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, active, ws[0].ID)
	assert.Equal(t, "src/*.js", ws[0].Path)
	assert.Empty(t, ws[0].PatternSub)

	all, err := db.ListWaivers(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.RevokeWaiver(active))
	assert.ErrorIs(t, db.RevokeWaiver(active), storage.ErrWaiverNotFound)
	assert.ErrorIs(t, db.RevokeWaiver(9999), storage.ErrWaiverNotFound)

	ws, err = db.ListWaivers(true)
	require.NoError(t, err)
	assert.Empty(t, ws)

	all, err = db.ListWaivers(false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	var revoked int
	for _, w := range all {
		if w.RevokedAt != nil {
			revoked++
		}
	}
	assert.Equal(t, 1, revoked)
}
