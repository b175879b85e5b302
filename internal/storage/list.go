package storage

import (
	"time"

	"github.com/codewithboateng/confcheck/internal/ir"
)

// ListRuns returns a lightweight list of runs with counts.
func (db *DB) ListRuns(limit, offset int) ([]RunRow, error) {
	const q = `
		SELECT r.id, r.started_at, r.source, r.ir_version,
		       (SELECT COUNT(1) FROM findings f WHERE f.run_id = r.id) AS findings
		  FROM runs r
		 ORDER BY r.started_at DESC, r.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var rr RunRow
		var startedAtStr string
		if err := rows.Scan(&rr.ID, &startedAtStr, &rr.Source, &rr.IRVersion, &rr.Findings); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAtStr); err == nil {
			rr.StartedAt = t
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// ListFindings returns findings for a run at or above a minimum severity, in stored order.
func (db *DB) ListFindings(runID string, minSeverity ir.Severity) ([]ir.Finding, error) {
	const q = `
		SELECT rule_id, path, line, col, severity, message, excerpt
		  FROM findings
		 WHERE run_id = ?
		   AND (CASE severity WHEN 'error' THEN 3 WHEN 'warning' THEN 2 ELSE 1 END) >= ?
		 ORDER BY seq`
	rows, err := db.conn.Query(q, runID, minSeverity.Rank())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ir.Finding
	for rows.Next() {
		var f ir.Finding
		var sev string
		if err := rows.Scan(&f.RuleID, &f.Path, &f.Line, &f.Column, &sev, &f.Message, &f.Match); err != nil {
			return nil, err
		}
		f.Severity = ir.Severity(sev)
		out = append(out, f)
	}
	return out, rows.Err()
}
