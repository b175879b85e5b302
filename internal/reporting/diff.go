package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codewithboateng/confcheck/internal/ir"
)

type DiffPayload struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary DiffSummary   `json:"summary"`
	New     []DiffFinding `json:"new"`
	Removed []DiffFinding `json:"removed"`
	Changed []DiffChanged `json:"changed"`
}

type DiffSummary struct {
	NewCount     int `json:"new"`
	RemovedCount int `json:"removed"`
	ChangedCount int `json:"changed"`
}

type DiffFinding struct {
	RuleID   string      `json:"rule_id"`
	Path     string      `json:"path"`
	Line     int         `json:"line,omitempty"`
	Severity ir.Severity `json:"severity,omitempty"`
	Message  string      `json:"message,omitempty"`
}

type DiffChanged struct {
	Key     string      `json:"key"`
	Base    DiffFinding `json:"base"`
	Head    DiffFinding `json:"head"`
	Changed []string    `json:"fields_changed"`
}

// Diff pairs findings by (rule, path, match) so moved lines are not reported
// as churn. Repeated keys are paired in order; surplus ones are new or removed.
func Diff(baseID, headID string, base, head *ir.Run) DiffPayload {
	bm := map[string][]ir.Finding{}
	hm := map[string][]ir.Finding{}
	for _, f := range base.Findings {
		bm[keyOf(f)] = append(bm[keyOf(f)], f)
	}
	for _, f := range head.Findings {
		hm[keyOf(f)] = append(hm[keyOf(f)], f)
	}

	added := []DiffFinding{}
	removed := []DiffFinding{}
	changed := []DiffChanged{}

	// additions & changes
	for k, hs := range hm {
		bs := bm[k]
		for i, hf := range hs {
			if i >= len(bs) {
				added = append(added, asDiff(hf))
				continue
			}
			bf := bs[i]
			var fields []string
			if bf.Severity != hf.Severity {
				fields = append(fields, "severity")
			}
			if strings.TrimSpace(bf.Message) != strings.TrimSpace(hf.Message) {
				fields = append(fields, "message")
			}
			if len(fields) > 0 {
				changed = append(changed, DiffChanged{Key: k, Base: asDiff(bf), Head: asDiff(hf), Changed: fields})
			}
		}
	}
	// removals
	for k, bs := range bm {
		if n := len(hm[k]); n < len(bs) {
			for _, bf := range bs[n:] {
				removed = append(removed, asDiff(bf))
			}
		}
	}

	sortDiff(added)
	sortDiff(removed)
	sort.Slice(changed, func(i, j int) bool {
		if changed[i].Key != changed[j].Key {
			return changed[i].Key < changed[j].Key
		}
		return changed[i].Head.Line < changed[j].Head.Line
	})

	return DiffPayload{
		BaseID: baseID, HeadID: headID,
		Summary: DiffSummary{
			NewCount:     len(added),
			RemovedCount: len(removed),
			ChangedCount: len(changed),
		},
		New:     added,
		Removed: removed,
		Changed: changed,
	}
}

func WriteDiffJSON(baseID, headID, outDir string, base, head *ir.Run) (string, error) {
	path := filepath.Join(outDir, "diff_"+baseID+"__"+headID+".json")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(Diff(baseID, headID, base, head), "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b, 0o644)
}

func sortDiff(ds []DiffFinding) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.RuleID < b.RuleID
	})
}

func keyOf(f ir.Finding) string {
	sb := strings.Builder{}
	sb.WriteString(f.RuleID)
	sb.WriteByte('|')
	sb.WriteString(f.Path)
	sb.WriteByte('|')
	// the matched text drives logical identity, not the line number
	sb.WriteString(strings.TrimSpace(f.Match))
	return sb.String()
}

func asDiff(f ir.Finding) DiffFinding {
	return DiffFinding{
		RuleID:   f.RuleID,
		Path:     f.Path,
		Line:     f.Line,
		Severity: f.Severity,
		Message:  f.Message,
	}
}
