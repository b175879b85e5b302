package rules

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/storage"
)

type compiledWaiver struct {
	storage.Waiver
	paths []fileGlob
}

// ApplyWaivers filters out findings that match any active waiver.
// Returns (kept, waivedCount). A waiver with an invalid path pattern waives nothing.
func ApplyWaivers(in []ir.Finding, waivers []storage.Waiver) ([]ir.Finding, int) {
	if len(waivers) == 0 || len(in) == 0 {
		return in, 0
	}
	cws := make([]compiledWaiver, 0, len(waivers))
	for _, w := range waivers {
		cw := compiledWaiver{Waiver: w}
		if p := strings.TrimPrefix(strings.TrimSpace(w.Path), "./"); p != "" {
			g, err := glob.Compile(p, '/')
			if err != nil {
				continue
			}
			cw.paths = []fileGlob{{g: g, fullPath: strings.Contains(p, "/")}}
		}
		cws = append(cws, cw)
	}

	var out []ir.Finding
	waived := 0
nextFinding:
	for _, f := range in {
		for _, w := range cws {
			if w.RuleID != f.RuleID {
				continue
			}
			if w.paths != nil && !matchAny(w.paths, f.Path) {
				continue
			}
			if w.PatternSub != "" {
				ps := strings.ToUpper(w.PatternSub)
				if !strings.Contains(strings.ToUpper(f.Match), ps) &&
					!strings.Contains(strings.ToUpper(f.Message), ps) {
					continue
				}
			}
			waived++
			continue nextFinding
		}
		out = append(out, f)
	}
	return out, waived
}
