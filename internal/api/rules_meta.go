package api

import (
	"net/http"

	"github.com/codewithboateng/confcheck/internal/rules"
)

type ruleMeta struct {
	ID       string   `json:"id"`
	Summary  string   `json:"summary,omitempty"`
	Severity string   `json:"severity"`
	Matcher  string   `json:"matcher"`
	Files    []string `json:"files"`
	Message  string   `json:"message"`
}

// GET /api/v1/rules lists the rule set the server was started with.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	out := []ruleMeta{}
	if s.Rules != nil {
		for _, rr := range s.Rules.Rules() {
			out = append(out, ruleMeta{
				ID:       rr.ID,
				Summary:  rr.Summary,
				Severity: string(rr.Severity),
				Matcher:  rr.Matcher.Kind(),
				Files:    rr.Files,
				Message:  rr.Message,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      out,
		"count":      len(out),
		"predicates": rules.PredicateNames(),
	})
}
