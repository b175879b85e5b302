// Package api serves stored confcheck runs, findings, rules and waivers over
// HTTP/JSON. It reads the same SQLite history the CLI writes with --db.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/reporting"
	"github.com/codewithboateng/confcheck/internal/rules"
	"github.com/codewithboateng/confcheck/internal/storage"
)

// Store is the run history contract the API needs.
type Store interface {
	ListRuns(limit, offset int) ([]storage.RunRow, error)
	LoadRun(id string) (ir.Run, error)
	LoadLatestRun() (ir.Run, error)
	ListFindings(runID string, minSeverity ir.Severity) ([]ir.Finding, error)

	ListWaivers(activeOnly bool) ([]storage.Waiver, error)
	CreateWaiver(ruleID, path, pattern, reason, createdBy string, expires time.Time) (int64, error)
	RevokeWaiver(id int64) error
}

// UserStore is the auth/audit contract the API uses.
type UserStore interface {
	GetUserByUsername(string) (storage.User, string, error)
	CreateSession(int64, string, time.Time) error
	GetSession(string) (storage.User, error)
	DeleteSession(string) error
	LogAudit(username, action, resource string, meta map[string]any) error
}

type Server struct {
	DB              Store
	Users           UserStore
	Rules           *rules.RuleSet // listed by /rules and used to validate waivers; may be nil
	Logger          *slog.Logger
	AllowedOrigins  []string // "*" allows any origin; empty sends no CORS headers
	SessionDuration time.Duration
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", withAuth(s, s.handleLogout, "auth:logout"))
	mux.HandleFunc("GET /api/v1/me", withAuth(s, s.handleMe, "me"))

	mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/latest", s.handleGetLatest)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/findings", s.handleListFindings)
	mux.HandleFunc("GET /api/v1/diff", s.handleDiff)

	mux.HandleFunc("GET /api/v1/rules", s.handleRules)

	mux.HandleFunc("GET /api/v1/waivers", withAuth(s, s.handleListWaivers, "waivers:list"))
	mux.HandleFunc("POST /api/v1/waivers", withAdmin(s, s.handleCreateWaiver, "waivers:create"))
	mux.HandleFunc("POST /api/v1/waivers/{id}/revoke", withAdmin(s, s.handleRevokeWaiver, "waivers:revoke"))

	return s.logRequests(s.cors(mux))
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) pickCORSOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")
	for _, ao := range s.AllowedOrigins {
		if ao == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(origin, ao) {
			return origin
		}
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"timestamp":  time.Now().UTC(),
		"ir_version": ir.Version,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 20), 1, 200)
	offset := max(parseInt(q.Get("offset"), 0), 0)

	rows, err := s.DB.ListRuns(limit, offset)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	if rows == nil {
		rows = []storage.RunRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows, "limit": limit, "offset": offset,
	})
}

func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadLatestRun()
	if err != nil {
		s.runErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadRun(r.PathValue("id"))
	if err != nil {
		s.runErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	minSev := ir.SeverityInfo
	if v := r.URL.Query().Get("min_severity"); v != "" {
		sev, ok := ir.ParseSeverity(v)
		if !ok {
			s.err(w, http.StatusBadRequest, "min_severity must be info, warning or error")
			return
		}
		minSev = sev
	}
	if _, err := s.DB.LoadRun(id); err != nil {
		s.runErr(w, err)
		return
	}
	items, err := s.DB.ListFindings(id, minSev)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	if items == nil {
		items = []ir.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id, "min_severity": minSev, "items": items,
	})
}

// GET /api/v1/diff?base=<id>&head=<id>
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	baseID, headID := q.Get("base"), q.Get("head")
	if baseID == "" || headID == "" {
		s.err(w, http.StatusBadRequest, "base and head are required")
		return
	}
	base, err := s.DB.LoadRun(baseID)
	if err != nil {
		s.runErr(w, err)
		return
	}
	head, err := s.DB.LoadRun(headID)
	if err != nil {
		s.runErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reporting.Diff(baseID, headID, &base, &head))
}

func (s *Server) runErr(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		s.err(w, http.StatusNotFound, "run not found")
		return
	}
	s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
