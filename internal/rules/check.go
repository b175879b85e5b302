package rules

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewithboateng/confcheck/internal/ir"
)

// Options tune a Check call. The zero value checks every rule with
// GOMAXPROCS workers and no per-file time budget.
type Options struct {
	Workers           int
	FileTimeout       time.Duration
	SeverityThreshold ir.Severity     // rules below it are skipped
	Disabled          map[string]bool // rule IDs to skip
}

// Report is the outcome of one Check call.
type Report struct {
	Findings []ir.Finding
	Errors   []*ir.FileError
}

// HasErrors reports whether any error-severity finding or file failure exists.
func (r Report) HasErrors() bool {
	if len(r.Errors) > 0 {
		return true
	}
	for _, f := range r.Findings {
		if f.Severity == ir.SeverityError {
			return true
		}
	}
	return false
}

type fileResult struct {
	findings []ir.Finding
	err      *ir.FileError
}

// Active returns the rules a Check with opts evaluates, in load order.
func (s *RuleSet) Active(opts Options) []Rule {
	floor := opts.SeverityThreshold.Rank()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if opts.Disabled[r.ID] || r.Severity.Rank() < floor {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Check evaluates every applicable rule against every file. Files are
// independent and run on a bounded worker pool; each worker owns one result
// slot, and slots are merged and sorted once all workers finish.
func Check(ctx context.Context, rs *RuleSet, files []ir.Source, opts Options) Report {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	active := rs.Active(opts)
	slots := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range files {
		i := i
		g.Go(func() error {
			slots[i] = checkFile(gctx, active, files[i], opts.FileTimeout)
			return nil
		})
	}
	_ = g.Wait() // failures are carried per slot

	var rep Report
	for _, s := range slots {
		rep.Findings = append(rep.Findings, s.findings...)
		if s.err != nil {
			rep.Errors = append(rep.Errors, s.err)
		}
	}
	SortFindings(rep.Findings)
	SortFileErrors(rep.Errors)
	return rep
}

func checkFile(ctx context.Context, active []Rule, src ir.Source, budget time.Duration) fileResult {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	text := NewText(src.Text)
	var out []ir.Finding
	for _, r := range active {
		if ctx.Err() != nil {
			break
		}
		if !r.Applies(src.Path) {
			continue
		}
		for _, h := range r.Matcher.Find(ctx, text) {
			out = append(out, newFinding(r, src.Path, h))
		}
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && budget > 0 {
			err = fmt.Errorf("%w (%s)", ErrTimeout, budget)
		}
		return fileResult{err: &ir.FileError{Path: src.Path, Err: err}}
	}
	return fileResult{findings: out}
}

func newFinding(r Rule, path string, h Hit) ir.Finding {
	return ir.Finding{
		RuleID:   r.ID,
		Path:     path,
		Line:     h.Line,
		Column:   h.Column,
		Severity: r.Severity,
		Match:    h.Text,
		Message: r.render(MessageData{
			RuleID: r.ID,
			Path:   path,
			Line:   h.Line,
			Column: h.Column,
			Match:  h.Text,
			Limit:  h.Limit,
			Count:  h.Count,
		}),
	}
}

// SortFindings orders by path, then line (line-less findings after numbered
// ones), then rule ID, column and message.
func SortFindings(fs []ir.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			if a.Line == 0 || b.Line == 0 {
				return b.Line == 0
			}
			return a.Line < b.Line
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Message < b.Message
	})
}

func SortFileErrors(es []*ir.FileError) {
	sort.SliceStable(es, func(i, j int) bool { return es[i].Path < es[j].Path })
}
