package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/reporting"
	"github.com/codewithboateng/confcheck/internal/rules"
	"github.com/codewithboateng/confcheck/internal/source"
	"github.com/codewithboateng/confcheck/internal/stats"
	"github.com/codewithboateng/confcheck/internal/storage"
)

type checkFlags struct {
	sel         ruleSelection
	format      string
	outDir      string
	workers     int
	fileTimeout time.Duration
	severity    string
	disabled    []string
	noColor     bool
}

func newCheckCmd(a *app) *cobra.Command {
	var f checkFlags
	cmd := &cobra.Command{
		Use:   "check <paths...>",
		Short: "Check files or directories against the rule set",
		Long: `Check evaluates every applicable rule against each file. Directories are
walked recursively. Exit status is 0 when there are no error-severity
findings and every file was read, 1 otherwise, 2 on configuration errors.`,
		Args: needArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, a, f, args)
		},
	}
	fl := cmd.Flags()
	f.sel.register(cmd)
	fl.StringVar(&f.format, "format", "", "Output format: text|json|html")
	fl.StringVar(&f.outDir, "out", "", "Write json/html reports to this directory")
	fl.IntVar(&f.workers, "workers", 0, "Concurrent files (0 = GOMAXPROCS)")
	fl.DurationVar(&f.fileTimeout, "file-timeout", 0, "Time budget per file (0 = none)")
	fl.StringVar(&f.severity, "severity", "", "Minimum severity to report: info|warning|error")
	fl.StringSliceVar(&f.disabled, "disable", nil, "Rule IDs to skip (repeatable)")
	fl.BoolVar(&f.noColor, "no-color", false, "Disable colored text output")
	return cmd
}

// resolve merges flags over config.
func (f checkFlags) resolve(a *app) checkFlags {
	c := a.cfg
	if f.format == "" {
		f.format = c.Reporting.Format
	}
	if f.workers == 0 {
		f.workers = c.Check.Workers
	}
	if f.fileTimeout == 0 {
		f.fileTimeout = c.Check.FileTimeout
	}
	if f.severity == "" {
		f.severity = c.Rules.SeverityThreshold
	}
	f.disabled = append(append([]string{}, c.Rules.Disabled...), f.disabled...)
	return f
}

func useColor(setting string, noColor bool) bool {
	if noColor {
		return false
	}
	switch strings.ToLower(setting) {
	case "always":
		return true
	case "never":
		return false
	}
	return !color.NoColor
}

func runCheck(cmd *cobra.Command, a *app, f checkFlags, paths []string) error {
	f = f.resolve(a)
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	threshold := ir.SeverityInfo
	if f.severity != "" {
		s, ok := ir.ParseSeverity(f.severity)
		if !ok {
			return usageErr(fmt.Errorf("severity %q: want info, warning or error", f.severity))
		}
		threshold = s
	}
	switch f.format {
	case "text", "json", "html":
	default:
		return usageErr(fmt.Errorf("format %q: want text, json or html", f.format))
	}

	// Rules are validated before any file is touched.
	rs, sources, err := f.sel.load(a)
	if err != nil {
		return usageErr(err)
	}
	disabled := map[string]bool{}
	for _, id := range f.disabled {
		if _, ok := rs.Get(id); !ok {
			slog.Warn("disabled rule is not in the rule set", "rule", id)
		}
		disabled[id] = true
	}

	srcs, readErrs, err := source.Read(paths, source.Filter{
		Include:  a.cfg.Check.Include,
		Exclude:  a.cfg.Check.Exclude,
		MaxBytes: a.cfg.Check.MaxFileBytes,
	})
	if err != nil {
		return usageErr(err)
	}
	slog.Debug("sources read", "files", len(srcs), "unreadable", len(readErrs), "rules", rs.Len())

	started := time.Now().UTC()
	rep := rules.Check(cmd.Context(), rs, srcs, rules.Options{
		Workers:           f.workers,
		FileTimeout:       f.fileTimeout,
		SeverityThreshold: threshold,
		Disabled:          disabled,
	})
	rep.Errors = append(rep.Errors, readErrs...)
	rules.SortFileErrors(rep.Errors)

	run := ir.Run{
		ID:        "run-" + uuid.NewString(),
		StartedAt: started,
		Source:    strings.Join(paths, ","),
		IRVersion: ir.Version,
		Context: ir.Context{
			RuleSources:       sources,
			RuleCount:         rs.Len(),
			SeverityThreshold: string(threshold),
			DisabledRules:     f.disabled,
		},
		Files: stats.MeasureAll(srcs),
	}

	var db *storage.DB
	if a.dbPath != "" {
		if db, err = a.openDB(); err != nil {
			return err
		}
		defer db.Close()
		ws, err := db.ListWaivers(true)
		if err != nil {
			return fmt.Errorf("list waivers: %w", err)
		}
		rep.Findings, run.Context.Waived = rules.ApplyWaivers(rep.Findings, ws)
	}
	run.Findings, run.Errors = rep.Findings, ir.Failures(rep.Errors)
	if db != nil {
		if err := db.SaveRun(&run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		slog.Info("run saved", "run", run.ID, "db", a.dbPath, "waived", run.Context.Waived)
	}

	if err := emit(stdout, stderr, a, f, &run, rep); err != nil {
		return err
	}
	if rep.HasErrors() {
		return &exitError{code: exitFindings}
	}
	return nil
}

func emit(stdout, stderr io.Writer, a *app, f checkFlags, run *ir.Run, rep rules.Report) error {
	colored := useColor(a.cfg.Reporting.Color, f.noColor)
	switch f.format {
	case "json":
		if f.outDir == "" {
			return reporting.EncodeJSON(stdout, run)
		}
		p, err := reporting.WriteJSON(run.ID, f.outDir, run)
		if err != nil {
			return err
		}
		fmt.Fprintln(stderr, "JSON:", p)
	case "html":
		out := f.outDir
		if out == "" {
			out = a.cfg.Reporting.OutDir
		}
		p, err := reporting.WriteHTML(run.ID, out, run)
		if err != nil {
			return err
		}
		fmt.Fprintln(stderr, "HTML:", p)
	default:
		if err := reporting.WriteText(stdout, rep.Findings, colored); err != nil {
			return err
		}
		if f.outDir != "" {
			if _, err := reporting.WriteJSON(run.ID, f.outDir, run); err != nil {
				return err
			}
		}
	}
	if err := reporting.WriteFileErrors(stderr, rep.Errors, colored); err != nil {
		return err
	}
	if f.format == "text" {
		by := stats.BySeverity(rep.Findings)
		fmt.Fprintf(stderr, "%d files, %d findings (%d error, %d warning, %d info)\n",
			len(run.Files), len(rep.Findings), by[ir.SeverityError], by[ir.SeverityWarning], by[ir.SeverityInfo])
	}
	return nil
}
