package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/confcheck/internal/ir"
	"github.com/codewithboateng/confcheck/internal/reporting"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			rows, err := db.ListRuns(limit, offset)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tFINDINGS\tSOURCE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Findings, r.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var (
		runID, outDir, format, minSev string
		noColor                       bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a stored run",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			var run ir.Run
			if runID == "" {
				run, err = db.LoadLatestRun()
			} else {
				run, err = db.LoadRun(runID)
			}
			if err != nil {
				return fmt.Errorf("load run: %w", err)
			}
			if outDir == "" {
				outDir = a.cfg.Reporting.OutDir
			}
			switch format {
			case "text":
				sev, ok := ir.ParseSeverity(minSev)
				if !ok {
					return usageErr(fmt.Errorf("severity %q: want info, warning or error", minSev))
				}
				fs, err := db.ListFindings(run.ID, sev)
				if err != nil {
					return err
				}
				return reporting.WriteText(cmd.OutOrStdout(), fs, useColor(a.cfg.Reporting.Color, noColor))
			case "json":
				p, err := reporting.WriteJSON(run.ID, outDir, &run)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report OK\n  Run: %s\n  JSON: %s\n", run.ID, p)
			case "html":
				p, err := reporting.WriteHTML(run.ID, outDir, &run)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report OK\n  Run: %s\n  HTML: %s\n", run.ID, p)
			default:
				return usageErr(errors.New("--format must be text, json or html"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (default: latest)")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory for json/html")
	cmd.Flags().StringVar(&format, "format", "html", "text|json|html")
	cmd.Flags().StringVar(&minSev, "severity", "info", "Minimum severity for text output")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored text output")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	var base, head, outDir string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare findings of two stored runs",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if base == "" || head == "" {
				return usageErr(errors.New("--base and --head are required"))
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			br, err := db.LoadRun(base)
			if err != nil {
				return fmt.Errorf("load base run: %w", err)
			}
			hr, err := db.LoadRun(head)
			if err != nil {
				return fmt.Errorf("load head run: %w", err)
			}
			if outDir == "" {
				outDir = a.cfg.Reporting.OutDir
			}
			d := reporting.Diff(base, head, &br, &hr)
			path, err := reporting.WriteDiffJSON(base, head, outDir, &br, &hr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diff OK\n  new=%d removed=%d changed=%d\n  %s\n",
				d.Summary.NewCount, d.Summary.RemovedCount, d.Summary.ChangedCount, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "Base run ID")
	cmd.Flags().StringVar(&head, "head", "", "Head run ID")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory")
	return cmd
}
