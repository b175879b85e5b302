package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newWaiverCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waiver",
		Short: "Manage waivers that suppress findings in stored runs",
	}
	cmd.AddCommand(newWaiverAddCmd(a), newWaiverListCmd(a), newWaiverRevokeCmd(a))
	return cmd
}

func newWaiverAddCmd(a *app) *cobra.Command {
	var (
		ruleID, path, pattern, reason, by string
		ttl                               time.Duration
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Waive findings of a rule, optionally narrowed by path glob and text",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ruleID == "" || reason == "" {
				return usageErr(errors.New("--rule and --reason are required"))
			}
			if ttl <= 0 {
				return usageErr(errors.New("--ttl must be positive"))
			}
			if by == "" {
				by = os.Getenv("USER")
			}
			if by == "" {
				by = "unknown"
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := db.CreateWaiver(ruleID, path, pattern, reason, by, time.Now().Add(ttl))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "waiver %d created\n", id)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&ruleID, "rule", "", "Rule ID to waive")
	fl.StringVar(&path, "path", "", "Path glob (default: any file)")
	fl.StringVar(&pattern, "pattern", "", "Substring the match or message must contain")
	fl.StringVar(&reason, "reason", "", "Why the findings are accepted")
	fl.StringVar(&by, "by", "", "Author (default $USER)")
	fl.DurationVar(&ttl, "ttl", 30*24*time.Hour, "How long the waiver stays active")
	return cmd
}

func newWaiverListCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List waivers",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			ws, err := db.ListWaivers(!all)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tRULE\tPATH\tPATTERN\tEXPIRES\tBY\tREASON")
			for _, w := range ws {
				exp := w.ExpiresAt.Format(time.RFC3339)
				if w.RevokedAt != nil {
					exp = "revoked"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", w.ID, w.RuleID, w.Path, w.PatternSub, exp, w.CreatedBy, w.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include revoked and expired waivers")
	return cmd
}

func newWaiverRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a waiver",
		Args:  needArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErr(fmt.Errorf("waiver id %q: %w", args[0], err))
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.RevokeWaiver(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "waiver %d revoked\n", id)
			return nil
		},
	}
}
