package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/confcheck/internal/security"
	"github.com/codewithboateng/confcheck/internal/storage"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts for the serve API",
	}
	cmd.AddCommand(newUserAddCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account; the password is read from $CONFCHECK_PASSWORD or stdin",
		Args:  needArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != storage.RoleAdmin && role != storage.RoleViewer {
				return usageErr(fmt.Errorf("--role %q: want %s or %s", role, storage.RoleAdmin, storage.RoleViewer))
			}
			pw := os.Getenv("CONFCHECK_PASSWORD")
			if pw == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return usageErr(errors.New("no password on stdin"))
				}
				pw = strings.TrimRight(line, "\r\n")
			}
			hash, err := security.HashPassword(pw)
			if err != nil {
				return usageErr(err)
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := db.CreateUser(args[0], hash, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) created with id %d\n", args[0], role, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", storage.RoleViewer, "admin (may manage waivers) or viewer")
	return cmd
}
