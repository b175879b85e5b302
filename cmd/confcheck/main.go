package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/confcheck/internal/shared"
	"github.com/codewithboateng/confcheck/internal/storage"
)

const (
	exitOK       = 0
	exitFindings = 1
	exitUsage    = 2
)

// exitError carries a process exit code out of a command. A nil err means
// the command already reported everything it had to say.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageErr(err error) error { return &exitError{code: exitUsage, err: err} }

// app holds what the persistent flags and config resolve to for one invocation.
type app struct {
	configPath string
	dbPath     string
	cfg        shared.Config
}

func (a *app) openDB() (*storage.DB, error) {
	if a.dbPath == "" {
		return nil, usageErr(errors.New("--db (or database.dsn in config) is required"))
	}
	return storage.OpenSQLite(a.dbPath)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "confcheck",
		Short: "Rule-conformance checker for source files",
		Long: `confcheck evaluates declarative rules (literal, regex or structural
predicates) against source files and reports findings as
path:line: severity: message.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := shared.LoadConfig(a.configPath)
			if err != nil {
				return usageErr(err)
			}
			a.cfg = c
			// precedence: flags > env > config > defaults
			if a.dbPath == "" {
				a.dbPath = c.Database.DSN
			}
			shared.InitLogger(cmd.ErrOrStderr(), c.Logging.Format, c.Logging.Level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to YAML config (default ./"+shared.DefaultConfigFile+" if present)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite run history path (empty disables history)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageErr(err) })

	root.AddCommand(
		newCheckCmd(a),
		newRulesCmd(a),
		newRunsCmd(a),
		newReportCmd(a),
		newDiffCmd(a),
		newWaiverCmd(a),
		newServeCmd(a),
		newUserCmd(a),
		newVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "confcheck:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "confcheck:", err)
	if strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	return exitFindings
}

// needArgs is cobra.MinimumNArgs with a usage exit code.
func needArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageErr(err)
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageErr(err)
	}
	return nil
}
