package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bartek5186/mosync/internal/app"
	"github.com/bartek5186/mosync/internal/integrations/authenticity"
	"github.com/bartek5186/mosync/internal/integrations/odoo"
	logs "github.com/bartek5186/mosync/internal/logs"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir  string
	LogLevel string
	Quiet    bool // no console log output
}

// NewRootCommand creates the mosync command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "mosync",
		Short:   "Manufacturing order sync and production tracking",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logs.ParseLevel(opts.LogLevel)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory for config.json, app.log and the sqlite file (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "log to file only")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newRecomputeLossCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	return cmd
}

// Execute runs the command tree with a context cancelled on SIGINT/SIGTERM.
func Execute(version string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return NewRootCommand(version).ExecuteContext(ctx)
}

func openApp(cmd *cobra.Command, opts *RootOptions) (*app.App, error) {
	return app.Open(cmd.Context(), opts.DataDir, !opts.Quiet)
}

func newServeCommand(opts *RootOptions) *cobra.Command {
	var autoStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sync schedulers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context(), autoStart)
		},
	}
	cmd.Flags().BoolVar(&autoStart, "auto-start", false, "start both schedulers immediately (also auto_start in config.json)")
	return cmd
}

func newSyncCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and print its summary",
	}
	var sessionID string
	mo := &cobra.Command{
		Use:   "mo",
		Short: "Reconcile recent manufacturing orders from Odoo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts, odoo.Name, sessionID)
		},
	}
	mo.Flags().StringVar(&sessionID, "session-id", "", "Odoo session cookie (overrides ODOO_SESSION_ID)")

	auth := &cobra.Command{
		Use:   "authenticity",
		Short: "Sync the used-authenticity ledger and vendor master",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts, authenticity.Name, "")
		},
	}
	cmd.AddCommand(mo, auth)
	return cmd
}

func runOnce(cmd *cobra.Command, opts *RootOptions, job, sessionID string) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if sessionID != "" {
		if err := a.Syncer.SetSession(job, sessionID); err != nil {
			return err
		}
	}
	rep, err := a.Syncer.RunOnce(cmd.Context(), job)
	if rep != nil {
		if perr := printJSON(cmd.OutOrStdout(), rep); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if n := rep.Failures(); n > 0 {
		return fmt.Errorf("%s: %d item(s) failed", job, n)
	}
	return nil
}

func newRecomputeLossCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-loss",
		Short: "Recompute loss metrics for orders with both authenticity bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Store.RecomputeLoss(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d order(s)\n", n)
			return nil
		},
	}
}

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open migrates as a side effect
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.DB.Driver)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
