// Package main provides editorialctl, the operator CLI for the editorial
// workflow service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/editorial-workflow-service/internal/bootstrap"
)

var rootCmd = &cobra.Command{
	Use:   "editorialctl",
	Short: "editorial workflow operator tool",
	Example: `editorialctl db migrate up
editorialctl db migrate steps -n -1
editorialctl decisions transfer --from 12 --to 31
editorialctl rounds refresh
editorialctl rounds overdue
editorialctl dashboard --context 1 --user 4
editorialctl submissions --context 1 --search "coral reef" --status queued`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd, decisionsCmd, roundsCmd, dashboardCmd(), submissionsCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

// withApp loads configuration, wires the service and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, logger, err := bootstrap.LoadConfig("editorialctl")
	if err != nil {
		return err
	}
	// Counters from a one-shot process are never scraped.
	cfg.Metrics.Enabled = false

	app, err := bootstrap.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(cmd.Context(), app)
}
