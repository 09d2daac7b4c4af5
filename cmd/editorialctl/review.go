package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/editorial-workflow-service/internal/bootstrap"
	"github.com/helixir/editorial-workflow-service/internal/jobs"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "editorial decision commands",
}

var roundsCmd = &cobra.Command{
	Use:   "rounds",
	Short: "review round commands",
}

func init() {
	decisionsCmd.AddCommand(transferDecisionsCmd())
	roundsCmd.AddCommand(refreshRoundsCmd(), overdueCmd())
}

func transferDecisionsCmd() *cobra.Command {
	var from, to int64
	command := &cobra.Command{
		Use:   "transfer",
		Short: "Reassign every decision recorded by one editor to another (user merge)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				n, err := app.Review.TransferDecisions(ctx, from, to)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transferred %d decisions from editor %d to %d\n", n, from, to)
				return nil
			})
		},
	}
	command.Flags().Int64Var(&from, "from", 0, "editor user id to transfer from")
	command.Flags().Int64Var(&to, "to", 0, "editor user id to transfer to")
	_ = command.MarkFlagRequired("from")
	_ = command.MarkFlagRequired("to")
	return command
}

func refreshRoundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute the cached status of every active review round",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				res, err := jobs.NewRoundRefresh(app.Review, app.Config.Jobs, app.Logger).Refresh(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scanned %d rounds, %d changed, %d failed\n", res.Scanned, res.Changed, res.Failed)
				if res.Failed > 0 {
					return fmt.Errorf("%d review rounds failed to refresh", res.Failed)
				}
				return nil
			})
		},
	}
}

func overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Print the number of overdue review assignments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				n, err := app.Review.CountOverdue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}
