package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixir/editorial-workflow-service/internal/bootstrap"
	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/locale"
)

func dashboardCmd() *cobra.Command {
	var userID, contextID int64
	command := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard views and counts a user sees in a context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				views, err := app.Dashboard.Views(ctx, userID, contextID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VIEW\tNAME\tCOUNT")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", v.ID, v.Name, v.Count)
				}
				return tw.Flush()
			})
		},
	}
	command.Flags().Int64Var(&userID, "user", 0, "user id")
	command.Flags().Int64Var(&contextID, "context", 0, "context id")
	_ = command.MarkFlagRequired("user")
	_ = command.MarkFlagRequired("context")
	return command
}

func submissionsCmd() *cobra.Command {
	var (
		contextID int64
		search    string
		statuses  []string
		uiLocale  string
		limit     int
	)
	command := &cobra.Command{
		Use:   "submissions",
		Short: "Search submissions in a context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				c := collector.New().FilterByContextIDs(contextID).SearchPhrase(search).Limit(limit)
				if len(statuses) > 0 {
					filter := make([]domain.SubmissionStatus, len(statuses))
					for i, s := range statuses {
						filter[i] = domain.SubmissionStatus(s)
					}
					c.FilterByStatus(filter...)
				}
				tag := locale.Normalize(uiLocale)
				if tag == "" {
					tag = app.Locales.PrimaryLocale(contextID)
				}
				q, err := c.InLocale(tag).Build()
				if err != nil {
					return err
				}
				total, err := app.Runner.Count(ctx, q)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tSTAGE\tTITLE")
				for sub, err := range app.Runner.Submissions(ctx, q) {
					if err != nil {
						return err
					}
					title := ""
					if pub := domain.CurrentPublication(sub, sub.Publications); pub != nil {
						title = locale.Localize(pub.Title, tag, sub.Locale)
					}
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", sub.ID, sub.Status, sub.StageID, title)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d submissions\n", min(total, int64(q.Limit())), total)
				return nil
			})
		},
	}
	command.Flags().Int64Var(&contextID, "context", 0, "context id")
	command.Flags().StringVar(&search, "search", "", "search phrase (titles, authors, submission id)")
	command.Flags().StringSliceVar(&statuses, "status", nil, "submission statuses (queued, scheduled, published, declined)")
	command.Flags().StringVar(&uiLocale, "locale", "", "locale for titles and title ordering")
	command.Flags().IntVar(&limit, "limit", 25, "maximum rows")
	_ = command.MarkFlagRequired("context")
	return command
}
