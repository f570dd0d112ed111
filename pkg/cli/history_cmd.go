package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sheetsync/internal/db/repository"
)

func newHistoryCmd() *cobra.Command {
	var (
		pipelineName string
		status       string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the local run-history store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closer, err := buildApp(cmd.Context(), overrides{})
			if err != nil {
				return err
			}
			defer closer()

			runs, err := a.Runs.ListRuns(cmd.Context(), repository.RunFilter{
				Pipeline: pipelineName,
				Status:   status,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), runs)
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				files := fmt.Sprintf("%d/%d", r.FilesProcessed, r.FilesTotal)
				rows = append(rows, []string{
					r.ID,
					r.Pipeline,
					r.Market,
					r.Trigger,
					r.Status,
					files,
					strconv.Itoa(r.RowsWritten),
					r.StartedAt.Format("2006-01-02 15:04:05"),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "PIPELINE", "MARKET", "TRIGGER", "STATUS", "FILES", "ROWS", "STARTED"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "Only show runs of this pipeline")
	cmd.Flags().StringVar(&status, "status", "", "Only show runs with this status (SYNCED, PARTIAL, NO_DATA, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}
