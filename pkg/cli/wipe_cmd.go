package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sheetsync/internal/domain"
	"sheetsync/internal/service/pipeline"
)

func newWipeCmd() *cobra.Command {
	var (
		market      string
		from        string
		spreadsheet string
		credentials string
	)

	cmd := &cobra.Command{
		Use:   "wipe <pipeline>",
		Short: "Delete remote rows dated on or after a cutoff",
		Long: "Removes every row of the pipeline's worksheet whose date column is on or\n" +
			"after --from, without uploading anything. Append pipelines only.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff, err := time.Parse("2006-01-02", from)
			if err != nil {
				return fmt.Errorf("--from must be a YYYY-MM-DD date, got %q", from)
			}

			a, closer, err := buildApp(cmd.Context(), overrides{credentials: credentials, spreadsheet: spreadsheet})
			if err != nil {
				return err
			}
			defer closer()

			if market == "" {
				market = a.Cfg.DefaultMarket
			}

			res, wipeErr := a.Pipelines.Wipe(cmd.Context(), pipeline.WipeRequest{
				Pipeline: args[0],
				Market:   market,
				Trigger:  domain.TriggerCLI,
				From:     cutoff,
			})
			if res != nil {
				if getOutputFormat(cmd) == "json" {
					if err := printJSON(cmd.OutOrStdout(), res); err != nil {
						return err
					}
				} else {
					printBatchSummary(cmd.OutOrStdout(), res)
				}
			}
			return wipeErr
		},
	}

	cmd.Flags().StringVar(&market, "market", "", "Marketplace code for per-market pipelines (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "Cutoff date, rows dated on or after it are deleted (YYYY-MM-DD)")
	cmd.Flags().StringVar(&spreadsheet, "spreadsheet", "", "Spreadsheet id (overrides SHEETSYNC_SPREADSHEET_ID)")
	cmd.Flags().StringVar(&credentials, "credentials", "", "Service account key file (overrides SHEETSYNC_CREDENTIALS_FILE)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}
