package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sheetsync/internal/domain"
)

func newRunCmd() *cobra.Command {
	var (
		market      string
		deleteFrom  string
		dryRun      bool
		exportPath  string
		spreadsheet string
		credentials string
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline> <file>...",
		Short: "Run a pipeline over local workbook files",
		Long: "Parses the named CSV/TSV/XLSX files, merges them through the pipeline's\n" +
			"schema and syncs the result to the configured spreadsheet. With --dry-run\n" +
			"the remote store is never touched; the run is still recorded.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closer, err := buildApp(cmd.Context(), overrides{credentials: credentials, spreadsheet: spreadsheet})
			if err != nil {
				return err
			}
			defer closer()

			files, err := readInputFiles(args[1:])
			if err != nil {
				return err
			}

			opts := domain.SyncOptions{DryRun: dryRun}
			if deleteFrom != "" {
				from, err := time.Parse("2006-01-02", deleteFrom)
				if err != nil {
					return fmt.Errorf("--delete-from must be a YYYY-MM-DD date, got %q", deleteFrom)
				}
				opts.DeleteFrom = &from
			}
			if market == "" {
				market = a.Cfg.DefaultMarket
			}

			rc, err := a.Pipelines.PrepareRun(cmd.Context(), args[0], market, files)
			if err != nil {
				return err
			}

			res, runErr := a.Pipelines.SyncPrepared(cmd.Context(), rc, domain.TriggerCLI, opts)
			if res != nil {
				if getOutputFormat(cmd) == "json" {
					if err := printJSON(cmd.OutOrStdout(), res); err != nil {
						return err
					}
				} else {
					printBatchSummary(cmd.OutOrStdout(), res)
				}
			}
			if runErr != nil {
				return runErr
			}
			if res.Status == domain.RunStatusNoData {
				return errors.New("no rows extracted from the input files")
			}

			if exportPath != "" {
				if err := writeTable(rc.Batch.Table, exportPath); err != nil {
					return err
				}
				if getOutputFormat(cmd) != "json" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported merged table to %s\n", exportPath)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&market, "market", "", "Marketplace code for per-market pipelines (default from config)")
	cmd.Flags().StringVar(&deleteFrom, "delete-from", "", "Delete remote rows dated on or after this YYYY-MM-DD date before appending")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Merge and validate only, never touch the remote store")
	cmd.Flags().StringVar(&exportPath, "export", "", "Also write the merged table to this .xlsx or .csv file")
	cmd.Flags().StringVar(&spreadsheet, "spreadsheet", "", "Spreadsheet id (overrides SHEETSYNC_SPREADSHEET_ID)")
	cmd.Flags().StringVar(&credentials, "credentials", "", "Service account key file (overrides SHEETSYNC_CREDENTIALS_FILE)")

	return cmd
}
