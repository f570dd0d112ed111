package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sheetsync/internal/app"
	"sheetsync/internal/domain"
	"sheetsync/internal/workbook"
)

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <pipeline> <file>...",
		Short: "Merge workbook files locally and write the result to disk",
		Long: "Runs the parse-normalize-merge steps of a pipeline and writes the merged\n" +
			"table to --out as .xlsx or .csv. Nothing touches the remote store and no\n" +
			"run is recorded.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closer, err := buildApp(cmd.Context(), overrides{})
			if err != nil {
				return err
			}
			defer closer()

			files, err := readInputFiles(args[1:])
			if err != nil {
				return err
			}
			if err := exportBatch(cmd.Context(), a, args[0], files, out); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"status": "ok", "path": out})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported merged table to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file, format chosen by extension (.xlsx or .csv)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// exportBatch merges the batch locally and writes it to a workbook file.
func exportBatch(ctx context.Context, a *app.App, name string, files []domain.InputFile, path string) error {
	batch, err := a.Pipelines.Prepare(ctx, name, files)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return writeTable(batch.Table, path)
}

// writeTable renders a merged table into the format named by the path
// extension.
func writeTable(t *domain.Table, path string) error {
	data, err := workbook.Export(t, path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
