package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sheetsync/internal/domain"
)

// getOutputFormat returns the effective output format from the root command's
// persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, columns []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// printBatchSummary renders the result of one run or wipe in the shape
// operators read in a terminal.
func printBatchSummary(w io.Writer, res *domain.BatchResult) {
	fmt.Fprintf(w, "Run %s  %s", res.RunID, res.Pipeline)
	if res.Market != "" {
		fmt.Fprintf(w, " (%s)", res.Market)
	}
	if res.Worksheet != "" {
		fmt.Fprintf(w, " -> %s", res.Worksheet)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status:  %s\n", res.Status)
	if res.FilesTotal > 0 {
		fmt.Fprintf(w, "Files:   %d processed, %d rejected of %d\n",
			len(res.Processed), len(res.Rejected), res.FilesTotal)
		for _, rej := range res.Rejected {
			fmt.Fprintf(w, "  rejected %s: %s\n", rej.File, rej.Reason)
		}
	}
	fmt.Fprintf(w, "Rows:    %d merged, %d written", res.RowsMerged, res.RowsWritten)
	if res.Chunks > 0 {
		fmt.Fprintf(w, " in %d chunks", res.Chunks)
	}
	if res.RowsDeleted > 0 {
		fmt.Fprintf(w, ", %d deleted", res.RowsDeleted)
	}
	fmt.Fprintln(w)
	if res.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", res.Error)
	}
}
