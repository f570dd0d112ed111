package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newPipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List the configured pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closer, err := buildApp(cmd.Context(), overrides{})
			if err != nil {
				return err
			}
			defer closer()

			specs := a.Pipelines.Registry().List()

			if getOutputFormat(cmd) == "json" {
				type summary struct {
					Name        string `json:"name"`
					Description string `json:"description,omitempty"`
					Worksheet   string `json:"worksheet"`
					PerMarket   bool   `json:"per_market"`
					Mode        string `json:"mode"`
					Columns     int    `json:"columns"`
				}
				out := make([]summary, 0, len(specs))
				for _, s := range specs {
					out = append(out, summary{
						Name:        s.Name,
						Description: s.Description,
						Worksheet:   s.Worksheet,
						PerMarket:   s.PerMarket,
						Mode:        s.Mode,
						Columns:     s.Schema.Len(),
					})
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			rows := make([][]string, 0, len(specs))
			for _, s := range specs {
				rows = append(rows, []string{
					s.Name,
					s.Mode,
					s.Worksheet,
					strconv.FormatBool(s.PerMarket),
					strconv.Itoa(s.Schema.Len()),
					s.Description,
				})
			}
			printTable(cmd.OutOrStdout(), []string{"NAME", "MODE", "WORKSHEET", "PER-MARKET", "COLUMNS", "DESCRIPTION"}, rows)
			return nil
		},
	}
}
