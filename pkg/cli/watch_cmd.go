package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		dir         string
		schedule    string
		spreadsheet string
		credentials string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a drop directory and run pipelines on new files",
		Long: "Scans <dir>/<pipeline>[/<market>]/ on a cron schedule and runs a batch over\n" +
			"whatever files have been dropped there. Processed files move to .done/,\n" +
			"rejected ones to .failed/. Runs until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, closer, err := buildApp(ctx, overrides{credentials: credentials, spreadsheet: spreadsheet})
			if err != nil {
				return err
			}
			defer closer()

			if dir != "" {
				a.Cfg.WatchDir = dir
			}
			if schedule != "" {
				a.Cfg.WatchSchedule = schedule
			}
			if a.Cfg.WatchDir == "" {
				return errors.New("no watch directory: pass --dir or set SHEETSYNC_WATCH_DIR")
			}

			w := a.NewWatcher()
			if err := w.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (schedule %q), press Ctrl-C to stop\n",
				a.Cfg.WatchDir, a.Cfg.WatchSchedule)

			<-ctx.Done()
			w.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Drop directory to watch (overrides SHEETSYNC_WATCH_DIR)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression for scan ticks (overrides SHEETSYNC_WATCH_SCHEDULE)")
	cmd.Flags().StringVar(&spreadsheet, "spreadsheet", "", "Spreadsheet id (overrides SHEETSYNC_SPREADSHEET_ID)")
	cmd.Flags().StringVar(&credentials, "credentials", "", "Service account key file (overrides SHEETSYNC_CREDENTIALS_FILE)")

	return cmd
}
