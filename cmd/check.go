package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/app"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one fetch, diff, notify and persist cycle",
		Long: `Fetches the folder listing once, notifies about documents whose IDs were not
seen before and saves the current IDs. The first run only records the IDs.
Exits non-zero when the fetch, parse or state I/O fails.`,
		Args: cobra.NoArgs,
		RunE: withApp(runCheckCommand),
	}
	cmd.Flags().Bool("force-notify", false, "send the initialization and no-change heartbeat messages")
	cmd.Flags().Bool("daily", false, "send the daily status message when the Central-time hour matches notify.daily_hour")
	return cmd
}

func runCheckCommand(cmd *cobra.Command, appInstance *app.App) error {
	res, err := appInstance.Watcher().Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	appInstance.Logger().Info("check finished",
		zap.String("run_id", res.RunID),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("total", res.Total),
		zap.Int("new", len(res.NewDocuments)),
	)
	return nil
}
