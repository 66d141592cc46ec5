package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/gp-agenda-watcher/internal/app"
	"github.com/JakeFAU/gp-agenda-watcher/internal/state"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the persisted watcher state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the state from the configured backend as JSON",
		Args:  cobra.NoArgs,
		RunE:  withApp(runStateShowCommand),
	})
	return cmd
}

func runStateShowCommand(cmd *cobra.Command, appInstance *app.App) error {
	st, err := appInstance.Store().Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	data, err := state.Encode(st)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
