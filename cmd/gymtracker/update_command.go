package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/gymtracker/internal/svc/updatesvc"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Check for newer releases",
	}

	updateCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Compare the running version against the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}

			status, err := updatesvc.NewChecker(cfg.Update, nil).Check(cmd.Context())
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			if !status.Available {
				fmt.Fprintf(cmd.OutOrStdout(), "You are using the latest version (%s)\n", status.Current)

				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Update available: v%s (running v%s)\nDownload: %s\n",
				status.Latest, status.Current, status.DownloadURL)

			return nil
		},
	})

	return updateCmd
}
