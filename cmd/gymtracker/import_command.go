package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json|->",
		Short: "Import days, exercises and the theme from a browser storage export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input io.Reader = cmd.InOrStdin()

			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open export: %w", err)
				}
				defer file.Close()

				input = file
			}

			return ctx.withServices(cmd, func(svcs *services) error {
				report, err := svcs.workout.ImportLegacy(cmd.Context(), input)
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), report)
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{{title: "Records"}, {title: "Imported", right: true}, {title: "Skipped", right: true}}, [][]string{
					{"Days", strconv.Itoa(report.Days), strconv.Itoa(report.SkippedDays)},
					{"Exercises", strconv.Itoa(report.Exercises), strconv.Itoa(report.SkippedExercises)},
				}))

				if report.DroppedMedia > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d exercises lost media that only existed in the browser\n", report.DroppedMedia)
				}

				if report.Theme != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", report.Theme)
				}

				return nil
			})
		},
	}
}
