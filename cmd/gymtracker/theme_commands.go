package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newThemeCommand(ctx *commandContext) *cobra.Command {
	themeCmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or choose the UI theme",
	}

	themeCmd.AddCommand(newThemeListCommand(ctx))
	themeCmd.AddCommand(newThemeSetCommand(ctx))

	return themeCmd
}

func newThemeListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List themes; the current one is marked",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				current, err := svcs.workout.CurrentTheme(cmd.Context())
				if err != nil {
					return err
				}

				themes := svcs.workout.Themes()

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), themes)
				}

				rows := make([][]string, 0, len(themes))

				for _, theme := range themes {
					marker := ""
					if theme.Key == current.Key {
						marker = "*"
					}

					rows = append(rows, []string{marker, theme.Key, theme.Name, theme.Accent})
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{
					{title: ""}, {title: "Key"}, {title: "Name"}, {title: "Accent"},
				}, rows))

				return nil
			})
		},
	}
}

func newThemeSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Choose a theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				theme, err := svcs.workout.SetTheme(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme.Name)

				return nil
			})
		},
	}
}
