package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newDayCommand(ctx *commandContext) *cobra.Command {
	dayCmd := &cobra.Command{
		Use:   "day",
		Short: "Manage workout days",
	}

	dayCmd.AddCommand(newDayAddCommand(ctx))
	dayCmd.AddCommand(newDayListCommand(ctx))
	dayCmd.AddCommand(newDayRemoveCommand(ctx))

	return dayCmd
}

func newDayAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>",
		Short: "Add a day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				day, err := svcs.workout.AddDay(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), day)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Added day %q (%s)\n", day.Title, day.ID)

				return nil
			})
		},
	}
}

func newDayListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List days",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				days, err := svcs.workout.ListDays(cmd.Context())
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), days)
				}

				if len(days) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No days yet")

					return nil
				}

				rows := make([][]string, 0, len(days))

				for _, day := range days {
					exercises, err := svcs.workout.ListExercises(cmd.Context(), day.ID)
					if err != nil {
						return err
					}

					rows = append(rows, []string{
						day.ID,
						day.Title,
						strconv.Itoa(len(exercises)),
						humanize.Time(day.CreatedAt),
					})
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{
					{title: "ID"}, {title: "Title"}, {title: "Exercises", right: true}, {title: "Created"},
				}, rows))

				return nil
			})
		},
	}
}

func newDayRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <day-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a day with all its exercises and media",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				if err := svcs.workout.DeleteDay(cmd.Context(), args[0]); err != nil {
					return describe(err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Deleted day %s\n", args[0])

				return nil
			})
		},
	}
}
