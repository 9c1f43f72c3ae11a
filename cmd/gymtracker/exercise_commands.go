package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mkrupp/gymtracker/internal/domain"
	"github.com/mkrupp/gymtracker/internal/svc/workoutsvc"
)

func newExerciseCommand(ctx *commandContext) *cobra.Command {
	exerciseCmd := &cobra.Command{
		Use:     "exercise",
		Aliases: []string{"ex"},
		Short:   "Manage exercises",
	}

	exerciseCmd.AddCommand(newExerciseAddCommand(ctx))
	exerciseCmd.AddCommand(newExerciseListCommand(ctx))
	exerciseCmd.AddCommand(newExerciseRemoveCommand(ctx))
	exerciseCmd.AddCommand(newExerciseSearchCommand(ctx))

	return exerciseCmd
}

func newExerciseAddCommand(ctx *commandContext) *cobra.Command {
	var mediaPath string

	cmd := &cobra.Command{
		Use:   "add <day-id> <name>",
		Short: "Add an exercise, optionally with a photo or video",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, err := readUpload(mediaPath)
			if err != nil {
				return err
			}

			return ctx.withServices(cmd, func(svcs *services) error {
				ex, err := svcs.workout.AddExercise(cmd.Context(), args[0], strings.Join(args[1:], " "), upload)
				if err != nil {
					return describe(err)
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), ex)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Added exercise %q (%s)", ex.Name, ex.ID)

				if ex.HasMedia() {
					fmt.Fprintf(cmd.OutOrStdout(), " with %s %s (%s)",
						ex.MediaKind, ex.MediaID, humanize.Bytes(uint64(len(upload.Payload))))
				}

				fmt.Fprintln(cmd.OutOrStdout())

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mediaPath, "media", "m", "", "Photo or video file to attach")

	return cmd
}

// readUpload loads a media file; the MIME type comes from the extension and
// is otherwise sniffed by the store.
func readUpload(path string) (*workoutsvc.Upload, error) {
	if path == "" {
		return nil, nil //nolint:nilnil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}

	return &workoutsvc.Upload{
		Payload:  payload,
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
	}, nil
}

func exerciseRows(exercises []domain.Exercise) [][]string {
	rows := make([][]string, 0, len(exercises))

	for _, ex := range exercises {
		media := "-"

		switch {
		case ex.HasMedia():
			media = fmt.Sprintf("%s %s", ex.MediaKind, ex.MediaID)
		case ex.LegacyImage != "":
			media = "inline image"
		}

		rows = append(rows, []string{ex.ID, ex.Name, media, humanize.Time(ex.CreatedAt)})
	}

	return rows
}

var exerciseColumns = []column{{title: "ID"}, {title: "Name"}, {title: "Media"}, {title: "Created"}}

func newExerciseListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list <day-id>",
		Aliases: []string{"ls"},
		Short:   "List the exercises of a day",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				exercises, err := svcs.workout.ListExercises(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), exercises)
				}

				if len(exercises) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No exercises yet")

					return nil
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable(exerciseColumns, exerciseRows(exercises)))

				return nil
			})
		},
	}
}

func newExerciseRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <exercise-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete an exercise and its media",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				if err := svcs.workout.DeleteExercise(cmd.Context(), args[0]); err != nil {
					return describe(err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Deleted exercise %s\n", args[0])

				return nil
			})
		},
	}
}

func newExerciseSearchCommand(ctx *commandContext) *cobra.Command {
	var dayID string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find exercises by name, ignoring case and width",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(svcs *services) error {
				exercises, err := svcs.workout.SearchExercises(cmd.Context(), dayID, strings.Join(args, " "))
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), exercises)
				}

				if len(exercises) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching exercises")

					return nil
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable(exerciseColumns, exerciseRows(exercises)))

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dayID, "day", "", "Only search this day")

	return cmd
}
