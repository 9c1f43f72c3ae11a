package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		jsonFlag    bool
		verboseFlag bool
	)

	ctx := newCommandContext(&jsonFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Local workout tracker with a media store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := ctx.ensureConfig(cmd.Context())

			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDayCommand(ctx))
	rootCmd.AddCommand(newExerciseCommand(ctx))
	rootCmd.AddCommand(newMediaCommand(ctx))
	rootCmd.AddCommand(newThemeCommand(ctx))
	rootCmd.AddCommand(newUpdateCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))

	return rootCmd
}
