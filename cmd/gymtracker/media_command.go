package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mkrupp/gymtracker/internal/domain"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Read stored media records",
	}

	mediaCmd.AddCommand(newMediaGetCommand(ctx))

	return mediaCmd
}

type mediaInfo struct {
	ID        domain.MediaID   `json:"id"`
	MIMEType  string           `json:"mimeType"`
	Kind      domain.MediaKind `json:"kind"`
	Size      int64            `json:"size"`
	CreatedAt string           `json:"createdAt"`
	Output    string           `json:"output,omitempty"`
}

func newMediaGetCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath string
		width      int
	)

	cmd := &cobra.Command{
		Use:   "get <media-id>",
		Short: "Write a media record's payload to a file, or describe it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaID, err := domain.ParseMediaID(args[0])
			if err != nil {
				return fmt.Errorf("parse media id: %w", err)
			}

			return ctx.withServices(cmd, func(svcs *services) error {
				var (
					media domain.Media
					found bool
					err   error
				)

				if width > 0 {
					media, found, err = svcs.thumbs.Thumbnail(cmd.Context(), mediaID, width)
				} else {
					media, found, err = svcs.thumbs.Get(cmd.Context(), mediaID)
				}

				if err != nil {
					return describe(err)
				}

				if !found {
					return fmt.Errorf("media %s: not found", mediaID)
				}

				info := mediaInfo{
					ID:        mediaID,
					MIMEType:  media.MIMEType(),
					Kind:      media.Kind(),
					Size:      media.Size(),
					CreatedAt: media.CreatedAt().Format("2006-01-02 15:04:05"),
					Output:    outputPath,
				}

				if outputPath != "" {
					if err := os.WriteFile(outputPath, media.Bytes(), 0o600); err != nil {
						return fmt.Errorf("write %s: %w", outputPath, err)
					}
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), info)
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{{title: "Field"}, {title: "Value"}}, [][]string{
					{"ID", string(info.ID)},
					{"Type", info.MIMEType},
					{"Kind", string(info.Kind)},
					{"Size", humanize.IBytes(uint64(info.Size))},
					{"Created", info.CreatedAt},
				}))

				if outputPath != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s\n", humanize.IBytes(uint64(info.Size)), outputPath)
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "File to write the payload to")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "Resize images to this width")

	return cmd
}
