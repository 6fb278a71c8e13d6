package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clipstudio/publish"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var tags []string
	var privacy string

	cmd := &cobra.Command{
		Use:   "publish VIDEO",
		Short: "Upload a saved video to YouTube as a Short",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("video not found: %w", err)
			}
			return uploadVideo(cmd, ctx, publish.Request{
				Path:        args[0],
				Source:      publish.Source{Title: title, Tags: trimList(tags)},
				Privacy:     privacy,
				Description: description,
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Video title")
	cmd.Flags().StringVar(&description, "description", "", "Video description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Extra tags (repeat or comma separate)")
	cmd.Flags().StringVar(&privacy, "privacy", "", "private, unlisted or public (defaults to config)")
	return cmd
}

func uploadVideo(cmd *cobra.Command, ctx *commandContext, req publish.Request) error {
	uploader, err := publish.NewUploader(cmd.Context(), ctx.config.YouTube)
	if err != nil {
		return err
	}
	res, err := uploader.Publish(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", res.URL)
	return nil
}
