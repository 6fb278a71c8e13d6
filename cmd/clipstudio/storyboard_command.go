package main

import (
	"github.com/spf13/cobra"

	"clipstudio/config"
	"clipstudio/storyboard"
	"clipstudio/tui"
)

func newStoryboardCommand(ctx *commandContext) *cobra.Command {
	var clips int
	var outDir string

	cmd := &cobra.Command{
		Use:         "storyboard",
		Short:       "Edit and generate up to 11 clips side by side",
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.deps(cmd.Context(), outDir)
			if err != nil {
				return err
			}
			board := storyboard.New(deps.Client,
				storyboard.WithSlotCount(clips),
				storyboard.WithPollInterval(ctx.config.ClipPollInterval()),
			)
			defer board.Close()

			return runProgram(cmd.Context(), tui.NewStoryboard(board, deps))
		},
	}

	cmd.Flags().IntVarP(&clips, "clips", "n", config.DefaultSlotCount, "Number of clip slots to start with")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory saved clips are written to")
	return cmd
}
