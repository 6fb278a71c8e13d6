package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"clipstudio/client"
	"clipstudio/config"
	"clipstudio/events"
	"clipstudio/refimage"
	"clipstudio/storage"
	"clipstudio/storyboard"
	"clipstudio/types"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var prompts []string
	var duration int
	var refPath string
	var outDir string
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate clips without the TUI and save them",
		Example: `  clipstudio generate -p "a red kite over the dunes" -d 8
  clipstudio generate -p "wide shot of a harbor" -p "close up of ropes" --ref harbor.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(prompts) == 0 {
				return errors.New("at least one --prompt is required")
			}
			if len(prompts) > config.MaxSlots {
				return fmt.Errorf("at most %d prompts are supported, got %d", config.MaxSlots, len(prompts))
			}

			var ref *refimage.Image
			if refPath != "" {
				img, err := refimage.Load(refPath)
				if err != nil {
					return err
				}
				ref = img
			}

			key, err := ctx.apiKey(cmd, assumeYes)
			if err != nil {
				return err
			}
			archiver, err := ctx.archiver(cmd.Context())
			if err != nil {
				return err
			}
			dispatcher, err := ctx.dispatcher()
			if err != nil {
				return err
			}

			api := ctx.client()
			done := make(chan int, len(prompts))
			board := storyboard.New(api,
				storyboard.WithSlotCount(len(prompts)),
				storyboard.WithPollInterval(ctx.config.ClipPollInterval()),
				storyboard.WithListener(func(index int, slot storyboard.Slot) {
					log.Debug().Int("slot", index+1).Str("status", string(slot.Status)).Str("clip_id", slot.ClipID).Msg("Slot updated")
					if e, ok := events.FromSlot(index, slot, api.BaseURL()); ok {
						if dispatcher != nil {
							dispatcher.Send(e)
						}
						done <- index
					}
				}),
			)
			defer board.Close()

			for i, p := range prompts {
				if err := board.SetPrompt(i, p); err != nil {
					return err
				}
				if err := board.SetDuration(i, duration); err != nil {
					return err
				}
				if ref != nil {
					if err := board.AttachReference(i, ref); err != nil {
						return err
					}
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generating %d clip(s), estimated cost %s\n", len(prompts), storyboard.FormatCost(board.TotalCost()))
			for i := range prompts {
				if err := board.Generate(i, key); err != nil {
					return err
				}
			}

			for remaining := len(prompts); remaining > 0; remaining-- {
				select {
				case <-done:
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}

			failed := 0
			for i, slot := range board.Slots() {
				if slot.Status != types.ClipCompleted {
					failed++
					fmt.Fprintf(out, "Clip %d failed: %s\n", i+1, slot.ErrorText())
					continue
				}
				path := filepath.Join(outDir, fmt.Sprintf("clip_%s.mp4", slot.ClipID))
				loc, err := saveClipFile(cmd.Context(), api, archiver, path, slot)
				if err != nil {
					failed++
					fmt.Fprintf(out, "Clip %d: %v\n", i+1, err)
					continue
				}
				line := fmt.Sprintf("Clip %d saved to %s", i+1, path)
				if loc != "" {
					line += " (archived to " + loc + ")"
				}
				fmt.Fprintln(out, line)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d clips failed", failed, len(prompts))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&prompts, "prompt", "p", nil, "Clip prompt (repeat for several clips)")
	cmd.Flags().IntVarP(&duration, "duration", "d", config.DefaultClipDuration, "Clip length in seconds ("+durationChoices()+")")
	cmd.Flags().StringVar(&refPath, "ref", "", "Reference image applied to every clip")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory clips are written to")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Use the server's default key without asking when none is saved")
	return cmd
}

const downloadTimeout = 5 * time.Minute

func saveClipFile(ctx context.Context, api *client.Client, archiver storage.Archiver, path string, slot storyboard.Slot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	meta := storage.Metadata{Kind: "clip", ID: slot.ClipID, Prompt: slot.Prompt}
	return storage.Save(ctx, path, archiver, meta, func(ctx context.Context, w io.Writer) error {
		_, err := api.DownloadClip(ctx, slot.ClipID, w)
		return err
	})
}

func durationChoices() string {
	parts := make([]string, len(config.ClipDurations))
	for i, d := range config.ClipDurations {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, ", ")
}
