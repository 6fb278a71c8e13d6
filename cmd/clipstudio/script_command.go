package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"clipstudio/client"
	"clipstudio/config"
	"clipstudio/events"
	"clipstudio/publish"
	"clipstudio/scriptsource"
	"clipstudio/storage"
	"clipstudio/tui"
	"clipstudio/wizard"
)

type scriptOptions struct {
	text     string
	file     string
	url      string
	feed     string
	entry    int
	maxChars int

	style    string
	duration int
	maxClips int

	headless bool
	outDir   string
	publish  bool
}

func newScriptCommand(ctx *commandContext) *cobra.Command {
	var opts scriptOptions

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Turn a script, article or feed entry into one stitched video",
		Example: `  clipstudio script
  clipstudio script --url https://example.com/story --style "documentary"
  clipstudio script --file pitch.txt --headless --out videos/`,
		Annotations: map[string]string{annotationTUI: "true"},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// headless runs log to stderr like the other batch commands
			if opts.headless {
				return ctx.initLogging(cmd, false)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := loadScript(cmd.Context(), opts)
			if err != nil {
				return err
			}

			deps, err := ctx.deps(cmd.Context(), opts.outDir)
			if err != nil {
				return err
			}
			wiz := wizard.New(deps.Client, wizard.WithPollInterval(ctx.config.JobPollInterval()))
			defer wiz.Close()

			if err := wiz.SetClipDuration(opts.duration); err != nil {
				return err
			}
			if err := wiz.SetMaxClips(opts.maxClips); err != nil {
				return err
			}
			wiz.SetStyle(opts.style)
			if src != nil {
				wiz.SetScript(src.Body())
			}

			if !opts.headless {
				return runProgram(cmd.Context(), tui.NewWizard(wiz, deps))
			}
			if src == nil {
				return errors.New("--headless needs a script from --text, --file, --url or --feed")
			}
			return runHeadlessScript(cmd, ctx, wiz, deps, src, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.text, "text", "", "Script text")
	f.StringVar(&opts.file, "file", "", "Read the script from a file (- for stdin)")
	f.StringVar(&opts.url, "url", "", "Extract the script from an article page")
	f.StringVar(&opts.feed, "feed", "", "Use an entry of an RSS or Atom feed as the script (URL or preset: "+strings.Join(scriptsource.PresetNames(), ", ")+")")
	f.IntVar(&opts.entry, "entry", 0, "Feed entry index (see `clipstudio feed`)")
	f.IntVar(&opts.maxChars, "max-chars", scriptsource.DefaultMaxChars, "Truncate the script to this many characters")
	f.StringVarP(&opts.style, "style", "s", "", "Global visual style applied to every clip")
	f.IntVarP(&opts.duration, "duration", "d", config.DefaultClipDuration, "Clip length in seconds ("+durationChoices()+")")
	f.IntVar(&opts.maxClips, "max-clips", config.MaxClips, fmt.Sprintf("Split into at most this many clips (%d-%d)", config.MinClips, config.MaxClips))
	f.BoolVar(&opts.headless, "headless", false, "Run without the TUI and save the video")
	f.StringVarP(&opts.outDir, "out", "o", ".", "Directory the video is written to")
	f.BoolVar(&opts.publish, "publish", false, "Upload the finished video to YouTube (headless only)")
	return cmd
}

// loadScript returns nil when no source flag is set.
func loadScript(ctx context.Context, opts scriptOptions) (*scriptsource.Script, error) {
	switch {
	case opts.text != "":
		return &scriptsource.Script{
			ID:   scriptsource.GenerateID(opts.text),
			Text: scriptsource.Normalize(opts.text, opts.maxChars),
		}, nil

	case opts.file != "":
		var data []byte
		var err error
		if opts.file == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(opts.file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read script: %w", err)
		}
		return &scriptsource.Script{
			ID:        scriptsource.GenerateID(string(data)),
			Text:      scriptsource.Normalize(string(data), opts.maxChars),
			SourceURL: opts.file,
		}, nil

	case opts.url != "":
		return scriptsource.FromArticle(opts.url, opts.maxChars)

	case opts.feed != "":
		if opts.entry < 0 {
			return nil, fmt.Errorf("invalid feed entry %d", opts.entry)
		}
		entries, err := scriptsource.FetchFeed(ctx, scriptsource.ResolveFeedURL(opts.feed), opts.entry+1)
		if err != nil {
			return nil, err
		}
		if opts.entry >= len(entries) {
			return nil, fmt.Errorf("feed has %d entries, no entry %d", len(entries), opts.entry)
		}
		res := scriptsource.ExtractAll(entries[opts.entry:opts.entry+1], opts.maxChars)[0]
		return res.Script, nil
	}
	return nil, nil
}

func runHeadlessScript(cmd *cobra.Command, ctx *commandContext, wiz *wizard.Wizard, deps tui.Deps, src *scriptsource.Script, opts scriptOptions) error {
	out := cmd.OutOrStdout()
	base := deps.Client.BaseURL()

	finished := make(chan wizard.State, 1)
	var lastPhase string
	wiz.SetListener(func(st wizard.State) {
		if st.Phase != lastPhase && st.Phase != "" {
			lastPhase = st.Phase
			log.Info().Str("phase", st.Phase).Int("progress", st.Progress()).Msg("Job progress")
		}
		if st.Step == wizard.StepResult || st.Step == wizard.StepError {
			if e, ok := events.FromWizard(st, base); ok && deps.Events != nil {
				deps.Events.Send(e)
			}
			select {
			case finished <- st:
			default:
			}
		}
	})

	if err := wiz.ProcessText(cmd.Context()); err != nil {
		return errors.New(client.Message(err, client.MsgProcessTextFailed))
	}

	st := wiz.Snapshot()
	rows := make([][]string, len(st.Clips))
	for i, c := range st.Clips {
		rows[i] = []string{strconv.Itoa(i + 1), c.VisualPrompt}
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Prompt"}, rows, []columnAlignment{alignRight, alignLeft}))
	fmt.Fprintf(out, "%d clips, about %ds of video\n", len(st.Clips), st.EstimatedDuration)

	if err := wiz.StartGeneration(cmd.Context()); err != nil {
		return errors.New(client.Message(err, client.MsgStartGenerationFailed))
	}

	select {
	case st = <-finished:
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
	if st.Step == wizard.StepError {
		return fmt.Errorf("video generation failed: %s", st.Error)
	}

	jobID := st.Job.ID
	path := filepath.Join(opts.outDir, fmt.Sprintf("video_%s.mp4", jobID))
	dlCtx, cancel := context.WithTimeout(cmd.Context(), downloadTimeout)
	defer cancel()
	loc, err := storage.Save(dlCtx, path, deps.Archiver, storage.Metadata{Kind: "job", ID: jobID, Prompt: src.Title},
		func(ctx context.Context, w io.Writer) error {
			_, err := deps.Client.DownloadJob(ctx, jobID, w)
			return err
		})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Video saved to %s\n", path)
	if loc != "" {
		fmt.Fprintf(out, "Archived to %s\n", loc)
	}

	if !opts.publish {
		return nil
	}
	prompts := make([]string, len(st.Clips))
	for i, c := range st.Clips {
		prompts[i] = c.VisualPrompt
	}
	return uploadVideo(cmd, ctx, publish.Request{
		Path: path,
		Source: publish.Source{
			Title:     src.Title,
			Prompts:   prompts,
			Style:     st.Style,
			SourceURL: src.SourceURL,
			JobID:     jobID,
		},
	})
}

func newFeedCommand(ctx *commandContext) *cobra.Command {
	var max int
	var extract bool

	cmd := &cobra.Command{
		Use:   "feed URL|PRESET",
		Short: "List the entries of a feed that can be turned into videos",
		Long:  "List the entries of a feed. Presets: " + strings.Join(scriptsource.PresetNames(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := scriptsource.FetchFeed(cmd.Context(), scriptsource.ResolveFeedURL(args[0]), max)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !extract {
				rows := make([][]string, len(entries))
				for i, e := range entries {
					rows[i] = []string{strconv.Itoa(i), e.Title, e.Link}
				}
				fmt.Fprintln(out, renderTable([]string{"Entry", "Title", "Link"}, rows, []columnAlignment{alignRight}))
				return nil
			}

			results := scriptsource.ExtractAll(entries, scriptsource.DefaultMaxChars)
			rows := make([][]string, len(results))
			for i, r := range results {
				source := "article"
				if r.Err != nil {
					source = "summary"
				}
				rows[i] = []string{strconv.Itoa(i), r.Script.Title, strconv.Itoa(len(r.Script.Text)), source}
			}
			fmt.Fprintln(out, renderTable([]string{"Entry", "Title", "Chars", "Source"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&max, "max", "m", 10, "Maximum entries to list")
	cmd.Flags().BoolVar(&extract, "extract", false, "Fetch every article and report how much script text it yields")
	return cmd
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
