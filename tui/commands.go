package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"clipstudio/client"
	"clipstudio/credentials"
	"clipstudio/storage"
	"clipstudio/wizard"
)

const downloadTimeout = 5 * time.Minute

// loadKey creates a command to read the stored API key
func loadKey(store credentials.Store) tea.Cmd {
	return func() tea.Msg {
		key, err := credentials.Resolve(context.Background(), store)
		return KeyLoadedMsg{Key: key, Err: err}
	}
}

// saveKey creates a command to store a new API key
func saveKey(store credentials.Store, key string) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return KeySavedMsg{Err: fmt.Errorf("no credential store configured")}
		}
		err := store.Set(context.Background(), key)
		return KeySavedMsg{Key: key, Err: err}
	}
}

// saveClip creates a command to download a completed clip into the output
// directory
func saveClip(deps Deps, clipID, prompt string) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(deps.OutDir, fmt.Sprintf("clip_%s.mp4", clipID))
		meta := storage.Metadata{Kind: "clip", ID: clipID, Prompt: prompt}
		return saveVideo(deps, path, meta, func(ctx context.Context, w io.Writer) error {
			_, err := deps.Client.DownloadClip(ctx, clipID, w)
			return err
		})
	}
}

// saveJob creates a command to download a finished video into the output
// directory
func saveJob(deps Deps, jobID string) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(deps.OutDir, fmt.Sprintf("video_%s.mp4", jobID))
		meta := storage.Metadata{Kind: "job", ID: jobID}
		return saveVideo(deps, path, meta, func(ctx context.Context, w io.Writer) error {
			_, err := deps.Client.DownloadJob(ctx, jobID, w)
			return err
		})
	}
}

func saveVideo(deps Deps, path string, meta storage.Metadata, download storage.DownloadFunc) VideoSavedMsg {
	ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
	defer cancel()

	loc, err := storage.Save(ctx, path, deps.Archiver, meta, download)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			err = errors.New(client.Message(err, client.MsgDownloadFailed))
		}
		return VideoSavedMsg{Err: err}
	}
	return VideoSavedMsg{Path: path, Archived: loc}
}

// processText creates a command to split the script into clips
func processText(w *wizard.Wizard) tea.Cmd {
	return func() tea.Msg {
		return RequestDoneMsg{Err: w.ProcessText(context.Background())}
	}
}

// startGeneration creates a command to submit the reviewed clips
func startGeneration(w *wizard.Wizard) tea.Cmd {
	return func() tea.Msg {
		return RequestDoneMsg{Err: w.StartGeneration(context.Background())}
	}
}
